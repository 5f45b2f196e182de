package readiness

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func alwaysReady(ctx context.Context) error { return nil }

func readyAfter(n int) func(ctx context.Context) error {
	calls := 0
	return func(ctx context.Context) error {
		calls++
		if calls < n {
			return errors.New("connection refused")
		}
		return nil
	}
}

func TestWaitPollsUntilReady(t *testing.T) {
	var sleeps []time.Duration
	httpCalls := 0

	httpReady := readyAfter(3)
	prober := &Prober{
		HTTPCheck: func(ctx context.Context) error {
			httpCalls++
			return httpReady(ctx)
		},
		GRPCCheck:       alwaysReady,
		Interval:        5 * time.Second,
		HTTPMaxAttempts: 120,
		GRPCMaxAttempts: 60,
		Sleep:           func(d time.Duration) { sleeps = append(sleeps, d) },
		Logger:          zerolog.Nop(),
	}

	if err := prober.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	if httpCalls != 3 {
		t.Errorf("Expected 3 HTTP attempts, got %d", httpCalls)
	}
	if len(sleeps) != 2 {
		t.Fatalf("Expected 2 interval sleeps, got %d", len(sleeps))
	}
	for i, d := range sleeps {
		if d != 5*time.Second {
			t.Errorf("Sleep %d: expected fixed 5s interval, got %v", i, d)
		}
	}
}

func TestWaitHTTPExhaustionIsNotFatal(t *testing.T) {
	grpcCalls := 0
	prober := &Prober{
		HTTPCheck: func(ctx context.Context) error { return errors.New("connection refused") },
		GRPCCheck: func(ctx context.Context) error {
			grpcCalls++
			return nil
		},
		Interval:        time.Second,
		HTTPMaxAttempts: 4,
		GRPCMaxAttempts: 4,
		Sleep:           func(time.Duration) {},
		Logger:          zerolog.Nop(),
	}

	if err := prober.Wait(context.Background()); err != nil {
		t.Fatalf("Expected HTTP exhaustion tolerated, got %v", err)
	}
	if grpcCalls != 1 {
		t.Errorf("Expected the gRPC leg to run after HTTP gave up, got %d calls", grpcCalls)
	}
}

func TestWaitGRPCExhaustionIsFatal(t *testing.T) {
	prober := &Prober{
		HTTPCheck:       alwaysReady,
		GRPCCheck:       func(ctx context.Context) error { return errors.New("connection refused") },
		Interval:        time.Second,
		HTTPMaxAttempts: 2,
		GRPCMaxAttempts: 3,
		Sleep:           func(time.Duration) {},
		Logger:          zerolog.Nop(),
	}

	if err := prober.Wait(context.Background()); err == nil {
		t.Fatal("Expected error when the gRPC surface never comes up")
	}
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	prober := &Prober{
		HTTPCheck:       func(ctx context.Context) error { return errors.New("connection refused") },
		GRPCCheck:       alwaysReady,
		Interval:        time.Second,
		HTTPMaxAttempts: 1000,
		GRPCMaxAttempts: 1000,
		Sleep:           func(time.Duration) { cancel() },
		Logger:          zerolog.Nop(),
	}

	if err := prober.Wait(ctx); err == nil {
		t.Fatal("Expected cancellation to abort the probe")
	}
}

func TestHTTPHealthCheck(t *testing.T) {
	healthy := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	check := HTTPHealthCheck(server.Client(), server.URL+"/health")

	if err := check(context.Background()); err == nil {
		t.Error("Expected error while backend reports unavailable")
	}

	healthy = true
	if err := check(context.Background()); err != nil {
		t.Errorf("Expected healthy backend to pass, got %v", err)
	}
}
