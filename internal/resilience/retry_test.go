package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return nil
	}, &RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Second, BackoffMultiplier: 2.0}, nil)

	if err != nil {
		t.Fatalf("Retry() failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	var slept []time.Duration
	cfg := &RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
		Sleep:             func(d time.Duration) { slept = append(slept, d) },
	}

	err := Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, cfg, nil)

	if err != nil {
		t.Fatalf("Retry() failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
	if len(slept) != 2 {
		t.Fatalf("Expected 2 sleeps, got %d", len(slept))
	}
	if slept[0] != 100*time.Millisecond || slept[1] != 200*time.Millisecond {
		t.Errorf("Expected exponential sleeps [100ms 200ms], got %v", slept)
	}
}

func TestRetry_FixedInterval(t *testing.T) {
	var slept []time.Duration
	cfg := &RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    5 * time.Second,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 1.0,
		Sleep:             func(d time.Duration) { slept = append(slept, d) },
	}

	err := Retry(context.Background(), func() error {
		return errors.New("still down")
	}, cfg, nil)

	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if len(slept) != 3 {
		t.Fatalf("Expected 3 sleeps, got %d", len(slept))
	}
	for i, d := range slept {
		if d != 5*time.Second {
			t.Errorf("Sleep %d: expected 5s, got %v", i, d)
		}
	}
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return errors.New("bad request")
	}, &RetryConfig{MaxAttempts: 5, InitialBackoff: time.Millisecond, MaxBackoff: time.Second, BackoffMultiplier: 2.0},
		IsRetryableNetworkError)

	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call for non-retryable error, got %d", calls)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, func() error { return errors.New("nope") }, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestIsRetryableNetworkError(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
	}{
		{nil, false},
		{errors.New("connection refused"), true},
		{fmt.Errorf("rpc error: code = Unavailable desc = transport is closing"), true},
		{errors.New("context deadline exceeded"), true},
		{errors.New("resource exhausted"), true},
		{errors.New("invalid argument"), false},
	}

	for _, tc := range cases {
		if got := IsRetryableNetworkError(tc.err); got != tc.retryable {
			t.Errorf("IsRetryableNetworkError(%v) = %v, want %v", tc.err, got, tc.retryable)
		}
	}
}
