package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("backend", 3, time.Minute)

	fail := func() error { return errors.New("backend down") }

	for i := 0; i < 3; i++ {
		if err := cb.Call(fail); err == nil {
			t.Fatalf("Call %d: expected error", i)
		}
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("Expected StateOpen after 3 failures, got %v", cb.GetState())
	}

	err := cb.Call(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen while open, got %v", err)
	}
}

func TestCircuitBreaker_ClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker("backend", 2, time.Minute)

	if err := cb.Call(func() error { return nil }); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected StateClosed, got %v", cb.GetState())
	}

	// One failure then a success resets the count
	_ = cb.Call(func() error { return errors.New("blip") })
	_ = cb.Call(func() error { return nil })
	_ = cb.Call(func() error { return errors.New("blip") })

	if cb.GetState() != StateClosed {
		t.Errorf("Expected StateClosed after non-consecutive failures, got %v", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("backend", 1, 10*time.Millisecond)

	_ = cb.Call(func() error { return errors.New("down") })
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected StateOpen, got %v", cb.GetState())
	}

	time.Sleep(20 * time.Millisecond)

	// Recovered service: enough successes close the circuit again
	for i := 0; i < 3; i++ {
		if err := cb.Call(func() error { return nil }); err != nil {
			t.Fatalf("Half-open call %d rejected: %v", i, err)
		}
	}

	if cb.GetState() != StateClosed {
		t.Errorf("Expected StateClosed after recovery, got %v", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("backend", 1, 10*time.Millisecond)

	_ = cb.Call(func() error { return errors.New("down") })
	time.Sleep(20 * time.Millisecond)

	_ = cb.Call(func() error { return errors.New("still down") })

	if cb.GetState() != StateOpen {
		t.Errorf("Expected StateOpen after half-open failure, got %v", cb.GetState())
	}
}
