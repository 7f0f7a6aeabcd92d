package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := New(3, time.Minute)
	failing := func() error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		if err := cb.Execute(context.Background(), failing); err == nil {
			t.Fatal("expected failure to propagate")
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open state after 3 failures, got %v", cb.State())
	}

	err := cb.Execute(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen while open, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := New(3, time.Minute)
	failing := func() error { return errors.New("boom") }

	cb.Execute(context.Background(), failing)
	cb.Execute(context.Background(), failing)
	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("success should pass through, got %v", err)
	}

	// Two more failures should not trip it: the count was reset.
	cb.Execute(context.Background(), failing)
	cb.Execute(context.Background(), failing)
	if cb.State() != StateClosed {
		t.Errorf("expected closed state, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb := New(1, 10*time.Millisecond)
	cb.Execute(context.Background(), func() error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatalf("expected open state, got %v", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	// The first call after the reset timeout is the probe; success closes
	// the breaker again.
	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("probe should run, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed state after successful probe, got %v", cb.State())
	}
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	cb := New(3, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("function should not run under a cancelled context")
	}
}
