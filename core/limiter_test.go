package core

import (
	"errors"
	"testing"
)

func TestRoundLimiter_EnforcesLimit(t *testing.T) {
	rl := NewRoundLimiter(2)

	if err := rl.Increment(); err != nil {
		t.Fatalf("round 1 should be allowed: %v", err)
	}
	if err := rl.Increment(); err != nil {
		t.Fatalf("round 2 should be allowed: %v", err)
	}
	if err := rl.Increment(); !errors.Is(err, ErrRoundLimit) {
		t.Fatalf("round 3 should exceed the limit, got %v", err)
	}
	if rl.Count() != 3 {
		t.Fatalf("expected count 3, got %d", rl.Count())
	}
}

func TestRoundLimiter_Unlimited(t *testing.T) {
	rl := NewRoundLimiter(0)

	for i := 0; i < 100; i++ {
		if err := rl.Increment(); err != nil {
			t.Fatalf("unlimited limiter returned error at round %d: %v", i+1, err)
		}
	}
	if rl.Remaining() != -1 {
		t.Fatalf("unlimited limiter should report -1 remaining, got %d", rl.Remaining())
	}
}

func TestRoundLimiter_Remaining(t *testing.T) {
	rl := NewRoundLimiter(5)
	_ = rl.Increment()
	_ = rl.Increment()
	if rl.Remaining() != 3 {
		t.Fatalf("expected 3 remaining, got %d", rl.Remaining())
	}
}
