package core

import (
	"fmt"
	"sync"
)

// RoundLimiter enforces a maximum number of reasoning rounds per turn. The
// loop has no natural upper bound (the model may keep requesting tools), so a
// configurable cap guarantees termination.
type RoundLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewRoundLimiter creates a new limiter with a max number of rounds.
// If max == 0, unlimited rounds are allowed.
func NewRoundLimiter(max int) *RoundLimiter {
	return &RoundLimiter{max: max}
}

// Increment increases the round counter and returns ErrRoundLimit once the
// limit is exceeded.
func (rl *RoundLimiter) Increment() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.count++
	if rl.max > 0 && rl.count > rl.max {
		return fmt.Errorf("%w: %d", ErrRoundLimit, rl.max)
	}

	return nil
}

// Count returns the current number of rounds started.
func (rl *RoundLimiter) Count() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return rl.count
}

// Remaining returns how many rounds are left before hitting the limit.
// Returns -1 when unlimited.
func (rl *RoundLimiter) Remaining() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.max == 0 {
		return -1
	}

	return rl.max - rl.count
}
