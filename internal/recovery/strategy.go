// Package recovery implements the Error Handler: an ordered chain of
// pluggable strategies deciding what happens when a node or transfer
// fails.
package recovery

import (
	"math"
	"time"

	streamyerrors "github.com/nodeforge/flowengine/pkg/errors"
)

// Action is the decision an Error Handler strategy reaches.
type Action string

const (
	ActionRetry    Action = "retry"
	ActionSkip     Action = "skip"
	ActionFallback Action = "fallback"
	ActionStop     Action = "stop"
)

// Decision is what Handle returns: the chosen action plus any data the
// caller (the Engine) needs to realize it as queue operations.
type Decision struct {
	Action         Action
	Message        string
	RetryDelay     time.Duration
	FallbackNodeID string
}

// StrategyContext is the information a Strategy needs to decide. It is
// reconstructed fresh for every Handle call; strategies that need
// per-node memory across calls (Retry's attempt counters, Fallback's
// re-entry guard) own that state themselves, per the "each strategy owns
// any per-run counters it needs" design note — state is never shared
// across strategies.
type StrategyContext struct {
	Err            *streamyerrors.ExecutionError
	NodeID         string
	NodeType       string
	HasFallback    bool
	FallbackNodeID string
}

// Strategy is one link in the Error Handler's chain.
type Strategy interface {
	Name() string
	Applies(c StrategyContext) bool
	Decide(c StrategyContext) Decision
}

// computeBackoff returns min(initial * multiplier^attempt, max).
func computeBackoff(attempt int, initial time.Duration, multiplier float64, max time.Duration) time.Duration {
	delay := float64(initial) * math.Pow(multiplier, float64(attempt))
	if delay > float64(max) {
		return max
	}
	return time.Duration(delay)
}
