package recovery

import (
	"sync"
	"time"

	streamyerrors "github.com/nodeforge/flowengine/pkg/errors"
)

// StopStrategy triggers when the error's type is in a configured
// critical set. It always wins the Open Question recorded in
// DESIGN.md: a stop action always aborts the run regardless of any
// recovery-enabled flag.
type StopStrategy struct {
	Critical map[streamyerrors.Type]bool
}

func (StopStrategy) Name() string { return "stop" }

func (s StopStrategy) Applies(c StrategyContext) bool {
	return s.Critical[c.Err.Type]
}

func (s StopStrategy) Decide(c StrategyContext) Decision {
	return Decision{Action: ActionStop, Message: "critical error type: " + string(c.Err.Type)}
}

// RetryStrategy applies to retryable error types while the per-node
// attempt counter is below MaxRetries. It owns that counter exclusively;
// no other strategy reads or writes it.
type RetryStrategy struct {
	Retryable  map[streamyerrors.Type]bool
	MaxRetries int
	Initial    time.Duration
	Multiplier float64
	MaxDelay   time.Duration

	mu       sync.Mutex
	attempts map[string]int
}

// NewRetryStrategy constructs a RetryStrategy with its own attempt
// counters.
func NewRetryStrategy(retryable map[streamyerrors.Type]bool, maxRetries int, initial time.Duration, multiplier float64, maxDelay time.Duration) *RetryStrategy {
	return &RetryStrategy{
		Retryable:  retryable,
		MaxRetries: maxRetries,
		Initial:    initial,
		Multiplier: multiplier,
		MaxDelay:   maxDelay,
		attempts:   make(map[string]int),
	}
}

func (*RetryStrategy) Name() string { return "retry" }

func (s *RetryStrategy) Applies(c StrategyContext) bool {
	if !s.Retryable[c.Err.Type] {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[c.NodeID] < s.MaxRetries
}

func (s *RetryStrategy) Decide(c StrategyContext) Decision {
	s.mu.Lock()
	attempt := s.attempts[c.NodeID]
	s.attempts[c.NodeID] = attempt + 1
	s.mu.Unlock()

	delay := computeBackoff(attempt, s.Initial, s.Multiplier, s.MaxDelay)
	return Decision{Action: ActionRetry, RetryDelay: delay, Message: "retrying after backoff"}
}

// AttemptCount returns the number of retries already recorded for a node.
func (s *RetryStrategy) AttemptCount(nodeID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[nodeID]
}

// FallbackStrategy applies when the failing node has a pre-registered
// fallback node id. Per the Open Question resolution in DESIGN.md: if the
// fallback node itself fails, the Error Handler is re-entered, but the
// Fallback strategy never re-fires for the same originating node — it
// remembers which originating nodes it has already redirected.
type FallbackStrategy struct {
	mu   sync.Mutex
	used map[string]bool
}

// NewFallbackStrategy constructs a FallbackStrategy with its own
// re-entry guard.
func NewFallbackStrategy() *FallbackStrategy {
	return &FallbackStrategy{used: make(map[string]bool)}
}

func (*FallbackStrategy) Name() string { return "fallback" }

func (s *FallbackStrategy) Applies(c StrategyContext) bool {
	if !c.HasFallback {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.used[c.NodeID]
}

func (s *FallbackStrategy) Decide(c StrategyContext) Decision {
	s.mu.Lock()
	s.used[c.NodeID] = true
	s.mu.Unlock()
	return Decision{Action: ActionFallback, FallbackNodeID: c.FallbackNodeID, Message: "redirecting to fallback node " + c.FallbackNodeID}
}

// SkipStrategy applies when the failing node's type (not its error type)
// is in a configured skippable set.
type SkipStrategy struct {
	Skippable map[string]bool
}

func (SkipStrategy) Name() string { return "skip" }

func (s SkipStrategy) Applies(c StrategyContext) bool {
	return s.Skippable[c.NodeType]
}

func (SkipStrategy) Decide(c StrategyContext) Decision {
	return Decision{Action: ActionSkip, Message: "node type is skippable, treating failure as a no-op"}
}
