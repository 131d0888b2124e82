package recovery

import (
	"sync"
	"time"

	streamyerrors "github.com/nodeforge/flowengine/pkg/errors"
)

// Config holds the Error Handler's default tuning knobs.
type Config struct {
	CriticalTypes  map[streamyerrors.Type]bool
	RetryableTypes map[streamyerrors.Type]bool
	SkippableTypes map[string]bool // node type tags, not error types
	MaxRetries     int
	InitialDelay   time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
	LogCapacity    int
}

// DefaultConfig returns the spec's §4.4 default configuration.
func DefaultConfig() Config {
	return Config{
		CriticalTypes: map[streamyerrors.Type]bool{
			streamyerrors.TypeValidation: true,
			streamyerrors.TypeSecurity:   true,
			streamyerrors.TypeFatal:      true,
		},
		RetryableTypes: map[streamyerrors.Type]bool{
			streamyerrors.TypeTimeout: true,
			streamyerrors.TypeNetwork: true,
			"temporary":               true,
		},
		SkippableTypes: map[string]bool{
			"memo":      true,
			"connector": true,
		},
		MaxRetries:   3,
		InitialDelay: 1000 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     30 * time.Second,
		LogCapacity:  1000,
	}
}

// Stats summarizes the bounded error log.
type Stats struct {
	ByType   map[streamyerrors.Type]int
	ByNode   map[string]int
	Recent10 []*streamyerrors.ExecutionError
}

// Handler is the Error Handler: an ordered chain of strategies plus a
// bounded, FIFO-evicted error log.
type Handler struct {
	strategies []Strategy
	fallbacks  map[string]string

	mu     sync.Mutex
	log    []*streamyerrors.ExecutionError
	cap    int
	byType map[streamyerrors.Type]int
	byNode map[string]int
}

// NewHandler builds the default Stop -> Retry -> Fallback -> Skip chain
// from cfg. fallbacks maps a node id to its pre-registered fallback node
// id; nodes absent from the map have none.
func NewHandler(cfg Config, fallbacks map[string]string) *Handler {
	if fallbacks == nil {
		fallbacks = map[string]string{}
	}
	return &Handler{
		strategies: []Strategy{
			StopStrategy{Critical: cfg.CriticalTypes},
			NewRetryStrategy(cfg.RetryableTypes, cfg.MaxRetries, cfg.InitialDelay, cfg.Multiplier, cfg.MaxDelay),
			NewFallbackStrategy(),
			SkipStrategy{Skippable: cfg.SkippableTypes},
		},
		fallbacks: fallbacks,
		cap:       cfg.LogCapacity,
		byType:    make(map[streamyerrors.Type]int),
		byNode:    make(map[string]int),
	}
}

// NewHandlerWithStrategies builds a Handler from an explicit, pre-ordered
// strategy chain, for callers that need to substitute or omit a built-in
// strategy.
func NewHandlerWithStrategies(strategies []Strategy, fallbacks map[string]string, logCapacity int) *Handler {
	if fallbacks == nil {
		fallbacks = map[string]string{}
	}
	if logCapacity <= 0 {
		logCapacity = 1000
	}
	return &Handler{
		strategies: strategies,
		fallbacks:  fallbacks,
		cap:        logCapacity,
		byType:     make(map[streamyerrors.Type]int),
		byNode:     make(map[string]int),
	}
}

// Handle runs the strategy chain in order and returns the first
// applicable decision, recording the error regardless of outcome. If no
// strategy applies, the default action is stop with a synthetic message.
func (h *Handler) Handle(err *streamyerrors.ExecutionError, nodeID, nodeType string) Decision {
	h.record(err, nodeID)

	fallbackID, hasFallback := h.fallbacks[nodeID]
	ctx := StrategyContext{
		Err:            err,
		NodeID:         nodeID,
		NodeType:       nodeType,
		HasFallback:    hasFallback,
		FallbackNodeID: fallbackID,
	}

	for _, s := range h.strategies {
		if s.Applies(ctx) {
			return s.Decide(ctx)
		}
	}
	return Decision{Action: ActionStop, Message: "unhandled error: no recovery strategy applied"}
}

func (h *Handler) record(err *streamyerrors.ExecutionError, nodeID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.log = append(h.log, err)
	if len(h.log) > h.cap {
		h.log = h.log[len(h.log)-h.cap:]
	}
	h.byType[err.Type]++
	h.byNode[nodeID]++
}

// Statistics returns a snapshot of error counts by type, by node, and the
// ten most recent errors.
func (h *Handler) Statistics() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	byType := make(map[streamyerrors.Type]int, len(h.byType))
	for k, v := range h.byType {
		byType[k] = v
	}
	byNode := make(map[string]int, len(h.byNode))
	for k, v := range h.byNode {
		byNode[k] = v
	}

	n := 10
	if len(h.log) < n {
		n = len(h.log)
	}
	recent := make([]*streamyerrors.ExecutionError, n)
	copy(recent, h.log[len(h.log)-n:])

	return Stats{ByType: byType, ByNode: byNode, Recent10: recent}
}
