// Package emit implements the Event Emitter: a pluggable sink for the
// observability events a run produces (node transitions, errors,
// progress ticks), decoupled from logging, metrics, and tracing
// backends.
package emit

import "context"

// Event is one observability event emitted during a run.
type Event struct {
	ExecutionID string
	NodeID      string
	Msg         string
	Meta        map[string]any
}

// Emitter receives events from a run. Implementations must not block the
// Engine for long and must not panic.
type Emitter interface {
	Emit(event Event)
	EmitBatch(ctx context.Context, events []Event) error
	Flush(ctx context.Context) error
}
