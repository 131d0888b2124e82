package emit

import (
	"context"

	"github.com/rs/zerolog"
)

// LogEmitter writes events through a zerolog logger, one line per event.
// The output format (JSON or console) is whatever the supplied logger
// writes; LogEmitter has no format setting of its own.
type LogEmitter struct {
	log zerolog.Logger
}

// NewLogEmitter wraps log for event emission.
func NewLogEmitter(log zerolog.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

func (l *LogEmitter) Emit(event Event) {
	e := l.log.Info().
		Str("execution_id", event.ExecutionID).
		Str("node_id", event.NodeID)
	for k, v := range event.Meta {
		e = e.Interface(k, v)
	}
	e.Msg(event.Msg)
}

func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		l.Emit(e)
	}
	return nil
}

// Flush is a no-op: zerolog writes synchronously to its destination.
func (l *LogEmitter) Flush(_ context.Context) error { return nil }
