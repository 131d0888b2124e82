// Package logging builds the run-scoped zerolog logger the Engine and
// CLI commands share, so every log line carries consistent fields.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the base logger.
type Options struct {
	Level  zerolog.Level
	Pretty bool
	Writer io.Writer
}

// New builds a base logger from Options. A nil Writer means stderr, and a
// Level of zerolog.NoLevel means info; note that the zero value of Level
// is zerolog.DebugLevel, which is kept as given.
func New(opts Options) zerolog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ForRun returns a child logger tagged with the execution's identity,
// so every line emitted during a run can be filtered by ID.
func ForRun(base zerolog.Logger, workflowName, executionID string) zerolog.Logger {
	return base.With().
		Str("workflow", workflowName).
		Str("execution_id", executionID).
		Logger()
}

// ForNode further tags a run logger with the node currently executing.
func ForNode(runLogger zerolog.Logger, nodeID, nodeType string) zerolog.Logger {
	return runLogger.With().
		Str("node_id", nodeID).
		Str("node_type", nodeType).
		Logger()
}
