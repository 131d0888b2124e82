// Package engine implements the Workflow Engine facade: it wires the
// Graph Analyzer, Node Executor Registry, Data Transfer, Error Handler,
// Execution Queue, State Manager, Event Emitter, and Run Archive into a
// single Run call.
package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/nodeforge/flowengine/internal/archive"
	"github.com/nodeforge/flowengine/internal/emit"
	"github.com/nodeforge/flowengine/internal/host"
	"github.com/nodeforge/flowengine/internal/recovery"
	"github.com/nodeforge/flowengine/internal/state"
)

// Config holds the Engine's tunables. Use Option functions to build one;
// New starts from the defaults and applies the options over them, then
// replaces a nil Emitter, Archive, FileReader or ScriptRunner with its
// default.
type Config struct {
	MaxParallelism       int
	Fallbacks            map[string]string
	ErrorConfig          recovery.Config
	Emitter              emit.Emitter
	Archive              archive.Archive
	Log                  zerolog.Logger
	HistoryCapacity      int
	AutoSnapshotInterval time.Duration
	ScriptRunner         host.ScriptRunner
	FileReader           host.FileReader
	Clock                host.Clock
	ScriptLanguages      []string
}

// Callbacks are the Engine's lifecycle hooks, each optional.
type Callbacks struct {
	OnStart        func()
	OnComplete     func(state.Stats)
	OnNodeStart    func(nodeID string)
	OnNodeComplete func(nodeID string, output any)
	OnNodeError    func(nodeID string, err error)
	OnProgress     func(state.Progress)
	OnError        func(err error)
}

// Option configures an Engine at construction time.
type Option func(*options)

type options struct {
	cfg       Config
	callbacks Callbacks
}

func WithMaxParallelism(n int) Option {
	return func(o *options) { o.cfg.MaxParallelism = n }
}

func WithFallbacks(fallbacks map[string]string) Option {
	return func(o *options) { o.cfg.Fallbacks = fallbacks }
}

func WithErrorConfig(cfg recovery.Config) Option {
	return func(o *options) { o.cfg.ErrorConfig = cfg }
}

func WithEmitter(e emit.Emitter) Option {
	return func(o *options) { o.cfg.Emitter = e }
}

func WithArchive(a archive.Archive) Option {
	return func(o *options) { o.cfg.Archive = a }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.cfg.Log = l }
}

func WithHistoryCapacity(n int) Option {
	return func(o *options) { o.cfg.HistoryCapacity = n }
}

func WithAutoSnapshotInterval(d time.Duration) Option {
	return func(o *options) { o.cfg.AutoSnapshotInterval = d }
}

func WithScriptRunner(r host.ScriptRunner) Option {
	return func(o *options) { o.cfg.ScriptRunner = r }
}

func WithFileReader(r host.FileReader) Option {
	return func(o *options) { o.cfg.FileReader = r }
}

func WithClock(c host.Clock) Option {
	return func(o *options) { o.cfg.Clock = c }
}

func WithScriptLanguages(langs ...string) Option {
	return func(o *options) { o.cfg.ScriptLanguages = langs }
}

func WithCallbacks(c Callbacks) Option {
	return func(o *options) { o.callbacks = c }
}
