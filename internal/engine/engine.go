package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nodeforge/flowengine/internal/archive"
	"github.com/nodeforge/flowengine/internal/emit"
	"github.com/nodeforge/flowengine/internal/executor"
	"github.com/nodeforge/flowengine/internal/graph"
	"github.com/nodeforge/flowengine/internal/host"
	"github.com/nodeforge/flowengine/internal/queue"
	"github.com/nodeforge/flowengine/internal/recovery"
	"github.com/nodeforge/flowengine/internal/state"
	"github.com/nodeforge/flowengine/internal/transfer"
	streamyerrors "github.com/nodeforge/flowengine/pkg/errors"
)

// Re-enqueue priorities for recovery actions, per §4.5/§4.7: a retried
// node re-enters at the default priority, while a fallback node jumps
// the queue so it runs preferentially ahead of unrelated pending work.
const (
	retryPriority    = 0
	fallbackPriority = 1000
)

// Engine is the facade a caller drives a workflow run through. One
// Engine instance can run one workflow at a time; construct another for
// a concurrent run.
type Engine struct {
	cfg       Config
	callbacks Callbacks

	registry        *executor.Registry
	transfer        *transfer.Transfer
	recoveryHandler *recovery.Handler

	mu            sync.Mutex
	execCtx       *state.ExecutionContext
	manager       *state.Manager
	nodesByID     map[string]graph.Node
	graphNodes    map[string]*graph.GraphNode
	queue         *queue.Queue
	runCancel     context.CancelFunc
	transfersDone map[string]bool
}

// New builds an Engine from the given options, filling in production
// defaults for anything left unset.
func New(opts ...Option) *Engine {
	o := &options{
		cfg: Config{
			MaxParallelism:       4,
			ErrorConfig:          recovery.DefaultConfig(),
			Log:                  zerolog.Nop(),
			HistoryCapacity:      100,
			AutoSnapshotInterval: 5 * time.Second,
			Clock:                host.SystemClock{},
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	cfg := o.cfg
	if cfg.Emitter == nil {
		cfg.Emitter = emit.NewLogEmitter(cfg.Log)
	}
	if cfg.Archive == nil {
		cfg.Archive = archive.NewMemoryArchive()
	}
	if cfg.FileReader == nil {
		cfg.FileReader = host.OSFileReader{}
	}
	if cfg.ScriptRunner == nil {
		cfg.ScriptRunner = host.NewExecRunner()
	}

	e := &Engine{cfg: cfg, callbacks: o.callbacks}

	e.registry = executor.NewRegistry()
	e.registry.Register("memo", executor.MemoHandler{})
	e.registry.Register("file", executor.NewFileHandler(cfg.FileReader))
	e.registry.Register("script", executor.NewScriptHandler(cfg.ScriptRunner, cfg.ScriptLanguages...))
	e.registry.Register("connector", executor.ConnectorHandler{})

	e.transfer = transfer.New()
	e.transfer.TargetKind = e.targetKind

	e.recoveryHandler = recovery.NewHandler(cfg.ErrorConfig, cfg.Fallbacks)

	return e
}

// RegisterHandler overrides or adds a node-type handler, for embedders
// that need a node kind beyond the four built in.
func (e *Engine) RegisterHandler(typeTag string, h executor.Handler) {
	e.registry.Register(typeTag, h)
}

func (e *Engine) targetKind(nodeID, handle string) (transfer.Kind, bool) {
	e.mu.Lock()
	node, ok := e.nodesByID[nodeID]
	e.mu.Unlock()
	if !ok {
		return "", false
	}
	h, ok := e.registry.Get(node.Type)
	if !ok {
		return "", false
	}
	typed, ok := h.(transfer.TypedHandler)
	if !ok {
		return "", false
	}
	return typed.InputKind(handle)
}

// Run analyzes nodes/edges into an execution plan and drives it to
// completion (every node terminal, or the run stopped by a critical
// error or caller cancellation), returning the final statistics.
func (e *Engine) Run(ctx context.Context, executionID string, nodes []graph.Node, edges []graph.Edge) (*state.Stats, error) {
	analysis, err := graph.Analyze(nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("engine: analyze graph: %w", err)
	}
	if !analysis.Valid {
		return nil, analysis.Errors[0]
	}
	if edgeErrs := transfer.ValidateEdges(edges, analysis.Nodes); len(edgeErrs) > 0 {
		return nil, edgeErrs[0]
	}

	execCtx := state.NewExecutionContext(executionID, nodes, edges)
	manager := state.NewManager(execCtx, e.cfg.Log,
		state.WithHistoryCapacity(e.cfg.HistoryCapacity),
		state.WithAutoSnapshotInterval(e.cfg.AutoSnapshotInterval))

	nodesByID := make(map[string]graph.Node, len(nodes))
	for _, n := range nodes {
		nodesByID[n.ID] = n
	}

	e.mu.Lock()
	e.execCtx = execCtx
	e.manager = manager
	e.nodesByID = nodesByID
	e.graphNodes = analysis.Nodes
	e.transfersDone = make(map[string]bool, len(nodes))
	e.mu.Unlock()

	if e.callbacks.OnProgress != nil {
		manager.Subscribe(func(state.NodeState) {
			e.callbacks.OnProgress(manager.Progress())
		})
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.runCancel = cancel
	e.mu.Unlock()
	defer cancel()

	manager.StartAutoSnapshot(runCtx)
	defer manager.StopAutoSnapshot()

	if e.callbacks.OnStart != nil {
		e.callbacks.OnStart()
	}
	e.emit(executionID, "", "run_started", nil)

	q := queue.New(runCtx, e.cfg.MaxParallelism, e.hooks(executionID))
	e.mu.Lock()
	e.queue = q
	e.mu.Unlock()

	q.EnqueuePlan(analysis.Plan)

	select {
	case <-q.Done():
	case <-runCtx.Done():
	}

	_ = manager.RecordSnapshot()
	stats := manager.Statistics()

	if e.cfg.Archive != nil {
		_ = e.cfg.Archive.Save(context.Background(), manager.Snapshot())
	}
	if e.callbacks.OnComplete != nil {
		e.callbacks.OnComplete(stats)
	}
	e.emit(executionID, "", "run_completed", map[string]any{
		"completed": stats.Completed,
		"failed":    stats.Failed,
		"cancelled": stats.Cancelled,
	})
	_ = e.cfg.Emitter.Flush(context.Background())

	return &stats, nil
}

func (e *Engine) hooks(executionID string) queue.Hooks {
	return queue.Hooks{
		IsReady:  e.isReady,
		NodeType: func(nodeID string) string { return e.nodesByID[nodeID].Type },
		Execute: func(ctx context.Context, nodeID string) (any, error) {
			node := e.nodesByID[nodeID]
			inputs := e.execCtx.Inputs(nodeID)
			return e.registry.Execute(ctx, node, e.execCtx, inputs)
		},
		OnRunning: func(nodeID string) {
			now := time.Now()
			e.manager.Update(nodeID, func(ns *state.NodeState) {
				ns.Status = state.StatusRunning
				ns.StartTime = &now
			})
			if e.callbacks.OnNodeStart != nil {
				e.callbacks.OnNodeStart(nodeID)
			}
			e.emit(executionID, nodeID, "node_running", nil)
		},
		OnCompleted: func(nodeID string, output any) {
			e.completeNode(executionID, nodeID, output, false)
		},
		OnFailed: func(nodeID string, err error) {
			e.handleFailure(executionID, nodeID, err)
		},
		OnCancelled: func(nodeID string) {
			now := time.Now()
			e.manager.Update(nodeID, func(ns *state.NodeState) {
				ns.Status = state.StatusCancelled
				ns.EndTime = &now
			})
			e.emit(executionID, nodeID, "node_cancelled", nil)
		},
	}
}

// isReady reports whether every dependency of nodeID is not just
// Completed but has also finished delivering its outgoing transfers:
// Status alone flips the instant completeNode's state update runs,
// before that node's data has necessarily landed in a sibling's input,
// so a multi-predecessor node would otherwise be dispatchable while a
// transfer from one of its predecessors is still in flight on another
// goroutine (see completeNode/markTransfersDone).
func (e *Engine) isReady(nodeID string) bool {
	// A node can already be terminal here without the Queue having run
	// it: a transfer failure targeting a still-pending node resolves it
	// out of band via handleFailure (see completeNode). Once resolved,
	// it must never also be dispatched for real.
	if s, ok := e.execCtx.State(nodeID); ok && isTerminalStatus(s.Status) {
		return false
	}
	gn, ok := e.graphNodes[nodeID]
	if !ok {
		return false
	}
	for _, dep := range gn.Dependencies {
		s, ok := e.execCtx.State(dep)
		if !ok || s.Status != state.StatusCompleted {
			return false
		}
		if !e.transfersAreDone(dep) {
			return false
		}
	}
	return true
}

func isTerminalStatus(s state.Status) bool {
	switch s {
	case state.StatusCompleted, state.StatusFailed, state.StatusCancelled:
		return true
	default:
		return false
	}
}

func (e *Engine) markTransfersDone(nodeID string) {
	e.mu.Lock()
	e.transfersDone[nodeID] = true
	e.mu.Unlock()
}

func (e *Engine) transfersAreDone(nodeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transfersDone[nodeID]
}

// completeNode marks nodeID Completed, then runs its outgoing transfers
// (routing any per-edge failure through the same recovery chain as an
// execution failure) and, only once every transfer has landed, records
// that fact via markTransfersDone — the signal isReady actually gates
// downstream dispatch on, so a sibling never observes nodeID as ready
// while its transfer into a shared target is still in flight.
func (e *Engine) completeNode(executionID, nodeID string, output any, skipped bool) {
	now := time.Now()
	var startedAt time.Time
	e.manager.Update(nodeID, func(ns *state.NodeState) {
		if ns.StartTime != nil {
			startedAt = *ns.StartTime
		}
		ns.Status = state.StatusCompleted
		ns.Output = output
		ns.EndTime = &now
		ns.Progress = 100
	})

	var g errgroup.Group
	for _, edge := range e.execCtx.Edges {
		if edge.SourceNodeID != nodeID {
			continue
		}
		edge := edge
		g.Go(func() error {
			if err := e.transfer.Do(edge, e.execCtx); err != nil {
				transferErr := streamyerrors.NewRuntimeError(edge.TargetNodeID,
					"data transfer failed: "+err.Error(), err)
				e.handleFailure(executionID, edge.TargetNodeID, transferErr)
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // per-edge failures are routed through handleFailure above, not returned here
	e.markTransfersDone(nodeID)

	if e.callbacks.OnNodeComplete != nil {
		e.callbacks.OnNodeComplete(nodeID, output)
	}

	meta := map[string]any{"node_type": e.nodesByID[nodeID].Type}
	if !startedAt.IsZero() {
		meta["duration_ms"] = float64(now.Sub(startedAt).Milliseconds())
	}
	msg := "node_completed"
	if skipped {
		msg = "node_skipped"
	}
	e.emit(executionID, nodeID, msg, meta)
}

func (e *Engine) handleFailure(executionID, nodeID string, err error) {
	var execErr *streamyerrors.ExecutionError
	if !errors.As(err, &execErr) {
		execErr = streamyerrors.NewRuntimeError(nodeID, err.Error(), err)
	}
	nodeType := e.nodesByID[nodeID].Type
	decision := e.recoveryHandler.Handle(execErr, nodeID, nodeType)

	now := time.Now()
	e.manager.Update(nodeID, func(ns *state.NodeState) {
		ns.Status = state.StatusFailed
		ns.Error = execErr.Error()
		ns.EndTime = &now
	})
	if e.callbacks.OnNodeError != nil {
		e.callbacks.OnNodeError(nodeID, execErr)
	}
	e.emit(executionID, nodeID, "node_failed", map[string]any{"error": execErr.Error(), "node_type": nodeType})

	level := 0
	if gn, ok := e.graphNodes[nodeID]; ok {
		level = gn.Level
	}

	switch decision.Action {
	case recovery.ActionRetry:
		if q := e.currentQueue(); q != nil {
			q.BeginRetry()
			go func() {
				<-e.cfg.Clock.After(decision.RetryDelay)
				e.manager.Update(nodeID, func(ns *state.NodeState) {
					ns.Status = state.StatusPending
					ns.Error = ""
				})
				q.Enqueue(nodeID, level, retryPriority)
				q.EndRetry()
			}()
		}
	case recovery.ActionSkip:
		e.completeNode(executionID, nodeID, executor.SkippedSentinel(), true)
	case recovery.ActionFallback:
		if q := e.currentQueue(); q != nil {
			q.Enqueue(decision.FallbackNodeID, level, fallbackPriority)
		}
	case recovery.ActionStop:
		e.emit(executionID, nodeID, "run_stopping", map[string]any{"reason": decision.Message})
		if e.callbacks.OnError != nil {
			e.callbacks.OnError(execErr)
		}
		if q := e.currentQueue(); q != nil {
			q.CancelAll()
		}
	}
}

func (e *Engine) currentQueue() *queue.Queue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue
}

func (e *Engine) emit(executionID, nodeID, msg string, meta map[string]any) {
	if e.cfg.Emitter == nil {
		return
	}
	e.cfg.Emitter.Emit(emit.Event{ExecutionID: executionID, NodeID: nodeID, Msg: msg, Meta: meta})
}

// Stop requests cancellation of the in-progress run by cancelling its
// context; Run then returns without waiting for in-flight handlers.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.runCancel
	q := e.queue
	e.mu.Unlock()
	if q != nil {
		q.CancelAll()
	}
	if cancel != nil {
		cancel()
	}
}

// CancelNode requests cancellation of a single node.
func (e *Engine) CancelNode(nodeID string) {
	if q := e.currentQueue(); q != nil {
		q.Cancel(nodeID)
	}
}

// State returns a snapshot of the current run's state.
func (e *Engine) State() (state.Snapshot, error) {
	e.mu.Lock()
	m := e.manager
	e.mu.Unlock()
	if m == nil {
		return state.Snapshot{}, fmt.Errorf("engine: no run in progress")
	}
	return m.Snapshot(), nil
}

// ExportState serializes the current run's state as JSON, per the
// persisted-state schema external tools read.
func (e *Engine) ExportState() ([]byte, error) {
	snap, err := e.State()
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}

// ImportState restores a previously exported snapshot into the current
// run's state manager, for a `resume` workflow.
func (e *Engine) ImportState(data []byte) error {
	var snap state.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("engine: unmarshal snapshot: %w", err)
	}
	e.mu.Lock()
	m := e.manager
	e.mu.Unlock()
	if m == nil {
		return fmt.Errorf("engine: no run in progress")
	}
	m.Restore(snap)
	return nil
}

// Dispose releases resources held by the engine's collaborators (the
// archive's database connection, if any).
func (e *Engine) Dispose() error {
	e.mu.Lock()
	m := e.manager
	e.mu.Unlock()
	if m != nil {
		m.StopAutoSnapshot()
	}
	if closer, ok := e.cfg.Archive.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
