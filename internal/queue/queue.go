// Package queue implements the Execution Queue: a bounded-parallelism
// scheduler that admits ready nodes, tracks the running set, honors
// priorities, and supports cancellation.
package queue

import (
	"context"
	"sort"
	"sync"

	"github.com/nodeforge/flowengine/internal/graph"
)

// priorityForLevel derives a node's base priority from its topological
// level: lower level => higher priority, matching §4.5.
func priorityForLevel(level int) int {
	return -level * 100
}

// TypeAdjustment returns the node-type priority adjustment named in
// §4.5's examples. Unlisted types get no adjustment.
func TypeAdjustment(nodeType string) int {
	switch nodeType {
	case "script":
		return 50
	case "memo":
		return -10
	default:
		return 0
	}
}

// Hooks are the Queue's sole collaborators. The Queue never reaches into
// the State Manager, Node Executor Registry, or Error Handler directly —
// only through these, so it can be driven and tested in isolation.
type Hooks struct {
	// IsReady reports whether every dependency of nodeID is Completed.
	IsReady func(nodeID string) bool
	// NodeType returns the node's type tag, used for priority adjustment.
	NodeType func(nodeID string) string
	// Execute runs the node (via the Node Executor Registry) and returns
	// its output or a typed error.
	Execute func(ctx context.Context, nodeID string) (any, error)
	// OnRunning is invoked the instant a node is admitted, before Execute
	// is called.
	OnRunning func(nodeID string)
	// OnCompleted is invoked after a successful Execute.
	OnCompleted func(nodeID string, output any)
	// OnFailed is invoked after a failed Execute.
	OnFailed func(nodeID string, err error)
	// OnCancelled is invoked for a node whose cancellation was requested,
	// whether it was still pending or already running.
	OnCancelled func(nodeID string)
}

type item struct {
	nodeID   string
	level    int
	priority int
	seq      int
}

// Queue is the Execution Queue.
type Queue struct {
	mu sync.Mutex

	pending []*item
	running map[string]context.CancelFunc

	maxParallelism int
	seq            int
	hooks          Hooks
	parentCtx      context.Context

	cancelledNodes map[string]bool
	pendingRetries int

	doneOnce sync.Once
	done     chan struct{}
}

// New constructs a Queue bound to hooks, with the given parallelism
// bound and parent context (node-level contexts derive from this so a
// run-level cancellation propagates to every in-flight node).
func New(parentCtx context.Context, maxParallelism int, hooks Hooks) *Queue {
	if maxParallelism <= 0 {
		maxParallelism = 4
	}
	return &Queue{
		running:        make(map[string]context.CancelFunc),
		maxParallelism: maxParallelism,
		hooks:          hooks,
		parentCtx:      parentCtx,
		cancelledNodes: make(map[string]bool),
		done:           make(chan struct{}),
	}
}

// Done returns a channel closed once the run has terminated: the running
// set is empty, no pending node is discoverable as ready, and no retry is
// outstanding (invariant 5). Pending nodes that never become ready do not
// hold it open. Prefer this explicit signal over polling, per the design
// notes.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// EnqueuePlan admits every node in the plan at its level-derived
// priority.
func (q *Queue) EnqueuePlan(plan *graph.ExecutionPlan) {
	if plan == nil {
		q.checkTermination()
		return
	}
	for level, layer := range plan.Layers {
		for _, nodeID := range layer {
			q.Enqueue(nodeID, level, priorityForLevel(level)+TypeAdjustment(q.hooks.NodeType(nodeID)))
		}
	}
	q.dispatch()
}

// Enqueue admits a single node at an explicit level/priority, used both
// for initial planning and for retry/fallback re-entry.
func (q *Queue) Enqueue(nodeID string, level, priority int) {
	q.mu.Lock()
	q.pending = append(q.pending, &item{nodeID: nodeID, level: level, priority: priority, seq: q.seq})
	q.seq++
	q.mu.Unlock()
	q.dispatch()
}

// less orders items by priority descending, then level ascending, then
// insertion order ascending — the stable tie-break required by §5.
func less(a, b *item) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	if a.level != b.level {
		return a.level < b.level
	}
	return a.seq < b.seq
}

// dispatch runs one pass of the dispatch cycle: while the running set has
// capacity and a ready item exists, admit it. Remove-from-pending and
// insert-into-running happen under the same lock, without an intervening
// suspension point, so the admission invariant (|Running| <=
// max_parallelism) and single-flight invariant both hold continuously.
func (q *Queue) dispatch() {
	q.mu.Lock()
	sort.SliceStable(q.pending, func(i, j int) bool { return less(q.pending[i], q.pending[j]) })

	i := 0
	for i < len(q.pending) && len(q.running) < q.maxParallelism {
		it := q.pending[i]
		if !q.hooks.IsReady(it.nodeID) {
			i++
			continue
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		q.startLocked(it)
	}
	q.mu.Unlock()

	q.checkTermination()
}

// startLocked must be called with q.mu held.
func (q *Queue) startLocked(it *item) {
	ctx, cancel := context.WithCancel(q.parentCtx)
	q.running[it.nodeID] = cancel
	q.hooks.OnRunning(it.nodeID)

	go func() {
		output, err := q.hooks.Execute(ctx, it.nodeID)
		q.resolve(it.nodeID, output, err)
	}()
}

// resolve is invoked from the node's execution goroutine once it returns.
func (q *Queue) resolve(nodeID string, output any, err error) {
	q.mu.Lock()
	delete(q.running, nodeID)
	wasCancelled := q.cancelledNodes[nodeID]
	delete(q.cancelledNodes, nodeID)
	q.mu.Unlock()

	switch {
	case wasCancelled:
		q.hooks.OnCancelled(nodeID)
	case err != nil:
		q.hooks.OnFailed(nodeID, err)
	default:
		q.hooks.OnCompleted(nodeID, output)
	}

	// Re-run the dispatcher after every transition that could free
	// capacity or change readiness.
	q.dispatch()
}

// Cancel removes pending entries for nodeID (resolving them as
// cancelled) and, if nodeID is currently running, requests cancellation
// of its context without blocking on its eventual completion — the
// executor is expected to observe ctx.Done(), not be forcibly killed.
func (q *Queue) Cancel(nodeID string) {
	q.mu.Lock()
	removedPending := false
	filtered := q.pending[:0:0]
	for _, it := range q.pending {
		if it.nodeID == nodeID {
			removedPending = true
			continue
		}
		filtered = append(filtered, it)
	}
	q.pending = filtered

	cancel, running := q.running[nodeID]
	if running {
		q.cancelledNodes[nodeID] = true
		cancel()
	}
	q.mu.Unlock()

	if removedPending {
		q.hooks.OnCancelled(nodeID)
	}
	q.checkTermination()
}

// CancelAll cancels every pending and running node.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	for _, it := range pending {
		q.cancelledNodes[it.nodeID] = true
	}
	for nodeID, cancel := range q.running {
		q.cancelledNodes[nodeID] = true
		cancel()
	}
	q.mu.Unlock()

	for _, it := range pending {
		q.hooks.OnCancelled(it.nodeID)
	}
	q.checkTermination()
}

// checkTermination evaluates invariant 5 and signals Done exactly once.
func (q *Queue) checkTermination() {
	q.mu.Lock()
	runningEmpty := len(q.running) == 0
	retriesPending := q.pendingRetries > 0
	readyPending := false
	for _, it := range q.pending {
		if q.hooks.IsReady(it.nodeID) {
			readyPending = true
			break
		}
	}
	q.mu.Unlock()

	if runningEmpty && !readyPending && !retriesPending {
		q.doneOnce.Do(func() { close(q.done) })
	}
}

// BeginRetry records an in-flight retry backoff timer as outstanding work,
// so checkTermination won't signal Done while a failed node is merely
// waiting to be re-enqueued rather than truly finished. Callers must pair
// this with a later EndRetry once the node has been re-enqueued (or
// abandoned).
func (q *Queue) BeginRetry() {
	q.mu.Lock()
	q.pendingRetries++
	q.mu.Unlock()
}

// EndRetry releases a retry recorded with BeginRetry and re-evaluates
// termination.
func (q *Queue) EndRetry() {
	q.mu.Lock()
	q.pendingRetries--
	q.mu.Unlock()
	q.checkTermination()
}

// PendingLen and RunningLen expose queue sizes for observers that poll
// them; the Queue has no separate queue-size-change callback, since it
// already signals every transition via Hooks.
func (q *Queue) PendingLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) RunningLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.running)
}
