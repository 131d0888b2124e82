package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodeforge/flowengine/internal/graph"
)

// fakeRun provides a minimal, in-memory readiness/completion model so the
// Queue can be exercised without the Node Executor Registry or State
// Manager.
type fakeRun struct {
	mu        sync.Mutex
	completed map[string]bool
	types     map[string]string
	deps      map[string][]string
}

func newFakeRun() *fakeRun {
	return &fakeRun{completed: map[string]bool{}, types: map[string]string{}, deps: map[string][]string{}}
}

func (f *fakeRun) isReady(nodeID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deps[nodeID] {
		if !f.completed[d] {
			return false
		}
	}
	return true
}

func (f *fakeRun) complete(nodeID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[nodeID] = true
}

func (f *fakeRun) nodeType(nodeID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.types[nodeID]
}

func TestBoundedParallelismNeverExceedsMax(t *testing.T) {
	t.Parallel()

	run := newFakeRun()
	var running int32
	var maxSeen int32
	var wg sync.WaitGroup

	release := make(chan struct{})

	q := New(context.Background(), 3, Hooks{
		IsReady:  run.isReady,
		NodeType: run.nodeType,
		Execute: func(ctx context.Context, nodeID string) (any, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&maxSeen)
				if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&running, -1)
			return nil, nil
		},
		OnRunning:   func(string) {},
		OnCompleted: func(nodeID string, _ any) { run.complete(nodeID); wg.Done() },
		OnFailed:    func(string, error) { wg.Done() },
		OnCancelled: func(string) {},
	})

	ids := []string{"n1", "n2", "n3", "n4", "n5", "n6", "n7", "n8", "n9", "n10"}
	wg.Add(len(ids))
	for i, id := range ids {
		q.Enqueue(id, 0, priorityForLevel(0)+i)
	}

	// allow the dispatcher to admit up to maxParallelism before releasing.
	require.Eventually(t, func() bool { return q.RunningLen() == 3 }, time.Second, time.Millisecond)
	close(release)

	wg.Wait()
	<-q.Done()

	require.LessOrEqual(t, int(maxSeen), 3)
}

func TestPriorityLevelInsertionOrderTieBreak(t *testing.T) {
	t.Parallel()

	run := newFakeRun()
	var order []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	q := New(context.Background(), 1, Hooks{
		IsReady:  run.isReady,
		NodeType: run.nodeType,
		Execute: func(ctx context.Context, nodeID string) (any, error) {
			mu.Lock()
			order = append(order, nodeID)
			mu.Unlock()
			return nil, nil
		},
		OnRunning:   func(string) {},
		OnCompleted: func(nodeID string, _ any) { run.complete(nodeID); wg.Done() },
		OnFailed:    func(string, error) { wg.Done() },
		OnCancelled: func(string) {},
	})

	// Same priority/level: insertion order must win.
	wg.Add(3)
	q.mu.Lock()
	q.pending = append(q.pending,
		&item{nodeID: "first", level: 0, priority: 0, seq: 0},
		&item{nodeID: "second", level: 0, priority: 0, seq: 1},
		&item{nodeID: "third", level: 0, priority: 0, seq: 2},
	)
	q.seq = 3
	q.mu.Unlock()
	q.dispatch()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, time.Second, time.Millisecond)

	mu.Lock()
	require.Equal(t, []string{"first", "second", "third"}, order)
	mu.Unlock()
}

func TestEnqueuePlanAdjustsPriorityByLevelAndType(t *testing.T) {
	t.Parallel()

	run := newFakeRun()
	run.types["s1"] = "script"
	run.types["m1"] = "memo"

	q := New(context.Background(), 0, Hooks{
		IsReady:     func(string) bool { return false },
		NodeType:    run.nodeType,
		Execute:     func(ctx context.Context, nodeID string) (any, error) { return nil, nil },
		OnRunning:   func(string) {},
		OnCompleted: func(string, any) {},
		OnFailed:    func(string, error) {},
		OnCancelled: func(string) {},
	})

	plan := &graph.ExecutionPlan{Layers: [][]string{{"m1"}, {"s1"}}}
	q.EnqueuePlan(plan)

	q.mu.Lock()
	defer q.mu.Unlock()
	byID := map[string]*item{}
	for _, it := range q.pending {
		byID[it.nodeID] = it
	}
	require.Equal(t, priorityForLevel(0)-10, byID["m1"].priority)
	require.Equal(t, priorityForLevel(1)+50, byID["s1"].priority)
}

func TestCancelPendingResolvesAsCancelled(t *testing.T) {
	t.Parallel()

	run := newFakeRun()
	cancelled := make(chan string, 1)

	q := New(context.Background(), 0, Hooks{
		IsReady:     func(string) bool { return false },
		NodeType:    run.nodeType,
		Execute:     func(ctx context.Context, nodeID string) (any, error) { return nil, nil },
		OnRunning:   func(string) {},
		OnCompleted: func(string, any) {},
		OnFailed:    func(string, error) {},
		OnCancelled: func(nodeID string) { cancelled <- nodeID },
	})

	q.Enqueue("blocked", 0, 0)
	q.Cancel("blocked")

	select {
	case id := <-cancelled:
		require.Equal(t, "blocked", id)
	case <-time.After(time.Second):
		t.Fatal("expected cancellation callback")
	}
}

func TestCancelRunningRequestsContextCancellation(t *testing.T) {
	t.Parallel()

	run := newFakeRun()
	started := make(chan struct{})
	cancelled := make(chan struct{})
	resolved := make(chan struct{})

	q := New(context.Background(), 1, Hooks{
		IsReady:  run.isReady,
		NodeType: run.nodeType,
		Execute: func(ctx context.Context, nodeID string) (any, error) {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		},
		OnRunning:   func(string) {},
		OnCompleted: func(string, any) {},
		OnFailed:    func(string, error) {},
		OnCancelled: func(string) { close(resolved) },
	})

	q.Enqueue("n1", 0, 0)
	<-started
	q.Cancel("n1")

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("expected context cancellation")
	}
	select {
	case <-resolved:
	case <-time.After(time.Second):
		t.Fatal("expected OnCancelled callback")
	}
}

func TestDoneSignalsOnlyWhenNoReadyPendingRemains(t *testing.T) {
	t.Parallel()

	run := newFakeRun()
	run.deps["b"] = []string{"a"}
	var wg sync.WaitGroup
	wg.Add(2)

	q := New(context.Background(), 2, Hooks{
		IsReady:     run.isReady,
		NodeType:    run.nodeType,
		Execute:     func(ctx context.Context, nodeID string) (any, error) { return nil, nil },
		OnRunning:   func(string) {},
		OnCompleted: func(nodeID string, _ any) { run.complete(nodeID); wg.Done() },
		OnFailed:    func(string, error) { wg.Done() },
		OnCancelled: func(string) {},
	})

	q.Enqueue("a", 0, priorityForLevel(0))
	q.Enqueue("b", 1, priorityForLevel(1))

	select {
	case <-q.Done():
	case <-time.After(time.Second):
		t.Fatal("expected Done to close once both nodes complete")
	}
	wg.Wait()
}

func TestEmptyPlanSignalsDoneImmediately(t *testing.T) {
	t.Parallel()

	run := newFakeRun()
	q := New(context.Background(), 2, Hooks{
		IsReady:     run.isReady,
		NodeType:    run.nodeType,
		Execute:     func(ctx context.Context, nodeID string) (any, error) { return nil, nil },
		OnRunning:   func(string) {},
		OnCompleted: func(string, any) {},
		OnFailed:    func(string, error) {},
		OnCancelled: func(string) {},
	})

	q.EnqueuePlan(&graph.ExecutionPlan{})

	select {
	case <-q.Done():
	case <-time.After(time.Second):
		t.Fatal("expected immediate Done for an empty plan")
	}
}
