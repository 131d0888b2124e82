package state

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nodeforge/flowengine/internal/graph"
)

func newTestManager(t *testing.T) (*Manager, *ExecutionContext) {
	t.Helper()
	ctx := NewExecutionContext("run-1", []graph.Node{{ID: "A"}, {ID: "B"}}, nil)
	m := NewManager(ctx, zerolog.Nop())
	return m, ctx
}

func TestUpdateAppliesPartialPatch(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)

	now := time.Now()
	m.Update("A", func(s *NodeState) {
		s.Status = StatusRunning
		s.StartTime = &now
	})

	s, ok := m.ctx.State("A")
	require.True(t, ok)
	require.Equal(t, StatusRunning, s.Status)
	require.NotNil(t, s.StartTime)
}

func TestUpdateNotifiesListenersAndSurvivesPanic(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)

	var seen []string
	m.Subscribe(func(s NodeState) { seen = append(seen, s.NodeID) })
	m.Subscribe(func(s NodeState) { panic("boom") })
	m.Subscribe(func(s NodeState) { seen = append(seen, "second:"+s.NodeID) })

	require.NotPanics(t, func() {
		m.Update("A", func(s *NodeState) { s.Status = StatusCompleted })
	})
	require.Equal(t, []string{"A", "second:A"}, seen)
}

func TestProgressComputesPercentage(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)

	m.Update("A", func(s *NodeState) { s.Status = StatusCompleted })
	p := m.Progress()
	require.Equal(t, 1, p.Completed)
	require.Equal(t, 2, p.Total)
	require.InDelta(t, 50.0, p.Percentage, 0.001)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	t.Parallel()
	m, ctx := newTestManager(t)

	ctx.SetInput("B", "input", "hello")
	m.Update("A", func(s *NodeState) { s.Status = StatusCompleted; s.Output = "hi" })

	snap := m.Snapshot()
	require.Equal(t, "run-1", snap.ExecutionID)
	require.Equal(t, "hello", snap.GlobalData["B_inputs"]["input"])

	m.Update("A", func(s *NodeState) { s.Status = StatusFailed })
	m.Restore(snap)

	restored, _ := ctx.State("A")
	require.Equal(t, StatusCompleted, restored.Status)
}

func TestHistoryReplaysPatchesForward(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)

	m.Update("A", func(s *NodeState) { s.Status = StatusRunning })
	require.NoError(t, m.RecordSnapshot())

	m.Update("A", func(s *NodeState) { s.Status = StatusCompleted })
	require.NoError(t, m.RecordSnapshot())

	history, err := m.History()
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, StatusRunning, history[0].NodeStates["A"].Status)
	require.Equal(t, StatusCompleted, history[1].NodeStates["A"].Status)
}

func TestStartAutoSnapshotStopsWhenRunEnds(t *testing.T) {
	t.Parallel()
	m, ctx := newTestManager(t)
	m.autoSnapshotInterval = 10 * time.Millisecond

	ctx.setRunning(true, time.Now())
	m.StartAutoSnapshot(context.Background())

	time.Sleep(30 * time.Millisecond)
	ctx.setRunning(false, time.Now())
	time.Sleep(30 * time.Millisecond)

	history, err := m.History()
	require.NoError(t, err)
	require.NotEmpty(t, history)

	n := len(history)
	time.Sleep(30 * time.Millisecond)
	history, err = m.History()
	require.NoError(t, err)
	require.Len(t, history, n)
}
