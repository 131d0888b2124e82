package tui

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodeforge/flowengine/internal/graph"
	"github.com/nodeforge/flowengine/internal/state"
)

func TestNewModelSeedsOrderFromPlanLayers(t *testing.T) {
	t.Parallel()
	plan := &graph.ExecutionPlan{Layers: [][]string{{"a"}, {"b", "c"}}}
	m := NewModel(plan)
	require.Equal(t, []string{"a", "b", "c"}, m.order)
	require.Equal(t, 3, m.total)
	require.Equal(t, state.StatusPending, m.statuses["b"])
}

func TestUpdateNodeCompleteIncrementsCompletedOnce(t *testing.T) {
	t.Parallel()
	plan := &graph.ExecutionPlan{Layers: [][]string{{"a"}}}
	m := NewModel(plan)

	updated, _ := m.Update(NodeCompleteMsg{NodeID: "a", Status: state.StatusCompleted})
	m2 := updated.(Model)
	require.Equal(t, 1, m2.completed)

	updated, _ = m2.Update(NodeCompleteMsg{NodeID: "a", Status: state.StatusCompleted})
	m3 := updated.(Model)
	require.Equal(t, 1, m3.completed)
}

func TestUpdateDoneMsgMarksFinished(t *testing.T) {
	t.Parallel()
	m := NewModel(nil)
	updated, _ := m.Update(DoneMsg{Stats: state.Stats{Completed: 2}})
	m2 := updated.(Model)
	require.True(t, m2.finished)
	require.Equal(t, 2, m2.stats.Completed)
}
