// Package tui implements the interactive progress display `workflowctl
// run` attaches when stdout is a terminal.
package tui

import (
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nodeforge/flowengine/internal/graph"
	"github.com/nodeforge/flowengine/internal/state"
)

// NodeStartMsg reports that a node began executing.
type NodeStartMsg struct {
	NodeID string
}

// NodeCompleteMsg reports a node's terminal status.
type NodeCompleteMsg struct {
	NodeID string
	Status state.Status
	Err    error
}

// DoneMsg reports the whole run has finished.
type DoneMsg struct {
	Stats state.Stats
	Err   error
}

// Model is the Bubbletea state for a run's progress display.
type Model struct {
	order     []string
	statuses  map[string]state.Status
	errs      map[string]error
	total     int
	completed int
	finished  bool
	cancelled bool
	stats     state.Stats
	runErr    error
	bar       progress.Model
}

// NewModel seeds a Model from the plan's node set, in plan order.
func NewModel(plan *graph.ExecutionPlan) Model {
	m := Model{
		statuses: make(map[string]state.Status),
		errs:     make(map[string]error),
		bar:      newProgressBar(),
	}
	if plan == nil {
		return m
	}
	for _, layer := range plan.Layers {
		for _, id := range layer {
			m.order = append(m.order, id)
			m.statuses[id] = state.StatusPending
		}
	}
	m.total = len(m.order)
	return m
}

func (m Model) Init() tea.Cmd { return nil }

func newProgressBar() progress.Model {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 30
	return bar
}
