package tui

import (
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nodeforge/flowengine/internal/state"
)

// Update handles Bubbletea messages and advances the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progress.FrameMsg:
		barModel, cmd := m.bar.Update(msg)
		m.bar = barModel.(progress.Model)
		return m, cmd

	case NodeStartMsg:
		m.statuses[msg.NodeID] = state.StatusRunning
		return m, nil

	case NodeCompleteMsg:
		previous := m.statuses[msg.NodeID]
		m.statuses[msg.NodeID] = msg.Status
		if msg.Err != nil {
			m.errs[msg.NodeID] = msg.Err
		}
		if previous != state.StatusCompleted && previous != state.StatusFailed && previous != state.StatusCancelled {
			m.completed++
		}
		return m, nil

	case DoneMsg:
		m.finished = true
		m.stats = msg.Stats
		m.runErr = msg.Err
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.cancelled = true
			m.finished = true
			return m, tea.Quit
		}

	case tea.QuitMsg:
		m.finished = true
		return m, nil
	}

	return m, nil
}
