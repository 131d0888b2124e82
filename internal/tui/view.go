package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nodeforge/flowengine/internal/state"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Faint(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// View renders the current run state.
func (m Model) View() string {
	var sections []string

	sections = append(sections, titleStyle.Render(fmt.Sprintf("workflowctl • %d/%d nodes", m.completed, m.total)))

	if m.total > 0 {
		ratio := math.Min(1.0, float64(m.completed)/float64(m.total))
		sections = append(sections, m.bar.ViewAs(ratio))
	}

	sections = append(sections, sectionStyle.Render("Nodes"))
	for _, id := range m.order {
		sections = append(sections, renderNodeLine(id, m.statuses[id], m.errs[id]))
	}

	if m.finished {
		sections = append(sections, sectionStyle.Render("Summary"), m.renderSummary())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderNodeLine(id string, status state.Status, err error) string {
	icon := statusIcon(status)
	line := fmt.Sprintf(" %s %s", icon, id)
	if err != nil {
		line += failStyle.Render(fmt.Sprintf(" (%s)", err.Error()))
	}
	return line
}

func statusIcon(s state.Status) string {
	switch s {
	case state.StatusCompleted:
		return okStyle.Render("✔")
	case state.StatusFailed:
		return failStyle.Render("✘")
	case state.StatusCancelled:
		return failStyle.Render("⊘")
	case state.StatusRunning:
		return "…"
	default:
		return "·"
	}
}

func (m Model) renderSummary() string {
	if m.runErr != nil {
		return failStyle.Render(m.runErr.Error())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "completed=%d failed=%d cancelled=%d wall=%s", m.stats.Completed, m.stats.Failed, m.stats.Cancelled, m.stats.WallTime)
	if m.cancelled {
		b.WriteString(" (cancelled)")
	}
	return b.String()
}
