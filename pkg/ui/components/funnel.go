package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Stage is one step of the opportunity funnel.
type Stage struct {
	Name  string
	Count int
	// Drops lists the losses into the next stage, "reason count" each.
	Drops []string
}

// FunnelComponent renders the stage counts of the latest cycle.
type FunnelComponent struct {
	stages []Stage
}

// NewFunnelComponent creates a new funnel component.
func NewFunnelComponent() *FunnelComponent {
	return &FunnelComponent{}
}

// Update replaces the stages.
func (f *FunnelComponent) Update(stages []Stage) {
	f.stages = stages
}

// View renders the funnel component.
func (f *FunnelComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Width(12)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true).Width(6)
	dropStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("STAGES"))
	sb.WriteString("\n")

	if len(f.stages) == 0 {
		sb.WriteString(labelStyle.Render("no data"))
		return sb.String()
	}

	for _, s := range f.stages {
		sb.WriteString(labelStyle.Render(s.Name))
		sb.WriteString(valueStyle.Render(fmt.Sprintf("%d", s.Count)))
		if len(s.Drops) > 0 {
			sb.WriteString(dropStyle.Render(strings.Join(s.Drops, ", ")))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
