package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// SlotStatus is the slot feed state shown in the status bar.
type SlotStatus struct {
	State      string
	Slot       uint64
	LastUpdate time.Time
	Reconnects int
	UsingHTTP  bool
}

// StatusComponent renders the slot feed status.
type StatusComponent struct {
	status SlotStatus
	now    func() time.Time
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{status: SlotStatus{State: "disconnected"}, now: time.Now}
}

// Update replaces the slot status.
func (s *StatusComponent) Update(status SlotStatus) {
	s.status = status
}

// View renders the status component.
func (s *StatusComponent) View() string {
	var style lipgloss.Style
	icon := "○"
	switch s.status.State {
	case "connected":
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
		icon = "●"
	case "connecting", "reconnecting":
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
		icon = "◐"
	default:
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	}

	line := style.Render(fmt.Sprintf("%s slot feed %s", icon, s.status.State))
	if s.status.Slot > 0 {
		line += fmt.Sprintf("  slot #%d", s.status.Slot)
	}
	if s.status.UsingHTTP {
		line += "  (http poll)"
	}
	if s.status.Reconnects > 0 {
		line += fmt.Sprintf("  reconnects %d", s.status.Reconnects)
	}
	if !s.status.LastUpdate.IsZero() {
		line += fmt.Sprintf("  %s ago", s.now().Sub(s.status.LastUpdate).Round(100*time.Millisecond))
	}
	return line
}
