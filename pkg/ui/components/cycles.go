// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// CycleRow is one finished cycle in the history list.
type CycleRow struct {
	CycleID    uint64
	Time       string
	DurationMs int64
	Considered int
	Passed     int
	Queued     int
	Confirmed  int
	// BestNetBps is the net profit of the queue head, zero when empty.
	BestNetBps decimal.Decimal
	BestPair   string
	Partial    bool
	Failed     bool // accounting check failed
}

// CyclesComponent renders the most recent cycles, newest first.
type CyclesComponent struct {
	rows    []CycleRow
	maxRows int
	offset  int
	visible int
}

// NewCyclesComponent creates a history keeping maxRows cycles.
func NewCyclesComponent(maxRows, visible int) *CyclesComponent {
	return &CyclesComponent{maxRows: maxRows, visible: visible}
}

// Add prepends a cycle.
func (c *CyclesComponent) Add(row CycleRow) {
	c.rows = append([]CycleRow{row}, c.rows...)
	if len(c.rows) > c.maxRows {
		c.rows = c.rows[:c.maxRows]
	}
	if c.offset > 0 {
		c.offset = min(c.offset+1, c.maxOffset())
	}
}

// Len returns the number of stored cycles.
func (c *CyclesComponent) Len() int {
	return len(c.rows)
}

// Clear removes all cycles.
func (c *CyclesComponent) Clear() {
	c.rows = nil
	c.offset = 0
}

// ScrollUp moves the window towards newer cycles.
func (c *CyclesComponent) ScrollUp() {
	if c.offset > 0 {
		c.offset--
	}
}

// ScrollDown moves the window towards older cycles.
func (c *CyclesComponent) ScrollDown() {
	if c.offset < c.maxOffset() {
		c.offset++
	}
}

func (c *CyclesComponent) maxOffset() int {
	return max(len(c.rows)-c.visible, 0)
}

// View renders the cycles component.
func (c *CyclesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	goodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("CYCLES (last %d)", c.maxRows)))
	sb.WriteString("\n")

	if len(c.rows) == 0 {
		sb.WriteString(mutedStyle.Render("Waiting for the first cycle..."))
		return sb.String()
	}

	sb.WriteString(mutedStyle.Render(fmt.Sprintf("%7s %8s %6s %5s %5s %6s %5s  %s",
		"cycle", "time", "ms", "cons", "pass", "queue", "conf", "best")))
	sb.WriteString("\n")

	end := min(c.offset+c.visible, len(c.rows))
	for _, row := range c.rows[c.offset:end] {
		best := mutedStyle.Render("-")
		if row.Queued > 0 {
			best = goodStyle.Render(fmt.Sprintf("%s %+.1fbp", row.BestPair, row.BestNetBps.InexactFloat64()))
		}

		flag := " "
		switch {
		case row.Failed:
			flag = badStyle.Render("!")
		case row.Partial:
			flag = warnStyle.Render("~")
		}

		sb.WriteString(fmt.Sprintf("%7d %8s %6d %5d %5d %6d %5d %s %s\n",
			row.CycleID, row.Time, row.DurationMs,
			row.Considered, row.Passed, row.Queued, row.Confirmed, flag, best))
	}

	if len(c.rows) > c.visible {
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("%d-%d of %d", c.offset+1, end, len(c.rows))))
	}
	return sb.String()
}
