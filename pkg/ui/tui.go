package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/dex-arbitrage/pkg/ui/components"
)

const (
	historySize    = 200
	historyVisible = 12
	maxErrors      = 3
)

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	cycles *components.CyclesComponent
	funnel *components.FunnelComponent
	totals *components.TotalsComponent
	status *components.StatusComponent

	keys KeyMap
	help help.Model

	live     bool
	paused   bool
	quitting bool
	width    int

	sum       components.Totals
	top       *domain.UnifiedOpportunity
	lastCycle time.Time
	errors    []ErrorEntry
}

// New creates a new TUI model. live marks on-chain execution.
func New(live bool) Model {
	return Model{
		cycles: components.NewCyclesComponent(historySize, historyVisible),
		funnel: components.NewFunnelComponent(),
		totals: components.NewTotalsComponent(),
		status: components.NewStatusComponent(),
		keys:   DefaultKeyMap(),
		help:   help.New(),
		live:   live,
		sum: components.Totals{
			RealizedProfitSOL:  decimal.Zero,
			SimulatedProfitSOL: decimal.Zero,
		},
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Clear):
			m.cycles.Clear()
			m.errors = nil
		case key.Matches(msg, m.keys.Up):
			m.cycles.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.cycles.ScrollDown()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case TickMsg:
		return m, tickCmd()

	case CycleMsg:
		m.applyCycle(msg.Report)

	case SlotMsg:
		m.status.Update(components.SlotStatus{
			State:      string(msg.Status.State),
			Slot:       msg.Status.LastSlot,
			LastUpdate: msg.Status.LastUpdate,
			Reconnects: msg.Status.Reconnects,
			UsingHTTP:  msg.Status.UsingHTTP,
		})

	case ErrorMsg:
		m.addError(msg.Error.Error())
	}

	return m, nil
}

// applyCycle folds one report into the totals. A paused view keeps
// counting but does not redraw the history or the funnel.
func (m *Model) applyCycle(r domain.CycleReport) {
	m.sum.Cycles++
	if r.Partial {
		m.sum.PartialCycles++
	}
	if r.Err != nil {
		m.sum.AccountingFailures++
		m.addError(fmt.Sprintf("cycle %d: %v", r.CycleID, r.Err))
	}
	m.sum.Queued += int64(r.Queued)
	m.sum.Confirmed += int64(r.Execution.Confirmed)
	m.sum.Failed += int64(r.Execution.Failed + r.Execution.TimedOut)
	m.sum.Stale += int64(r.Execution.Stale)
	m.sum.RealizedProfitSOL = m.sum.RealizedProfitSOL.Add(r.Execution.RealizedProfitSOL)
	m.sum.SimulatedProfitSOL = m.sum.SimulatedProfitSOL.Add(r.Execution.SimulatedProfitSOL)
	m.totals.Update(m.sum)
	m.lastCycle = r.StartedAt.Add(r.Duration)

	if m.paused {
		return
	}

	row := components.CycleRow{
		CycleID:    r.CycleID,
		Time:       r.StartedAt.Format("15:04:05"),
		DurationMs: r.Duration.Milliseconds(),
		Considered: r.Considered,
		Passed:     r.Passed,
		Queued:     r.Queued,
		Confirmed:  r.Execution.Confirmed,
		Partial:    r.Partial,
		Failed:     r.Err != nil,
	}
	if r.Top != nil {
		row.BestNetBps = r.Top.NetProfitBps
		row.BestPair = r.Top.Pair
	}
	m.cycles.Add(row)
	m.top = r.Top
	m.funnel.Update(stages(r))
}

func (m *Model) addError(msg string) {
	m.errors = append(m.errors, ErrorEntry{Message: msg, Timestamp: time.Now()})
	if len(m.errors) > maxErrors {
		m.errors = m.errors[len(m.errors)-maxErrors:]
	}
}

func stages(r domain.CycleReport) []components.Stage {
	return []components.Stage{
		{Name: "targets", Count: r.Targets, Drops: failureDrops(r)},
		{Name: "states", Count: r.States},
		{Name: "considered", Count: r.Considered, Drops: reasonDrops(r.FilterRejected)},
		{Name: "passed", Count: r.Passed},
		{Name: "scored", Count: r.Scored, Drops: degradedDrops(r.Degraded)},
		{Name: "queued", Count: r.Queued, Drops: reasonDrops(r.DiscoveryDrop)},
		{Name: "executed", Count: r.Execution.Executed},
		{Name: "confirmed", Count: r.Execution.Confirmed},
	}
}

func failureDrops(r domain.CycleReport) []string {
	var out []string
	if r.FetchFailures > 0 {
		out = append(out, fmt.Sprintf("fetch %d", r.FetchFailures))
	}
	if r.DecodeErrors > 0 {
		out = append(out, fmt.Sprintf("decode %d", r.DecodeErrors))
	}
	return out
}

func degradedDrops(n int) []string {
	if n == 0 {
		return nil
	}
	return []string{fmt.Sprintf("degraded %d", n)}
}

func reasonDrops(counts map[domain.Reason]int) []string {
	out := make([]string, 0, len(counts))
	for reason, n := range counts {
		if n > 0 {
			out = append(out, fmt.Sprintf("%s %d", reason, n))
		}
	}
	sort.Strings(out)
	return out
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	var b strings.Builder

	mode := ModeSimulation.Render("SIMULATION")
	if m.live {
		mode = ModeLive.Render("LIVE")
	}
	b.WriteString(TitleStyle.Render("DEX Arbitrage Pipeline"))
	b.WriteString(" ")
	b.WriteString(mode)
	if m.paused {
		b.WriteString(" ")
		b.WriteString(PauseStyle.Render("⏸ PAUSED"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.status.View())
	if !m.lastCycle.IsZero() {
		b.WriteString(MutedValue.Render(fmt.Sprintf("  │  last cycle %s ago", time.Since(m.lastCycle).Round(time.Second))))
	}
	b.WriteString("\n\n")

	left := m.funnel.View() + "\n\n" + m.renderTop()
	right := m.cycles.View()
	if m.width > 100 {
		half := m.width/2 - 2
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			BoxStyle.Width(half).Render(left),
			BoxStyle.Width(half).Render(right),
		))
	} else {
		b.WriteString(BoxStyle.Render(left))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Render(right))
	}
	b.WriteString("\n")
	b.WriteString(BoxStyle.Render(m.totals.View()))
	b.WriteString("\n")

	for _, e := range m.errors {
		b.WriteString(ErrorStyle.Render("  • " + e.Message))
		b.WriteString(MutedValue.Render(fmt.Sprintf(" (%s ago)", time.Since(e.Timestamp).Round(time.Second))))
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderTop() string {
	header := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Render("QUEUE HEAD")
	if m.top == nil {
		return header + "\n" + MutedValue.Render("empty")
	}
	t := m.top
	degraded := ""
	if t.Degraded {
		degraded = " (degraded)"
	}
	return header + "\n" +
		fmt.Sprintf("%s  %s\n", t.Pair, strings.Join(t.Route, " → ")) +
		fmt.Sprintf("net %s bps  %s SOL\n", t.NetProfitBps.StringFixed(2), t.NetProfitSOL.StringFixed(6)) +
		fmt.Sprintf("confidence %s%s  rank %s", t.Confidence.StringFixed(1), degraded, t.Rank.StringFixed(2))
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// NewProgram creates the dashboard program and makes it the Send target.
func NewProgram(live bool) *tea.Program {
	Program = tea.NewProgram(New(live), tea.WithAltScreen())
	return Program
}

// Send sends a message to the running program. It is a no-op without one.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
