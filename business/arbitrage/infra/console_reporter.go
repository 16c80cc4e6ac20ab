// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
)

var (
	colorPrimary   = lipgloss.Color("#7C3AED")
	colorSecondary = lipgloss.Color("#10B981")
	colorDanger    = lipgloss.Color("#EF4444")
	colorWarning   = lipgloss.Color("#F59E0B")
	colorMuted     = lipgloss.Color("#6B7280")
	colorBorder    = lipgloss.Color("#374151")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorPrimary).
			Padding(0, 2)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	labelStyle    = lipgloss.NewStyle().Foreground(colorMuted).Width(14)
	positiveStyle = lipgloss.NewStyle().Foreground(colorSecondary)
	negativeStyle = lipgloss.NewStyle().Foreground(colorDanger)
	warnStyle     = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorMuted)
)

// ConsoleReporter prints one box per cycle with the stage counts and the
// head of the queue. Cycles with nothing considered print a single line.
type ConsoleReporter struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

// NewConsoleReporter creates a new ConsoleReporter writing to stdout.
func NewConsoleReporter(verbose bool) *ConsoleReporter {
	return newConsoleReporter(os.Stdout, verbose)
}

func newConsoleReporter(out io.Writer, verbose bool) *ConsoleReporter {
	return &ConsoleReporter{out: out, verbose: verbose}
}

// Start initializes the console reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, titleStyle.Render("DEX Arbitrage Pipeline Started"))
	return nil
}

// Report prints the cycle report.
func (r *ConsoleReporter) Report(ctx context.Context, report domain.CycleReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if report.Considered == 0 && report.Err == nil && !r.verbose {
		line := fmt.Sprintf("cycle %d  states %d  failures %d  no spread",
			report.CycleID, report.States, report.FetchFailures+report.DecodeErrors)
		_, err := fmt.Fprintln(r.out, mutedStyle.Render(line))
		return err
	}

	_, err := fmt.Fprintln(r.out, boxStyle.Render(renderReport(report)))
	return err
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, titleStyle.Render("DEX Arbitrage Pipeline Stopped"))
	return nil
}

func renderReport(report domain.CycleReport) string {
	var b strings.Builder

	header := fmt.Sprintf("Cycle #%d  %s  %s", report.CycleID,
		report.StartedAt.Format(time.TimeOnly), report.Duration.Truncate(time.Millisecond))
	if report.Partial {
		header += "  " + warnStyle.Render("PARTIAL")
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render(header))
	b.WriteString("\n")

	row(&b, "Venues", fmt.Sprintf("%d/%d ok, %d fetch failed, %d decode errors",
		report.States, report.Targets, report.FetchFailures, report.DecodeErrors))
	row(&b, "Filter", fmt.Sprintf("%d considered, %d passed%s",
		report.Considered, report.Passed, reasonList(report.FilterRejected)))
	row(&b, "Scoring", fmt.Sprintf("%d scored, %d degraded", report.Scored, report.Degraded))
	row(&b, "Discovery", fmt.Sprintf("%d in, %d queued%s",
		report.DiscoveryIn, report.Queued, reasonList(report.DiscoveryDrop)))

	ex := report.Execution
	if ex.Dequeued > 0 {
		row(&b, "Execution", fmt.Sprintf("%d executed, %d confirmed, %d failed, %d timed out, %d stale",
			ex.Executed, ex.Confirmed, ex.Failed, ex.TimedOut, ex.Stale))
		row(&b, "Realized", signed(ex.RealizedProfitSOL.StringFixed(6)+" SOL", ex.RealizedProfitSOL.IsNegative()))
		if !ex.SimulatedProfitSOL.IsZero() {
			row(&b, "Simulated", mutedStyle.Render(ex.SimulatedProfitSOL.StringFixed(6)+" SOL"))
		}
	}

	if top := report.Top; top != nil {
		b.WriteString("\n")
		row(&b, "Best", fmt.Sprintf("%s  %s", top.Pair, top.RouteString()))
		row(&b, "Net", signed(fmt.Sprintf("%s bps  %s SOL",
			top.NetProfitBps.StringFixed(2), top.NetProfitSOL.StringFixed(6)), top.NetProfitBps.IsNegative()))
		conf := top.Confidence.StringFixed(2) + " (" + top.ScorerVersion + ")"
		if top.Degraded {
			conf += " " + warnStyle.Render("degraded")
		}
		row(&b, "Confidence", conf)
		row(&b, "Rank", top.Rank.StringFixed(4))
	}

	if report.Err != nil {
		b.WriteString("\n")
		b.WriteString(negativeStyle.Render("accounting: " + report.Err.Error()))
	}

	return strings.TrimRight(b.String(), "\n")
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}

func signed(s string, negative bool) string {
	if negative {
		return negativeStyle.Render(s)
	}
	return positiveStyle.Render(s)
}

func reasonList(counts map[domain.Reason]int) string {
	if len(counts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(counts))
	for _, reason := range domain.SortedReasons(counts) {
		parts = append(parts, fmt.Sprintf("%s=%d", reason, counts[reason]))
	}
	return mutedStyle.Render(" (" + strings.Join(parts, ", ") + ")")
}
