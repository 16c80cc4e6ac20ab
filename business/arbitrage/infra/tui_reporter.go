package infra

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/dex-arbitrage/pkg/ui"
)

// TUIReporter forwards cycle reports to the Bubble Tea dashboard.
type TUIReporter struct {
	send func(tea.Msg)
}

// NewTUIReporter creates a reporter sending to the running ui.Program.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{send: ui.Send}
}

// Start implements app.Reporter.
func (r *TUIReporter) Start(ctx context.Context) error {
	return nil
}

// Report sends the cycle to the dashboard.
func (r *TUIReporter) Report(ctx context.Context, report domain.CycleReport) error {
	r.send(ui.CycleMsg{Report: report})
	return nil
}

// Stop implements app.Reporter. The program is owned by main.
func (r *TUIReporter) Stop() error {
	return nil
}
