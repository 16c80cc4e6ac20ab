package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// Totals holds running totals since startup.
type Totals struct {
	Cycles             int64
	PartialCycles      int64
	AccountingFailures int64
	Queued             int64
	Confirmed          int64
	Failed             int64
	Stale              int64
	RealizedProfitSOL  decimal.Decimal
	SimulatedProfitSOL decimal.Decimal
}

// TotalsComponent renders running totals.
type TotalsComponent struct {
	totals Totals
}

// NewTotalsComponent creates a new totals component.
func NewTotalsComponent() *TotalsComponent {
	return &TotalsComponent{}
}

// Update replaces the totals.
func (t *TotalsComponent) Update(totals Totals) {
	t.totals = totals
}

// View renders the totals component.
func (t *TotalsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	profitStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)

	num := func(n int64) string { return valueStyle.Render(fmt.Sprintf("%d", n)) }

	failures := num(t.totals.AccountingFailures)
	if t.totals.AccountingFailures > 0 {
		failures = errorStyle.Render(fmt.Sprintf("%d", t.totals.AccountingFailures))
	}

	return style.Render("TOTALS") + "\n" +
		fmt.Sprintf("Cycles: %s  │  Partial: %s  │  Accounting failures: %s\n",
			num(t.totals.Cycles), num(t.totals.PartialCycles), failures) +
		fmt.Sprintf("Queued: %s  │  Confirmed: %s  │  Failed: %s  │  Stale: %s\n",
			num(t.totals.Queued), num(t.totals.Confirmed), num(t.totals.Failed), num(t.totals.Stale)) +
		fmt.Sprintf("Realized: %s SOL  │  Simulated: %s SOL",
			profitStyle.Render(t.totals.RealizedProfitSOL.StringFixed(6)),
			valueStyle.Render(t.totals.SimulatedProfitSOL.StringFixed(6)))
}
