package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
)

func report(id uint64) domain.CycleReport {
	return domain.CycleReport{
		CycleID:        id,
		StartedAt:      time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		Duration:       120 * time.Millisecond,
		Targets:        4,
		States:         4,
		Considered:     6,
		Passed:         2,
		FilterRejected: map[domain.Reason]int{domain.ReasonFeeFloor: 4},
		Scored:         2,
		Queued:         1,
		DiscoveryDrop:  map[domain.Reason]int{domain.ReasonDuplicateOf: 1},
		Execution: domain.ExecutionSummary{
			Executed:           1,
			Confirmed:          1,
			RealizedProfitSOL:  decimal.Zero,
			SimulatedProfitSOL: decimal.RequireFromString("0.01"),
		},
		Top: &domain.UnifiedOpportunity{
			Pair:         "SOL/USDC",
			Route:        []string{"raydium:poolA", "orca:poolB"},
			NetProfitBps: decimal.RequireFromString("42"),
			NetProfitSOL: decimal.RequireFromString("0.01"),
			Confidence:   decimal.RequireFromString("0.9"),
			Rank:         decimal.RequireFromString("37.8"),
		},
	}
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_CycleMsg(t *testing.T) {
	m := New(false)
	m = update(m, CycleMsg{Report: report(1)})
	m = update(m, CycleMsg{Report: report(2)})

	if m.sum.Cycles != 2 {
		t.Errorf("Cycles = %d, want 2", m.sum.Cycles)
	}
	if m.sum.Confirmed != 2 {
		t.Errorf("Confirmed = %d, want 2", m.sum.Confirmed)
	}
	if want := decimal.RequireFromString("0.02"); !m.sum.SimulatedProfitSOL.Equal(want) {
		t.Errorf("SimulatedProfitSOL = %s, want %s", m.sum.SimulatedProfitSOL, want)
	}
	if m.cycles.Len() != 2 {
		t.Errorf("history = %d, want 2", m.cycles.Len())
	}

	view := m.View()
	for _, want := range []string{"SIMULATION", "SOL/USDC", "fee-floor 4"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestModel_PausedKeepsCounting(t *testing.T) {
	m := New(true)
	m = update(m, keyPress("p"))
	if !m.paused {
		t.Fatal("paused = false after p")
	}

	m = update(m, CycleMsg{Report: report(1)})
	if m.sum.Cycles != 1 {
		t.Errorf("Cycles = %d, want 1", m.sum.Cycles)
	}
	if m.cycles.Len() != 0 {
		t.Errorf("history = %d, want 0 while paused", m.cycles.Len())
	}
}

func TestModel_Errors(t *testing.T) {
	m := New(false)
	for i := 0; i < maxErrors+2; i++ {
		m = update(m, ErrorMsg{Error: errors.New("rpc down")})
	}
	if len(m.errors) != maxErrors {
		t.Errorf("errors = %d, want %d", len(m.errors), maxErrors)
	}

	failed := report(3)
	failed.Err = errors.New("stage accounting mismatch")
	m = update(m, CycleMsg{Report: failed})
	if m.sum.AccountingFailures != 1 {
		t.Errorf("AccountingFailures = %d, want 1", m.sum.AccountingFailures)
	}

	m = update(m, keyPress("c"))
	if len(m.errors) != 0 || m.cycles.Len() != 0 {
		t.Errorf("after clear errors = %d history = %d, want 0 and 0", len(m.errors), m.cycles.Len())
	}
}

func TestModel_Quit(t *testing.T) {
	next, cmd := New(false).Update(keyPress("q"))
	if cmd == nil {
		t.Fatal("Update(q) returned no command")
	}
	if !next.(Model).quitting {
		t.Error("quitting = false after q")
	}
	if got := next.View(); !strings.Contains(got, "Goodbye") {
		t.Errorf("View() = %q, want goodbye", got)
	}
}
