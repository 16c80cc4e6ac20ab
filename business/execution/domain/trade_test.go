package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arbitrage/internal/apperror"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTrade() *TradeExecution {
	return NewTradeExecution("0xabc", 1<<20|1, 1, "SOL/USDC",
		[]string{"raydium:poolA", "orca:poolB"},
		decimal.RequireFromString("1"), decimal.RequireFromString("0.0115"), false, t0)
}

func TestTradeExecution_Transitions(t *testing.T) {
	tests := []struct {
		name       string
		steps      func(tr *TradeExecution) error
		wantStatus Status
		wantErr    bool
	}{
		{
			name: "confirmed",
			steps: func(tr *TradeExecution) error {
				if err := tr.MarkSubmitted("sig1", t0); err != nil {
					return err
				}
				return tr.Confirm(decimal.RequireFromString("0.011"), t0)
			},
			wantStatus: StatusConfirmed,
		},
		{
			name: "failed_before_submit",
			steps: func(tr *TradeExecution) error {
				return tr.Fail("stale", t0)
			},
			wantStatus: StatusFailed,
		},
		{
			name: "timed_out",
			steps: func(tr *TradeExecution) error {
				if err := tr.MarkSubmitted("sig1", t0); err != nil {
					return err
				}
				return tr.TimeOut(t0)
			},
			wantStatus: StatusTimedOut,
		},
		{
			name: "confirm_without_submit",
			steps: func(tr *TradeExecution) error {
				return tr.Confirm(decimal.RequireFromString("1"), t0)
			},
			wantStatus: StatusPending,
			wantErr:    true,
		},
		{
			name: "timeout_without_submit",
			steps: func(tr *TradeExecution) error {
				return tr.TimeOut(t0)
			},
			wantStatus: StatusPending,
			wantErr:    true,
		},
		{
			name: "terminal_is_immutable",
			steps: func(tr *TradeExecution) error {
				if err := tr.MarkSubmitted("sig1", t0); err != nil {
					return err
				}
				if err := tr.Fail("InstructionError", t0); err != nil {
					return err
				}
				return tr.Confirm(decimal.RequireFromString("1"), t0)
			},
			wantStatus: StatusFailed,
			wantErr:    true,
		},
		{
			name: "no_double_submit",
			steps: func(tr *TradeExecution) error {
				if err := tr.MarkSubmitted("sig1", t0); err != nil {
					return err
				}
				return tr.MarkSubmitted("sig2", t0)
			},
			wantStatus: StatusSubmitted,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTrade()
			err := tt.steps(tr)

			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !apperror.HasCode(err, apperror.CodeInvalidTransition) {
				t.Errorf("error = %v, want INVALID_TRANSITION", err)
			}
			if tr.Status() != tt.wantStatus {
				t.Errorf("Status() = %s, want %s", tr.Status(), tt.wantStatus)
			}
		})
	}
}

func TestTradeExecution_RealizedProfitOnlyOnConfirm(t *testing.T) {
	tr := newTrade()
	if err := tr.MarkSubmitted("sig1", t0); err != nil {
		t.Fatal(err)
	}
	if err := tr.Fail("InstructionError", t0.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if !tr.RealizedProfitSOL().IsZero() {
		t.Errorf("RealizedProfitSOL() = %s, want 0 for a failed trade", tr.RealizedProfitSOL())
	}
	if tr.Signature() != "sig1" {
		t.Errorf("Signature() = %q, want sig1", tr.Signature())
	}

	tr = newTrade()
	tr.MarkSubmitted("sig2", t0)
	tr.Confirm(decimal.RequireFromString("0.0098"), t0.Add(time.Second))
	if !tr.RealizedProfitSOL().Equal(decimal.RequireFromString("0.0098")) {
		t.Errorf("RealizedProfitSOL() = %s, want 0.0098", tr.RealizedProfitSOL())
	}
}

func TestTradeExecution_RecordAttempt(t *testing.T) {
	tr := newTrade()
	for range 2 {
		if err := tr.RecordAttempt(); err != nil {
			t.Fatalf("RecordAttempt() error = %v", err)
		}
	}
	if tr.Attempts() != 2 {
		t.Errorf("Attempts() = %d, want 2", tr.Attempts())
	}
	tr.MarkSubmitted("sig", t0)
	if err := tr.RecordAttempt(); err == nil {
		t.Error("RecordAttempt() after submit = nil, want error")
	}
}

func TestStatus_Terminal(t *testing.T) {
	for status, want := range map[Status]bool{
		StatusPending:   false,
		StatusSubmitted: false,
		StatusConfirmed: true,
		StatusFailed:    true,
		StatusTimedOut:  true,
	} {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestErrors_MatchCodes(t *testing.T) {
	stale := error(&StaleOpportunity{Seq: 1, Reason: "slot age 12 > 8"})
	if !errors.Is(stale, apperror.New(apperror.CodeStaleOpportunity)) {
		t.Error("StaleOpportunity does not match STALE_OPPORTUNITY")
	}

	failure := error(&ExecutionFailure{Signature: "sig", Reason: "InstructionError"})
	if !errors.Is(failure, apperror.New(apperror.CodeExecutionFailure)) {
		t.Error("ExecutionFailure does not match EXECUTION_FAILURE")
	}
	if errors.Is(failure, apperror.New(apperror.CodeStaleOpportunity)) {
		t.Error("ExecutionFailure matches STALE_OPPORTUNITY")
	}
	if !IsExecutionFailure(failure) {
		t.Error("IsExecutionFailure() = false, want true")
	}
}
