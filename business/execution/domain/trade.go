// Package domain contains the trade execution state machine.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arbitrage/internal/apperror"
)

// Status is the lifecycle state of a TradeExecution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s != StatusPending && s != StatusSubmitted
}

// transitions lists the allowed moves. Pending may fail directly when the
// trade is rejected before anything is sent.
var transitions = map[Status][]Status{
	StatusPending:   {StatusSubmitted, StatusFailed},
	StatusSubmitted: {StatusConfirmed, StatusFailed, StatusTimedOut},
}

// TradeExecution tracks one queued opportunity from dequeue to a terminal
// state. Terminal executions are immutable.
type TradeExecution struct {
	ID        string // dedup key hex
	Seq       uint64
	CycleID   uint64
	Pair      string
	Route     []string
	SizeSOL   decimal.Decimal
	Simulated bool

	// ExpectedProfitSOL is the discovery estimate, kept for comparison only.
	ExpectedProfitSOL decimal.Decimal

	status            Status
	signature         string
	attempts          int
	reason            string
	realizedProfitSOL decimal.Decimal

	CreatedAt   time.Time
	SubmittedAt time.Time
	FinishedAt  time.Time
}

// NewTradeExecution creates a Pending execution.
func NewTradeExecution(id string, seq, cycleID uint64, pair string, route []string, sizeSOL, expected decimal.Decimal, simulated bool, now time.Time) *TradeExecution {
	return &TradeExecution{
		ID:                id,
		Seq:               seq,
		CycleID:           cycleID,
		Pair:              pair,
		Route:             route,
		SizeSOL:           sizeSOL,
		Simulated:         simulated,
		ExpectedProfitSOL: expected,
		status:            StatusPending,
		CreatedAt:         now,
	}
}

func (t *TradeExecution) Status() Status { return t.status }
func (t *TradeExecution) Signature() string { return t.signature }
func (t *TradeExecution) Attempts() int { return t.attempts }
func (t *TradeExecution) Reason() string { return t.reason }
func (t *TradeExecution) RealizedProfitSOL() decimal.Decimal { return t.realizedProfitSOL }

// RecordAttempt counts one submission attempt. Only valid while Pending.
func (t *TradeExecution) RecordAttempt() error {
	if t.status != StatusPending {
		return t.invalid("attempt")
	}
	t.attempts++
	return nil
}

// MarkSubmitted records the transaction signature.
func (t *TradeExecution) MarkSubmitted(signature string, now time.Time) error {
	if signature == "" {
		return apperror.New(apperror.CodeInvalidInput, apperror.WithContext("empty signature"))
	}
	if err := t.transition(StatusSubmitted); err != nil {
		return err
	}
	t.signature = signature
	t.SubmittedAt = now
	return nil
}

// Confirm records the on-chain result. Realized profit is only ever set
// here.
func (t *TradeExecution) Confirm(realizedProfitSOL decimal.Decimal, now time.Time) error {
	if err := t.transition(StatusConfirmed); err != nil {
		return err
	}
	t.realizedProfitSOL = realizedProfitSOL
	t.FinishedAt = now
	return nil
}

// Fail records a rejection or on-chain failure.
func (t *TradeExecution) Fail(reason string, now time.Time) error {
	if err := t.transition(StatusFailed); err != nil {
		return err
	}
	t.reason = reason
	t.FinishedAt = now
	return nil
}

// TimeOut records that no terminal status arrived in time.
func (t *TradeExecution) TimeOut(now time.Time) error {
	if err := t.transition(StatusTimedOut); err != nil {
		return err
	}
	t.reason = "confirmation timeout"
	t.FinishedAt = now
	return nil
}

func (t *TradeExecution) transition(to Status) error {
	for _, allowed := range transitions[t.status] {
		if allowed == to {
			t.status = to
			return nil
		}
	}
	return t.invalid(string(to))
}

func (t *TradeExecution) invalid(to string) error {
	return apperror.New(apperror.CodeInvalidTransition,
		apperror.WithContext(fmt.Sprintf("trade %d: %s -> %s", t.Seq, t.status, to)))
}
