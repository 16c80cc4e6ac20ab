// Package domain contains the core domain types for the pool context.
package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arbitrage/internal/asset"
)

// Source is how a target's state is obtained.
type Source string

const (
	SourceAccount Source = "account" // direct on-chain account read
	SourceQuote   Source = "quote"   // external quote endpoint
)

// Target is one venue/pair instance the aggregator polls every cycle.
type Target struct {
	ID       string
	Venue    string
	Pair     string // "BASE/QUOTE"
	Source   Source
	Protocol Protocol
	Version  string

	// Account is the pool/market account for SourceAccount targets.
	Account string
	// VaultA/VaultB are optional; vault-backed layouts resolve them from
	// the pool account when empty.
	VaultA string
	VaultB string

	// Decimals used when neither the layout nor the asset registry know them.
	BaseDecimals  uint8
	QuoteDecimals uint8
}

// LayoutKey returns the layout variant key of the target.
func (t Target) LayoutKey() LayoutKey {
	return LayoutKey{Protocol: t.Protocol, Version: t.Version}
}

// Validate checks the target is usable by the aggregator.
func (t Target) Validate() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("target: empty id")
	case t.Venue == "":
		return fmt.Errorf("target %s: empty venue", t.ID)
	case t.Pair == "":
		return fmt.Errorf("target %s: empty pair", t.ID)
	}

	switch t.Source {
	case SourceAccount:
		if t.Account == "" {
			return fmt.Errorf("target %s: account source requires an account address", t.ID)
		}
		l, ok := LookupLayout(t.LayoutKey())
		if !ok {
			return fmt.Errorf("target %s: %w %s", t.ID, ErrUnsupportedLayout, t.LayoutKey())
		}
		if l.Reserves == ReservesSelf && t.VaultB == "" {
			return fmt.Errorf("target %s: token account pair requires vault_b", t.ID)
		}
	case SourceQuote:
	default:
		return fmt.Errorf("target %s: unknown source %q", t.ID, t.Source)
	}
	return nil
}

// PoolState is the decoded, typed state of one venue for one pair at one slot.
// It is only ever constructed from a successful decode.
type PoolState struct {
	TargetID string
	Venue    string
	Pair     string
	Protocol Protocol
	Version  string

	ReserveA asset.Amount // base token balance
	ReserveB asset.Amount // quote token balance

	// FeeBps is the fee tier read from the venue itself; zero when the
	// layout carries none.
	FeeBps decimal.Decimal
	// Price is the mid price in quote per base.
	Price decimal.Decimal

	Slot       uint64
	ObservedAt time.Time
}

// BaseDepth returns the base reserve in whole tokens.
func (s PoolState) BaseDepth() decimal.Decimal {
	return s.ReserveA.ToDecimal()
}

// QuoteDepth returns the quote reserve in whole tokens.
func (s PoolState) QuoteDepth() decimal.Decimal {
	return s.ReserveB.ToDecimal()
}

// Age returns how old the observation is at now.
func (s PoolState) Age(now time.Time) time.Duration {
	return now.Sub(s.ObservedAt)
}

// SchemaVersion returns "protocol/version".
func (s PoolState) SchemaVersion() string {
	return string(s.Protocol) + "/" + s.Version
}

// Result is the outcome of fetching one target: exactly one of State or Err is set.
type Result struct {
	Target Target
	State  *PoolState
	Err    error
}

// OK reports whether the fetch produced a state.
func (r Result) OK() bool {
	return r.State != nil && r.Err == nil
}

// Snapshot is the immutable output of one aggregation cycle.
type Snapshot struct {
	CycleID     uint64
	StartedAt   time.Time
	CompletedAt time.Time
	// Partial is set when the cycle deadline cut fetches short.
	Partial bool

	results map[string]Result
	order   []string
}

// NewSnapshot builds a snapshot. Results are keyed by target ID.
func NewSnapshot(cycleID uint64, started, completed time.Time, partial bool, results []Result) Snapshot {
	s := Snapshot{
		CycleID:     cycleID,
		StartedAt:   started,
		CompletedAt: completed,
		Partial:     partial,
		results:     make(map[string]Result, len(results)),
		order:       make([]string, 0, len(results)),
	}
	for _, r := range results {
		if _, dup := s.results[r.Target.ID]; !dup {
			s.order = append(s.order, r.Target.ID)
		}
		s.results[r.Target.ID] = r
	}
	sort.Strings(s.order)
	return s
}

// Get returns the result for a target.
func (s Snapshot) Get(targetID string) (Result, bool) {
	r, ok := s.results[targetID]
	return r, ok
}

// Len returns the number of targets in the snapshot.
func (s Snapshot) Len() int {
	return len(s.order)
}

// Results returns all results ordered by target ID.
func (s Snapshot) Results() []Result {
	out := make([]Result, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.results[id])
	}
	return out
}

// States returns every successfully decoded state, ordered by target ID.
func (s Snapshot) States() []PoolState {
	out := make([]PoolState, 0, len(s.order))
	for _, id := range s.order {
		if r := s.results[id]; r.OK() {
			out = append(out, *r.State)
		}
	}
	return out
}

// Failures returns the failed results ordered by target ID.
func (s Snapshot) Failures() []Result {
	var out []Result
	for _, id := range s.order {
		if r := s.results[id]; !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// ByPair groups the decoded states by pair. Within a pair states keep
// target ID order.
func (s Snapshot) ByPair() map[string][]PoolState {
	out := make(map[string][]PoolState)
	for _, st := range s.States() {
		out[st.Pair] = append(out[st.Pair], st)
	}
	return out
}
