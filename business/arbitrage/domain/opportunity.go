// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	poolDomain "github.com/fd1az/dex-arbitrage/business/pool/domain"
)

// SeqShift places the cycle ID above the per-cycle ordinal in a sequence
// number, so sequence numbers grow across cycles.
const SeqShift = 20

// MaxOrdinal is the largest ordinal a single cycle can assign.
const MaxOrdinal = 1<<SeqShift - 1

// NewSeq builds the discovery sequence number for an ordinal within a cycle.
// ordinal must be in [1, MaxOrdinal]; callers stop assigning past it.
func NewSeq(cycleID uint64, ordinal int) uint64 {
	return cycleID<<SeqShift | uint64(ordinal)
}

// Leg is one side of a two-venue route, holding the venue state the
// opportunity was computed from. State is a value copy.
type Leg struct {
	TargetID string
	Venue    string
	// Pool identifies the on-chain market. Two targets reading the same
	// market (account and quote) share it.
	Pool  string
	State poolDomain.PoolState
}

// Hop returns the route element for this leg.
func (l Leg) Hop() string {
	return l.Venue + ":" + l.Pool
}

// RawOpportunity is a buy-low/sell-high candidate for one pair across two
// venues that cleared the gross spread threshold.
type RawOpportunity struct {
	CycleID uint64
	Seq     uint64
	Pair    string
	Buy     Leg
	Sell    Leg
	Spread  Spread
	// Size is the trade size in base asset units.
	Size decimal.Decimal
	// SOLPerBase converts base asset units to SOL.
	SOLPerBase decimal.Decimal
}

// Route returns the ordered venue hops.
func (r RawOpportunity) Route() []string {
	return []string{r.Buy.Hop(), r.Sell.Hop()}
}

// OldestSlot returns the older source slot of the two legs. A leg with
// slot 0 did not report one and is ignored; 0 means neither did.
func (r RawOpportunity) OldestSlot() uint64 {
	buy, sell := r.Buy.State.Slot, r.Sell.State.Slot
	switch {
	case buy == 0:
		return sell
	case sell == 0:
		return buy
	}
	return min(buy, sell)
}

// OldestObservation returns the older observation time of the two legs.
func (r RawOpportunity) OldestObservation() time.Time {
	if r.Buy.State.ObservedAt.Before(r.Sell.State.ObservedAt) {
		return r.Buy.State.ObservedAt
	}
	return r.Sell.State.ObservedAt
}

// Costs are the venue-specific deductions applied to a gross spread.
type Costs struct {
	BuyFeeBps   decimal.Decimal
	SellFeeBps  decimal.Decimal
	SlippageBps decimal.Decimal
}

// Total returns the sum of all deductions in bps.
func (c Costs) Total() decimal.Decimal {
	return c.BuyFeeBps.Add(c.SellFeeBps).Add(c.SlippageBps)
}

// SpecializedOpportunity is a RawOpportunity priced with venue fees and
// slippage. The net figures are unexported and only derived from the costs,
// so changing the costs always recomputes them.
type SpecializedOpportunity struct {
	RawOpportunity

	costs   Costs
	netBps  decimal.Decimal
	netBase decimal.Decimal
}

// Specialize prices a raw opportunity with the given costs.
func Specialize(raw RawOpportunity, costs Costs) SpecializedOpportunity {
	netBps := raw.Spread.BasisPoints.Sub(costs.Total())
	return SpecializedOpportunity{
		RawOpportunity: raw,
		costs:          costs,
		netBps:         netBps,
		netBase:        raw.Size.Mul(netBps).Div(bpsFactor),
	}
}

// WithCosts returns a copy priced with different costs.
func (s SpecializedOpportunity) WithCosts(costs Costs) SpecializedOpportunity {
	return Specialize(s.RawOpportunity, costs)
}

// Costs returns the deductions the net profit was computed from.
func (s SpecializedOpportunity) Costs() Costs {
	return s.costs
}

// NetProfitBps is gross spread bps minus fees and slippage.
func (s SpecializedOpportunity) NetProfitBps() decimal.Decimal {
	return s.netBps
}

// NetProfitBase is the net profit in base asset units.
func (s SpecializedOpportunity) NetProfitBase() decimal.Decimal {
	return s.netBase
}

// NetProfitSOL is the net profit valued in SOL.
func (s SpecializedOpportunity) NetProfitSOL() decimal.Decimal {
	return s.netBase.Mul(s.SOLPerBase)
}

// ScoredOpportunity carries the confidence assigned by the scorer.
type ScoredOpportunity struct {
	SpecializedOpportunity

	Confidence    decimal.Decimal // 0-100
	ScorerVersion string
	// Degraded marks a default confidence used because scoring failed.
	Degraded       bool
	DegradedReason string
}

// UnifiedOpportunity is the venue-agnostic record ranked by discovery and
// consumed by the executor.
type UnifiedOpportunity struct {
	DedupKey common.Hash
	CycleID  uint64
	Seq      uint64
	Pair     string
	Route    []string

	SizeBase      decimal.Decimal
	SizeSOL       decimal.Decimal
	NetProfitBps  decimal.Decimal
	NetProfitBase decimal.Decimal
	NetProfitSOL  decimal.Decimal

	Confidence    decimal.Decimal
	ScorerVersion string
	Degraded      bool
	Rank          decimal.Decimal

	// Oldest source observation on the route, used for freshness checks.
	SourceSlot       uint64
	SourceObservedAt time.Time
}

// DedupKey hashes the pair and route into the identity used to collapse
// equivalent opportunities.
func DedupKey(pair string, route []string) common.Hash {
	return crypto.Keccak256Hash([]byte(pair + "|" + strings.Join(route, ">")))
}

// Unify converts a scored opportunity into its canonical form.
func Unify(s ScoredOpportunity) UnifiedOpportunity {
	route := s.Route()
	return UnifiedOpportunity{
		DedupKey:         DedupKey(s.Pair, route),
		CycleID:          s.CycleID,
		Seq:              s.Seq,
		Pair:             s.Pair,
		Route:            route,
		SizeBase:         s.Size,
		SizeSOL:          s.Size.Mul(s.SOLPerBase),
		NetProfitBps:     s.NetProfitBps(),
		NetProfitBase:    s.NetProfitBase(),
		NetProfitSOL:     s.NetProfitSOL(),
		Confidence:       s.Confidence,
		ScorerVersion:    s.ScorerVersion,
		Degraded:         s.Degraded,
		SourceSlot:       s.OldestSlot(),
		SourceObservedAt: s.OldestObservation(),
	}
}

// Age returns how old the route's oldest source observation is at now.
func (u UnifiedOpportunity) Age(now time.Time) time.Duration {
	return now.Sub(u.SourceObservedAt)
}

// RouteString joins the route hops for display and storage.
func (u UnifiedOpportunity) RouteString() string {
	return strings.Join(u.Route, " > ")
}
