package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeOutcome is the terminal result of one queued opportunity as seen by
// the pipeline.
type TradeOutcome struct {
	Seq       uint64
	DedupKey  string
	Status    string
	Simulated bool
	Signature string
	Reason    string
	// RealizedProfitSOL is zero unless the trade confirmed.
	RealizedProfitSOL decimal.Decimal
}

// ExecutionSummary aggregates the executor outcomes of one cycle.
type ExecutionSummary struct {
	Dequeued  int
	Executed  int // reached Submitted
	Confirmed int
	Failed    int
	TimedOut  int
	Stale     int
	Skipped   int // already submitted within the resubmit guard

	// RealizedProfitSOL sums confirmed live trades only.
	RealizedProfitSOL decimal.Decimal
	// SimulatedProfitSOL sums the re-quoted profit of simulated trades.
	SimulatedProfitSOL decimal.Decimal
	Outcomes           []TradeOutcome
}

// CycleReport is the per-cycle telemetry record. Its counts make
// opportunity loss between stages observable.
type CycleReport struct {
	CycleID   uint64
	StartedAt time.Time
	Duration  time.Duration
	Partial   bool

	Targets       int
	States        int
	FetchFailures int
	DecodeErrors  int

	Considered     int
	Passed         int
	FilterRejected map[Reason]int

	Scored   int
	Degraded int

	DiscoveryIn   int
	Queued        int
	DiscoveryDrop map[Reason]int

	Execution ExecutionSummary

	// Top is the head of the queue, if any.
	Top *UnifiedOpportunity
	// Err is set when a stage accounting check failed.
	Err error
}

// Deduplicated returns the number of duplicate drops.
func (r CycleReport) Deduplicated() int {
	return r.DiscoveryDrop[ReasonDuplicateOf]
}

// Rejected returns the total number of filter rejections.
func (r CycleReport) Rejected() int {
	total := 0
	for _, n := range r.FilterRejected {
		total += n
	}
	return total
}
