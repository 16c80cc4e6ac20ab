package domain

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Reason tags why a candidate left the pipeline.
type Reason string

// Filter rejection reasons.
const (
	ReasonBelowGrossSpread  Reason = "below-gross-spread"
	ReasonUnpricedPair      Reason = "unpriced-pair"
	ReasonInsufficientDepth Reason = "insufficient-depth"
	ReasonFeeFloor          Reason = "fee-floor"
	ReasonAbsoluteFloor     Reason = "absolute-floor"
	ReasonCycleCapacity     Reason = "cycle-capacity"
)

// Discovery drop reasons.
const (
	ReasonDuplicateOf     Reason = "duplicate-of"
	ReasonBelowRankCutoff Reason = "below-rank-cutoff"
	ReasonMalformed       Reason = "malformed"
)

// FilterReasons lists the filter rejection reasons in report order.
var FilterReasons = []Reason{
	ReasonBelowGrossSpread,
	ReasonUnpricedPair,
	ReasonInsufficientDepth,
	ReasonFeeFloor,
	ReasonAbsoluteFloor,
	ReasonCycleCapacity,
}

// DiscoveryReasons lists the discovery drop reasons in report order.
var DiscoveryReasons = []Reason{
	ReasonDuplicateOf,
	ReasonBelowRankCutoff,
	ReasonMalformed,
}

// Rejection records a candidate the filter did not pass.
type Rejection struct {
	Seq    uint64
	Pair   string
	Route  []string
	Reason Reason
	Detail string
}

// FilterResult is the filter output for one cycle. Every considered
// candidate is either in Passed or in Rejected.
type FilterResult struct {
	CycleID    uint64
	Considered int
	Passed     []SpecializedOpportunity
	Rejected   []Rejection
}

// Counts returns the number of rejections per reason.
func (r FilterResult) Counts() map[Reason]int {
	return countReasons(r.Rejected, func(rej Rejection) Reason { return rej.Reason })
}

// Verify checks the accounting invariant.
func (r FilterResult) Verify() error {
	if got := len(r.Passed) + len(r.Rejected); got != r.Considered {
		return fmt.Errorf("filter cycle %d: considered %d, passed+rejected %d", r.CycleID, r.Considered, got)
	}
	for _, rej := range r.Rejected {
		if rej.Reason == "" {
			return fmt.Errorf("filter cycle %d: seq %d rejected without reason", r.CycleID, rej.Seq)
		}
	}
	return nil
}

// Drop records a scored opportunity discovery did not queue.
type Drop struct {
	Seq      uint64
	DedupKey common.Hash
	Reason   Reason
	// DuplicateOf is the surviving sequence number for duplicate drops.
	DuplicateOf uint64
	Detail      string
}

// DiscoveryResult is the ranked queue for one cycle plus one drop record
// for every input that did not make it.
type DiscoveryResult struct {
	In    int
	Queue []UnifiedOpportunity
	Drops []Drop
}

// Counts returns the number of drops per reason.
func (r DiscoveryResult) Counts() map[Reason]int {
	return countReasons(r.Drops, func(d Drop) Reason { return d.Reason })
}

// Verify checks count_out <= count_in, that the difference is fully
// explained by reason-tagged drops and that no dedup key is queued twice.
func (r DiscoveryResult) Verify() error {
	if len(r.Queue) > r.In {
		return fmt.Errorf("discovery: queued %d > in %d", len(r.Queue), r.In)
	}
	if got := len(r.Queue) + len(r.Drops); got != r.In {
		return fmt.Errorf("discovery: in %d, queued+dropped %d", r.In, got)
	}

	for _, d := range r.Drops {
		if d.Reason == "" {
			return fmt.Errorf("discovery: seq %d dropped without reason", d.Seq)
		}
		if d.Reason == ReasonDuplicateOf && d.DuplicateOf == 0 {
			return fmt.Errorf("discovery: seq %d duplicate without survivor", d.Seq)
		}
	}
	keys := make(map[common.Hash]struct{}, len(r.Queue))
	for _, u := range r.Queue {
		if _, dup := keys[u.DedupKey]; dup {
			return fmt.Errorf("discovery: dedup key %s queued twice", u.DedupKey.Hex())
		}
		keys[u.DedupKey] = struct{}{}
	}
	return nil
}

func countReasons[T any](items []T, reason func(T) Reason) map[Reason]int {
	out := make(map[Reason]int)
	for _, it := range items {
		out[reason(it)]++
	}
	return out
}

// SortedReasons returns the keys of a reason count map in a stable order.
func SortedReasons(counts map[Reason]int) []Reason {
	out := make([]Reason, 0, len(counts))
	for r := range counts {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
