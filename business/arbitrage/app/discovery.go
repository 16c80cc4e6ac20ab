package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/dex-arbitrage/internal/logger"
)

var hundred = decimal.NewFromInt(100)

// DiscoveryConfig holds ranking parameters.
type DiscoveryConfig struct {
	// MaxQueue caps the queue length; zero means unbounded.
	MaxQueue      int
	MinConfidence decimal.Decimal
	// DegradedWeight scales the rank of records scored with the default
	// confidence.
	DegradedWeight decimal.Decimal
}

// Discovery merges, deduplicates and ranks the scored opportunities of a
// cycle. Every input is either queued or dropped with exactly one reason.
type Discovery struct {
	config DiscoveryConfig
	logger logger.LoggerInterface
}

// NewDiscovery creates a new Discovery stage.
func NewDiscovery(config DiscoveryConfig, log logger.LoggerInterface) *Discovery {
	return &Discovery{config: config, logger: log}
}

// Rank computes net_bps * confidence/100, down-weighted when degraded.
func (d *Discovery) Rank(u domain.UnifiedOpportunity) decimal.Decimal {
	rank := u.NetProfitBps.Mul(u.Confidence).Div(hundred)
	if u.Degraded {
		rank = rank.Mul(d.config.DegradedWeight)
	}
	return rank
}

// Run produces the ranked queue. It is a pure function of its input.
func (d *Discovery) Run(ctx context.Context, scored []domain.ScoredOpportunity) domain.DiscoveryResult {
	result := domain.DiscoveryResult{In: len(scored)}

	candidates := make([]domain.UnifiedOpportunity, 0, len(scored))
	seqs := make(map[uint64]struct{}, len(scored))
	for _, s := range scored {
		if err := validate(s, seqs); err != nil {
			result.Drops = append(result.Drops, domain.Drop{
				Seq:    s.Seq,
				Reason: domain.ReasonMalformed,
				Detail: err.Error(),
			})
			continue
		}
		seqs[s.Seq] = struct{}{}

		u := domain.Unify(s)
		u.Rank = d.Rank(u)
		candidates = append(candidates, u)
	}

	best := make(map[common.Hash]domain.UnifiedOpportunity, len(candidates))
	for _, u := range candidates {
		if cur, ok := best[u.DedupKey]; !ok || preferred(u, cur) {
			best[u.DedupKey] = u
		}
	}

	reps := make([]domain.UnifiedOpportunity, 0, len(best))
	for _, u := range candidates {
		keep := best[u.DedupKey]
		if keep.Seq != u.Seq {
			result.Drops = append(result.Drops, domain.Drop{
				Seq:         u.Seq,
				DedupKey:    u.DedupKey,
				Reason:      domain.ReasonDuplicateOf,
				DuplicateOf: keep.Seq,
				Detail:      fmt.Sprintf("net %s < %s", u.NetProfitBase, keep.NetProfitBase),
			})
			continue
		}
		reps = append(reps, u)
	}

	sort.Slice(reps, func(i, j int) bool { return ranksBefore(reps[i], reps[j]) })

	for _, u := range reps {
		switch {
		case u.Confidence.LessThan(d.config.MinConfidence):
			result.Drops = append(result.Drops, domain.Drop{
				Seq:      u.Seq,
				DedupKey: u.DedupKey,
				Reason:   domain.ReasonBelowRankCutoff,
				Detail:   fmt.Sprintf("confidence %s < %s", u.Confidence, d.config.MinConfidence),
			})
		case d.config.MaxQueue > 0 && len(result.Queue) >= d.config.MaxQueue:
			result.Drops = append(result.Drops, domain.Drop{
				Seq:      u.Seq,
				DedupKey: u.DedupKey,
				Reason:   domain.ReasonBelowRankCutoff,
				Detail:   fmt.Sprintf("queue full at %d", d.config.MaxQueue),
			})
		default:
			result.Queue = append(result.Queue, u)
		}
	}

	sort.SliceStable(result.Drops, func(i, j int) bool { return result.Drops[i].Seq < result.Drops[j].Seq })

	for _, drop := range result.Drops {
		d.logger.Debug(ctx, "opportunity dropped",
			"seq", drop.Seq,
			"dedup_key", drop.DedupKey.Hex(),
			"reason", drop.Reason,
			"duplicate_of", drop.DuplicateOf,
			"detail", drop.Detail,
		)
	}

	return result
}

// validate rejects records that cannot be ranked.
func validate(s domain.ScoredOpportunity, seqs map[uint64]struct{}) error {
	switch {
	case s.Seq == 0:
		return fmt.Errorf("missing sequence number")
	case s.Pair == "":
		return fmt.Errorf("missing pair")
	case s.Buy.Venue == "" || s.Sell.Venue == "":
		return fmt.Errorf("incomplete route")
	case s.ScorerVersion == "":
		return fmt.Errorf("not scored")
	case !domain.ValidConfidence(s.Confidence):
		return fmt.Errorf("confidence %s out of range", s.Confidence)
	case !s.Size.IsPositive():
		return fmt.Errorf("non-positive size %s", s.Size)
	}
	if _, dup := seqs[s.Seq]; dup {
		return fmt.Errorf("sequence %d already seen", s.Seq)
	}
	return nil
}

// preferred reports whether a should represent its dedup key over b:
// higher absolute net profit, then higher net bps, then earlier sequence.
func preferred(a, b domain.UnifiedOpportunity) bool {
	if c := a.NetProfitBase.Cmp(b.NetProfitBase); c != 0 {
		return c > 0
	}
	if c := a.NetProfitBps.Cmp(b.NetProfitBps); c != 0 {
		return c > 0
	}
	return a.Seq < b.Seq
}

// ranksBefore orders by rank descending, then confidence descending, then
// sequence ascending. Sequence numbers are unique so the order is total.
func ranksBefore(a, b domain.UnifiedOpportunity) bool {
	if c := a.Rank.Cmp(b.Rank); c != 0 {
		return c > 0
	}
	if c := a.Confidence.Cmp(b.Confidence); c != 0 {
		return c > 0
	}
	return a.Seq < b.Seq
}
