// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	poolDomain "github.com/fd1az/dex-arbitrage/business/pool/domain"
	"github.com/fd1az/dex-arbitrage/internal/asset"
	"github.com/fd1az/dex-arbitrage/internal/logger"
)

var bps = decimal.NewFromInt(10000)

// ErrInsufficientDepth is returned by slippage estimators when a pool
// cannot absorb the trade size.
var ErrInsufficientDepth = errors.New("insufficient depth")

// SlippageEstimator estimates the combined slippage of buying size base
// units on one venue and selling them on another.
type SlippageEstimator interface {
	EstimateBps(size decimal.Decimal, buy, sell poolDomain.PoolState) (decimal.Decimal, error)
}

// ConstantProductSlippage prices slippage as the x*y=k price impact on
// each side's base reserve.
type ConstantProductSlippage struct{}

// EstimateBps implements SlippageEstimator.
func (ConstantProductSlippage) EstimateBps(size decimal.Decimal, buy, sell poolDomain.PoolState) (decimal.Decimal, error) {
	buyDepth := buy.BaseDepth()
	sellDepth := sell.BaseDepth()
	if !buyDepth.IsPositive() || !sellDepth.IsPositive() || !buy.QuoteDepth().IsPositive() || !sell.QuoteDepth().IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: empty reserve", ErrInsufficientDepth)
	}
	if size.GreaterThanOrEqual(buyDepth) {
		return decimal.Zero, fmt.Errorf("%w: size %s >= %s reserve %s", ErrInsufficientDepth, size, buy.Venue, buyDepth)
	}

	// Taking size out of the buy pool moves its price by size/(x-size);
	// putting it into the sell pool by size/(x+size).
	buyImpact := size.Div(buyDepth.Sub(size))
	sellImpact := size.Div(sellDepth.Add(size))

	return buyImpact.Add(sellImpact).Mul(bps).Round(4), nil
}

// FixedSlippage returns the same estimate for every trade.
type FixedSlippage decimal.Decimal

// EstimateBps implements SlippageEstimator.
func (f FixedSlippage) EstimateBps(decimal.Decimal, poolDomain.PoolState, poolDomain.PoolState) (decimal.Decimal, error) {
	return decimal.Decimal(f), nil
}

// FilterConfig holds the specialization floors and sizing.
type FilterConfig struct {
	MinNetProfitBps   decimal.Decimal
	MinGrossSpreadBps decimal.Decimal
	MinProfitSOL      decimal.Decimal
	MaxTradeSOL       decimal.Decimal
	// MaxSlippageBps rejects estimates above it as insufficient depth;
	// zero disables the check.
	MaxSlippageBps decimal.Decimal
	// VenueFees overrides the fee tier read from the venue.
	VenueFees map[string]decimal.Decimal
}

// Filter turns a cycle snapshot into venue-priced opportunities. It is a
// pure function of the snapshot and its configuration.
type Filter struct {
	config   FilterConfig
	slippage SlippageEstimator
	logger   logger.LoggerInterface
	// maxOrdinal bounds the sequence numbers one cycle can assign.
	maxOrdinal int
}

// NewFilter creates a new Filter.
func NewFilter(config FilterConfig, slippage SlippageEstimator, log logger.LoggerInterface) *Filter {
	if slippage == nil {
		slippage = ConstantProductSlippage{}
	}
	fees := make(map[string]decimal.Decimal, len(config.VenueFees))
	for k, v := range config.VenueFees {
		fees[k] = v
	}
	config.VenueFees = fees

	return &Filter{
		config:     config,
		slippage:   slippage,
		logger:     log,
		maxOrdinal: domain.MaxOrdinal,
	}
}

// Run evaluates every ordered buy-low/sell-high venue pair of every pair
// with at least two decoded states. Each considered candidate ends up
// either passed or rejected with a reason.
func (f *Filter) Run(ctx context.Context, snap poolDomain.Snapshot) domain.FilterResult {
	result := domain.FilterResult{CycleID: snap.CycleID}

	pools := make(map[string]string, snap.Len())
	for _, r := range snap.Results() {
		pools[r.Target.ID] = r.Target.ID
		if r.Target.Account != "" {
			pools[r.Target.ID] = r.Target.Account
		}
	}

	byPair := snap.ByPair()
	pairs := make([]string, 0, len(byPair))
	for pair, states := range byPair {
		if len(states) >= 2 {
			pairs = append(pairs, pair)
		}
	}
	sort.Strings(pairs)

	ordinal := 0
	for _, pair := range pairs {
		states := byPair[pair]
		for i := range states {
			for j := range states {
				if i == j {
					continue
				}
				spread := domain.CalculateSpread(states[i].Price, states[j].Price)
				if !spread.IsPositive() {
					continue
				}

				result.Considered++
				if ordinal >= f.maxOrdinal {
					// No sequence number left in this cycle.
					result.Rejected = append(result.Rejected, domain.Rejection{
						Pair:   pair,
						Route:  []string{leg(states[i], pools).Hop(), leg(states[j], pools).Hop()},
						Reason: domain.ReasonCycleCapacity,
						Detail: fmt.Sprintf("more than %d candidates in cycle %d", f.maxOrdinal, snap.CycleID),
					})
					continue
				}

				ordinal++
				raw := domain.RawOpportunity{
					CycleID: snap.CycleID,
					Seq:     domain.NewSeq(snap.CycleID, ordinal),
					Pair:    pair,
					Buy:     leg(states[i], pools),
					Sell:    leg(states[j], pools),
					Spread:  spread,
				}

				opp, rej := f.evaluate(raw)
				if rej != nil {
					f.logger.Debug(ctx, "opportunity rejected",
						"seq", rej.Seq,
						"pair", rej.Pair,
						"reason", rej.Reason,
						"detail", rej.Detail,
					)
					result.Rejected = append(result.Rejected, *rej)
					continue
				}

				f.logger.Debug(ctx, "opportunity passed",
					"seq", opp.Seq,
					"pair", opp.Pair,
					"route", strings.Join(opp.Route(), " > "),
					"gross_bps", opp.Spread.BasisPoints.StringFixed(2),
					"net_bps", opp.NetProfitBps().StringFixed(2),
					"net_sol", opp.NetProfitSOL().StringFixed(9),
				)
				result.Passed = append(result.Passed, opp)
			}
		}
	}

	return result
}

func (f *Filter) evaluate(raw domain.RawOpportunity) (domain.SpecializedOpportunity, *domain.Rejection) {
	reject := func(reason domain.Reason, format string, args ...any) (domain.SpecializedOpportunity, *domain.Rejection) {
		return domain.SpecializedOpportunity{}, &domain.Rejection{
			Seq:    raw.Seq,
			Pair:   raw.Pair,
			Route:  raw.Route(),
			Reason: reason,
			Detail: fmt.Sprintf(format, args...),
		}
	}

	if raw.Spread.BasisPoints.LessThan(f.config.MinGrossSpreadBps) {
		return reject(domain.ReasonBelowGrossSpread, "gross %s bps < %s bps",
			raw.Spread.BasisPoints.StringFixed(2), f.config.MinGrossSpreadBps)
	}

	solPerBase, ok := solPerBase(raw.Pair, raw.Spread.BuyPrice)
	if !ok {
		return reject(domain.ReasonUnpricedPair, "pair %s has no SOL leg", raw.Pair)
	}
	raw.SOLPerBase = solPerBase
	raw.Size = f.config.MaxTradeSOL.Div(solPerBase)

	slippage, err := f.slippage.EstimateBps(raw.Size, raw.Buy.State, raw.Sell.State)
	if err != nil {
		return reject(domain.ReasonInsufficientDepth, "%v", err)
	}
	if f.config.MaxSlippageBps.IsPositive() && slippage.GreaterThan(f.config.MaxSlippageBps) {
		return reject(domain.ReasonInsufficientDepth, "slippage %s bps > %s bps",
			slippage.StringFixed(2), f.config.MaxSlippageBps)
	}

	opp := domain.Specialize(raw, domain.Costs{
		BuyFeeBps:   f.feeBps(raw.Buy.State),
		SellFeeBps:  f.feeBps(raw.Sell.State),
		SlippageBps: slippage,
	})

	// Both floors must be exceeded, not just met.
	if opp.NetProfitBps().LessThanOrEqual(f.config.MinNetProfitBps) {
		return reject(domain.ReasonFeeFloor, "net %s bps <= %s bps",
			opp.NetProfitBps().StringFixed(2), f.config.MinNetProfitBps)
	}
	if opp.NetProfitSOL().LessThanOrEqual(f.config.MinProfitSOL) {
		return reject(domain.ReasonAbsoluteFloor, "net %s SOL <= %s SOL",
			opp.NetProfitSOL().StringFixed(9), f.config.MinProfitSOL)
	}

	return opp, nil
}

// feeBps prefers the configured venue fee over the venue's own fee tier.
func (f *Filter) feeBps(s poolDomain.PoolState) decimal.Decimal {
	if fee, ok := f.config.VenueFees[s.Venue]; ok {
		return fee
	}
	return s.FeeBps
}

func leg(s poolDomain.PoolState, pools map[string]string) domain.Leg {
	return domain.Leg{
		TargetID: s.TargetID,
		Venue:    s.Venue,
		Pool:     pools[s.TargetID],
		State:    s,
	}
}

// solPerBase values one base unit in SOL. Pairs without SOL on either
// side cannot be sized against a SOL trade limit.
func solPerBase(pair string, price decimal.Decimal) (decimal.Decimal, bool) {
	base, quote, ok := strings.Cut(pair, "/")
	if !ok {
		return decimal.Zero, false
	}
	sol := asset.SOL.Symbol()
	switch {
	case base == sol:
		return decimal.NewFromInt(1), true
	case quote == sol && price.IsPositive():
		return price, true
	}
	return decimal.Zero, false
}
