package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	poolDomain "github.com/fd1az/dex-arbitrage/business/pool/domain"
	"github.com/fd1az/dex-arbitrage/internal/asset"
)

type mockLogger struct{}

func (mockLogger) Debug(context.Context, string, ...any)       {}
func (mockLogger) Info(context.Context, string, ...any)        {}
func (mockLogger) Warn(context.Context, string, ...any)        {}
func (mockLogger) Error(context.Context, string, ...any)       {}
func (mockLogger) Debugc(context.Context, int, string, ...any) {}
func (mockLogger) Infoc(context.Context, int, string, ...any)  {}
func (mockLogger) Warnc(context.Context, int, string, ...any)  {}
func (mockLogger) Errorc(context.Context, int, string, ...any) {}

var observedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// venue describes one decoded state in a test snapshot.
type venue struct {
	id    string
	name  string
	pair  string
	price string
	fee   string
	base  string // base reserve in whole tokens
	quote string // quote reserve in whole tokens
	slot  uint64
}

func (v venue) state() poolDomain.PoolState {
	pair := v.pair
	if pair == "" {
		pair = "SOL/USDC"
	}
	base, quote := asset.SOL, asset.USDC
	switch pair {
	case "BONK/USDC":
		base = asset.BONK
	case "mSOL/SOL":
		base, quote = asset.MSOL, asset.SOL
	}

	baseDepth, quoteDepth := v.base, v.quote
	if baseDepth == "" {
		baseDepth = "100000"
	}
	if quoteDepth == "" {
		quoteDepth = "10000000"
	}
	reserveA, err := asset.ParseString(base, baseDepth)
	if err != nil {
		panic(err)
	}
	reserveB, err := asset.ParseString(quote, quoteDepth)
	if err != nil {
		panic(err)
	}

	fee := v.fee
	if fee == "" {
		fee = "0"
	}
	slot := v.slot
	if slot == 0 {
		slot = 1000
	}

	return poolDomain.PoolState{
		TargetID:   v.id,
		Venue:      v.name,
		Pair:       pair,
		Protocol:   poolDomain.ProtocolConstantProduct,
		Version:    "v1",
		ReserveA:   reserveA,
		ReserveB:   reserveB,
		FeeBps:     decimal.RequireFromString(fee),
		Price:      decimal.RequireFromString(v.price),
		Slot:       slot,
		ObservedAt: observedAt,
	}
}

func snapshot(cycleID uint64, venues ...venue) poolDomain.Snapshot {
	results := make([]poolDomain.Result, 0, len(venues))
	for _, v := range venues {
		st := v.state()
		results = append(results, poolDomain.Result{
			Target: poolDomain.Target{
				ID:      v.id,
				Venue:   v.name,
				Pair:    st.Pair,
				Source:  poolDomain.SourceAccount,
				Account: "pool-" + v.id,
			},
			State: &st,
		})
	}
	return poolDomain.NewSnapshot(cycleID, observedAt, observedAt, false, results)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// scenarioFilter is the filter of the SOL/USDC scenarios: venue fees
// from the table, a fixed 10 bps slippage and a 40 bps floor.
func scenarioFilter(fees map[string]decimal.Decimal) *Filter {
	return NewFilter(FilterConfig{
		MinNetProfitBps: d("40"),
		MinProfitSOL:    d("0.01"),
		MaxTradeSOL:     d("1"),
		MaxSlippageBps:  d("100"),
		VenueFees:       fees,
	}, FixedSlippage(d("10")), mockLogger{})
}

// scored builds a scored opportunity whose net bps equals netBps.
func scored(seq uint64, buyVenue, sellVenue, netBps, size, confidence string) domain.ScoredOpportunity {
	raw := domain.RawOpportunity{
		CycleID:    seq >> domain.SeqShift,
		Seq:        seq,
		Pair:       "SOL/USDC",
		Buy:        domain.Leg{TargetID: buyVenue, Venue: buyVenue, Pool: "pool-" + buyVenue},
		Sell:       domain.Leg{TargetID: sellVenue, Venue: sellVenue, Pool: "pool-" + sellVenue},
		Spread:     domain.Spread{BasisPoints: d(netBps)},
		Size:       d(size),
		SOLPerBase: decimal.NewFromInt(1),
	}
	return domain.ScoredOpportunity{
		SpecializedOpportunity: domain.Specialize(raw, domain.Costs{}),
		Confidence:             d(confidence),
		ScorerVersion:          "test-v1",
	}
}
