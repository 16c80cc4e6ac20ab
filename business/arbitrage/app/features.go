package app

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	poolDomain "github.com/fd1az/dex-arbitrage/business/pool/domain"
	"github.com/fd1az/dex-arbitrage/internal/cache"
)

// FeatureTracker keeps a rolling window of mid prices per target and
// derives the volatility features handed to the scorer.
type FeatureTracker struct {
	window int
	ttl    time.Duration

	mu     sync.Mutex
	prices *cache.Cache[string, []decimal.Decimal]
}

// NewFeatureTracker creates a tracker keeping window prices per target.
// Targets not observed for ttl start over.
func NewFeatureTracker(window int, ttl time.Duration) *FeatureTracker {
	if window < 2 {
		window = 2
	}
	return &FeatureTracker{
		window: window,
		ttl:    ttl,
		prices: cache.New[string, []decimal.Decimal](time.Minute),
	}
}

// Observe appends the price of every decoded state in the snapshot.
func (t *FeatureTracker) Observe(ctx context.Context, snap poolDomain.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range snap.States() {
		prev, _ := t.prices.Get(ctx, s.TargetID)

		start := 0
		if len(prev) >= t.window {
			start = len(prev) - t.window + 1
		}
		next := make([]decimal.Decimal, 0, t.window)
		next = append(next, prev[start:]...)
		next = append(next, s.Price)

		t.prices.Set(ctx, s.TargetID, next, t.ttl)
	}
}

// Features returns the current features of one target.
func (t *FeatureTracker) Features(ctx context.Context, targetID string) domain.VenueFeatures {
	prices, _ := t.prices.Get(ctx, targetID)

	f := domain.VenueFeatures{
		TargetID:      targetID,
		Samples:       len(prices),
		VolatilityBps: volatilityBps(prices),
	}
	if len(prices) > 0 {
		f.LastPrice = prices[len(prices)-1]
	}
	return f
}

// Snapshot returns the features of both legs of an opportunity.
func (t *FeatureTracker) Snapshot(ctx context.Context, opp domain.SpecializedOpportunity) domain.FeatureSnapshot {
	return domain.FeatureSnapshot{
		Buy:  t.Features(ctx, opp.Buy.TargetID),
		Sell: t.Features(ctx, opp.Sell.TargetID),
	}
}

// Close stops the cache janitor.
func (t *FeatureTracker) Close() {
	t.prices.Close()
}

// volatilityBps is the population standard deviation of log returns, in
// bps. It needs at least two returns.
func volatilityBps(prices []decimal.Decimal) decimal.Decimal {
	if len(prices) < 3 {
		return decimal.Zero
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1].InexactFloat64(), prices[i].InexactFloat64()
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) < 2 {
		return decimal.Zero
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return decimal.NewFromFloat(math.Sqrt(variance) * 10000).Round(4)
}
