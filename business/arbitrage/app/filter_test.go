package app

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
)

func TestFilter_SOLUSDCScenarios(t *testing.T) {
	tests := []struct {
		name       string
		sellFee    string
		wantPassed int
		wantReason domain.Reason
		wantNetBps string
	}{
		{
			name:       "net_115_bps_passes",
			sellFee:    "30",
			wantPassed: 1,
			wantNetBps: "115", // 180 - 25 - 30 - 10
		},
		{
			name:       "net_minus_15_bps_fee_floor",
			sellFee:    "160",
			wantReason: domain.ReasonFeeFloor, // 180 - 25 - 160 - 10 = -15
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := scenarioFilter(map[string]decimal.Decimal{
				"venue-a": d("25"),
				"venue-b": d(tt.sellFee),
			})
			snap := snapshot(1,
				venue{id: "a", name: "venue-a", price: "100.00"},
				venue{id: "b", name: "venue-b", price: "101.80"},
			)

			res := f.Run(context.Background(), snap)

			if err := res.Verify(); err != nil {
				t.Fatalf("Verify() = %v", err)
			}
			if res.Considered != 1 {
				t.Errorf("Considered = %d, want 1", res.Considered)
			}
			if len(res.Passed) != tt.wantPassed {
				t.Fatalf("Passed = %d, want %d", len(res.Passed), tt.wantPassed)
			}

			if tt.wantPassed == 0 {
				if len(res.Rejected) != 1 || res.Rejected[0].Reason != tt.wantReason {
					t.Fatalf("Rejected = %+v, want one %s", res.Rejected, tt.wantReason)
				}
				return
			}

			opp := res.Passed[0]
			if opp.Buy.Venue != "venue-a" || opp.Sell.Venue != "venue-b" {
				t.Errorf("route = %s -> %s, want venue-a -> venue-b", opp.Buy.Venue, opp.Sell.Venue)
			}
			if !opp.Spread.BasisPoints.Equal(d("180")) {
				t.Errorf("gross bps = %s, want 180", opp.Spread.BasisPoints)
			}
			if !opp.NetProfitBps().Equal(d(tt.wantNetBps)) {
				t.Errorf("NetProfitBps() = %s, want %s", opp.NetProfitBps(), tt.wantNetBps)
			}
			if !opp.NetProfitSOL().Equal(d("0.0115")) {
				t.Errorf("NetProfitSOL() = %s, want 0.0115", opp.NetProfitSOL())
			}
			if opp.Seq != domain.NewSeq(1, 1) {
				t.Errorf("Seq = %d, want %d", opp.Seq, domain.NewSeq(1, 1))
			}
		})
	}
}

func TestFilter_RejectionReasons(t *testing.T) {
	fees := map[string]decimal.Decimal{"venue-a": d("25"), "venue-b": d("30")}

	tests := []struct {
		name       string
		config     FilterConfig
		slippage   SlippageEstimator
		venues     []venue
		wantReason domain.Reason
	}{
		{
			name: "below_gross_spread",
			config: FilterConfig{
				MinGrossSpreadBps: d("200"),
				MinNetProfitBps:   d("40"),
				MaxTradeSOL:       d("1"),
			},
			slippage:   FixedSlippage(d("10")),
			wantReason: domain.ReasonBelowGrossSpread,
		},
		{
			name: "absolute_floor_small_notional",
			config: FilterConfig{
				MinNetProfitBps: d("40"),
				MinProfitSOL:    d("0.05"), // 1 SOL * 115 bps = 0.0115 SOL
				MaxTradeSOL:     d("1"),
			},
			slippage:   FixedSlippage(d("10")),
			wantReason: domain.ReasonAbsoluteFloor,
		},
		{
			name: "fee_floor_large_notional",
			config: FilterConfig{
				MinNetProfitBps: d("150"),
				MinProfitSOL:    d("0.05"), // 1000 SOL * 115 bps = 11.5 SOL clears it
				MaxTradeSOL:     d("1000"),
			},
			slippage:   FixedSlippage(d("10")),
			wantReason: domain.ReasonFeeFloor,
		},
		{
			name: "net_equal_to_bps_floor",
			config: FilterConfig{
				MinNetProfitBps: d("115"),
				MaxTradeSOL:     d("1"),
			},
			slippage:   FixedSlippage(d("10")),
			wantReason: domain.ReasonFeeFloor,
		},
		{
			name: "net_equal_to_absolute_floor",
			config: FilterConfig{
				MinNetProfitBps: d("40"),
				MinProfitSOL:    d("0.0115"),
				MaxTradeSOL:     d("1"),
			},
			slippage:   FixedSlippage(d("10")),
			wantReason: domain.ReasonAbsoluteFloor,
		},
		{
			name: "slippage_above_risk_limit",
			config: FilterConfig{
				MinNetProfitBps: d("40"),
				MaxTradeSOL:     d("1"),
				MaxSlippageBps:  d("5"),
			},
			slippage:   FixedSlippage(d("10")),
			wantReason: domain.ReasonInsufficientDepth,
		},
		{
			name: "size_exceeds_reserve",
			config: FilterConfig{
				MinNetProfitBps: d("40"),
				MaxTradeSOL:     d("10"),
			},
			slippage: ConstantProductSlippage{},
			venues: []venue{
				{id: "a", name: "venue-a", price: "100.00", base: "5", quote: "500"},
				{id: "b", name: "venue-b", price: "101.80"},
			},
			wantReason: domain.ReasonInsufficientDepth,
		},
		{
			name: "pair_without_sol",
			config: FilterConfig{
				MinNetProfitBps: d("40"),
				MaxTradeSOL:     d("1"),
			},
			slippage: FixedSlippage(d("10")),
			venues: []venue{
				{id: "a", name: "venue-a", pair: "BONK/USDC", price: "0.00002"},
				{id: "b", name: "venue-b", pair: "BONK/USDC", price: "0.00003"},
			},
			wantReason: domain.ReasonUnpricedPair,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.VenueFees = fees
			f := NewFilter(tt.config, tt.slippage, mockLogger{})

			venues := tt.venues
			if venues == nil {
				venues = []venue{
					{id: "a", name: "venue-a", price: "100.00"},
					{id: "b", name: "venue-b", price: "101.80"},
				}
			}

			res := f.Run(context.Background(), snapshot(1, venues...))

			if err := res.Verify(); err != nil {
				t.Fatalf("Verify() = %v", err)
			}
			if len(res.Passed) != 0 {
				t.Fatalf("Passed = %d, want 0", len(res.Passed))
			}
			if len(res.Rejected) != 1 {
				t.Fatalf("Rejected = %d, want 1", len(res.Rejected))
			}
			if got := res.Rejected[0].Reason; got != tt.wantReason {
				t.Errorf("Reason = %s, want %s (%s)", got, tt.wantReason, res.Rejected[0].Detail)
			}
			if res.Rejected[0].Seq == 0 {
				t.Error("rejection has no sequence number")
			}
		})
	}
}

func TestFilter_FallsBackToVenueFeeTier(t *testing.T) {
	f := scenarioFilter(map[string]decimal.Decimal{"venue-a": d("25")})
	snap := snapshot(1,
		venue{id: "a", name: "venue-a", price: "100.00", fee: "99"},
		venue{id: "b", name: "venue-b", price: "101.80", fee: "30"},
	)

	res := f.Run(context.Background(), snap)
	if len(res.Passed) != 1 {
		t.Fatalf("Passed = %d, want 1", len(res.Passed))
	}

	costs := res.Passed[0].Costs()
	if !costs.BuyFeeBps.Equal(d("25")) {
		t.Errorf("BuyFeeBps = %s, want 25 from the venue table", costs.BuyFeeBps)
	}
	if !costs.SellFeeBps.Equal(d("30")) {
		t.Errorf("SellFeeBps = %s, want 30 from the pool", costs.SellFeeBps)
	}
}

func TestFilter_NetProfitIdentity(t *testing.T) {
	f := NewFilter(FilterConfig{
		MinNetProfitBps: d("-10000"),
		MinProfitSOL:    d("-1000"),
		MaxTradeSOL:     d("3"),
		VenueFees:       map[string]decimal.Decimal{"venue-a": d("25"), "venue-b": d("30"), "venue-c": d("4")},
	}, ConstantProductSlippage{}, mockLogger{})

	snap := snapshot(9,
		venue{id: "a", name: "venue-a", price: "100.00", base: "2500", quote: "250000"},
		venue{id: "b", name: "venue-b", price: "101.80", base: "900", quote: "91620"},
		venue{id: "c", name: "venue-c", price: "100.73", base: "12000", quote: "1208760"},
	)

	res := f.Run(context.Background(), snap)
	if res.Considered != 3 {
		t.Fatalf("Considered = %d, want 3", res.Considered)
	}
	if len(res.Passed) != 3 {
		t.Fatalf("Passed = %d, want 3", len(res.Passed))
	}

	for _, opp := range res.Passed {
		c := opp.Costs()
		want := opp.Spread.BasisPoints.Sub(c.BuyFeeBps).Sub(c.SellFeeBps).Sub(c.SlippageBps)
		if !opp.NetProfitBps().Equal(want) {
			t.Errorf("seq %d: NetProfitBps() = %s, want %s", opp.Seq, opp.NetProfitBps(), want)
		}
		if !c.SlippageBps.IsPositive() {
			t.Errorf("seq %d: SlippageBps = %s, want > 0", opp.Seq, c.SlippageBps)
		}
	}
}

func TestFilter_CycleCapacity(t *testing.T) {
	f := NewFilter(FilterConfig{
		MinNetProfitBps: d("-10000"),
		MinProfitSOL:    d("-1000"),
		MaxTradeSOL:     d("1"),
	}, FixedSlippage(d("10")), mockLogger{})
	f.maxOrdinal = 2

	snap := snapshot(5,
		venue{id: "a", name: "venue-a", price: "100.00"},
		venue{id: "b", name: "venue-b", price: "101.80"},
		venue{id: "c", name: "venue-c", price: "100.73"},
	)

	res := f.Run(context.Background(), snap)
	if err := res.Verify(); err != nil {
		t.Fatalf("Verify() = %v", err)
	}
	if res.Considered != 3 {
		t.Fatalf("Considered = %d, want 3", res.Considered)
	}
	if len(res.Passed) != 2 {
		t.Fatalf("Passed = %d, want 2", len(res.Passed))
	}
	if got := res.Counts()[domain.ReasonCycleCapacity]; got != 1 {
		t.Errorf("cycle-capacity rejections = %d, want 1", got)
	}

	seen := make(map[uint64]bool)
	for _, opp := range res.Passed {
		if seen[opp.Seq] {
			t.Errorf("Seq %d assigned twice", opp.Seq)
		}
		seen[opp.Seq] = true
		if opp.Seq>>domain.SeqShift != 5 {
			t.Errorf("Seq %d belongs to cycle %d, want 5", opp.Seq, opp.Seq>>domain.SeqShift)
		}
	}
}

func TestFilter_Deterministic(t *testing.T) {
	f := scenarioFilter(map[string]decimal.Decimal{"venue-a": d("25"), "venue-b": d("30"), "venue-c": d("5")})
	snap := snapshot(4,
		venue{id: "c", name: "venue-c", price: "100.90"},
		venue{id: "a", name: "venue-a", price: "100.00"},
		venue{id: "b", name: "venue-b", price: "101.80"},
		venue{id: "m1", name: "venue-a", pair: "mSOL/SOL", price: "1.150"},
		venue{id: "m2", name: "venue-b", pair: "mSOL/SOL", price: "1.170"},
	)

	first := f.Run(context.Background(), snap)
	second := f.Run(context.Background(), snap)

	if first.Considered != second.Considered || len(first.Passed) != len(second.Passed) || len(first.Rejected) != len(second.Rejected) {
		t.Fatalf("runs differ: %d/%d/%d vs %d/%d/%d",
			first.Considered, len(first.Passed), len(first.Rejected),
			second.Considered, len(second.Passed), len(second.Rejected))
	}
	for i := range first.Passed {
		a, b := first.Passed[i], second.Passed[i]
		if a.Seq != b.Seq || !a.NetProfitBps().Equal(b.NetProfitBps()) || !a.NetProfitSOL().Equal(b.NetProfitSOL()) {
			t.Errorf("passed[%d] differs: seq %d/%d net %s/%s", i, a.Seq, b.Seq, a.NetProfitBps(), b.NetProfitBps())
		}
	}
	for i := range first.Rejected {
		if first.Rejected[i].Seq != second.Rejected[i].Seq || first.Rejected[i].Reason != second.Rejected[i].Reason {
			t.Errorf("rejected[%d] differs", i)
		}
	}

	// a->b and m1->m2 pass; a->c and c->b fall under the absolute floor.
	if len(first.Passed) != 2 {
		t.Fatalf("Passed = %d, want 2", len(first.Passed))
	}
	if first.Passed[0].Pair != "SOL/USDC" || first.Passed[1].Pair != "mSOL/SOL" {
		t.Errorf("passed pairs = %s, %s, want SOL/USDC, mSOL/SOL", first.Passed[0].Pair, first.Passed[1].Pair)
	}
	if first.Passed[1].Seq != domain.NewSeq(4, 4) {
		t.Errorf("mSOL/SOL seq = %d, want %d", first.Passed[1].Seq, domain.NewSeq(4, 4))
	}
	if err := first.Verify(); err != nil {
		t.Errorf("Verify() = %v", err)
	}
}

func TestFilter_SkipsPairsWithOneVenue(t *testing.T) {
	f := scenarioFilter(nil)
	res := f.Run(context.Background(), snapshot(1, venue{id: "a", name: "venue-a", price: "100"}))

	if res.Considered != 0 || len(res.Passed) != 0 || len(res.Rejected) != 0 {
		t.Errorf("got considered=%d passed=%d rejected=%d, want all zero", res.Considered, len(res.Passed), len(res.Rejected))
	}
}

func TestConstantProductSlippage(t *testing.T) {
	tests := []struct {
		name      string
		size      string
		buyBase   string
		sellBase  string
		want      string
		wantDepth bool
	}{
		{
			name:     "both_sides",
			size:     "10",
			buyBase:  "1000",
			sellBase: "1000",
			want:     "200.02", // (10/990 + 10/1010) * 10000
		},
		{
			name:      "size_equals_reserve",
			size:      "1000",
			buyBase:   "1000",
			sellBase:  "1000",
			wantDepth: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buy := venue{id: "a", name: "a", price: "100", base: tt.buyBase}.state()
			sell := venue{id: "b", name: "b", price: "101", base: tt.sellBase}.state()

			got, err := ConstantProductSlippage{}.EstimateBps(d(tt.size), buy, sell)
			if tt.wantDepth {
				if !errors.Is(err, ErrInsufficientDepth) {
					t.Fatalf("err = %v, want ErrInsufficientDepth", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("EstimateBps() error = %v", err)
			}
			if !got.Equal(d(tt.want)) {
				t.Errorf("EstimateBps() = %s, want %s", got, tt.want)
			}
		})
	}
}
