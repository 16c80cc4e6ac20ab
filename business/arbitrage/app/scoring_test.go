package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/dex-arbitrage/internal/apperror"
)

type stubScorer struct {
	confidence string
	err        error
	calls      atomic.Int32
}

func (s *stubScorer) Version() string { return "stub-v2" }

func (s *stubScorer) Score(context.Context, domain.SpecializedOpportunity, domain.FeatureSnapshot) (domain.Score, error) {
	s.calls.Add(1)
	if s.err != nil {
		return domain.Score{}, s.err
	}
	return domain.Score{Confidence: d(s.confidence)}, nil
}

func TestScoringStage_Score(t *testing.T) {
	tests := []struct {
		name          string
		scorer        *stubScorer
		wantConf      string
		wantVersion   string
		wantDegraded  bool
		wantErrorCode bool
	}{
		{
			name:        "scored",
			scorer:      &stubScorer{confidence: "87.5"},
			wantConf:    "87.5",
			wantVersion: "stub-v2",
		},
		{
			name:         "scorer_error_uses_default",
			scorer:       &stubScorer{err: errors.New("connection refused")},
			wantConf:     "25",
			wantVersion:  DefaultScorerVersion,
			wantDegraded: true,
		},
		{
			name: "scoring_unavailable_uses_default",
			scorer: &stubScorer{err: &domain.ScoringUnavailable{
				Scorer: "stub-v2", Reason: "circuit open",
			}},
			wantConf:     "25",
			wantVersion:  DefaultScorerVersion,
			wantDegraded: true,
		},
		{
			name:         "out_of_range_uses_default",
			scorer:       &stubScorer{confidence: "140"},
			wantConf:     "25",
			wantVersion:  DefaultScorerVersion,
			wantDegraded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := NewScoringStage(tt.scorer, NewFeatureTracker(8, time.Minute), ScoringConfig{
				DefaultConfidence: d("25"),
				Timeout:           time.Second,
			}, mockLogger{})

			opps := []domain.SpecializedOpportunity{
				scored(domain.NewSeq(1, 1), "a", "b", "115", "1", "0").SpecializedOpportunity,
				scored(domain.NewSeq(1, 2), "a", "c", "60", "1", "0").SpecializedOpportunity,
			}

			out := stage.Score(context.Background(), opps)

			if len(out) != len(opps) {
				t.Fatalf("len(out) = %d, want %d", len(out), len(opps))
			}
			for i, s := range out {
				if s.Seq != opps[i].Seq {
					t.Errorf("out[%d].Seq = %d, want %d", i, s.Seq, opps[i].Seq)
				}
				if !s.Confidence.Equal(d(tt.wantConf)) {
					t.Errorf("out[%d].Confidence = %s, want %s", i, s.Confidence, tt.wantConf)
				}
				if s.ScorerVersion != tt.wantVersion {
					t.Errorf("out[%d].ScorerVersion = %q, want %q", i, s.ScorerVersion, tt.wantVersion)
				}
				if s.Degraded != tt.wantDegraded {
					t.Errorf("out[%d].Degraded = %v, want %v", i, s.Degraded, tt.wantDegraded)
				}
				if tt.wantDegraded && s.DegradedReason == "" {
					t.Errorf("out[%d].DegradedReason is empty", i)
				}
			}
		})
	}
}

func TestScoringUnavailable_MatchesCode(t *testing.T) {
	err := error(&domain.ScoringUnavailable{Scorer: "http", Reason: "timeout"})
	if !errors.Is(err, apperror.New(apperror.CodeScoringUnavailable)) {
		t.Error("errors.Is(ScoringUnavailable, CodeScoringUnavailable) = false, want true")
	}
	if errors.Is(err, apperror.New(apperror.CodeDecodeError)) {
		t.Error("errors.Is(ScoringUnavailable, CodeDecodeError) = true, want false")
	}
}

func TestHeuristicScorer(t *testing.T) {
	tests := []struct {
		name     string
		netBps   string
		features domain.FeatureSnapshot
		want     string
	}{
		{
			name:   "no_history_capped",
			netBps: "115",
			want:   "50",
		},
		{
			name:   "calm_venues",
			netBps: "40",
			features: domain.FeatureSnapshot{
				Buy:  domain.VenueFeatures{Samples: 10},
				Sell: domain.VenueFeatures{Samples: 10},
			},
			want: "60", // 50 + 40/4
		},
		{
			name:   "volatile_venues",
			netBps: "40",
			features: domain.FeatureSnapshot{
				Buy:  domain.VenueFeatures{Samples: 10, VolatilityBps: d("30")},
				Sell: domain.VenueFeatures{Samples: 10, VolatilityBps: d("10")},
			},
			want: "40", // 50 + 10 - 40/2
		},
		{
			name:   "clamped_high",
			netBps: "1000",
			features: domain.FeatureSnapshot{
				Buy:  domain.VenueFeatures{Samples: 10},
				Sell: domain.VenueFeatures{Samples: 10},
			},
			want: "100",
		},
		{
			name:   "clamped_low",
			netBps: "10",
			features: domain.FeatureSnapshot{
				Buy:  domain.VenueFeatures{Samples: 10, VolatilityBps: d("200")},
				Sell: domain.VenueFeatures{Samples: 10, VolatilityBps: d("200")},
			},
			want: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := scored(domain.NewSeq(1, 1), "a", "b", tt.netBps, "1", "0").SpecializedOpportunity

			got, err := HeuristicScorer{}.Score(context.Background(), opp, tt.features)
			if err != nil {
				t.Fatalf("Score() error = %v", err)
			}
			if !got.Confidence.Equal(d(tt.want)) {
				t.Errorf("Confidence = %s, want %s", got.Confidence, tt.want)
			}
			if got.Version != HeuristicVersion {
				t.Errorf("Version = %q, want %q", got.Version, HeuristicVersion)
			}
		})
	}
}

func TestFeatureTracker(t *testing.T) {
	ctx := context.Background()
	tracker := NewFeatureTracker(3, time.Minute)
	defer tracker.Close()

	for i, price := range []string{"90", "95", "100", "101", "100"} {
		tracker.Observe(ctx, snapshot(uint64(i+1), venue{id: "a", name: "venue-a", price: price}))
	}

	f := tracker.Features(ctx, "a")
	if f.Samples != 3 {
		t.Errorf("Samples = %d, want 3", f.Samples)
	}
	if !f.LastPrice.Equal(d("100")) {
		t.Errorf("LastPrice = %s, want 100", f.LastPrice)
	}

	// Window is 100, 101, 100: returns are +ln(1.01) and -ln(1.01), so the
	// deviation is ln(1.01) = 99.5 bps.
	if f.VolatilityBps.LessThan(d("99.4")) || f.VolatilityBps.GreaterThan(d("99.6")) {
		t.Errorf("VolatilityBps = %s, want ~99.5", f.VolatilityBps)
	}

	if unknown := tracker.Features(ctx, "missing"); unknown.Samples != 0 || !unknown.VolatilityBps.IsZero() {
		t.Errorf("Features(missing) = %+v, want empty", unknown)
	}
}

func TestVolatilityBps_NeedsTwoReturns(t *testing.T) {
	got := volatilityBps([]decimal.Decimal{d("100"), d("101")})
	if !got.IsZero() {
		t.Errorf("volatilityBps(two prices) = %s, want 0", got)
	}
}
