package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/dex-arbitrage/internal/logger"
)

// DefaultScorerVersion tags records scored with the configured default
// confidence.
const DefaultScorerVersion = "default"

// Scorer is the confidence model boundary. Errors mean the model could not
// answer; callers treat any error as ScoringUnavailable.
type Scorer interface {
	Score(ctx context.Context, opp domain.SpecializedOpportunity, features domain.FeatureSnapshot) (domain.Score, error)
	Version() string
}

// ScoringConfig holds the scoring stage settings.
type ScoringConfig struct {
	DefaultConfidence decimal.Decimal
	Timeout           time.Duration
	Concurrency       int
}

// ScoringStage attaches a confidence to every filtered opportunity. It
// never drops one: a failed or out-of-range answer becomes the default
// confidence with Degraded set.
type ScoringStage struct {
	scorer   Scorer
	features *FeatureTracker
	config   ScoringConfig
	logger   logger.LoggerInterface
}

// NewScoringStage creates a new ScoringStage.
func NewScoringStage(scorer Scorer, features *FeatureTracker, config ScoringConfig, log logger.LoggerInterface) *ScoringStage {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	return &ScoringStage{
		scorer:   scorer,
		features: features,
		config:   config,
		logger:   log,
	}
}

// Score returns one ScoredOpportunity per input, in input order.
func (s *ScoringStage) Score(ctx context.Context, opps []domain.SpecializedOpportunity) []domain.ScoredOpportunity {
	out := make([]domain.ScoredOpportunity, len(opps))

	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for i, opp := range opps {
		g.Go(func() error {
			out[i] = s.scoreOne(ctx, opp)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (s *ScoringStage) scoreOne(ctx context.Context, opp domain.SpecializedOpportunity) domain.ScoredOpportunity {
	features := s.features.Snapshot(ctx, opp)

	callCtx := ctx
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	score, err := s.scorer.Score(callCtx, opp, features)
	if err == nil && !domain.ValidConfidence(score.Confidence) {
		err = &domain.ScoringUnavailable{
			Scorer: s.scorer.Version(),
			Reason: "confidence out of range: " + score.Confidence.String(),
		}
	}
	if err != nil {
		if !domain.IsScoringUnavailable(err) {
			err = &domain.ScoringUnavailable{Scorer: s.scorer.Version(), Reason: "scorer error", Err: err}
		}
		s.logger.Warn(ctx, "scoring unavailable, using default confidence",
			"seq", opp.Seq,
			"pair", opp.Pair,
			"confidence", s.config.DefaultConfidence.String(),
			"error", err,
		)
		return domain.ScoredOpportunity{
			SpecializedOpportunity: opp,
			Confidence:             s.config.DefaultConfidence,
			ScorerVersion:          DefaultScorerVersion,
			Degraded:               true,
			DegradedReason:         err.Error(),
		}
	}

	version := score.Version
	if version == "" {
		version = s.scorer.Version()
	}
	s.logger.Debug(ctx, "opportunity scored",
		"seq", opp.Seq,
		"confidence", score.Confidence.String(),
		"version", version,
	)
	return domain.ScoredOpportunity{
		SpecializedOpportunity: opp,
		Confidence:             score.Confidence,
		ScorerVersion:          version,
	}
}

// HeuristicScorer is the built-in scorer used when no model endpoint is
// configured. Confidence rises with the net edge and falls with venue
// volatility; venues with too little history are capped at 50.
type HeuristicScorer struct{}

// HeuristicVersion is the version tag of HeuristicScorer.
const HeuristicVersion = "heuristic-v1"

var (
	fifty = decimal.NewFromInt(50)
	four  = decimal.NewFromInt(4)
	two   = decimal.NewFromInt(2)
)

// Version implements Scorer.
func (HeuristicScorer) Version() string { return HeuristicVersion }

// Score implements Scorer.
func (HeuristicScorer) Score(_ context.Context, opp domain.SpecializedOpportunity, f domain.FeatureSnapshot) (domain.Score, error) {
	vol := f.Buy.VolatilityBps.Add(f.Sell.VolatilityBps)
	conf := fifty.Add(opp.NetProfitBps().Div(four)).Sub(vol.Div(two))

	if min(f.Buy.Samples, f.Sell.Samples) < 2 && conf.GreaterThan(fifty) {
		conf = fifty
	}
	conf = decimal.Max(decimal.Zero, decimal.Min(conf, decimal.NewFromInt(100)))

	return domain.Score{Confidence: conf.Round(2), Version: HeuristicVersion}, nil
}
