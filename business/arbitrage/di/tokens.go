// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/dex-arbitrage/business/arbitrage/app"
	"github.com/fd1az/dex-arbitrage/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Pipeline = di.NewToken[*app.Pipeline]("arbitrage.Pipeline")
)

// Private dependency tokens - internal to arbitrage module
var (
	Filter         = di.NewToken[*app.Filter]("arbitrage:filter")
	FeatureTracker = di.NewToken[*app.FeatureTracker]("arbitrage:featureTracker")
	Scorer         = di.NewToken[app.Scorer]("arbitrage:scorer")
	ScoringStage   = di.NewToken[*app.ScoringStage]("arbitrage:scoringStage")
	Discovery      = di.NewToken[*app.Discovery]("arbitrage:discovery")
	Reporters      = di.NewToken[[]app.Reporter]("arbitrage:reporters")
)

// Helper functions for type-safe access
func GetPipeline(c di.ServiceRegistry) *app.Pipeline {
	return di.GetToken(c, Pipeline)
}

func GetFilter(c di.ServiceRegistry) *app.Filter {
	return di.GetToken(c, Filter)
}

func GetFeatureTracker(c di.ServiceRegistry) *app.FeatureTracker {
	return di.GetToken(c, FeatureTracker)
}

func GetScorer(c di.ServiceRegistry) app.Scorer {
	return di.GetToken(c, Scorer)
}

func GetScoringStage(c di.ServiceRegistry) *app.ScoringStage {
	return di.GetToken(c, ScoringStage)
}

func GetDiscovery(c di.ServiceRegistry) *app.Discovery {
	return di.GetToken(c, Discovery)
}

func GetReporters(c di.ServiceRegistry) []app.Reporter {
	return di.GetToken(c, Reporters)
}
