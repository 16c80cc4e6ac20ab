// Package arbitrage implements the arbitrage bounded context: the
// filter, scoring and discovery stages and the cycle loop that drives them.
package arbitrage

import (
	"context"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/app"
	arbDI "github.com/fd1az/dex-arbitrage/business/arbitrage/di"
	"github.com/fd1az/dex-arbitrage/business/arbitrage/infra"
	execDI "github.com/fd1az/dex-arbitrage/business/execution/di"
	poolDI "github.com/fd1az/dex-arbitrage/business/pool/di"
	"github.com/fd1az/dex-arbitrage/internal/config"
	"github.com/fd1az/dex-arbitrage/internal/di"
	"github.com/fd1az/dex-arbitrage/internal/logger"
	"github.com/fd1az/dex-arbitrage/internal/monolith"
)

// Module implements the arbitrage bounded context.
type Module struct{}

// RegisterServices registers all arbitrage services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbDI.Filter, func(sr di.ServiceRegistry) *app.Filter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewFilter(app.FilterConfig{
			MinNetProfitBps:   cfg.Filter.MinNetProfitBps,
			MinGrossSpreadBps: cfg.Filter.MinGrossSpreadBps,
			MinProfitSOL:      cfg.Trading.MinProfitSOL,
			MaxTradeSOL:       cfg.Trading.MaxTradeAmountSOL,
			MaxSlippageBps:    cfg.Risk.MaxSlippageBps(),
			VenueFees:         cfg.FeeTable(),
		}, nil, log)
	})

	di.RegisterToken(c, arbDI.FeatureTracker, func(sr di.ServiceRegistry) *app.FeatureTracker {
		cfg := sr.Get("config").(*config.Config)
		return app.NewFeatureTracker(cfg.Scorer.FeatureWindow, cfg.Scorer.FeatureTTL)
	})

	// Without a model endpoint every opportunity gets the heuristic score.
	di.RegisterToken(c, arbDI.Scorer, func(sr di.ServiceRegistry) app.Scorer {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		if cfg.Scorer.URL == "" {
			return app.HeuristicScorer{}
		}

		scorer, err := infra.NewHTTPScorer(infra.HTTPScorerConfig{
			URL:     cfg.Scorer.URL,
			Timeout: cfg.Scorer.Timeout,
		}, log)
		if err != nil {
			panic("failed to create scorer client: " + err.Error())
		}
		return scorer
	})

	di.RegisterToken(c, arbDI.ScoringStage, func(sr di.ServiceRegistry) *app.ScoringStage {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewScoringStage(
			arbDI.GetScorer(sr),
			arbDI.GetFeatureTracker(sr),
			app.ScoringConfig{
				DefaultConfidence: cfg.Scorer.DefaultConfidence,
				Timeout:           cfg.Scorer.Timeout,
				Concurrency:       cfg.Pipeline.FetchConcurrency,
			},
			log,
		)
	})

	di.RegisterToken(c, arbDI.Discovery, func(sr di.ServiceRegistry) *app.Discovery {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewDiscovery(app.DiscoveryConfig{
			MaxQueue:       cfg.Discovery.MaxQueue,
			MinConfidence:  cfg.Discovery.MinConfidence,
			DegradedWeight: cfg.Discovery.DegradedWeight,
		}, log)
	})

	// The dashboard replaces console output in TUI mode. Metrics need
	// telemetry; the audit store needs a DSN.
	di.RegisterToken(c, arbDI.Reporters, func(sr di.ServiceRegistry) []app.Reporter {
		cfg := sr.Get("config").(*config.Config)

		var reporters []app.Reporter
		if cfg.App.TUI {
			reporters = append(reporters, infra.NewTUIReporter())
		} else {
			reporters = append(reporters, infra.NewConsoleReporter(cfg.App.LogLevel == "debug"))
		}

		if cfg.Telemetry.Enabled {
			metrics, err := infra.NewMetricsReporter()
			if err != nil {
				panic("failed to create metrics reporter: " + err.Error())
			}
			reporters = append(reporters, metrics)
		}

		if store := execDI.GetStore(sr); store != nil {
			reporters = append(reporters, store)
		}
		return reporters
	})

	di.RegisterToken(c, arbDI.Pipeline, func(sr di.ServiceRegistry) *app.Pipeline {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewPipeline(
			poolDI.GetAggregator(sr),
			arbDI.GetFeatureTracker(sr),
			arbDI.GetFilter(sr),
			arbDI.GetScoringStage(sr),
			arbDI.GetDiscovery(sr),
			execDI.GetExecutor(sr),
			arbDI.GetReporters(sr),
			app.PipelineConfig{Interval: cfg.Pipeline.Interval},
			log,
		)
	})

	return nil
}

// Startup starts the cycle loop.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	scorer := arbDI.GetScorer(mono.Services())
	pipeline := arbDI.GetPipeline(mono.Services())

	// Audit rows are keyed by sequence number; continue after the last run.
	if store := execDI.GetStore(mono.Services()); store != nil {
		last, err := store.LastCycleID(ctx)
		if err != nil {
			return err
		}
		pipeline.ResumeAfter(last)
		log.Info(ctx, "resuming cycle numbering", "last_cycle", last)
	}

	if err := pipeline.Start(ctx); err != nil {
		return err
	}

	log.Info(ctx, "arbitrage module started",
		"scorer", scorer.Version(),
		"interval", cfg.Pipeline.Interval,
		"max_queue", cfg.Discovery.MaxQueue,
		"min_net_profit_bps", cfg.Filter.MinNetProfitBps.String(),
	)
	return nil
}
