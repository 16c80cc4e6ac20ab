// Package pool implements the pool bounded context: account decoding and
// per-cycle aggregation of venue state.
package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/dex-arbitrage/business/pool/app"
	poolDI "github.com/fd1az/dex-arbitrage/business/pool/di"
	"github.com/fd1az/dex-arbitrage/business/pool/domain"
	"github.com/fd1az/dex-arbitrage/business/pool/infra/quote"
	"github.com/fd1az/dex-arbitrage/business/pool/infra/solana"
	"github.com/fd1az/dex-arbitrage/business/pool/infra/sqlite"
	"github.com/fd1az/dex-arbitrage/internal/asset"
	"github.com/fd1az/dex-arbitrage/internal/config"
	"github.com/fd1az/dex-arbitrage/internal/di"
	"github.com/fd1az/dex-arbitrage/internal/logger"
	"github.com/fd1az/dex-arbitrage/internal/monolith"
)

// Module implements the pool bounded context.
type Module struct{}

// RegisterServices registers all pool services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, poolDI.Decoder, func(sr di.ServiceRegistry) *app.Decoder {
		cfg := sr.Get("config").(*config.Config)
		assets := sr.Get("assetRegistry").(*asset.Registry)
		return app.NewDecoder(assets, cfg.Pool.MaxReserveRaw)
	})

	di.RegisterToken(c, poolDI.AccountReader, func(sr di.ServiceRegistry) app.AccountReader {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("rpcClient").(*rpc.Client)

		reader, err := solana.NewAccountReader(client, solana.Config{
			Commitment:        cfg.Chain.Commitment,
			RequestsPerMinute: cfg.Chain.RequestsPerMinute,
			Timeout:           cfg.Pipeline.CycleDeadline(),
		}, log)
		if err != nil {
			panic("failed to create account reader: " + err.Error())
		}
		return reader
	})

	// QuoteSource resolves to nil when no quote endpoint is configured; the
	// aggregator then fails quote targets with a FetchError.
	di.RegisterToken(c, poolDI.QuoteSource, func(sr di.ServiceRegistry) app.QuoteSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		if cfg.Quote.BaseURL == "" {
			return nil
		}

		client, err := quote.NewClient(quote.Config{
			BaseURL:           cfg.Quote.BaseURL,
			Timeout:           cfg.Quote.Timeout,
			RequestsPerMinute: cfg.Quote.RequestsPerMinute,
		}, log)
		if err != nil {
			panic("failed to create quote client: " + err.Error())
		}
		return client
	})

	di.RegisterToken(c, poolDI.Aggregator, func(sr di.ServiceRegistry) *app.Aggregator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		targets, err := LoadConfiguredTargets(context.Background(), cfg)
		if err != nil {
			panic("failed to load targets: " + err.Error())
		}

		return app.NewAggregator(
			targets,
			poolDI.GetAccountReader(sr),
			poolDI.GetQuoteSource(sr),
			poolDI.GetDecoder(sr),
			app.AggregatorConfig{
				Concurrency: cfg.Pipeline.FetchConcurrency,
				Deadline:    cfg.Pipeline.CycleDeadline(),
			},
			log,
		)
	})

	return nil
}

// Startup initializes the pool module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	agg := poolDI.GetAggregator(mono.Services())
	targets := agg.Targets()

	venues := make(map[string]struct{})
	for _, t := range targets {
		venues[t.Venue] = struct{}{}
		log.Debug(ctx, "target registered",
			"id", t.ID,
			"venue", t.Venue,
			"pair", t.Pair,
			"source", t.Source,
			"layout", t.LayoutKey().String(),
		)
	}

	log.Info(ctx, "pool module started", "targets", len(targets), "venues", len(venues))
	return nil
}

// LoadConfiguredTargets merges the config targets with the sqlite registry
// when one is configured.
func LoadConfiguredTargets(ctx context.Context, cfg *config.Config) ([]domain.Target, error) {
	sources := []app.TargetSource{app.StaticTargets(TargetsFromConfig(cfg.Targets))}

	if cfg.Registry.SQLitePath != "" {
		reg, err := sqlite.Open(ctx, cfg.Registry.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open target registry: %w", err)
		}
		defer reg.Close()
		sources = append(sources, reg)
	}

	return app.LoadTargets(ctx, sources...)
}

// TargetsFromConfig converts config rows into targets. Source defaults to
// account reads.
func TargetsFromConfig(rows []config.TargetConfig) []domain.Target {
	out := make([]domain.Target, 0, len(rows))
	for _, r := range rows {
		source := domain.Source(r.Source)
		if source == "" {
			source = domain.SourceAccount
		}
		out = append(out, domain.Target{
			ID:            r.ID,
			Venue:         r.Venue,
			Pair:          r.Pair,
			Source:        source,
			Protocol:      domain.Protocol(r.Protocol),
			Version:       r.Version,
			Account:       r.Account,
			VaultA:        r.VaultA,
			VaultB:        r.VaultB,
			BaseDecimals:  r.BaseDecimals,
			QuoteDecimals: r.QuoteDecimals,
		})
	}
	return out
}
