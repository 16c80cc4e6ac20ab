// Package chain implements the chain bounded context: slot tracking and
// transaction submission over Solana RPC.
package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/dex-arbitrage/business/chain/app"
	chainDI "github.com/fd1az/dex-arbitrage/business/chain/di"
	"github.com/fd1az/dex-arbitrage/business/chain/infra/solana"
	"github.com/fd1az/dex-arbitrage/internal/config"
	"github.com/fd1az/dex-arbitrage/internal/di"
	"github.com/fd1az/dex-arbitrage/internal/logger"
	"github.com/fd1az/dex-arbitrage/internal/monolith"
)

// Module implements the chain bounded context.
type Module struct{}

// RegisterServices registers all chain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register SlotTracker (private - internal dependency)
	di.RegisterToken(c, chainDI.SlotTracker, func(sr di.ServiceRegistry) app.SlotTracker {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("rpcClient").(*rpc.Client)

		trackerCfg := solana.DefaultSlotTrackerConfig(cfg.Chain.WebSocketURL)
		trackerCfg.Commitment = cfg.Chain.Commitment
		trackerCfg.PollInterval = cfg.Chain.PollInterval
		trackerCfg.InitialBackoff = cfg.Chain.InitialBackoff
		trackerCfg.MaxBackoff = cfg.Chain.MaxBackoff

		tracker, err := solana.NewSlotTracker(client, trackerCfg, log)
		if err != nil {
			panic("failed to create slot tracker: " + err.Error())
		}
		return tracker
	})

	// Register TransactionSender (private - internal dependency)
	di.RegisterToken(c, chainDI.TransactionSender, func(sr di.ServiceRegistry) app.TransactionSender {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("rpcClient").(*rpc.Client)

		return solana.NewTransactionClient(client, solana.TransactionConfig{
			Commitment:        cfg.Chain.Commitment,
			RequestsPerMinute: cfg.Chain.RequestsPerMinute,
		}, log)
	})

	// Register ChainService (public - exposed to other modules)
	di.RegisterToken(c, chainDI.ChainService, func(sr di.ServiceRegistry) *app.ChainService {
		return app.NewChainService(chainDI.GetSlotTracker(sr), chainDI.GetTransactionSender(sr))
	})

	return nil
}

// Startup starts the slot tracker. A tracker that cannot reach either
// source is logged, not fatal: freshness checks then reject every trade.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	tracker := chainDI.GetSlotTracker(mono.Services())
	if err := tracker.Start(ctx); err != nil {
		log.Error(ctx, "failed to start slot tracker", "error", err)
	}

	log.Info(ctx, "chain module started", "slot", tracker.CurrentSlot())
	return nil
}
