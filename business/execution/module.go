// Package execution implements the execution bounded context: the trade
// state machine, submission and the audit store.
package execution

import (
	"context"

	chainDI "github.com/fd1az/dex-arbitrage/business/chain/di"
	"github.com/fd1az/dex-arbitrage/business/execution/app"
	execDI "github.com/fd1az/dex-arbitrage/business/execution/di"
	"github.com/fd1az/dex-arbitrage/business/execution/infra/live"
	"github.com/fd1az/dex-arbitrage/business/execution/infra/postgres"
	"github.com/fd1az/dex-arbitrage/business/execution/infra/simulated"
	"github.com/fd1az/dex-arbitrage/internal/config"
	"github.com/fd1az/dex-arbitrage/internal/di"
	"github.com/fd1az/dex-arbitrage/internal/logger"
	"github.com/fd1az/dex-arbitrage/internal/monolith"
)

// Module implements the execution bounded context.
type Module struct{}

// RegisterServices registers all execution services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Live submission needs both trading.mode=live and the force flag.
	di.RegisterToken(c, execDI.Submitter, func(sr di.ServiceRegistry) app.Submitter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if !cfg.Trading.LiveExecution() {
			return simulated.New(nil, log)
		}

		sub, err := live.New(live.Config{
			BuilderURL:     cfg.Execution.BuilderURL,
			RequestTimeout: cfg.Execution.TradeTimeout,
			PollInterval:   cfg.Execution.ConfirmPollInterval,
		}, chainDI.GetChainService(sr).Sender(), log)
		if err != nil {
			panic("failed to create live submitter: " + err.Error())
		}
		return sub
	})

	di.RegisterToken(c, execDI.Store, func(sr di.ServiceRegistry) *postgres.Store {
		cfg := sr.Get("config").(*config.Config)
		if cfg.Store.DSN == "" {
			return nil
		}

		pool, err := postgres.NewPool(context.Background(), postgres.Config{
			DSN:            cfg.Store.DSN,
			MaxConns:       cfg.Store.MaxConns,
			ConnectTimeout: cfg.Store.ConnectTimeout,
		})
		if err != nil {
			panic("failed to create store pool: " + err.Error())
		}
		return postgres.NewStore(pool)
	})

	di.RegisterToken(c, execDI.Executor, func(sr di.ServiceRegistry) *app.Executor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		var store app.TradeStore
		if s := execDI.GetStore(sr); s != nil {
			store = s
		}

		return app.NewExecutor(
			execDI.GetSubmitter(sr),
			chainDI.GetChainService(sr),
			store,
			app.Config{
				MaxConcurrentTrades: cfg.Trading.MaxConcurrentTrades,
				FreshnessWindow:     cfg.Execution.FreshnessWindow,
				MaxSlotAge:          cfg.Execution.MaxSlotAge,
				TradeTimeout:        cfg.Execution.TradeTimeout,
				MaxSubmitAttempts:   cfg.Execution.MaxSubmitAttempts,
				ResubmitGuard:       cfg.Execution.ResubmitGuard,
			},
			log,
		)
	})

	return nil
}

// Startup migrates the audit store and logs the execution mode.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	if store := execDI.GetStore(mono.Services()); store != nil {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		log.Info(ctx, "audit store ready")
	}

	sub := execDI.GetSubmitter(mono.Services())
	log.Info(ctx, "execution module started",
		"simulated", sub.Simulated(),
		"max_concurrent_trades", cfg.Trading.MaxConcurrentTrades,
		"max_exposure_sol", cfg.Trading.MaxExposureSOL().String(),
	)
	return nil
}
