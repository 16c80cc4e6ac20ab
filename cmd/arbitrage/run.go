package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fd1az/dex-arbitrage/business/arbitrage"
	arbDI "github.com/fd1az/dex-arbitrage/business/arbitrage/di"
	"github.com/fd1az/dex-arbitrage/business/chain"
	chainDI "github.com/fd1az/dex-arbitrage/business/chain/di"
	"github.com/fd1az/dex-arbitrage/business/execution"
	execDI "github.com/fd1az/dex-arbitrage/business/execution/di"
	"github.com/fd1az/dex-arbitrage/business/pool"
	"github.com/fd1az/dex-arbitrage/internal/apm"
	"github.com/fd1az/dex-arbitrage/internal/config"
	"github.com/fd1az/dex-arbitrage/internal/health"
	"github.com/fd1az/dex-arbitrage/internal/logger"
	"github.com/fd1az/dex-arbitrage/internal/metrics"
	"github.com/fd1az/dex-arbitrage/internal/monolith"
	"github.com/fd1az/dex-arbitrage/pkg/ui"
)

// slotFeedMaxAge is how long the slot feed may stall before /ready fails.
const slotFeedMaxAge = 10 * time.Second

func run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	level := logger.ParseLevel(cfg.App.LogLevel)
	var log *logger.Logger
	switch {
	case cfg.App.TUI:
		// Log lines would tear the dashboard.
		log = logger.New(io.Discard, level, cfg.App.Name, nil)
	case cfg.App.Environment == "development":
		log = logger.NewConsole(os.Stderr, level, cfg.App.Name)
	default:
		log = logger.New(os.Stderr, level, cfg.App.Name, apm.TraceID)
	}
	log.Info(ctx, "starting dex arbitrage pipeline",
		"version", version,
		"environment", cfg.App.Environment,
		"mode", cfg.Trading.Mode,
		"live_execution", cfg.Trading.LiveExecution(),
	)

	if cfg.Telemetry.Enabled {
		tp := startTelemetry(ctx, cfg, log)
		defer tp.Stop()
	}

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Define modules in dependency order
	modules := []monolith.Module{
		&chain.Module{},     // slot tracking and transaction sending
		&pool.Module{},      // venue state aggregation
		&execution.Module{}, // depends on chain
		&arbitrage.Module{}, // depends on pool and execution; starts the pipeline
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	healthServer := newHealthServer(cfg, mono)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.Health.Port)
	}
	defer healthServer.Stop(context.Background())

	if cfg.App.TUI {
		return runTUI(ctx, cfg, mono, modules)
	}

	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	log.Info(ctx, "all modules started")
	<-ctx.Done()
	log.Info(ctx, "shutting down")

	shutdown(context.Background(), mono, log)
	return nil
}

// runTUI shows the dashboard immediately and starts the modules behind it.
// Quitting the dashboard stops the pipeline the same way a signal does.
func runTUI(ctx context.Context, cfg *config.Config, mono *monolith.App, modules []monolith.Module) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := ui.NewProgram(cfg.Trading.LiveExecution())
	log := mono.Logger()

	errCh := make(chan error, 1)
	go func() {
		if err := mono.StartModules(ctx, modules...); err != nil {
			err = fmt.Errorf("failed to start modules: %w", err)
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}

		go pumpSlotStatus(ctx, mono)

		<-ctx.Done()
		shutdown(context.Background(), mono, log)
		errCh <- nil
	}()

	// A signal ends the program as well as a key press.
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	cancel()
	return <-errCh
}

func pumpSlotStatus(ctx context.Context, mono monolith.Monolith) {
	svc := chainDI.GetChainService(mono.Services())
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ui.Send(ui.SlotMsg{Status: svc.Status()})
		}
	}
}

// shutdown stops the cycle loop first so no trade starts while the
// executor and the slot feed go away.
func shutdown(ctx context.Context, mono monolith.Monolith, log logger.LoggerInterface) {
	sr := mono.Services()

	if err := arbDI.GetPipeline(sr).Stop(); err != nil {
		log.Error(ctx, "error stopping pipeline", "error", err)
	}
	execDI.GetExecutor(sr).Close()
	if err := chainDI.GetSlotTracker(sr).Close(); err != nil {
		log.Error(ctx, "error stopping slot tracker", "error", err)
	}
}

func startTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) apm.TraceProvider {
	tp, err := apm.NewTraceProvider(log, apm.Provider(cfg.Telemetry.Exporter), apm.Options{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
	})
	if err == nil {
		log.Info(ctx, "tracing initialized", "provider", cfg.Telemetry.Exporter, "endpoint", cfg.Telemetry.OTLPEndpoint)
	}

	opts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
	}
	if cfg.Telemetry.OTLPEndpoint != "" && cfg.Telemetry.Exporter != string(apm.ZipkinProvider) {
		opts = append(opts, metrics.WithProviderConfig(metrics.ProviderCfg{
			Provider: metrics.OtelCollector,
			Endpoint: cfg.Telemetry.OTLPEndpoint,
		}))
	}
	if _, err := metrics.NewMetricProvider(opts...); err != nil {
		log.Warn(ctx, "metrics disabled", "error", err)
		return tp
	}

	port := strconv.Itoa(cfg.Telemetry.PrometheusPort)
	go func() {
		if err := metrics.ServePrometheusMetrics(ctx, metrics.WithPort(port)); err != nil {
			log.Error(ctx, "prometheus server failed", "error", err)
		}
	}()
	log.Info(ctx, "prometheus metrics server started", "port", port)
	return tp
}

func newHealthServer(cfg *config.Config, mono monolith.Monolith) *health.Server {
	sr := mono.Services()
	srv := health.NewServer(cfg.Health.Port, version)

	srv.RegisterCheck("slot_feed", func(ctx context.Context) (bool, string) {
		if err := chainDI.GetChainService(sr).CheckFresh(ctx, slotFeedMaxAge); err != nil {
			return false, err.Error()
		}
		return true, ""
	})

	// A cycle that has not finished within a few intervals means the loop
	// is stuck.
	maxCycleAge := 5*cfg.Pipeline.Interval + cfg.Pipeline.CycleDeadline()
	srv.RegisterCheck("pipeline", func(ctx context.Context) (bool, string) {
		last := arbDI.GetPipeline(sr).LastCycleAt()
		if last.IsZero() {
			return false, "no cycle completed yet"
		}
		if age := time.Since(last); age > maxCycleAge {
			return false, "last cycle " + age.Truncate(time.Millisecond).String() + " ago"
		}
		return true, ""
	})

	if cfg.Store.DSN != "" {
		srv.RegisterCheck("audit_store", func(ctx context.Context) (bool, string) {
			if err := execDI.GetStore(sr).Ping(ctx); err != nil {
				return false, err.Error()
			}
			return true, ""
		})
	}

	return srv
}
