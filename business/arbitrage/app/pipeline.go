package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	poolDomain "github.com/fd1az/dex-arbitrage/business/pool/domain"
	"github.com/fd1az/dex-arbitrage/internal/logger"
)

// PipelineConfig holds configuration for the cycle loop.
type PipelineConfig struct {
	Interval time.Duration
}

// Pipeline runs the opportunity stages once per cycle. Each stage consumes
// the complete output of the previous one.
type Pipeline struct {
	source    SnapshotSource
	features  *FeatureTracker
	filter    *Filter
	scoring   *ScoringStage
	discovery *Discovery
	executor  Executor
	reporters []Reporter
	config    PipelineConfig
	logger    logger.LoggerInterface
	now       func() time.Time

	cycleID   atomic.Uint64
	lastCycle atomic.Int64 // unix nanos

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewPipeline creates a new Pipeline. executor may be nil, in which case
// queues are reported but not executed.
func NewPipeline(
	source SnapshotSource,
	features *FeatureTracker,
	filter *Filter,
	scoring *ScoringStage,
	discovery *Discovery,
	executor Executor,
	reporters []Reporter,
	config PipelineConfig,
	logger logger.LoggerInterface,
) *Pipeline {
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	return &Pipeline{
		source:    source,
		features:  features,
		filter:    filter,
		scoring:   scoring,
		discovery: discovery,
		executor:  executor,
		reporters: reporters,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// RunCycle runs every stage once and returns the cycle report. A cycle
// always completes, even when every venue failed.
func (p *Pipeline) RunCycle(ctx context.Context) domain.CycleReport {
	id := p.cycleID.Add(1)
	started := p.now()

	snap := p.source.Collect(ctx, id)
	p.features.Observe(ctx, snap)

	report := domain.CycleReport{
		CycleID:   id,
		StartedAt: started,
		Partial:   snap.Partial,
		Targets:   snap.Len(),
	}
	report.States, report.FetchFailures, report.DecodeErrors = snapshotCounts(snap)

	filtered := p.filter.Run(ctx, snap)
	var stageErrs []error
	if err := filtered.Verify(); err != nil {
		stageErrs = append(stageErrs, err)
	}
	report.Considered = filtered.Considered
	report.Passed = len(filtered.Passed)
	report.FilterRejected = filtered.Counts()

	scored := p.scoring.Score(ctx, filtered.Passed)
	if len(scored) != len(filtered.Passed) {
		stageErrs = append(stageErrs, fmt.Errorf("scoring: %d in, %d out", len(filtered.Passed), len(scored)))
	}
	report.Scored = len(scored)
	for _, s := range scored {
		if s.Degraded {
			report.Degraded++
		}
	}

	discovered := p.discovery.Run(ctx, scored)
	if err := discovered.Verify(); err != nil {
		stageErrs = append(stageErrs, err)
	}
	report.DiscoveryIn = discovered.In
	report.Queued = len(discovered.Queue)
	report.DiscoveryDrop = discovered.Counts()
	if len(discovered.Queue) > 0 {
		top := discovered.Queue[0]
		report.Top = &top
	}

	if p.executor != nil && len(discovered.Queue) > 0 {
		report.Execution = p.executor.Execute(ctx, discovered.Queue)
	}

	report.Duration = p.now().Sub(started)
	report.Err = errors.Join(stageErrs...)
	p.lastCycle.Store(p.now().UnixNano())

	if report.Err != nil {
		p.logger.Error(ctx, "cycle accounting check failed", "cycle", id, "error", report.Err)
	}
	p.logger.Info(ctx, "cycle complete",
		"cycle", id,
		"duration", report.Duration,
		"partial", report.Partial,
		"states", report.States,
		"fetch_failures", report.FetchFailures,
		"considered", report.Considered,
		"passed", report.Passed,
		"rejected", report.Rejected(),
		"scored", report.Scored,
		"degraded", report.Degraded,
		"deduplicated", report.Deduplicated(),
		"queued", report.Queued,
		"executed", report.Execution.Executed,
		"confirmed", report.Execution.Confirmed,
		"failed", report.Execution.Failed+report.Execution.TimedOut,
	)

	for _, r := range p.reporters {
		if err := r.Report(ctx, report); err != nil {
			p.logger.Warn(ctx, "reporter failed", "cycle", id, "error", err)
		}
	}

	return report
}

// ResumeAfter makes the next cycle id follow last. It never moves the
// counter backwards.
func (p *Pipeline) ResumeAfter(last uint64) {
	for {
		cur := p.cycleID.Load()
		if cur >= last || p.cycleID.CompareAndSwap(cur, last) {
			return
		}
	}
}

// LastCycleAt returns when the last cycle finished; zero before the first.
func (p *Pipeline) LastCycleAt() time.Time {
	n := p.lastCycle.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Start starts the reporters and the cycle loop.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	p.logger.Info(ctx, "starting opportunity pipeline", "interval", p.config.Interval)

	for _, r := range p.reporters {
		if err := r.Start(ctx); err != nil {
			return err
		}
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	p.wg.Add(1)
	go p.run(ctx)

	return nil
}

func (p *Pipeline) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info(ctx, "pipeline stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			p.RunCycle(ctx)
		}
	}
}

// Stop gracefully shuts down the pipeline and its reporters.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}

	p.cancel()
	p.wg.Wait()
	p.running = false

	var errs []error
	for _, r := range p.reporters {
		if err := r.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	p.features.Close()
	return errors.Join(errs...)
}

func snapshotCounts(snap poolDomain.Snapshot) (states, fetchFailures, decodeErrors int) {
	states = len(snap.States())
	for _, f := range snap.Failures() {
		if poolDomain.IsDecodeError(f.Err) {
			decodeErrors++
			continue
		}
		fetchFailures++
	}
	return states, fetchFailures, decodeErrors
}
