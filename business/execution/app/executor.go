package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	arbDomain "github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/dex-arbitrage/business/execution/domain"
	"github.com/fd1az/dex-arbitrage/internal/cache"
	"github.com/fd1az/dex-arbitrage/internal/logger"
)

// Outcome statuses that never reach the state machine's terminal states.
const (
	OutcomeStale   = "stale"
	OutcomeSkipped = "skipped"
)

// Config holds executor limits.
type Config struct {
	MaxConcurrentTrades int
	// FreshnessWindow bounds the age of the oldest route observation.
	FreshnessWindow time.Duration
	// MaxSlotAge bounds the slots passed since the oldest route state; 0
	// disables the check.
	MaxSlotAge        uint64
	TradeTimeout      time.Duration
	MaxSubmitAttempts int
	RetryBackoff      time.Duration
	// ResubmitGuard is how long a submitted route is blocked from being
	// submitted again.
	ResubmitGuard time.Duration
}

// Executor runs ranked opportunities under a global concurrency cap.
type Executor struct {
	submitter Submitter
	slots     SlotClock
	store     TradeStore
	config    Config
	logger    logger.LoggerInterface
	now       func() time.Time

	sem   *semaphore.Weighted
	guard *cache.Cache[string, uint64]
}

// NewExecutor creates a new Executor. slots and store may be nil.
func NewExecutor(submitter Submitter, slots SlotClock, store TradeStore, config Config, log logger.LoggerInterface) *Executor {
	if config.MaxConcurrentTrades < 1 {
		config.MaxConcurrentTrades = 1
	}
	if config.MaxSubmitAttempts < 1 {
		config.MaxSubmitAttempts = 1
	}
	if config.TradeTimeout <= 0 {
		config.TradeTimeout = 30 * time.Second
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = 100 * time.Millisecond
	}
	return &Executor{
		submitter: submitter,
		slots:     slots,
		store:     store,
		config:    config,
		logger:    log,
		now:       time.Now,
		sem:       semaphore.NewWeighted(int64(config.MaxConcurrentTrades)),
		guard:     cache.New[string, uint64](time.Minute),
	}
}

// Execute dequeues in rank order. Each dequeue waits for a free slot, so at
// most MaxConcurrentTrades trades are in flight across all callers.
func (e *Executor) Execute(ctx context.Context, queue []arbDomain.UnifiedOpportunity) arbDomain.ExecutionSummary {
	outcomes := make([]arbDomain.TradeOutcome, len(queue))

	var wg sync.WaitGroup
	for i, opp := range queue {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(queue); j++ {
				outcomes[j] = arbDomain.TradeOutcome{
					Seq:      queue[j].Seq,
					DedupKey: queue[j].DedupKey.Hex(),
					Status:   OutcomeSkipped,
					Reason:   "cancelled before dequeue: " + err.Error(),
				}
			}
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer e.sem.Release(1)
			outcomes[i] = e.executeOne(ctx, opp)
		}()
	}
	wg.Wait()

	return summarize(outcomes)
}

// Close stops the resubmit guard janitor.
func (e *Executor) Close() {
	e.guard.Close()
}

func (e *Executor) executeOne(ctx context.Context, opp arbDomain.UnifiedOpportunity) arbDomain.TradeOutcome {
	key := opp.DedupKey.Hex()
	out := arbDomain.TradeOutcome{Seq: opp.Seq, DedupKey: key, Simulated: e.submitter.Simulated()}

	trade := domain.NewTradeExecution(key, opp.Seq, opp.CycleID, opp.Pair, opp.Route,
		opp.SizeSOL, opp.NetProfitSOL, e.submitter.Simulated(), e.now())

	if err := e.checkFresh(opp); err != nil {
		e.logger.Info(ctx, "stale opportunity rejected", "seq", opp.Seq, "dedup_key", key, "reason", err.Reason)
		e.apply(ctx, trade, trade.Fail(err.Error(), e.now()))
		e.save(ctx, trade)
		out.Status = OutcomeStale
		out.Reason = err.Reason
		return out
	}

	if !e.guard.SetIfAbsent(ctx, key, opp.Seq, e.config.ResubmitGuard) {
		prev, _ := e.guard.Get(ctx, key)
		out.Status = OutcomeSkipped
		out.Reason = fmt.Sprintf("route already submitted by seq %d", prev)
		e.logger.Debug(ctx, "resubmit blocked", "seq", opp.Seq, "dedup_key", key, "previous", prev)
		return out
	}

	tradeCtx, cancel := context.WithTimeout(ctx, e.config.TradeTimeout)
	defer cancel()

	signature, err := e.submit(tradeCtx, trade, opp)
	if err != nil {
		// Nothing reached the chain; later cycles may try the route again.
		e.guard.Delete(ctx, key)
		e.apply(ctx, trade, trade.Fail(err.Error(), e.now()))
		e.logger.Warn(ctx, "trade submission failed",
			"seq", opp.Seq, "dedup_key", key, "attempts", trade.Attempts(), "error", err)
		return e.finish(ctx, trade, out)
	}
	if err := trade.MarkSubmitted(signature, e.now()); err != nil {
		// Whether anything was sent is unknown, so the route stays guarded.
		e.apply(ctx, trade, trade.Fail("submit refused: "+err.Error(), e.now()))
		e.logger.Error(ctx, "submitter returned an unusable signature", "seq", opp.Seq, "dedup_key", key, "error", err)
		return e.finish(ctx, trade, out)
	}
	e.logger.Info(ctx, "trade submitted", "seq", opp.Seq, "signature", signature, "simulated", trade.Simulated)

	settlement, err := e.submitter.Await(tradeCtx, signature, opp)
	switch {
	case err == nil:
		e.apply(ctx, trade, trade.Confirm(settlement.RealizedProfitSOL, e.now()))
	case domain.IsExecutionFailure(err):
		e.apply(ctx, trade, trade.Fail(err.Error(), e.now()))
	default:
		// Confirmation state unknown. The route stays guarded and the
		// trade is never resubmitted.
		e.apply(ctx, trade, trade.TimeOut(e.now()))
		e.logger.Warn(ctx, "trade confirmation timed out", "seq", opp.Seq, "signature", signature, "error", err)
	}

	return e.finish(ctx, trade, out)
}

// submit retries only while no signature exists. ExecutionFailure is
// permanent. A signature returned with an error may already be on-chain,
// so it is followed instead of retried.
func (e *Executor) submit(ctx context.Context, trade *domain.TradeExecution, opp arbDomain.UnifiedOpportunity) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= e.config.MaxSubmitAttempts; attempt++ {
		if err := trade.RecordAttempt(); err != nil {
			return "", err
		}

		signature, err := e.submitter.Submit(ctx, opp)
		if signature != "" {
			if err != nil {
				e.logger.Warn(ctx, "following signature with unknown send outcome",
					"seq", opp.Seq, "signature", signature, "error", err)
			}
			return signature, nil
		}
		if err == nil {
			return "", nil
		}
		lastErr = err
		if domain.IsExecutionFailure(err) || ctx.Err() != nil {
			break
		}

		e.logger.Debug(ctx, "submit attempt failed", "seq", opp.Seq, "attempt", attempt, "error", err)
		if attempt < e.config.MaxSubmitAttempts {
			select {
			case <-ctx.Done():
				return "", errors.Join(lastErr, ctx.Err())
			case <-time.After(e.config.RetryBackoff * time.Duration(attempt)):
			}
		}
	}
	return "", lastErr
}

// apply logs a refused state transition.
func (e *Executor) apply(ctx context.Context, trade *domain.TradeExecution, err error) {
	if err != nil {
		e.logger.Error(ctx, "trade transition refused", "seq", trade.Seq, "status", trade.Status(), "error", err)
	}
}

func (e *Executor) checkFresh(opp arbDomain.UnifiedOpportunity) *domain.StaleOpportunity {
	if w := e.config.FreshnessWindow; w > 0 {
		if age := opp.Age(e.now()); age > w {
			return &domain.StaleOpportunity{
				Seq:    opp.Seq,
				Reason: fmt.Sprintf("observed %s ago, window %s", age.Truncate(time.Millisecond), w),
			}
		}
	}
	// Quote legs may carry no slot; the time window covers them.
	if e.slots != nil && e.config.MaxSlotAge > 0 && opp.SourceSlot > 0 {
		if age := e.slots.SlotAge(opp.SourceSlot); age > e.config.MaxSlotAge {
			return &domain.StaleOpportunity{
				Seq:    opp.Seq,
				Reason: fmt.Sprintf("slot age %d > %d", age, e.config.MaxSlotAge),
			}
		}
	}
	return nil
}

func (e *Executor) finish(ctx context.Context, trade *domain.TradeExecution, out arbDomain.TradeOutcome) arbDomain.TradeOutcome {
	if !trade.Status().Terminal() {
		e.apply(ctx, trade, trade.Fail("execution ended in state "+string(trade.Status()), e.now()))
	}
	e.save(ctx, trade)

	out.Status = string(trade.Status())
	out.Signature = trade.Signature()
	out.Reason = trade.Reason()
	out.RealizedProfitSOL = trade.RealizedProfitSOL()

	e.logger.Info(ctx, "trade finished",
		"seq", trade.Seq,
		"status", trade.Status(),
		"simulated", trade.Simulated,
		"attempts", trade.Attempts(),
		"expected_sol", trade.ExpectedProfitSOL.String(),
		"realized_sol", trade.RealizedProfitSOL().String(),
	)
	return out
}

func (e *Executor) save(ctx context.Context, trade *domain.TradeExecution) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveTrade(context.WithoutCancel(ctx), trade); err != nil {
		e.logger.Warn(ctx, "failed to persist trade", "seq", trade.Seq, "error", err)
	}
}

func summarize(outcomes []arbDomain.TradeOutcome) arbDomain.ExecutionSummary {
	s := arbDomain.ExecutionSummary{
		Dequeued:           len(outcomes),
		RealizedProfitSOL:  decimal.Zero,
		SimulatedProfitSOL: decimal.Zero,
		Outcomes:           outcomes,
	}
	for _, o := range outcomes {
		if o.Signature != "" {
			s.Executed++
		}
		switch o.Status {
		case string(domain.StatusConfirmed):
			s.Confirmed++
			if o.Simulated {
				s.SimulatedProfitSOL = s.SimulatedProfitSOL.Add(o.RealizedProfitSOL)
			} else {
				s.RealizedProfitSOL = s.RealizedProfitSOL.Add(o.RealizedProfitSOL)
			}
		case string(domain.StatusFailed):
			s.Failed++
		case string(domain.StatusTimedOut):
			s.TimedOut++
		case OutcomeStale:
			s.Stale++
		case OutcomeSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}
