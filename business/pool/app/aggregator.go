package app

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/dex-arbitrage/business/pool/domain"
	"github.com/fd1az/dex-arbitrage/internal/apm"
	"github.com/fd1az/dex-arbitrage/internal/apperror"
	"github.com/fd1az/dex-arbitrage/internal/logger"
)

// AggregatorConfig holds configuration for the aggregator.
type AggregatorConfig struct {
	Concurrency int
	// Deadline bounds one Collect call; fetches still running when it
	// expires are recorded as timed out.
	Deadline time.Duration
}

// Aggregator fetches every target once per cycle into a Snapshot.
// Each target is isolated: its failure is recorded and never aborts the others.
type Aggregator struct {
	targets  []domain.Target
	accounts AccountReader
	quotes   QuoteSource
	decoder  *Decoder
	config   AggregatorConfig
	tracer   apm.Tracer
	log      logger.LoggerInterface
	now      func() time.Time
}

// NewAggregator creates an aggregator over a fixed target set. quotes may be
// nil when no target uses the quote source.
func NewAggregator(
	targets []domain.Target,
	accounts AccountReader,
	quotes QuoteSource,
	decoder *Decoder,
	config AggregatorConfig,
	log logger.LoggerInterface,
) *Aggregator {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	t := make([]domain.Target, len(targets))
	copy(t, targets)

	return &Aggregator{
		targets:  t,
		accounts: accounts,
		quotes:   quotes,
		decoder:  decoder,
		config:   config,
		tracer:   apm.NewTracer("pool.aggregator"),
		log:      log,
		now:      time.Now,
	}
}

// Targets returns the polled targets.
func (a *Aggregator) Targets() []domain.Target {
	out := make([]domain.Target, len(a.targets))
	copy(out, a.targets)
	return out
}

// Collect runs one aggregation cycle. It always returns a snapshot with one
// result per target, even when ctx or the deadline ends the cycle early.
func (a *Aggregator) Collect(ctx context.Context, cycleID uint64) domain.Snapshot {
	ctx, span := a.tracer.StartSpanFromContext(ctx, "pool.Collect")
	defer span.End()

	started := a.now()
	if a.config.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Deadline)
		defer cancel()
	}

	var (
		mu      sync.Mutex
		sealed  bool
		results = make([]*domain.Result, len(a.targets))
	)
	record := func(i int, r domain.Result) {
		mu.Lock()
		defer mu.Unlock()
		if !sealed {
			results[i] = &r
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(a.config.Concurrency)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, t := range a.targets {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				state, err := a.fetch(ctx, t)
				if err != nil {
					record(i, domain.Result{Target: t, Err: err})
					return nil
				}
				record(i, domain.Result{Target: t, State: &state})
				return nil
			})
		}
		_ = g.Wait()
	}()

	partial := false
	select {
	case <-done:
	case <-ctx.Done():
	}
	if ctx.Err() != nil {
		partial = true
	}

	mu.Lock()
	sealed = true
	out := make([]domain.Result, len(a.targets))
	for i, t := range a.targets {
		if results[i] != nil {
			out[i] = *results[i]
			continue
		}
		partial = true
		out[i] = domain.Result{Target: t, Err: &domain.FetchError{
			TargetID: t.ID,
			Venue:    t.Venue,
			Err:      apperror.New(apperror.CodeCycleTimeout, apperror.WithCause(ctx.Err())),
		}}
	}
	mu.Unlock()

	snap := domain.NewSnapshot(cycleID, started, a.now(), partial, out)

	failed := len(snap.Failures())
	span.SetAttributes(
		attribute.Int64("cycle.id", int64(cycleID)),
		attribute.Int("targets", snap.Len()),
		attribute.Int("failed", failed),
		attribute.Bool("partial", partial),
	)
	if partial {
		span.AddEvent("deadline_reached", attribute.Int64("deadline_ms", a.config.Deadline.Milliseconds()))
	}
	for _, r := range snap.Failures() {
		if domain.IsDecodeError(r.Err) {
			a.log.Warn(ctx, "decode failed", "target", r.Target.ID, "venue", r.Target.Venue, "error", r.Err)
		} else {
			a.log.Debug(ctx, "fetch failed", "target", r.Target.ID, "venue", r.Target.Venue, "error", r.Err)
		}
	}
	a.log.Debug(ctx, "snapshot collected",
		"cycle", cycleID,
		"targets", snap.Len(),
		"failed", failed,
		"partial", partial,
		"elapsed", snap.CompletedAt.Sub(started),
	)
	return snap
}

func (a *Aggregator) fetch(ctx context.Context, t domain.Target) (domain.PoolState, error) {
	switch t.Source {
	case domain.SourceQuote:
		return a.fetchQuote(ctx, t)
	default:
		return a.fetchAccounts(ctx, t)
	}
}

func (a *Aggregator) fetchQuote(ctx context.Context, t domain.Target) (domain.PoolState, error) {
	if a.quotes == nil {
		return domain.PoolState{}, &domain.FetchError{
			TargetID: t.ID, Venue: t.Venue,
			Err: apperror.New(apperror.CodeQuoteEndpointError, apperror.WithContext("no quote source configured")),
		}
	}
	poolID := t.Account
	if poolID == "" {
		poolID = t.ID
	}

	q, err := a.quotes.GetQuote(ctx, poolID)
	if err != nil {
		return domain.PoolState{}, &domain.FetchError{TargetID: t.ID, Venue: t.Venue, NotFound: apperror.HasCode(err, apperror.CodeNotFound), Err: err}
	}
	return a.decoder.FromQuote(t, q, a.now())
}

func (a *Aggregator) fetchAccounts(ctx context.Context, t domain.Target) (domain.PoolState, error) {
	layout, ok := domain.LookupLayout(t.LayoutKey())
	if !ok {
		return domain.PoolState{}, &domain.DecodeError{
			Venue: t.Venue, Layout: t.LayoutKey(), Reason: "no layout registered", Err: domain.ErrUnsupportedLayout,
		}
	}

	needVaults := layout.Reserves == domain.ReservesInVaults

	addrs := []string{t.Account}
	switch {
	case layout.Reserves == domain.ReservesSelf:
		addrs = append(addrs, t.VaultB)
	case needVaults && t.VaultA != "" && t.VaultB != "":
		addrs = append(addrs, t.VaultA, t.VaultB)
	}

	batch, err := a.read(ctx, t, addrs)
	if err != nil {
		return domain.PoolState{}, err
	}
	set := AccountSet{Pool: *batch.Accounts[0], Slot: batch.Slot, ObservedAt: a.now()}

	switch {
	case layout.Reserves == domain.ReservesSelf:
		set.VaultB = batch.Accounts[1]
	case needVaults && len(batch.Accounts) == 3:
		set.VaultA, set.VaultB = batch.Accounts[1], batch.Accounts[2]
	case needVaults:
		// Vaults not configured: read them from the pool and fetch them at
		// the same commitment.
		refA, refB, err := a.decoder.VaultRefs(t, set.Pool.Data)
		if err != nil {
			return domain.PoolState{}, err
		}
		vaults, err := a.read(ctx, t, []string{refA, refB})
		if err != nil {
			return domain.PoolState{}, err
		}
		set.VaultA, set.VaultB = vaults.Accounts[0], vaults.Accounts[1]
		if vaults.Slot < set.Slot {
			set.Slot = vaults.Slot
		}
	}

	return a.decoder.Decode(t, set)
}

// read fetches addrs and turns any missing account into a not-found FetchError.
func (a *Aggregator) read(ctx context.Context, t domain.Target, addrs []string) (AccountBatch, error) {
	batch, err := a.accounts.GetAccounts(ctx, addrs)
	if err != nil {
		return AccountBatch{}, &domain.FetchError{TargetID: t.ID, Venue: t.Venue, Err: err}
	}
	if len(batch.Accounts) != len(addrs) {
		return AccountBatch{}, &domain.FetchError{
			TargetID: t.ID, Venue: t.Venue,
			Err: apperror.New(apperror.CodeRPCError, apperror.WithContext("account count mismatch")),
		}
	}
	for i, acc := range batch.Accounts {
		if acc == nil {
			return AccountBatch{}, &domain.FetchError{
				TargetID: t.ID, Venue: t.Venue, NotFound: true,
				Err: apperror.New(apperror.CodeAccountNotFound, apperror.WithContext(addrs[i])),
			}
		}
	}
	return batch, nil
}
