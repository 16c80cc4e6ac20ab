package infra

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
)

const meterName = "github.com/fd1az/dex-arbitrage/business/arbitrage"

// MetricsReporter publishes the per-cycle counts as OpenTelemetry metrics.
type MetricsReporter struct {
	cycles          metric.Int64Counter
	partialCycles   metric.Int64Counter
	accountingFails metric.Int64Counter
	fetchFailures   metric.Int64Counter
	decodeErrors    metric.Int64Counter
	considered      metric.Int64Counter
	passed          metric.Int64Counter
	filterRejected  metric.Int64Counter
	scored          metric.Int64Counter
	degraded        metric.Int64Counter
	discoveryDrops  metric.Int64Counter
	queued          metric.Int64Counter
	executed        metric.Int64Counter
	tradeOutcomes   metric.Int64Counter
	cycleDuration   metric.Float64Histogram
	topNetBps       metric.Float64Gauge
}

// NewMetricsReporter creates the pipeline instruments on the global meter
// provider.
func NewMetricsReporter() (*MetricsReporter, error) {
	return newMetricsReporter(otel.Meter(meterName))
}

func newMetricsReporter(meter metric.Meter) (*MetricsReporter, error) {
	r := &MetricsReporter{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&r.cycles, "pipeline.cycles", "Completed pipeline cycles", "{cycle}"},
		{&r.partialCycles, "pipeline.cycles.partial", "Cycles whose snapshot hit the deadline", "{cycle}"},
		{&r.accountingFails, "pipeline.accounting.failures", "Cycles whose stage accounting check failed", "{cycle}"},
		{&r.fetchFailures, "pipeline.fetch.failures", "Targets that failed to fetch", "{target}"},
		{&r.decodeErrors, "pipeline.decode.errors", "Targets whose account bytes failed to decode", "{target}"},
		{&r.considered, "pipeline.filter.considered", "Venue pairs with a positive spread", "{opportunity}"},
		{&r.passed, "pipeline.filter.passed", "Opportunities that cleared the filter", "{opportunity}"},
		{&r.filterRejected, "pipeline.filter.rejected", "Filter rejections by reason", "{opportunity}"},
		{&r.scored, "pipeline.scoring.scored", "Opportunities scored", "{opportunity}"},
		{&r.degraded, "pipeline.scoring.degraded", "Opportunities scored with the default confidence", "{opportunity}"},
		{&r.discoveryDrops, "pipeline.discovery.dropped", "Discovery drops by reason", "{opportunity}"},
		{&r.queued, "pipeline.discovery.queued", "Opportunities queued for execution", "{opportunity}"},
		{&r.executed, "pipeline.execution.executed", "Trades that reached submission", "{trade}"},
		{&r.tradeOutcomes, "pipeline.execution.outcomes", "Terminal trade outcomes by status", "{trade}"},
	}

	var err error
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", c.name, err)
		}
	}

	r.cycleDuration, err = meter.Float64Histogram(
		"pipeline.cycle.duration",
		metric.WithDescription("Wall time of one pipeline cycle"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cycle duration histogram: %w", err)
	}

	r.topNetBps, err = meter.Float64Gauge(
		"pipeline.queue.top_net_bps",
		metric.WithDescription("Net profit of the best queued opportunity"),
		metric.WithUnit("bps"),
	)
	if err != nil {
		return nil, fmt.Errorf("create top net gauge: %w", err)
	}

	return r, nil
}

// Start implements app.Reporter.
func (r *MetricsReporter) Start(context.Context) error { return nil }

// Stop implements app.Reporter.
func (r *MetricsReporter) Stop() error { return nil }

// Report records the counts of one cycle.
func (r *MetricsReporter) Report(ctx context.Context, report domain.CycleReport) error {
	r.cycles.Add(ctx, 1)
	if report.Partial {
		r.partialCycles.Add(ctx, 1)
	}
	if report.Err != nil {
		r.accountingFails.Add(ctx, 1)
	}
	r.cycleDuration.Record(ctx, float64(report.Duration.Microseconds())/1000)

	r.fetchFailures.Add(ctx, int64(report.FetchFailures))
	r.decodeErrors.Add(ctx, int64(report.DecodeErrors))
	r.considered.Add(ctx, int64(report.Considered))
	r.passed.Add(ctx, int64(report.Passed))
	addByReason(ctx, r.filterRejected, report.FilterRejected)

	r.scored.Add(ctx, int64(report.Scored))
	r.degraded.Add(ctx, int64(report.Degraded))

	addByReason(ctx, r.discoveryDrops, report.DiscoveryDrop)
	r.queued.Add(ctx, int64(report.Queued))

	ex := report.Execution
	r.executed.Add(ctx, int64(ex.Executed))
	for status, n := range map[string]int{
		"confirmed": ex.Confirmed,
		"failed":    ex.Failed,
		"timed_out": ex.TimedOut,
		"stale":     ex.Stale,
		"skipped":   ex.Skipped,
	} {
		if n > 0 {
			r.tradeOutcomes.Add(ctx, int64(n), metric.WithAttributes(attribute.String("status", status)))
		}
	}

	if report.Top != nil {
		r.topNetBps.Record(ctx, report.Top.NetProfitBps.InexactFloat64(),
			metric.WithAttributes(attribute.String("pair", report.Top.Pair)))
	}
	return nil
}

func addByReason(ctx context.Context, c metric.Int64Counter, counts map[domain.Reason]int) {
	for reason, n := range counts {
		c.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", string(reason))))
	}
}
