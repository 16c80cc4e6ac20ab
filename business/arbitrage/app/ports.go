package app

import (
	"context"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	poolDomain "github.com/fd1az/dex-arbitrage/business/pool/domain"
)

// SnapshotSource produces the venue snapshot of a cycle.
type SnapshotSource interface {
	Collect(ctx context.Context, cycleID uint64) poolDomain.Snapshot
}

// Executor runs the ranked queue of a cycle and reports the outcomes.
type Executor interface {
	Execute(ctx context.Context, queue []domain.UnifiedOpportunity) domain.ExecutionSummary
}

// Reporter defines the interface for publishing cycle reports.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// Report publishes the counts of one cycle.
	Report(ctx context.Context, report domain.CycleReport) error

	// Stop gracefully shuts down the reporter.
	Stop() error
}
