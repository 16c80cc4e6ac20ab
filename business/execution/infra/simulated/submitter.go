// Package simulated provides a submitter that never touches the chain.
package simulated

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/dex-arbitrage/business/execution/app"
	"github.com/fd1az/dex-arbitrage/internal/logger"
)

// RequoteFunc re-prices a route after the simulated fill.
type RequoteFunc func(ctx context.Context, opp arbDomain.UnifiedOpportunity) (decimal.Decimal, error)

// Submitter confirms every trade immediately. Its profit is the re-quote,
// defaulting to the discovery estimate.
type Submitter struct {
	requote RequoteFunc
	logger  logger.LoggerInterface
	counter atomic.Uint64
}

// New creates a simulated submitter. requote may be nil.
func New(requote RequoteFunc, log logger.LoggerInterface) *Submitter {
	return &Submitter{requote: requote, logger: log}
}

// Simulated implements app.Submitter.
func (s *Submitter) Simulated() bool { return true }

// Submit implements app.Submitter.
func (s *Submitter) Submit(ctx context.Context, opp arbDomain.UnifiedOpportunity) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n := s.counter.Add(1)
	sig := fmt.Sprintf("sim-%d-%s", n, opp.DedupKey.Hex()[2:10])
	s.logger.Debug(ctx, "simulated submit", "seq", opp.Seq, "route", opp.RouteString(), "signature", sig)
	return sig, nil
}

// Await implements app.Submitter.
func (s *Submitter) Await(ctx context.Context, signature string, opp arbDomain.UnifiedOpportunity) (app.Settlement, error) {
	profit := opp.NetProfitSOL
	if s.requote != nil {
		requoted, err := s.requote(ctx, opp)
		if err != nil {
			s.logger.Warn(ctx, "simulation re-quote failed, using estimate", "seq", opp.Seq, "error", err)
		} else {
			profit = requoted
		}
	}
	return app.Settlement{Slot: opp.SourceSlot, RealizedProfitSOL: profit}, nil
}
