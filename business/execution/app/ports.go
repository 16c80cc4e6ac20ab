// Package app contains the trade executor and its ports.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/dex-arbitrage/business/execution/domain"
)

// Settlement is the confirmed on-chain result of a trade.
type Settlement struct {
	Slot              uint64
	RealizedProfitSOL decimal.Decimal
}

// Submitter builds, sends and follows the transaction for one route.
type Submitter interface {
	// Simulated reports whether nothing is ever sent on-chain.
	Simulated() bool

	// Submit sends the route's transaction and returns its signature. A
	// non-empty signature means the transaction may be on-chain, even when
	// an error (domain.UnconfirmedBroadcast) comes with it. An error with no
	// signature means nothing was sent; domain.ExecutionFailure is
	// permanent.
	Submit(ctx context.Context, opp arbDomain.UnifiedOpportunity) (string, error)

	// Await blocks until the signature is terminal or ctx is done. On-chain
	// failures are returned as domain.ExecutionFailure.
	Await(ctx context.Context, signature string, opp arbDomain.UnifiedOpportunity) (Settlement, error)
}

// SlotClock reports how far the chain has moved past a slot.
type SlotClock interface {
	SlotAge(slot uint64) uint64
}

// TradeStore persists terminal trade executions.
type TradeStore interface {
	SaveTrade(ctx context.Context, trade *domain.TradeExecution) error
}
