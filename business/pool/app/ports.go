// Package app contains the decoder, the aggregator and the ports they use.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arbitrage/business/pool/domain"
)

// Account is one raw on-chain account.
type Account struct {
	Address string
	Owner   string
	Data    []byte
}

// AccountBatch is the result of one multi-account read. Accounts keeps the
// request order; a nil entry is an account that does not exist.
type AccountBatch struct {
	Slot     uint64
	Accounts []*Account
}

// AccountReader reads raw accounts at a consistent slot.
type AccountReader interface {
	GetAccounts(ctx context.Context, addresses []string) (AccountBatch, error)
}

// Quote is what an external quote endpoint reports for one pool.
type Quote struct {
	Pair       string
	Price      decimal.Decimal
	BaseDepth  decimal.Decimal
	QuoteDepth decimal.Decimal
	FeeBps     decimal.Decimal
	Slot       uint64
	Timestamp  time.Time
}

// QuoteSource fetches quotes for quote-sourced targets.
type QuoteSource interface {
	GetQuote(ctx context.Context, poolID string) (Quote, error)
}

// TargetSource lists the targets to poll.
type TargetSource interface {
	Targets(ctx context.Context) ([]domain.Target, error)
}
