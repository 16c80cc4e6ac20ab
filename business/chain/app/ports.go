// Package app contains application services and port definitions for the chain context.
package app

import (
	"context"
	"time"

	"github.com/fd1az/dex-arbitrage/business/chain/domain"
)

// SlotTracker follows the cluster's current slot.
type SlotTracker interface {
	// Start begins tracking. It returns once the first source is running.
	Start(ctx context.Context) error

	// CurrentSlot returns the latest observed slot, 0 before the first update.
	CurrentSlot() uint64

	// LastUpdate returns when CurrentSlot last advanced.
	LastUpdate() time.Time

	// Status returns detailed connection status.
	Status() domain.ConnectionStatus

	Close() error
}

// TransactionSender submits signed transactions and reports their status.
type TransactionSender interface {
	// SendTransaction submits a base64 encoded signed transaction and
	// returns its signature.
	SendTransaction(ctx context.Context, signedTx string) (string, error)

	// SignatureStatus returns the node's view of one signature.
	SignatureStatus(ctx context.Context, signature string) (domain.SignatureStatus, error)
}
