// Package di contains dependency injection tokens for the chain context.
package di

import (
	"github.com/fd1az/dex-arbitrage/business/chain/app"
	"github.com/fd1az/dex-arbitrage/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ChainService = di.NewToken[*app.ChainService]("chain.ChainService")
)

// Private dependency tokens - internal to chain module
var (
	SlotTracker       = di.NewToken[app.SlotTracker]("chain:slotTracker")
	TransactionSender = di.NewToken[app.TransactionSender]("chain:transactionSender")
)

// Helper functions for type-safe access
func GetChainService(c di.ServiceRegistry) *app.ChainService {
	return di.GetToken(c, ChainService)
}

func GetSlotTracker(c di.ServiceRegistry) app.SlotTracker {
	return di.GetToken(c, SlotTracker)
}

func GetTransactionSender(c di.ServiceRegistry) app.TransactionSender {
	return di.GetToken(c, TransactionSender)
}
