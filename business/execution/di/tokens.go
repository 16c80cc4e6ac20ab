// Package di contains dependency injection tokens for the execution context.
package di

import (
	"github.com/fd1az/dex-arbitrage/business/execution/app"
	"github.com/fd1az/dex-arbitrage/business/execution/infra/postgres"
	"github.com/fd1az/dex-arbitrage/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Executor = di.NewToken[*app.Executor]("execution.Executor")
	// Store is nil when no DSN is configured.
	Store = di.NewToken[*postgres.Store]("execution.Store")
)

// Private dependency tokens - internal to execution module
var (
	Submitter = di.NewToken[app.Submitter]("execution:submitter")
)

// Helper functions for type-safe access
func GetExecutor(c di.ServiceRegistry) *app.Executor {
	return di.GetToken(c, Executor)
}

func GetStore(c di.ServiceRegistry) *postgres.Store {
	return di.GetToken(c, Store)
}

func GetSubmitter(c di.ServiceRegistry) app.Submitter {
	return di.GetToken(c, Submitter)
}
