// Package di contains dependency injection tokens for the pool context.
package di

import (
	"github.com/fd1az/dex-arbitrage/business/pool/app"
	"github.com/fd1az/dex-arbitrage/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Aggregator = di.NewToken[*app.Aggregator]("pool.Aggregator")
)

// Private dependency tokens - internal to pool module
var (
	Decoder       = di.NewToken[*app.Decoder]("pool:decoder")
	AccountReader = di.NewToken[app.AccountReader]("pool:accountReader")
	QuoteSource   = di.NewToken[app.QuoteSource]("pool:quoteSource")
)

// Helper functions for type-safe access
func GetAggregator(c di.ServiceRegistry) *app.Aggregator {
	return di.GetToken(c, Aggregator)
}

func GetDecoder(c di.ServiceRegistry) *app.Decoder {
	return di.GetToken(c, Decoder)
}

func GetAccountReader(c di.ServiceRegistry) app.AccountReader {
	return di.GetToken(c, AccountReader)
}

func GetQuoteSource(c di.ServiceRegistry) app.QuoteSource {
	return di.GetToken(c, QuoteSource)
}
