// Package quote fetches pool state from an external quote/aggregation endpoint.
package quote

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/dex-arbitrage/business/pool/app"
	"github.com/fd1az/dex-arbitrage/internal/apperror"
	"github.com/fd1az/dex-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/dex-arbitrage/internal/httpclient"
	"github.com/fd1az/dex-arbitrage/internal/logger"
	"github.com/fd1az/dex-arbitrage/internal/ratelimit"
)

const providerName = "quote"

// Config holds configuration for the quote client.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
}

// poolResponse is the wire shape of GET /pools/{id}.
type poolResponse struct {
	Pair       string          `json:"pair"`
	Price      decimal.Decimal `json:"price"`
	BaseDepth  decimal.Decimal `json:"base_depth"`
	QuoteDepth decimal.Decimal `json:"quote_depth"`
	FeeBps     decimal.Decimal `json:"fee_bps"`
	Slot       uint64          `json:"slot"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Client implements app.QuoteSource.
type Client struct {
	http    httpclient.Client
	limiter *ratelimit.Limiter
	breaker *circuitbreaker.CircuitBreaker[app.Quote]
	logger  logger.LoggerInterface
}

// NewClient creates a quote endpoint client.
func NewClient(cfg Config, log logger.LoggerInterface) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, apperror.Validation(apperror.CodeInvalidConfig, "quote.base_url is required")
	}

	hc, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName(providerName),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		return nil, err
	}
	return newClient(hc, cfg, log), nil
}

func newClient(hc httpclient.Client, cfg Config, log logger.LoggerInterface) *Client {
	cbCfg := circuitbreaker.DefaultConfig("quote-endpoint")
	cbCfg.IsSuccessful = func(err error) bool {
		// An unknown pool is an answer, not an outage.
		return err == nil || apperror.HasCode(err, apperror.CodeNotFound)
	}
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	return &Client{
		http:    hc,
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		breaker: circuitbreaker.New[app.Quote](cbCfg),
		logger:  log,
	}
}

// GetQuote fetches the current state of one pool.
func (c *Client) GetQuote(ctx context.Context, poolID string) (app.Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return app.Quote{}, err
	}

	return c.breaker.Execute(func() (app.Quote, error) {
		var body poolResponse
		_, err := c.http.NewRequest(
			httpclient.WithResponseErrorHandler(errorHandler),
			httpclient.WithLabels(httpclient.Label{Key: "endpoint", Value: "pools"}),
		).
			SetResult(&body).
			Get(ctx, "/pools/"+url.PathEscape(poolID))
		if err != nil {
			return app.Quote{}, err
		}

		c.logger.Debug(ctx, "quote received", "pool", poolID, "pair", body.Pair, "price", body.Price, "slot", body.Slot)
		return app.Quote{
			Pair:       body.Pair,
			Price:      body.Price,
			BaseDepth:  body.BaseDepth,
			QuoteDepth: body.QuoteDepth,
			FeeBps:     body.FeeBps,
			Slot:       body.Slot,
			Timestamp:  body.Timestamp,
		}, nil
	})
}

func errorHandler(statusCode int, body []byte) error {
	if statusCode == http.StatusNotFound {
		return apperror.New(apperror.CodeNotFound,
			apperror.WithStatusCode(statusCode),
			apperror.WithContext(fmt.Sprintf("%s: %s", providerName, bytes.TrimSpace(body))),
		)
	}
	if err := httpclient.DefaultErrorHandler(providerName)(statusCode, body); err != nil {
		return apperror.New(apperror.CodeQuoteEndpointError, apperror.WithCause(err), apperror.WithStatusCode(statusCode))
	}
	return nil
}
