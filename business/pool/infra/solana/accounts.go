// Package solana reads pool accounts over the Solana JSON-RPC API.
package solana

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dex-arbitrage/business/pool/app"
	"github.com/fd1az/dex-arbitrage/internal/apperror"
	"github.com/fd1az/dex-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/dex-arbitrage/internal/logger"
	"github.com/fd1az/dex-arbitrage/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/dex-arbitrage/business/pool/infra/solana"
	meterName  = "github.com/fd1az/dex-arbitrage/business/pool/infra/solana"

	// maxAccountsPerCall is the RPC limit for getMultipleAccounts.
	maxAccountsPerCall = 100
)

// Config holds configuration for the account reader.
type Config struct {
	Commitment        string
	RequestsPerMinute int
	Timeout           time.Duration
}

// rpcCaller is the subset of *rpc.Client the reader needs.
type rpcCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

type accountValue struct {
	Data     []string `json:"data"`
	Owner    string   `json:"owner"`
	Lamports uint64   `json:"lamports"`
}

type multipleAccountsResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value []*accountValue `json:"value"`
}

// AccountReader implements app.AccountReader with getMultipleAccounts.
type AccountReader struct {
	client  rpcCaller
	config  Config
	limiter *ratelimit.Limiter
	breaker *circuitbreaker.CircuitBreaker[multipleAccountsResult]
	logger  logger.LoggerInterface
	tracer  trace.Tracer

	calls   metric.Int64Counter
	errors  metric.Int64Counter
	latency metric.Float64Histogram
}

// NewAccountReader creates a reader over an RPC client.
func NewAccountReader(client rpcCaller, cfg Config, log logger.LoggerInterface) (*AccountReader, error) {
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}

	r := &AccountReader{
		client:  client,
		config:  cfg,
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}

	cbCfg := circuitbreaker.DefaultConfig("solana-accounts")
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	r.breaker = circuitbreaker.New[multipleAccountsResult](cbCfg)

	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return r, nil
}

func (r *AccountReader) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.calls, err = meter.Int64Counter(
		"solana_account_reads_total",
		metric.WithDescription("Total getMultipleAccounts calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	r.errors, err = meter.Int64Counter(
		"solana_account_read_errors_total",
		metric.WithDescription("Failed getMultipleAccounts calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	r.latency, err = meter.Float64Histogram(
		"solana_account_read_latency_ms",
		metric.WithDescription("getMultipleAccounts round trip"),
		metric.WithUnit("ms"),
	)
	return err
}

// GetAccounts reads addresses at one slot. Missing accounts are nil entries.
func (r *AccountReader) GetAccounts(ctx context.Context, addresses []string) (app.AccountBatch, error) {
	ctx, span := r.tracer.Start(ctx, "solana.getMultipleAccounts",
		trace.WithAttributes(attribute.Int("accounts", len(addresses))),
	)
	defer span.End()

	if len(addresses) == 0 || len(addresses) > maxAccountsPerCall {
		err := apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("account count %d outside 1..%d", len(addresses), maxAccountsPerCall)))
		span.RecordError(err)
		return app.AccountBatch{}, err
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return app.AccountBatch{}, err
	}

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := r.breaker.Execute(func() (multipleAccountsResult, error) {
		var out multipleAccountsResult
		err := r.client.CallContext(ctx, &out, "getMultipleAccounts", addresses, map[string]string{
			"encoding":   "base64",
			"commitment": r.config.Commitment,
		})
		return out, err
	})
	r.latency.Record(ctx, float64(time.Since(start).Milliseconds()))
	r.calls.Add(ctx, 1)

	if err != nil {
		r.errors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "rpc failed")
		return app.AccountBatch{}, wrapRPCError(err)
	}
	if len(res.Value) != len(addresses) {
		return app.AccountBatch{}, apperror.New(apperror.CodeRPCError,
			apperror.WithContext(fmt.Sprintf("got %d accounts for %d addresses", len(res.Value), len(addresses))))
	}

	batch := app.AccountBatch{Slot: res.Context.Slot, Accounts: make([]*app.Account, len(addresses))}
	for i, v := range res.Value {
		if v == nil {
			continue
		}
		data, err := decodeData(v.Data)
		if err != nil {
			return app.AccountBatch{}, apperror.New(apperror.CodeRPCError,
				apperror.WithCause(err), apperror.WithContext(addresses[i]))
		}
		batch.Accounts[i] = &app.Account{Address: addresses[i], Owner: v.Owner, Data: data}
	}

	span.SetAttributes(attribute.Int64("slot", int64(batch.Slot)))
	span.SetStatus(codes.Ok, "read")
	return batch, nil
}

// decodeData decodes the ["<payload>", "base64"] pair the RPC returns.
func decodeData(data []string) ([]byte, error) {
	if len(data) != 2 || data[1] != "base64" {
		return nil, fmt.Errorf("unexpected account data encoding %v", data)
	}
	return base64.StdEncoding.DecodeString(data[0])
}

func wrapRPCError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return apperror.New(apperror.CodeRPCError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("rpc code %d", rpcErr.ErrorCode())))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.New(apperror.CodeServiceTimeout, apperror.WithCause(err))
	}
	return apperror.New(apperror.CodeRPCConnectionFailed, apperror.WithCause(err))
}
