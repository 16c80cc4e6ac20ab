package solana

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker/v2"
	"github.com/sugawarayuuta/sonnet"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dex-arbitrage/business/chain/domain"
	"github.com/fd1az/dex-arbitrage/internal/apperror"
	"github.com/fd1az/dex-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/dex-arbitrage/internal/logger"
	"github.com/fd1az/dex-arbitrage/internal/ratelimit"
)

// Preflight and transaction-level rejections. Retrying the same signed
// transaction cannot change their outcome.
const (
	rpcSendTransactionPreflightFailure = -32002
	rpcTransactionSignatureVerify      = -32003
)

// TransactionConfig holds configuration for the transaction client.
type TransactionConfig struct {
	Commitment        string
	RequestsPerMinute int
}

type signatureStatusesResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value []*struct {
		Slot               uint64  `json:"slot"`
		Confirmations      *uint64 `json:"confirmations"`
		Err                any     `json:"err"`
		ConfirmationStatus string  `json:"confirmationStatus"`
	} `json:"value"`
}

// TransactionClient implements app.TransactionSender.
type TransactionClient struct {
	client  rpcCaller
	config  TransactionConfig
	limiter *ratelimit.Limiter
	sendCB  *circuitbreaker.CircuitBreaker[string]
	logger  logger.LoggerInterface
	tracer  trace.Tracer
}

// NewTransactionClient creates a transaction client over an RPC client.
func NewTransactionClient(client rpcCaller, cfg TransactionConfig, log logger.LoggerInterface) *TransactionClient {
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}

	cbCfg := circuitbreaker.DefaultConfig("solana-send")
	cbCfg.IsSuccessful = func(err error) bool {
		// A rejected transaction means the node is healthy.
		return err == nil || apperror.HasCode(err, apperror.CodeExecutionFailure)
	}
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	return &TransactionClient{
		client:  client,
		config:  cfg,
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		sendCB:  circuitbreaker.New[string](cbCfg),
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}
}

// SendTransaction submits a signed base64 transaction. Node-side retries
// are disabled; the executor owns retry policy.
func (c *TransactionClient) SendTransaction(ctx context.Context, signedTx string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "solana.sendTransaction")
	defer span.End()

	if signedTx == "" {
		return "", apperror.New(apperror.CodeInvalidInput, apperror.WithContext("empty transaction"))
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	sig, err := c.sendCB.Execute(func() (string, error) {
		var out string
		err := c.client.CallContext(ctx, &out, "sendTransaction", signedTx, map[string]any{
			"encoding":            "base64",
			"preflightCommitment": c.config.Commitment,
			"maxRetries":          0,
		})
		if err != nil {
			return "", mapSendError(err)
		}
		return out, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return "", err
	}
	if sig == "" {
		return "", apperror.New(apperror.CodeRPCError, apperror.WithContext("sendTransaction returned no signature"))
	}

	span.SetAttributes(attribute.String("signature", sig))
	span.SetStatus(codes.Ok, "sent")
	return sig, nil
}

// SignatureStatus returns the node's view of one signature.
func (c *TransactionClient) SignatureStatus(ctx context.Context, signature string) (domain.SignatureStatus, error) {
	ctx, span := c.tracer.Start(ctx, "solana.getSignatureStatuses",
		trace.WithAttributes(attribute.String("signature", signature)),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.SignatureStatus{}, err
	}

	var res signatureStatusesResult
	err := c.client.CallContext(ctx, &res, "getSignatureStatuses", []string{signature}, map[string]bool{
		"searchTransactionHistory": false,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rpc failed")
		return domain.SignatureStatus{}, mapRPCError(err)
	}
	if len(res.Value) != 1 {
		return domain.SignatureStatus{}, apperror.New(apperror.CodeRPCError,
			apperror.WithContext(fmt.Sprintf("got %d statuses for 1 signature", len(res.Value))))
	}

	status := domain.SignatureStatus{Signature: signature}
	if v := res.Value[0]; v != nil {
		status.Found = true
		status.Slot = v.Slot
		status.Commitment = domain.Commitment(v.ConfirmationStatus)
		if v.Err != nil {
			raw, err := sonnet.Marshal(v.Err)
			if err != nil {
				raw = []byte(fmt.Sprint(v.Err))
			}
			status.Err = string(raw)
		}
	}

	span.SetAttributes(
		attribute.Bool("found", status.Found),
		attribute.String("commitment", string(status.Commitment)),
	)
	span.SetStatus(codes.Ok, "fetched")
	return status, nil
}

// mapSendError separates rejections of the transaction itself from
// transport failures.
func mapSendError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case rpcSendTransactionPreflightFailure, rpcTransactionSignatureVerify:
			return apperror.New(apperror.CodeExecutionFailure,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("rpc code %d", rpcErr.ErrorCode())))
		}
	}
	return mapRPCError(err)
}

func mapRPCError(err error) error {
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
