// Package live submits trades on-chain. A transaction builder service turns
// a route into a signed transaction; the chain sender broadcasts it.
package live

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	arbDomain "github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	chainApp "github.com/fd1az/dex-arbitrage/business/chain/app"
	chainDomain "github.com/fd1az/dex-arbitrage/business/chain/domain"
	"github.com/fd1az/dex-arbitrage/business/execution/app"
	"github.com/fd1az/dex-arbitrage/business/execution/domain"
	"github.com/fd1az/dex-arbitrage/internal/apperror"
	"github.com/fd1az/dex-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/dex-arbitrage/internal/httpclient"
	"github.com/fd1az/dex-arbitrage/internal/logger"
)

const builderProvider = "builder"

// Config holds configuration for the live submitter.
type Config struct {
	BuilderURL     string
	RequestTimeout time.Duration
	PollInterval   time.Duration
	// Commitment a signature must reach to count as landed.
	Commitment chainDomain.Commitment
}

type buildRequest struct {
	Seq          uint64          `json:"seq"`
	DedupKey     string          `json:"dedup_key"`
	Pair         string          `json:"pair"`
	Route        []string        `json:"route"`
	SizeBase     decimal.Decimal `json:"size_base"`
	SizeSOL      decimal.Decimal `json:"size_sol"`
	MinProfitSOL decimal.Decimal `json:"min_profit_sol"`
}

type buildResponse struct {
	Transaction string `json:"transaction"`
}

type settlementResponse struct {
	Slot              uint64           `json:"slot"`
	RealizedProfitSOL *decimal.Decimal `json:"realized_profit_sol"`
}

// Submitter implements app.Submitter against the builder service and the
// chain's transaction sender.
type Submitter struct {
	builder httpclient.Client
	sender  chainApp.TransactionSender
	config  Config
	breaker *circuitbreaker.CircuitBreaker[string]
	logger  logger.LoggerInterface
}

// New creates a live submitter.
func New(cfg Config, sender chainApp.TransactionSender, log logger.LoggerInterface) (*Submitter, error) {
	if cfg.BuilderURL == "" {
		return nil, apperror.Validation(apperror.CodeInvalidConfig, "execution.builder_url is required")
	}
	if sender == nil {
		return nil, apperror.Validation(apperror.CodeInvalidConfig, "transaction sender is required")
	}

	hc, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName(builderProvider),
		httpclient.WithBaseURL(cfg.BuilderURL),
		httpclient.WithRequestTimeout(cfg.RequestTimeout),
		httpclient.WithHeaders(map[string]string{
			"Accept":       "application/json",
			"Content-Type": "application/json",
		}),
	)
	if err != nil {
		return nil, err
	}
	return newSubmitter(hc, sender, cfg, log), nil
}

func newSubmitter(hc httpclient.Client, sender chainApp.TransactionSender, cfg Config, log logger.LoggerInterface) *Submitter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Commitment == "" {
		cfg.Commitment = chainDomain.CommitmentConfirmed
	}

	cbCfg := circuitbreaker.DefaultConfig(builderProvider)
	cbCfg.IsSuccessful = func(err error) bool {
		// The builder answered; refusing a route is not an outage.
		return err == nil || domain.IsExecutionFailure(err)
	}
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	return &Submitter{
		builder: hc,
		sender:  sender,
		config:  cfg,
		breaker: circuitbreaker.New[string](cbCfg),
		logger:  log,
	}
}

// Simulated implements app.Submitter.
func (s *Submitter) Simulated() bool { return false }

// Submit implements app.Submitter. The signature is read from the signed
// transaction before sending, so a send that fails in transit still yields
// it.
func (s *Submitter) Submit(ctx context.Context, opp arbDomain.UnifiedOpportunity) (string, error) {
	tx, err := s.breaker.Execute(func() (string, error) {
		return s.build(ctx, opp)
	})
	if err != nil {
		return "", err
	}
	signature, err := transactionSignature(tx)
	if err != nil {
		return "", err
	}

	sent, err := s.sender.SendTransaction(ctx, tx)
	if err != nil {
		// Preflight rejection: the node refused it before broadcasting.
		if apperror.HasCode(err, apperror.CodeExecutionFailure) {
			return "", &domain.ExecutionFailure{Reason: err.Error()}
		}
		s.logger.Warn(ctx, "send outcome unknown", "seq", opp.Seq, "signature", signature, "error", err)
		return signature, &domain.UnconfirmedBroadcast{Signature: signature, Err: err}
	}
	if sent != "" && sent != signature {
		s.logger.Warn(ctx, "node returned a different signature", "seq", opp.Seq, "expected", signature, "got", sent)
		return sent, nil
	}
	return signature, nil
}

func (s *Submitter) build(ctx context.Context, opp arbDomain.UnifiedOpportunity) (string, error) {
	var body buildResponse
	_, err := s.builder.NewRequest(
		httpclient.WithResponseErrorHandler(builderErrorHandler),
		httpclient.WithLabels(httpclient.Label{Key: "endpoint", Value: "transactions"}),
	).
		SetBody(buildRequest{
			Seq:          opp.Seq,
			DedupKey:     opp.DedupKey.Hex(),
			Pair:         opp.Pair,
			Route:        opp.Route,
			SizeBase:     opp.SizeBase,
			SizeSOL:      opp.SizeSOL,
			MinProfitSOL: decimal.Zero,
		}).
		SetResult(&body).
		Post(ctx, "/transactions")
	if err != nil {
		return "", err
	}

	if body.Transaction == "" {
		return "", apperror.New(apperror.CodeExternalServiceError, apperror.WithContext("builder returned no transaction"))
	}
	return body.Transaction, nil
}

// builderErrorHandler treats 409 and 422 as a refusal to build the route.
// Everything else is a transient upstream error.
func builderErrorHandler(statusCode int, body []byte) error {
	switch statusCode {
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return &domain.ExecutionFailure{Reason: fmt.Sprintf("builder refused route: %s", body)}
	}
	return httpclient.DefaultErrorHandler(builderProvider)(statusCode, body)
}

// Await implements app.Submitter. It polls the signature until it lands,
// fails, or ctx is done.
func (s *Submitter) Await(ctx context.Context, signature string, opp arbDomain.UnifiedOpportunity) (app.Settlement, error) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		status, err := s.sender.SignatureStatus(ctx, signature)
		switch {
		case err != nil:
			s.logger.Debug(ctx, "signature status failed", "signature", signature, "error", err)
		case status.Failed():
			return app.Settlement{}, &domain.ExecutionFailure{Signature: signature, Reason: status.Err}
		case status.Landed(s.config.Commitment):
			return s.settle(ctx, signature, status, opp)
		}

		select {
		case <-ctx.Done():
			return app.Settlement{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// settle reads the realized profit from the builder. Without an answer the
// trade still counts as landed, at zero realized profit.
func (s *Submitter) settle(ctx context.Context, signature string, status chainDomain.SignatureStatus, opp arbDomain.UnifiedOpportunity) (app.Settlement, error) {
	out := app.Settlement{Slot: status.Slot, RealizedProfitSOL: decimal.Zero}

	var body settlementResponse
	_, err := s.builder.NewRequest(
		httpclient.WithResponseErrorHandler(httpclient.DefaultErrorHandler(builderProvider)),
		httpclient.WithLabels(httpclient.Label{Key: "endpoint", Value: "settlements"}),
	).
		SetResult(&body).
		Get(ctx, "/settlements/"+signature)
	if err != nil {
		s.logger.Warn(ctx, "settlement lookup failed", "seq", opp.Seq, "signature", signature, "error", err)
		return out, nil
	}

	if body.RealizedProfitSOL != nil {
		out.RealizedProfitSOL = *body.RealizedProfitSOL
	}
	if body.Slot != 0 {
		out.Slot = body.Slot
	}
	return out, nil
}
