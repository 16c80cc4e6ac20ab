package infra

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/dex-arbitrage/internal/apperror"
	"github.com/fd1az/dex-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/dex-arbitrage/internal/httpclient"
	"github.com/fd1az/dex-arbitrage/internal/logger"
)

const scorerProvider = "scorer"

// HTTPScorerConfig holds configuration for the model endpoint client.
type HTTPScorerConfig struct {
	URL     string
	Timeout time.Duration
}

type scoreLeg struct {
	TargetID string          `json:"target_id"`
	Venue    string          `json:"venue"`
	Pool     string          `json:"pool"`
	Price    decimal.Decimal `json:"price"`
	FeeBps   decimal.Decimal `json:"fee_bps"`
	Slot     uint64          `json:"slot"`
}

// scoreRequest is the wire shape of POST /score.
type scoreRequest struct {
	Seq            uint64                 `json:"seq"`
	Pair           string                 `json:"pair"`
	Buy            scoreLeg               `json:"buy"`
	Sell           scoreLeg               `json:"sell"`
	Size           decimal.Decimal        `json:"size"`
	GrossSpreadBps decimal.Decimal        `json:"gross_spread_bps"`
	FeeBps         decimal.Decimal        `json:"fee_bps"`
	SlippageBps    decimal.Decimal        `json:"slippage_bps"`
	NetProfitBps   decimal.Decimal        `json:"net_profit_bps"`
	NetProfitSOL   decimal.Decimal        `json:"net_profit_sol"`
	Features       domain.FeatureSnapshot `json:"features"`
}

type scoreResponse struct {
	Confidence *decimal.Decimal `json:"confidence"`
	Version    string           `json:"version"`
}

// HTTPScorer asks an external model for a confidence. Every failure is
// returned as domain.ScoringUnavailable.
type HTTPScorer struct {
	http    httpclient.Client
	breaker *circuitbreaker.CircuitBreaker[domain.Score]
	logger  logger.LoggerInterface
}

// NewHTTPScorer creates a scorer client for cfg.URL.
func NewHTTPScorer(cfg HTTPScorerConfig, log logger.LoggerInterface) (*HTTPScorer, error) {
	if cfg.URL == "" {
		return nil, apperror.Validation(apperror.CodeInvalidConfig, "scorer.url is required")
	}

	hc, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName(scorerProvider),
		httpclient.WithBaseURL(cfg.URL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithHeaders(map[string]string{
			"Accept":       "application/json",
			"Content-Type": "application/json",
		}),
	)
	if err != nil {
		return nil, err
	}
	return newHTTPScorer(hc, log), nil
}

func newHTTPScorer(hc httpclient.Client, log logger.LoggerInterface) *HTTPScorer {
	cbCfg := circuitbreaker.DefaultConfig("scorer")
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	return &HTTPScorer{
		http:    hc,
		breaker: circuitbreaker.New[domain.Score](cbCfg),
		logger:  log,
	}
}

// Version implements app.Scorer. The model reports its own version per
// answer; this one tags failures.
func (s *HTTPScorer) Version() string { return scorerProvider }

// Score implements app.Scorer.
func (s *HTTPScorer) Score(ctx context.Context, opp domain.SpecializedOpportunity, features domain.FeatureSnapshot) (domain.Score, error) {
	score, err := s.breaker.Execute(func() (domain.Score, error) {
		var body scoreResponse
		_, err := s.http.NewRequest(
			httpclient.WithResponseErrorHandler(httpclient.DefaultErrorHandler(scorerProvider)),
			httpclient.WithLabels(httpclient.Label{Key: "endpoint", Value: "score"}),
		).
			SetBody(newScoreRequest(opp, features)).
			SetResult(&body).
			Post(ctx, "/score")
		if err != nil {
			return domain.Score{}, err
		}
		if body.Confidence == nil {
			return domain.Score{}, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("response has no confidence"))
		}
		return domain.Score{Confidence: *body.Confidence, Version: body.Version}, nil
	})
	if err != nil {
		reason := "request failed"
		switch {
		case apperror.HasCode(err, apperror.CodeCircuitOpen):
			reason = "circuit open"
		case ctx.Err() != nil:
			reason = "timeout"
		}
		return domain.Score{}, &domain.ScoringUnavailable{Scorer: scorerProvider, Reason: reason, Err: err}
	}

	s.logger.Debug(ctx, "model score received", "seq", opp.Seq, "confidence", score.Confidence, "version", score.Version)
	return score, nil
}

func newScoreRequest(opp domain.SpecializedOpportunity, features domain.FeatureSnapshot) scoreRequest {
	costs := opp.Costs()
	leg := func(l domain.Leg) scoreLeg {
		return scoreLeg{
			TargetID: l.TargetID,
			Venue:    l.Venue,
			Pool:     l.Pool,
			Price:    l.State.Price,
			FeeBps:   l.State.FeeBps,
			Slot:     l.State.Slot,
		}
	}
	return scoreRequest{
		Seq:            opp.Seq,
		Pair:           opp.Pair,
		Buy:            leg(opp.Buy),
		Sell:           leg(opp.Sell),
		Size:           opp.Size,
		GrossSpreadBps: opp.Spread.BasisPoints,
		FeeBps:         costs.BuyFeeBps.Add(costs.SellFeeBps),
		SlippageBps:    costs.SlippageBps,
		NetProfitBps:   opp.NetProfitBps(),
		NetProfitSOL:   opp.NetProfitSOL(),
		Features:       features,
	}
}
