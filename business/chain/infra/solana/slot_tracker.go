// Package solana provides Solana RPC adapters for the chain context.
package solana

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/sugawarayuuta/sonnet"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dex-arbitrage/business/chain/domain"
	"github.com/fd1az/dex-arbitrage/internal/apperror"
	"github.com/fd1az/dex-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/dex-arbitrage/internal/logger"
	"github.com/fd1az/dex-arbitrage/internal/wsconn"
)

const (
	tracerName = "github.com/fd1az/dex-arbitrage/business/chain/infra/solana"
	meterName  = "github.com/fd1az/dex-arbitrage/business/chain/infra/solana"

	slotSubscribeID = 1
)

// rpcCaller is the subset of *rpc.Client the adapters need.
type rpcCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// SlotTrackerConfig holds configuration for the slot tracker.
type SlotTrackerConfig struct {
	WSURL          string        // slotSubscribe endpoint (primary); empty polls only
	Commitment     string        // getSlot commitment
	PollInterval   time.Duration // getSlot interval while the subscription is down or silent
	SilenceTimeout time.Duration // subscription counts as down after this long without a notification
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultSlotTrackerConfig returns sensible defaults.
func DefaultSlotTrackerConfig(wsURL string) SlotTrackerConfig {
	return SlotTrackerConfig{
		WSURL:          wsURL,
		Commitment:     "confirmed",
		PollInterval:   400 * time.Millisecond, // ~1 slot
		SilenceTimeout: 2 * time.Second,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// slotMetrics holds OTEL metric instruments.
type slotMetrics struct {
	slotsReceived    metric.Int64Counter
	subscribeErrors  metric.Int64Counter
	connectionState  metric.Int64Gauge
	httpFallbackUsed metric.Int64Counter
	currentSlot      metric.Int64Gauge
}

// slotInfo is the payload of a slotNotification.
type slotInfo struct {
	Parent uint64 `json:"parent"`
	Root   uint64 `json:"root"`
	Slot   uint64 `json:"slot"`
}

// wsMessage covers both the subscribe response and notifications.
type wsMessage struct {
	ID     *uint64 `json:"id"`
	Result *uint64 `json:"result"`
	Method string  `json:"method"`
	Params *struct {
		Result       slotInfo `json:"result"`
		Subscription uint64   `json:"subscription"`
	} `json:"params"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SlotTracker implements app.SlotTracker. It uses a slotSubscribe
// WebSocket feed as primary with getSlot polling as fallback.
type SlotTracker struct {
	config SlotTrackerConfig
	logger logger.LoggerInterface
	rpc    rpcCaller
	ws     *wsconn.Client

	// State
	state        domain.ConnectionState
	stateMu      sync.RWMutex
	usingHTTP    atomic.Bool
	lastSlot     atomic.Uint64
	lastUpdate   atomic.Int64 // unix nanos
	lastWSUpdate atomic.Int64 // unix nanos
	subscription atomic.Uint64
	reconnects   atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	httpCB *circuitbreaker.CircuitBreaker[uint64]

	// Observability
	tracer  trace.Tracer
	metrics *slotMetrics
	now     func() time.Time
}

// NewSlotTracker creates a slot tracker over an RPC client.
func NewSlotTracker(client rpcCaller, cfg SlotTrackerConfig, log logger.LoggerInterface) (*SlotTracker, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 400 * time.Millisecond
	}
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = 5 * cfg.PollInterval
	}
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &SlotTracker{
		config: cfg,
		logger: log,
		rpc:    client,
		state:  domain.StateDisconnected,
		ctx:    ctx,
		cancel: cancel,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}

	if err := t.initMetrics(); err != nil {
		cancel()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	httpCfg := circuitbreaker.DefaultConfig("solana-getslot")
	httpCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	t.httpCB = circuitbreaker.New[uint64](httpCfg)

	if cfg.WSURL != "" {
		wsCfg := wsconn.DefaultConfig(cfg.WSURL, "solana-slots")
		wsCfg.InitialBackoff = cfg.InitialBackoff
		wsCfg.MaxBackoff = cfg.MaxBackoff
		ws, err := wsconn.New(wsCfg)
		if err != nil {
			cancel()
			return nil, err
		}
		ws.OnMessage(t.handleMessage)
		ws.OnStateChange(t.handleWSState)
		ws.OnReconnect(t.subscribe)
		t.ws = ws
	}

	return t, nil
}

// initMetrics initializes OTEL metric instruments.
func (t *SlotTracker) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	t.metrics = &slotMetrics{}

	t.metrics.slotsReceived, err = meter.Int64Counter(
		"solana_slots_received_total",
		metric.WithDescription("Total slot updates received"),
		metric.WithUnit("{slot}"),
	)
	if err != nil {
		return err
	}

	t.metrics.subscribeErrors, err = meter.Int64Counter(
		"solana_slot_subscribe_errors_total",
		metric.WithDescription("Total slot subscription errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	t.metrics.connectionState, err = meter.Int64Gauge(
		"solana_slot_connection_state",
		metric.WithDescription("Slot feed state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return err
	}

	t.metrics.httpFallbackUsed, err = meter.Int64Counter(
		"solana_slot_http_fallback_total",
		metric.WithDescription("Times getSlot polling took over from the subscription"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		return err
	}

	t.metrics.currentSlot, err = meter.Int64Gauge(
		"solana_current_slot",
		metric.WithDescription("Latest observed slot"),
		metric.WithUnit("{slot}"),
	)
	return err
}

// Start connects the subscription (when configured) and starts the poller.
// It fails only when neither source produced a slot.
func (t *SlotTracker) Start(ctx context.Context) error {
	ctx, span := t.tracer.Start(ctx, "solana.slots.start",
		trace.WithAttributes(attribute.String("ws_url", t.config.WSURL)),
	)
	defer span.End()

	if t.closed.Load() {
		err := errors.New("slot tracker is closed")
		span.RecordError(err)
		return err
	}

	t.setState(domain.StateConnecting)

	wsErr := errors.New("ws url not configured")
	if t.ws != nil {
		wsErr = t.ws.Connect(ctx)
		if wsErr == nil {
			wsErr = t.subscribe(ctx)
		}
	}

	if wsErr != nil {
		t.logger.Warn(ctx, "slot subscription unavailable, polling getSlot", "error", wsErr)
		span.AddEvent("ws_failed_trying_http")
		t.metrics.subscribeErrors.Add(ctx, 1)

		if err := t.poll(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "both sources failed")
			t.setState(domain.StateDisconnected)
			return apperror.New(apperror.CodeSlotSubscribeFailed,
				apperror.WithCause(errors.Join(wsErr, err)),
				apperror.WithContext("no slot via subscription or getSlot"))
		}
	}

	t.wg.Add(1)
	go t.runPoller()

	t.setState(domain.StateConnected)
	span.SetStatus(codes.Ok, "started")
	return nil
}

// subscribe sends slotSubscribe. It is also the reconnect hook.
func (t *SlotTracker) subscribe(ctx context.Context) error {
	return t.ws.SendJSON(ctx, map[string]any{
		"jsonrpc": "2.0",
		"id":      slotSubscribeID,
		"method":  "slotSubscribe",
	})
}

// handleMessage processes subscription frames.
func (t *SlotTracker) handleMessage(ctx context.Context, raw []byte) {
	var msg wsMessage
	if err := sonnet.Unmarshal(raw, &msg); err != nil {
		t.logger.Warn(ctx, "undecodable slot frame", "error", err)
		t.metrics.subscribeErrors.Add(ctx, 1)
		return
	}

	switch {
	case msg.Error != nil:
		t.logger.Error(ctx, "slot subscription error", "code", msg.Error.Code, "message", msg.Error.Message)
		t.metrics.subscribeErrors.Add(ctx, 1)
	case msg.ID != nil && *msg.ID == slotSubscribeID && msg.Result != nil:
		t.subscription.Store(*msg.Result)
		t.logger.Info(ctx, "subscribed to slots via ws", "subscription", *msg.Result)
	case msg.Method == "slotNotification" && msg.Params != nil:
		t.lastWSUpdate.Store(t.now().UnixNano())
		t.observe(ctx, domain.Slot{
			Number:     msg.Params.Result.Slot,
			Parent:     msg.Params.Result.Parent,
			Root:       msg.Params.Result.Root,
			ReceivedAt: t.now(),
		})
	}
}

// handleWSState mirrors the WebSocket state.
func (t *SlotTracker) handleWSState(state wsconn.State, err error) {
	ctx := context.Background()
	switch state {
	case wsconn.StateReconnecting:
		t.reconnects.Add(1)
		t.metrics.subscribeErrors.Add(ctx, 1)
		t.logger.Warn(ctx, "slot subscription dropped, reconnecting", "error", err)
		if !t.usingHTTP.Load() {
			t.setState(domain.StateReconnecting)
		}
	case wsconn.StateConnected:
		if err != nil {
			t.logger.Error(ctx, "slot resubscribe failed", "error", err)
			return
		}
		t.setState(domain.StateConnected)
	}
}

// runPoller polls getSlot whenever the subscription is down or silent.
func (t *SlotTracker) runPoller() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			if t.subscriptionHealthy() {
				if t.usingHTTP.CompareAndSwap(true, false) {
					t.logger.Info(t.ctx, "slot subscription recovered, polling stopped")
				}
				continue
			}
			if t.usingHTTP.CompareAndSwap(false, true) {
				t.metrics.httpFallbackUsed.Add(t.ctx, 1)
				t.logger.Info(t.ctx, "starting getSlot polling fallback", "interval", t.config.PollInterval)
			}
			if err := t.poll(t.ctx); err != nil {
				t.logger.Error(t.ctx, "getSlot poll failed", "error", err)
				t.metrics.subscribeErrors.Add(t.ctx, 1)
				continue
			}
			t.setState(domain.StateConnected)
		}
	}
}

func (t *SlotTracker) subscriptionHealthy() bool {
	if t.ws == nil || !t.ws.IsConnected() {
		return false
	}
	last := t.lastWSUpdate.Load()
	return last != 0 && t.now().Sub(time.Unix(0, last)) < t.config.SilenceTimeout
}

// poll fetches the current slot via getSlot.
func (t *SlotTracker) poll(ctx context.Context) error {
	ctx, span := t.tracer.Start(ctx, "solana.getSlot")
	defer span.End()

	slot, err := t.httpCB.Execute(func() (uint64, error) {
		var out uint64
		err := t.rpc.CallContext(ctx, &out, "getSlot", map[string]string{"commitment": t.config.Commitment})
		return out, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "getSlot failed")
		return err
	}

	t.observe(ctx, domain.Slot{Number: slot, ReceivedAt: t.now(), FromHTTP: true})
	span.SetStatus(codes.Ok, "polled")
	return nil
}

// observe records a slot. The tracked slot never moves backwards.
func (t *SlotTracker) observe(ctx context.Context, s domain.Slot) {
	for {
		cur := t.lastSlot.Load()
		if s.Number <= cur {
			return
		}
		if t.lastSlot.CompareAndSwap(cur, s.Number) {
			break
		}
	}
	t.lastUpdate.Store(s.ReceivedAt.UnixNano())

	t.metrics.slotsReceived.Add(ctx, 1, metric.WithAttributes(attribute.Bool("from_http", s.FromHTTP)))
	t.metrics.currentSlot.Record(ctx, int64(s.Number))
}

// CurrentSlot returns the latest observed slot.
func (t *SlotTracker) CurrentSlot() uint64 {
	return t.lastSlot.Load()
}

// LastUpdate returns when the slot last advanced.
func (t *SlotTracker) LastUpdate() time.Time {
	n := t.lastUpdate.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// State returns the current connection state.
func (t *SlotTracker) State() domain.ConnectionState {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	return t.state
}

// Status returns detailed connection status.
func (t *SlotTracker) Status() domain.ConnectionStatus {
	return domain.ConnectionStatus{
		State:      t.State(),
		LastSlot:   t.CurrentSlot(),
		LastUpdate: t.LastUpdate(),
		Reconnects: int(t.reconnects.Load()),
		UsingHTTP:  t.usingHTTP.Load(),
	}
}

// Close stops the subscription and the poller. It is idempotent.
func (t *SlotTracker) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.logger.Info(context.Background(), "closing slot tracker")

	t.cancel()
	if t.ws != nil {
		_ = t.ws.Close()
	}
	t.wg.Wait()

	t.setState(domain.StateDisconnected)
	return nil
}

// setState updates the connection state and records metrics.
func (t *SlotTracker) setState(state domain.ConnectionState) {
	t.stateMu.Lock()
	t.state = state
	t.stateMu.Unlock()

	stateValue := int64(0)
	switch state {
	case domain.StateDisconnected:
		stateValue = 0
	case domain.StateConnecting:
		stateValue = 1
	case domain.StateConnected:
		stateValue = 2
	case domain.StateReconnecting:
		stateValue = 3
	}

	t.metrics.connectionState.Record(context.Background(), stateValue)
}
