// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/fd1az/dex-arbitrage/internal/apperror"
)

// Trading modes.
const (
	ModeSimulation = "simulation"
	ModeLive       = "live"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Trading   TradingConfig   `mapstructure:"trading"`
	Risk      RiskConfig      `mapstructure:"risk_management"`
	Venues    []VenueConfig   `mapstructure:"venues"`
	Targets   []TargetConfig  `mapstructure:"targets"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Pool      PoolConfig      `mapstructure:"pool"`
	Quote     QuoteConfig     `mapstructure:"quote"`
	Filter    FilterConfig    `mapstructure:"filter"`
	Scorer    ScorerConfig    `mapstructure:"scorer"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Store     StoreConfig     `mapstructure:"store"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Health    HealthConfig    `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	// TUI replaces the console reporter and log output with the dashboard.
	TUI bool `mapstructure:"tui"`
}

// ChainConfig holds RPC node configuration.
type ChainConfig struct {
	RPCURL            string        `mapstructure:"rpc_url"`
	WebSocketURL      string        `mapstructure:"websocket_url"`
	Commitment        string        `mapstructure:"commitment"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
}

// TradingConfig holds the trade sizing and mode switches.
type TradingConfig struct {
	Mode                  string          `mapstructure:"mode"`
	ForceRealTransactions bool            `mapstructure:"force_real_transactions"`
	MaxConcurrentTrades   int             `mapstructure:"max_concurrent_trades"`
	MaxTradeAmountSOL     decimal.Decimal `mapstructure:"max_trade_amount_sol"`
	MinProfitSOL          decimal.Decimal `mapstructure:"min_profit_sol"`
}

// LiveExecution reports whether trades are submitted on-chain. Both the live
// mode and the explicit force flag are needed.
func (c TradingConfig) LiveExecution() bool {
	return c.Mode == ModeLive && c.ForceRealTransactions
}

// MaxExposureSOL is the bound on in-flight capital.
func (c TradingConfig) MaxExposureSOL() decimal.Decimal {
	return c.MaxTradeAmountSOL.Mul(decimal.NewFromInt(int64(c.MaxConcurrentTrades)))
}

// RiskConfig holds risk management limits.
type RiskConfig struct {
	MaxSlippagePercentage decimal.Decimal `mapstructure:"max_slippage_percentage"`
}

// MaxSlippageBps converts the percentage limit to basis points.
func (c RiskConfig) MaxSlippageBps() decimal.Decimal {
	return c.MaxSlippagePercentage.Mul(decimal.NewFromInt(100))
}

// VenueConfig is one row of the venue fee table.
type VenueConfig struct {
	Name   string          `mapstructure:"name"`
	FeeBps decimal.Decimal `mapstructure:"fee_bps"`
}

// TargetConfig describes one {venue, pair} source of pool state.
type TargetConfig struct {
	ID            string `mapstructure:"id"`
	Venue         string `mapstructure:"venue"`
	Pair          string `mapstructure:"pair"`
	Source        string `mapstructure:"source"`
	Protocol      string `mapstructure:"protocol"`
	Version       string `mapstructure:"version"`
	Account       string `mapstructure:"account"`
	VaultA        string `mapstructure:"vault_a"`
	VaultB        string `mapstructure:"vault_b"`
	BaseDecimals  uint8  `mapstructure:"base_decimals"`
	QuoteDecimals uint8  `mapstructure:"quote_decimals"`
}

// RegistryConfig points at the optional sqlite target registry.
type RegistryConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
}

// PoolConfig holds decoder limits.
type PoolConfig struct {
	MaxReserveRaw uint64 `mapstructure:"max_reserve_raw"`
}

// QuoteConfig holds the external quote endpoint settings.
type QuoteConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// FilterConfig holds specialization filter floors.
type FilterConfig struct {
	MinNetProfitBps   decimal.Decimal `mapstructure:"min_net_profit_bps"`
	MinGrossSpreadBps decimal.Decimal `mapstructure:"min_gross_spread_bps"`
}

// ScorerConfig holds the confidence scorer collaborator settings.
type ScorerConfig struct {
	URL               string          `mapstructure:"url"`
	Timeout           time.Duration   `mapstructure:"timeout"`
	DefaultConfidence decimal.Decimal `mapstructure:"default_confidence"`
	FeatureWindow     int             `mapstructure:"feature_window"`
	FeatureTTL        time.Duration   `mapstructure:"feature_ttl"`
}

// DiscoveryConfig holds ranking parameters.
type DiscoveryConfig struct {
	MaxQueue       int             `mapstructure:"max_queue"`
	MinConfidence  decimal.Decimal `mapstructure:"min_confidence"`
	DegradedWeight decimal.Decimal `mapstructure:"degraded_weight"`
}

// ExecutionConfig holds executor timing and submission settings.
type ExecutionConfig struct {
	FreshnessWindow     time.Duration `mapstructure:"freshness_window"`
	MaxSlotAge          uint64        `mapstructure:"max_slot_age"`
	TradeTimeout        time.Duration `mapstructure:"trade_timeout"`
	MaxSubmitAttempts   int           `mapstructure:"max_submit_attempts"`
	ResubmitGuard       time.Duration `mapstructure:"resubmit_guard"`
	ConfirmPollInterval time.Duration `mapstructure:"confirm_poll_interval"`
	BuilderURL          string        `mapstructure:"builder_url"`
}

// PipelineConfig holds the cycle loop settings.
type PipelineConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	CycleDeadlineMs  int           `mapstructure:"cycle_deadline_ms"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
}

// CycleDeadline returns the aggregation budget per cycle.
func (c PipelineConfig) CycleDeadline() time.Duration {
	return time.Duration(c.CycleDeadlineMs) * time.Millisecond
}

// StoreConfig holds the audit store connection.
type StoreConfig struct {
	DSN            string        `mapstructure:"dsn"`
	MaxConns       int32         `mapstructure:"max_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	Exporter       string `mapstructure:"exporter"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// requiredKeys have no defaults. A missing key fails Load instead of falling
// back to a value that could execute real trades.
var requiredKeys = []string{
	"trading.mode",
	"trading.force_real_transactions",
	"trading.max_concurrent_trades",
	"trading.max_trade_amount_sol",
	"trading.min_profit_sol",
	"risk_management.max_slippage_percentage",
	"filter.min_net_profit_bps",
	"pipeline.cycle_deadline_ms",
	"venues",
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if !v.IsSet("trading.max_trade_amount_sol") && v.IsSet("trading.max_trade_sol") {
		v.Set("trading.max_trade_amount_sol", v.Get("trading.max_trade_sol"))
	}

	var missing []string
	for _, key := range requiredKeys {
		if !v.IsSet(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, apperror.Validation(apperror.CodeInvalidConfig,
			"missing required keys: "+strings.Join(missing, ", "))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperror.New(apperror.CodeInvalidConfig, apperror.WithCause(err), apperror.WithContext(err.Error()))
	}

	return &cfg, nil
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			stringToDecimalHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func stringToDecimalHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != decimalType {
			return data, nil
		}
		switch val := data.(type) {
		case string:
			return decimal.NewFromString(strings.TrimSpace(val))
		case float64:
			return decimal.NewFromFloat(val), nil
		case float32:
			return decimal.NewFromFloat32(val), nil
		case int:
			return decimal.NewFromInt(int64(val)), nil
		case int64:
			return decimal.NewFromInt(val), nil
		case uint64:
			return decimal.NewFromUint64(val), nil
		}
		return data, nil
	}
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("chain.rpc_url", "ARB_RPC_URL", "SOLANA_RPC_URL")
	v.BindEnv("chain.websocket_url", "ARB_WS_URL", "SOLANA_WS_URL")

	v.BindEnv("execution.builder_url", "ARB_BUILDER_URL")
	v.BindEnv("scorer.url", "ARB_SCORER_URL")
	v.BindEnv("store.dsn", "ARB_STORE_DSN", "DATABASE_URL")

	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// setDefaults covers operational knobs only. Keys in requiredKeys never get a
// default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dex-arbitrage")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("chain.commitment", "confirmed")
	v.SetDefault("chain.poll_interval", "400ms")
	v.SetDefault("chain.requests_per_minute", 600)
	v.SetDefault("chain.initial_backoff", "1s")
	v.SetDefault("chain.max_backoff", "30s")

	v.SetDefault("pool.max_reserve_raw", uint64(1<<63-1))

	v.SetDefault("quote.timeout", "2s")
	v.SetDefault("quote.requests_per_minute", 600)

	v.SetDefault("filter.min_gross_spread_bps", "0")

	v.SetDefault("scorer.timeout", "250ms")
	v.SetDefault("scorer.default_confidence", "25")
	v.SetDefault("scorer.feature_window", 32)
	v.SetDefault("scorer.feature_ttl", "5m")

	v.SetDefault("discovery.max_queue", 16)
	v.SetDefault("discovery.min_confidence", "0")
	v.SetDefault("discovery.degraded_weight", "0.5")

	v.SetDefault("execution.freshness_window", "2s")
	v.SetDefault("execution.max_slot_age", 8)
	v.SetDefault("execution.trade_timeout", "30s")
	v.SetDefault("execution.max_submit_attempts", 2)
	v.SetDefault("execution.resubmit_guard", "2m")
	v.SetDefault("execution.confirm_poll_interval", "500ms")

	v.SetDefault("pipeline.interval", "1s")
	v.SetDefault("pipeline.fetch_concurrency", 8)

	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.connect_timeout", "5s")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "dex-arbitrage")
	v.SetDefault("telemetry.exporter", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)

	v.SetDefault("health.port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Trading.Mode {
	case ModeSimulation, ModeLive:
	default:
		return fmt.Errorf("trading.mode must be %q or %q, got %q", ModeSimulation, ModeLive, c.Trading.Mode)
	}
	if c.Trading.MaxConcurrentTrades < 1 {
		return fmt.Errorf("trading.max_concurrent_trades must be >= 1")
	}
	if !c.Trading.MaxTradeAmountSOL.IsPositive() {
		return fmt.Errorf("trading.max_trade_amount_sol must be > 0")
	}
	if c.Trading.MinProfitSOL.IsNegative() {
		return fmt.Errorf("trading.min_profit_sol must be >= 0")
	}
	if !c.Risk.MaxSlippagePercentage.IsPositive() {
		return fmt.Errorf("risk_management.max_slippage_percentage must be > 0")
	}
	if c.Pipeline.CycleDeadlineMs <= 0 {
		return fmt.Errorf("pipeline.cycle_deadline_ms must be > 0")
	}
	if len(c.Venues) == 0 {
		return fmt.Errorf("venues fee table cannot be empty")
	}
	seen := make(map[string]bool, len(c.Venues))
	for _, ven := range c.Venues {
		if ven.Name == "" {
			return fmt.Errorf("venues: name is required")
		}
		if seen[ven.Name] {
			return fmt.Errorf("venues: duplicate venue %q", ven.Name)
		}
		seen[ven.Name] = true
		if ven.FeeBps.IsNegative() {
			return fmt.Errorf("venues: %s fee_bps must be >= 0", ven.Name)
		}
	}
	if len(c.Targets) == 0 && c.Registry.SQLitePath == "" {
		return fmt.Errorf("targets or registry.sqlite_path is required")
	}
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required")
	}
	if c.Trading.LiveExecution() && c.Execution.BuilderURL == "" {
		return fmt.Errorf("execution.builder_url is required for live execution")
	}
	conf := c.Scorer.DefaultConfidence
	if conf.IsNegative() || conf.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("scorer.default_confidence must be within [0,100]")
	}
	return nil
}

// FeeTable returns venue fee bps keyed by venue name.
func (c *Config) FeeTable() map[string]decimal.Decimal {
	fees := make(map[string]decimal.Decimal, len(c.Venues))
	for _, ven := range c.Venues {
		fees[ven.Name] = ven.FeeBps
	}
	return fees
}
