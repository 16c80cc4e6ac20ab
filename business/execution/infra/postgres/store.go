// Package postgres is the audit store for trade executions and cycle reports.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sugawarayuuta/sonnet"

	arbDomain "github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/dex-arbitrage/business/execution/domain"
	"github.com/fd1az/dex-arbitrage/internal/apperror"
)

// ErrNotConfigured indicates the pool was not initialised.
var ErrNotConfigured = errors.New("postgres: pool not configured")

const (
	createTradesSQL = `CREATE TABLE IF NOT EXISTS trade_executions (
        dedup_key           TEXT        NOT NULL,
        seq                 BIGINT      NOT NULL,
        cycle_id            BIGINT      NOT NULL,
        pair                TEXT        NOT NULL,
        route               TEXT[]      NOT NULL,
        size_sol            NUMERIC     NOT NULL,
        simulated           BOOLEAN     NOT NULL,
        status              TEXT        NOT NULL,
        signature           TEXT,
        attempts            INTEGER     NOT NULL,
        reason              TEXT,
        expected_profit_sol NUMERIC     NOT NULL,
        realized_profit_sol NUMERIC     NOT NULL,
        created_at          TIMESTAMPTZ NOT NULL,
        submitted_at        TIMESTAMPTZ,
        finished_at         TIMESTAMPTZ,
        PRIMARY KEY (seq)
    );`

	createCyclesSQL = `CREATE TABLE IF NOT EXISTS cycle_reports (
        cycle_id             BIGINT      PRIMARY KEY,
        started_at           TIMESTAMPTZ NOT NULL,
        duration_ms          BIGINT      NOT NULL,
        partial              BOOLEAN     NOT NULL,
        targets              INTEGER     NOT NULL,
        states               INTEGER     NOT NULL,
        fetch_failures       INTEGER     NOT NULL,
        decode_errors        INTEGER     NOT NULL,
        considered           INTEGER     NOT NULL,
        passed               INTEGER     NOT NULL,
        filter_rejected      JSONB       NOT NULL,
        scored               INTEGER     NOT NULL,
        degraded             INTEGER     NOT NULL,
        queued               INTEGER     NOT NULL,
        discovery_drop       JSONB       NOT NULL,
        executed             INTEGER     NOT NULL,
        confirmed            INTEGER     NOT NULL,
        realized_profit_sol  NUMERIC     NOT NULL,
        simulated_profit_sol NUMERIC     NOT NULL,
        accounting_error     TEXT
    );`

	upsertTradeSQL = `INSERT INTO trade_executions (
        dedup_key,
        seq,
        cycle_id,
        pair,
        route,
        size_sol,
        simulated,
        status,
        signature,
        attempts,
        reason,
        expected_profit_sol,
        realized_profit_sol,
        created_at,
        submitted_at,
        finished_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
    )
    ON CONFLICT (seq) DO UPDATE
    SET
        status              = EXCLUDED.status,
        signature           = EXCLUDED.signature,
        attempts            = EXCLUDED.attempts,
        reason              = EXCLUDED.reason,
        realized_profit_sol = EXCLUDED.realized_profit_sol,
        submitted_at        = EXCLUDED.submitted_at,
        finished_at         = EXCLUDED.finished_at;`

	insertCycleSQL = `INSERT INTO cycle_reports (
        cycle_id,
        started_at,
        duration_ms,
        partial,
        targets,
        states,
        fetch_failures,
        decode_errors,
        considered,
        passed,
        filter_rejected,
        scored,
        degraded,
        queued,
        discovery_drop,
        executed,
        confirmed,
        realized_profit_sol,
        simulated_profit_sol,
        accounting_error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20
    )
    ON CONFLICT (cycle_id) DO NOTHING;`

	lastCycleSQL = `SELECT GREATEST(
        COALESCE((SELECT max(cycle_id) FROM cycle_reports), 0),
        COALESCE((SELECT max(cycle_id) FROM trade_executions), 0)
    );`

	pingSQL = `SELECT 1;`
)

// Config holds the connection settings.
type Config struct {
	DSN            string
	MaxConns       int32
	ConnectTimeout time.Duration
}

// NewPool configures a PostgreSQL connection pool.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, apperror.Validation(apperror.CodeInvalidConfig, "store.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, storeError("parse dsn", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, storeError("create pool", err)
	}
	return pool, nil
}

// Store persists terminal trades and cycle reports. It implements both
// the executor's TradeStore and the pipeline's Reporter.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Migrate creates the audit tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	for _, stmt := range []string{createTradesSQL, createCyclesSQL} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return storeError("migrate", err)
		}
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, pingSQL); err != nil {
		return storeError("ping", err)
	}
	return nil
}

// LastCycleID returns the highest cycle id recorded by any run, 0 for an
// empty store. A new run numbers its cycles after it so sequence numbers
// never repeat across restarts.
func (s *Store) LastCycleID(ctx context.Context) (uint64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var last int64
	if err := pool.QueryRow(ctx, lastCycleSQL).Scan(&last); err != nil {
		return 0, storeError("last cycle", err)
	}
	return uint64(last), nil
}

// SaveTrade upserts a trade execution keyed by its seq.
func (s *Store) SaveTrade(ctx context.Context, trade *domain.TradeExecution) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, upsertTradeSQL, tradeArgs(trade)...); err != nil {
		return storeError("upsert trade", err)
	}
	return nil
}

// Start implements the pipeline Reporter.
func (s *Store) Start(ctx context.Context) error {
	return s.Migrate(ctx)
}

// Report implements the pipeline Reporter. A cycle is written once.
func (s *Store) Report(ctx context.Context, report arbDomain.CycleReport) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	args, err := cycleArgs(report)
	if err != nil {
		return storeError("encode cycle", err)
	}
	if _, err := pool.Exec(ctx, insertCycleSQL, args...); err != nil {
		return storeError("insert cycle", err)
	}
	return nil
}

// Stop releases the pool.
func (s *Store) Stop() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func tradeArgs(t *domain.TradeExecution) []any {
	return []any{
		t.ID,
		int64(t.Seq),
		int64(t.CycleID),
		t.Pair,
		t.Route,
		t.SizeSOL.String(),
		t.Simulated,
		string(t.Status()),
		nullString(t.Signature()),
		t.Attempts(),
		nullString(t.Reason()),
		t.ExpectedProfitSOL.String(),
		t.RealizedProfitSOL().String(),
		t.CreatedAt,
		nullTime(t.SubmittedAt),
		nullTime(t.FinishedAt),
	}
}

func cycleArgs(r arbDomain.CycleReport) ([]any, error) {
	rejected, err := sonnet.Marshal(reasonCounts(r.FilterRejected))
	if err != nil {
		return nil, err
	}
	dropped, err := sonnet.Marshal(reasonCounts(r.DiscoveryDrop))
	if err != nil {
		return nil, err
	}

	var accErr any
	if r.Err != nil {
		accErr = r.Err.Error()
	}

	return []any{
		int64(r.CycleID),
		r.StartedAt,
		r.Duration.Milliseconds(),
		r.Partial,
		r.Targets,
		r.States,
		r.FetchFailures,
		r.DecodeErrors,
		r.Considered,
		r.Passed,
		rejected,
		r.Scored,
		r.Degraded,
		r.Queued,
		dropped,
		r.Execution.Executed,
		r.Execution.Confirmed,
		r.Execution.RealizedProfitSOL.String(),
		r.Execution.SimulatedProfitSOL.String(),
		accErr,
	}, nil
}

func reasonCounts(m map[arbDomain.Reason]int) map[string]int {
	out := make(map[string]int, len(m))
	for reason, n := range m {
		out[string(reason)] = n
	}
	return out
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func storeError(op string, cause error) error {
	return apperror.New(apperror.CodeStoreError,
		apperror.WithContext("postgres: "+op),
		apperror.WithCause(cause),
	)
}
