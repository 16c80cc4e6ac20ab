// Package sqlite stores venue targets in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fd1az/dex-arbitrage/business/pool/domain"
	"github.com/fd1az/dex-arbitrage/internal/apperror"
)

const schema = `
CREATE TABLE IF NOT EXISTS venue_targets (
	id             TEXT PRIMARY KEY,
	venue          TEXT NOT NULL,
	pair           TEXT NOT NULL,
	source         TEXT NOT NULL DEFAULT 'account',
	protocol       TEXT NOT NULL DEFAULT '',
	version        TEXT NOT NULL DEFAULT '',
	account        TEXT NOT NULL DEFAULT '',
	vault_a        TEXT NOT NULL DEFAULT '',
	vault_b        TEXT NOT NULL DEFAULT '',
	base_decimals  INTEGER NOT NULL DEFAULT 0,
	quote_decimals INTEGER NOT NULL DEFAULT 0,
	enabled        INTEGER NOT NULL DEFAULT 1
)`

// Registry is a TargetSource backed by the venue_targets table.
type Registry struct {
	db *sql.DB
}

// Open opens (creating if needed) the registry database at path.
func Open(ctx context.Context, path string) (*Registry, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, storeError("open "+path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, storeError("create schema", err)
	}
	return &Registry{db: db}, nil
}

// Targets returns every enabled target with deterministic ordering.
func (r *Registry) Targets(ctx context.Context) ([]domain.Target, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, venue, pair, source, protocol, version, account,
		       vault_a, vault_b, base_decimals, quote_decimals
		FROM venue_targets
		WHERE enabled = 1
		ORDER BY id`)
	if err != nil {
		return nil, storeError("query targets", err)
	}
	defer rows.Close()

	var targets []domain.Target
	for rows.Next() {
		var (
			t                 domain.Target
			source, protocol  string
			baseDec, quoteDec int
		)
		if err := rows.Scan(&t.ID, &t.Venue, &t.Pair, &source, &protocol, &t.Version,
			&t.Account, &t.VaultA, &t.VaultB, &baseDec, &quoteDec); err != nil {
			return nil, storeError("scan target", err)
		}
		if baseDec < 0 || baseDec > 18 || quoteDec < 0 || quoteDec > 18 {
			return nil, storeError(fmt.Sprintf("target %s: decimals out of range", t.ID), nil)
		}
		t.Source = domain.Source(source)
		t.Protocol = domain.Protocol(protocol)
		t.BaseDecimals, t.QuoteDecimals = uint8(baseDec), uint8(quoteDec)
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate targets", err)
	}
	return targets, nil
}

// Upsert inserts or replaces a target and enables it.
func (r *Registry) Upsert(ctx context.Context, t domain.Target) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO venue_targets (id, venue, pair, source, protocol, version, account,
		                           vault_a, vault_b, base_decimals, quote_decimals, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			venue = excluded.venue, pair = excluded.pair, source = excluded.source,
			protocol = excluded.protocol, version = excluded.version, account = excluded.account,
			vault_a = excluded.vault_a, vault_b = excluded.vault_b,
			base_decimals = excluded.base_decimals, quote_decimals = excluded.quote_decimals,
			enabled = 1`,
		t.ID, t.Venue, t.Pair, string(t.Source), string(t.Protocol), t.Version, t.Account,
		t.VaultA, t.VaultB, int(t.BaseDecimals), int(t.QuoteDecimals))
	if err != nil {
		return storeError("upsert "+t.ID, err)
	}
	return nil
}

// Disable stops a target from being polled without deleting it.
func (r *Registry) Disable(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE venue_targets SET enabled = 0 WHERE id = ?`, id)
	if err != nil {
		return storeError("disable "+id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.New(apperror.CodeNotFound, apperror.WithContext("target "+id))
	}
	return nil
}

// Close closes the database.
func (r *Registry) Close() error {
	return r.db.Close()
}

func storeError(op string, cause error) error {
	opts := []apperror.Option{apperror.WithContext("sqlite: " + op)}
	if cause != nil {
		opts = append(opts, apperror.WithCause(cause))
	}
	return apperror.New(apperror.CodeStoreError, opts...)
}
