package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"scrip/internal/platform/config"
)

// schema is applied idempotently at startup. Ledger counters are BIGINT;
// role entries are tombstoned via the active flag, never deleted.
const schema = `
CREATE TABLE IF NOT EXISTS vaults (
	id UUID PRIMARY KEY,
	authority TEXT NOT NULL UNIQUE,
	reserve_asset TEXT NOT NULL,
	voucher_asset TEXT NOT NULL,
	total_reserve_deposited BIGINT NOT NULL DEFAULT 0,
	total_voucher_minted BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS role_entries (
	vault_id UUID NOT NULL REFERENCES vaults (id),
	address TEXT NOT NULL,
	role TEXT NOT NULL,
	active BOOLEAN NOT NULL,
	added_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (vault_id, address)
);

CREATE TABLE IF NOT EXISTS audit_events (
	id UUID PRIMARY KEY,
	category TEXT NOT NULL,
	action TEXT NOT NULL,
	vault_id UUID NOT NULL,
	actor TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	payload JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS audit_events_vault_idx ON audit_events (vault_id, occurred_at);
`

// Connect opens a pgx pool and verifies connectivity.
// Returns nil if the URL is empty (Postgres not configured).
func Connect(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres URL: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return pool, nil
}

// Migrate applies the schema. Safe to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
