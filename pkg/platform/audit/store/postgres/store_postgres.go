// Package postgres persists audit events in an append-only table. It is
// the durable audit sink for deployments that run Postgres without a
// Kafka stream.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"scrip/pkg/domain"
	audit "scrip/pkg/platform/audit"
	platformtx "scrip/pkg/platform/tx"
)

// Store implements audit.Store over an append-only audit_events table.
// Rows are never updated or deleted; retention is an operational concern
// handled outside this service.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a PostgreSQL-backed audit store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := platformtx.From(ctx); ok {
		return tx
	}
	return s.pool
}

// Append writes one event. The full event is stored as JSONB next to the
// indexed columns so new event fields need no migration.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	// Category always derives from the action so rows cannot disagree
	// with the taxonomy.
	category := audit.AuditEvent(event.Action).Category()
	event.Category = category

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	_, err = s.q(ctx).Exec(ctx, `
		INSERT INTO audit_events (id, category, action, vault_id, actor, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), string(category), event.Action,
		event.VaultID.String(), event.Actor.String(), event.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListByVault returns a vault's events in insertion order.
func (s *Store) ListByVault(ctx context.Context, vaultID domain.VaultID) ([]audit.Event, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT payload FROM audit_events
		WHERE vault_id = $1
		ORDER BY occurred_at, id`,
		vaultID.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var ev audit.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
