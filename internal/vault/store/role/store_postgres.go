package role

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"scrip/internal/vault/models"
	"scrip/pkg/domain"
	"scrip/pkg/platform/sentinel"
	platformtx "scrip/pkg/platform/tx"
)

// PostgresStore persists role entries in PostgreSQL. Removal flips the
// active flag; rows are never deleted.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed role store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := platformtx.From(ctx); ok {
		return tx
	}
	return s.pool
}

func (s *PostgresStore) Create(ctx context.Context, e *models.RoleEntry) error {
	tag, err := s.q(ctx).Exec(ctx, `
		INSERT INTO role_entries (vault_id, address, role, active, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (vault_id, address) DO NOTHING`,
		e.VaultID.String(), e.Address.String(), string(e.Role), e.Active, e.AddedAt)
	if err != nil {
		return fmt.Errorf("create role entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role entry %s/%s: %w", e.VaultID, e.Address, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, vaultID domain.VaultID, address domain.Address) (*models.RoleEntry, error) {
	return s.scanEntry(ctx, s.q(ctx), vaultID, address, `
		SELECT vault_id, address, role, active, added_at
		FROM role_entries WHERE vault_id = $1 AND address = $2`)
}

// Execute runs an atomic validate-then-mutate against one entry with the
// row lock held across both.
func (s *PostgresStore) Execute(ctx context.Context, vaultID domain.VaultID, address domain.Address,
	validate func(*models.RoleEntry) error, mutate func(*models.RoleEntry)) (*models.RoleEntry, error) {

	if tx, ok := platformtx.From(ctx); ok {
		return s.executeIn(ctx, tx, vaultID, address, validate, mutate)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin role update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := s.executeIn(ctx, tx, vaultID, address, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit role update: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) executeIn(ctx context.Context, tx querier, vaultID domain.VaultID, address domain.Address,
	validate func(*models.RoleEntry) error, mutate func(*models.RoleEntry)) (*models.RoleEntry, error) {

	e, err := s.scanEntry(ctx, tx, vaultID, address, `
		SELECT vault_id, address, role, active, added_at
		FROM role_entries WHERE vault_id = $1 AND address = $2 FOR UPDATE`)
	if err != nil {
		return nil, err
	}

	if err := validate(e); err != nil {
		return nil, err
	}
	mutate(e)

	if _, err := tx.Exec(ctx, `
		UPDATE role_entries SET active = $3
		WHERE vault_id = $1 AND address = $2`,
		e.VaultID.String(), e.Address.String(), e.Active); err != nil {
		return nil, fmt.Errorf("update role entry: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) scanEntry(ctx context.Context, q querier, vaultID domain.VaultID, address domain.Address, query string) (*models.RoleEntry, error) {
	var (
		e            models.RoleEntry
		vidStr, addr string
		roleStr      string
	)
	err := q.QueryRow(ctx, query, vaultID.String(), address.String()).Scan(
		&vidStr, &addr, &roleStr, &e.Active, &e.AddedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("role entry %s/%s: %w", vaultID, address, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find role entry: %w", err)
	}

	vid, err := domain.ParseVaultID(vidStr)
	if err != nil {
		return nil, fmt.Errorf("find role entry: %w", err)
	}
	e.VaultID = vid
	e.Address = domain.Address(addr)
	e.Role = models.Role(roleStr)
	return &e, nil
}
