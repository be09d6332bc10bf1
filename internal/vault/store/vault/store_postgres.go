package vault

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

// PostgresStore persists vaults in PostgreSQL. Counters are stored as
// BIGINT, which bounds them at 2^63-1 on this store; the Redis asset
// engine carries the same bound, so the limits line up.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed vault store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// querier is satisfied by both pgxpool.Pool and pgx.Tx so store methods
// run inside a caller-provided transaction when one is in the context.
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

func (s *PostgresStore) Create(ctx context.Context, v *models.Vault) error {
	tag, err := s.q(ctx).Exec(ctx, `
		INSERT INTO vaults (id, authority, reserve_asset, voucher_asset,
			total_reserve_deposited, total_voucher_minted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		v.ID.String(), v.Authority.String(), v.ReserveAsset.String(), v.VoucherAsset.String(),
		int64(v.TotalReserveDeposited), int64(v.TotalVoucherMinted), v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create vault: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vault %s: %w", v.ID, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.VaultID) (*models.Vault, error) {
	return s.scanVault(ctx, s.q(ctx), id, `
		SELECT id, authority, reserve_asset, voucher_asset,
			total_reserve_deposited, total_voucher_minted, created_at, updated_at
		FROM vaults WHERE id = $1`)
}

// Execute runs an atomic validate-then-mutate against one vault. The row
// lock from SELECT ... FOR UPDATE is held across validation and mutation,
// and the whole unit commits or rolls back together.
func (s *PostgresStore) Execute(ctx context.Context, id domain.VaultID,
	validate func(*models.Vault) error, mutate func(*models.Vault)) (*models.Vault, error) {

	if tx, ok := platformtx.From(ctx); ok {
		return s.executeIn(ctx, tx, id, validate, mutate)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin vault update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	v, err := s.executeIn(ctx, tx, id, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit vault update: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) executeIn(ctx context.Context, tx querier, id domain.VaultID,
	validate func(*models.Vault) error, mutate func(*models.Vault)) (*models.Vault, error) {

	v, err := s.scanVault(ctx, tx, id, `
		SELECT id, authority, reserve_asset, voucher_asset,
			total_reserve_deposited, total_voucher_minted, created_at, updated_at
		FROM vaults WHERE id = $1 FOR UPDATE`)
	if err != nil {
		return nil, err
	}

	if err := validate(v); err != nil {
		return nil, err
	}
	mutate(v)
	if err := v.CheckInvariant(); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE vaults
		SET total_reserve_deposited = $2, total_voucher_minted = $3, updated_at = $4
		WHERE id = $1`,
		v.ID.String(), int64(v.TotalReserveDeposited), int64(v.TotalVoucherMinted), v.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update vault: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) scanVault(ctx context.Context, q querier, id domain.VaultID, query string) (*models.Vault, error) {
	var (
		v                 models.Vault
		idStr, authority  string
		reserve, voucher  string
		reserveCt, mintCt int64
	)
	err := q.QueryRow(ctx, query, id.String()).Scan(
		&idStr, &authority, &reserve, &voucher, &reserveCt, &mintCt, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("vault %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find vault: %w", err)
	}

	vid, err := domain.ParseVaultID(idStr)
	if err != nil {
		return nil, fmt.Errorf("find vault: %w", err)
	}
	v.ID = vid
	v.Authority = domain.Address(authority)
	v.ReserveAsset = domain.AssetID(reserve)
	v.VoucherAsset = domain.AssetID(voucher)
	v.TotalReserveDeposited = uint64(reserveCt)
	v.TotalVoucherMinted = uint64(mintCt)
	return &v, nil
}
