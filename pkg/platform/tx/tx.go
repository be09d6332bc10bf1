// Package tx carries a pgx transaction through context so stores built on
// the querier-from-context pattern join a caller-owned transaction, and
// provides the Runner boundary services use to group writes atomically.
package tx

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a pgx transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a pgx transaction from context if present.
func From(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}

// Runner executes fn as one atomic unit with respect to every store that
// honors the context transaction. Services wrap a state change and its
// compliance audit record in one call so neither can land without the other.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// defaultTxTimeout bounds a transaction whose caller set no deadline.
const defaultTxTimeout = 5 * time.Second

// PgxRunner runs fn inside a single pgx transaction carried in the context.
// fn's error aborts the transaction and is returned verbatim.
type PgxRunner struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPgxRunner constructs a Runner over the given pool.
func NewPgxRunner(pool *pgxpool.Pool) *PgxRunner {
	return &PgxRunner{pool: pool}
}

func (r *PgxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Passthrough runs fn with no surrounding transaction. It backs the
// in-memory configuration, where each store applies its writes atomically
// on its own and fn's ordering provides the abort-before-mutate guarantee.
type Passthrough struct{}

func (Passthrough) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
