// Package service orchestrates the vault ledger: vault initialization,
// role administration, and the deposit / transfer / settle exchange
// operations that move value between the reserve and voucher assets.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"scrip/internal/assets"
	vaultmetrics "scrip/internal/vault/metrics"
	"scrip/internal/vault/models"
	"scrip/pkg/domain"
	dErrors "scrip/pkg/domain-errors"
	audit "scrip/pkg/platform/audit"
	"scrip/pkg/platform/sentinel"
	platformtx "scrip/pkg/platform/tx"
	"scrip/pkg/requestcontext"
)

// VaultStore persists vault aggregates.
type VaultStore interface {
	Create(ctx context.Context, v *models.Vault) error
	FindByID(ctx context.Context, id domain.VaultID) (*models.Vault, error)
	Execute(ctx context.Context, id domain.VaultID,
		validate func(*models.Vault) error, mutate func(*models.Vault)) (*models.Vault, error)
}

// RoleStore persists role registrations.
type RoleStore interface {
	Create(ctx context.Context, e *models.RoleEntry) error
	Find(ctx context.Context, vaultID domain.VaultID, address domain.Address) (*models.RoleEntry, error)
	Execute(ctx context.Context, vaultID domain.VaultID, address domain.Address,
		validate func(*models.RoleEntry) error, mutate func(*models.RoleEntry)) (*models.RoleEntry, error)
}

// RoleReader is the lookup path for transfer and settle authorization.
// It is satisfied by RoleStore directly or by the Redis read-through cache.
type RoleReader interface {
	Find(ctx context.Context, vaultID domain.VaultID, address domain.Address) (*models.RoleEntry, error)
}

// RoleInvalidator drops cached role entries after a mutation.
type RoleInvalidator interface {
	Invalidate(ctx context.Context, vaultID domain.VaultID, address domain.Address)
}

// Service composes the registry, the ledger and the asset engine into the
// four exchange operations.
type Service struct {
	vaults      VaultStore
	roles       RoleStore
	roleReader  RoleReader
	invalidator RoleInvalidator
	engine      assets.Engine
	runner      platformtx.Runner
	logger      *slog.Logger
	audit       audit.Store
	metrics     *vaultmetrics.Metrics
	tracer      trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditPublisher sets the audit sink. Compliance-category events are
// fail-closed: if the sink rejects them, the operation fails.
func WithAuditPublisher(store audit.Store) Option {
	return func(s *Service) {
		s.audit = store
	}
}

// WithTxRunner sets the transaction boundary for registry mutations,
// grouping each state change with its compliance audit record. Defaults
// to a passthrough for the in-memory stores.
func WithTxRunner(r platformtx.Runner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

// WithMetrics sets the Prometheus metrics collector.
func WithMetrics(m *vaultmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// RoleCacheBinding pairs a read path with its invalidation hook.
type RoleCacheBinding interface {
	RoleReader
	RoleInvalidator
}

// WithRoleCache routes role lookups through a read-through cache and
// invalidates it on every registry mutation.
func WithRoleCache(c RoleCacheBinding) Option {
	return func(s *Service) {
		s.roleReader = c
		s.invalidator = c
	}
}

// New constructs a Service. Role lookups go straight to the store unless
// WithRoleCache is supplied.
func New(vaults VaultStore, roles RoleStore, engine assets.Engine, opts ...Option) *Service {
	s := &Service{
		vaults:     vaults,
		roles:      roles,
		roleReader: roles,
		engine:     engine,
		runner:     platformtx.Passthrough{},
		tracer:     otel.Tracer("scrip/vault"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// findRole loads a role entry for gate consultation. A missing entry comes
// back as nil: the gate treats "never registered" the same as inactive,
// only the error code differs by position.
func (s *Service) findRole(ctx context.Context, vaultID domain.VaultID, address domain.Address) (*models.RoleEntry, error) {
	e, err := s.roleReader.Find(ctx, vaultID, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up role entry")
	}
	return e, nil
}

func (s *Service) invalidateRole(ctx context.Context, vaultID domain.VaultID, address domain.Address) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, vaultID, address)
	}
}

// wrapVaultErr translates store facts into coded errors, passing already
// coded errors (arithmetic, invariant) through verbatim.
func wrapVaultErr(err error) error {
	var de *dErrors.DomainError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "vault not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "vault store failure")
}

// wrapTxErr passes coded errors from inside a transaction through verbatim
// and wraps transaction machinery failures (begin, commit) as internal.
func wrapTxErr(err error) error {
	var de *dErrors.DomainError
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "transaction failed")
}

// wrapEngineErr translates asset engine failures.
func wrapEngineErr(err error, message string) error {
	if errors.Is(err, sentinel.ErrInsufficientFunds) {
		return dErrors.Wrap(err, dErrors.CodeInsufficientFunds, message)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}

// emit records an audit event. Compliance events are fail-closed; other
// categories log the failure and let the operation stand. Call sites
// append a compliance event before the mutation it witnesses, inside the
// runner's transaction, so a rejected event aborts with no state change.
func (s *Service) emit(ctx context.Context, action audit.AuditEvent, ev audit.Event) error {
	ev.Action = string(action)
	ev.Category = action.Category()
	ev.Timestamp = requestcontext.Now(ctx)
	ev.RequestID = requestcontext.RequestID(ctx)

	if s.logger != nil {
		s.logger.InfoContext(ctx, string(action),
			"vault_id", ev.VaultID,
			"actor", ev.Actor,
			"request_id", ev.RequestID,
			"log_type", "audit",
		)
	}
	if s.audit == nil {
		return nil
	}
	if err := s.audit.Append(ctx, ev); err != nil {
		if ev.Category == audit.CategoryCompliance {
			return dErrors.Wrap(err, dErrors.CodeInternal, "audit persistence failed")
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "audit append failed", "action", ev.Action, "error", err)
		}
	}
	return nil
}
