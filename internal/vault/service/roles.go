package service

import (
	"context"
	"errors"

	"scrip/internal/vault/models"
	"scrip/pkg/domain"
	dErrors "scrip/pkg/domain-errors"
	audit "scrip/pkg/platform/audit"
	"scrip/pkg/platform/sentinel"
	"scrip/pkg/requestcontext"
)

// AddClient registers an address as a client of the vault. Only the vault
// authority may administer the registry.
func (s *Service) AddClient(ctx context.Context, vaultID domain.VaultID, caller, address domain.Address) (*models.RoleEntry, error) {
	return s.addRole(ctx, vaultID, caller, address, models.RoleClient, audit.EventClientRegistered)
}

// AddMerchant registers an address as a merchant of the vault.
func (s *Service) AddMerchant(ctx context.Context, vaultID domain.VaultID, caller, address domain.Address) (*models.RoleEntry, error) {
	return s.addRole(ctx, vaultID, caller, address, models.RoleMerchant, audit.EventMerchantRegistered)
}

func (s *Service) addRole(ctx context.Context, vaultID domain.VaultID, caller, address domain.Address,
	role models.Role, action audit.AuditEvent) (*models.RoleEntry, error) {

	ctx, span := s.tracer.Start(ctx, "vault.add_role")
	defer span.End()

	if err := s.requireAuthority(ctx, vaultID, caller); err != nil {
		return nil, err
	}

	entry, err := models.NewRoleEntry(vaultID, address, role, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	// Tombstoned entries count as registered, so Find rather than an
	// active-only lookup.
	if _, err := s.roles.Find(ctx, vaultID, address); err == nil {
		return nil, dErrors.New(dErrors.CodeDuplicateRegistration, "address is already registered with this vault")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up role entry")
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.emit(ctx, action, audit.Event{
			VaultID: vaultID,
			Actor:   caller,
			Subject: address,
		}); err != nil {
			return err
		}
		if err := s.roles.Create(ctx, entry); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeDuplicateRegistration, "address is already registered with this vault")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register role")
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}
	s.invalidateRole(ctx, vaultID, address)
	if s.metrics != nil {
		s.metrics.RolesRegistered.WithLabelValues(string(role)).Inc()
	}
	return entry, nil
}

// RemoveRole tombstones a registration. The entry stays in the registry
// with Active=false to preserve audit history; repeated removal of the
// same entry is a no-op re-set, not an error.
func (s *Service) RemoveRole(ctx context.Context, vaultID domain.VaultID, caller, address domain.Address) error {
	ctx, span := s.tracer.Start(ctx, "vault.remove_role")
	defer span.End()

	if err := s.requireAuthority(ctx, vaultID, caller); err != nil {
		return err
	}

	if _, err := s.roles.Find(ctx, vaultID, address); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "role entry not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up role entry")
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.emit(ctx, audit.EventRoleRemoved, audit.Event{
			VaultID: vaultID,
			Actor:   caller,
			Subject: address,
		}); err != nil {
			return err
		}
		if _, err := s.roles.Execute(ctx, vaultID, address,
			func(*models.RoleEntry) error { return nil },
			func(e *models.RoleEntry) { e.Deactivate() },
		); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "role entry not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove role")
		}
		return nil
	})
	if err != nil {
		return wrapTxErr(err)
	}
	s.invalidateRole(ctx, vaultID, address)
	if s.metrics != nil {
		s.metrics.RolesRemoved.Inc()
	}
	return nil
}

// requireAuthority loads the vault and checks the caller administers it.
func (s *Service) requireAuthority(ctx context.Context, vaultID domain.VaultID, caller domain.Address) error {
	v, err := s.vaults.FindByID(ctx, vaultID)
	if err != nil {
		return wrapVaultErr(err)
	}
	if !v.IsAuthority(caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the vault authority")
	}
	return nil
}
