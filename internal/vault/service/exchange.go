package service

import (
	"context"
	"errors"

	"scrip/internal/vault/gate"
	"scrip/internal/vault/models"
	"scrip/pkg/domain"
	dErrors "scrip/pkg/domain-errors"
	audit "scrip/pkg/platform/audit"
	"scrip/pkg/platform/sentinel"
	"scrip/pkg/requestcontext"
)

// InitializeVault creates the vault for an authority. The vault ID is
// derived from the authority address, so a second attempt by the same
// authority collides instead of creating a sibling.
func (s *Service) InitializeVault(ctx context.Context, authority domain.Address) (*models.Vault, error) {
	ctx, span := s.tracer.Start(ctx, "vault.initialize")
	defer span.End()

	v, err := models.NewVault(authority, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if _, err := s.vaults.FindByID(ctx, v.ID); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "vault already exists for this authority")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, wrapVaultErr(err)
	}

	// The compliance record goes in first: a failing sink aborts before
	// the vault exists, and on the transactional runner both commit or
	// roll back together.
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.emit(ctx, audit.EventVaultInitialized, audit.Event{
			VaultID: v.ID,
			Actor:   authority,
		}); err != nil {
			return err
		}
		if err := s.vaults.Create(ctx, v); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "vault already exists for this authority")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create vault")
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}
	if s.metrics != nil {
		s.metrics.VaultsInitialized.Inc()
	}
	return v, nil
}

// GetVault returns the vault record, counters included, so the
// conservation invariant stays observable from the outside.
func (s *Service) GetVault(ctx context.Context, vaultID domain.VaultID) (*models.Vault, error) {
	v, err := s.vaults.FindByID(ctx, vaultID)
	if err != nil {
		return nil, wrapVaultErr(err)
	}
	return v, nil
}

// Deposit converts caller-held reserve into voucher at the fixed rate:
// reserve moves into the vault's custody account, freshly minted voucher
// lands in the caller's account, and both ledger counters advance.
// Returns the voucher amount minted.
//
// All arithmetic is validated before the first asset movement so the
// ledger update cannot fail with an overflow after the transfer and mint
// already happened; if the ledger still rejects (concurrent deposits
// racing the headroom check), the asset movements are compensated before
// the error is returned.
func (s *Service) Deposit(ctx context.Context, vaultID domain.VaultID, caller domain.Address, reserveAmount uint64) (uint64, error) {
	ctx, span := s.tracer.Start(ctx, "vault.deposit")
	defer span.End()

	if reserveAmount == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidAmount, "deposit amount must be positive")
	}
	voucherAmount, err := models.VoucherAmountFor(reserveAmount)
	if err != nil {
		return 0, err
	}

	v, err := s.vaults.FindByID(ctx, vaultID)
	if err != nil {
		return 0, wrapVaultErr(err)
	}
	if err := v.CanRecordDeposit(reserveAmount, voucherAmount); err != nil {
		return 0, err
	}

	if err := s.engine.Transfer(ctx, v.ReserveAsset, caller, v.AccountAddress(), reserveAmount); err != nil {
		return 0, wrapEngineErr(err, "reserve transfer failed")
	}
	if err := s.engine.Mint(ctx, v.VoucherAsset, caller, voucherAmount); err != nil {
		s.compensate(ctx, func() error {
			return s.engine.Transfer(ctx, v.ReserveAsset, v.AccountAddress(), caller, reserveAmount)
		})
		return 0, wrapEngineErr(err, "voucher mint failed")
	}

	if _, err := s.vaults.Execute(ctx, vaultID,
		func(v *models.Vault) error {
			return v.CanRecordDeposit(reserveAmount, voucherAmount)
		},
		func(v *models.Vault) {
			v.ApplyDeposit(reserveAmount, voucherAmount, requestcontext.Now(ctx))
		},
	); err != nil {
		s.compensate(ctx, func() error {
			if err := s.engine.Burn(ctx, v.VoucherAsset, caller, voucherAmount); err != nil {
				return err
			}
			return s.engine.Transfer(ctx, v.ReserveAsset, v.AccountAddress(), caller, reserveAmount)
		})
		return 0, wrapVaultErr(err)
	}

	if err := s.emit(ctx, audit.EventVoucherDeposited, audit.Event{
		VaultID:       vaultID,
		Actor:         caller,
		ReserveAmount: reserveAmount,
		VoucherAmount: voucherAmount,
	}); err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.Deposits.Inc()
		s.metrics.VoucherMinted.Add(float64(voucherAmount))
	}
	return voucherAmount, nil
}

// Transfer moves voucher from an active client to an active merchant.
// The gate decides; the service only validates the amount and executes.
func (s *Service) Transfer(ctx context.Context, vaultID domain.VaultID, sender, recipient domain.Address, amount uint64) error {
	ctx, span := s.tracer.Start(ctx, "vault.transfer")
	defer span.End()

	if amount == 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "transfer amount must be positive")
	}

	v, err := s.vaults.FindByID(ctx, vaultID)
	if err != nil {
		return wrapVaultErr(err)
	}

	senderEntry, err := s.findRole(ctx, vaultID, sender)
	if err != nil {
		return err
	}
	recipientEntry, err := s.findRole(ctx, vaultID, recipient)
	if err != nil {
		return err
	}

	if err := gate.Authorize(senderEntry, recipientEntry); err != nil {
		if emitErr := s.emit(ctx, audit.EventTransferBlocked, audit.Event{
			VaultID: vaultID,
			Actor:   sender,
			Subject: recipient,
			Reason:  string(dErrors.CodeOf(err)),
		}); emitErr != nil {
			return emitErr
		}
		if s.metrics != nil {
			s.metrics.TransfersBlocked.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
		}
		return err
	}

	if err := s.engine.Transfer(ctx, v.VoucherAsset, sender, recipient, amount); err != nil {
		return wrapEngineErr(err, "voucher transfer failed")
	}

	if err := s.emit(ctx, audit.EventVoucherTransferred, audit.Event{
		VaultID:       vaultID,
		Actor:         sender,
		Subject:       recipient,
		VoucherAmount: amount,
	}); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.Transfers.Inc()
	}
	return nil
}

// Settle redeems a merchant's voucher for reserve currency at the fixed
// rate with floor division: the voucher burns in full, the floor payout
// leaves the vault's custody account, and both counters retreat. Voucher
// amounts not evenly divisible by the rate forfeit the remainder.
// Returns the reserve amount released.
func (s *Service) Settle(ctx context.Context, vaultID domain.VaultID, caller domain.Address, voucherAmount uint64) (uint64, error) {
	ctx, span := s.tracer.Start(ctx, "vault.settle")
	defer span.End()

	if voucherAmount == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidAmount, "settlement amount must be positive")
	}

	v, err := s.vaults.FindByID(ctx, vaultID)
	if err != nil {
		return 0, wrapVaultErr(err)
	}

	entry, err := s.findRole(ctx, vaultID, caller)
	if err != nil {
		return 0, err
	}
	if entry == nil || !entry.Active {
		return 0, dErrors.New(dErrors.CodeNotRegistered, "address is not registered")
	}
	if entry.Role != models.RoleMerchant {
		return 0, dErrors.New(dErrors.CodeOnlyMerchantCanSettle, "only merchants can settle")
	}

	reserveAmount, err := models.ReserveAmountFor(voucherAmount)
	if err != nil {
		return 0, err
	}
	if err := v.CanRecordSettlement(reserveAmount, voucherAmount); err != nil {
		return 0, err
	}

	if err := s.engine.Burn(ctx, v.VoucherAsset, caller, voucherAmount); err != nil {
		return 0, wrapEngineErr(err, "voucher burn failed")
	}
	if err := s.engine.Transfer(ctx, v.ReserveAsset, v.AccountAddress(), caller, reserveAmount); err != nil {
		s.compensate(ctx, func() error {
			return s.engine.Mint(ctx, v.VoucherAsset, caller, voucherAmount)
		})
		return 0, wrapEngineErr(err, "reserve release failed")
	}

	if _, err := s.vaults.Execute(ctx, vaultID,
		func(v *models.Vault) error {
			return v.CanRecordSettlement(reserveAmount, voucherAmount)
		},
		func(v *models.Vault) {
			v.ApplySettlement(reserveAmount, voucherAmount, requestcontext.Now(ctx))
		},
	); err != nil {
		s.compensate(ctx, func() error {
			if err := s.engine.Transfer(ctx, v.ReserveAsset, caller, v.AccountAddress(), reserveAmount); err != nil {
				return err
			}
			return s.engine.Mint(ctx, v.VoucherAsset, caller, voucherAmount)
		})
		return 0, wrapVaultErr(err)
	}

	if err := s.emit(ctx, audit.EventVoucherSettled, audit.Event{
		VaultID:       vaultID,
		Actor:         caller,
		ReserveAmount: reserveAmount,
		VoucherAmount: voucherAmount,
	}); err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.Settlements.Inc()
		s.metrics.ReserveReleased.Add(float64(reserveAmount))
	}
	return reserveAmount, nil
}

// compensate reverses asset movements after a ledger rejection. A failed
// compensation leaves the engine and ledger divergent, which is the one
// state this core cannot repair on its own; it is logged loudly for
// operator reconciliation.
func (s *Service) compensate(ctx context.Context, undo func() error) {
	if err := undo(); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "CRITICAL: compensation failed, ledger and asset engine diverged",
			"error", err,
		)
	}
}
