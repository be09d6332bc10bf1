package models

import (
	"math"
	"time"

	"scrip/pkg/domain"
	dErrors "scrip/pkg/domain-errors"
)

// VoucherRate is the fixed integer exchange rate: 1 reserve unit mints
// VoucherRate voucher units. Single global rate, not parameterized per
// vault; changing it is a scope change, not a configuration knob.
const VoucherRate uint64 = 4

// Vault is the aggregate root for one authority's custody ledger.
//
// Invariants:
//   - Authority, ReserveAsset and VoucherAsset are immutable after creation
//   - TotalVoucherMinted <= TotalReserveDeposited * VoucherRate at every
//     observation point: deposits keep the two sides equal, floor-forfeit
//     settlements burn voucher faster than they release reserve, so the
//     custody balance always covers the outstanding voucher supply
//   - Counters only move through ApplyDeposit / ApplySettlement, each
//     guarded by its Can* check under the store's lock
//
// Over-redemption is impossible by construction: settlement subtracts with
// checked arithmetic, so the counters can never go below zero even if more
// voucher somehow reached an account than the vault ever minted.
type Vault struct {
	ID                    domain.VaultID `json:"id"`
	Authority             domain.Address `json:"authority"`
	ReserveAsset          domain.AssetID `json:"reserve_asset"`
	VoucherAsset          domain.AssetID `json:"voucher_asset"`
	TotalReserveDeposited uint64         `json:"total_reserve_deposited"`
	TotalVoucherMinted    uint64         `json:"total_voucher_minted"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// NewVault constructs a vault with zeroed counters. The vault ID and the
// voucher asset class are derived from the authority so one authority maps
// to exactly one vault.
func NewVault(authority domain.Address, now time.Time) (*Vault, error) {
	if authority.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "vault authority cannot be empty")
	}
	id := domain.DeriveVaultID(authority)
	return &Vault{
		ID:           id,
		Authority:    authority,
		ReserveAsset: domain.ReserveAssetID,
		VoucherAsset: domain.DeriveVoucherAssetID(id),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// AccountAddress is the vault's own account on the asset substrate, where
// deposited reserve sits in custody until settlement releases it.
func (v *Vault) AccountAddress() domain.Address {
	return domain.Address("vault:" + v.ID.String())
}

// IsAuthority reports whether addr administers this vault.
func (v *Vault) IsAuthority(addr domain.Address) bool {
	return !addr.IsNil() && v.Authority == addr
}

// VoucherAmountFor converts a reserve deposit into the voucher units it
// mints. Fails with CodeOverflow instead of wrapping.
func VoucherAmountFor(reserveAmount uint64) (uint64, error) {
	if reserveAmount > math.MaxUint64/VoucherRate {
		return 0, dErrors.New(dErrors.CodeOverflow, "deposit amount overflows voucher supply")
	}
	return reserveAmount * VoucherRate, nil
}

// ReserveAmountFor converts a voucher amount into the reserve units paid
// out on settlement, using integer floor division. Voucher amounts not
// evenly divisible by VoucherRate forfeit the remainder to the vault: the
// remainder is burned with no compensating payout. That is intended
// behavior, there is no remainder-tracking field.
//
// Fails with CodeAmountTooSmall when the floor result is zero, so a
// settlement can never burn voucher for a zero payout.
func ReserveAmountFor(voucherAmount uint64) (uint64, error) {
	reserve := voucherAmount / VoucherRate
	if reserve == 0 {
		return 0, dErrors.New(dErrors.CodeAmountTooSmall, "voucher amount too small to redeem")
	}
	return reserve, nil
}

// CanRecordDeposit checks that both counters can absorb the deposit
// without overflowing 64-bit range.
// Use with ApplyDeposit in Execute callbacks so the check and the mutation
// happen under the same store lock.
func (v *Vault) CanRecordDeposit(reserveAmount, voucherAmount uint64) error {
	if v.TotalReserveDeposited > math.MaxUint64-reserveAmount {
		return dErrors.New(dErrors.CodeOverflow, "reserve counter would overflow")
	}
	if v.TotalVoucherMinted > math.MaxUint64-voucherAmount {
		return dErrors.New(dErrors.CodeOverflow, "voucher counter would overflow")
	}
	return nil
}

// ApplyDeposit adds the deposit to both counters. Call CanRecordDeposit
// first; Apply does not re-check.
func (v *Vault) ApplyDeposit(reserveAmount, voucherAmount uint64, now time.Time) {
	v.TotalReserveDeposited += reserveAmount
	v.TotalVoucherMinted += voucherAmount
	v.UpdatedAt = now
}

// CanRecordSettlement checks that both counters can absorb the settlement
// without going negative. A CodeUnderflow here means the caller is trying
// to redeem more than the vault ever minted or deposited.
func (v *Vault) CanRecordSettlement(reserveAmount, voucherAmount uint64) error {
	if v.TotalReserveDeposited < reserveAmount {
		return dErrors.New(dErrors.CodeUnderflow, "reserve counter would underflow")
	}
	if v.TotalVoucherMinted < voucherAmount {
		return dErrors.New(dErrors.CodeUnderflow, "voucher counter would underflow")
	}
	return nil
}

// ApplySettlement subtracts the settlement from both counters. Call
// CanRecordSettlement first; Apply does not re-check.
func (v *Vault) ApplySettlement(reserveAmount, voucherAmount uint64, now time.Time) {
	v.TotalReserveDeposited -= reserveAmount
	v.TotalVoucherMinted -= voucherAmount
	v.UpdatedAt = now
}

// CheckInvariant verifies the conservation invariant between the two
// counters: the reserve in custody must back the outstanding voucher
// supply at the fixed rate. Equality is not required because forfeited
// settlement remainders burn voucher with no matching reserve release.
// Stores run it after every mutation; a failure aborts the operation
// before anything becomes visible.
func (v *Vault) CheckInvariant() error {
	if v.TotalReserveDeposited > math.MaxUint64/VoucherRate ||
		v.TotalVoucherMinted > v.TotalReserveDeposited*VoucherRate {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"voucher supply %d exceeds reserve backing %d at rate %d",
			v.TotalVoucherMinted, v.TotalReserveDeposited, VoucherRate)
	}
	return nil
}
