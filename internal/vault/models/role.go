package models

import (
	"time"

	"scrip/pkg/domain"
	dErrors "scrip/pkg/domain-errors"
)

// Role is the permitted capability of a registered participant.
type Role string

const (
	// RoleClient may only send voucher, and only to merchants.
	RoleClient Role = "client"
	// RoleMerchant may receive voucher from clients and settle it back
	// into reserve currency.
	RoleMerchant Role = "merchant"
)

// IsValid checks the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return r == RoleClient || r == RoleMerchant
}

// RoleEntry records one participant's registration with a vault.
//
// Invariants:
//   - Address and Role are immutable after creation; changing a
//     participant's role means removal plus a fresh registration
//   - Entries are tombstoned, never deleted: Active=false preserves the
//     audit history of who was ever a participant
//
// There is deliberately no reactivation path. A removed participant must
// be re-registered under a fresh entry, which the per-(vault, address)
// uniqueness rule prevents as long as the tombstone exists.
type RoleEntry struct {
	VaultID domain.VaultID `json:"vault_id"`
	Address domain.Address `json:"address"`
	Role    Role           `json:"role"`
	Active  bool           `json:"active"`
	AddedAt time.Time      `json:"added_at"`
}

// NewRoleEntry constructs an active registration.
func NewRoleEntry(vaultID domain.VaultID, address domain.Address, role Role, now time.Time) (*RoleEntry, error) {
	if vaultID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "role entry requires a vault")
	}
	if address.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "role entry address cannot be empty")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown role")
	}
	return &RoleEntry{
		VaultID: vaultID,
		Address: address,
		Role:    role,
		Active:  true,
		AddedAt: now,
	}, nil
}

// Deactivate tombstones the entry. Repeat calls just re-set the flag;
// removal is not an error when already inactive.
func (e *RoleEntry) Deactivate() {
	e.Active = false
}
