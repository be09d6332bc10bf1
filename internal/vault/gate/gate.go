// Package gate enforces the compliance rule on voucher movement: voucher
// flows from active clients to active merchants, in that direction only.
package gate

import (
	"scrip/internal/vault/models"
	dErrors "scrip/pkg/domain-errors"
)

// Authorize decides whether a proposed voucher transfer is permitted.
//
// The checks run in a fixed order so error reporting is deterministic:
// the first violated rule is the one surfaced, even when several are
// violated at once.
//
//  1. sender registered and active
//  2. sender role is client
//  3. recipient registered and active
//  4. recipient role is merchant
//
// A nil entry means the address was never registered and fails rule 1 or 3.
// There is no bypass: self-transfers, zero-amount requests (the caller
// validates amounts, not the gate) and the vault authority itself all go
// through the same four checks.
func Authorize(sender, recipient *models.RoleEntry) error {
	if sender == nil || !sender.Active {
		return dErrors.New(dErrors.CodeSenderNotRegistered, "sender is not registered")
	}
	if sender.Role != models.RoleClient {
		return dErrors.New(dErrors.CodeOnlyClientCanSend, "only clients can send voucher")
	}
	if recipient == nil || !recipient.Active {
		return dErrors.New(dErrors.CodeRecipientNotRegistered, "recipient is not registered")
	}
	if recipient.Role != models.RoleMerchant {
		return dErrors.New(dErrors.CodeOnlyMerchantCanReceive, "only merchants can receive voucher")
	}
	return nil
}
