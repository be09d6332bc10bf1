// Package assets provides the fungible-asset substrate the vault service
// builds on: accounts keyed by (asset, address) holding unsigned balances,
// with mint, burn and transfer primitives.
//
// The vault core treats this as an external collaborator. It never reads
// balances to make decisions; it only issues the primitives and relies on
// them failing atomically.
package assets

import (
	"context"

	"scrip/pkg/domain"
)

// Engine is the balance substrate consumed by the vault service.
//
// Implementations must apply each call atomically: a failed transfer
// leaves both accounts untouched, a failed burn leaves the source intact.
// Errors wrap pkg/platform/sentinel values (ErrInsufficientFunds,
// ErrUnavailable) so services can translate them.
type Engine interface {
	// Mint creates amount new units of asset in to's account.
	Mint(ctx context.Context, asset domain.AssetID, to domain.Address, amount uint64) error
	// Burn destroys amount units of asset from from's account.
	Burn(ctx context.Context, asset domain.AssetID, from domain.Address, amount uint64) error
	// Transfer moves amount units of asset between accounts.
	Transfer(ctx context.Context, asset domain.AssetID, from, to domain.Address, amount uint64) error
	// Balance reads an account balance. Missing accounts read as zero.
	Balance(ctx context.Context, asset domain.AssetID, of domain.Address) (uint64, error)
}
