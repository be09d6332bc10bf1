package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the asset engine
// return these (optionally wrapped) so services can translate them into
// coded domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in store
// - ErrAlreadyUsed: a key is already taken (role entry, vault slot)
// - ErrConflict: concurrent modification detected
// - ErrInsufficientFunds: asset account balance too low for the operation
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrAlreadyUsed       = errors.New("already used")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnavailable       = errors.New("unavailable")
)
