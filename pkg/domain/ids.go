package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "scrip/pkg/domain-errors"
)

// Address identifies a participant on the asset substrate. Addresses are
// opaque to this service: the substrate proves control of an address, we
// only compare them.
//
// Usage: construct via ParseAddress at trust boundaries; direct casting
// bypasses validation.
type Address string

const maxAddressLen = 128

// ParseAddress validates external input into an Address.
//
// Errors: returns CodeValidation when the value is empty, padded, or
// longer than the substrate allows; no other errors are expected.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "address cannot be empty")
	}
	if strings.TrimSpace(s) != s {
		return "", dErrors.New(dErrors.CodeValidation, "address cannot contain leading or trailing whitespace")
	}
	if len(s) > maxAddressLen {
		return "", dErrors.New(dErrors.CodeValidation, "address too long")
	}
	return Address(s), nil
}

func (a Address) String() string {
	return string(a)
}

// IsNil returns true if the address is empty.
func (a Address) IsNil() bool {
	return a == ""
}

// VaultID identifies a vault. It is derived, not random: one authority
// maps to exactly one vault.
type VaultID uuid.UUID

// vaultNamespace seeds vault ID derivation. Changing it would orphan
// every existing vault record.
var vaultNamespace = uuid.MustParse("b6ad6e60-9a20-4a6e-8f10-5a5b4f2c7d91")

// DeriveVaultID maps an authority address to its vault ID. The mapping is
// stable across processes so a second initialize attempt by the same
// authority collides with the first instead of creating a sibling vault.
func DeriveVaultID(authority Address) VaultID {
	return VaultID(uuid.NewSHA1(vaultNamespace, []byte(authority)))
}

// ParseVaultID validates an external vault ID string.
func ParseVaultID(s string) (VaultID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return VaultID{}, dErrors.New(dErrors.CodeValidation, "invalid vault id")
	}
	return VaultID(u), nil
}

func (v VaultID) String() string {
	return uuid.UUID(v).String()
}

// MarshalText renders the canonical UUID form so vault IDs serialize as
// strings in JSON bodies and audit records.
func (v VaultID) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *VaultID) UnmarshalText(text []byte) error {
	parsed, err := ParseVaultID(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// IsNil returns true if the vault ID is the zero UUID.
func (v VaultID) IsNil() bool {
	return uuid.UUID(v) == uuid.Nil
}

// AssetID identifies a fungible asset class on the substrate.
type AssetID string

func (a AssetID) String() string {
	return string(a)
}

// ReserveAssetID is the backing asset a vault holds in custody. Single
// fixed reserve asset, mirroring the substrate's stable token.
const ReserveAssetID AssetID = "reserve.usd"

// DeriveVoucherAssetID names the voucher asset class minted by a vault.
// Each vault issues its own voucher class so supplies never mix.
func DeriveVoucherAssetID(vaultID VaultID) AssetID {
	return AssetID("voucher." + vaultID.String())
}
