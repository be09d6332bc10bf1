package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "scrip/pkg/domain-errors"
)

func TestParseAddress(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseAddress("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects surrounding whitespace", func(t *testing.T) {
		_, err := ParseAddress(" alice ")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects overlong input", func(t *testing.T) {
		_, err := ParseAddress(strings.Repeat("a", maxAddressLen+1))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("accepts an opaque substrate address", func(t *testing.T) {
		addr, err := ParseAddress("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
		require.NoError(t, err)
		assert.Equal(t, "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin", addr.String())
	})
}

func TestDeriveVaultID(t *testing.T) {
	t.Run("is deterministic per authority", func(t *testing.T) {
		a := DeriveVaultID(Address("authority-1"))
		b := DeriveVaultID(Address("authority-1"))
		assert.Equal(t, a, b)
	})

	t.Run("distinct authorities get distinct vaults", func(t *testing.T) {
		a := DeriveVaultID(Address("authority-1"))
		b := DeriveVaultID(Address("authority-2"))
		assert.NotEqual(t, a, b)
	})

	t.Run("round-trips through its string form", func(t *testing.T) {
		id := DeriveVaultID(Address("authority-1"))
		parsed, err := ParseVaultID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})

	t.Run("serializes as a UUID string in JSON", func(t *testing.T) {
		id := DeriveVaultID(Address("authority-1"))
		raw, err := json.Marshal(id)
		require.NoError(t, err)
		assert.Equal(t, `"`+id.String()+`"`, string(raw))

		var back VaultID
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, id, back)
	})
}

func TestParseVaultID(t *testing.T) {
	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseVaultID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("zero vault ID is nil", func(t *testing.T) {
		id, err := ParseVaultID(uuid.Nil.String())
		require.NoError(t, err)
		assert.True(t, id.IsNil())
	})
}

func TestVoucherAssetDerivation(t *testing.T) {
	id := DeriveVaultID(Address("authority-1"))
	asset := DeriveVoucherAssetID(id)
	assert.Equal(t, AssetID("voucher."+id.String()), asset)
	assert.NotEqual(t, ReserveAssetID, asset)
}
