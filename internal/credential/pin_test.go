package credential

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPin_VerifyRoundTrip(t *testing.T) {
	digest, salt, err := HashPin("2468")
	require.NoError(t, err)
	assert.Len(t, digest, KeySize)
	assert.Len(t, salt, SaltSize)

	assert.True(t, VerifyPin("2468", hex.EncodeToString(digest), hex.EncodeToString(salt)))
}

func TestHashPin_FreshSalt(t *testing.T) {
	d1, s1, err := HashPin("2468")
	require.NoError(t, err)
	d2, s2, err := HashPin("2468")
	require.NoError(t, err)

	assert.NotEqual(t, s1, s2)
	assert.NotEqual(t, d1, d2)
}

func TestVerifyPin_RejectsEverythingElse(t *testing.T) {
	digest, salt, err := HashPin("2468")
	require.NoError(t, err)
	dh, sh := hex.EncodeToString(digest), hex.EncodeToString(salt)

	tests := []struct {
		name              string
		pin, digest, salt string
	}{
		{"wrong pin", "2469", dh, sh},
		{"empty pin", "", dh, sh},
		{"prefix pin", "246", dh, sh},
		{"malformed digest", "2468", "zz", sh},
		{"malformed salt", "2468", dh, "not-hex"},
		{"empty digest", "2468", "", sh},
		{"empty salt", "2468", dh, ""},
		{"truncated digest", "2468", dh[:10], sh},
		{"other salt", "2468", dh, "00112233445566778899aabbccddeeff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, VerifyPin(tt.pin, tt.digest, tt.salt))
		})
	}
}

func TestValidPinFormat(t *testing.T) {
	for _, pin := range []string{"1234", "00000000", "13579"} {
		assert.True(t, ValidPinFormat(pin), pin)
	}
	for _, pin := range []string{"", "123", "123456789", "12 4", "abcd", "١٢٣٤"} {
		assert.False(t, ValidPinFormat(pin), pin)
	}
}
