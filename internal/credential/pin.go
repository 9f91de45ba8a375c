package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. Changing them invalidates every stored PIN.
const (
	Iterations = 200_000
	SaltSize   = 16
	KeySize    = 32
)

// HashPin derives a digest for pin under a fresh random salt.
func HashPin(pin string) (digest, salt []byte, err error) {
	salt = make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("generate salt: %w", err)
	}
	return derive(pin, salt), salt, nil
}

func derive(pin string, salt []byte) []byte {
	return pbkdf2.Key([]byte(pin), salt, Iterations, KeySize, sha256.New)
}

// VerifyPin reports whether pin re-hashes under the stored salt to the stored
// digest. Malformed hex, empty material or an empty pin yield false.
func VerifyPin(pin, digestHex, saltHex string) bool {
	if pin == "" || digestHex == "" || saltHex == "" {
		return false
	}
	want, err := hex.DecodeString(digestHex)
	if err != nil || len(want) == 0 {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return false
	}
	got := derive(pin, salt)
	// ConstantTimeCompare returns 0 on length mismatch.
	return subtle.ConstantTimeCompare(got, want) == 1
}

// ValidPinFormat reports whether pin is 4 to 8 ASCII digits.
func ValidPinFormat(pin string) bool {
	if len(pin) < 4 || len(pin) > 8 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
