package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// Clients never send a raw password over the wire: they send its SHA-256 hex
// digest, and the server stores a bcrypt hash of that digest.

func HashPassword(passwordHash string) (string, error) {
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(passwordHash), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hashbytes), nil
}

func CheckPassword(stored, passwordHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(passwordHash)) == nil
}

// SHA256Hex mirrors what clients compute before sending a password.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
