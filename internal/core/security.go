// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// CodeAlphabet omits characters that are easy to confuse when typed from a
// phone screen (0/O, 1/I/L).
const CodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func GenerateCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("generate code: %w", ErrInvalidInput)
	}

	max := big.NewInt(int64(len(CodeAlphabet)))
	var b strings.Builder
	b.Grow(length)

	for range length {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate random index: %w", err)
		}
		b.WriteByte(CodeAlphabet[n.Int64()])
	}

	return b.String(), nil
}

// NormalizeCode uppercases and trims a user-typed code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func CompareTokenHash(token, hash string) bool {
	tokenHash := HashToken(token)
	return subtle.ConstantTimeCompare([]byte(tokenHash), []byte(hash)) == 1
}
