// AngelaMos | 2026
// signature.go

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	SignatureHeader = "X-Hub-Signature-256"
	signaturePrefix = "sha256="
)

// VerifySignature reports whether header carries the HMAC-SHA256 of body
// under secret. It fails closed on an empty secret, a missing or malformed
// header, or any mismatch.
func VerifySignature(body []byte, header string, secret []byte) bool {
	if len(secret) == 0 || header == "" {
		return false
	}

	hexSig, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok || hexSig == "" {
		return false
	}

	received, err := hex.DecodeString(hexSig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)

	return hmac.Equal(received, mac.Sum(nil))
}

// Sign returns the header value a sender would attach to body.
func Sign(body, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
