// AngelaMos | 2026
// verifier_test.go

package auth_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/socialsync/internal/auth"
	"github.com/carterperez-dev/socialsync/internal/config"
	"github.com/carterperez-dev/socialsync/internal/core"
)

const (
	testIssuer   = "https://id.example.com"
	testAudience = "authenticated"
)

type keyPair struct {
	private jwk.Key
	pemPath string
}

func newKeyPair(t *testing.T) keyPair {
	t.Helper()

	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	private, err := jwk.Import(raw)
	require.NoError(t, err)

	public, err := private.PublicKey()
	require.NoError(t, err)

	publicPEM, err := jwk.Pem(public)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "public.pem")
	require.NoError(t, os.WriteFile(path, publicPEM, 0o600))

	return keyPair{private: private, pemPath: path}
}

func sign(t *testing.T, key jwk.Key, subject string, exp time.Time) string {
	t.Helper()

	token, err := jwt.NewBuilder().
		Issuer(testIssuer).
		Audience([]string{testAudience}).
		Subject(subject).
		IssuedAt(time.Now().Add(-2*time.Hour)).
		Expiration(exp).
		Claim("email", "u@example.com").
		Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), key))
	require.NoError(t, err)

	return string(signed)
}

func newVerifier(t *testing.T, kp keyPair) *auth.Verifier {
	t.Helper()

	v, err := auth.NewVerifier(t.Context(), config.AuthConfig{
		PublicKeyPath: kp.pemPath,
		Issuer:        testIssuer,
		Audience:      testAudience,
	})
	require.NoError(t, err)
	return v
}

func TestVerifyAccessToken(t *testing.T) {
	kp := newKeyPair(t)
	v := newVerifier(t, kp)

	claims, err := v.VerifyAccessToken(
		t.Context(),
		sign(t, kp.private, "user-1", time.Now().Add(time.Hour)),
	)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "u@example.com", claims.Email)
}

func TestVerifyAccessTokenExpired(t *testing.T) {
	kp := newKeyPair(t)
	v := newVerifier(t, kp)

	_, err := v.VerifyAccessToken(
		t.Context(),
		sign(t, kp.private, "user-1", time.Now().Add(-time.Hour)),
	)
	require.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestVerifyAccessTokenWrongKey(t *testing.T) {
	kp := newKeyPair(t)
	other := newKeyPair(t)
	v := newVerifier(t, kp)

	_, err := v.VerifyAccessToken(
		t.Context(),
		sign(t, other.private, "user-1", time.Now().Add(time.Hour)),
	)
	require.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestVerifyAccessTokenGarbage(t *testing.T) {
	kp := newKeyPair(t)
	v := newVerifier(t, kp)

	_, err := v.VerifyAccessToken(t.Context(), "not-a-token")
	require.ErrorIs(t, err, core.ErrTokenInvalid)
}
