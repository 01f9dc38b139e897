// AngelaMos | 2026
// verifier.go

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/socialsync/internal/config"
	"github.com/carterperez-dev/socialsync/internal/core"
	"github.com/carterperez-dev/socialsync/internal/middleware"
)

// Verifier checks bearer tokens minted by the external identity provider.
// It holds either a single ES256 public key or a remote JWKS that is
// refreshed in the background.
type Verifier struct {
	publicKey jwk.Key
	jwksURL   string

	mu     sync.RWMutex
	keySet jwk.Set

	config config.AuthConfig
}

func NewVerifier(ctx context.Context, cfg config.AuthConfig) (*Verifier, error) {
	v := &Verifier{config: cfg}

	if cfg.PublicKeyPath != "" {
		publicKeyPEM, err := os.ReadFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}

		key, err := ParsePublicKey(publicKeyPEM)
		if err != nil {
			return nil, err
		}
		v.publicKey = key
		return v, nil
	}

	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("no public key or jwks url configured")
	}

	v.jwksURL = cfg.JWKSURL
	if err := v.refresh(ctx); err != nil {
		return nil, err
	}

	return v, nil
}

// NewVerifierWithKey builds a Verifier around an already parsed key.
func NewVerifierWithKey(key jwk.Key, cfg config.AuthConfig) *Verifier {
	return &Verifier{publicKey: key, config: cfg}
}

func ParsePublicKey(pemBytes []byte) (jwk.Key, error) {
	key, err := jwk.ParseKey(pemBytes, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	if setErr := key.Set(jwk.AlgorithmKey, jwa.ES256()); setErr != nil {
		return nil, fmt.Errorf("set algorithm: %w", setErr)
	}

	return key, nil
}

func (v *Verifier) refresh(ctx context.Context) error {
	set, err := jwk.Fetch(ctx, v.jwksURL)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}

	v.mu.Lock()
	v.keySet = set
	v.mu.Unlock()

	return nil
}

// Run refreshes the remote key set until ctx is cancelled. It returns
// immediately for verifiers backed by a static key.
func (v *Verifier) Run(ctx context.Context) {
	if v.jwksURL == "" || v.config.JWKSRefresh <= 0 {
		return
	}

	ticker := time.NewTicker(v.config.JWKSRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := v.refresh(ctx); err != nil {
				slog.Warn("jwks refresh failed, keeping previous key set",
					"error", err,
				)
			}
		}
	}
}

func (v *Verifier) keyOption() jwt.ParseOption {
	if v.publicKey != nil {
		return jwt.WithKey(jwa.ES256(), v.publicKey)
	}

	v.mu.RLock()
	set := v.keySet
	v.mu.RUnlock()

	return jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true))
}

func (v *Verifier) VerifyAccessToken(
	ctx context.Context,
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	opts := []jwt.ParseOption{
		v.keyOption(),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(30 * time.Second),
	}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}
	if v.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.config.Audience))
	}

	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	claims := &middleware.AccessTokenClaims{UserID: subject}

	var email string
	if err := token.Get("email", &email); err == nil {
		claims.Email = email
	}

	return claims, nil
}

func isTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "exp") &&
		strings.Contains(errStr, "not satisfied")
}
