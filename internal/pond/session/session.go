// Package session verifies the signed identity tokens issued by the
// external auth collaborator. The core never issues sessions itself; it
// only checks the signature and extracts the stable (userID, username)
// pair every operation requires.
package session

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/lcroft/pond/internal/platform/errors"
)

// CookieName is the cookie carrying the session token.
const CookieName = "pond_session"

// Identity is the authenticated caller attached to request contexts.
type Identity struct {
	UserID   string
	Username string
}

// sessionEnv holds raw env values before post-parse validation.
type sessionEnv struct {
	Issuer    string `env:"POND_SESSION_ISSUER"`
	Audience  string `env:"POND_SESSION_AUDIENCE"`
	PublicKey string `env:"POND_SESSION_PUBLIC_KEY"`
}

// Config defines how session tokens are verified.
type Config struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// sessionClaims is the internal claims type used for JWT parsing.
type sessionClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// LoadConfigFromEnv reads session verification configuration.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw sessionEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse session env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return Config{}, fmt.Errorf("POND_SESSION_ISSUER is required")
	}
	if audience == "" {
		return Config{}, fmt.Errorf("POND_SESSION_AUDIENCE is required")
	}
	if publicKey == "" {
		return Config{}, fmt.Errorf("POND_SESSION_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return Config{}, fmt.Errorf("decode session public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return Config{}, fmt.Errorf("session public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return Config{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// Verify checks a session token and returns the caller's identity.
func Verify(token string, cfg Config) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, apperrors.New(apperrors.CodeSessionMissing, "session token is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return Identity{}, errors.New("session verifier is not configured")
	}

	var parsed sessionClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Identity{}, apperrors.Wrap(apperrors.CodeSessionInvalid, "session token is invalid", err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Identity{}, apperrors.New(apperrors.CodeSessionInvalid, "session issuer mismatch")
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Identity{}, apperrors.New(apperrors.CodeSessionInvalid, "session audience mismatch")
	}
	if parsed.ExpiresAt == nil {
		return Identity{}, apperrors.New(apperrors.CodeSessionInvalid, "session exp is required")
	}
	if !parsed.ExpiresAt.Time.UTC().After(cfg.Now().UTC()) {
		return Identity{}, apperrors.New(apperrors.CodeSessionInvalid, "session is expired")
	}

	userID := strings.TrimSpace(parsed.Subject)
	username := strings.TrimSpace(parsed.Username)
	if userID == "" || username == "" {
		return Identity{}, apperrors.New(apperrors.CodeSessionInvalid, "session identity is incomplete")
	}
	return Identity{UserID: userID, Username: username}, nil
}

// Issue signs a session token for an identity. The server never calls
// this; it exists for the auth collaborator boundary in tests and for
// the simulator, which plays the role of an already-authenticated client.
func Issue(key ed25519.PrivateKey, cfg Config, identity Identity, ttl time.Duration) (string, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", errors.New("signing key must be an ed25519 private key")
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	issuedAt := now().UTC()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		Username: identity.Username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

type identityContextKey struct{}

// WithIdentity attaches the caller's identity to a context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// FromContext extracts the caller's identity, if present.
func FromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok && identity.UserID != ""
}

func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
