package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	// Short-lived for security.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Token type tags embedded in the "typ" claim. Validation checks this tag so
// a refresh token can never be presented where an access token is expected,
// and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims are the signed token claims used across the fleet server.
type Claims struct {
	jwt.RegisteredClaims

	// TokenType distinguishes access from refresh tokens.
	TokenType string `json:"typ"`

	// Role is the subject's role at issuance time ("admin", "agent", ...).
	Role string `json:"role,omitempty"`

	// Scopes are the permission scopes granted to this token.
	Scopes []string `json:"scopes,omitempty"`

	// Device is an optional label for the device/session the token belongs to.
	Device string `json:"device,omitempty"`
}

// NewClaims builds minimally-correct claims for the given token type. The
// jti is minted here so every token carries a unique identifier that the
// blacklist and refresh-token store can key on.
func NewClaims(
	tokenType, subject, role string,
	scopes []string,
	ttl time.Duration,
	issuer string,
	audience []string,
	device string,
	jti string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
		TokenType: tokenType,
		Role:      role,
		Scopes:    scopes,
		Device:    device,
	}
}

// ValidateType checks the token-type tag to prevent cross-use of access and
// refresh tokens.
func (c *Claims) ValidateType(expected string) error {
	if c.TokenType != expected {
		return ErrWrongType
	}
	return nil
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before it is valid (nbf).
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}
