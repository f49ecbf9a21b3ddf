package jwtx

import (
	"crypto/ed25519"

	"github.com/golang-jwt/jwt/v5"
)

// Signer is our interface for anything that can sign token claims.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
}

type edDSASigner struct {
	kid  string
	priv ed25519.PrivateKey
}

func (s *edDSASigner) Alg() string { return "EdDSA" }
func (s *edDSASigner) KID() string { return s.kid }

func (s *edDSASigner) Sign(c Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, c)
	token.Header["kid"] = s.kid
	return token.SignedString(s.priv)
}
