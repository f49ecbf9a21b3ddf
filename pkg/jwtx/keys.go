package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// Keypair bundles the signer and verifier backed by one Ed25519 key.
type Keypair struct {
	Signer   Signer
	Verifier Verifier
	KID      string
}

// NewEphemeralKeypair generates a fresh Ed25519 keypair. All tokens signed
// with it become invalid when the process restarts.
func NewEphemeralKeypair(opts VerifyOptions) (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to generate ed25519 key: %w", err)
	}
	return newKeypair(pub, priv, opts)
}

// NewKeypairFromSeed derives a deterministic Ed25519 keypair from a 32-byte
// seed, so tokens survive restarts when the seed is persisted.
func NewKeypairFromSeed(seed []byte, opts VerifyOptions) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("jwtx: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return newKeypair(pub, priv, opts)
}

// NewKeypairFromSeedFile reads a base64url seed from path. When the file does
// not exist a new seed is generated and written there (0600), so the first
// boot of a fresh install creates its own signing key.
func NewKeypairFromSeedFile(path string, opts VerifyOptions) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		seed, derr := base64.RawURLEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if derr != nil {
			return nil, fmt.Errorf("jwtx: invalid seed file %s: %w", path, derr)
		}
		return NewKeypairFromSeed(seed, opts)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("jwtx: failed to read seed file %s: %w", path, err)
	}

	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("jwtx: failed to generate seed: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(seed)
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("jwtx: failed to write seed file %s: %w", path, err)
	}
	return NewKeypairFromSeed(seed, opts)
}

func newKeypair(pub ed25519.PublicKey, priv ed25519.PrivateKey, opts VerifyOptions) (*Keypair, error) {
	kid := keyID(pub)
	return &Keypair{
		Signer:   &edDSASigner{kid: kid, priv: priv},
		Verifier: &edDSAVerifier{pub: pub, opts: opts},
		KID:      kid,
	}, nil
}

// keyID derives a short stable identifier from the public key bytes.
func keyID(pub ed25519.PublicKey) string {
	return base64.RawURLEncoding.EncodeToString(pub[:8])
}
