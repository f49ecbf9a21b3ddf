package jwtx

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testKeypair(t *testing.T, opts VerifyOptions) *Keypair {
	t.Helper()
	kp, err := NewEphemeralKeypair(opts)
	require.NoError(t, err)
	return kp
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	kp := testKeypair(t, VerifyOptions{Issuer: "fleetwatch-auth"})
	now := time.Now()

	claims := NewClaims(
		TokenTypeAccess,
		"operator-1",
		"admin",
		[]string{"machines:read", "metrics:read"},
		DefaultAccessTokenTTL,
		"fleetwatch-auth",
		[]string{"fleetwatch"},
		"laptop",
		"jti-123",
		now,
	)

	raw, err := kp.Signer.Sign(claims)
	require.NoError(t, err)

	got, err := kp.Verifier.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "operator-1", got.Subject)
	require.Equal(t, "admin", got.Role)
	require.Equal(t, []string{"machines:read", "metrics:read"}, got.Scopes)
	require.Equal(t, "jti-123", got.ID)
	require.NoError(t, got.ValidateType(TokenTypeAccess))
	require.NoError(t, got.ValidateExpiry())
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	t.Parallel()

	kpA := testKeypair(t, VerifyOptions{})
	kpB := testKeypair(t, VerifyOptions{})

	claims := NewClaims(TokenTypeAccess, "sub", "viewer", nil,
		time.Minute, "iss", nil, "", "jti", time.Now())
	raw, err := kpA.Signer.Sign(claims)
	require.NoError(t, err)

	_, err = kpB.Verifier.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidSig)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	t.Parallel()

	kp := testKeypair(t, VerifyOptions{})
	_, err := kp.Verifier.Verify("not.a.jwt")
	require.ErrorIs(t, err, ErrMalformed)

	_, err = kp.Verifier.Verify("")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestVerifyEnforcesIssuer(t *testing.T) {
	t.Parallel()

	kp := testKeypair(t, VerifyOptions{Issuer: "expected-issuer"})

	claims := NewClaims(TokenTypeAccess, "sub", "viewer", nil,
		time.Minute, "someone-else", nil, "", "jti", time.Now())
	raw, err := kp.Signer.Sign(claims)
	require.NoError(t, err)

	_, err = kp.Verifier.Verify(raw)
	require.ErrorIs(t, err, ErrIssuer)
}

func TestExpiredTokenStillVerifiesButFailsExpiryCheck(t *testing.T) {
	t.Parallel()

	kp := testKeypair(t, VerifyOptions{})

	claims := NewClaims(TokenTypeAccess, "sub", "viewer", nil,
		-time.Minute, "iss", nil, "", "jti", time.Now().Add(-time.Hour))
	raw, err := kp.Signer.Sign(claims)
	require.NoError(t, err)

	got, err := kp.Verifier.Verify(raw)
	require.NoError(t, err, "signature check must not conflate forged with expired")
	require.ErrorIs(t, got.ValidateExpiry(), ErrExpired)
}

func TestValidateTypePreventsCrossUse(t *testing.T) {
	t.Parallel()

	refresh := NewClaims(TokenTypeRefresh, "sub", "viewer", nil,
		time.Hour, "iss", nil, "", "jti", time.Now())
	require.ErrorIs(t, refresh.ValidateType(TokenTypeAccess), ErrWrongType)
	require.NoError(t, refresh.ValidateType(TokenTypeRefresh))
}

func TestKeypairFromSeedFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "signing.seed")

	kp1, err := NewKeypairFromSeedFile(path, VerifyOptions{})
	require.NoError(t, err)

	claims := NewClaims(TokenTypeAccess, "sub", "viewer", nil,
		time.Minute, "iss", nil, "", "jti", time.Now())
	raw, err := kp1.Signer.Sign(claims)
	require.NoError(t, err)

	// Reloading the same seed file must yield a keypair that can verify
	// tokens signed before the "restart".
	kp2, err := NewKeypairFromSeedFile(path, VerifyOptions{})
	require.NoError(t, err)
	require.Equal(t, kp1.KID, kp2.KID)

	_, err = kp2.Verifier.Verify(raw)
	require.NoError(t, err)
}
