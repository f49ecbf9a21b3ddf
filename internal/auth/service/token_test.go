package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/scopes"
	"github.com/tabwatch/fleetwatch/internal/auth/store"
	"github.com/tabwatch/fleetwatch/internal/auth/store/drivers/sqlite"
	"github.com/tabwatch/fleetwatch/pkg/cryptox"
	"github.com/tabwatch/fleetwatch/pkg/idx"
	"github.com/tabwatch/fleetwatch/pkg/jwtx"
)

type testEnv struct {
	store  store.Store
	audit  *AuditService
	tokens *TokenService
	keys   *APIKeyService
	oauth  *OAuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	keypair, err := jwtx.NewEphemeralKeypair(jwtx.VerifyOptions{})
	require.NoError(t, err)

	audit := &AuditService{Store: s}
	tokens := &TokenService{
		Keys:       keypair,
		Store:      s,
		Audit:      audit,
		Issuer:     "fleetwatch-test",
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}

	return &testEnv{
		store:  s,
		audit:  audit,
		tokens: tokens,
		keys:   &APIKeyService{Store: s, Audit: audit},
		oauth:  &OAuthService{Store: s, Tokens: tokens, Audit: audit},
	}
}

func (e *testEnv) createOperator(t *testing.T, username, password, role string) domain.Operator {
	t.Helper()

	hash, err := cryptox.HashSecret(password)
	require.NoError(t, err)

	now := time.Now()
	op := domain.Operator{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.store.Operators().CreateOperator(context.Background(), op))
	return op
}

func TestLoginIssuesValidPair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	op := env.createOperator(t, "alice", "hunter2-but-long", scopes.RoleOperator)

	pair, err := env.tokens.Login(ctx, "alice", "hunter2-but-long", domain.DeviceInfo{Label: "laptop"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)

	claims, err := env.tokens.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, op.ID, claims.Subject)
	require.Equal(t, scopes.RoleOperator, claims.Role)
	require.Contains(t, claims.Scopes, scopes.MachinesWrite)

	// The refresh token is persisted as an active session.
	sessions, err := env.tokens.ListActiveSessions(ctx, op.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "laptop", sessions[0].DeviceLabel)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createOperator(t, "alice", "correct-password", scopes.RoleViewer)

	_, err := env.tokens.Login(ctx, "alice", "wrong-password", domain.DeviceInfo{})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown usernames fail identically.
	_, err = env.tokens.Login(ctx, "mallory", "whatever", domain.DeviceInfo{})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	events, err := env.audit.Query(ctx, domain.AuditFilter{Type: domain.AuditLoginFailure})
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestValidateAccessRejectsRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createOperator(t, "alice", "correct-password", scopes.RoleViewer)

	pair, err := env.tokens.Login(ctx, "alice", "correct-password", domain.DeviceInfo{})
	require.NoError(t, err)

	_, err = env.tokens.ValidateAccess(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccessRejectsExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	op := env.createOperator(t, "alice", "correct-password", scopes.RoleViewer)

	raw, err := env.tokens.sign(jwtx.TokenTypeAccess, op.ID, op.Role, scopes.ForRole(op.Role),
		-time.Minute, "", idx.New().String(), time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = env.tokens.ValidateAccess(ctx, raw)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateAccessRejectsForeignSignature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	foreign, err := jwtx.NewEphemeralKeypair(jwtx.VerifyOptions{})
	require.NoError(t, err)
	claims := jwtx.NewClaims(jwtx.TokenTypeAccess, "someone", scopes.RoleAdmin, []string{scopes.Wildcard},
		time.Hour, "fleetwatch-test", nil, "", idx.New().String(), time.Now())
	raw, err := foreign.Signer.Sign(claims)
	require.NoError(t, err)

	_, err = env.tokens.ValidateAccess(ctx, raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeBlacklistsAccessToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createOperator(t, "alice", "correct-password", scopes.RoleOperator)

	pair, err := env.tokens.Login(ctx, "alice", "correct-password", domain.DeviceInfo{})
	require.NoError(t, err)

	_, err = env.tokens.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, env.tokens.Revoke(ctx, pair.AccessToken, pair.RefreshToken, "logout"))

	_, err = env.tokens.ValidateAccess(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenRevoked)

	_, err = env.tokens.Refresh(ctx, pair.RefreshToken, domain.DeviceInfo{})
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestRefreshRotatesSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	op := env.createOperator(t, "alice", "correct-password", scopes.RoleOperator)

	pair, err := env.tokens.Login(ctx, "alice", "correct-password", domain.DeviceInfo{Label: "laptop"})
	require.NoError(t, err)

	next, err := env.tokens.Refresh(ctx, pair.RefreshToken, domain.DeviceInfo{IP: "10.0.0.5"})
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	claims, err := env.tokens.ValidateAccess(ctx, next.AccessToken)
	require.NoError(t, err)
	require.Equal(t, op.ID, claims.Subject)

	// Only the replacement is live.
	sessions, err := env.tokens.ListActiveSessions(ctx, op.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	// Replaying the rotated token kills the whole chain.
	_, err = env.tokens.Refresh(ctx, pair.RefreshToken, domain.DeviceInfo{})
	require.ErrorIs(t, err, ErrInvalidRefresh)

	sessions, err = env.tokens.ListActiveSessions(ctx, op.ID)
	require.NoError(t, err)
	require.Empty(t, sessions)

	events, err := env.audit.Query(ctx, domain.AuditFilter{Type: domain.AuditRefreshReplay})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, op.ID, events[0].SubjectID)
}

func TestRefreshPicksUpRoleChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	op := env.createOperator(t, "alice", "correct-password", scopes.RoleOperator)

	pair, err := env.tokens.Login(ctx, "alice", "correct-password", domain.DeviceInfo{})
	require.NoError(t, err)

	// Demote the operator while the refresh token is outstanding.
	require.NoError(t, env.store.Operators().UpdateOperatorRole(ctx, op.ID, scopes.RoleViewer))

	next, err := env.tokens.Refresh(ctx, pair.RefreshToken, domain.DeviceInfo{})
	require.NoError(t, err)

	claims, err := env.tokens.ValidateAccess(ctx, next.AccessToken)
	require.NoError(t, err)
	require.Equal(t, scopes.RoleViewer, claims.Role)
	require.NotContains(t, claims.Scopes, scopes.MachinesWrite)
}

func TestRevokeAllForSubject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	op := env.createOperator(t, "alice", "correct-password", scopes.RoleOperator)

	for range 3 {
		_, err := env.tokens.Login(ctx, "alice", "correct-password", domain.DeviceInfo{})
		require.NoError(t, err)
	}

	sessions, err := env.tokens.ListActiveSessions(ctx, op.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	require.NoError(t, env.tokens.RevokeAllForSubject(ctx, op.ID, "compromised"))

	sessions, err = env.tokens.ListActiveSessions(ctx, op.ID)
	require.NoError(t, err)
	require.Empty(t, sessions)
}
