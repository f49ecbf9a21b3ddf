package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/scopes"
)

func TestCreateAndValidateAPIKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	op := env.createOperator(t, "admin", "admin-password-1", scopes.RoleAdmin)

	key, raw, err := env.keys.Create(ctx, CreateKeyParams{
		AgentName: "host-01",
		Scopes:    []string{scopes.MetricsWrite, scopes.CommandsRead},
		CreatedBy: op.ID,
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(raw, APIKeyPrefix))
	require.Equal(t, raw[:len(APIKeyPrefix)+8], key.Prefix)
	require.NotContains(t, key.SecretHash, raw)

	got, err := env.keys.Validate(ctx, raw, "10.0.0.1", "/v1/metrics", "POST")
	require.NoError(t, err)
	require.Equal(t, key.ID, got.ID)
	require.ElementsMatch(t, []string{scopes.MetricsWrite, scopes.CommandsRead}, got.Scopes)

	// The use was recorded, in the quota window and in the audit trail.
	usage, err := env.keys.Usage(ctx, key.ID, 10)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	require.Equal(t, "/v1/metrics", usage[0].Endpoint)

	events, err := env.audit.Query(ctx, domain.AuditFilter{Type: domain.AuditKeyUsed})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, key.ID, events[0].Resource)
	require.Equal(t, "host-01", events[0].SubjectID)

	_, err = env.keys.Validate(ctx, APIKeyPrefix+"definitely-not-a-key", "10.0.0.1", "/", "GET")
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = env.keys.Validate(ctx, "no-prefix-at-all", "10.0.0.1", "/", "GET")
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestCreateAPIKeyRejectsBadScopes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.keys.Create(ctx, CreateKeyParams{
		AgentName: "host-01",
		Scopes:    []string{"metrics:destroy"},
		CreatedBy: "op-1",
	})
	require.ErrorIs(t, err, ErrInvalidScope)

	// The wildcard is reserved for admin operators.
	_, _, err = env.keys.Create(ctx, CreateKeyParams{
		AgentName: "host-01",
		Scopes:    []string{scopes.Wildcard},
		CreatedBy: "op-1",
	})
	require.ErrorIs(t, err, ErrInvalidScope)

	_, _, err = env.keys.Create(ctx, CreateKeyParams{
		AgentName: "host-01",
		CreatedBy: "op-1",
	})
	require.ErrorIs(t, err, ErrInvalidScope)
}

func TestRevokedAndExpiredKeysRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	key, raw, err := env.keys.Create(ctx, CreateKeyParams{
		AgentName: "host-01",
		Scopes:    []string{scopes.MetricsWrite},
		CreatedBy: "op-1",
	})
	require.NoError(t, err)

	require.NoError(t, env.keys.Revoke(ctx, key.ID, "op-1", "decommissioned"))

	_, err = env.keys.Validate(ctx, raw, "10.0.0.1", "/", "POST")
	require.ErrorIs(t, err, ErrKeyRevoked)

	past := time.Now().Add(-time.Hour)
	_, rawExpired, err := env.keys.Create(ctx, CreateKeyParams{
		AgentName: "host-02",
		Scopes:    []string{scopes.MetricsWrite},
		CreatedBy: "op-1",
		ExpiresAt: &past,
	})
	require.NoError(t, err)

	_, err = env.keys.Validate(ctx, rawExpired, "10.0.0.1", "/", "POST")
	require.ErrorIs(t, err, ErrKeyExpired)
}

func TestAPIKeyRateLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	key, raw, err := env.keys.Create(ctx, CreateKeyParams{
		AgentName:         "chatty-host",
		Scopes:            []string{scopes.MetricsWrite},
		CreatedBy:         "op-1",
		RateLimitRequests: 3,
		RateLimitWindow:   time.Minute,
	})
	require.NoError(t, err)

	for range 3 {
		_, err := env.keys.Validate(ctx, raw, "10.0.0.1", "/v1/metrics", "POST")
		require.NoError(t, err)
	}

	_, err = env.keys.Validate(ctx, raw, "10.0.0.1", "/v1/metrics", "POST")
	require.ErrorIs(t, err, ErrRateLimited)

	events, err := env.audit.Query(ctx, domain.AuditFilter{Type: domain.AuditKeyRateLimited})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, key.ID, events[0].Resource)
}

func TestRotateAPIKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	expiry := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	old, oldRaw, err := env.keys.Create(ctx, CreateKeyParams{
		AgentName:         "host-01",
		Scopes:            []string{scopes.MetricsWrite, scopes.CommandsRead},
		CreatedBy:         "op-1",
		ExpiresAt:         &expiry,
		RateLimitRequests: 42,
		RateLimitWindow:   2 * time.Minute,
	})
	require.NoError(t, err)

	replacement, newRaw, err := env.keys.Rotate(ctx, old.ID, "op-2")
	require.NoError(t, err)
	require.NotEqual(t, old.ID, replacement.ID)
	require.NotEqual(t, oldRaw, newRaw)

	// The replacement inherits everything but the secret.
	require.Equal(t, old.AgentName, replacement.AgentName)
	require.ElementsMatch(t, old.Scopes, replacement.Scopes)
	require.Equal(t, 42, replacement.RateLimitRequests)
	require.Equal(t, 2*time.Minute, replacement.RateLimitWindow)
	require.NotNil(t, replacement.ExpiresAt)
	require.True(t, replacement.ExpiresAt.Equal(expiry))

	// Old secret dead, new secret live.
	_, err = env.keys.Validate(ctx, oldRaw, "10.0.0.1", "/", "POST")
	require.ErrorIs(t, err, ErrKeyRevoked)

	got, err := env.keys.Validate(ctx, newRaw, "10.0.0.1", "/", "POST")
	require.NoError(t, err)
	require.Equal(t, replacement.ID, got.ID)

	// Rotating a revoked key fails.
	_, _, err = env.keys.Rotate(ctx, old.ID, "op-2")
	require.ErrorIs(t, err, ErrKeyRevoked)
}

func TestListAPIKeysFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, _, err := env.keys.Create(ctx, CreateKeyParams{
		AgentName: "host-a", Scopes: []string{scopes.MetricsWrite}, CreatedBy: "op-1",
	})
	require.NoError(t, err)
	_, _, err = env.keys.Create(ctx, CreateKeyParams{
		AgentName: "host-b", Scopes: []string{scopes.MetricsWrite}, CreatedBy: "op-1",
	})
	require.NoError(t, err)
	require.NoError(t, env.keys.Revoke(ctx, a.ID, "op-1", "test"))

	live, err := env.keys.List(ctx, domain.APIKeyFilter{})
	require.NoError(t, err)
	require.Len(t, live, 1)
	require.Equal(t, "host-b", live[0].AgentName)

	all, err := env.keys.List(ctx, domain.APIKeyFilter{IncludeRevoked: true})
	require.NoError(t, err)
	require.Len(t, all, 2)

	byAgent, err := env.keys.List(ctx, domain.APIKeyFilter{AgentName: "host-a", IncludeRevoked: true})
	require.NoError(t, err)
	require.Len(t, byAgent, 1)
}
