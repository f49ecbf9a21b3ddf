package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/store"
	"github.com/tabwatch/fleetwatch/pkg/idx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestOperatorsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Operators().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	now := time.Now().UTC()
	op := domain.Operator{
		ID:           idx.New().String(),
		Username:     "alice",
		PasswordHash: "$argon2id$...",
		Role:         "admin",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.Operators().CreateOperator(ctx, op))

	got, err := s.Operators().GetOperatorByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, op.ID, got.ID)
	require.Equal(t, "admin", got.Role)

	empty, err = s.Operators().IsEmpty(ctx)
	require.NoError(t, err)
	require.False(t, empty)

	// Duplicate usernames are rejected.
	dup := op
	dup.ID = idx.New().String()
	err = s.Operators().CreateOperator(ctx, dup)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	_, err = s.Operators().GetOperatorByUsername(ctx, "nobody")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefreshTokenLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tok := domain.RefreshToken{
		ID:          idx.New().String(),
		SubjectID:   "op-1",
		TokenHash:   "hash-1",
		DeviceLabel: "laptop",
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Hour),
		CreatedAt:   now,
	}
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, tok))

	active, err := s.RefreshTokens().ListActiveRefreshTokens(ctx, "op-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "laptop", active[0].DeviceLabel)

	require.NoError(t, s.RefreshTokens().RevokeRefreshToken(ctx, tok.ID, "rotated"))

	got, err := s.RefreshTokens().GetRefreshTokenByID(ctx, tok.ID)
	require.NoError(t, err)
	require.True(t, got.Revoked)
	require.Equal(t, "rotated", got.RevokedReason)
	require.NotNil(t, got.RevokedAt)

	// Revoking an already revoked token reports not found.
	err = s.RefreshTokens().RevokeRefreshToken(ctx, tok.ID, "again")
	require.ErrorIs(t, err, store.ErrNotFound)

	active, err = s.RefreshTokens().ListActiveRefreshTokens(ctx, "op-1")
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestBlacklistInsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	entry := domain.BlacklistEntry{
		JTI:       "jti-1",
		SubjectID: "op-1",
		ExpiresAt: now.Add(15 * time.Minute),
		Reason:    "logout",
		CreatedAt: now,
	}
	require.NoError(t, s.Blacklist().InsertBlacklistEntry(ctx, entry))
	require.NoError(t, s.Blacklist().InsertBlacklistEntry(ctx, entry))

	listed, err := s.Blacklist().IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, listed)

	listed, err = s.Blacklist().IsBlacklisted(ctx, "jti-other")
	require.NoError(t, err)
	require.False(t, listed)
}

func TestConsumeAuthorizationCodeOnlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	client := domain.Client{
		ID:           idx.New().String(),
		Name:         "dashboard",
		Type:         domain.ClientTypePublic,
		RedirectURIs: []string{"https://dash.example/cb"},
		Scopes:       []string{"machines:read"},
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.Clients().CreateClient(ctx, client))

	code := domain.AuthorizationCode{
		ID:          idx.New().String(),
		ClientID:    client.ID,
		SubjectID:   "op-1",
		CodeHash:    "code-hash",
		RedirectURI: "https://dash.example/cb",
		Scopes:      []string{"machines:read"},
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Minute),
	}
	require.NoError(t, s.AuthorizationCodes().CreateAuthorizationCode(ctx, code))

	require.NoError(t, s.AuthorizationCodes().ConsumeAuthorizationCode(ctx, code.ID, now))

	// The second consume of the same code must fail.
	err := s.AuthorizationCodes().ConsumeAuthorizationCode(ctx, code.ID, now)
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.AuthorizationCodes().GetAuthorizationCodeByHash(ctx, "code-hash")
	require.NoError(t, err)
	require.NotNil(t, got.UsedAt)
}

func TestRecordAPIKeyUsageEnforcesQuota(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	key := domain.APIKey{
		ID:                idx.New().String(),
		AgentName:         "host-01",
		Prefix:            "fwk_abc",
		SecretHash:        "secret-hash",
		Scopes:            []string{"metrics:write"},
		CreatedBy:         "op-1",
		CreatedAt:         now,
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	}
	require.NoError(t, s.APIKeys().CreateAPIKey(ctx, key))

	use := func(at time.Time) error {
		return s.APIKeys().RecordAPIKeyUsage(ctx, domain.APIKeyUsage{
			ID:       idx.New().String(),
			KeyID:    key.ID,
			IP:       "10.0.0.1",
			Endpoint: "/v1/metrics",
			Method:   "POST",
			UsedAt:   at,
		}, key.RateLimitRequests, key.RateLimitWindow)
	}

	require.NoError(t, use(now))
	require.NoError(t, use(now.Add(time.Second)))
	require.ErrorIs(t, use(now.Add(2*time.Second)), store.ErrQuotaExceeded)

	// The rejected request leaves no usage row and no counter bump.
	got, err := s.APIKeys().GetAPIKeyByID(ctx, key.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, got.UseCount)

	usage, err := s.APIKeys().ListAPIKeyUsage(ctx, key.ID, 10)
	require.NoError(t, err)
	require.Len(t, usage, 2)

	// Once the window slides past the old requests, usage is allowed again.
	require.NoError(t, use(now.Add(2*time.Minute)))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		op := domain.Operator{
			ID:           idx.New().String(),
			Username:     "ghost",
			PasswordHash: "x",
			Role:         "viewer",
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Operators().CreateOperator(ctx, op); err != nil {
			return err
		}
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)

	_, err = s.Operators().GetOperatorByUsername(ctx, "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAuditQueryFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	events := []domain.AuditEvent{
		{ID: idx.New().String(), Type: domain.AuditLoginSuccess, Severity: domain.SeverityInfo, Timestamp: base, SubjectID: "op-1", Outcome: domain.OutcomeSuccess},
		{ID: idx.New().String(), Type: domain.AuditLoginFailure, Severity: domain.SeverityWarning, Timestamp: base.Add(time.Minute), SubjectID: "op-2", Outcome: domain.OutcomeFailure},
		{ID: idx.New().String(), Type: domain.AuditKeyUsed, Severity: domain.SeverityInfo, Timestamp: base.Add(2 * time.Minute), SubjectID: "op-1", Outcome: domain.OutcomeSuccess, Detail: map[string]any{"endpoint": "/v1/metrics"}},
	}
	for _, e := range events {
		require.NoError(t, s.AuditEvents().AppendAuditEvent(ctx, e))
	}

	all, err := s.AuditEvents().QueryAuditEvents(ctx, domain.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	require.Equal(t, domain.AuditKeyUsed, all[0].Type)
	require.Equal(t, "/v1/metrics", all[0].Detail["endpoint"])

	bySubject, err := s.AuditEvents().QueryAuditEvents(ctx, domain.AuditFilter{SubjectID: "op-1"})
	require.NoError(t, err)
	require.Len(t, bySubject, 2)

	since := base.Add(90 * time.Second)
	recent, err := s.AuditEvents().QueryAuditEvents(ctx, domain.AuditFilter{Since: &since})
	require.NoError(t, err)
	require.Len(t, recent, 1)
}
