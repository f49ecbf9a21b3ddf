package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/scopes"
	"github.com/tabwatch/fleetwatch/internal/auth/service"
	"github.com/tabwatch/fleetwatch/internal/auth/store/drivers/sqlite"
	"github.com/tabwatch/fleetwatch/pkg/cryptox"
	"github.com/tabwatch/fleetwatch/pkg/idx"
	"github.com/tabwatch/fleetwatch/pkg/jwtx"
)

type fixture struct {
	resolver *Resolver
	tokens   *service.TokenService
	keys     *service.APIKeyService
	sessions *service.SessionService
	operator domain.Operator
	password string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	keypair, err := jwtx.NewEphemeralKeypair(jwtx.VerifyOptions{})
	require.NoError(t, err)

	audit := &service.AuditService{Store: s}
	tokens := &service.TokenService{
		Keys:       keypair,
		Store:      s,
		Audit:      audit,
		Issuer:     "fleetwatch-test",
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}
	keys := &service.APIKeyService{Store: s, Audit: audit}
	sessions := &service.SessionService{Store: s}

	password := "operator-password-1"
	hash, err := cryptox.HashSecret(password)
	require.NoError(t, err)
	now := time.Now()
	op := domain.Operator{
		ID:           idx.New().String(),
		Username:     "alice",
		PasswordHash: hash,
		Role:         scopes.RoleOperator,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.Operators().CreateOperator(context.Background(), op))

	return &fixture{
		resolver: &Resolver{Tokens: tokens, Keys: keys, Sessions: sessions, Audit: audit},
		tokens:   tokens,
		keys:     keys,
		sessions: sessions,
		operator: op,
		password: password,
	}
}

func (f *fixture) login(t *testing.T) *domain.TokenPair {
	t.Helper()
	pair, err := f.tokens.Login(context.Background(), f.operator.Username, f.password, domain.DeviceInfo{})
	require.NoError(t, err)
	return pair
}

// echoAuth writes the resolved subject so tests can see which credential won.
func echoAuth(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := FromContext(r.Context())
		w.Header().Set("X-Auth-Method", string(ac.Method))
		w.Header().Set("X-Auth-Subject", ac.SubjectID)
		w.WriteHeader(http.StatusOK)
	})
}

func TestResolveBearerToken(t *testing.T) {
	f := newFixture(t)
	pair := f.login(t)

	h := f.resolver.Middleware()(echoAuth(t))
	req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, string(domain.AuthMethodToken), rec.Header().Get("X-Auth-Method"))
	require.Equal(t, f.operator.ID, rec.Header().Get("X-Auth-Subject"))
}

func TestResolveAPIKeyBothCarriers(t *testing.T) {
	f := newFixture(t)
	_, raw, err := f.keys.Create(context.Background(), service.CreateKeyParams{
		AgentName: "host-01",
		Scopes:    []string{scopes.MetricsWrite},
		CreatedBy: f.operator.ID,
	})
	require.NoError(t, err)

	h := f.resolver.Middleware()(echoAuth(t))

	req := httptest.NewRequest(http.MethodPost, "/v1/metrics", nil)
	req.Header.Set(APIKeyHeader, raw)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, string(domain.AuthMethodAPIKey), rec.Header().Get("X-Auth-Method"))
	require.Equal(t, "host-01", rec.Header().Get("X-Auth-Subject"))

	req = httptest.NewRequest(http.MethodPost, "/v1/metrics", nil)
	req.Header.Set("Authorization", "ApiKey "+raw)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, string(domain.AuthMethodAPIKey), rec.Header().Get("X-Auth-Method"))
}

func TestResolveSessionCookie(t *testing.T) {
	f := newFixture(t)
	_, rawCookie, err := f.sessions.Create(context.Background(), f.operator.ID)
	require.NoError(t, err)

	h := f.resolver.Middleware()(echoAuth(t))
	req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: rawCookie})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, string(domain.AuthMethodSession), rec.Header().Get("X-Auth-Method"))
	require.Equal(t, f.operator.ID, rec.Header().Get("X-Auth-Subject"))
}

func TestBearerOutranksAPIKeyAndCookie(t *testing.T) {
	f := newFixture(t)
	pair := f.login(t)
	_, rawKey, err := f.keys.Create(context.Background(), service.CreateKeyParams{
		AgentName: "host-01",
		Scopes:    []string{scopes.MetricsWrite},
		CreatedBy: f.operator.ID,
	})
	require.NoError(t, err)
	_, rawCookie, err := f.sessions.Create(context.Background(), f.operator.ID)
	require.NoError(t, err)

	h := f.resolver.Middleware()(echoAuth(t))
	req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	req.Header.Set(APIKeyHeader, rawKey)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: rawCookie})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, string(domain.AuthMethodToken), rec.Header().Get("X-Auth-Method"))
}

func TestInvalidBearerDoesNotFallThrough(t *testing.T) {
	f := newFixture(t)
	_, rawKey, err := f.keys.Create(context.Background(), service.CreateKeyParams{
		AgentName: "host-01",
		Scopes:    []string{scopes.MetricsWrite},
		CreatedBy: f.operator.ID,
	})
	require.NoError(t, err)

	h := f.resolver.Middleware()(echoAuth(t))
	req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	req.Header.Set(APIKeyHeader, rawKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNoCredentialsResolvesAnonymous(t *testing.T) {
	f := newFixture(t)

	h := f.resolver.Middleware()(echoAuth(t))
	req := httptest.NewRequest(http.MethodGet, "/v1/scopes", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("X-Auth-Method"))
}

func TestStaleCookieIsAnonymousNotError(t *testing.T) {
	f := newFixture(t)

	h := f.resolver.Middleware()(echoAuth(t))
	req := httptest.NewRequest(http.MethodGet, "/v1/scopes", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: "stale-cookie-value"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("X-Auth-Method"))
}

func TestRequireScopesEnforced(t *testing.T) {
	f := newFixture(t)
	pair := f.login(t)
	_, agentKey, err := f.keys.Create(context.Background(), service.CreateKeyParams{
		AgentName: "host-01",
		Scopes:    []string{scopes.MetricsWrite},
		CreatedBy: f.operator.ID,
	})
	require.NoError(t, err)

	guarded := f.resolver.Middleware()(
		f.resolver.RequireScopes(scopes.AuditRead)(echoAuth(t)),
	)

	// Anonymous gets 401.
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// The operator role carries audit:read.
	req := httptest.NewRequest(http.MethodGet, "/v1/audit", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// A metrics-only key does not.
	req = httptest.NewRequest(http.MethodGet, "/v1/audit", nil)
	req.Header.Set(APIKeyHeader, agentKey)
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWildcardSatisfiesEverything(t *testing.T) {
	f := newFixture(t)

	hash, err := cryptox.HashSecret("admin-password-1")
	require.NoError(t, err)
	now := time.Now()
	admin := domain.Operator{
		ID:           idx.New().String(),
		Username:     "root",
		PasswordHash: hash,
		Role:         scopes.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, f.tokens.Store.Operators().CreateOperator(context.Background(), admin))

	pair, err := f.tokens.Login(context.Background(), "root", "admin-password-1", domain.DeviceInfo{})
	require.NoError(t, err)

	guarded := f.resolver.Middleware()(
		f.resolver.RequireScopes(scopes.KeysWrite, scopes.ClientsWrite, scopes.AuditRead)(echoAuth(t)),
	)
	req := httptest.NewRequest(http.MethodPost, "/v1/keys", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	f := newFixture(t)
	pair := f.login(t) // operator role

	guarded := f.resolver.Middleware()(
		f.resolver.RequireRole(scopes.RoleAdmin)(echoAuth(t)),
	)
	req := httptest.NewRequest(http.MethodPost, "/v1/operators", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
