package http

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/resolver"
	"github.com/tabwatch/fleetwatch/internal/auth/scopes"
	"github.com/tabwatch/fleetwatch/internal/auth/service"
	"github.com/tabwatch/fleetwatch/internal/auth/store"
	"github.com/tabwatch/fleetwatch/internal/auth/store/drivers/sqlite"
	"github.com/tabwatch/fleetwatch/pkg/cryptox"
	"github.com/tabwatch/fleetwatch/pkg/idx"
	"github.com/tabwatch/fleetwatch/pkg/jwtx"
)

type testServer struct {
	router *Router
	store  store.Store
	keys   *jwtx.Keypair
	tokens *service.TokenService

	// ip feeds RemoteAddr so tests don't share rate limiter buckets.
	ip string
}

func newTestServer(t *testing.T) *testServer {
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
	apikeys := &service.APIKeyService{Store: s, Audit: audit}
	oauth := &service.OAuthService{Store: s, Tokens: tokens, Audit: audit}
	sessions := &service.SessionService{Store: s}

	r := NewRouter("test", s, slog.New(slog.DiscardHandler))
	r.Resolver = &resolver.Resolver{
		Tokens:   tokens,
		Keys:     apikeys,
		Sessions: sessions,
		Audit:    audit,
	}
	r.TokenService = tokens
	r.APIKeyService = apikeys
	r.OAuthService = oauth
	r.SessionService = sessions
	r.AuditService = audit
	r.ApplyRoutes()

	return &testServer{
		router: r,
		store:  s,
		keys:   keypair,
		tokens: tokens,
		ip:     fmt.Sprintf("10.1.%d.%d:4242", len(t.Name())%250+1, time.Now().UnixNano()%250+1),
	}
}

func (ts *testServer) createOperator(t *testing.T, username, password, role string) domain.Operator {
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
	require.NoError(t, ts.store.Operators().CreateOperator(context.Background(), op))
	return op
}

func (ts *testServer) do(t *testing.T, method, target, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case url.Values:
		r = strings.NewReader(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(buf)
		contentType = "application/json"
	}

	req := httptest.NewRequest(method, target, r)
	req.RemoteAddr = ts.ip
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) login(t *testing.T, username, password string) TokenResponse {
	t.Helper()

	w := ts.do(t, http.MethodPost, "/v1/auth/login", "", LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var pair TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pair))
	return pair
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func TestLoginRefreshLogoutOverWire(t *testing.T) {
	ts := newTestServer(t)
	ts.createOperator(t, "alice", "correct-horse-battery", scopes.RoleOperator)

	pair := ts.login(t, "alice", "correct-horse-battery")
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)

	w := ts.do(t, http.MethodGet, "/v1/auth/whoami", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var who WhoamiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &who))
	require.True(t, who.Authenticated)
	require.Equal(t, scopes.RoleOperator, who.Role)

	w = ts.do(t, http.MethodPost, "/v1/auth/refresh", "", RefreshRequest{RefreshToken: pair.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var next TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &next))
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The rotated-out refresh token is dead.
	w = ts.do(t, http.MethodPost, "/v1/auth/refresh", "", RefreshRequest{RefreshToken: pair.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_grant", decodeError(t, w).Error)

	w = ts.do(t, http.MethodPost, "/v1/auth/logout", next.AccessToken, LogoutRequest{RefreshToken: next.RefreshToken})
	require.Equal(t, http.StatusNoContent, w.Code)

	// The blacklisted access token no longer authenticates.
	w = ts.do(t, http.MethodGet, "/v1/auth/sessions", next.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_token", decodeError(t, w).Error)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.createOperator(t, "bob", "a-perfectly-fine-pass", scopes.RoleViewer)

	w := ts.do(t, http.MethodPost, "/v1/auth/login", "", LoginRequest{Username: "bob", Password: "nope"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_grant", decodeError(t, w).Error)
}

func TestExpiredTokenRejectedOverWire(t *testing.T) {
	ts := newTestServer(t)
	op := ts.createOperator(t, "carol", "carols-long-password", scopes.RoleOperator)

	claims := jwtx.NewClaims(jwtx.TokenTypeAccess, op.ID, op.Role,
		scopes.ForRole(op.Role), -time.Minute, "fleetwatch-test", nil, "", idx.New().String(), time.Now())
	raw, err := ts.keys.Signer.Sign(claims)
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/v1/auth/sessions", raw, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_token", decodeError(t, w).Error)
}

func TestScopeGuardOverWire(t *testing.T) {
	ts := newTestServer(t)
	ts.createOperator(t, "dave", "daves-long-password", scopes.RoleViewer)
	pair := ts.login(t, "dave", "daves-long-password")

	// Viewers cannot mint keys.
	w := ts.do(t, http.MethodPost, "/v1/keys", pair.AccessToken, CreateKeyRequest{
		AgentName: "edge-1", Scopes: []string{scopes.MetricsWrite},
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "insufficient_scope", decodeError(t, w).Error)

	// Anonymous callers get 401, not 403.
	w = ts.do(t, http.MethodGet, "/v1/keys", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_token", decodeError(t, w).Error)
}

func TestAPIKeyLifecycleOverWire(t *testing.T) {
	ts := newTestServer(t)
	ts.createOperator(t, "root", "the-admin-password1", scopes.RoleAdmin)
	admin := ts.login(t, "root", "the-admin-password1")

	w := ts.do(t, http.MethodPost, "/v1/keys", admin.AccessToken, CreateKeyRequest{
		AgentName: "edge-1",
		Scopes:    []string{scopes.MetricsWrite, scopes.CommandsRead},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created KeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.True(t, strings.HasPrefix(created.Key, service.APIKeyPrefix))

	// The key authenticates as the agent.
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/whoami", nil)
	req.RemoteAddr = ts.ip
	req.Header.Set(resolver.APIKeyHeader, created.Key)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var who WhoamiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &who))
	require.True(t, who.Authenticated)
	require.Equal(t, "apikey", who.Method)
	require.Equal(t, "edge-1", who.AgentName)

	// The key's scopes don't cover key management.
	req = httptest.NewRequest(http.MethodGet, "/v1/keys", nil)
	req.RemoteAddr = ts.ip
	req.Header.Set(resolver.APIKeyHeader, created.Key)
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Session management is closed to API key callers.
	req = httptest.NewRequest(http.MethodGet, "/v1/auth/sessions", nil)
	req.RemoteAddr = ts.ip
	req.Header.Set(resolver.APIKeyHeader, created.Key)
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "access_denied", decodeError(t, rec).Error)

	// Rotate, then the old key is dead.
	w = ts.do(t, http.MethodPost, "/v1/keys/"+created.ID+"/rotate", admin.AccessToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rotated KeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rotated))
	require.Equal(t, created.AgentName, rotated.AgentName)
	require.NotEqual(t, created.Key, rotated.Key)

	req = httptest.NewRequest(http.MethodGet, "/v1/auth/whoami", nil)
	req.RemoteAddr = ts.ip
	req.Header.Set(resolver.APIKeyHeader, created.Key)
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Revoke the replacement, usage listing still works for the record.
	w = ts.do(t, http.MethodDelete, "/v1/keys/"+rotated.ID, admin.AccessToken, RevokeKeyRequest{Reason: "decommissioned"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/keys/"+rotated.ID+"/usage", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// A revoked key is a presented-and-rejected credential, not anonymous.
	req = httptest.NewRequest(http.MethodGet, "/v1/auth/whoami", nil)
	req.RemoteAddr = ts.ip
	req.Header.Set(resolver.APIKeyHeader, rotated.Key)
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOAuth2AuthorizationCodeOverWire(t *testing.T) {
	ts := newTestServer(t)
	ts.createOperator(t, "root", "the-admin-password1", scopes.RoleAdmin)
	admin := ts.login(t, "root", "the-admin-password1")

	w := ts.do(t, http.MethodPost, "/v1/clients", admin.AccessToken, RegisterClientRequest{
		Name:         "Grafana",
		Type:         domain.ClientTypePublic,
		RedirectURIs: []string{"https://grafana.example.com/callback"},
		Scopes:       []string{scopes.MetricsRead, scopes.MachinesRead},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var client ClientResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &client))
	require.Empty(t, client.ClientSecret)

	verifier := "a-very-long-pkce-verifier-string-0123456789abcdef"
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	w = ts.do(t, http.MethodPost, "/v1/oauth2/authorize", admin.AccessToken, url.Values{
		"response_type":         {"code"},
		"client_id":             {client.ID},
		"redirect_uri":          {"https://grafana.example.com/callback"},
		"scope":                 {scopes.MetricsRead},
		"state":                 {"xyzzy"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	})
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "grafana.example.com", location.Host)
	code := location.Query().Get("code")
	require.NotEmpty(t, code)
	require.Equal(t, "xyzzy", location.Query().Get("state"))

	// An unregistered redirect_uri is reported in place, never redirected to.
	w = ts.do(t, http.MethodGet,
		"/v1/oauth2/authorize?response_type=code&client_id="+client.ID+
			"&redirect_uri=https%3A%2F%2Fevil.example%2Fcb", admin.AccessToken, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_request", decodeError(t, w).Error)

	w = ts.do(t, http.MethodPost, "/v1/oauth2/token", "", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {client.ID},
		"code":          {code},
		"redirect_uri":  {"https://grafana.example.com/callback"},
		"code_verifier": {verifier},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var pair TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pair))
	require.Equal(t, scopes.MetricsRead, pair.Scope)

	// A consumed code cannot be exchanged again.
	w = ts.do(t, http.MethodPost, "/v1/oauth2/token", "", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {client.ID},
		"code":          {code},
		"redirect_uri":  {"https://grafana.example.com/callback"},
		"code_verifier": {verifier},
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_grant", decodeError(t, w).Error)

	// Introspection sees the issued access token as active.
	w = ts.do(t, http.MethodPost, "/v1/oauth2/introspect", admin.AccessToken, url.Values{
		"token": {pair.AccessToken},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var intro service.Introspection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &intro))
	require.True(t, intro.Active)

	// Revocation flips it to inactive.
	w = ts.do(t, http.MethodPost, "/v1/oauth2/revoke", "", url.Values{
		"token":           {pair.AccessToken},
		"token_type_hint": {"access_token"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/oauth2/introspect", admin.AccessToken, url.Values{
		"token": {pair.AccessToken},
	})
	require.Equal(t, http.StatusOK, w.Code)
	intro = service.Introspection{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &intro))
	require.False(t, intro.Active)
}

func TestTokenEndpointRejectsUnknownGrant(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/oauth2/token", "", url.Values{
		"grant_type": {"password"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "unsupported_grant_type", decodeError(t, w).Error)
}

func TestScopesEndpointIsPublic(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/v1/scopes", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var defs []scopes.Definition
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &defs))
	require.Len(t, defs, len(scopes.List()))
}

func TestAuditListingOverWire(t *testing.T) {
	ts := newTestServer(t)
	ts.createOperator(t, "root", "the-admin-password1", scopes.RoleAdmin)
	admin := ts.login(t, "root", "the-admin-password1")

	w := ts.do(t, http.MethodGet, "/v1/audit?type=login_success", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var events []AuditEventEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.NotEmpty(t, events)
	require.Equal(t, string(domain.AuditLoginSuccess), events[0].Type)

	// Garbage time bounds are rejected.
	w = ts.do(t, http.MethodGet, "/v1/audit?since=yesterday", admin.AccessToken, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "test", health.Version)
}
