package resolver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/scopes"
	"github.com/tabwatch/fleetwatch/internal/auth/service"
	"github.com/tabwatch/fleetwatch/pkg/httpx"
)

// APIKeyHeader is the preferred way for agents to present their key. The
// "Authorization: ApiKey <key>" scheme is accepted as an alternative.
const APIKeyHeader = "X-API-Key"

// DefaultSessionCookie names the legacy dashboard session cookie.
const DefaultSessionCookie = "fleetwatch_session"

// Resolver builds the AuthContext for each request.
type Resolver struct {
	Tokens   *service.TokenService
	Keys     *service.APIKeyService
	Sessions *service.SessionService
	Audit    *service.AuditService

	// SessionCookie overrides DefaultSessionCookie when set.
	SessionCookie string
}

// Resolve inspects the request's credentials and returns the verdict.
//
// A request that presents no credential at all resolves to the anonymous
// context with a nil error. A presented-but-rejected credential returns an
// error, which the middleware maps onto 401/429 responses; it never falls
// through to a weaker credential.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (domain.AuthContext, error) {
	if raw, ok := bearerToken(req); ok {
		claims, err := r.Tokens.ValidateAccess(ctx, raw)
		if err != nil {
			return domain.Anonymous(), err
		}
		return domain.AuthContext{
			Authenticated: true,
			Method:        domain.AuthMethodToken,
			SubjectID:     claims.Subject,
			Role:          claims.Role,
			Scopes:        claims.Scopes,
			TokenID:       claims.ID,
		}, nil
	}

	if raw, ok := apiKey(req); ok {
		key, err := r.Keys.Validate(ctx, raw, httpx.ClientIP(req), req.URL.Path, req.Method)
		if err != nil {
			return domain.Anonymous(), err
		}
		return domain.AuthContext{
			Authenticated: true,
			Method:        domain.AuthMethodAPIKey,
			SubjectID:     key.AgentName,
			Role:          scopes.RoleAgent,
			Scopes:        key.Scopes,
			APIKeyID:      key.ID,
			AgentName:     key.AgentName,
		}, nil
	}

	if r.Sessions != nil {
		if cookie, err := req.Cookie(r.cookieName()); err == nil && cookie.Value != "" {
			session, op, err := r.Sessions.Validate(ctx, cookie.Value)
			if err != nil {
				// Stale dashboard cookies are routine; treat them as absent
				// rather than failing requests that may carry no intent to
				// authenticate.
				if errors.Is(err, service.ErrInvalidSession) {
					return domain.Anonymous(), nil
				}
				return domain.Anonymous(), err
			}
			return domain.AuthContext{
				Authenticated: true,
				Method:        domain.AuthMethodSession,
				SubjectID:     op.ID,
				Role:          op.Role,
				Scopes:        scopes.ForRole(op.Role),
				SessionID:     session.ID,
			}, nil
		}
	}

	return domain.Anonymous(), nil
}

// Middleware resolves the request and stores the verdict in the context.
// Invalid credentials end the request here with 401 (or 429 for an
// over-quota API key); requests without credentials pass through anonymous.
func (r *Resolver) Middleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ac, err := r.Resolve(req.Context(), req)
			if err != nil {
				r.reject(req, err).WriteError(w)
				return
			}
			next.ServeHTTP(w, req.WithContext(WithAuthContext(req.Context(), ac)))
		})
	}
}

func (r *Resolver) reject(req *http.Request, err error) *httpx.APIError {
	switch {
	case errors.Is(err, service.ErrRateLimited):
		return httpx.ErrRateLimited
	case errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenRevoked),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrInvalidKey),
		errors.Is(err, service.ErrKeyRevoked),
		errors.Is(err, service.ErrKeyExpired):
		r.auditRejected(req, err)
		return httpx.ErrInvalidToken
	default:
		return httpx.ErrServerError
	}
}

func (r *Resolver) auditRejected(req *http.Request, err error) {
	if r.Audit == nil {
		return
	}
	r.Audit.Record(req.Context(), domain.AuditEvent{
		Type:      domain.AuditUnauthorizedAccess,
		Severity:  domain.SeverityWarning,
		IP:        httpx.ClientIP(req),
		UserAgent: req.UserAgent(),
		Resource:  req.URL.Path,
		Action:    req.Method,
		Outcome:   domain.OutcomeFailure,
		Detail:    map[string]any{"reason": err.Error()},
	})
}

func (r *Resolver) cookieName() string {
	if r.SessionCookie != "" {
		return r.SessionCookie
	}
	return DefaultSessionCookie
}

func bearerToken(req *http.Request) (string, bool) {
	h := req.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):]), true
	}
	return "", false
}

func apiKey(req *http.Request) (string, bool) {
	if v := req.Header.Get(APIKeyHeader); v != "" {
		return strings.TrimSpace(v), true
	}
	h := req.Header.Get("Authorization")
	const prefix = "ApiKey "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):]), true
	}
	return "", false
}
