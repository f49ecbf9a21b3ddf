package resolver

import (
	"net/http"
	"strings"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/scopes"
	"github.com/tabwatch/fleetwatch/pkg/httpx"
)

// RequireAuth rejects anonymous requests with 401. Run after Middleware.
func (r *Resolver) RequireAuth() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ac := FromContext(req.Context())
			if !ac.Authenticated {
				httpx.ErrInvalidToken.WriteError(w)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// RequireScopes rejects requests whose verdict does not carry every listed
// scope. Anonymous requests get 401, authenticated-but-underprivileged 403.
func (r *Resolver) RequireScopes(required ...string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ac := FromContext(req.Context())
			if !ac.Authenticated {
				httpx.ErrInvalidToken.WriteError(w)
				return
			}
			if !scopes.HasAll(ac.Scopes, required) {
				r.auditDenied(req, ac, required)
				httpx.ErrInsufficientScope.WriteError(w)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// RequireAnyScope is like RequireScopes but one listed scope suffices.
func (r *Resolver) RequireAnyScope(required ...string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ac := FromContext(req.Context())
			if !ac.Authenticated {
				httpx.ErrInvalidToken.WriteError(w)
				return
			}
			if !scopes.HasAny(ac.Scopes, required) {
				r.auditDenied(req, ac, required)
				httpx.ErrInsufficientScope.WriteError(w)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// RequireRole restricts a route to subjects holding one of the listed roles.
// Scopes gate capabilities; roles gate the few surfaces that are about who
// you are rather than what you may do.
func (r *Resolver) RequireRole(roles ...string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ac := FromContext(req.Context())
			if !ac.Authenticated {
				httpx.ErrInvalidToken.WriteError(w)
				return
			}
			for _, role := range roles {
				if ac.Role == role {
					next.ServeHTTP(w, req)
					return
				}
			}
			r.auditDenied(req, ac, roles)
			httpx.ErrAccessDenied.WriteError(w)
		})
	}
}

// RequireMethod restricts a route to requests authenticated by one of the
// listed credential types. Session-management endpoints only make sense for
// token callers; an agent key has no refresh chain to manage.
func (r *Resolver) RequireMethod(methods ...domain.AuthMethod) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ac := FromContext(req.Context())
			if !ac.Authenticated {
				httpx.ErrInvalidToken.WriteError(w)
				return
			}
			for _, m := range methods {
				if ac.Method == m {
					next.ServeHTTP(w, req)
					return
				}
			}
			var names []string
			for _, m := range methods {
				names = append(names, string(m))
			}
			r.auditDenied(req, ac, names)
			httpx.ErrAccessDenied.WriteError(w)
		})
	}
}

func (r *Resolver) auditDenied(req *http.Request, ac domain.AuthContext, required []string) {
	if r.Audit == nil {
		return
	}
	r.Audit.Record(req.Context(), domain.AuditEvent{
		Type:      domain.AuditAccessDenied,
		Severity:  domain.SeverityWarning,
		SubjectID: ac.SubjectID,
		IP:        httpx.ClientIP(req),
		UserAgent: req.UserAgent(),
		Resource:  req.URL.Path,
		Action:    req.Method,
		Outcome:   domain.OutcomeFailure,
		Detail: map[string]any{
			"required": strings.Join(required, " "),
			"granted":  strings.Join(ac.Scopes, " "),
			"method":   string(ac.Method),
		},
	})
}
