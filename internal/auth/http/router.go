package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/resolver"
	"github.com/tabwatch/fleetwatch/internal/auth/scopes"
	"github.com/tabwatch/fleetwatch/internal/auth/service"
	"github.com/tabwatch/fleetwatch/internal/auth/store"
	"github.com/tabwatch/fleetwatch/pkg/httpx"
	"github.com/tabwatch/fleetwatch/pkg/slogx"

	_ "github.com/tabwatch/fleetwatch/api/authd" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	Resolver *resolver.Resolver

	TokenService   *service.TokenService
	APIKeyService  *service.APIKeyService
	OAuthService   *service.OAuthService
	SessionService *service.SessionService
	AuditService   *service.AuditService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAPIKeys()
	r.registerOAuth2()
	r.registerClients()
	r.registerScopes()
	r.registerAudit()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			FleetWatch Auth API
//	@version		0.1.0
//	@description	Authentication and authorization core of the FleetWatch fleet-monitoring server:
//	@description	operator token pairs, agent API keys, delegated OAuth2 authorization with PKCE,
//	@description	scoped access control, and the security audit trail.
//	@description
//	@description	Access tokens are EdDSA-signed JWTs; API keys are opaque "fwk_" secrets.
//
//	@contact.name				TabWatch Team
//	@contact.url				https://github.com/tabwatch/fleetwatch
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
//
//	@securityDefinitions.apikey	AgentKeyAuth
//	@in							header
//	@name						X-API-Key
//	@description				Agent API key. Format: "fwk_{secret}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		TokenService:   r.TokenService,
		SessionService: r.SessionService,
	}

	// POST /login - strict rate limit by IP + username to slow brute force.
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "username"),
		),
	)

	// POST /refresh - moderate; rotation makes replay self-defeating.
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Logout and session listing are about the caller's refresh chain, so
	// they are closed to API key callers.
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			r.Resolver.Middleware(),
			r.Resolver.RequireMethod(domain.AuthMethodToken, domain.AuthMethodSession),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /v1/auth/whoami",
		httpx.Chain(http.HandlerFunc(h.HandleWhoami),
			r.Resolver.Middleware(),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("GET /v1/auth/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleSessions),
			r.Resolver.Middleware(),
			r.Resolver.RequireMethod(domain.AuthMethodToken, domain.AuthMethodSession),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerAPIKeys() {
	h := &APIKeysHandler{APIKeyService: r.APIKeyService}

	secured := func(next http.Handler, scope string) http.Handler {
		return httpx.Chain(next,
			r.Resolver.Middleware(),
			r.Resolver.RequireScopes(scope),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /v1/keys", secured(http.HandlerFunc(h.HandleCreate), scopes.KeysWrite))
	r.Mux.Handle("GET /v1/keys", secured(http.HandlerFunc(h.HandleList), scopes.KeysRead))
	r.Mux.Handle("GET /v1/keys/{id}", secured(http.HandlerFunc(h.HandleGet), scopes.KeysRead))
	r.Mux.Handle("GET /v1/keys/{id}/usage", secured(http.HandlerFunc(h.HandleUsage), scopes.KeysRead))
	r.Mux.Handle("POST /v1/keys/{id}/rotate", secured(http.HandlerFunc(h.HandleRotate), scopes.KeysWrite))
	r.Mux.Handle("DELETE /v1/keys/{id}", secured(http.HandlerFunc(h.HandleRevoke), scopes.KeysWrite))
}

func (r *Router) registerOAuth2() {
	authorizeHandler := &AuthorizeHandler{OAuthService: r.OAuthService}

	// The approving operator must already be authenticated; code issuance
	// is never anonymous. GET serves browser navigations, POST serves
	// dashboards submitting the approval form.
	authorizeGuards := []httpx.Middleware{
		r.Resolver.Middleware(),
		r.Resolver.RequireRole(scopes.RoleAdmin, scopes.RoleOperator, scopes.RoleViewer),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	}
	r.Mux.Handle("GET /v1/oauth2/authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandleAuthorizeGet), authorizeGuards...))
	r.Mux.Handle("POST /v1/oauth2/authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandleAuthorize), authorizeGuards...),
	)

	// POST /token - strict rate limit by IP + client_id (covers all grant
	// types; grants without a client_id fall back to the IP alone).
	tokenHandler := &OAuth2TokenHandler{
		TokenService: r.TokenService,
		OAuthService: r.OAuthService,
	}
	r.Mux.Handle("POST /v1/oauth2/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "client_id"),
		),
	)

	revokeHandler := &RevokeHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/oauth2/revoke",
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Introspection (RFC 7662) - authenticated callers only.
	introspectHandler := &IntrospectHandler{OAuthService: r.OAuthService}
	r.Mux.Handle("POST /v1/oauth2/introspect",
		httpx.Chain(introspectHandler,
			r.Resolver.Middleware(),
			r.Resolver.RequireAuth(),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerClients() {
	h := &ClientsHandler{OAuthService: r.OAuthService}

	secured := func(next http.Handler, scope string) http.Handler {
		return httpx.Chain(next,
			r.Resolver.Middleware(),
			r.Resolver.RequireScopes(scope),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /v1/clients", secured(http.HandlerFunc(h.HandleRegister), scopes.ClientsWrite))
	r.Mux.Handle("GET /v1/clients", secured(http.HandlerFunc(h.HandleList), scopes.ClientsRead))
	r.Mux.Handle("DELETE /v1/clients/{id}", secured(http.HandlerFunc(h.HandleDeactivate), scopes.ClientsWrite))
}

func (r *Router) registerScopes() {
	// The scope vocabulary is public; integrations need it to build
	// consent screens before anyone is authenticated.
	r.Mux.Handle("GET /v1/scopes",
		httpx.Chain(ScopesHandler(),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerAudit() {
	h := &AuditHandler{AuditService: r.AuditService}

	r.Mux.Handle("GET /v1/audit",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			r.Resolver.Middleware(),
			r.Resolver.RequireScopes(scopes.AuditRead),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
