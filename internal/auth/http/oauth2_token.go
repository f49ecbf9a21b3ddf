package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tabwatch/fleetwatch/internal/auth/service"
	"github.com/tabwatch/fleetwatch/pkg/httpx"
	"github.com/tabwatch/fleetwatch/pkg/slogx"
)

// OAuth2TokenHandler serves POST /v1/oauth2/token for every supported grant
// type. The endpoint speaks application/x-www-form-urlencoded per RFC 6749.
type OAuth2TokenHandler struct {
	TokenService *service.TokenService
	OAuthService *service.OAuthService
}

// clientCredentials pulls the client id and secret from HTTP Basic auth or,
// failing that, from the form body. Basic auth wins when both are present.
func clientCredentials(r *http.Request) (id, secret string) {
	if id, secret, ok := r.BasicAuth(); ok {
		return id, secret
	}
	return r.PostFormValue("client_id"), r.PostFormValue("client_secret")
}

// ServeHTTP handles POST /v1/oauth2/token
//
//	@Summary		Token Endpoint
//	@Description	Issues tokens for the authorization_code, refresh_token, and client_credentials grants.
//	@Tags			OAuth2
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string	true	"authorization_code | refresh_token | client_credentials"
//	@Param			code			formData	string	false	"Authorization code (authorization_code)"
//	@Param			redirect_uri	formData	string	false	"Redirect URI the code was issued to (authorization_code)"
//	@Param			code_verifier	formData	string	false	"PKCE verifier (authorization_code)"
//	@Param			refresh_token	formData	string	false	"Refresh token (refresh_token)"
//	@Param			client_id		formData	string	false	"Client ID (also accepted via Basic auth)"
//	@Param			client_secret	formData	string	false	"Client secret (also accepted via Basic auth)"
//	@Param			scope			formData	string	false	"Space-delimited scopes (client_credentials)"
//	@Success		200				{object}	TokenResponse	"Token pair"
//	@Failure		400				{object}	ErrorResponse	"error, error_description"
//	@Failure		401				{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/oauth2/token [post].
func (h *OAuth2TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		httpx.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		httpx.ErrInvalidFormBody.WriteError(w)
		return
	}

	httpx.NoCache(w)

	switch r.PostFormValue("grant_type") {
	case "authorization_code":
		h.handleAuthorizationCode(w, r)
	case "refresh_token":
		h.handleRefreshToken(w, r)
	case "client_credentials":
		h.handleClientCredentials(w, r)
	default:
		httpx.ErrUnsupportedGrantType.WriteError(w)
	}
}

func (h *OAuth2TokenHandler) handleAuthorizationCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID, clientSecret := clientCredentials(r)

	code := r.PostFormValue("code")
	if code == "" || clientID == "" {
		httpx.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.OAuthService.Exchange(ctx,
		clientID, clientSecret,
		code,
		r.PostFormValue("redirect_uri"),
		r.PostFormValue("code_verifier"),
		deviceInfo(r, ""),
	)
	if err != nil {
		writeOAuthError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newTokenResponse(pair))
}

func (h *OAuth2TokenHandler) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := r.PostFormValue("refresh_token")
	if raw == "" {
		httpx.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.Refresh(ctx, raw, deviceInfo(r, ""))
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			httpx.ErrInvalidGrant.WriteError(w)
			return
		}
		slogx.FromContext(ctx).Error("refresh grant failed", "error", err)
		httpx.ErrServerError.WriteError(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newTokenResponse(pair))
}

func (h *OAuth2TokenHandler) handleClientCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID, clientSecret := clientCredentials(r)

	if clientID == "" || clientSecret == "" {
		httpx.ErrInvalidClient.WriteError(w)
		return
	}

	pair, err := h.OAuthService.ClientCredentials(ctx,
		clientID, clientSecret,
		httpx.ParseSpaceDelimitedFields(r.PostFormValue("scope")),
		deviceInfo(r, ""),
	)
	if err != nil {
		writeOAuthError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newTokenResponse(pair))
}

// writeOAuthError maps the oauth service's sentinel errors onto the wire
// taxonomy. Anything unmapped is an infrastructure failure.
func writeOAuthError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidClient):
		httpx.ErrInvalidClient.WriteError(w)
	case errors.Is(err, service.ErrInvalidGrant):
		httpx.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrInvalidRequest):
		httpx.ErrInvalidRequest.WriteError(w)
	case errors.Is(err, service.ErrInvalidScope):
		httpx.ErrInvalidScope.WriteError(w)
	default:
		slogx.FromContext(ctx).Error("token grant failed", "error", err)
		httpx.ErrServerError.WriteError(w)
	}
}
