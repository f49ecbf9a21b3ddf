package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/tabwatch/fleetwatch/internal/auth/resolver"
	"github.com/tabwatch/fleetwatch/internal/auth/service"
	"github.com/tabwatch/fleetwatch/pkg/httpx"
	"github.com/tabwatch/fleetwatch/pkg/slogx"
)

// AuthorizeHandler issues authorization codes for the delegated flow. The
// approving operator arrives already authenticated; on success the user-agent
// is redirected back to the client with the code and state in the query
// string.
type AuthorizeHandler struct {
	OAuthService *service.OAuthService
}

// HandleAuthorizeGet handles GET /v1/oauth2/authorize
//
//	@Summary		Authorization Endpoint (GET)
//	@Description	Issues a single-use authorization code bound to the approving operator and redirects the user-agent to redirect_uri with code and state. Public clients must supply an S256 PKCE challenge. The granted scope is the intersection of the request, the client registration, and the operator's role.
//	@Tags			OAuth2
//	@Produce		json
//	@Security		BearerAuth
//	@Param			response_type			query	string	true	"Must be \"code\""
//	@Param			client_id				query	string	true	"Client ID"
//	@Param			redirect_uri			query	string	true	"One of the client's registered URIs, matched exactly"
//	@Param			scope					query	string	false	"Space-delimited scopes; defaults to the client's registered scopes"
//	@Param			state					query	string	false	"Opaque value echoed back to the client"
//	@Param			code_challenge			query	string	false	"PKCE challenge"
//	@Param			code_challenge_method	query	string	false	"S256 (plain only for confidential clients)"
//	@Success		302						{string}	string			"Redirect to redirect_uri with code and state"
//	@Failure		400						{object}	ErrorResponse	"error, error_description"
//	@Failure		401						{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/oauth2/authorize [get].
func (h *AuthorizeHandler) HandleAuthorizeGet(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.ErrInvalidRequest.WriteError(w)
		return
	}
	h.processAuthorize(w, r)
}

// HandleAuthorize handles POST /v1/oauth2/authorize
//
//	@Summary		Authorization Endpoint (POST)
//	@Description	Form-encoded variant of the authorization endpoint for dashboards that submit the operator's approval directly. Responds with a 302 redirect to redirect_uri carrying code and state.
//	@Tags			OAuth2
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Security		BearerAuth
//	@Param			response_type			formData	string	true	"Must be \"code\""
//	@Param			client_id				formData	string	true	"Client ID"
//	@Param			redirect_uri			formData	string	true	"One of the client's registered URIs, matched exactly"
//	@Param			scope					formData	string	false	"Space-delimited scopes; defaults to the client's registered scopes"
//	@Param			state					formData	string	false	"Opaque value echoed back to the client"
//	@Param			code_challenge			formData	string	false	"PKCE challenge"
//	@Param			code_challenge_method	formData	string	false	"S256 (plain only for confidential clients)"
//	@Success		302						{string}	string			"Redirect to redirect_uri with code and state"
//	@Failure		400						{object}	ErrorResponse	"error, error_description"
//	@Failure		401						{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/oauth2/authorize [post].
func (h *AuthorizeHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		httpx.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		httpx.ErrInvalidFormBody.WriteError(w)
		return
	}
	h.processAuthorize(w, r)
}

func (h *AuthorizeHandler) processAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := resolver.FromContext(ctx)

	req := service.AuthorizeRequest{
		ResponseType:        r.FormValue("response_type"),
		ClientID:            r.FormValue("client_id"),
		RedirectURI:         r.FormValue("redirect_uri"),
		Scopes:              httpx.ParseSpaceDelimitedFields(r.FormValue("scope")),
		State:               r.FormValue("state"),
		CodeChallenge:       r.FormValue("code_challenge"),
		CodeChallengeMethod: r.FormValue("code_challenge_method"),
		SubjectID:           ac.SubjectID,
		SubjectRole:         ac.Role,
	}

	resp, err := h.OAuthService.Authorize(ctx, req)
	if err != nil {
		h.handleAuthorizeError(w, r, req, err)
		return
	}

	redirectURL, err := buildAuthorizeRedirect(resp.RedirectURI, resp.Code, resp.State)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to build authorize redirect", "error", err)
		httpx.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (h *AuthorizeHandler) handleAuthorizeError(w http.ResponseWriter, r *http.Request, req service.AuthorizeRequest, err error) {
	ctx := r.Context()

	// An unregistered redirect_uri must be reported in place, never by
	// redirecting the user-agent to it (RFC 6749 Section 3.1.2.3).
	if errors.Is(err, service.ErrRedirectURIMismatch) {
		httpx.NewAPIError(http.StatusBadRequest, httpx.ErrorCodeInvalidRequest,
			"redirect_uri does not match a registered URI for the client").WriteError(w)
		return
	}

	var apiErr *httpx.APIError
	switch {
	case errors.Is(err, service.ErrInvalidClient):
		// The client itself could not be trusted, so neither can its
		// redirect_uri.
		httpx.ErrInvalidClient.WriteError(w)
		return
	case errors.Is(err, service.ErrInvalidRequest):
		apiErr = httpx.ErrInvalidRequest
	case errors.Is(err, service.ErrInvalidScope):
		apiErr = httpx.ErrInvalidScope
	case errors.Is(err, service.ErrInvalidGrant):
		apiErr = httpx.ErrInvalidGrant
	default:
		slogx.FromContext(ctx).Error("authorize request failed", "error", err)
		httpx.ErrServerError.WriteError(w)
		return
	}

	// Errors other than a mismatched redirect_uri go back to the client in
	// the query string when a redirect_uri was supplied.
	if req.RedirectURI != "" {
		if redirectURL, buildErr := buildErrorRedirect(req.RedirectURI, req.State, apiErr); buildErr == nil {
			http.Redirect(w, r, redirectURL, http.StatusFound)
			return
		}
	}
	apiErr.WriteError(w)
}

func buildAuthorizeRedirect(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func buildErrorRedirect(redirectURI, state string, apiErr *httpx.APIError) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("error", apiErr.Code)
	q.Set("error_description", apiErr.Description)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
