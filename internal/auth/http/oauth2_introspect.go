package http

import (
	"net/http"
	"strings"

	"github.com/tabwatch/fleetwatch/internal/auth/service"
	"github.com/tabwatch/fleetwatch/pkg/httpx"
	"github.com/tabwatch/fleetwatch/pkg/slogx"
)

// IntrospectHandler implements RFC 7662 token introspection for resource
// servers that cannot verify JWTs locally.
type IntrospectHandler struct {
	OAuthService *service.OAuthService
}

// ServeHTTP handles POST /v1/oauth2/introspect
//
//	@Summary		Introspect Token
//	@Description	Reports whether a token is currently active plus its claims. Every failure mode collapses into active=false; the endpoint never explains why a token is dead.
//	@Tags			OAuth2
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Security		BearerAuth
//	@Param			token	formData	string	true	"The token to inspect"
//	@Success		200		{object}	service.Introspection	"Introspection result"
//	@Failure		400		{object}	ErrorResponse			"error, error_description"
//	@Failure		401		{object}	ErrorResponse			"error, error_description"
//	@Router			/v1/oauth2/introspect [post].
func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		httpx.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		httpx.ErrInvalidFormBody.WriteError(w)
		return
	}

	token := r.PostFormValue("token")
	if token == "" {
		httpx.ErrInvalidRequest.WriteError(w)
		return
	}

	result, err := h.OAuthService.Introspect(ctx, token)
	if err != nil {
		slogx.FromContext(ctx).Error("introspection failed", "error", err)
		httpx.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, result)
}
