package http

import (
	"net/http"
	"strings"

	"github.com/tabwatch/fleetwatch/internal/auth/service"
	"github.com/tabwatch/fleetwatch/pkg/httpx"
	"github.com/tabwatch/fleetwatch/pkg/slogx"
)

// RevokeHandler implements RFC 7009 token revocation. Per the RFC the
// endpoint returns 200 even for tokens it does not recognise; revocation
// must not be usable as a token oracle.
type RevokeHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP handles POST /v1/oauth2/revoke
//
//	@Summary		Revoke Token
//	@Description	Revokes the submitted token. Access tokens are blacklisted until expiry; refresh tokens are marked revoked. Unknown tokens still return 200.
//	@Tags			OAuth2
//	@Accept			x-www-form-urlencoded
//	@Param			token			formData	string	true	"The token to revoke"
//	@Param			token_type_hint	formData	string	false	"access_token or refresh_token"
//	@Success		200				"Revoked or unknown"
//	@Failure		400				{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/oauth2/revoke [post].
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	// The hint only decides which slot the token goes into; Revoke tries
	// both interpretations regardless.
	rawAccess, rawRefresh := token, token
	switch r.PostFormValue("token_type_hint") {
	case "access_token":
		rawRefresh = ""
	case "refresh_token":
		rawAccess = ""
	}

	if err := h.TokenService.Revoke(ctx, rawAccess, rawRefresh, "revocation request"); err != nil {
		slogx.FromContext(ctx).Error("revocation failed", "error", err)
		httpx.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusOK)
}
