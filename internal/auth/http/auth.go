package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/resolver"
	"github.com/tabwatch/fleetwatch/internal/auth/service"
	"github.com/tabwatch/fleetwatch/pkg/httpx"
	"github.com/tabwatch/fleetwatch/pkg/slogx"
)

// AuthHandler serves the operator session surface: login, refresh, logout,
// whoami, and the active-sessions listing.
type AuthHandler struct {
	TokenService   *service.TokenService
	SessionService *service.SessionService
}

// deviceInfo assembles what we know about the caller's device for the
// refresh-token record and the audit trail.
func deviceInfo(r *http.Request, label string) domain.DeviceInfo {
	return domain.DeviceInfo{
		Label:     strings.TrimSpace(label),
		IP:        httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// HandleLogin handles POST /v1/auth/login
//
//	@Summary		Operator Login
//	@Description	Verifies an operator's password and issues an access/refresh token pair.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginRequest	true	"Credentials"
//	@Success		200		{object}	TokenResponse	"Token pair"
//	@Failure		400		{object}	ErrorResponse	"error, error_description"
//	@Failure		401		{object}	ErrorResponse	"error, error_description"
//	@Failure		429		{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.ErrInvalidJSONBody.WriteError(w)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		httpx.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.Login(ctx, req.Username, req.Password, deviceInfo(r, req.DeviceLabel))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.ErrInvalidGrant.WriteError(w)
			return
		}
		log.Error("login failed", "error", err)
		httpx.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, newTokenResponse(pair))
}

// HandleRefresh handles POST /v1/auth/refresh
//
//	@Summary		Refresh Token Pair
//	@Description	Exchanges a refresh token for a new pair. Refresh tokens are single-use; the presented token is revoked in the same transaction that issues its replacement.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	TokenResponse	"Token pair"
//	@Failure		400		{object}	ErrorResponse	"error, error_description"
//	@Failure		401		{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.ErrInvalidJSONBody.WriteError(w)
		return
	}
	if req.RefreshToken == "" {
		httpx.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.Refresh(ctx, req.RefreshToken, deviceInfo(r, ""))
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			httpx.ErrInvalidGrant.WriteError(w)
			return
		}
		log.Error("refresh failed", "error", err)
		httpx.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, newTokenResponse(pair))
}

// HandleLogout handles POST /v1/auth/logout
//
//	@Summary		Logout
//	@Description	Revokes the presented access token and, when supplied, the refresh token. With all=true every session of the caller is revoked.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body	LogoutRequest	false	"Logout options"
//	@Success		204		"Revoked"
//	@Failure		401		{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	ac := resolver.FromContext(ctx)

	var req LogoutRequest
	if r.Body != nil {
		// An empty body is a plain single-token logout.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if req.All {
		if err := h.TokenService.RevokeAllForSubject(ctx, ac.SubjectID, "logout all"); err != nil {
			log.Error("logout-all failed", "error", err)
			httpx.ErrServerError.WriteError(w)
			return
		}
		if h.SessionService != nil {
			if err := h.SessionService.DeleteAllForOperator(ctx, ac.SubjectID); err != nil {
				log.Error("failed to delete sessions", "error", err)
			}
		}
	}

	rawAccess := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		rawAccess = strings.TrimPrefix(auth, "Bearer ")
	}
	if err := h.TokenService.Revoke(ctx, rawAccess, req.RefreshToken, "logout"); err != nil {
		log.Error("logout failed", "error", err)
		httpx.ErrServerError.WriteError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleWhoami handles GET /v1/auth/whoami
//
//	@Summary		Who Am I
//	@Description	Returns the caller's resolved identity: method, subject, role, and granted scopes. Anonymous callers get authenticated=false rather than an error.
//	@Tags			Auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	WhoamiResponse	"Resolved identity"
//	@Router			/v1/auth/whoami [get].
func (h *AuthHandler) HandleWhoami(w http.ResponseWriter, r *http.Request) {
	ac := resolver.FromContext(r.Context())
	httpx.WriteJSON(w, http.StatusOK, WhoamiResponse{
		Authenticated: ac.Authenticated,
		Method:        string(ac.Method),
		SubjectID:     ac.SubjectID,
		Role:          ac.Role,
		Scopes:        ac.Scopes,
		AgentName:     ac.AgentName,
	})
}

// HandleSessions handles GET /v1/auth/sessions
//
//	@Summary		List Active Sessions
//	@Description	Lists the caller's live refresh-token sessions with device and last-use details.
//	@Tags			Auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}		SessionInfo		"Active sessions"
//	@Failure		401	{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/auth/sessions [get].
func (h *AuthHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := resolver.FromContext(ctx)

	sessions, err := h.TokenService.ListActiveSessions(ctx, ac.SubjectID)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list sessions", "error", err)
		httpx.ErrServerError.WriteError(w)
		return
	}

	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionInfo{
			ID:          s.ID,
			DeviceLabel: s.DeviceLabel,
			IssuedAt:    s.IssuedAt,
			ExpiresAt:   s.ExpiresAt,
			LastUsedAt:  s.LastUsedAt,
			LastUsedIP:  s.LastUsedIP,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
