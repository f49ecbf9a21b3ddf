package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/resolver"
	"github.com/tabwatch/fleetwatch/internal/auth/service"
	"github.com/tabwatch/fleetwatch/internal/auth/store"
	"github.com/tabwatch/fleetwatch/pkg/httpx"
	"github.com/tabwatch/fleetwatch/pkg/slogx"
)

// APIKeysHandler manages agent API keys.
type APIKeysHandler struct {
	APIKeyService *service.APIKeyService
}

// HandleCreate handles POST /v1/keys
//
//	@Summary		Create API Key
//	@Description	Mints a new agent API key. The raw key is returned exactly once; only a fingerprint is stored.
//	@Tags			API Keys
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreateKeyRequest	true	"Key attributes"
//	@Success		201		{object}	KeyResponse			"Key record including the raw secret"
//	@Failure		400		{object}	ErrorResponse		"error, error_description"
//	@Failure		403		{object}	ErrorResponse		"error, error_description"
//	@Router			/v1/keys [post].
func (h *APIKeysHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := resolver.FromContext(ctx)

	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.ErrInvalidJSONBody.WriteError(w)
		return
	}

	key, raw, err := h.APIKeyService.Create(ctx, service.CreateKeyParams{
		AgentName:         req.AgentName,
		Scopes:            req.Scopes,
		CreatedBy:         ac.SubjectID,
		ExpiresAt:         req.ExpiresAt,
		RateLimitRequests: req.RateLimitRequests,
		RateLimitWindow:   time.Duration(req.RateLimitWindowS) * time.Second,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidScope) {
			httpx.ErrInvalidScope.WriteError(w)
			return
		}
		slogx.FromContext(ctx).Error("failed to create api key", "error", err)
		httpx.ErrInvalidRequest.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, newKeyResponse(key, raw))
}

// HandleList handles GET /v1/keys
//
//	@Summary		List API Keys
//	@Description	Lists agent API keys. Revoked keys are hidden unless include_revoked=true.
//	@Tags			API Keys
//	@Produce		json
//	@Security		BearerAuth
//	@Param			agent			query		string	false	"Filter by agent name"
//	@Param			include_revoked	query		bool	false	"Include revoked keys"
//	@Success		200				{array}		KeyResponse		"Key records, secrets omitted"
//	@Failure		403				{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/keys [get].
func (h *APIKeysHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	keys, err := h.APIKeyService.List(ctx, domain.APIKeyFilter{
		AgentName:      r.URL.Query().Get("agent"),
		IncludeRevoked: r.URL.Query().Get("include_revoked") == "true",
	})
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list api keys", "error", err)
		httpx.ErrServerError.WriteError(w)
		return
	}

	out := make([]KeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, newKeyResponse(k, ""))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /v1/keys/{id}
//
//	@Summary		Get API Key
//	@Description	Fetches one key record by ID. The secret is never returned.
//	@Tags			API Keys
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string			true	"Key ID"
//	@Success		200	{object}	KeyResponse		"Key record"
//	@Failure		404	{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/keys/{id} [get].
func (h *APIKeysHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key, err := h.APIKeyService.Get(ctx, r.PathValue("id"))
	if err != nil {
		writeKeyLookupError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newKeyResponse(key, ""))
}

// HandleUsage handles GET /v1/keys/{id}/usage
//
//	@Summary		API Key Usage
//	@Description	Lists recent recorded uses of a key, newest first.
//	@Tags			API Keys
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string	false	"Key ID"
//	@Param			limit	query		int		false	"Max entries (default 100)"
//	@Success		200		{array}		KeyUsageEntry	"Usage entries"
//	@Failure		404		{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/keys/{id}/usage [get].
func (h *APIKeysHandler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	usage, err := h.APIKeyService.Usage(ctx, r.PathValue("id"), limit)
	if err != nil {
		writeKeyLookupError(ctx, w, err)
		return
	}

	out := make([]KeyUsageEntry, 0, len(usage))
	for _, u := range usage {
		out = append(out, KeyUsageEntry{
			IP:       u.IP,
			Endpoint: u.Endpoint,
			Method:   u.Method,
			UsedAt:   u.UsedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleRotate handles POST /v1/keys/{id}/rotate
//
//	@Summary		Rotate API Key
//	@Description	Revokes the key and issues a replacement inheriting its agent, scopes, quota, and expiry. The two steps share one transaction.
//	@Tags			API Keys
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string			true	"Key ID"
//	@Success		201	{object}	KeyResponse		"Replacement key including the raw secret"
//	@Failure		404	{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/keys/{id}/rotate [post].
func (h *APIKeysHandler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := resolver.FromContext(ctx)

	key, raw, err := h.APIKeyService.Rotate(ctx, r.PathValue("id"), ac.SubjectID)
	if err != nil {
		writeKeyLookupError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, newKeyResponse(key, raw))
}

// HandleRevoke handles DELETE /v1/keys/{id}
//
//	@Summary		Revoke API Key
//	@Description	Revokes a key immediately. Revocation takes effect on the key's next use.
//	@Tags			API Keys
//	@Accept			json
//	@Security		BearerAuth
//	@Param			id		path	string				true	"Key ID"
//	@Param			request	body	RevokeKeyRequest	false	"Optional reason"
//	@Success		204		"Revoked"
//	@Failure		404		{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/keys/{id} [delete].
func (h *APIKeysHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := resolver.FromContext(ctx)

	var req RevokeKeyRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.APIKeyService.Revoke(ctx, r.PathValue("id"), ac.SubjectID, req.Reason); err != nil {
		writeKeyLookupError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeKeyLookupError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.NewAPIError(http.StatusNotFound, httpx.ErrorCodeInvalidRequest, "key not found").WriteError(w)
	case errors.Is(err, service.ErrKeyRevoked):
		httpx.NewAPIError(http.StatusConflict, httpx.ErrorCodeInvalidRequest, "key is revoked").WriteError(w)
	default:
		slogx.FromContext(ctx).Error("api key operation failed", "error", err)
		httpx.ErrServerError.WriteError(w)
	}
}
