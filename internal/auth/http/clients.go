package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tabwatch/fleetwatch/internal/auth/resolver"
	"github.com/tabwatch/fleetwatch/internal/auth/service"
	"github.com/tabwatch/fleetwatch/internal/auth/store"
	"github.com/tabwatch/fleetwatch/pkg/httpx"
	"github.com/tabwatch/fleetwatch/pkg/slogx"
)

// ClientsHandler manages delegated-authorization client registrations.
type ClientsHandler struct {
	OAuthService *service.OAuthService
}

// HandleRegister handles POST /v1/clients
//
//	@Summary		Register Client
//	@Description	Registers an OAuth2 client. Confidential clients receive a generated secret, shown exactly once.
//	@Tags			Clients
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		RegisterClientRequest	true	"Client attributes"
//	@Success		201		{object}	ClientResponse			"Registration, including the secret for confidential clients"
//	@Failure		400		{object}	ErrorResponse			"error, error_description"
//	@Failure		403		{object}	ErrorResponse			"error, error_description"
//	@Router			/v1/clients [post].
func (h *ClientsHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := resolver.FromContext(ctx)

	var req RegisterClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.ErrInvalidJSONBody.WriteError(w)
		return
	}

	client, secret, err := h.OAuthService.RegisterClient(ctx, service.RegisterClientParams{
		Name:         req.Name,
		Type:         req.Type,
		RedirectURIs: req.RedirectURIs,
		Scopes:       req.Scopes,
		CreatedBy:    ac.SubjectID,
	})
	if err != nil {
		writeOAuthError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, newClientResponse(client, secret))
}

// HandleList handles GET /v1/clients
//
//	@Summary		List Clients
//	@Description	Lists registered clients. Secret hashes are never included.
//	@Tags			Clients
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}		ClientResponse	"Client registrations"
//	@Failure		403	{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/clients [get].
func (h *ClientsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clients, err := h.OAuthService.ListClients(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list clients", "error", err)
		httpx.ErrServerError.WriteError(w)
		return
	}

	out := make([]ClientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, newClientResponse(c, ""))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleDeactivate handles DELETE /v1/clients/{id}
//
//	@Summary		Deactivate Client
//	@Description	Deactivates a client registration. Outstanding codes and grants are refused from the next request on.
//	@Tags			Clients
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Client ID"
//	@Success		204	"Deactivated"
//	@Failure		404	{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/clients/{id} [delete].
func (h *ClientsHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := resolver.FromContext(ctx)

	if err := h.OAuthService.DeactivateClient(ctx, r.PathValue("id"), ac.SubjectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.NewAPIError(http.StatusNotFound, httpx.ErrorCodeInvalidRequest, "client not found").WriteError(w)
			return
		}
		slogx.FromContext(ctx).Error("failed to deactivate client", "error", err)
		httpx.ErrServerError.WriteError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
