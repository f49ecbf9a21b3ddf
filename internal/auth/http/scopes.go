package http

import (
	"net/http"

	"github.com/tabwatch/fleetwatch/internal/auth/scopes"
	"github.com/tabwatch/fleetwatch/pkg/httpx"
)

// ScopesHandler serves GET /v1/scopes
//
//	@Summary		List Scopes
//	@Description	Returns the scope vocabulary: every defined scope with its description. Public so integrations can build consent screens.
//	@Tags			Scopes
//	@Produce		json
//	@Success		200	{array}	scopes.Definition	"Scope definitions"
//	@Router			/v1/scopes [get].
func ScopesHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, scopes.List())
	})
}
