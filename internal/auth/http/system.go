package http

import (
	"net/http"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/store"
	"github.com/tabwatch/fleetwatch/pkg/httpx"
	"github.com/tabwatch/fleetwatch/pkg/slogx"
)

// LivezHandler serves GET /livez
//
//	@Summary		Liveness
//	@Description	Reports that the process is up. Never touches storage.
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"Liveness"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
		})
	})
}

// ReadyzHandler serves GET /readyz
//
//	@Summary		Readiness
//	@Description	Reports whether the service can take traffic. Pings storage.
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"Ready"
//	@Failure		503	{object}	HealthResponse	"Storage unreachable"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
		}
		if err := st.Ping(r.Context()); err != nil {
			slogx.FromContext(r.Context()).Error("readiness check failed", "error", err)
			resp.Status = "unavailable"
			httpx.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	})
}
