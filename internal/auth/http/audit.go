package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/service"
	"github.com/tabwatch/fleetwatch/pkg/httpx"
	"github.com/tabwatch/fleetwatch/pkg/slogx"
)

// AuditHandler serves the audit trail listing.
type AuditHandler struct {
	AuditService *service.AuditService
}

// HandleList handles GET /v1/audit
//
//	@Summary		List Audit Events
//	@Description	Lists audit events newest first, optionally filtered by time range, type, and subject.
//	@Tags			Audit
//	@Produce		json
//	@Security		BearerAuth
//	@Param			since	query		string	false	"RFC 3339 lower bound (inclusive)"
//	@Param			until	query		string	false	"RFC 3339 upper bound (exclusive)"
//	@Param			type	query		string	false	"Event type, e.g. login_failure"
//	@Param			subject	query		string	false	"Subject ID"
//	@Param			limit	query		int		false	"Max rows (default 100, cap 1000)"
//	@Success		200		{array}		AuditEventEntry	"Audit events"
//	@Failure		400		{object}	ErrorResponse	"error, error_description"
//	@Failure		403		{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/audit [get].
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var f domain.AuditFilter
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.ErrInvalidRequest.WriteError(w)
			return
		}
		f.Since = &t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.ErrInvalidRequest.WriteError(w)
			return
		}
		f.Until = &t
	}
	f.Type = domain.AuditEventType(q.Get("type"))
	f.SubjectID = q.Get("subject")
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	events, err := h.AuditService.Query(ctx, f)
	if err != nil {
		slogx.FromContext(ctx).Error("audit query failed", "error", err)
		httpx.ErrServerError.WriteError(w)
		return
	}

	out := make([]AuditEventEntry, 0, len(events))
	for _, e := range events {
		out = append(out, AuditEventEntry{
			ID:        e.ID,
			Type:      string(e.Type),
			Severity:  e.Severity,
			Timestamp: e.Timestamp,
			SubjectID: e.SubjectID,
			IP:        e.IP,
			Resource:  e.Resource,
			Action:    e.Action,
			Outcome:   e.Outcome,
			Detail:    e.Detail,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
