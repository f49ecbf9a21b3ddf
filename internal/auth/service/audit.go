package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/store"
	"github.com/tabwatch/fleetwatch/pkg/idx"
	"github.com/tabwatch/fleetwatch/pkg/slogx"
)

// AuditService appends security events to the audit trail and serves the
// listing endpoint. The trail is append-only; nothing here updates or
// deletes rows.
type AuditService struct {
	Store store.Store
}

// Record appends one event. Recording is best-effort: a storage failure is
// logged but never propagated, so an audit hiccup cannot fail the request
// that triggered it.
func (s *AuditService) Record(ctx context.Context, e domain.AuditEvent) {
	if e.ID == "" {
		e.ID = idx.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Severity == "" {
		e.Severity = domain.SeverityInfo
	}

	if err := s.Store.AuditEvents().AppendAuditEvent(ctx, e); err != nil {
		slogx.FromContext(ctx).Error("failed to append audit event",
			slog.Any("error", err),
			slog.String("event_type", string(e.Type)),
		)
	}
}

// Query returns events matching the filter, newest first.
func (s *AuditService) Query(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error) {
	return s.Store.AuditEvents().QueryAuditEvents(ctx, f)
}
