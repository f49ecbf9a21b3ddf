package sqlite

import (
	"context"
	"encoding/json"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
)

type auditEventsRepo struct {
	q dbtx
}

func (r *auditEventsRepo) AppendAuditEvent(ctx context.Context, e domain.AuditEvent) error {
	detail := "{}"
	if len(e.Detail) > 0 {
		raw, err := json.Marshal(e.Detail)
		if err != nil {
			return err
		}
		detail = string(raw)
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, type, severity, timestamp, subject_id, ip, user_agent,
			resource, action, outcome, detail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.Severity, e.Timestamp.UTC(), e.SubjectID, e.IP,
		e.UserAgent, e.Resource, e.Action, e.Outcome, detail,
	)
	return err
}

func (r *auditEventsRepo) QueryAuditEvents(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error) {
	query := `
		SELECT id, type, severity, timestamp, subject_id, ip, user_agent,
		       resource, action, outcome, detail
		FROM audit_events
		WHERE 1 = 1`
	var args []any

	if f.Since != nil {
		query += ` AND timestamp >= ?`
		args = append(args, f.Since.UTC())
	}
	if f.Until != nil {
		query += ` AND timestamp < ?`
		args = append(args, f.Until.UTC())
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(f.Type))
	}
	if f.SubjectID != "" {
		query += ` AND subject_id = ?`
		args = append(args, f.SubjectID)
	}

	query += ` ORDER BY timestamp DESC`
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var (
			e      domain.AuditEvent
			typ    string
			detail string
		)
		err := rows.Scan(
			&e.ID, &typ, &e.Severity, &e.Timestamp, &e.SubjectID, &e.IP,
			&e.UserAgent, &e.Resource, &e.Action, &e.Outcome, &detail,
		)
		if err != nil {
			return nil, err
		}
		e.Type = domain.AuditEventType(typ)
		if detail != "" && detail != "{}" {
			if err := json.Unmarshal([]byte(detail), &e.Detail); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
