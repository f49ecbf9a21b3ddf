package sqlite

import (
	"context"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
)

type sessionsRepo struct {
	q dbtx
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sessions (id, token_hash, operator_id, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.TokenHash, s.OperatorID, s.CreatedAt.UTC(), s.ExpiresAt.UTC(),
	)
	return mapConflict(err)
}

func (r *sessionsRepo) GetSessionByHash(ctx context.Context, hash string) (domain.Session, error) {
	var s domain.Session
	err := r.q.QueryRowContext(ctx, `
		SELECT id, token_hash, operator_id, created_at, expires_at
		FROM sessions
		WHERE token_hash = ? AND expires_at > ?`,
		hash, time.Now().UTC(),
	).Scan(&s.ID, &s.TokenHash, &s.OperatorID, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowsAffected(res)
}

func (r *sessionsRepo) DeleteAllSubjectSessions(ctx context.Context, operatorID string) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM sessions WHERE operator_id = ?`, operatorID)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	return err
}
