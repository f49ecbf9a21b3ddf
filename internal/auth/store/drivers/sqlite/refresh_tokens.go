package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
)

type refreshTokensRepo struct {
	q dbtx
}

const refreshTokenColumns = `id, subject_id, token_hash, device_label, device_fingerprint,
	issued_at, expires_at, last_used_at, last_used_ip, last_user_agent,
	revoked, revoked_at, revoked_reason, created_at`

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO refresh_tokens (
			id, subject_id, token_hash, device_label, device_fingerprint,
			issued_at, expires_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SubjectID, t.TokenHash, t.DeviceLabel, t.DeviceFingerprint,
		t.IssuedAt.UTC(), t.ExpiresAt.UTC(), t.CreatedAt.UTC(),
	)
	return mapConflict(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByID(ctx context.Context, id string) (domain.RefreshToken, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE id = ?`, id)
	return scanRefreshToken(row)
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, id, reason string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1, revoked_at = ?, revoked_reason = ?
		WHERE id = ? AND revoked = 0`,
		time.Now().UTC(), reason, id,
	)
	if err != nil {
		return err
	}
	return requireRowsAffected(res)
}

func (r *refreshTokensRepo) RevokeAllSubjectRefreshTokens(ctx context.Context, subjectID, reason string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1, revoked_at = ?, revoked_reason = ?
		WHERE subject_id = ? AND revoked = 0`,
		time.Now().UTC(), reason, subjectID,
	)
	return err
}

func (r *refreshTokensRepo) ListActiveRefreshTokens(ctx context.Context, subjectID string) ([]domain.RefreshToken, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+refreshTokenColumns+`
		FROM refresh_tokens
		WHERE subject_id = ? AND revoked = 0 AND expires_at > ?
		ORDER BY created_at DESC`,
		subjectID, time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *refreshTokensRepo) TouchRefreshToken(ctx context.Context, id, ip, userAgent string, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET last_used_at = ?, last_used_ip = ?, last_user_agent = ?
		WHERE id = ?`,
		at.UTC(), ip, userAgent, id,
	)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ?`, time.Now().UTC())
	return err
}

func scanRefreshToken(row rowScanner) (domain.RefreshToken, error) {
	var (
		t          domain.RefreshToken
		lastUsedAt sql.NullTime
		revokedAt  sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.SubjectID, &t.TokenHash, &t.DeviceLabel, &t.DeviceFingerprint,
		&t.IssuedAt, &t.ExpiresAt, &lastUsedAt, &t.LastUsedIP, &t.LastUserAgent,
		&t.Revoked, &revokedAt, &t.RevokedReason, &t.CreatedAt,
	)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.LastUsedAt = mapNullTimePtr(lastUsedAt)
	t.RevokedAt = mapNullTimePtr(revokedAt)
	return t, nil
}
