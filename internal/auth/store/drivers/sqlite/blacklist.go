package sqlite

import (
	"context"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
)

type blacklistRepo struct {
	q dbtx
}

func (r *blacklistRepo) InsertBlacklistEntry(ctx context.Context, e domain.BlacklistEntry) error {
	// Revoking the same token twice is not an error.
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO token_blacklist (jti, subject_id, expires_at, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (jti) DO NOTHING`,
		e.JTI, e.SubjectID, e.ExpiresAt.UTC(), e.Reason, e.CreatedAt.UTC(),
	)
	return err
}

func (r *blacklistRepo) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM token_blacklist WHERE jti = ?`, jti).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *blacklistRepo) DeleteExpiredBlacklistEntries(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM token_blacklist WHERE expires_at <= ?`, time.Now().UTC())
	return err
}
