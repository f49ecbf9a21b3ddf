package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/store"
)

type apiKeysRepo struct {
	q dbtx
}

const apiKeyColumns = `id, agent_name, prefix, secret_hash, scopes, created_by, created_at,
	expires_at, last_used_at, last_used_ip, use_count,
	rate_limit_requests, rate_limit_window_seconds,
	revoked, revoked_at, revoked_by, revoked_reason`

func (r *apiKeysRepo) CreateAPIKey(ctx context.Context, k domain.APIKey) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO api_keys (
			id, agent_name, prefix, secret_hash, scopes, created_by, created_at,
			expires_at, rate_limit_requests, rate_limit_window_seconds
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		k.ID, k.AgentName, k.Prefix, k.SecretHash, joinScopes(k.Scopes),
		k.CreatedBy, k.CreatedAt.UTC(), mapOptionalTime(k.ExpiresAt),
		k.RateLimitRequests, int64(k.RateLimitWindow/time.Second),
	)
	return mapConflict(err)
}

func (r *apiKeysRepo) GetAPIKeyByID(ctx context.Context, id string) (domain.APIKey, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE id = ?`, id)
	return scanAPIKey(row)
}

func (r *apiKeysRepo) GetAPIKeyByHash(ctx context.Context, hash string) (domain.APIKey, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE secret_hash = ?`, hash)
	return scanAPIKey(row)
}

func (r *apiKeysRepo) ListAPIKeys(ctx context.Context, f domain.APIKeyFilter) ([]domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE 1 = 1`
	var args []any
	if f.AgentName != "" {
		query += ` AND agent_name = ?`
		args = append(args, f.AgentName)
	}
	if !f.IncludeRevoked {
		query += ` AND revoked = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *apiKeysRepo) RevokeAPIKey(ctx context.Context, id, by, reason string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE api_keys
		SET revoked = 1, revoked_at = ?, revoked_by = ?, revoked_reason = ?
		WHERE id = ? AND revoked = 0`,
		time.Now().UTC(), by, reason, id,
	)
	if err != nil {
		return err
	}
	return requireRowsAffected(res)
}

// RecordAPIKeyUsage inserts a usage row only while the key is under its
// quota. The count and the insert are a single statement, so concurrent
// requests serialize on the database and the quota cannot be oversubscribed.
func (r *apiKeysRepo) RecordAPIKeyUsage(ctx context.Context, u domain.APIKeyUsage, limit int, window time.Duration) error {
	windowStart := u.UsedAt.Add(-window).UTC()

	res, err := r.q.ExecContext(ctx, `
		INSERT INTO api_key_usage (id, key_id, ip, endpoint, method, used_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE (
			SELECT COUNT(*) FROM api_key_usage
			WHERE key_id = ? AND used_at > ?
		) < ?`,
		u.ID, u.KeyID, u.IP, u.Endpoint, u.Method, u.UsedAt.UTC(),
		u.KeyID, windowStart, limit,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrQuotaExceeded
	}

	_, err = r.q.ExecContext(ctx, `
		UPDATE api_keys
		SET use_count = use_count + 1, last_used_at = ?, last_used_ip = ?
		WHERE id = ?`,
		u.UsedAt.UTC(), u.IP, u.KeyID,
	)
	return err
}

func (r *apiKeysRepo) ListAPIKeyUsage(ctx context.Context, keyID string, limit int) ([]domain.APIKeyUsage, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, key_id, ip, endpoint, method, used_at
		FROM api_key_usage
		WHERE key_id = ?
		ORDER BY used_at DESC
		LIMIT ?`,
		keyID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.APIKeyUsage
	for rows.Next() {
		var u domain.APIKeyUsage
		if err := rows.Scan(&u.ID, &u.KeyID, &u.IP, &u.Endpoint, &u.Method, &u.UsedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *apiKeysRepo) DeleteStaleAPIKeyUsage(ctx context.Context, cutoff time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM api_key_usage WHERE used_at <= ?`, cutoff.UTC())
	return err
}

func scanAPIKey(row rowScanner) (domain.APIKey, error) {
	var (
		k             domain.APIKey
		scopes        string
		expiresAt     sql.NullTime
		lastUsedAt    sql.NullTime
		revokedAt     sql.NullTime
		windowSeconds int64
	)
	err := row.Scan(
		&k.ID, &k.AgentName, &k.Prefix, &k.SecretHash, &scopes, &k.CreatedBy, &k.CreatedAt,
		&expiresAt, &lastUsedAt, &k.LastUsedIP, &k.UseCount,
		&k.RateLimitRequests, &windowSeconds,
		&k.Revoked, &revokedAt, &k.RevokedBy, &k.RevokedReason,
	)
	if err != nil {
		return domain.APIKey{}, mapNotFound(err)
	}
	k.Scopes = splitScopes(scopes)
	k.ExpiresAt = mapNullTimePtr(expiresAt)
	k.LastUsedAt = mapNullTimePtr(lastUsedAt)
	k.RevokedAt = mapNullTimePtr(revokedAt)
	k.RateLimitWindow = time.Duration(windowSeconds) * time.Second
	return k, nil
}
