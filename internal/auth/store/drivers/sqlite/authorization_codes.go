package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
)

type authorizationCodesRepo struct {
	q dbtx
}

const authorizationCodeColumns = `id, client_id, subject_id, code_hash, redirect_uri, scopes,
	code_challenge, code_challenge_method, issued_at, expires_at, used_at`

func (r *authorizationCodesRepo) CreateAuthorizationCode(ctx context.Context, c domain.AuthorizationCode) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO authorization_codes (
			id, client_id, subject_id, code_hash, redirect_uri, scopes,
			code_challenge, code_challenge_method, issued_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ClientID, c.SubjectID, c.CodeHash, c.RedirectURI, joinScopes(c.Scopes),
		c.CodeChallenge, c.CodeChallengeMethod, c.IssuedAt.UTC(), c.ExpiresAt.UTC(),
	)
	return mapConflict(err)
}

func (r *authorizationCodesRepo) GetAuthorizationCodeByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+authorizationCodeColumns+` FROM authorization_codes WHERE code_hash = ?`, hash)
	return scanAuthorizationCode(row)
}

// ConsumeAuthorizationCode marks a code used with one conditional update.
// Only the first caller sees a row change; every other concurrent exchange
// of the same code gets ErrNotFound.
func (r *authorizationCodesRepo) ConsumeAuthorizationCode(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE authorization_codes
		SET used_at = ?
		WHERE id = ? AND used_at IS NULL`,
		at.UTC(), id,
	)
	if err != nil {
		return err
	}
	return requireRowsAffected(res)
}

func (r *authorizationCodesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM authorization_codes
		WHERE expires_at <= ? OR used_at IS NOT NULL`,
		time.Now().UTC(),
	)
	return err
}

func scanAuthorizationCode(row rowScanner) (domain.AuthorizationCode, error) {
	var (
		c      domain.AuthorizationCode
		scopes string
		usedAt sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.ClientID, &c.SubjectID, &c.CodeHash, &c.RedirectURI, &scopes,
		&c.CodeChallenge, &c.CodeChallengeMethod, &c.IssuedAt, &c.ExpiresAt, &usedAt,
	)
	if err != nil {
		return domain.AuthorizationCode{}, mapNotFound(err)
	}
	c.Scopes = splitScopes(scopes)
	c.UsedAt = mapNullTimePtr(usedAt)
	return c, nil
}
