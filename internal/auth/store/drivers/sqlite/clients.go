package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
)

type clientsRepo struct {
	q dbtx
}

const clientColumns = `id, name, type, secret_hash, redirect_uris, scopes, created_by, active, created_at, updated_at`

func (r *clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO oauth_clients (
			id, name, type, secret_hash, redirect_uris, scopes, created_by, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Type, c.SecretHash,
		strings.Join(c.RedirectURIs, " "), joinScopes(c.Scopes),
		c.CreatedBy, c.Active, c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	return mapConflict(err)
}

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM oauth_clients WHERE id = ?`, id)
	return scanClient(row)
}

func (r *clientsRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM oauth_clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *clientsRepo) SetClientActive(ctx context.Context, id string, active bool) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE oauth_clients SET active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return requireRowsAffected(res)
}

func scanClient(row rowScanner) (domain.Client, error) {
	var (
		c            domain.Client
		redirectURIs string
		scopes       string
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Type, &c.SecretHash, &redirectURIs, &scopes,
		&c.CreatedBy, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}
	c.RedirectURIs = splitScopes(redirectURIs)
	c.Scopes = splitScopes(scopes)
	return c, nil
}
