package sqlite

import (
	"context"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
)

type operatorsRepo struct {
	q dbtx
}

const operatorColumns = `id, username, password_hash, role, created_at, updated_at`

func (r *operatorsRepo) CreateOperator(ctx context.Context, o domain.Operator) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO operators (id, username, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.Username, o.PasswordHash, o.Role, o.CreatedAt.UTC(), o.UpdatedAt.UTC(),
	)
	return mapConflict(err)
}

func (r *operatorsRepo) GetOperatorByID(ctx context.Context, id string) (domain.Operator, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE id = ?`, id)
	return scanOperator(row)
}

func (r *operatorsRepo) GetOperatorByUsername(ctx context.Context, username string) (domain.Operator, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE username = ?`, username)
	return scanOperator(row)
}

func (r *operatorsRepo) UpdateOperatorRole(ctx context.Context, id, role string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE operators SET role = ?, updated_at = ? WHERE id = ?`,
		role, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return requireRowsAffected(res)
}

func (r *operatorsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM operators`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperator(row rowScanner) (domain.Operator, error) {
	var o domain.Operator
	err := row.Scan(&o.ID, &o.Username, &o.PasswordHash, &o.Role, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Operator{}, mapNotFound(err)
	}
	return o, nil
}
