package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nveliz/tienda-backend/internal/domain/user"
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	db querier
}

// Get returns the user with the given id.
func (r *UserRepository) Get(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var (
		u    user.User
		role string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, name, role, enabled, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &role, &u.Enabled, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, errors.Wrap(err, "query user")
	}

	u.Role = user.ToRole(role)
	return &u, nil
}
