package postgres

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/nveliz/tienda-backend/internal/domain/audit"
)

var _ audit.Sink = (*AuditRepository)(nil)

// AuditRepository implements audit.Sink backed by PostgreSQL.
type AuditRepository struct {
	db querier
}

// Insert appends one audit entry.
func (r *AuditRepository) Insert(ctx context.Context, e audit.Entry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_log (actor_id, action, detail, created_at)
		 VALUES ($1, $2, $3, $4)`,
		e.ActorID, e.Action, e.Detail, e.CreatedAt)
	return errors.Wrap(err, "insert audit entry")
}
