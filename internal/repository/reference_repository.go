package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// referenceRepository answers existence checks against master-data tables
type referenceRepository struct {
	db    sqlx.ExtContext
	table string
}

func (r *referenceRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	// table is fixed by the store accessors, never caller input
	query := `SELECT EXISTS(SELECT 1 FROM ` + r.table + ` WHERE id = $1)`

	var exists bool
	if err := sqlx.GetContext(ctx, r.db, &exists, query, id); err != nil {
		return false, err
	}

	return exists, nil
}
