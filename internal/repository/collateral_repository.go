package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/segyhp/pawn-engine/internal/domain"
)

type collateralRepository struct {
	db sqlx.ExtContext
}

func NewCollateralRepository(db *sqlx.DB) CollateralRepository {
	return &collateralRepository{db: db}
}

func (r *collateralRepository) Create(ctx context.Context, item *domain.CollateralItem) error {
	query := `
		INSERT INTO collateral_items (id, customer_id, item_type, description, estimated_value, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	item.Version = 1
	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.CustomerID,
		item.ItemType,
		item.Description,
		item.EstimatedValue,
		item.Status,
		item.Version,
		item.CreatedAt,
		item.UpdatedAt,
	)

	return err
}

func (r *collateralRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CollateralItem, error) {
	query := `
		SELECT id, customer_id, item_type, description, estimated_value, status, version, created_at, updated_at
		FROM collateral_items
		WHERE id = $1
	`

	var item domain.CollateralItem
	if err := sqlx.GetContext(ctx, r.db, &item, query, id); err != nil {
		return nil, notFound(err)
	}

	return &item, nil
}

func (r *collateralRepository) Save(ctx context.Context, item *domain.CollateralItem) error {
	query := `
		UPDATE collateral_items
		SET status = $3, updated_at = $4, version = version + 1
		WHERE id = $1 AND version = $2
	`

	res, err := r.db.ExecContext(ctx, query, item.ID, item.Version, item.Status, item.UpdatedAt)
	if err != nil {
		return err
	}
	if err := expectOneRow(res); err != nil {
		return err
	}

	item.Version++
	return nil
}
