package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CollateralStatus is the availability of a pawned object
type CollateralStatus string

const (
	CollateralAvailable CollateralStatus = "AVAILABLE"
	CollateralPawned    CollateralStatus = "PAWNED"
	CollateralForfeited CollateralStatus = "FORFEITED"
	CollateralDeleted   CollateralStatus = "DELETED"
)

// CollateralItem is the physical object pledged against a loan
type CollateralItem struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	CustomerID     uuid.UUID        `json:"customer_id" db:"customer_id"`
	ItemType       string           `json:"item_type" db:"item_type"`
	Description    string           `json:"description" db:"description"`
	EstimatedValue decimal.Decimal  `json:"estimated_value" db:"estimated_value"`
	Status         CollateralStatus `json:"status" db:"status"`
	Version        int64            `json:"version" db:"version"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}
