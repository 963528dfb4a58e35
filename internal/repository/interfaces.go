package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a lookup matches no record
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned by Save when the stored version differs from the caller's
	ErrVersionConflict = errors.New("version conflict")
)

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create inserts a new loan at version 1
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its internal ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// GetByCode retrieves a loan by its human-readable code
	GetByCode(ctx context.Context, code string) (*domain.Loan, error)

	// FindByStatus lists loans in the given status
	FindByStatus(ctx context.Context, status domain.LoanStatus) ([]*domain.Loan, error)

	// FindByCustomer lists a customer's loans, newest first
	FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Loan, error)

	// FindDueBetween lists loans with start <= due date <= end, optionally restricted to statuses
	FindDueBetween(ctx context.Context, start, end time.Time, statuses ...domain.LoanStatus) ([]*domain.Loan, error)

	// FindDueOnOrBefore lists loans due on or before date, optionally restricted to statuses
	FindDueOnOrBefore(ctx context.Context, date time.Time, statuses ...domain.LoanStatus) ([]*domain.Loan, error)

	// FindGraceExpired lists OVERDUE loans whose grace period ended on or before date
	FindGraceExpired(ctx context.Context, date time.Time) ([]*domain.Loan, error)

	// FindDefaultedBetween lists DEFAULTED loans whose default date falls in [start, end]
	FindDefaultedBetween(ctx context.Context, start, end time.Time) ([]*domain.Loan, error)

	// Save persists lifecycle fields when loan.Version matches the stored version, then bumps it
	Save(ctx context.Context, loan *domain.Loan) error
}

// CollateralRepository defines the interface for collateral item data operations
type CollateralRepository interface {
	Create(ctx context.Context, item *domain.CollateralItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CollateralItem, error)

	// Save persists the status when item.Version matches the stored version, then bumps it
	Save(ctx context.Context, item *domain.CollateralItem) error
}

// RepaymentRepository defines the interface for repayment data operations
type RepaymentRepository interface {
	// Create appends a repayment to the log
	Create(ctx context.Context, repayment *domain.Repayment) error

	// SumPaidByLoan returns the total paid amount for a loan, zero when none
	SumPaidByLoan(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error)

	// FindByLoan lists a loan's repayments ordered by payment date
	FindByLoan(ctx context.Context, loanID uuid.UUID) ([]*domain.Repayment, error)

	// FindByDateRange lists repayments with start <= payment date <= end
	FindByDateRange(ctx context.Context, start, end time.Time) ([]*domain.Repayment, error)

	// FindByCustomerBetween lists a customer's repayments with start <= payment date <= end
	FindByCustomerBetween(ctx context.Context, customerID uuid.UUID, start, end time.Time) ([]*domain.Repayment, error)

	// FindByBranchAndDate lists repayments on loans of a branch made on date
	FindByBranchAndDate(ctx context.Context, branchID uuid.UUID, date time.Time) ([]*domain.Repayment, error)
}

// ReferenceRepository checks master data owned by another system
type ReferenceRepository interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Store groups the repositories the lifecycle core touches and scopes them to a unit of work
type Store interface {
	Loans() LoanRepository
	Collaterals() CollateralRepository
	Repayments() RepaymentRepository
	Customers() ReferenceRepository
	Branches() ReferenceRepository
	Currencies() ReferenceRepository

	// WithTx runs fn against a transactional view of the store. Writes made through tx commit
	// together when fn returns nil and are discarded otherwise. Nested calls join the outer unit.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
