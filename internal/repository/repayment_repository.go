package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/shopspring/decimal"
)

const repaymentColumns = `r.id, r.loan_id, r.payment_date, r.paid_amount, r.principal_paid, r.interest_paid,
	r.penalty_paid, r.remaining_principal, r.currency_id, r.payment_method, r.payment_type, r.received_by, r.created_at`

type repaymentRepository struct {
	db sqlx.ExtContext
}

func NewRepaymentRepository(db *sqlx.DB) RepaymentRepository {
	return &repaymentRepository{db: db}
}

func (r *repaymentRepository) Create(ctx context.Context, repayment *domain.Repayment) error {
	query := `
		INSERT INTO repayments (id, loan_id, payment_date, paid_amount, principal_paid, interest_paid,
		                        penalty_paid, remaining_principal, currency_id, payment_method, payment_type,
		                        received_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		repayment.ID,
		repayment.LoanID,
		repayment.PaymentDate,
		repayment.PaidAmount,
		repayment.PrincipalPaid,
		repayment.InterestPaid,
		repayment.PenaltyPaid,
		repayment.RemainingPrincipal,
		repayment.CurrencyID,
		repayment.PaymentMethod,
		repayment.PaymentType,
		repayment.ReceivedBy,
		repayment.CreatedAt,
	)

	return err
}

func (r *repaymentRepository) SumPaidByLoan(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(paid_amount), 0) FROM repayments WHERE loan_id = $1`

	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, r.db, &total, query, loanID); err != nil {
		return decimal.Zero, err
	}

	return total, nil
}

func (r *repaymentRepository) FindByLoan(ctx context.Context, loanID uuid.UUID) ([]*domain.Repayment, error) {
	query := `
		SELECT ` + repaymentColumns + `
		FROM repayments r
		WHERE r.loan_id = $1
		ORDER BY r.payment_date, r.created_at
	`
	return r.selectRepayments(ctx, query, loanID)
}

func (r *repaymentRepository) FindByDateRange(ctx context.Context, start, end time.Time) ([]*domain.Repayment, error) {
	query := `
		SELECT ` + repaymentColumns + `
		FROM repayments r
		WHERE r.payment_date::date >= $1::date AND r.payment_date::date <= $2::date
		ORDER BY r.payment_date, r.created_at
	`
	return r.selectRepayments(ctx, query, start, end)
}

func (r *repaymentRepository) FindByCustomerBetween(ctx context.Context, customerID uuid.UUID, start, end time.Time) ([]*domain.Repayment, error) {
	query := `
		SELECT ` + repaymentColumns + `
		FROM repayments r
		JOIN loans l ON l.id = r.loan_id
		WHERE l.customer_id = $1 AND r.payment_date::date >= $2::date AND r.payment_date::date <= $3::date
		ORDER BY r.payment_date, r.created_at
	`
	return r.selectRepayments(ctx, query, customerID, start, end)
}

func (r *repaymentRepository) FindByBranchAndDate(ctx context.Context, branchID uuid.UUID, date time.Time) ([]*domain.Repayment, error) {
	query := `
		SELECT ` + repaymentColumns + `
		FROM repayments r
		JOIN loans l ON l.id = r.loan_id
		WHERE l.branch_id = $1 AND r.payment_date::date = $2::date
		ORDER BY r.payment_date, r.created_at
	`
	return r.selectRepayments(ctx, query, branchID, date)
}

func (r *repaymentRepository) selectRepayments(ctx context.Context, query string, args ...interface{}) ([]*domain.Repayment, error) {
	var repayments []*domain.Repayment
	if err := sqlx.SelectContext(ctx, r.db, &repayments, query, args...); err != nil {
		return nil, err
	}
	return repayments, nil
}
