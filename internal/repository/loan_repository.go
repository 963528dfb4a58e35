package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/segyhp/pawn-engine/internal/domain"
)

const loanColumns = `id, loan_code, customer_id, collateral_id, currency_id, branch_id,
	loan_amount, interest_rate, storage_fee, penalty_rate, total_payable_amount, installment_amount,
	payment_frequency, number_of_installments, loan_duration_days, grace_period_days,
	loan_date, due_date, redemption_deadline, grace_period_end_date,
	status, version, notes, created_at, updated_at, redeemed_at, defaulted_at, overdue_at`

type loanRepository struct {
	db sqlx.ExtContext
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
	`

	loan.Version = 1
	_, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.LoanCode,
		loan.CustomerID,
		loan.CollateralID,
		loan.CurrencyID,
		loan.BranchID,
		loan.LoanAmount,
		loan.InterestRate,
		loan.StorageFee,
		loan.PenaltyRate,
		loan.TotalPayableAmount,
		loan.InstallmentAmount,
		loan.PaymentFrequency,
		loan.NumberOfInstallments,
		loan.LoanDurationDays,
		loan.GracePeriodDays,
		loan.LoanDate,
		loan.DueDate,
		loan.RedemptionDeadline,
		loan.GracePeriodEndDate,
		loan.Status,
		loan.Version,
		loan.Notes,
		loan.CreatedAt,
		loan.UpdatedAt,
		loan.RedeemedAt,
		loan.DefaultedAt,
		loan.OverdueAt,
	)

	return err
}

func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

	var loan domain.Loan
	if err := sqlx.GetContext(ctx, r.db, &loan, query, id); err != nil {
		return nil, notFound(err)
	}

	return &loan, nil
}

func (r *loanRepository) GetByCode(ctx context.Context, code string) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE loan_code = $1`

	var loan domain.Loan
	if err := sqlx.GetContext(ctx, r.db, &loan, query, code); err != nil {
		return nil, notFound(err)
	}

	return &loan, nil
}

func (r *loanRepository) FindByStatus(ctx context.Context, status domain.LoanStatus) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE status = $1 ORDER BY due_date, loan_code`
	return r.selectLoans(ctx, query, status)
}

func (r *loanRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE customer_id = $1 ORDER BY created_at DESC`
	return r.selectLoans(ctx, query, customerID)
}

func (r *loanRepository) FindDueBetween(ctx context.Context, start, end time.Time, statuses ...domain.LoanStatus) ([]*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE due_date >= $1 AND due_date <= $2
		  AND (cardinality($3::text[]) = 0 OR status = ANY($3))
		ORDER BY due_date, loan_code
	`
	return r.selectLoans(ctx, query, start, end, statusArray(statuses))
}

func (r *loanRepository) FindDueOnOrBefore(ctx context.Context, date time.Time, statuses ...domain.LoanStatus) ([]*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE due_date <= $1
		  AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY due_date, loan_code
	`
	return r.selectLoans(ctx, query, date, statusArray(statuses))
}

func (r *loanRepository) FindGraceExpired(ctx context.Context, date time.Time) ([]*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE status = 'OVERDUE' AND grace_period_end_date IS NOT NULL AND grace_period_end_date <= $1
		ORDER BY grace_period_end_date, loan_code
	`
	return r.selectLoans(ctx, query, date)
}

func (r *loanRepository) FindDefaultedBetween(ctx context.Context, start, end time.Time) ([]*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE status = 'DEFAULTED' AND defaulted_at::date >= $1::date AND defaulted_at::date <= $2::date
		ORDER BY defaulted_at, loan_code
	`
	return r.selectLoans(ctx, query, start, end)
}

// Save writes only the lifecycle columns; financial terms are immutable after creation
func (r *loanRepository) Save(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans
		SET status = $3, grace_period_end_date = $4, updated_at = $5,
		    redeemed_at = $6, defaulted_at = $7, overdue_at = $8, version = version + 1
		WHERE id = $1 AND version = $2
	`

	res, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.Version,
		loan.Status,
		loan.GracePeriodEndDate,
		loan.UpdatedAt,
		loan.RedeemedAt,
		loan.DefaultedAt,
		loan.OverdueAt,
	)
	if err != nil {
		return err
	}
	if err := expectOneRow(res); err != nil {
		return err
	}

	loan.Version++
	return nil
}

func (r *loanRepository) selectLoans(ctx context.Context, query string, args ...interface{}) ([]*domain.Loan, error) {
	var loans []*domain.Loan
	if err := sqlx.SelectContext(ctx, r.db, &loans, query, args...); err != nil {
		return nil, err
	}
	return loans, nil
}

func statusArray(statuses []domain.LoanStatus) pq.StringArray {
	out := make(pq.StringArray, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
