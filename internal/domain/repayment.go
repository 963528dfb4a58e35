package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repayment is one immutable payment event against a loan
type Repayment struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	LoanID             uuid.UUID       `json:"loan_id" db:"loan_id"`
	PaymentDate        time.Time       `json:"payment_date" db:"payment_date"`
	PaidAmount         decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	PrincipalPaid      decimal.Decimal `json:"principal_paid" db:"principal_paid"`
	InterestPaid       decimal.Decimal `json:"interest_paid" db:"interest_paid"`
	PenaltyPaid        decimal.Decimal `json:"penalty_paid" db:"penalty_paid"`
	RemainingPrincipal decimal.Decimal `json:"remaining_principal" db:"remaining_principal"`
	CurrencyID         uuid.UUID       `json:"currency_id" db:"currency_id"`
	PaymentMethod      string          `json:"payment_method" db:"payment_method"`
	PaymentType        string          `json:"payment_type" db:"payment_type"`
	ReceivedBy         string          `json:"received_by" db:"received_by"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

type CreateRepaymentRequest struct {
	LoanID             uuid.UUID           `json:"loan_id" validate:"required"`
	PaidAmount         decimal.Decimal     `json:"paid_amount" validate:"decimal_gt=0,decimal_scale=2"`
	PrincipalPaid      decimal.Decimal     `json:"principal_paid" validate:"decimal_gte=0,decimal_scale=2"`
	InterestPaid       decimal.Decimal     `json:"interest_paid" validate:"decimal_gte=0,decimal_scale=2"`
	PenaltyPaid        decimal.Decimal     `json:"penalty_paid" validate:"decimal_gte=0,decimal_scale=2"`
	RemainingPrincipal decimal.NullDecimal `json:"remaining_principal" validate:"omitempty,decimal_gte=0,decimal_scale=2"`
	PaymentDate        *time.Time          `json:"payment_date"`
	CurrencyID         uuid.UUID           `json:"currency_id" validate:"required"`
	PaymentMethod      string              `json:"payment_method" validate:"required,max=50"`
	PaymentType        string              `json:"payment_type" validate:"required,max=50"`
	ReceivedBy         string              `json:"received_by" validate:"required,max=100"`
}

type CreateRepaymentResponse struct {
	Repayment *Repayment `json:"repayment"`
	Loan      *Loan      `json:"loan"`
	TotalPaid string     `json:"total_paid"`
}

// CustomerRepaymentSummary aggregates a customer's repayments over a trailing window
type CustomerRepaymentSummary struct {
	CustomerID      uuid.UUID                  `json:"customer_id"`
	StartDate       time.Time                  `json:"start_date"`
	EndDate         time.Time                  `json:"end_date"`
	TotalRepayments int                        `json:"total_repayments"`
	TotalPaidAmount decimal.Decimal            `json:"total_paid_amount"`
	TotalPrincipal  decimal.Decimal            `json:"total_principal"`
	TotalInterest   decimal.Decimal            `json:"total_interest"`
	TotalPenalty    decimal.Decimal            `json:"total_penalty"`
	MonthlyTotals   map[string]decimal.Decimal `json:"monthly_totals"`
}

// DailyCollectionReport aggregates one branch's collections for one day
type DailyCollectionReport struct {
	Date                 time.Time       `json:"date"`
	BranchID             uuid.UUID       `json:"branch_id"`
	TotalCollection      decimal.Decimal `json:"total_collection"`
	TotalPrincipal       decimal.Decimal `json:"total_principal"`
	TotalInterest        decimal.Decimal `json:"total_interest"`
	TotalPenalty         decimal.Decimal `json:"total_penalty"`
	NumberOfTransactions int             `json:"number_of_transactions"`
}
