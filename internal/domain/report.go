package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReportLoan struct {
	LoanID       uuid.UUID       `json:"loan_id"`
	LoanCode     string          `json:"loan_code"`
	CustomerID   uuid.UUID       `json:"customer_id"`
	BranchID     uuid.UUID       `json:"branch_id"`
	TotalPayable decimal.Decimal `json:"total_payable"`
	DueDate      time.Time       `json:"due_date"`
	DaysOverdue  int             `json:"days_overdue"`
	DefaultedAt  *time.Time      `json:"defaulted_at,omitempty"`
}

// OverdueReport lists every loan currently in OVERDUE status
type OverdueReport struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Loans       []ReportLoan `json:"loans"`
}

// DefaultedReport lists loans that defaulted inside [PeriodStart, PeriodEnd], both inclusive
type DefaultedReport struct {
	GeneratedAt  time.Time       `json:"generated_at"`
	PeriodStart  time.Time       `json:"period_start"`
	PeriodEnd    time.Time       `json:"period_end"`
	Loans        []ReportLoan    `json:"loans"`
	TotalPayable decimal.Decimal `json:"total_payable"`
}
