package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Business logic constants
const (
	ScheduleStatusPending = "PENDING"
)

// PaymentScheduleItem is one projected installment. It is derived from the loan terms and never persisted.
type PaymentScheduleItem struct {
	InstallmentNumber int             `json:"installment_number"`
	DueDate           time.Time       `json:"due_date"`
	AmountDue         decimal.Decimal `json:"amount_due"`
	PrincipalAmount   decimal.Decimal `json:"principal_amount"`
	InterestAmount    decimal.Decimal `json:"interest_amount"`
	RemainingBalance  decimal.Decimal `json:"remaining_balance"`
	Status            string          `json:"status"`
}

type ScheduleResponse struct {
	LoanID   uuid.UUID             `json:"loan_id"`
	LoanCode string                `json:"loan_code"`
	Schedule []PaymentScheduleItem `json:"schedule"`
}
