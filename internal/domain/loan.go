package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle stage of a pawn loan. Only the state machine changes it.
type LoanStatus string

const (
	LoanStatusCreated       LoanStatus = "CREATED"
	LoanStatusActive        LoanStatus = "ACTIVE"
	LoanStatusPartiallyPaid LoanStatus = "PARTIALLY_PAID"
	LoanStatusOverdue       LoanStatus = "OVERDUE"
	LoanStatusRedeemed      LoanStatus = "REDEEMED"
	LoanStatusDefaulted     LoanStatus = "DEFAULTED"
	LoanStatusCancelled     LoanStatus = "CANCELLED"
)

// IsTerminal reports whether no further transitions are possible
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusRedeemed || s == LoanStatusDefaulted || s == LoanStatusCancelled
}

// AcceptsPayments reports whether a repayment may be recorded against a loan in this status
func (s LoanStatus) AcceptsPayments() bool {
	return s == LoanStatusActive || s == LoanStatusPartiallyPaid || s == LoanStatusOverdue
}

// ParseLoanStatus validates a raw status string
func ParseLoanStatus(s string) (LoanStatus, bool) {
	switch st := LoanStatus(s); st {
	case LoanStatusCreated, LoanStatusActive, LoanStatusPartiallyPaid, LoanStatusOverdue,
		LoanStatusRedeemed, LoanStatusDefaulted, LoanStatusCancelled:
		return st, true
	}
	return "", false
}

// LoanEvent triggers a status transition
type LoanEvent string

const (
	EventIssueLoan          LoanEvent = "ISSUE_LOAN"
	EventPartialPayment     LoanEvent = "PARTIAL_PAYMENT"
	EventFullPayment        LoanEvent = "FULL_PAYMENT"
	EventDueDatePassed      LoanEvent = "DUE_DATE_PASSED"
	EventGracePeriodExpired LoanEvent = "GRACE_PERIOD_EXPIRED"
	EventCancel             LoanEvent = "CANCEL"
	EventManualDefault      LoanEvent = "MANUAL_DEFAULT"
	EventManualRedeem       LoanEvent = "MANUAL_REDEEM"
	EventManualCancel       LoanEvent = "MANUAL_CANCEL"
)

// AllLoanEvents lists every event in declaration order
func AllLoanEvents() []LoanEvent {
	return []LoanEvent{
		EventIssueLoan, EventPartialPayment, EventFullPayment, EventDueDatePassed,
		EventGracePeriodExpired, EventCancel, EventManualDefault, EventManualRedeem, EventManualCancel,
	}
}

// IsOperatorEvent reports whether the event may be submitted by a staff member.
// Payment and time-driven events are raised only by the allocator and the scheduler.
func (e LoanEvent) IsOperatorEvent() bool {
	switch e {
	case EventCancel, EventManualCancel, EventManualDefault, EventManualRedeem:
		return true
	}
	return false
}

// PaymentFrequency controls how the schedule is spread across installments
type PaymentFrequency string

const (
	FrequencyOneTime   PaymentFrequency = "ONE_TIME"
	FrequencyWeekly    PaymentFrequency = "WEEKLY"
	FrequencyBiWeekly  PaymentFrequency = "BI_WEEKLY"
	FrequencyMonthly   PaymentFrequency = "MONTHLY"
	FrequencyQuarterly PaymentFrequency = "QUARTERLY"
	FrequencyCustom    PaymentFrequency = "CUSTOM"
)

// Loan represents one pawn transaction
type Loan struct {
	ID           uuid.UUID `json:"id" db:"id"`
	LoanCode     string    `json:"loan_code" db:"loan_code"`
	CustomerID   uuid.UUID `json:"customer_id" db:"customer_id"`
	CollateralID uuid.UUID `json:"collateral_id" db:"collateral_id"`
	CurrencyID   uuid.UUID `json:"currency_id" db:"currency_id"`
	BranchID     uuid.UUID `json:"branch_id" db:"branch_id"`

	LoanAmount         decimal.Decimal     `json:"loan_amount" db:"loan_amount"`
	InterestRate       decimal.Decimal     `json:"interest_rate" db:"interest_rate"`
	StorageFee         decimal.Decimal     `json:"storage_fee" db:"storage_fee"`
	PenaltyRate        decimal.Decimal     `json:"penalty_rate" db:"penalty_rate"`
	TotalPayableAmount decimal.Decimal     `json:"total_payable_amount" db:"total_payable_amount"`
	InstallmentAmount  decimal.NullDecimal `json:"installment_amount" db:"installment_amount"`

	PaymentFrequency     PaymentFrequency `json:"payment_frequency" db:"payment_frequency"`
	NumberOfInstallments int              `json:"number_of_installments" db:"number_of_installments"`
	LoanDurationDays     int              `json:"loan_duration_days" db:"loan_duration_days"`
	GracePeriodDays      int              `json:"grace_period_days" db:"grace_period_days"`

	LoanDate           time.Time  `json:"loan_date" db:"loan_date"`
	DueDate            time.Time  `json:"due_date" db:"due_date"`
	RedemptionDeadline *time.Time `json:"redemption_deadline,omitempty" db:"redemption_deadline"`
	GracePeriodEndDate *time.Time `json:"grace_period_end_date,omitempty" db:"grace_period_end_date"`

	Status  LoanStatus `json:"status" db:"status"`
	Version int64      `json:"version" db:"version"`
	Notes   string     `json:"notes,omitempty" db:"notes"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	RedeemedAt  *time.Time `json:"redeemed_at,omitempty" db:"redeemed_at"`
	DefaultedAt *time.Time `json:"defaulted_at,omitempty" db:"defaulted_at"`
	OverdueAt   *time.Time `json:"overdue_at,omitempty" db:"overdue_at"`
}

// Clone returns a deep copy so that callers can mutate it without touching the original
func (l *Loan) Clone() *Loan {
	c := *l
	c.RedemptionDeadline = cloneTime(l.RedemptionDeadline)
	c.GracePeriodEndDate = cloneTime(l.GracePeriodEndDate)
	c.RedeemedAt = cloneTime(l.RedeemedAt)
	c.DefaultedAt = cloneTime(l.DefaultedAt)
	c.OverdueAt = cloneTime(l.OverdueAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	CustomerID   uuid.UUID `json:"customer_id" validate:"required"`
	CollateralID uuid.UUID `json:"collateral_id" validate:"required"`
	BranchID     uuid.UUID `json:"branch_id" validate:"required"`
	CurrencyID   uuid.UUID `json:"currency_id" validate:"required"`

	LoanAmount        decimal.Decimal     `json:"loan_amount" validate:"decimal_gt=0,decimal_scale=2"`
	InterestRate      decimal.NullDecimal `json:"interest_rate" validate:"omitempty,decimal_gte=0,decimal_scale=4"`
	StorageFee        decimal.Decimal     `json:"storage_fee" validate:"decimal_gte=0,decimal_scale=2"`
	PenaltyRate       decimal.Decimal     `json:"penalty_rate" validate:"decimal_gte=0,decimal_scale=4"`
	InstallmentAmount decimal.NullDecimal `json:"installment_amount" validate:"omitempty,decimal_gt=0,decimal_scale=2"`

	PaymentFrequency     PaymentFrequency `json:"payment_frequency" validate:"omitempty,oneof=ONE_TIME WEEKLY BI_WEEKLY MONTHLY QUARTERLY CUSTOM"`
	NumberOfInstallments int              `json:"number_of_installments" validate:"gte=0"`
	LoanDurationDays     int              `json:"loan_duration_days" validate:"gte=0"`
	GracePeriodDays      *int             `json:"grace_period_days" validate:"omitempty,gte=0"`

	LoanDate           *time.Time `json:"loan_date"`
	DueDate            *time.Time `json:"due_date"`
	RedemptionDeadline *time.Time `json:"redemption_deadline"`
	Notes              string     `json:"notes" validate:"max=500"`
}

type TransitionRequest struct {
	Event LoanEvent `json:"event" validate:"required"`
}

// LoanBalance summarises what is owed on a loan as of today
type LoanBalance struct {
	LoanID           uuid.UUID       `json:"loan_id"`
	LoanCode         string          `json:"loan_code"`
	Status           LoanStatus      `json:"status"`
	TotalPayable     decimal.Decimal `json:"total_payable"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	DueDate          time.Time       `json:"due_date"`
	IsOverdue        bool            `json:"is_overdue"`
	DaysOverdue      int             `json:"days_overdue"`
	EstimatedPenalty decimal.Decimal `json:"estimated_penalty"`
}

// Follow-up priorities for upcoming repayments
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
)

type UpcomingRepayment struct {
	LoanID             uuid.UUID       `json:"loan_id"`
	LoanCode           string          `json:"loan_code"`
	CustomerID         uuid.UUID       `json:"customer_id"`
	BranchID           uuid.UUID       `json:"branch_id"`
	Status             LoanStatus      `json:"status"`
	LoanAmount         decimal.Decimal `json:"loan_amount"`
	TotalPayableAmount decimal.Decimal `json:"total_payable_amount"`
	RemainingBalance   decimal.Decimal `json:"remaining_balance"`
	NextPaymentAmount  decimal.Decimal `json:"next_payment_amount"`
	NextPaymentDueDate time.Time       `json:"next_payment_due_date"`
	DueDate            time.Time       `json:"due_date"`
	DaysUntilDue       int             `json:"days_until_due"`
	OverdueDays        int             `json:"overdue_days"`
	FollowUpPriority   string          `json:"follow_up_priority"`
}
