package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/clock"
	"github.com/segyhp/pawn-engine/internal/config"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/metrics"
	"github.com/segyhp/pawn-engine/internal/repository"
	"github.com/segyhp/pawn-engine/internal/statemachine"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
	"github.com/segyhp/pawn-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// ScheduleCache is an optional read-through store for projected schedules
type ScheduleCache interface {
	Get(ctx context.Context, loanID uuid.UUID) ([]domain.PaymentScheduleItem, error)
	Set(ctx context.Context, loanID uuid.UUID, items []domain.PaymentScheduleItem) error
}

type LoanService struct {
	store   repository.Store
	machine *statemachine.Machine
	clock   clock.Clock
	cache   ScheduleCache
	config  *config.Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewLoanService(
	store repository.Store,
	machine *statemachine.Machine,
	clk clock.Clock,
	cache ScheduleCache,
	cfg *config.Config,
	m *metrics.Metrics,
	logger *slog.Logger,
) *LoanService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoanService{
		store:   store,
		machine: machine,
		clock:   clk,
		cache:   cache,
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
}

// CreateLoan validates the request, fixes the loan's financial terms and issues it.
// The loan is returned ACTIVE with its collateral PAWNED, or nothing is persisted.
func (s *LoanService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error) {
	if !request.LoanAmount.IsPositive() {
		return nil, customError.WrapValidation("loan amount must be greater than 0")
	}
	if err := requireScale(
		moneyField("loan amount", request.LoanAmount),
		moneyField("storage fee", request.StorageFee),
		moneyField("installment amount", request.InstallmentAmount.Decimal),
		rateField("interest rate", request.InterestRate.Decimal),
		rateField("penalty rate", request.PenaltyRate),
	); err != nil {
		return nil, err
	}

	var issued *domain.Loan
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		// 1. Reference checks in a fixed order so callers see a stable first failure
		ok, err := tx.Customers().Exists(ctx, request.CustomerID)
		if err := requireExists(ok, err, "Customer", request.CustomerID); err != nil {
			return err
		}

		collateral, err := tx.Collaterals().GetByID(ctx, request.CollateralID)
		if err != nil {
			return storeError(err, "Collateral", request.CollateralID)
		}
		if collateral.Status != domain.CollateralAvailable {
			return customError.WrapCollateralNotAvailable(collateral.ID.String(), string(collateral.Status))
		}

		ok, err = tx.Branches().Exists(ctx, request.BranchID)
		if err := requireExists(ok, err, "Branch", request.BranchID); err != nil {
			return err
		}

		ok, err = tx.Currencies().Exists(ctx, request.CurrencyID)
		if err := requireExists(ok, err, "Currency", request.CurrencyID); err != nil {
			return err
		}

		// 2. Loan-to-value ceiling
		maxAllowed := utils.RoundMoney(collateral.EstimatedValue.Mul(s.config.GetMaxLoanToValue()))
		if request.LoanAmount.GreaterThan(maxAllowed) {
			return customError.WrapLoanAmountExceedsLimit(
				request.LoanAmount.StringFixed(2),
				maxAllowed.StringFixed(2),
				collateral.EstimatedValue.StringFixed(2),
			)
		}

		if !request.InterestRate.Valid {
			return customError.WrapValidation("interest rate is required")
		}

		// 3. Persist CREATED, then issue in the same unit of work
		loan := s.buildLoan(request)
		if err := tx.Loans().Create(ctx, loan); err != nil {
			return customError.WrapDatabaseError(err)
		}

		issued, err = s.machine.TransitionTx(ctx, tx, loan, domain.EventIssueLoan)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LoanCreated()
	s.logger.InfoContext(ctx, "loan created",
		"loan_code", issued.LoanCode,
		"customer_id", issued.CustomerID,
		"loan_amount", issued.LoanAmount.StringFixed(2),
		"total_payable", issued.TotalPayableAmount.StringFixed(2))

	return issued, nil
}

func (s *LoanService) buildLoan(request *domain.CreateLoanRequest) *domain.Loan {
	now := s.clock.Now()
	biz := s.config.Business

	duration := request.LoanDurationDays
	if duration <= 0 {
		duration = biz.DefaultLoanDurationDays
	}
	grace := biz.DefaultGracePeriodDays
	if request.GracePeriodDays != nil {
		grace = *request.GracePeriodDays
	}
	frequency := request.PaymentFrequency
	if frequency == "" {
		frequency = domain.FrequencyOneTime
	}
	installments := request.NumberOfInstallments
	if installments <= 0 {
		installments = 1
	}

	loanDate := clock.Today(s.clock)
	if request.LoanDate != nil {
		loanDate = utils.StartOfDay(*request.LoanDate)
	}
	dueDate := utils.AddDays(loanDate, duration)
	if request.DueDate != nil {
		dueDate = utils.StartOfDay(*request.DueDate)
	}
	redemption := utils.AddDays(dueDate, grace)
	if request.RedemptionDeadline != nil {
		redemption = utils.StartOfDay(*request.RedemptionDeadline)
	}

	rate := request.InterestRate.Decimal
	total := utils.CalculateTotalPayable(request.LoanAmount, rate, request.StorageFee)

	installmentAmount := request.InstallmentAmount
	if !installmentAmount.Valid && frequency != domain.FrequencyOneTime && installments > 1 {
		installmentAmount = decimal.NewNullDecimal(utils.CalculateInstallmentAmount(total, installments))
	}

	return &domain.Loan{
		ID:                   uuid.New(),
		LoanCode:             generateLoanCode(now),
		CustomerID:           request.CustomerID,
		CollateralID:         request.CollateralID,
		CurrencyID:           request.CurrencyID,
		BranchID:             request.BranchID,
		LoanAmount:           request.LoanAmount,
		InterestRate:         rate,
		StorageFee:           request.StorageFee,
		PenaltyRate:          request.PenaltyRate,
		TotalPayableAmount:   total,
		InstallmentAmount:    installmentAmount,
		PaymentFrequency:     frequency,
		NumberOfInstallments: installments,
		LoanDurationDays:     duration,
		GracePeriodDays:      grace,
		LoanDate:             loanDate,
		DueDate:              dueDate,
		RedemptionDeadline:   &redemption,
		Status:               domain.LoanStatusCreated,
		Notes:                request.Notes,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// generateLoanCode returns LOAN-<last 6 digits of unix millis>-<8 upper hex chars>
func generateLoanCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("LOAN-%06d-%s", now.UnixMilli()%1_000_000, suffix)
}

func (s *LoanService) GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	loan, err := s.store.Loans().GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "Loan", id)
	}
	return loan, nil
}

func (s *LoanService) GetLoanByCode(ctx context.Context, code string) (*domain.Loan, error) {
	loan, err := s.store.Loans().GetByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, customError.NewBusinessError(customError.ErrCodeEntityNotFound,
			fmt.Sprintf("Loan with code %s not found", code), customError.ErrEntityNotFound)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

func (s *LoanService) ListByStatus(ctx context.Context, status domain.LoanStatus) ([]*domain.Loan, error) {
	loans, err := s.store.Loans().FindByStatus(ctx, status)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loans, nil
}

func (s *LoanService) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Loan, error) {
	loans, err := s.store.Loans().FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loans, nil
}

// ApplyEvent submits an operator event (cancel, manual redeem/default/cancel) against a loan.
// Payment and time-driven events are reserved for the allocator and the scheduler.
func (s *LoanService) ApplyEvent(ctx context.Context, id uuid.UUID, event domain.LoanEvent) (*domain.Loan, error) {
	if !event.IsOperatorEvent() {
		return nil, customError.WrapValidation(fmt.Sprintf("event %s cannot be submitted manually", event))
	}
	return s.machine.TransitionByID(ctx, id, event)
}

// GetPaymentSchedule projects the loan's installments, reading through the cache when configured
func (s *LoanService) GetPaymentSchedule(ctx context.Context, id uuid.UUID) (*domain.ScheduleResponse, error) {
	loan, err := s.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		items, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "schedule cache read failed", "loan_code", loan.LoanCode, "error", err)
		} else if items != nil {
			return &domain.ScheduleResponse{LoanID: loan.ID, LoanCode: loan.LoanCode, Schedule: items}, nil
		}
	}

	items := ProjectSchedule(loan)

	if s.cache != nil {
		if err := s.cache.Set(ctx, id, items); err != nil {
			s.logger.WarnContext(ctx, "schedule cache write failed", "loan_code", loan.LoanCode, "error", err)
		}
	}

	return &domain.ScheduleResponse{LoanID: loan.ID, LoanCode: loan.LoanCode, Schedule: items}, nil
}

var daysPerMonth = decimal.NewFromInt(30)

// GetLoanBalance reports what is owed today, including an estimated late penalty
func (s *LoanService) GetLoanBalance(ctx context.Context, id uuid.UUID) (*domain.LoanBalance, error) {
	loan, err := s.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}

	paid, err := s.store.Repayments().SumPaidByLoan(ctx, id)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	remaining := utils.MaxDecimal(loan.TotalPayableAmount.Sub(paid), decimal.Zero)
	balance := &domain.LoanBalance{
		LoanID:           loan.ID,
		LoanCode:         loan.LoanCode,
		Status:           loan.Status,
		TotalPayable:     loan.TotalPayableAmount,
		TotalPaid:        paid,
		RemainingBalance: remaining,
		DueDate:          loan.DueDate,
		EstimatedPenalty: decimal.Zero,
	}

	if loan.Status.IsTerminal() {
		return balance, nil
	}

	daysOverdue := utils.DaysBetween(loan.DueDate, clock.Today(s.clock))
	if daysOverdue <= 0 {
		balance.IsOverdue = loan.Status == domain.LoanStatusOverdue
		return balance, nil
	}

	balance.IsOverdue = true
	balance.DaysOverdue = daysOverdue

	monthlyRate := loan.PenaltyRate
	if !monthlyRate.IsPositive() {
		monthlyRate = s.config.GetDefaultPenaltyRate()
	}
	months := decimal.NewFromInt(int64(daysOverdue)).Div(daysPerMonth).Round(2)
	balance.EstimatedPenalty = utils.RoundMoney(utils.PercentOf(remaining, monthlyRate).Mul(months))

	return balance, nil
}

// UpcomingRepayments lists ACTIVE and PARTIALLY_PAID loans due within the next days days
func (s *LoanService) UpcomingRepayments(ctx context.Context, days int) ([]*domain.UpcomingRepayment, error) {
	if days <= 0 {
		days = s.config.Business.UpcomingWindowDays
	}

	today := clock.Today(s.clock)
	loans, err := s.store.Loans().FindDueBetween(ctx, today, utils.AddDays(today, days),
		domain.LoanStatusActive, domain.LoanStatusPartiallyPaid)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	result := make([]*domain.UpcomingRepayment, 0, len(loans))
	for _, loan := range loans {
		paid, err := s.store.Repayments().SumPaidByLoan(ctx, loan.ID)
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}

		remaining := utils.MaxDecimal(loan.TotalPayableAmount.Sub(paid), decimal.Zero)
		nextDue, nextAmount := loan.DueDate, remaining
		if item, owed, ok := nextInstallment(ProjectSchedule(loan), paid); ok {
			nextDue, nextAmount = item.DueDate, owed
		}

		daysUntil := utils.DaysBetween(today, nextDue)
		overdueDays := 0
		if daysUntil < 0 {
			overdueDays = -daysUntil
		}

		result = append(result, &domain.UpcomingRepayment{
			LoanID:             loan.ID,
			LoanCode:           loan.LoanCode,
			CustomerID:         loan.CustomerID,
			BranchID:           loan.BranchID,
			Status:             loan.Status,
			LoanAmount:         loan.LoanAmount,
			TotalPayableAmount: loan.TotalPayableAmount,
			RemainingBalance:   remaining,
			NextPaymentAmount:  nextAmount,
			NextPaymentDueDate: nextDue,
			DueDate:            loan.DueDate,
			DaysUntilDue:       daysUntil,
			OverdueDays:        overdueDays,
			FollowUpPriority:   followUpPriority(daysUntil, overdueDays),
		})
	}

	return result, nil
}

func followUpPriority(daysUntil, overdueDays int) string {
	switch {
	case overdueDays > 0 || daysUntil <= 3:
		return domain.PriorityHigh
	case daysUntil <= 7:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}
