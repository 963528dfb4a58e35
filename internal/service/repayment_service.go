package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/clock"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/metrics"
	"github.com/segyhp/pawn-engine/internal/repository"
	"github.com/segyhp/pawn-engine/internal/statemachine"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
	"github.com/segyhp/pawn-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

const defaultSummaryMonths = 12

type RepaymentService struct {
	store   repository.Store
	machine *statemachine.Machine
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewRepaymentService(
	store repository.Store,
	machine *statemachine.Machine,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) *RepaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RepaymentService{
		store:   store,
		machine: machine,
		clock:   clk,
		metrics: m,
		logger:  logger,
	}
}

// CreateRepayment records a payment and moves the loan to PARTIALLY_PAID or REDEEMED.
// The repayment row and the status change commit together.
func (s *RepaymentService) CreateRepayment(ctx context.Context, request *domain.CreateRepaymentRequest) (*domain.CreateRepaymentResponse, error) {
	// 1. Breakdown must add up exactly
	if !request.PaidAmount.IsPositive() {
		return nil, customError.WrapValidation("paid amount must be greater than 0")
	}
	if err := requireScale(
		moneyField("paid amount", request.PaidAmount),
		moneyField("principal paid", request.PrincipalPaid),
		moneyField("interest paid", request.InterestPaid),
		moneyField("penalty paid", request.PenaltyPaid),
		moneyField("remaining principal", request.RemainingPrincipal.Decimal),
	); err != nil {
		return nil, err
	}
	parts := request.PrincipalPaid.Add(request.InterestPaid).Add(request.PenaltyPaid)
	if !request.PaidAmount.Equal(parts) {
		return nil, customError.WrapInvalidPaymentBreakdown(
			request.PaidAmount.StringFixed(2),
			request.PrincipalPaid.StringFixed(2),
			request.InterestPaid.StringFixed(2),
			request.PenaltyPaid.StringFixed(2),
		)
	}

	var response *domain.CreateRepaymentResponse
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		// 2. Loan must exist and accept payments
		loan, err := tx.Loans().GetByID(ctx, request.LoanID)
		if err != nil {
			return storeError(err, "Loan", request.LoanID)
		}
		if !loan.Status.AcceptsPayments() {
			return customError.WrapLoanNotActive(loan.LoanCode, string(loan.Status))
		}

		ok, err := tx.Currencies().Exists(ctx, request.CurrencyID)
		if err := requireExists(ok, err, "Currency", request.CurrencyID); err != nil {
			return err
		}

		// 3. Cumulative payments may not pass the amount fixed at creation
		history, err := tx.Repayments().FindByLoan(ctx, loan.ID)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}
		alreadyPaid, principalPaid := decimal.Zero, decimal.Zero
		for _, r := range history {
			alreadyPaid = alreadyPaid.Add(r.PaidAmount)
			principalPaid = principalPaid.Add(r.PrincipalPaid)
		}
		if alreadyPaid.Add(request.PaidAmount).GreaterThan(loan.TotalPayableAmount) {
			return customError.WrapPaymentExceedsTotal(
				loan.TotalPayableAmount.StringFixed(2),
				alreadyPaid.StringFixed(2),
				request.PaidAmount.StringFixed(2),
			)
		}

		// 4. Append to the log
		repayment := s.buildRepayment(request, loan, principalPaid)
		if err := tx.Repayments().Create(ctx, repayment); err != nil {
			return customError.WrapDatabaseError(err)
		}

		// 5. Drive the lifecycle from the recomputed total
		cumulative, err := tx.Repayments().SumPaidByLoan(ctx, loan.ID)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}

		event := domain.EventPartialPayment
		if cumulative.GreaterThanOrEqual(loan.TotalPayableAmount) {
			event = domain.EventFullPayment
		}

		updated, err := s.machine.TransitionTx(ctx, tx, loan, event)
		if err != nil {
			return err
		}

		response = &domain.CreateRepaymentResponse{
			Repayment: repayment,
			Loan:      updated,
			TotalPaid: cumulative.StringFixed(2),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Repayment(request.PaidAmount.InexactFloat64())
	s.logger.InfoContext(ctx, "repayment recorded",
		"loan_code", response.Loan.LoanCode,
		"paid_amount", request.PaidAmount.StringFixed(2),
		"total_paid", response.TotalPaid,
		"status", response.Loan.Status)

	return response, nil
}

func (s *RepaymentService) buildRepayment(request *domain.CreateRepaymentRequest, loan *domain.Loan, principalPaidBefore decimal.Decimal) *domain.Repayment {
	now := s.clock.Now()

	paymentDate := now
	if request.PaymentDate != nil {
		paymentDate = *request.PaymentDate
	}

	remaining := request.RemainingPrincipal.Decimal
	if !request.RemainingPrincipal.Valid {
		remaining = utils.MaxDecimal(loan.LoanAmount.Sub(principalPaidBefore).Sub(request.PrincipalPaid), decimal.Zero)
	}

	return &domain.Repayment{
		ID:                 uuid.New(),
		LoanID:             loan.ID,
		PaymentDate:        paymentDate,
		PaidAmount:         request.PaidAmount,
		PrincipalPaid:      request.PrincipalPaid,
		InterestPaid:       request.InterestPaid,
		PenaltyPaid:        request.PenaltyPaid,
		RemainingPrincipal: remaining,
		CurrencyID:         request.CurrencyID,
		PaymentMethod:      request.PaymentMethod,
		PaymentType:        request.PaymentType,
		ReceivedBy:         request.ReceivedBy,
		CreatedAt:          now,
	}
}

// GetTotalPaid returns the sum of all repayments recorded for a loan
func (s *RepaymentService) GetTotalPaid(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	if _, err := s.store.Loans().GetByID(ctx, loanID); err != nil {
		return decimal.Zero, storeError(err, "Loan", loanID)
	}
	total, err := s.store.Repayments().SumPaidByLoan(ctx, loanID)
	if err != nil {
		return decimal.Zero, customError.WrapDatabaseError(err)
	}
	return total, nil
}

func (s *RepaymentService) GetRepaymentHistory(ctx context.Context, loanID uuid.UUID) ([]*domain.Repayment, error) {
	if _, err := s.store.Loans().GetByID(ctx, loanID); err != nil {
		return nil, storeError(err, "Loan", loanID)
	}
	repayments, err := s.store.Repayments().FindByLoan(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return repayments, nil
}

// GetRepaymentsByDateRange lists repayments with start <= payment date <= end
func (s *RepaymentService) GetRepaymentsByDateRange(ctx context.Context, start, end time.Time) ([]*domain.Repayment, error) {
	if end.Before(start) {
		return nil, customError.WrapValidation("end date must not be before start date")
	}
	repayments, err := s.store.Repayments().FindByDateRange(ctx, start, end)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return repayments, nil
}

// GetCustomerSummary aggregates a customer's repayments over the trailing months, current month included
func (s *RepaymentService) GetCustomerSummary(ctx context.Context, customerID uuid.UUID, months int) (*domain.CustomerRepaymentSummary, error) {
	if months <= 0 {
		months = defaultSummaryMonths
	}

	ok, err := s.store.Customers().Exists(ctx, customerID)
	if err := requireExists(ok, err, "Customer", customerID); err != nil {
		return nil, err
	}

	end := clock.Today(s.clock)
	start := utils.FirstOfMonth(end).AddDate(0, -(months - 1), 0)

	repayments, err := s.store.Repayments().FindByCustomerBetween(ctx, customerID, start, end)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	summary := &domain.CustomerRepaymentSummary{
		CustomerID:      customerID,
		StartDate:       start,
		EndDate:         end,
		TotalRepayments: len(repayments),
		TotalPaidAmount: decimal.Zero,
		TotalPrincipal:  decimal.Zero,
		TotalInterest:   decimal.Zero,
		TotalPenalty:    decimal.Zero,
		MonthlyTotals:   make(map[string]decimal.Decimal),
	}
	for _, r := range repayments {
		summary.TotalPaidAmount = summary.TotalPaidAmount.Add(r.PaidAmount)
		summary.TotalPrincipal = summary.TotalPrincipal.Add(r.PrincipalPaid)
		summary.TotalInterest = summary.TotalInterest.Add(r.InterestPaid)
		summary.TotalPenalty = summary.TotalPenalty.Add(r.PenaltyPaid)

		month := r.PaymentDate.Format("2006-01")
		summary.MonthlyTotals[month] = summary.MonthlyTotals[month].Add(r.PaidAmount)
	}

	return summary, nil
}

// GetDailyCollection totals one branch's repayments for one calendar day
func (s *RepaymentService) GetDailyCollection(ctx context.Context, branchID uuid.UUID, date time.Time) (*domain.DailyCollectionReport, error) {
	ok, err := s.store.Branches().Exists(ctx, branchID)
	if err := requireExists(ok, err, "Branch", branchID); err != nil {
		return nil, err
	}

	day := utils.StartOfDay(date)
	repayments, err := s.store.Repayments().FindByBranchAndDate(ctx, branchID, day)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	report := &domain.DailyCollectionReport{
		Date:                 day,
		BranchID:             branchID,
		TotalCollection:      decimal.Zero,
		TotalPrincipal:       decimal.Zero,
		TotalInterest:        decimal.Zero,
		TotalPenalty:         decimal.Zero,
		NumberOfTransactions: len(repayments),
	}
	for _, r := range repayments {
		report.TotalCollection = report.TotalCollection.Add(r.PaidAmount)
		report.TotalPrincipal = report.TotalPrincipal.Add(r.PrincipalPaid)
		report.TotalInterest = report.TotalInterest.Add(r.InterestPaid)
		report.TotalPenalty = report.TotalPenalty.Add(r.PenaltyPaid)
	}

	return report, nil
}
