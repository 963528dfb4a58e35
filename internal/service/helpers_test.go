package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/clock"
	"github.com/segyhp/pawn-engine/internal/config"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/logger"
	"github.com/segyhp/pawn-engine/internal/repository/memory"
	"github.com/segyhp/pawn-engine/internal/statemachine"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			MaxLoanToValue:          "0.70",
			OverdueGraceDays:        30,
			DefaultLoanDurationDays: 30,
			DefaultGracePeriodDays:  7,
			UpcomingWindowDays:      7,
			DefaultPenaltyRate:      "1",
		},
	}
}

type env struct {
	store      *memory.Store
	clock      *clock.Fixed
	loans      *LoanService
	repayments *RepaymentService

	customerID uuid.UUID
	branchID   uuid.UUID
	currencyID uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := memory.NewStore()
	clk := clock.NewFixed(testNow)
	log := logger.Discard()
	machine := statemachine.NewMachine(store, clk, 30, nil, log)

	e := &env{
		store:      store,
		clock:      clk,
		loans:      NewLoanService(store, machine, clk, nil, testConfig(), nil, log),
		repayments: NewRepaymentService(store, machine, clk, nil, log),
		customerID: uuid.New(),
		branchID:   uuid.New(),
		currencyID: uuid.New(),
	}
	store.AddCustomer(e.customerID)
	store.AddBranch(e.branchID)
	store.AddCurrency(e.currencyID)
	return e
}

func (e *env) addCollateral(t *testing.T, value string) *domain.CollateralItem {
	t.Helper()
	item := &domain.CollateralItem{
		ID:             uuid.New(),
		CustomerID:     e.customerID,
		ItemType:       "GOLD",
		Description:    "22k gold necklace",
		EstimatedValue: decimal.RequireFromString(value),
		Status:         domain.CollateralAvailable,
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}
	require.NoError(t, e.store.Collaterals().Create(context.Background(), item))
	return item
}

func (e *env) collateralStatus(t *testing.T, id uuid.UUID) domain.CollateralStatus {
	t.Helper()
	item, err := e.store.Collaterals().GetByID(context.Background(), id)
	require.NoError(t, err)
	return item.Status
}

func (e *env) loanRequest(collateralID uuid.UUID, amount string) *domain.CreateLoanRequest {
	return &domain.CreateLoanRequest{
		CustomerID:   e.customerID,
		CollateralID: collateralID,
		BranchID:     e.branchID,
		CurrencyID:   e.currencyID,
		LoanAmount:   decimal.RequireFromString(amount),
		InterestRate: decimal.NewNullDecimal(decimal.NewFromInt(10)),
	}
}

func (e *env) createLoan(t *testing.T, amount string) *domain.Loan {
	t.Helper()
	collateral := e.addCollateral(t, "2000")
	loan, err := e.loans.CreateLoan(context.Background(), e.loanRequest(collateral.ID, amount))
	require.NoError(t, err)
	return loan
}

func (e *env) payment(loanID uuid.UUID, principal, interest, penalty string) *domain.CreateRepaymentRequest {
	p := decimal.RequireFromString(principal)
	i := decimal.RequireFromString(interest)
	pen := decimal.RequireFromString(penalty)
	return &domain.CreateRepaymentRequest{
		LoanID:        loanID,
		PaidAmount:    p.Add(i).Add(pen),
		PrincipalPaid: p,
		InterestPaid:  i,
		PenaltyPaid:   pen,
		CurrencyID:    e.currencyID,
		PaymentMethod: "CASH",
		PaymentType:   "INSTALLMENT",
		ReceivedBy:    "teller-01",
	}
}
