package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/clock"
	"github.com/segyhp/pawn-engine/internal/config"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/logger"
	"github.com/segyhp/pawn-engine/internal/repository"
	"github.com/segyhp/pawn-engine/internal/repository/memory"
	"github.com/segyhp/pawn-engine/internal/statemachine"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishOverdue(ctx context.Context, r *domain.OverdueReport) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockPublisher) PublishDefaulted(ctx context.Context, r *domain.DefaultedReport) error {
	return m.Called(ctx, r).Error(0)
}

type fixture struct {
	store     *memory.Store
	clock     *clock.Fixed
	publisher *mockPublisher
	jobs      *Jobs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	clk := clock.NewFixed(testNow)
	log := logger.Discard()
	pub := &mockPublisher{}
	machine := statemachine.NewMachine(store, clk, 30, nil, log)

	return &fixture{
		store:     store,
		clock:     clk,
		publisher: pub,
		jobs:      NewJobs(store, machine, clk, pub, nil, log),
	}
}

// seedLoan stores a loan directly in status with its collateral already pawned
func (f *fixture) seedLoan(t *testing.T, code string, status domain.LoanStatus, due time.Time) *domain.Loan {
	t.Helper()
	ctx := context.Background()

	item := &domain.CollateralItem{
		ID:             uuid.New(),
		CustomerID:     uuid.New(),
		ItemType:       "GOLD",
		EstimatedValue: decimal.NewFromInt(2000),
		Status:         domain.CollateralPawned,
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}
	require.NoError(t, f.store.Collaterals().Create(ctx, item))

	loan := &domain.Loan{
		ID:                   uuid.New(),
		LoanCode:             code,
		CustomerID:           item.CustomerID,
		CollateralID:         item.ID,
		CurrencyID:           uuid.New(),
		BranchID:             uuid.New(),
		LoanAmount:           decimal.NewFromInt(1000),
		InterestRate:         decimal.NewFromInt(10),
		TotalPayableAmount:   decimal.NewFromInt(1100),
		PaymentFrequency:     domain.FrequencyOneTime,
		NumberOfInstallments: 1,
		LoanDurationDays:     30,
		LoanDate:             due.AddDate(0, 0, -30),
		DueDate:              due,
		Status:               status,
		CreatedAt:            testNow,
		UpdatedAt:            testNow,
	}
	require.NoError(t, f.store.Loans().Create(ctx, loan))
	return loan
}

func (f *fixture) loan(t *testing.T, id uuid.UUID) *domain.Loan {
	t.Helper()
	loan, err := f.store.Loans().GetByID(context.Background(), id)
	require.NoError(t, err)
	return loan
}

func (f *fixture) collateralStatus(t *testing.T, id uuid.UUID) domain.CollateralStatus {
	t.Helper()
	item, err := f.store.Collaterals().GetByID(context.Background(), id)
	require.NoError(t, err)
	return item.Status
}

func TestDetectOverdueLoans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pastDue := f.seedLoan(t, "LOAN-A", domain.LoanStatusActive, day(2024, 3, 9))
	dueToday := f.seedLoan(t, "LOAN-B", domain.LoanStatusPartiallyPaid, day(2024, 3, 10))
	notYetDue := f.seedLoan(t, "LOAN-C", domain.LoanStatusActive, day(2024, 3, 11))
	redeemed := f.seedLoan(t, "LOAN-D", domain.LoanStatusRedeemed, day(2024, 3, 1))

	result, err := f.jobs.DetectOverdueLoans(ctx)
	require.NoError(t, err)
	assert.Equal(t, JobResult{Job: JobDetectOverdue, Selected: 2, Transitioned: 2}, result)

	for _, id := range []uuid.UUID{pastDue.ID, dueToday.ID} {
		loan := f.loan(t, id)
		assert.Equal(t, domain.LoanStatusOverdue, loan.Status)
		require.NotNil(t, loan.GracePeriodEndDate)
		assert.Equal(t, day(2024, 4, 9), *loan.GracePeriodEndDate)
		assert.NotNil(t, loan.OverdueAt)
	}
	assert.Equal(t, domain.LoanStatusActive, f.loan(t, notYetDue.ID).Status)
	assert.Equal(t, domain.LoanStatusRedeemed, f.loan(t, redeemed.ID).Status)

	t.Run("second run on the same day changes nothing", func(t *testing.T) {
		before := f.loan(t, pastDue.ID)

		result, err := f.jobs.DetectOverdueLoans(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Selected)
		assert.Equal(t, 0, result.Transitioned)

		after := f.loan(t, pastDue.ID)
		assert.Equal(t, before.Version, after.Version)
		assert.Equal(t, before.GracePeriodEndDate, after.GracePeriodEndDate)
	})
}

// staleScanStore lets another writer change a loan right after the job selected it
type staleScanStore struct {
	*memory.Store
	afterScan func()
}

func (s *staleScanStore) Loans() repository.LoanRepository {
	return &staleScanLoans{LoanRepository: s.Store.Loans(), afterScan: s.afterScan}
}

type staleScanLoans struct {
	repository.LoanRepository
	afterScan func()
}

func (r *staleScanLoans) FindDueOnOrBefore(ctx context.Context, date time.Time, statuses ...domain.LoanStatus) ([]*domain.Loan, error) {
	loans, err := r.LoanRepository.FindDueOnOrBefore(ctx, date, statuses...)
	r.afterScan()
	return loans, err
}

func TestDetectOverdueLoans_LoanRedeemedAfterSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loan := f.seedLoan(t, "LOAN-A", domain.LoanStatusActive, day(2024, 3, 9))

	stale := &staleScanStore{Store: f.store, afterScan: func() {
		current := f.loan(t, loan.ID)
		current.Status = domain.LoanStatusRedeemed
		require.NoError(t, f.store.Loans().Save(ctx, current))
	}}
	log := logger.Discard()
	machine := statemachine.NewMachine(stale, f.clock, 30, nil, log)
	jobs := NewJobs(stale, machine, f.clock, f.publisher, nil, log)

	result, err := jobs.DetectOverdueLoans(ctx)
	require.NoError(t, err)
	assert.Equal(t, JobResult{Job: JobDetectOverdue, Selected: 1, Skipped: 1}, result)
	assert.Equal(t, domain.LoanStatusRedeemed, f.loan(t, loan.ID).Status)
}

func TestExpireGracePeriods(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expired := f.seedLoan(t, "LOAN-A", domain.LoanStatusOverdue, day(2024, 2, 9))
	expired.GracePeriodEndDate = ptr(day(2024, 3, 10))
	require.NoError(t, f.store.Loans().Save(ctx, expired))

	inGrace := f.seedLoan(t, "LOAN-B", domain.LoanStatusOverdue, day(2024, 2, 10))
	inGrace.GracePeriodEndDate = ptr(day(2024, 3, 11))
	require.NoError(t, f.store.Loans().Save(ctx, inGrace))

	result, err := f.jobs.ExpireGracePeriods(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Selected)
	assert.Equal(t, 1, result.Transitioned)

	defaulted := f.loan(t, expired.ID)
	assert.Equal(t, domain.LoanStatusDefaulted, defaulted.Status)
	require.NotNil(t, defaulted.DefaultedAt)
	assert.Equal(t, testNow, *defaulted.DefaultedAt)
	assert.Equal(t, domain.CollateralForfeited, f.collateralStatus(t, expired.CollateralID))

	assert.Equal(t, domain.LoanStatusOverdue, f.loan(t, inGrace.ID).Status)
	assert.Equal(t, domain.CollateralPawned, f.collateralStatus(t, inGrace.CollateralID))
}

func TestOverdueThenDefaultAcrossGracePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loan := f.seedLoan(t, "LOAN-A", domain.LoanStatusActive, day(2024, 3, 9))

	_, err := f.jobs.DetectOverdueLoans(ctx)
	require.NoError(t, err)

	f.clock.AdvanceDays(29)
	result, err := f.jobs.ExpireGracePeriods(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Selected)
	assert.Equal(t, domain.LoanStatusOverdue, f.loan(t, loan.ID).Status)

	f.clock.AdvanceDays(1)
	result, err = f.jobs.ExpireGracePeriods(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transitioned)
	assert.Equal(t, domain.LoanStatusDefaulted, f.loan(t, loan.ID).Status)
}

func TestGenerateOverdueReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	overdue := f.seedLoan(t, "LOAN-A", domain.LoanStatusOverdue, day(2024, 3, 5))
	f.seedLoan(t, "LOAN-B", domain.LoanStatusActive, day(2024, 3, 1))

	f.publisher.On("PublishOverdue", mock.Anything, mock.MatchedBy(func(r *domain.OverdueReport) bool {
		return len(r.Loans) == 1 && r.Loans[0].LoanCode == "LOAN-A"
	})).Return(nil).Once()

	r, err := f.jobs.GenerateOverdueReport(ctx)
	require.NoError(t, err)
	require.Len(t, r.Loans, 1)
	assert.Equal(t, overdue.ID, r.Loans[0].LoanID)
	assert.Equal(t, 5, r.Loans[0].DaysOverdue)
	assert.True(t, decimal.NewFromInt(1100).Equal(r.Loans[0].TotalPayable))
	assert.Equal(t, testNow, r.GeneratedAt)
	f.publisher.AssertExpectations(t)
}

func TestGenerateOverdueReport_PublishError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("redis down")
	f.publisher.On("PublishOverdue", mock.Anything, mock.Anything).Return(boom)

	_, err := f.jobs.GenerateOverdueReport(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestGenerateDefaultedReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	defaultedOn := func(code string, at time.Time) {
		loan := f.seedLoan(t, code, domain.LoanStatusDefaulted, at.AddDate(0, 0, -40))
		loan.DefaultedAt = ptr(at)
		require.NoError(t, f.store.Loans().Save(ctx, loan))
	}
	defaultedOn("LOAN-JAN", time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC))
	defaultedOn("LOAN-FEB-1", time.Date(2024, 2, 1, 0, 30, 0, 0, time.UTC))
	defaultedOn("LOAN-FEB-29", time.Date(2024, 2, 29, 18, 0, 0, 0, time.UTC))
	defaultedOn("LOAN-MAR", time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC))

	f.publisher.On("PublishDefaulted", mock.Anything, mock.Anything).Return(nil).Once()

	r, err := f.jobs.GenerateDefaultedReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 2, 1), r.PeriodStart)
	assert.Equal(t, day(2024, 2, 29), r.PeriodEnd)

	codes := make([]string, 0, len(r.Loans))
	for _, l := range r.Loans {
		codes = append(codes, l.LoanCode)
	}
	assert.ElementsMatch(t, []string{"LOAN-FEB-1", "LOAN-FEB-29"}, codes)
	assert.True(t, decimal.NewFromInt(2200).Equal(r.TotalPayable), r.TotalPayable.String())
	f.publisher.AssertExpectations(t)
}

func TestScheduler(t *testing.T) {
	cfg := config.SchedulerConfig{
		OverdueSpec:         "0 0 1 * * *",
		GraceExpirySpec:     "0 30 1 * * *",
		OverdueReportSpec:   "0 0 8 * * MON",
		DefaultedReportSpec: "0 0 2 1 * *",
	}

	t.Run("registers every job", func(t *testing.T) {
		f := newFixture(t)
		s, err := NewScheduler(f.jobs, cfg, time.UTC, logger.Discard())
		require.NoError(t, err)
		assert.Equal(t, 4, s.Entries())
	})

	t.Run("rejects a bad cron expression", func(t *testing.T) {
		f := newFixture(t)
		bad := cfg
		bad.GraceExpirySpec = "every day"
		_, err := NewScheduler(f.jobs, bad, time.UTC, logger.Discard())
		assert.ErrorContains(t, err, JobExpireGrace)
	})

	t.Run("daily run detects overdue before expiring grace", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		active := f.seedLoan(t, "LOAN-A", domain.LoanStatusActive, day(2024, 3, 1))
		lapsed := f.seedLoan(t, "LOAN-B", domain.LoanStatusOverdue, day(2024, 1, 1))
		lapsed.GracePeriodEndDate = ptr(day(2024, 3, 1))
		require.NoError(t, f.store.Loans().Save(ctx, lapsed))

		s, err := NewScheduler(f.jobs, cfg, time.UTC, logger.Discard())
		require.NoError(t, err)
		require.NoError(t, s.RunDaily(ctx))

		assert.Equal(t, domain.LoanStatusOverdue, f.loan(t, active.ID).Status)
		assert.Equal(t, domain.LoanStatusDefaulted, f.loan(t, lapsed.ID).Status)
	})

	t.Run("recovers from a panicking job", func(t *testing.T) {
		f := newFixture(t)
		s, err := NewScheduler(f.jobs, cfg, time.UTC, logger.Discard())
		require.NoError(t, err)

		assert.NotPanics(t, func() {
			s.runWithRecovery("broken", func(context.Context) error { panic("boom") })
		})
	})

	t.Run("start and stop", func(t *testing.T) {
		f := newFixture(t)
		s, err := NewScheduler(f.jobs, cfg, time.UTC, logger.Discard())
		require.NoError(t, err)
		s.Start()
		s.Stop()
	})
}

func ptr[T any](v T) *T {
	return &v
}
