package scheduler

import (
	"context"
	"log/slog"

	"github.com/segyhp/pawn-engine/internal/clock"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/metrics"
	"github.com/segyhp/pawn-engine/internal/report"
	"github.com/segyhp/pawn-engine/internal/repository"
	"github.com/segyhp/pawn-engine/internal/statemachine"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
	"github.com/segyhp/pawn-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

const (
	JobDetectOverdue   = "detect_overdue"
	JobExpireGrace     = "expire_grace_period"
	JobOverdueReport   = "overdue_report"
	JobDefaultedReport = "defaulted_report"
)

// JobResult counts what a mutating job did with the loans it selected
type JobResult struct {
	Job          string `json:"job"`
	Selected     int    `json:"selected"`
	Transitioned int    `json:"transitioned"`
	Skipped      int    `json:"skipped"`
	Failed       int    `json:"failed"`
}

// Jobs are the time-driven lifecycle tasks. Each is safe to re-run on the same day:
// a loan that already moved no longer matches the job's status filter.
type Jobs struct {
	store     repository.Store
	machine   *statemachine.Machine
	clock     clock.Clock
	publisher report.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewJobs(
	store repository.Store,
	machine *statemachine.Machine,
	clk clock.Clock,
	publisher report.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Jobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &Jobs{
		store:     store,
		machine:   machine,
		clock:     clk,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// DetectOverdueLoans moves ACTIVE and PARTIALLY_PAID loans due on or before today to OVERDUE
func (j *Jobs) DetectOverdueLoans(ctx context.Context) (JobResult, error) {
	today := clock.Today(j.clock)
	loans, err := j.store.Loans().FindDueOnOrBefore(ctx, today,
		domain.LoanStatusActive, domain.LoanStatusPartiallyPaid)
	if err != nil {
		err = customError.WrapDatabaseError(err)
		j.metrics.JobRun(JobDetectOverdue, 0, 0, err)
		return JobResult{Job: JobDetectOverdue}, err
	}

	return j.transitionAll(ctx, JobDetectOverdue, loans, domain.EventDueDatePassed)
}

// ExpireGracePeriods defaults OVERDUE loans whose grace period ended on or before today
func (j *Jobs) ExpireGracePeriods(ctx context.Context) (JobResult, error) {
	today := clock.Today(j.clock)
	loans, err := j.store.Loans().FindGraceExpired(ctx, today)
	if err != nil {
		err = customError.WrapDatabaseError(err)
		j.metrics.JobRun(JobExpireGrace, 0, 0, err)
		return JobResult{Job: JobExpireGrace}, err
	}

	return j.transitionAll(ctx, JobExpireGrace, loans, domain.EventGracePeriodExpired)
}

// transitionAll applies event to every loan; one loan failing never aborts the batch
func (j *Jobs) transitionAll(ctx context.Context, job string, loans []*domain.Loan, event domain.LoanEvent) (JobResult, error) {
	result := JobResult{Job: job, Selected: len(loans)}

	for _, loan := range loans {
		if err := ctx.Err(); err != nil {
			j.metrics.JobRun(job, result.Transitioned, result.Failed, err)
			return result, err
		}

		_, err := j.machine.Transition(ctx, loan, event)
		switch {
		case err == nil:
			result.Transitioned++
		case customError.Code(err) == customError.ErrCodeInvalidTransition,
			customError.IsRetryable(err):
			// moved by someone else after selection; the next run sees its current state
			result.Skipped++
			j.logger.InfoContext(ctx, "loan changed since selection",
				"job", job, "loan_code", loan.LoanCode, "status", loan.Status, "reason", customError.Code(err))
		default:
			result.Failed++
			j.logger.WarnContext(ctx, "loan transition failed",
				"job", job, "loan_code", loan.LoanCode, "event", event, "error", err)
		}
	}

	j.metrics.JobRun(job, result.Transitioned, result.Failed, nil)
	j.logger.InfoContext(ctx, "job finished",
		"job", job,
		"selected", result.Selected,
		"transitioned", result.Transitioned,
		"skipped", result.Skipped,
		"failed", result.Failed)

	return result, nil
}

// GenerateOverdueReport lists every OVERDUE loan and hands the report to the publisher
func (j *Jobs) GenerateOverdueReport(ctx context.Context) (*domain.OverdueReport, error) {
	today := clock.Today(j.clock)
	loans, err := j.store.Loans().FindByStatus(ctx, domain.LoanStatusOverdue)
	if err != nil {
		err = customError.WrapDatabaseError(err)
		j.metrics.JobRun(JobOverdueReport, 0, 0, err)
		return nil, err
	}

	r := &domain.OverdueReport{
		GeneratedAt: j.clock.Now(),
		Loans:       make([]domain.ReportLoan, 0, len(loans)),
	}
	for _, loan := range loans {
		entry := reportLoan(loan)
		entry.DaysOverdue = max(utils.DaysBetween(loan.DueDate, today), 0)
		r.Loans = append(r.Loans, entry)
	}

	err = j.publisher.PublishOverdue(ctx, r)
	j.metrics.JobRun(JobOverdueReport, len(r.Loans), 0, err)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GenerateDefaultedReport covers loans that defaulted during the previous calendar month
func (j *Jobs) GenerateDefaultedReport(ctx context.Context) (*domain.DefaultedReport, error) {
	start, end := utils.PreviousMonthRange(clock.Today(j.clock))
	loans, err := j.store.Loans().FindDefaultedBetween(ctx, start, end)
	if err != nil {
		err = customError.WrapDatabaseError(err)
		j.metrics.JobRun(JobDefaultedReport, 0, 0, err)
		return nil, err
	}

	r := &domain.DefaultedReport{
		GeneratedAt:  j.clock.Now(),
		PeriodStart:  start,
		PeriodEnd:    end,
		Loans:        make([]domain.ReportLoan, 0, len(loans)),
		TotalPayable: decimal.Zero,
	}
	for _, loan := range loans {
		r.Loans = append(r.Loans, reportLoan(loan))
		r.TotalPayable = r.TotalPayable.Add(loan.TotalPayableAmount)
	}

	err = j.publisher.PublishDefaulted(ctx, r)
	j.metrics.JobRun(JobDefaultedReport, len(r.Loans), 0, err)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func reportLoan(loan *domain.Loan) domain.ReportLoan {
	return domain.ReportLoan{
		LoanID:       loan.ID,
		LoanCode:     loan.LoanCode,
		CustomerID:   loan.CustomerID,
		BranchID:     loan.BranchID,
		TotalPayable: loan.TotalPayableAmount,
		DueDate:      loan.DueDate,
		DefaultedAt:  loan.DefaultedAt,
	}
}
