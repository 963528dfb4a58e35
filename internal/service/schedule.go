package service

import (
	"time"

	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/pkg/utils"
	"github.com/shopspring/decimal"
)

// ProjectSchedule derives the installment plan from a loan's stored terms.
// It is a pure function: the same loan always yields the same schedule.
func ProjectSchedule(loan *domain.Loan) []domain.PaymentScheduleItem {
	total := loan.TotalPayableAmount
	totalInterest := total.Sub(loan.LoanAmount)
	n := loan.NumberOfInstallments

	if loan.PaymentFrequency == domain.FrequencyOneTime || n <= 1 {
		return []domain.PaymentScheduleItem{{
			InstallmentNumber: 1,
			DueDate:           loan.DueDate,
			AmountDue:         total,
			PrincipalAmount:   loan.LoanAmount,
			InterestAmount:    totalInterest,
			RemainingBalance:  decimal.Zero,
			Status:            domain.ScheduleStatusPending,
		}}
	}

	installment := utils.CalculateInstallmentAmount(total, n)
	if loan.InstallmentAmount.Valid {
		installment = loan.InstallmentAmount.Decimal
	}

	count := decimal.NewFromInt(int64(n))
	principalEach := utils.RoundMoney(loan.LoanAmount.Div(count))
	interestEach := utils.RoundMoney(totalInterest.Div(count))

	items := make([]domain.PaymentScheduleItem, 0, n)
	remaining := total
	principalSoFar := decimal.Zero
	interestSoFar := decimal.Zero

	for i := 1; i <= n; i++ {
		amount := decimal.Min(installment, remaining)
		principal := principalEach
		interest := interestEach

		// last installment closes every running total exactly
		if i == n {
			amount = remaining
			principal = loan.LoanAmount.Sub(principalSoFar)
			interest = totalInterest.Sub(interestSoFar)
		}

		remaining = utils.MaxDecimal(remaining.Sub(amount), decimal.Zero)
		principalSoFar = principalSoFar.Add(principal)
		interestSoFar = interestSoFar.Add(interest)

		items = append(items, domain.PaymentScheduleItem{
			InstallmentNumber: i,
			DueDate:           periodDate(loan.LoanDate, loan.PaymentFrequency, i),
			AmountDue:         amount,
			PrincipalAmount:   principal,
			InterestAmount:    interest,
			RemainingBalance:  remaining,
			Status:            domain.ScheduleStatusPending,
		})
	}

	return items
}

// periodDate is the due date of installment i counted from start
func periodDate(start time.Time, freq domain.PaymentFrequency, i int) time.Time {
	switch freq {
	case domain.FrequencyWeekly:
		return start.AddDate(0, 0, 7*i)
	case domain.FrequencyBiWeekly:
		return start.AddDate(0, 0, 14*i)
	case domain.FrequencyMonthly:
		return start.AddDate(0, i, 0)
	case domain.FrequencyQuarterly:
		return start.AddDate(0, 3*i, 0)
	default:
		return start.AddDate(0, 0, 30*i)
	}
}

// nextInstallment finds the first installment not yet covered by paid and the amount still owed on it
func nextInstallment(schedule []domain.PaymentScheduleItem, paid decimal.Decimal) (domain.PaymentScheduleItem, decimal.Decimal, bool) {
	cumulative := decimal.Zero
	for _, item := range schedule {
		cumulative = cumulative.Add(item.AmountDue)
		if cumulative.GreaterThan(paid) {
			return item, cumulative.Sub(paid), true
		}
	}
	return domain.PaymentScheduleItem{}, decimal.Zero, false
}
