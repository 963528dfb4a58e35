package utils

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Storage precision of money amounts and percentage rates
const (
	MoneyScale int32 = 2
	RateScale  int32 = 4
)

// HasScale reports whether d carries no more than places decimal digits
func HasScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}

// RoundMoney rounds to 2 decimal places, half away from zero (half-up for positive amounts)
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// PercentOf returns amount * percent / 100
// Formula: interest = loanAmount * interestRate / 100
func PercentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred)
}

// CalculateTotalPayable calculates principal + interest + storage fee, rounded to 2 places
func CalculateTotalPayable(principal, interestRate, storageFee decimal.Decimal) decimal.Decimal {
	interest := PercentOf(principal, interestRate)
	return RoundMoney(principal.Add(interest).Add(storageFee))
}

// CalculateInstallmentAmount splits the total evenly across installments
func CalculateInstallmentAmount(total decimal.Decimal, installments int) decimal.Decimal {
	if installments <= 1 {
		return RoundMoney(total)
	}
	return RoundMoney(total.Div(decimal.NewFromInt(int64(installments))))
}

// MaxDecimal returns the larger of a and b
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// StartOfDay truncates t to midnight in t's own location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays adds calendar days to a date
func AddDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// DaysBetween returns the number of calendar days from start to end (negative when end is before start)
func DaysBetween(start, end time.Time) int {
	s := StartOfDay(start)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, s.Location())
	return int(math.Round(e.Sub(s).Hours() / 24))
}

// IsOnOrBefore reports whether date a falls on or before date b, ignoring time of day
func IsOnOrBefore(a, b time.Time) bool {
	return DaysBetween(a, b) >= 0
}

// FirstOfMonth returns midnight on the first day of t's month
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// PreviousMonthRange returns the first and last day of the month before t
func PreviousMonthRange(t time.Time) (time.Time, time.Time) {
	first := FirstOfMonth(t).AddDate(0, -1, 0)
	last := FirstOfMonth(t).AddDate(0, 0, -1)
	return first, last
}
