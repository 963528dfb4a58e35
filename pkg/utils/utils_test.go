package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculateTotalPayable(t *testing.T) {
	tests := []struct {
		name       string
		principal  decimal.Decimal
		rate       decimal.Decimal
		storageFee decimal.Decimal
		expected   decimal.Decimal
	}{
		{
			name:       "standard pawn loan",
			principal:  decimal.NewFromInt(1000),
			rate:       decimal.NewFromInt(10),
			storageFee: decimal.Zero,
			expected:   decimal.RequireFromString("1100.00"), // 1000 + 10% of 1000
		},
		{
			name:       "with storage fee",
			principal:  decimal.NewFromInt(1000),
			rate:       decimal.NewFromInt(5),
			storageFee: decimal.NewFromInt(25),
			expected:   decimal.RequireFromString("1075.00"),
		},
		{
			name:       "fractional rate rounds half up",
			principal:  decimal.RequireFromString("333.33"),
			rate:       decimal.RequireFromString("1.5"),
			storageFee: decimal.Zero,
			expected:   decimal.RequireFromString("338.33"), // 333.33 + 4.99995
		},
		{
			name:       "zero interest rate",
			principal:  decimal.NewFromInt(5000),
			rate:       decimal.Zero,
			storageFee: decimal.Zero,
			expected:   decimal.NewFromInt(5000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateTotalPayable(tt.principal, tt.rate, tt.storageFee)
			assert.True(t, result.Equal(tt.expected),
				"Expected %v, but got %v", tt.expected, result)
		})
	}
}

func TestHasScale(t *testing.T) {
	tests := []struct {
		value  string
		places int32
		want   bool
	}{
		{"1100", MoneyScale, true},
		{"1100.00", MoneyScale, true},
		{"1099.99", MoneyScale, true},
		{"1099.996", MoneyScale, false},
		{"0.004", MoneyScale, false},
		{"1.2500", MoneyScale, true},
		{"1.2345", RateScale, true},
		{"1.23456", RateScale, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, HasScale(decimal.RequireFromString(tt.value), tt.places))
		})
	}
}

func TestCalculateInstallmentAmount(t *testing.T) {
	tests := []struct {
		name         string
		total        decimal.Decimal
		installments int
		expected     decimal.Decimal
	}{
		{"single installment", decimal.NewFromInt(1100), 1, decimal.NewFromInt(1100)},
		{"even split", decimal.NewFromInt(1100), 4, decimal.NewFromInt(275)},
		{"uneven split rounds", decimal.NewFromInt(1000), 3, decimal.RequireFromString("333.33")},
		{"half cent rounds up", decimal.RequireFromString("0.05"), 2, decimal.RequireFromString("0.03")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateInstallmentAmount(tt.total, tt.installments)
			assert.True(t, result.Equal(tt.expected), "Expected %v, but got %v", tt.expected, result)
		})
	}
}

func TestDaysBetween(t *testing.T) {
	base := time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		expected int
	}{
		{"same day different hour", base, base.Add(5 * time.Hour), 0},
		{"one day later", base, base.AddDate(0, 0, 1), 1},
		{"thirty days later", base, base.AddDate(0, 0, 30), 30},
		{"before", base, base.AddDate(0, 0, -3), -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DaysBetween(tt.start, tt.end))
		})
	}
}

func TestIsOnOrBefore(t *testing.T) {
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	assert.True(t, IsOnOrBefore(day, day.Add(23*time.Hour)))
	assert.True(t, IsOnOrBefore(day.AddDate(0, 0, -1), day))
	assert.False(t, IsOnOrBefore(day.AddDate(0, 0, 1), day))
}

func TestPreviousMonthRange(t *testing.T) {
	start, end := PreviousMonthRange(time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), end)
}
