package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewScheduleCache(client, time.Hour)
	ctx := context.Background()
	loanID := uuid.New()

	t.Run("Miss", func(t *testing.T) {
		items, err := c.Get(ctx, loanID)
		require.NoError(t, err)
		assert.Nil(t, items)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		due := time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)
		want := []domain.PaymentScheduleItem{{
			InstallmentNumber: 1,
			DueDate:           due,
			AmountDue:         decimal.RequireFromString("1100.00"),
			PrincipalAmount:   decimal.RequireFromString("1000.00"),
			InterestAmount:    decimal.RequireFromString("100.00"),
			RemainingBalance:  decimal.Zero,
			Status:            domain.ScheduleStatusPending,
		}}

		require.NoError(t, c.Set(ctx, loanID, want))

		got, err := c.Get(ctx, loanID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, want[0].AmountDue.Equal(got[0].AmountDue))
		assert.True(t, due.Equal(got[0].DueDate))
		assert.Equal(t, time.Hour, mr.TTL(schedulePrefix+loanID.String()))
	})

	t.Run("Expired", func(t *testing.T) {
		mr.FastForward(2 * time.Hour)
		got, err := c.Get(ctx, loanID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Corrupt", func(t *testing.T) {
		id := uuid.New()
		require.NoError(t, mr.Set(schedulePrefix+id.String(), "not-json"))
		_, err := c.Get(ctx, id)
		assert.Error(t, err)
	})
}
