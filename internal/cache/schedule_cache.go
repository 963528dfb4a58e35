package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segyhp/pawn-engine/internal/domain"
)

const schedulePrefix = "pawn:schedule:"

// ScheduleCache stores projected schedules. A schedule depends only on a loan's
// immutable terms, so entries are never invalidated, only expired.
type ScheduleCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewScheduleCache(client redis.UniversalClient, ttl time.Duration) *ScheduleCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ScheduleCache{client: client, ttl: ttl}
}

// Get returns the cached schedule, or nil without error on a miss
func (c *ScheduleCache) Get(ctx context.Context, loanID uuid.UUID) ([]domain.PaymentScheduleItem, error) {
	data, err := c.client.Get(ctx, schedulePrefix+loanID.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get schedule from redis: %w", err)
	}

	var items []domain.PaymentScheduleItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
	}
	return items, nil
}

func (c *ScheduleCache) Set(ctx context.Context, loanID uuid.UUID, items []domain.PaymentScheduleItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}
	return c.client.Set(ctx, schedulePrefix+loanID.String(), data, c.ttl).Err()
}
