// Package report delivers scheduler reports to downstream notification consumers.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/segyhp/pawn-engine/internal/domain"
)

const (
	OverdueKey   = "pawn:reports:overdue"
	DefaultedKey = "pawn:reports:defaulted"
	Channel      = "pawn:reports"

	// number of reports kept per list
	historyLength = 52
)

type Publisher interface {
	PublishOverdue(ctx context.Context, r *domain.OverdueReport) error
	PublishDefaulted(ctx context.Context, r *domain.DefaultedReport) error
}

// LogPublisher writes a one-line summary of each report
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishOverdue(ctx context.Context, r *domain.OverdueReport) error {
	p.logger.InfoContext(ctx, "overdue loan report",
		"generated_at", r.GeneratedAt, "loans", len(r.Loans))
	return nil
}

func (p *LogPublisher) PublishDefaulted(ctx context.Context, r *domain.DefaultedReport) error {
	p.logger.InfoContext(ctx, "defaulted loan report",
		"period_start", r.PeriodStart.Format("2006-01-02"),
		"period_end", r.PeriodEnd.Format("2006-01-02"),
		"loans", len(r.Loans),
		"total_payable", r.TotalPayable.StringFixed(2))
	return nil
}

// RedisPublisher appends each report to a capped list and announces it on Channel
type RedisPublisher struct {
	client redis.UniversalClient
}

func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

type announcement struct {
	Kind  string `json:"kind"`
	Key   string `json:"key"`
	Loans int    `json:"loans"`
}

func (p *RedisPublisher) PublishOverdue(ctx context.Context, r *domain.OverdueReport) error {
	return p.publish(ctx, OverdueKey, "overdue", len(r.Loans), r)
}

func (p *RedisPublisher) PublishDefaulted(ctx context.Context, r *domain.DefaultedReport) error {
	return p.publish(ctx, DefaultedKey, "defaulted", len(r.Loans), r)
}

func (p *RedisPublisher) publish(ctx context.Context, key, kind string, loans int, report any) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal %s report: %w", kind, err)
	}
	note, err := json.Marshal(announcement{Kind: kind, Key: key, Loans: loans})
	if err != nil {
		return fmt.Errorf("failed to marshal announcement: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, historyLength-1)
	pipe.Publish(ctx, Channel, note)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish %s report: %w", kind, err)
	}
	return nil
}

// Multi fans a report out to every publisher and joins their errors
type Multi []Publisher

func (m Multi) PublishOverdue(ctx context.Context, r *domain.OverdueReport) error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.PublishOverdue(ctx, r))
	}
	return errors.Join(errs...)
}

func (m Multi) PublishDefaulted(ctx context.Context, r *domain.DefaultedReport) error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.PublishDefaulted(ctx, r))
	}
	return errors.Join(errs...)
}
