package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/segyhp/pawn-engine/internal/config"
)

// Scheduler runs the lifecycle jobs on their cron specs
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
}

// NewScheduler registers every job. Specs carry a leading seconds field.
func NewScheduler(jobs *Jobs, cfg config.SchedulerConfig, loc *time.Location, logger *slog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	s := &Scheduler{cron: c, jobs: jobs, logger: logger}
	if err := s.registerJobs(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) registerJobs(cfg config.SchedulerConfig) error {
	entries := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{JobDetectOverdue, cfg.OverdueSpec, func(ctx context.Context) error {
			_, err := s.jobs.DetectOverdueLoans(ctx)
			return err
		}},
		{JobExpireGrace, cfg.GraceExpirySpec, func(ctx context.Context) error {
			_, err := s.jobs.ExpireGracePeriods(ctx)
			return err
		}},
		{JobOverdueReport, cfg.OverdueReportSpec, func(ctx context.Context) error {
			_, err := s.jobs.GenerateOverdueReport(ctx)
			return err
		}},
		{JobDefaultedReport, cfg.DefaultedReportSpec, func(ctx context.Context) error {
			_, err := s.jobs.GenerateDefaultedReport(ctx)
			return err
		}},
	}

	for _, e := range entries {
		name, run := e.name, e.run
		if _, err := s.cron.AddFunc(e.spec, func() { s.runWithRecovery(name, run) }); err != nil {
			return fmt.Errorf("register %s job: %w", name, err)
		}
	}

	s.logger.Info("cron jobs registered", "count", len(entries))
	return nil
}

// runWithRecovery keeps one panicking run from taking the scheduler down
func (s *Scheduler) runWithRecovery(name string, run func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "job", name, "panic", r)
		}
	}()

	start := time.Now()
	if err := run(context.Background()); err != nil {
		s.logger.Error("job failed", "job", name, "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Debug("job completed", "job", name, "duration", time.Since(start))
}

// RunDaily runs the two mutating jobs once in their required order
func (s *Scheduler) RunDaily(ctx context.Context) error {
	if _, err := s.jobs.DetectOverdueLoans(ctx); err != nil {
		return err
	}
	_, err := s.jobs.ExpireGracePeriods(ctx)
	return err
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	s.logger.Info("starting cron scheduler")
	s.cron.Start()
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	s.logger.Info("stopping cron scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("cron scheduler stopped")
}

// Entries reports the number of registered jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
