// Package app wires configuration into the concrete stores, services and jobs
// shared by the server and scheduler binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/segyhp/pawn-engine/internal/cache"
	"github.com/segyhp/pawn-engine/internal/clock"
	"github.com/segyhp/pawn-engine/internal/config"
	"github.com/segyhp/pawn-engine/internal/metrics"
	"github.com/segyhp/pawn-engine/internal/report"
	"github.com/segyhp/pawn-engine/internal/repository"
	"github.com/segyhp/pawn-engine/internal/repository/memory"
	"github.com/segyhp/pawn-engine/internal/scheduler"
	"github.com/segyhp/pawn-engine/internal/service"
	"github.com/segyhp/pawn-engine/internal/statemachine"
)

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Clock    clock.Clock
	DB       *sqlx.DB
	Redis    redis.UniversalClient
	Store    repository.Store
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Machine    *statemachine.Machine
	Loans      *service.LoanService
	Repayments *service.RepaymentService
	Jobs       *scheduler.Jobs
}

// New opens the configured storage and redis connections and builds every service on top
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Clock:    clock.NewSystem(cfg.Location()),
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	if err := a.initStore(); err != nil {
		return nil, err
	}
	if err := a.initRedis(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var scheduleCache service.ScheduleCache
	publishers := report.Multi{report.NewLogPublisher(logger)}
	if a.Redis != nil {
		scheduleCache = cache.NewScheduleCache(a.Redis, cfg.GetScheduleTTL())
		publishers = append(publishers, report.NewRedisPublisher(a.Redis))
	}

	a.Machine = statemachine.NewMachine(a.Store, a.Clock, cfg.Business.OverdueGraceDays, a.Metrics, logger)
	a.Loans = service.NewLoanService(a.Store, a.Machine, a.Clock, scheduleCache, cfg, a.Metrics, logger)
	a.Repayments = service.NewRepaymentService(a.Store, a.Machine, a.Clock, a.Metrics, logger)
	a.Jobs = scheduler.NewJobs(a.Store, a.Machine, a.Clock, publishers, a.Metrics, logger)

	return a, nil
}

func (a *App) initStore() error {
	if a.Config.Storage.Driver == config.StorageDriverMemory {
		a.Logger.Warn("using in-memory storage, data is lost on restart")
		a.Store = memory.NewStore()
		return nil
	}

	if a.Config.Database.AutoMigrate {
		if err := repository.RunMigrations(a.Config.Database.URL, a.Config.Database.MigrationsDir); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		a.Logger.Info("database migrations applied")
	}

	db, err := sqlx.Connect("postgres", a.Config.Database.URL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	db.SetMaxOpenConns(a.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(a.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(a.Config.GetConnMaxLifetime())

	a.DB = db
	a.Store = repository.NewStore(db)
	return nil
}

func (a *App) initRedis(ctx context.Context) error {
	if !a.Config.Redis.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr(),
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("connect redis: %w", err)
	}

	a.Redis = client
	return nil
}

// Close releases the database and redis connections
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
