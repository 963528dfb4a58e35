package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/segyhp/pawn-engine/internal/app"
	"github.com/segyhp/pawn-engine/internal/config"
	"github.com/segyhp/pawn-engine/internal/logger"
	"github.com/segyhp/pawn-engine/internal/scheduler"
)

func main() {
	once := flag.Bool("once", false, "run overdue detection and grace expiry once, then exit")
	flag.Parse()

	if err := run(*once); err != nil {
		slog.Error("scheduler exited with error", "error", err)
		os.Exit(1)
	}
}

func run(once bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.Initialize(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting pawn scheduler", "timezone", cfg.Scheduler.Timezone)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	if cfg.Storage.Driver == config.StorageDriverMemory {
		log.Warn("scheduler has its own in-memory store and will see no loans created by the server")
	}

	sched, err := scheduler.NewScheduler(a.Jobs, cfg.Scheduler, cfg.Location(), log)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	if once {
		if err := sched.RunDaily(ctx); err != nil {
			return fmt.Errorf("daily run: %w", err)
		}
		return nil
	}

	sched.Start()
	log.Info("scheduler started", "jobs", sched.Entries())

	<-ctx.Done()
	log.Info("shutting down scheduler")
	sched.Stop()
	return nil
}
