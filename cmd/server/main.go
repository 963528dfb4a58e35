package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/segyhp/pawn-engine/internal/app"
	"github.com/segyhp/pawn-engine/internal/config"
	"github.com/segyhp/pawn-engine/internal/handler"
	"github.com/segyhp/pawn-engine/internal/logger"
	"github.com/segyhp/pawn-engine/internal/scheduler"

	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// run owns every resource so its defers execute before main decides the exit code
func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.Initialize(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	// In-memory storage is process local, so the jobs have to run beside the API
	var sched *scheduler.Scheduler
	if cfg.Storage.Driver == config.StorageDriverMemory {
		sched, err = scheduler.NewScheduler(a.Jobs, cfg.Scheduler, cfg.Location(), log)
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
	}

	v := handler.NewValidator()
	router := handler.NewRouter(handler.Router{
		Loans:      handler.NewLoanHandler(a.Loans, v),
		Repayments: handler.NewRepaymentHandler(a.Repayments, v, cfg.Location()),
		Jobs:       handler.NewJobHandler(a.Jobs),
		Health:     handler.NewHealthHandler(a.DB, a.Redis, cfg.GetHealthTimeout()),
		Metrics:    a.Metrics,
		Gatherer:   a.Registry,
		Logger:     log,
	})

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting", "addr", server.Addr, "env", cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if sched != nil {
		g.Go(func() error {
			sched.Start()
			<-gctx.Done()
			sched.Stop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server exited")
	return nil
}
