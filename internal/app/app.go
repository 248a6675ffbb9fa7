// Package app orchestrates the leadscout components: the extraction
// scheduler, the HTTP API server, and graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/leadscout/internal/config"
	"github.com/edgard/leadscout/internal/database"
)

// App wires the long-running components together and manages their
// lifecycle.
type App struct {
	logger    *slog.Logger
	cfg       *config.Config
	store     database.Store
	runner    *Runner
	server    *http.Server
	scheduler gocron.Scheduler
}

// New creates the application. server may be nil when the HTTP API is
// disabled.
func New(logger *slog.Logger, cfg *config.Config, store database.Store, runner *Runner, server *http.Server) (*App, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &App{
		logger:    logger.With("component", "app"),
		cfg:       cfg,
		store:     store,
		runner:    runner,
		server:    server,
		scheduler: s,
	}, nil
}

// Run starts all components and blocks until the context is cancelled or
// a component fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.scheduleJobs(ctx); err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.scheduler.Start()
		a.logger.Info("Scheduler started", "enabled", a.cfg.Scheduler.Enabled)

		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := a.scheduler.Shutdown(); err != nil {
			a.logger.Error("Error during scheduler shutdown", "error", err)
		}
		return nil
	})

	if a.server != nil {
		g.Go(func() error {
			a.logger.Info("Starting HTTP server", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server failed: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := a.server.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("Error during HTTP server shutdown", "error", err)
			}
			return nil
		})
	}

	a.logger.Info("Application running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Application stopped due to error", "error", err)
		return err
	}

	a.logger.Info("Application stopped gracefully.")
	return nil
}

func (a *App) scheduleJobs(ctx context.Context) error {
	if a.cfg.Scheduler.Enabled {
		interval := a.cfg.Scheduler.Interval
		jitter := a.cfg.Scheduler.Jitter
		if jitter <= 0 {
			jitter = time.Second
		}

		_, err := a.scheduler.NewJob(
			// Random duration between ticks spreads requests out so the
			// remote service never sees a fixed cadence.
			gocron.DurationRandomJob(interval, interval+jitter),
			gocron.NewTask(func() {
				a.runScheduled(ctx)
			}),
			gocron.WithName("extraction_run"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule extraction job: %w", err)
		}
	}

	// Weekly VACUUM keeps the audit log's unbounded growth compact on disk.
	_, err := a.scheduler.NewJob(
		gocron.CronJob("0 4 * * 0", false),
		gocron.NewTask(func() {
			maintCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()
			if err := a.store.RunSQLMaintenance(maintCtx); err != nil {
				a.logger.Error("Scheduled maintenance failed", "error", err)
			}
		}),
		gocron.WithName("sql_maintenance"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance job: %w", err)
	}

	return nil
}

func (a *App) runScheduled(ctx context.Context) {
	a.logger.Info("Running scheduled extraction")
	startTime := time.Now()

	report, err := a.runner.TriggerRun(ctx)
	if err != nil {
		if errors.Is(err, ErrTooSoon) || errors.Is(err, ErrRunInProgress) {
			a.logger.Info("Skipping scheduled extraction", "reason", err)
			return
		}
		a.logger.Error("Scheduled extraction failed", "error", err)
		return
	}

	a.logger.Info("Finished scheduled extraction",
		"run_id", report.ID,
		"new", report.TotalNew(),
		"skipped", report.TotalSkipped(),
		"duration", time.Since(startTime))
}
