// Package main contains the entrypoint for the leadscout service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgard/leadscout/internal/app"
	"github.com/edgard/leadscout/internal/category"
	"github.com/edgard/leadscout/internal/config"
	"github.com/edgard/leadscout/internal/database"
	"github.com/edgard/leadscout/internal/extractor"
	"github.com/edgard/leadscout/internal/graph"
	"github.com/edgard/leadscout/internal/logger"
	"github.com/edgard/leadscout/internal/notify"
	"github.com/edgard/leadscout/internal/phone"
	"github.com/edgard/leadscout/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components, handles graceful
// shutdown, and returns an exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "", "Path to configuration file (default ./config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info("Logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)

	categories := category.NewMap(cfg.Sources, cfg.Category.Fallback)
	store := database.NewStore(db, categories, log)

	graphClient := graph.NewClient(cfg.Graph.BaseURL, cfg.Graph.APIVersion, cfg.Graph.Timeout, log)

	pipeline := extractor.NewPipeline(
		graphClient,
		store,
		phone.Matcher{NormalizeArabic: cfg.Phone.NormalizeArabic},
		cfg.Sources,
		graph.FetchOptions{
			ConversationLimit: cfg.Graph.ConversationLimit,
			MessageLimit:      cfg.Graph.MessageLimit,
			MaxPages:          cfg.Graph.MaxPages,
		},
		len(cfg.Sources),
		log,
	)

	notifier, err := notify.New(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
	if err != nil {
		log.Error("Failed to create notifier", "error", err)
		return 1
	}

	runner := app.NewRunner(pipeline, notifier, cfg.Scheduler.MinInterval, cfg.Scheduler.MaxFailures, log)

	var httpServer *http.Server
	if cfg.Server.Enabled {
		httpServer = server.New(store, runner, log).HTTPServer(cfg.Server.Addr)
	}

	application, err := app.New(log, cfg, store, runner, httpServer)
	if err != nil {
		log.Error("Failed to create application", "error", err)
		return 1
	}

	log.Info("Starting leadscout...", "sources", len(cfg.Sources))
	runErr := application.Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Application stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Application stopped gracefully.")
	return 0
}
