package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/djb258/barton-outreach-core/internal/api"
	"github.com/djb258/barton-outreach-core/internal/bus"
	"github.com/djb258/barton-outreach-core/internal/config"
	"github.com/djb258/barton-outreach-core/internal/processor"
	"github.com/djb258/barton-outreach-core/internal/scoring"
	"github.com/djb258/barton-outreach-core/internal/store"
	"github.com/djb258/barton-outreach-core/internal/trigger"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("bitd starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Scoring configuration — loaded once at startup, defaults on gaps.
	calcCfg, thresholds, rules := processor.LoadScoringConfig(ctx, cfg, db, slog.Default())

	decay := scoring.NoDecay()
	if cfg.DecayEnabled {
		decay = scoring.ExponentialDecay(cfg.DecayHalfLifeDays, cfg.DecayFloor)
	}
	calc := scoring.NewCalculator(calcCfg, decay, nil)

	eval := trigger.NewEvaluator(thresholds, rules, trigger.DedupConfig{
		Enabled:      cfg.DedupEnabled,
		Window:       cfg.DedupWindow,
		RecentAction: db.HasRecentAction,
	})

	// NATS
	busClient, err := bus.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer busClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Processor — the main pipeline
	proc := processor.New(db, calc, eval, busClient, processor.Options{
		Thresholds:        thresholds,
		RecalcInterval:    cfg.RecalcInterval,
		MaxIncreasePerDay: cfg.MaxIncreasePerDay,
		SweepInterval:     cfg.SweepInterval,
		SweepWorkers:      cfg.SweepWorkers,
		SweepBatchSize:    cfg.SweepBatchSize,
	}, slog.Default())

	// Recompute on every freshly ingested signal
	if err := busClient.Subscribe(bus.SubjectSignalRecorded, proc.HandleSignalRecorded); err != nil {
		slog.Error("failed to subscribe to signal events", "error", err)
		os.Exit(1)
	}

	// Periodic sweep for entities the event stream missed
	go proc.StartSweepWorker(ctx)

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, proc, db, api.RateLimit{
		Enabled:  cfg.RateLimitEnabled,
		Requests: cfg.RateLimitRequests,
		Window:   cfg.RateLimitWindow,
	})
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("bitd ready", "port", cfg.Port, "sweep_interval", cfg.SweepInterval)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("bitd stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
