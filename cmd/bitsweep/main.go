// Command bitsweep is the engagement-scoring batch CLI.
//
// Usage:
//
//	bitsweep run --batch 500 --workers 8
//	bitsweep score --entity 7b9e... --force
//	bitsweep thresholds validate
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/djb258/barton-outreach-core/internal/config"
	"github.com/djb258/barton-outreach-core/internal/processor"
	"github.com/djb258/barton-outreach-core/internal/scoring"
	"github.com/djb258/barton-outreach-core/internal/store"
	"github.com/djb258/barton-outreach-core/internal/trigger"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "bitsweep",
		Short: "Engagement scoring batch CLI",
	}

	root.AddCommand(runCmd())
	root.AddCommand(scoreCmd())
	root.AddCommand(thresholdsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var batch, workers int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Recompute all entities due for recalculation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProcessor(func(ctx context.Context, proc *processor.Processor) error {
				start := time.Now()
				res := proc.RunSweep(ctx)
				logger.Info("sweep finished",
					"found", res.EntitiesFound,
					"evaluated", res.Evaluated,
					"skipped", res.Skipped,
					"triggered", res.Triggered,
					"suppressed", res.Suppressed,
					"duration", time.Since(start).Round(time.Millisecond),
				)
				for _, e := range res.Errors {
					logger.Error("sweep error", "error", e)
				}
				return nil
			}, func(cfg *config.Config) {
				if batch > 0 {
					cfg.SweepBatchSize = batch
				}
				if workers > 0 {
					cfg.SweepWorkers = workers
				}
			})
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 0, "Max entities per sweep (default from env)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker pool size (default from env)")
	return cmd
}

func scoreCmd() *cobra.Command {
	var entity string
	var force bool
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Recompute a single entity and print the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID, err := uuid.Parse(entity)
			if err != nil {
				return fmt.Errorf("invalid --entity: %w", err)
			}
			return withProcessor(func(ctx context.Context, proc *processor.Processor) error {
				outcome, err := proc.EvaluateEntity(ctx, entityID, force)
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(outcome, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}, nil)
		},
	}
	cmd.Flags().StringVar(&entity, "entity", "", "Entity UUID (required)")
	cmd.Flags().BoolVar(&force, "force", false, "Bypass the recalculation debounce")
	_ = cmd.MarkFlagRequired("entity")
	return cmd
}

func thresholdsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Threshold table tooling",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configured threshold table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg := config.Load()
			db, err := store.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			thresholds, err := db.LoadThresholds(ctx)
			if err != nil {
				return err
			}
			if len(thresholds) == 0 {
				logger.Warn("no threshold rows configured, service will use built-in defaults")
				return nil
			}
			if err := scoring.ValidateThresholds(thresholds); err != nil {
				return fmt.Errorf("threshold table invalid: %w", err)
			}
			logger.Info("threshold table valid", "tiers", len(thresholds))
			return nil
		},
	})
	return cmd
}

// withProcessor wires a store-backed processor with no event publisher;
// batch runs write snapshots and audit rows but leave dispatching to bitd.
func withProcessor(fn func(ctx context.Context, proc *processor.Processor) error, tweak func(*config.Config)) error {
	ctx := context.Background()
	cfg := config.Load()
	if tweak != nil {
		tweak(&cfg)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	calcCfg, thresholds, rules := processor.LoadScoringConfig(ctx, cfg, db, logger)

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

	proc := processor.New(db, calc, eval, nil, processor.Options{
		Thresholds:        thresholds,
		RecalcInterval:    cfg.RecalcInterval,
		MaxIncreasePerDay: cfg.MaxIncreasePerDay,
		SweepInterval:     cfg.SweepInterval,
		SweepWorkers:      cfg.SweepWorkers,
		SweepBatchSize:    cfg.SweepBatchSize,
	}, logger)

	return fn(ctx, proc)
}
