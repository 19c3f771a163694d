package processor

import (
	"context"
	"log/slog"

	"github.com/djb258/barton-outreach-core/internal/config"
	"github.com/djb258/barton-outreach-core/internal/scoring"
	"github.com/djb258/barton-outreach-core/internal/trigger"
)

// ConfigStore is the config-table surface of the store.
type ConfigStore interface {
	LoadWeights(ctx context.Context) (map[string]int, error)
	LoadConfidences(ctx context.Context) (map[string]float64, error)
	LoadThresholds(ctx context.Context) ([]scoring.Threshold, error)
	LoadActionRules(ctx context.Context) (map[trigger.Action]trigger.Rule, error)
}

// LoadScoringConfig pulls the weight/confidence/threshold/rule tables from
// the store, falling back to defaults when tables are empty or malformed.
// Incomplete config degrades gracefully; it never blocks scoring.
func LoadScoringConfig(ctx context.Context, cfg config.Config, db ConfigStore, logger *slog.Logger) (scoring.Config, []scoring.Threshold, map[trigger.Action]trigger.Rule) {
	calcCfg := scoring.Config{
		DefaultWeight:     cfg.DefaultSignalWeight,
		ConfidenceEnabled: cfg.ConfidenceEnabled,
		DecayEnabled:      cfg.DecayEnabled,
		MinScoreFloor:     cfg.MinScoreFloor,
		MaxScoreCap:       cfg.MaxScoreCap,
	}

	weights, err := db.LoadWeights(ctx)
	if err != nil {
		logger.Warn("failed to load signal weights, using default weight only", "error", err)
		weights = map[string]int{}
	}
	calcCfg.Weights = weights

	confidences, err := db.LoadConfidences(ctx)
	if err != nil {
		logger.Warn("failed to load source confidence, using neutral 1.0", "error", err)
		confidences = map[string]float64{}
	}
	calcCfg.Confidences = confidences

	thresholds, err := db.LoadThresholds(ctx)
	if err != nil {
		logger.Warn("failed to load thresholds, using defaults", "error", err)
		thresholds = nil
	}
	if len(thresholds) == 0 {
		thresholds = scoring.DefaultThresholds()
	} else if err := scoring.ValidateThresholds(thresholds); err != nil {
		logger.Warn("threshold table is malformed, using defaults", "error", err)
		thresholds = scoring.DefaultThresholds()
	}

	rules, err := db.LoadActionRules(ctx)
	if err != nil {
		logger.Warn("failed to load action rules, using defaults", "error", err)
		rules = nil
	}
	if len(rules) == 0 {
		rules = trigger.DefaultRules()
	}

	logger.Info("scoring config loaded",
		"weights", len(weights),
		"confidences", len(confidences),
		"thresholds", len(thresholds),
		"action_rules", len(rules),
	)
	return calcCfg, thresholds, rules
}
