package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	LogLevel    string
	APIToken    string

	// Scoring
	DefaultSignalWeight int
	MinScoreFloor       int
	MaxScoreCap         int
	DecayEnabled        bool
	DecayHalfLifeDays   int
	DecayFloor          float64
	ConfidenceEnabled   bool
	MaxIncreasePerDay   int

	// Recalculation sweep
	RecalcInterval time.Duration
	SweepInterval  time.Duration
	SweepWorkers   int
	SweepBatchSize int

	// Trigger dedup
	DedupEnabled bool
	DedupWindow  time.Duration

	// API rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

func Load() Config {
	return Config{
		Port:        envInt("BIT_PORT", 8760),
		NatsURL:     envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		APIToken:    envStr("BIT_API_TOKEN", ""),

		DefaultSignalWeight: envInt("BIT_DEFAULT_SIGNAL_WEIGHT", 5),
		MinScoreFloor:       envInt("BIT_MIN_SCORE_FLOOR", 0),
		MaxScoreCap:         envInt("BIT_MAX_SCORE_CAP", 1000),
		DecayEnabled:        envBool("BIT_DECAY_ENABLED", true),
		DecayHalfLifeDays:   envInt("BIT_DECAY_HALF_LIFE_DAYS", 30),
		DecayFloor:          envFloat("BIT_DECAY_FLOOR", 0.05),
		ConfidenceEnabled:   envBool("BIT_CONFIDENCE_ENABLED", true),
		MaxIncreasePerDay:   envInt("BIT_MAX_INCREASE_PER_DAY", 150),

		RecalcInterval: envDuration("BIT_RECALC_INTERVAL", 6*time.Hour),
		SweepInterval:  envDuration("BIT_SWEEP_INTERVAL", 15*time.Minute),
		SweepWorkers:   envInt("BIT_SWEEP_WORKERS", 4),
		SweepBatchSize: envInt("BIT_SWEEP_BATCH_SIZE", 200),

		DedupEnabled: envBool("BIT_DEDUP_ENABLED", true),
		DedupWindow:  envDuration("BIT_DEDUP_WINDOW", 72*time.Hour),

		RateLimitEnabled:  envBool("BIT_RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("BIT_RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   envDuration("BIT_RATE_LIMIT_WINDOW", time.Minute),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
