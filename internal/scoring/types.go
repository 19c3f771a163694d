package scoring

import (
	"time"

	"github.com/google/uuid"
)

// Signal is one recorded behavioral event for an entity (open, reply,
// meeting, profile view, ...). Signals are owned by the external signal
// store; the calculator only reads them.
type Signal struct {
	ID         uuid.UUID         `json:"signal_id"`
	EntityID   uuid.UUID         `json:"entity_id"`
	Type       string            `json:"signal_type"`
	DetectedAt time.Time         `json:"detected_at"`
	Weight     *int              `json:"signal_weight,omitempty"` // per-signal override
	Metadata   map[string]string `json:"metadata,omitempty"`      // carries data_source
}

// Source returns the signal's data source from metadata, or "" if unset.
func (s Signal) Source() string {
	return s.Metadata["data_source"]
}

// BreakdownEntry records how a single signal contributed to a score.
// One entry per input signal, in input order.
type BreakdownEntry struct {
	SignalID            uuid.UUID `json:"signal_id"`
	SignalType          string    `json:"signal_type"`
	Weight              int       `json:"weight"`
	Confidence          float64   `json:"confidence"`
	DecayFactor         float64   `json:"decay_factor"`
	AgeDays             int       `json:"age_days"`
	RawContribution     int       `json:"raw_contribution"`
	DecayedContribution int       `json:"decayed_contribution"`
	DetectedAt          time.Time `json:"detected_at"`
}

// Result is the output of one score calculation. Ephemeral; the caller
// decides what to persist.
type Result struct {
	RawScore     int              `json:"raw_score"`
	DecayedScore int              `json:"decayed_score"`
	SignalCount  int              `json:"signal_count"`
	LastSignalAt *time.Time       `json:"last_signal_at"`
	Breakdown    []BreakdownEntry `json:"score_breakdown"`
}

// Snapshot is the previously persisted score for an entity, supplied back
// in on the next calculation for debounce, tier-change detection, and
// increase-cap validation.
type Snapshot struct {
	DecayedScore int       `json:"decayed_score"`
	Tier         Tier      `json:"score_tier"`
	ComputedAt   time.Time `json:"computed_at"`
}

// Contact carries the contact fields the scorer may use for bonus logic.
// Currently unused by the calculation itself; accepted for extensibility.
type Contact struct {
	EntityID uuid.UUID `json:"entity_id"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone"`
	FullName string    `json:"full_name"`
	Company  string    `json:"company"`
}

// IncreaseCheck is the outcome of the daily increase-cap validation.
type IncreaseCheck struct {
	Valid       bool   `json:"valid"`
	CappedScore int    `json:"capped_score"`
	Reason      string `json:"reason"`
}

// DeltaInfo describes how a new result compares to the prior snapshot.
type DeltaInfo struct {
	IsNew         bool     `json:"is_new"`
	Delta         int      `json:"delta"`
	PercentChange *float64 `json:"percent_change"` // nil for initial scores
	TierChanged   bool     `json:"tier_changed"`
	OldTier       *Tier    `json:"old_tier"`
	NewTier       Tier     `json:"new_tier"`
}
