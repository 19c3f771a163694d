package scoring

import (
	"fmt"
	"math"
	"time"
)

// Config holds the externally supplied scoring tables and knobs. Unknown
// signal types and sources never error; they fall back to the neutral
// defaults below.
type Config struct {
	Weights           map[string]int     // signal_type -> weight
	DefaultWeight     int                // weight for unknown signal types
	Confidences       map[string]float64 // data_source -> confidence modifier
	ConfidenceEnabled bool
	DecayEnabled      bool
	MinScoreFloor     int
	MaxScoreCap       int
}

// Calculator turns a signal history into a time-decayed, confidence-weighted
// score. It is a pure function of (signals, config, decay, now): no I/O and
// no mutation of inputs, so instances are safe to share across goroutines.
type Calculator struct {
	cfg   Config
	decay DecayFunc
	now   func() time.Time
}

// NewCalculator builds a calculator. A nil decay falls back to NoDecay and
// a nil clock falls back to time.Now; tests inject a fixed clock for
// deterministic output.
func NewCalculator(cfg Config, decay DecayFunc, now func() time.Time) *Calculator {
	if decay == nil {
		decay = NoDecay()
	}
	if now == nil {
		now = time.Now
	}
	return &Calculator{cfg: cfg, decay: decay, now: now}
}

// Calculate aggregates the signals into raw and decayed scores with a
// per-signal breakdown in input order. An empty signal list yields an
// all-zero result with a nil LastSignalAt. The contact parameter is
// reserved for future bonus logic and is currently unused.
func (c *Calculator) Calculate(signals []Signal, contact *Contact) Result {
	res := Result{
		SignalCount: len(signals),
		Breakdown:   make([]BreakdownEntry, 0, len(signals)),
	}
	if len(signals) == 0 {
		return res
	}

	now := c.now()
	var lastSignalAt time.Time

	for _, sig := range signals {
		weight := c.resolveWeight(sig)
		confidence := c.resolveConfidence(sig)
		ageDays := ageInDays(now, sig.DetectedAt)

		decayFactor := 1.0
		if c.cfg.DecayEnabled {
			decayFactor = c.decay(ageDays)
		}

		// One signal is one unit of evidence; weight encodes importance,
		// not volume. Contributions truncate, they do not round.
		const signalValue = 1.0
		raw := int(float64(weight) * signalValue)
		decayed := int(float64(weight) * signalValue * confidence * decayFactor)

		res.RawScore += raw
		res.DecayedScore += decayed

		if sig.DetectedAt.After(lastSignalAt) {
			lastSignalAt = sig.DetectedAt
		}

		res.Breakdown = append(res.Breakdown, BreakdownEntry{
			SignalID:            sig.ID,
			SignalType:          sig.Type,
			Weight:              weight,
			Confidence:          confidence,
			DecayFactor:         decayFactor,
			AgeDays:             ageDays,
			RawContribution:     raw,
			DecayedContribution: decayed,
			DetectedAt:          sig.DetectedAt,
		})
	}

	res.RawScore = c.clamp(res.RawScore)
	res.DecayedScore = c.clamp(res.DecayedScore)
	res.LastSignalAt = &lastSignalAt
	return res
}

// ShouldRecalculate reports whether enough time has passed since the prior
// snapshot to warrant recomputation. Always true with no prior snapshot.
// Pure debounce; it has no bearing on score correctness.
func (c *Calculator) ShouldRecalculate(prev *Snapshot, interval time.Duration) bool {
	if prev == nil {
		return true
	}
	return c.now().Sub(prev.ComputedAt) >= interval
}

func (c *Calculator) resolveWeight(sig Signal) int {
	if sig.Weight != nil {
		return *sig.Weight
	}
	if w, ok := c.cfg.Weights[sig.Type]; ok {
		return w
	}
	return c.cfg.DefaultWeight
}

func (c *Calculator) resolveConfidence(sig Signal) float64 {
	if !c.cfg.ConfidenceEnabled {
		return 1.0
	}
	if conf, ok := c.cfg.Confidences[sig.Source()]; ok {
		return conf
	}
	return 1.0
}

func (c *Calculator) clamp(score int) int {
	if score < c.cfg.MinScoreFloor {
		return c.cfg.MinScoreFloor
	}
	if score > c.cfg.MaxScoreCap {
		return c.cfg.MaxScoreCap
	}
	return score
}

// ageInDays is the whole number of days between now and detectedAt.
// Future-dated signals count as age 0.
func ageInDays(now, detectedAt time.Time) int {
	age := now.Sub(detectedAt)
	if age < 0 {
		return 0
	}
	return int(age.Hours() / 24)
}

// ValidateIncrease enforces the daily increase cap. A violation is not an
// error: the increase is clipped to old+maxPerDay and reported via Valid so
// the caller can decide whether to alert.
func ValidateIncrease(old *int, newScore, maxPerDay int) IncreaseCheck {
	if old == nil {
		return IncreaseCheck{Valid: true, CappedScore: newScore, Reason: "initial score"}
	}
	increase := newScore - *old
	if increase <= maxPerDay {
		return IncreaseCheck{Valid: true, CappedScore: newScore, Reason: "within daily increase cap"}
	}
	return IncreaseCheck{
		Valid:       false,
		CappedScore: *old + maxPerDay,
		Reason:      fmt.Sprintf("increase of %d exceeds daily cap of %d", increase, maxPerDay),
	}
}

// DeltaAnalysis compares a new result against the prior snapshot.
func DeltaAnalysis(prev *Snapshot, res Result, tier Tier) DeltaInfo {
	if prev == nil {
		return DeltaInfo{
			IsNew:       true,
			Delta:       res.DecayedScore,
			TierChanged: true,
			NewTier:     tier,
		}
	}

	delta := res.DecayedScore - prev.DecayedScore
	pct := 0.0
	if prev.DecayedScore != 0 {
		pct = math.Round(float64(delta)/float64(prev.DecayedScore)*100*100) / 100
	}
	oldTier := prev.Tier
	return DeltaInfo{
		Delta:         delta,
		PercentChange: &pct,
		TierChanged:   oldTier != tier,
		OldTier:       &oldTier,
		NewTier:       tier,
	}
}
