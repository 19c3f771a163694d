package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/djb258/barton-outreach-core/internal/scoring"
)

// RecentActionFunc is the injected dedup lookup: has this action already
// fired for the entity within the window? Implemented by the store; the
// evaluator itself stays free of I/O.
type RecentActionFunc func(ctx context.Context, entityID uuid.UUID, action Action, window time.Duration) (bool, error)

// DedupConfig wires the do-not-repeat-within-window guarantee.
type DedupConfig struct {
	Enabled      bool
	Window       time.Duration
	RecentAction RecentActionFunc
}

// Result is the evaluator's decision. Ephemeral; handed to an external
// dispatcher which does the actual sending/booking/escalating.
type Result struct {
	ShouldTrigger    bool           `json:"should_trigger"`
	Action           Action         `json:"action_type"`
	Priority         string         `json:"priority"`
	Reason           string         `json:"reason"`
	ValidationPassed bool           `json:"validation_passed"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// DedupResult is the outcome of a duplicate-action check.
type DedupResult struct {
	IsDuplicate bool   `json:"is_duplicate"`
	Reason      string `json:"reason"`
}

// MeetingDecision is the outcome of the auto-meeting queueing check.
type MeetingDecision struct {
	ShouldQueue bool   `json:"should_queue"`
	Priority    string `json:"priority"`
	Reason      string `json:"reason"`
}

// Meeting priority bands. One numeric score maps to three discrete levels.
const (
	meetingUrgentScore = 500
	meetingHighScore   = 300
)

// Evaluator decides, from a tier transition, whether a downstream action
// should fire. Pure over its inputs except for the injected dedup lookup.
type Evaluator struct {
	thresholds map[scoring.Tier]scoring.Threshold
	rules      map[Action]Rule
	dedup      DedupConfig
}

// NewEvaluator builds an evaluator from the threshold and action-rule
// tables. Nil rules fall back to DefaultRules.
func NewEvaluator(thresholds []scoring.Threshold, rules map[Action]Rule, dedup DedupConfig) *Evaluator {
	if rules == nil {
		rules = DefaultRules()
	}
	byTier := make(map[scoring.Tier]scoring.Threshold, len(thresholds))
	for _, th := range thresholds {
		byTier[th.Tier] = th
	}
	return &Evaluator{thresholds: byTier, rules: rules, dedup: dedup}
}

// Evaluate applies the trigger decision chain: tier config lookup,
// auto-execute gate, monotonic tier-increase gate, and contact-method
// validation. Triggers fire only on a strict tier increase (or the very
// first score for an entity) — equal or decreasing tiers never fire.
func (e *Evaluator) Evaluate(score int, tier scoring.Tier, contact scoring.Contact, prev *scoring.Snapshot) Result {
	th, ok := e.thresholds[tier]
	if !ok {
		// Fail closed: never guess an action for an unconfigured tier.
		return Result{Reason: "Unknown tier", ValidationPassed: true}
	}

	action, known := ParseAction(th.Action)
	if !known {
		return Result{Reason: fmt.Sprintf("Unknown action %q configured for tier %s", th.Action, tier), ValidationPassed: true}
	}

	if !th.AutoExecute {
		// Surfaced for human review, not silently dropped.
		return Result{
			Action:           action,
			Priority:         th.Priority,
			Reason:           fmt.Sprintf("Tier %s requires manual review", tier),
			ValidationPassed: true,
			Metadata: map[string]any{
				"manual_review_required": true,
				"score_tier":             tier,
				"decayed_score":          score,
			},
		}
	}

	tierChanged := prev == nil || tier.Index() > prev.Tier.Index()
	if !tierChanged {
		return Result{
			Action:           action,
			Priority:         th.Priority,
			Reason:           "Tier unchanged (already triggered)",
			ValidationPassed: true,
			Metadata: map[string]any{
				"score_tier":    tier,
				"decayed_score": score,
				"tier_changed":  false,
			},
		}
	}

	if missing := e.missingFields(action, contact); len(missing) > 0 {
		return Result{
			Action:   action,
			Priority: th.Priority,
			Reason:   fmt.Sprintf("Contact cannot be reached for %s", action),
			Metadata: map[string]any{
				"score_tier":     tier,
				"decayed_score":  score,
				"missing_fields": missing,
			},
		}
	}

	meta := map[string]any{
		"score_tier":    tier,
		"decayed_score": score,
		"tier_changed":  true,
	}
	if th.NurtureSequence != "" {
		meta["nurture_sequence"] = th.NurtureSequence
	}
	if th.MeetingPriority != "" {
		meta["meeting_priority"] = th.MeetingPriority
	}

	return Result{
		ShouldTrigger:    true,
		Action:           action,
		Priority:         th.Priority,
		Reason:           fmt.Sprintf("Tier %s reached with score %d", tier, score),
		ValidationPassed: true,
		Metadata:         meta,
	}
}

// missingFields returns the contact fields the action's rule demands but
// the contact lacks.
func (e *Evaluator) missingFields(action Action, contact scoring.Contact) []string {
	rule, ok := e.rules[action]
	if !ok {
		return nil
	}
	var missing []string
	if rule.RequireEmail && contact.Email == "" {
		missing = append(missing, "email")
	}
	if rule.RequireEmailOrPhone && contact.Email == "" && contact.Phone == "" {
		if !rule.RequireEmail {
			missing = append(missing, "email")
		}
		missing = append(missing, "phone")
	}
	return missing
}

// Reason composes a human-readable explanation for a trigger decision.
// Non-triggering results keep the evaluator's own reason.
func Reason(res Result, delta scoring.DeltaInfo) string {
	if !res.ShouldTrigger {
		return res.Reason
	}
	switch {
	case delta.IsNew:
		return fmt.Sprintf("Initial score placed contact in %s tier", delta.NewTier)
	case delta.TierChanged && delta.OldTier != nil:
		return fmt.Sprintf("Tier escalation: %s -> %s (+%d points)", *delta.OldTier, delta.NewTier, delta.Delta)
	default:
		return fmt.Sprintf("Score increase within %s tier (+%d points)", delta.NewTier, delta.Delta)
	}
}

// ShouldCreateMeeting decides whether an auto_meeting action should be
// queued and at what priority band.
func (e *Evaluator) ShouldCreateMeeting(action Action, contact scoring.Contact, score int) MeetingDecision {
	if action != ActionAutoMeeting {
		return MeetingDecision{Reason: fmt.Sprintf("action %s does not book meetings", action)}
	}
	if rule, ok := e.rules[action]; ok && rule.RequireEmail && contact.Email == "" {
		return MeetingDecision{Reason: "contact has no email for meeting invite"}
	}

	priority := "medium"
	switch {
	case score >= meetingUrgentScore:
		priority = "urgent"
	case score >= meetingHighScore:
		priority = "high"
	}
	return MeetingDecision{
		ShouldQueue: true,
		Priority:    priority,
		Reason:      fmt.Sprintf("auto meeting at score %d", score),
	}
}

// CheckDeduplication asks the injected lookup whether the action already
// fired for the entity within the dedup window. With dedup disabled it
// always reports non-duplicate.
func (e *Evaluator) CheckDeduplication(ctx context.Context, action Action, entityID uuid.UUID) (DedupResult, error) {
	if !e.dedup.Enabled || e.dedup.RecentAction == nil {
		return DedupResult{Reason: "deduplication disabled"}, nil
	}
	hit, err := e.dedup.RecentAction(ctx, entityID, action, e.dedup.Window)
	if err != nil {
		return DedupResult{}, fmt.Errorf("recent action lookup: %w", err)
	}
	if hit {
		return DedupResult{
			IsDuplicate: true,
			Reason:      fmt.Sprintf("%s already fired for entity within %s", action, e.dedup.Window),
		}, nil
	}
	return DedupResult{Reason: "no recent action in window"}, nil
}
