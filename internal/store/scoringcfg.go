package store

import (
	"context"
	"fmt"

	"github.com/djb258/barton-outreach-core/internal/scoring"
	"github.com/djb258/barton-outreach-core/internal/trigger"
)

// LoadWeights reads the signal_type -> weight table. An empty table is not
// an error; unknown types fall back to the configured default weight.
func (s *Store) LoadWeights(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT signal_type, weight FROM signal_weights`)
	if err != nil {
		return nil, fmt.Errorf("query signal weights: %w", err)
	}
	defer rows.Close()

	weights := make(map[string]int)
	for rows.Next() {
		var signalType string
		var weight int
		if err := rows.Scan(&signalType, &weight); err != nil {
			return nil, fmt.Errorf("scan signal weight: %w", err)
		}
		weights[signalType] = weight
	}
	return weights, rows.Err()
}

// LoadConfidences reads the data_source -> confidence modifier table.
// Unknown sources stay at the neutral 1.0.
func (s *Store) LoadConfidences(ctx context.Context) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx, `SELECT data_source, confidence FROM source_confidence`)
	if err != nil {
		return nil, fmt.Errorf("query source confidence: %w", err)
	}
	defer rows.Close()

	confidences := make(map[string]float64)
	for rows.Next() {
		var source string
		var confidence float64
		if err := rows.Scan(&source, &confidence); err != nil {
			return nil, fmt.Errorf("scan source confidence: %w", err)
		}
		confidences[source] = confidence
	}
	return confidences, rows.Err()
}

// LoadThresholds reads the tier threshold table ordered by min_score.
// Callers validate the result and fall back to scoring.DefaultThresholds
// when the table is empty or malformed.
func (s *Store) LoadThresholds(ctx context.Context) ([]scoring.Threshold, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT trigger_level, min_score, max_score, action, auto_execute, priority,
		       COALESCE(nurture_sequence, ''), COALESCE(meeting_priority, '')
		FROM score_thresholds
		ORDER BY min_score ASC`)
	if err != nil {
		return nil, fmt.Errorf("query thresholds: %w", err)
	}
	defer rows.Close()

	var thresholds []scoring.Threshold
	for rows.Next() {
		var th scoring.Threshold
		var tier string
		if err := rows.Scan(&tier, &th.MinScore, &th.MaxScore, &th.Action, &th.AutoExecute, &th.Priority, &th.NurtureSequence, &th.MeetingPriority); err != nil {
			return nil, fmt.Errorf("scan threshold: %w", err)
		}
		th.Tier = scoring.Tier(tier)
		thresholds = append(thresholds, th)
	}
	return thresholds, rows.Err()
}

// LoadActionRules reads the action_type -> contact-method rule table.
// Callers fall back to trigger.DefaultRules when the table is empty.
func (s *Store) LoadActionRules(ctx context.Context) (map[trigger.Action]trigger.Rule, error) {
	rows, err := s.pool.Query(ctx, `SELECT action_type, require_email, require_email_or_phone FROM action_rules`)
	if err != nil {
		return nil, fmt.Errorf("query action rules: %w", err)
	}
	defer rows.Close()

	rules := make(map[trigger.Action]trigger.Rule)
	for rows.Next() {
		var actionType string
		var rule trigger.Rule
		if err := rows.Scan(&actionType, &rule.RequireEmail, &rule.RequireEmailOrPhone); err != nil {
			return nil, fmt.Errorf("scan action rule: %w", err)
		}
		rules[trigger.Action(actionType)] = rule
	}
	return rules, rows.Err()
}
