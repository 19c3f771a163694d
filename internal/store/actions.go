package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/djb258/barton-outreach-core/internal/scoring"
	"github.com/djb258/barton-outreach-core/internal/trigger"
)

// HasRecentAction reports whether the action already fired for the entity
// within the window. This is the dedup lookup injected into the evaluator.
func (s *Store) HasRecentAction(ctx context.Context, entityID uuid.UUID, action trigger.Action, window time.Duration) (bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM outreach_actions
			WHERE entity_id = $1 AND action_type = $2 AND fired_at > now() - $3::interval
		)`,
		entityID, string(action), fmt.Sprintf("%f seconds", window.Seconds()),
	)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check recent action: %w", err)
	}
	return exists, nil
}

// RecordAction writes a trigger audit row. Written before the trigger
// event is published so the dedup window observes the action even if the
// downstream dispatcher is slow.
func (s *Store) RecordAction(ctx context.Context, entityID uuid.UUID, action trigger.Action, priority, reason string, score int, tier scoring.Tier) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO outreach_actions (id, entity_id, action_type, priority, reason, decayed_score, score_tier, fired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		id, entityID, string(action), priority, reason, score, string(tier),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("record action: %w", err)
	}
	return id, nil
}
