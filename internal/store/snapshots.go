package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/djb258/barton-outreach-core/internal/scoring"
)

// GetSnapshot fetches the prior persisted score for an entity, or
// (nil, nil) if the entity has never been scored.
func (s *Store) GetSnapshot(ctx context.Context, entityID uuid.UUID) (*scoring.Snapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT decayed_score, score_tier, computed_at
		FROM score_snapshots
		WHERE entity_id = $1`,
		entityID,
	)

	var snap scoring.Snapshot
	var tier string
	err := row.Scan(&snap.DecayedScore, &tier, &snap.ComputedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	snap.Tier = scoring.Tier(tier)
	return &snap, nil
}

// UpsertSnapshot persists the latest score for an entity. The decayed
// score stored here is the capped score the tier was derived from.
func (s *Store) UpsertSnapshot(ctx context.Context, entityID uuid.UUID, rawScore, decayedScore int, tier scoring.Tier, signalCount int, lastSignalAt *time.Time, computedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO score_snapshots (entity_id, raw_score, decayed_score, score_tier, signal_count, last_signal_at, computed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (entity_id)
		DO UPDATE SET
			raw_score = $2,
			decayed_score = $3,
			score_tier = $4,
			signal_count = $5,
			last_signal_at = $6,
			computed_at = $7,
			updated_at = now()`,
		entityID, rawScore, decayedScore, string(tier), signalCount, lastSignalAt, computedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// EntitiesDueForRecalc lists entities with recorded signals whose snapshot
// is missing or older than the recalculation interval. Feeds the sweep.
func (s *Store) EntitiesDueForRecalc(ctx context.Context, interval time.Duration, limit int) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT sig.entity_id
		FROM outreach_signals sig
		LEFT JOIN score_snapshots snap ON snap.entity_id = sig.entity_id
		WHERE snap.entity_id IS NULL OR snap.computed_at <= now() - $1::interval
		LIMIT $2`,
		fmt.Sprintf("%f seconds", interval.Seconds()), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query entities due for recalc: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entity id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
