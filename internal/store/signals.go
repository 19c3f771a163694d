package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/djb258/barton-outreach-core/internal/scoring"
)

// SignalsForEntity fetches the full signal history for one entity, oldest
// first. Signals are immutable once recorded; the engine only reads them.
func (s *Store) SignalsForEntity(ctx context.Context, entityID uuid.UUID) ([]scoring.Signal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT signal_id, entity_id, signal_type, detected_at, signal_weight, metadata
		FROM outreach_signals
		WHERE entity_id = $1
		ORDER BY detected_at ASC`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var signals []scoring.Signal
	for rows.Next() {
		var sig scoring.Signal
		var metadata []byte
		if err := rows.Scan(&sig.ID, &sig.EntityID, &sig.Type, &sig.DetectedAt, &sig.Weight, &metadata); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &sig.Metadata); err != nil {
				return nil, fmt.Errorf("parse signal metadata %s: %w", sig.ID, err)
			}
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}
