package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/djb258/barton-outreach-core/internal/scoring"
)

// GetContact fetches the contact record for an entity. Returns (nil, nil)
// when the entity has no contact row; the evaluator then sees an empty
// contact and validation fails per action rule, which is the intended
// fail-closed behavior.
func (s *Store) GetContact(ctx context.Context, entityID uuid.UUID) (*scoring.Contact, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT entity_id, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(full_name, ''), COALESCE(company, '')
		FROM contacts
		WHERE entity_id = $1`,
		entityID,
	)

	var c scoring.Contact
	err := row.Scan(&c.EntityID, &c.Email, &c.Phone, &c.FullName, &c.Company)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &c, nil
}
