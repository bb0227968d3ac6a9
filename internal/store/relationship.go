package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthlabs/kinship/internal/domain"
)

type RelationshipStore struct {
	db *pgxpool.Pool
}

func NewRelationshipStore(db *pgxpool.Pool) *RelationshipStore {
	return &RelationshipStore{db: db}
}

// Create stores an edge between two durable persons. Re-submitting the same
// edge is a no-op, which keeps re-processed batches from duplicating edges.
func (s *RelationshipStore) Create(ctx context.Context, r *domain.RelationshipRecord) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO relationships (person_a_id, person_b_id, kind, term)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (person_a_id, person_b_id, kind) DO UPDATE SET term = relationships.term
		 RETURNING id, created_at`,
		r.PersonAID, r.PersonBID, r.Kind, r.Term,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create relationship: %w", err)
	}
	return nil
}

func (s *RelationshipStore) GetByPerson(ctx context.Context, personID uuid.UUID) ([]domain.RelationshipRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, person_a_id, person_b_id, kind, term, created_at
		 FROM relationships
		 WHERE person_a_id = $1 OR person_b_id = $1
		 ORDER BY created_at ASC`,
		personID,
	)
	if err != nil {
		return nil, fmt.Errorf("relationships by person: %w", err)
	}
	defer rows.Close()

	var rels []domain.RelationshipRecord
	for rows.Next() {
		var r domain.RelationshipRecord
		if err := rows.Scan(&r.ID, &r.PersonAID, &r.PersonBID, &r.Kind, &r.Term, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}
