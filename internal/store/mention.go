package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/hearthlabs/kinship/internal/domain"
)

type MentionStore struct {
	db *pgxpool.Pool
}

func NewMentionStore(db *pgxpool.Pool) *MentionStore {
	return &MentionStore{db: db}
}

func (s *MentionStore) Create(ctx context.Context, m *domain.Mention) error {
	var embedding *pgvector.Vector
	if len(m.Embedding) > 0 {
		v := pgvector.NewVector(m.Embedding)
		embedding = &v
	}

	var personID, sessionID any
	if m.PersonID != uuid.Nil {
		personID = m.PersonID
	}
	if m.SessionID != uuid.Nil {
		sessionID = m.SessionID
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO mentions (person_id, session_id, text, embedding)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		personID, sessionID, m.Text, embedding,
	).Scan(&m.ID, &m.CreatedAt)
}

func (s *MentionStore) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]domain.MentionWithScore, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT id, COALESCE(person_id, '00000000-0000-0000-0000-000000000000'), COALESCE(session_id, '00000000-0000-0000-0000-000000000000'), text, created_at,
		        1 - (embedding <=> $1) AS score
		 FROM mentions
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		vec, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search mentions: %w", err)
	}
	defer rows.Close()

	var results []domain.MentionWithScore
	for rows.Next() {
		var m domain.MentionWithScore
		if err := rows.Scan(&m.ID, &m.PersonID, &m.SessionID, &m.Text, &m.CreatedAt, &m.Score); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func (s *MentionStore) GetByPerson(ctx context.Context, personID uuid.UUID) ([]domain.Mention, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, person_id, COALESCE(session_id, '00000000-0000-0000-0000-000000000000'), text, created_at
		 FROM mentions WHERE person_id = $1
		 ORDER BY created_at ASC`,
		personID,
	)
	if err != nil {
		return nil, fmt.Errorf("mentions by person: %w", err)
	}
	defer rows.Close()

	var mentions []domain.Mention
	for rows.Next() {
		var m domain.Mention
		if err := rows.Scan(&m.ID, &m.PersonID, &m.SessionID, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		mentions = append(mentions, m)
	}
	return mentions, rows.Err()
}
