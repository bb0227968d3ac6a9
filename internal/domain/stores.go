package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SearchAttributes narrows a person search. Zero values are ignored.
type SearchAttributes struct {
	Surname  string
	Location string
	Limit    int
}

type PersonStore interface {
	Create(ctx context.Context, p *PersonRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*PersonRecord, error)
	Update(ctx context.Context, id uuid.UUID, upd PersonUpdate) error
	Search(ctx context.Context, query string, attrs SearchAttributes) ([]CandidateMatch, error)
	ListByFamilyCode(ctx context.Context, code string) ([]PersonRecord, error)
}

type FamilyStore interface {
	// NextSequence atomically allocates the next sequence number for the
	// normalized (surname, location) pair. Safe under concurrent runs.
	NextSequence(ctx context.Context, surname, location string) (int, error)
	// FindExisting returns the code of a family already registered for the
	// pair, or the store's not-found error.
	FindExisting(ctx context.Context, surname, location string) (string, error)
	Upsert(ctx context.Context, f *FamilyRecord) error
	GetByCode(ctx context.Context, code string) (*FamilyRecord, error)
	List(ctx context.Context) ([]FamilyRecord, error)
}

type RelationshipStore interface {
	Create(ctx context.Context, r *RelationshipRecord) error
	GetByPerson(ctx context.Context, personID uuid.UUID) ([]RelationshipRecord, error)
}

// Mention is one raw mention text archived from a pipeline run, embedded for
// semantic recall.
type Mention struct {
	ID        uuid.UUID `json:"id"`
	PersonID  uuid.UUID `json:"person_id,omitempty"`
	SessionID uuid.UUID `json:"session_id,omitempty"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type MentionWithScore struct {
	Mention
	Score float32 `json:"score"`
}

type MentionStore interface {
	Create(ctx context.Context, m *Mention) error
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]MentionWithScore, error)
	GetByPerson(ctx context.Context, personID uuid.UUID) ([]Mention, error)
}

// TrajectoryStore archives a session's steps after the run returns so audit
// queries can replay them. The in-run recorder itself is in-memory.
type TrajectoryStore interface {
	AppendSteps(ctx context.Context, steps []TrajectoryStep) error
	GetBySession(ctx context.Context, sessionID uuid.UUID) ([]TrajectoryStep, error)
}

// ExtractionProvider turns raw text into the batch the pipeline consumes.
// Malformed or empty output is an extraction error, fatal for that run.
type ExtractionProvider interface {
	Extract(ctx context.Context, text string) (*ExtractionResult, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
