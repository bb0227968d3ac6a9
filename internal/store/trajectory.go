package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthlabs/kinship/internal/domain"
)

type TrajectoryStore struct {
	db *pgxpool.Pool
}

func NewTrajectoryStore(db *pgxpool.Pool) *TrajectoryStore {
	return &TrajectoryStore{db: db}
}

// AppendSteps archives a finished session's steps. Steps are insert-only;
// the (session_id, seq) key makes re-archiving the same session a no-op.
func (s *TrajectoryStore) AppendSteps(ctx context.Context, steps []domain.TrajectoryStep) error {
	for _, step := range steps {
		_, err := s.db.Exec(ctx,
			`INSERT INTO trajectory_steps (session_id, agent_name, seq, step_type, content, metadata, ts)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (session_id, seq) DO NOTHING`,
			step.SessionID, step.AgentName, step.Seq, step.Type, step.Content, step.Metadata, step.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("append step %d: %w", step.Seq, err)
		}
	}
	return nil
}

func (s *TrajectoryStore) GetBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.TrajectoryStep, error) {
	rows, err := s.db.Query(ctx,
		`SELECT session_id, agent_name, seq, step_type, content, metadata, ts
		 FROM trajectory_steps
		 WHERE session_id = $1
		 ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("trajectory by session: %w", err)
	}
	defer rows.Close()

	var steps []domain.TrajectoryStep
	for rows.Next() {
		var step domain.TrajectoryStep
		if err := rows.Scan(&step.SessionID, &step.AgentName, &step.Seq, &step.Type, &step.Content, &step.Metadata, &step.Timestamp); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}
