package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthlabs/kinship/internal/domain"
)

type FamilyStore struct {
	db *pgxpool.Pool
}

func NewFamilyStore(db *pgxpool.Pool) *FamilyStore {
	return &FamilyStore{db: db}
}

// NextSequence allocates the next code sequence for a normalized
// (surname, location) pair. The upsert increments atomically, so concurrent
// runs never mint the same number.
func (s *FamilyStore) NextSequence(ctx context.Context, surname, location string) (int, error) {
	var seq int
	err := s.db.QueryRow(ctx,
		`INSERT INTO family_sequences (surname, location, seq)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (surname, location) DO UPDATE SET seq = family_sequences.seq + 1
		 RETURNING seq`,
		surname, location,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

func (s *FamilyStore) FindExisting(ctx context.Context, surname, location string) (string, error) {
	var code string
	err := s.db.QueryRow(ctx,
		`SELECT code FROM families
		 WHERE surname = $1 AND location = $2
		 ORDER BY sequence ASC
		 LIMIT 1`,
		surname, location,
	).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return code, nil
}

func (s *FamilyStore) Upsert(ctx context.Context, f *domain.FamilyRecord) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO families (code, surname, location, sequence)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (code) DO UPDATE SET updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		f.Code, f.Surname, f.Location, f.Sequence,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
}

func (s *FamilyStore) GetByCode(ctx context.Context, code string) (*domain.FamilyRecord, error) {
	f := &domain.FamilyRecord{}
	err := s.db.QueryRow(ctx,
		`SELECT id, code, surname, location, sequence, created_at, updated_at
		 FROM families WHERE code = $1`,
		code,
	).Scan(&f.ID, &f.Code, &f.Surname, &f.Location, &f.Sequence, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FamilyStore) List(ctx context.Context) ([]domain.FamilyRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, code, surname, location, sequence, created_at, updated_at
		 FROM families ORDER BY code ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list families: %w", err)
	}
	defer rows.Close()

	var families []domain.FamilyRecord
	for rows.Next() {
		var f domain.FamilyRecord
		if err := rows.Scan(&f.ID, &f.Code, &f.Surname, &f.Location, &f.Sequence, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan family: %w", err)
		}
		families = append(families, f)
	}
	return families, rows.Err()
}
