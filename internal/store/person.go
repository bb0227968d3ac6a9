package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthlabs/kinship/internal/domain"
)

type PersonStore struct {
	db *pgxpool.Pool
}

func NewPersonStore(db *pgxpool.Pool) *PersonStore {
	return &PersonStore{db: db}
}

func (s *PersonStore) Create(ctx context.Context, p *domain.PersonRecord) error {
	if p.RawMentions == nil {
		p.RawMentions = []string{}
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO persons (display_name, surname, family_code, location, gender, age, occupation, notes, raw_mentions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		p.DisplayName, p.Surname, p.FamilyCode, p.Location, p.Gender, p.Age, p.Occupation, p.Notes, p.RawMentions,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (s *PersonStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.PersonRecord, error) {
	p := &domain.PersonRecord{}
	err := s.db.QueryRow(ctx,
		`SELECT id, display_name, surname, family_code, location, gender, age, occupation, notes, raw_mentions, created_at, updated_at
		 FROM persons WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.DisplayName, &p.Surname, &p.FamilyCode, &p.Location, &p.Gender, &p.Age, &p.Occupation, &p.Notes, &p.RawMentions, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *PersonStore) Update(ctx context.Context, id uuid.UUID, upd domain.PersonUpdate) error {
	var sets []string
	var args []any

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.DisplayName != nil {
		add("display_name", *upd.DisplayName)
	}
	if upd.Surname != nil {
		add("surname", *upd.Surname)
	}
	if upd.FamilyCode != nil {
		add("family_code", *upd.FamilyCode)
	}
	if upd.Location != nil {
		add("location", *upd.Location)
	}
	if upd.Gender != nil {
		add("gender", *upd.Gender)
	}
	if upd.Age != nil {
		add("age", *upd.Age)
	}
	if upd.Occupation != nil {
		add("occupation", *upd.Occupation)
	}
	if upd.Notes != nil {
		add("notes", *upd.Notes)
	}
	if upd.RawMentions != nil {
		add("raw_mentions", upd.RawMentions)
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE persons SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Search retrieves candidates for duplicate resolution. Matching is
// deliberately broad — exact name, name substring, or surname — because the
// resolver re-scores every candidate; Score here only ranks retrieval.
func (s *PersonStore) Search(ctx context.Context, query string, attrs domain.SearchAttributes) ([]domain.CandidateMatch, error) {
	limit := attrs.Limit
	if limit <= 0 {
		limit = 10
	}

	q := strings.TrimSpace(query)
	surnameHint := attrs.Surname
	if surnameHint == "" {
		if parts := strings.Fields(q); len(parts) >= 2 {
			surnameHint = parts[len(parts)-1]
		}
	}

	var conditions []string
	var args []any

	args = append(args, q)
	nameParam := len(args)
	args = append(args, surnameHint)
	surnameParam := len(args)

	conditions = append(conditions, fmt.Sprintf(
		`(LOWER(display_name) = LOWER($%d)
		  OR display_name ILIKE '%%' || $%d || '%%'
		  OR ($%d <> '' AND LOWER(surname) = LOWER($%d)))`,
		nameParam, nameParam, surnameParam, surnameParam,
	))

	if attrs.Location != "" {
		args = append(args, attrs.Location)
		conditions = append(conditions, fmt.Sprintf("LOWER(location) = LOWER($%d)", len(args)))
	}

	args = append(args, limit)
	limitParam := len(args)

	sql := fmt.Sprintf(
		`SELECT id, display_name, surname, location,
		        CASE
		          WHEN LOWER(display_name) = LOWER($%d) THEN 1.0
		          WHEN $%d <> '' AND LOWER(surname) = LOWER($%d) THEN 0.7
		          ELSE 0.5
		        END AS score,
		        CASE
		          WHEN LOWER(display_name) = LOWER($%d) THEN 'name'
		          WHEN $%d <> '' AND LOWER(surname) = LOWER($%d) THEN 'surname'
		          ELSE 'partial'
		        END AS matched_on
		 FROM persons
		 WHERE %s
		 ORDER BY score DESC, created_at ASC
		 LIMIT $%d`,
		nameParam, surnameParam, surnameParam,
		nameParam, surnameParam, surnameParam,
		strings.Join(conditions, " AND "),
		limitParam,
	)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search persons: %w", err)
	}
	defer rows.Close()

	var matches []domain.CandidateMatch
	for rows.Next() {
		var m domain.CandidateMatch
		if err := rows.Scan(&m.PersonID, &m.DisplayName, &m.Surname, &m.Location, &m.Score, &m.MatchedOn); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *PersonStore) ListByFamilyCode(ctx context.Context, code string) ([]domain.PersonRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, display_name, surname, family_code, location, gender, age, occupation, notes, raw_mentions, created_at, updated_at
		 FROM persons WHERE family_code = $1
		 ORDER BY created_at ASC`,
		code,
	)
	if err != nil {
		return nil, fmt.Errorf("list by family code: %w", err)
	}
	defer rows.Close()

	var persons []domain.PersonRecord
	for rows.Next() {
		var p domain.PersonRecord
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.Surname, &p.FamilyCode, &p.Location, &p.Gender, &p.Age, &p.Occupation, &p.Notes, &p.RawMentions, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}
