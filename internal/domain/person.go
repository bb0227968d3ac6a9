package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExtractedPerson is a candidate identity observed in one input text.
// It is ephemeral: produced by the extraction provider and consumed once
// per pipeline run.
type ExtractedPerson struct {
	DisplayName string   `json:"display_name"`
	Surname     string   `json:"surname,omitempty"`
	Location    string   `json:"location,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	Age         int      `json:"age,omitempty"`
	Occupation  string   `json:"occupation,omitempty"`
	IsSpeaker   bool     `json:"is_speaker,omitempty"`
	RawMentions []string `json:"raw_mentions,omitempty"`
}

// EffectiveSurname returns the explicit surname, or the last name token when
// the display name has at least two tokens. A single-token name with no
// explicit surname has none — those persons are routed to the unassigned
// bucket when they also lack relationships.
func (p ExtractedPerson) EffectiveSurname() string {
	if p.Surname != "" {
		return p.Surname
	}
	parts := strings.Fields(p.DisplayName)
	if len(parts) >= 2 {
		return parts[len(parts)-1]
	}
	return ""
}

// PersonRecord is the durable identity a person resolves to. Owned by the
// person store; the pipeline never deletes one, it only reads and proposes
// updates.
type PersonRecord struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Surname     string    `json:"surname,omitempty"`
	FamilyCode  string    `json:"family_code,omitempty"`
	Location    string    `json:"location,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	Age         int       `json:"age,omitempty"`
	Occupation  string    `json:"occupation,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	RawMentions []string  `json:"raw_mentions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PersonUpdate carries the fields of an update proposal. Nil fields are left
// untouched, which is how merge keeps existing values and only fills gaps.
type PersonUpdate struct {
	DisplayName *string  `json:"display_name,omitempty"`
	Surname     *string  `json:"surname,omitempty"`
	FamilyCode  *string  `json:"family_code,omitempty"`
	Location    *string  `json:"location,omitempty"`
	Gender      *string  `json:"gender,omitempty"`
	Age         *int     `json:"age,omitempty"`
	Occupation  *string  `json:"occupation,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
	RawMentions []string `json:"raw_mentions,omitempty"`
}

// CandidateMatch is one row returned by PersonStore.Search. The Score here is
// the store's retrieval ranking; the duplicate resolver re-scores candidates
// with the similarity scorer before deciding.
type CandidateMatch struct {
	PersonID    uuid.UUID `json:"person_id"`
	DisplayName string    `json:"display_name"`
	Surname     string    `json:"surname,omitempty"`
	Location    string    `json:"location,omitempty"`
	Score       float64   `json:"score"`
	MatchedOn   string    `json:"matched_on,omitempty"`
}

type DecisionKind string

const (
	DecisionAutoMerge          DecisionKind = "auto_merge"
	DecisionNeedsClarification DecisionKind = "needs_clarification"
	DecisionCreateNew          DecisionKind = "create_new"
)

func ValidDecisionKind(k string) bool {
	switch DecisionKind(k) {
	case DecisionAutoMerge, DecisionNeedsClarification, DecisionCreateNew:
		return true
	}
	return false
}

// MergeDecision is the single, immutable outcome of duplicate resolution for
// one extracted person. TargetPersonID and Confidence are set for auto-merge;
// Candidates carries the ranked list for needs-clarification.
type MergeDecision struct {
	Kind           DecisionKind     `json:"kind"`
	TargetPersonID uuid.UUID        `json:"target_person_id,omitempty"`
	Confidence     float64          `json:"confidence,omitempty"`
	Candidates     []CandidateMatch `json:"candidates,omitempty"`
	Reason         string           `json:"reason,omitempty"`
}

// ResolvedPerson pairs an extracted person with its merge decision for the
// grouping and persistence stages.
type ResolvedPerson struct {
	Person   ExtractedPerson `json:"person"`
	Decision MergeDecision   `json:"decision"`
}

// PersonDecision is the per-person row of a PipelineResult. PersonID is the
// durable identity after persistence: the merge target for auto-merges, the
// newly created record otherwise.
type PersonDecision struct {
	ExtractedName string        `json:"extracted_name"`
	Decision      MergeDecision `json:"decision"`
	PersonID      uuid.UUID     `json:"person_id,omitempty"`
}
