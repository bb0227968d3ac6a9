package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type RelationKind string

const (
	RelationSpouse      RelationKind = "spouse"
	RelationParentChild RelationKind = "parent_child"
	RelationSibling     RelationKind = "sibling"
	RelationOther       RelationKind = "other"
)

func ValidRelationKind(k string) bool {
	switch RelationKind(k) {
	case RelationSpouse, RelationParentChild, RelationSibling, RelationOther:
		return true
	}
	return false
}

var relationTermKinds = map[string]RelationKind{
	"wife":     RelationSpouse,
	"husband":  RelationSpouse,
	"spouse":   RelationSpouse,
	"partner":  RelationSpouse,
	"son":      RelationParentChild,
	"daughter": RelationParentChild,
	"child":    RelationParentChild,
	"father":   RelationParentChild,
	"mother":   RelationParentChild,
	"parent":   RelationParentChild,
	"brother":  RelationSibling,
	"sister":   RelationSibling,
	"sibling":  RelationSibling,
}

// RelationKindForTerm maps a free-text relationship term to its enumerated
// kind. Unrecognized terms map to RelationOther.
func RelationKindForTerm(term string) RelationKind {
	if kind, ok := relationTermKinds[strings.ToLower(strings.TrimSpace(term))]; ok {
		return kind
	}
	return RelationOther
}

// ExtractedRelationship is an unordered pair of display names from one batch
// plus the relationship kind. Kind is ignored for grouping connectivity and
// retained as edge metadata for storage. Both endpoints must name a person
// present in the same ExtractionResult.
type ExtractedRelationship struct {
	PersonA string       `json:"person_a"`
	PersonB string       `json:"person_b"`
	Kind    RelationKind `json:"kind"`
	Term    string       `json:"term,omitempty"`
}

// RelationshipRecord is a stored edge between two durable person identities.
type RelationshipRecord struct {
	ID        uuid.UUID    `json:"id"`
	PersonAID uuid.UUID    `json:"person_a_id"`
	PersonBID uuid.UUID    `json:"person_b_id"`
	Kind      RelationKind `json:"kind"`
	Term      string       `json:"term,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
