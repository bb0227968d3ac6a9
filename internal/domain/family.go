package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UnknownToken substitutes a missing surname or location in a family code.
const UnknownToken = "UNKNOWN"

var familyCodePattern = regexp.MustCompile(`^[A-Z]+-[A-Z]+-\d{3}$`)

// ValidFamilyCode reports whether code matches the SURNAME-CITY-NNN wire
// format, e.g. SHARMA-HYDERABAD-001.
func ValidFamilyCode(code string) bool {
	return familyCodePattern.MatchString(code)
}

// NormalizeCodeToken strips non-letter characters and upper-cases the rest.
// An empty result falls back to UnknownToken.
func NormalizeCodeToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return UnknownToken
	}
	return b.String()
}

// ComposeFamilyCode builds SURNAME-CITY-NNN from already-normalized tokens
// and a zero-padded three-digit sequence.
func ComposeFamilyCode(surname, location string, seq int) string {
	return fmt.Sprintf("%s-%s-%03d", surname, location, seq)
}

// FamilyGroup is one connected component of a batch: its members (batch-scoped
// display names), the anchor whose attributes seeded the code, and the derived
// code. Unassigned groups hold fully isolated, surname-less persons and carry
// no code.
type FamilyGroup struct {
	FamilyCode string   `json:"family_code,omitempty"`
	Surname    string   `json:"surname,omitempty"`
	Location   string   `json:"location,omitempty"`
	AnchorName string   `json:"anchor_name,omitempty"`
	Members    []string `json:"members"`
	Unassigned bool     `json:"unassigned,omitempty"`
}

// FamilyRecord is the durable family row behind a code.
type FamilyRecord struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Surname   string    `json:"surname"`
	Location  string    `json:"location"`
	Sequence  int       `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
