package service

import "strings"

const (
	// LocationMatchBonus is added when both persons carry the same location.
	// Capped so a boosted score never exceeds 1.0.
	LocationMatchBonus = 0.05

	// firstTokenWeight and lastTokenWeight weight the token strategy; the
	// last token (usually the surname) carries more identity signal.
	firstTokenWeight = 0.4
	lastTokenWeight  = 0.6
)

// SimilarityScorer compares person names to a score in [0,1]. Scoring is
// deterministic and commutative, and identical names score 1.0 after
// case/whitespace normalization. It holds no state and never fails.
type SimilarityScorer struct{}

func NewSimilarityScorer() *SimilarityScorer {
	return &SimilarityScorer{}
}

// Score returns the name-only similarity: the better of a full-string edit
// distance ratio and a first/last token weighted ratio.
func (s *SimilarityScorer) Score(nameA, nameB string) float64 {
	a := normalizeName(nameA)
	b := normalizeName(nameB)
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	best := editRatio(a, b)

	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) >= 2 && len(tokensB) >= 2 {
		first := editRatio(tokensA[0], tokensB[0])
		last := editRatio(tokensA[len(tokensA)-1], tokensB[len(tokensB)-1])
		if token := first*firstTokenWeight + last*lastTokenWeight; token > best {
			best = token
		}
	}
	return best
}

// ScoreWithAttributes adds the location bonus on top of the name score when
// both locations are present and equal (case-insensitive).
func (s *SimilarityScorer) ScoreWithAttributes(nameA, nameB, locationA, locationB string) float64 {
	score := s.Score(nameA, nameB)
	la := strings.TrimSpace(locationA)
	lb := strings.TrimSpace(locationB)
	if la != "" && lb != "" && strings.EqualFold(la, lb) {
		score += LocationMatchBonus
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// editRatio converts Levenshtein distance into a similarity in [0,1],
// normalized by the longer string.
func editRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}
	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(longer)
}

// levenshtein computes edit distance with a rolling two-row matrix.
func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			best := prev[j] + 1 // deletion
			if ins := curr[j-1] + 1; ins < best {
				best = ins
			}
			if sub := prev[j-1] + cost; sub < best {
				best = sub
			}
			curr[j] = best
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
