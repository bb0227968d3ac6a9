package service

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSimilarityScorer_IdenticalNames(t *testing.T) {
	scorer := NewSimilarityScorer()

	if got := scorer.Score("John Smith", "John Smith"); got != 1.0 {
		t.Fatalf("Score(identical) = %f, want 1.0", got)
	}
	if got := scorer.Score("  JOHN   smith ", "john SMITH"); got != 1.0 {
		t.Fatalf("Score(identical after normalization) = %f, want 1.0", got)
	}
}

func TestSimilarityScorer_EmptyName(t *testing.T) {
	scorer := NewSimilarityScorer()

	if got := scorer.Score("John", ""); got != 0.0 {
		t.Fatalf("Score(name, empty) = %f, want 0.0", got)
	}
	if got := scorer.Score("", "Smith"); got != 0.0 {
		t.Fatalf("Score(empty, name) = %f, want 0.0", got)
	}
}

func TestSimilarityScorer_NearMatches(t *testing.T) {
	scorer := NewSimilarityScorer()

	tests := []struct {
		name  string
		a, b  string
		want  float64
	}{
		// one edit over ten runes
		{"single insertion", "Jon Smith", "John Smith", 0.9},
		// token strategy: weighted first/last ratios beat the full ratio
		{"nickname with matching surname", "Elizabeth Smith", "Liz Smith", 1.0/3.0*0.4 + 1.0*0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.a, tt.b)
			if !almostEqual(got, tt.want) {
				t.Errorf("Score(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarityScorer_Commutative(t *testing.T) {
	scorer := NewSimilarityScorer()

	pairs := [][2]string{
		{"Jon Smith", "John Smith"},
		{"Elizabeth Smith", "Liz Smith"},
		{"Alice Johnson", "Bob Marley"},
		{"Priya Sharma", "Priya Sharma"},
	}

	for _, pair := range pairs {
		ab := scorer.Score(pair[0], pair[1])
		ba := scorer.Score(pair[1], pair[0])
		if ab != ba {
			t.Errorf("Score(%q, %q) = %f but reversed = %f", pair[0], pair[1], ab, ba)
		}
	}
}

func TestSimilarityScorer_UnrelatedNamesScoreLow(t *testing.T) {
	scorer := NewSimilarityScorer()

	if got := scorer.Score("Alice Johnson", "Rajesh Kumar"); got >= 0.5 {
		t.Fatalf("Score(unrelated) = %f, want < 0.5", got)
	}
}

func TestSimilarityScorer_LocationBonus(t *testing.T) {
	scorer := NewSimilarityScorer()

	base := scorer.Score("Jon Smith", "John Smith")
	boosted := scorer.ScoreWithAttributes("Jon Smith", "John Smith", "Seattle", "seattle")
	if !almostEqual(boosted, base+LocationMatchBonus) {
		t.Fatalf("boosted = %f, want base %f + bonus %f", boosted, base, LocationMatchBonus)
	}

	// no bonus when either location is missing or they differ
	if got := scorer.ScoreWithAttributes("Jon Smith", "John Smith", "Seattle", ""); !almostEqual(got, base) {
		t.Errorf("missing location should not add bonus, got %f want %f", got, base)
	}
	if got := scorer.ScoreWithAttributes("Jon Smith", "John Smith", "Seattle", "Portland"); !almostEqual(got, base) {
		t.Errorf("different locations should not add bonus, got %f want %f", got, base)
	}
}

func TestSimilarityScorer_BonusCappedAtOne(t *testing.T) {
	scorer := NewSimilarityScorer()

	got := scorer.ScoreWithAttributes("John Smith", "John Smith", "Seattle", "Seattle")
	if got != 1.0 {
		t.Fatalf("capped score = %f, want exactly 1.0", got)
	}
}

func TestEditRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"smith", "smith", 1.0},
		{"smith", "smyth", 0.8},
		{"jon", "john", 0.75},
		{"", "anything", 0.0},
	}

	for _, tt := range tests {
		if got := editRatio(tt.a, tt.b); !almostEqual(got, tt.want) {
			t.Errorf("editRatio(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
		{"", "abc", 3},
	}

	for _, tt := range tests {
		if got := levenshtein([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
