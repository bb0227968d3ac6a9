package domain

import "testing"

func TestValidFamilyCode(t *testing.T) {
	valid := []string{"SMITH-SEATTLE-001", "SHARMA-HYDERABAD-042", "UNKNOWN-UNKNOWN-999", "A-B-000"}
	for _, code := range valid {
		if !ValidFamilyCode(code) {
			t.Errorf("ValidFamilyCode(%q) = false, want true", code)
		}
	}

	invalid := []string{
		"",
		"smith-seattle-001",
		"SMITH-SEATTLE-1",
		"SMITH-SEATTLE-0001",
		"SMITH-001",
		"SMITH-SEATTLE-ABC",
		"SMITH_SEATTLE_001",
		"SMITH-SEA TTLE-001",
		"SMITH-SEATTLE-001-EXTRA",
	}
	for _, code := range invalid {
		if ValidFamilyCode(code) {
			t.Errorf("ValidFamilyCode(%q) = true, want false", code)
		}
	}
}

func TestNormalizeCodeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Smith", "SMITH"},
		{"  seattle ", "SEATTLE"},
		{"O'Brien", "OBRIEN"},
		{"São Paulo", "SOPAULO"},
		{"New York", "NEWYORK"},
		{"123", UnknownToken},
		{"", UnknownToken},
		{"   ", UnknownToken},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeCodeToken(tt.in); got != tt.want {
				t.Errorf("NormalizeCodeToken(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestComposeFamilyCode(t *testing.T) {
	tests := []struct {
		surname  string
		location string
		seq      int
		want     string
	}{
		{"SMITH", "SEATTLE", 1, "SMITH-SEATTLE-001"},
		{"SHARMA", "HYDERABAD", 42, "SHARMA-HYDERABAD-042"},
		{"UNKNOWN", "UNKNOWN", 7, "UNKNOWN-UNKNOWN-007"},
	}

	for _, tt := range tests {
		got := ComposeFamilyCode(tt.surname, tt.location, tt.seq)
		if got != tt.want {
			t.Errorf("ComposeFamilyCode(%q, %q, %d) = %q, want %q", tt.surname, tt.location, tt.seq, got, tt.want)
		}
		if !ValidFamilyCode(got) {
			t.Errorf("composed code %q fails validation", got)
		}
	}
}
