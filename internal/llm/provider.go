package llm

import (
	"fmt"
	"strings"

	"github.com/hearthlabs/kinship/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderCerebras  = "cerebras"
	ProviderMock      = "mock"
)

// NewClient creates an extraction provider based on the provider name.
// Returns an error if the provider is unknown or the API key is empty (except for mock).
func NewClient(provider, apiKey string) (domain.ExtractionProvider, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return NewOpenAIClient(apiKey), nil

	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Anthropic provider")
		}
		return NewAnthropicClient(apiKey), nil

	case ProviderGemini:
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return NewGeminiClient(apiKey), nil

	case ProviderCerebras:
		if apiKey == "" {
			return nil, fmt.Errorf("CEREBRAS_API_KEY is required for Cerebras provider")
		}
		return NewCerebrasClient(apiKey), nil

	case ProviderMock:
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (valid options: openai, anthropic, gemini, cerebras, mock)", provider)
	}
}

// normalizeExtraction cleans provider output in place. Names are trimmed,
// relationship kinds are derived from the free-text term when the provider
// did not supply a valid kind, and relationships with a blank endpoint are
// dropped. Persons with blank display names are left alone here; the
// pipeline discards them with a per-entry warning.
func normalizeExtraction(res *domain.ExtractionResult) {
	for i := range res.Persons {
		res.Persons[i].DisplayName = strings.TrimSpace(res.Persons[i].DisplayName)
		res.Persons[i].Surname = strings.TrimSpace(res.Persons[i].Surname)
		res.Persons[i].Location = strings.TrimSpace(res.Persons[i].Location)
	}

	kept := res.Relationships[:0]
	for _, rel := range res.Relationships {
		rel.PersonA = strings.TrimSpace(rel.PersonA)
		rel.PersonB = strings.TrimSpace(rel.PersonB)
		if rel.PersonA == "" || rel.PersonB == "" {
			continue
		}
		if !domain.ValidRelationKind(string(rel.Kind)) {
			rel.Kind = domain.RelationKindForTerm(rel.Term)
		}
		kept = append(kept, rel)
	}
	res.Relationships = kept

	res.SpeakerName = strings.TrimSpace(res.SpeakerName)
}
