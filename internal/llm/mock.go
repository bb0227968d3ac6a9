package llm

import (
	"context"

	"github.com/hearthlabs/kinship/internal/domain"
)

// MockClient is a configurable extraction provider for testing and local
// development. Set the response fields to control what Extract returns.
type MockClient struct {
	ExtractResponse *domain.ExtractionResult
	ExtractError    error

	// Call tracking for assertions
	ExtractCalls []string
}

func NewMockClient() *MockClient {
	return &MockClient{
		ExtractResponse: &domain.ExtractionResult{
			Persons: []domain.ExtractedPerson{
				{
					DisplayName: "Ravi Kumar",
					Surname:     "Kumar",
					Location:    "Chennai",
					Gender:      "male",
					IsSpeaker:   true,
					RawMentions: []string{"I'm Ravi Kumar, calling from Chennai"},
				},
				{
					DisplayName: "Lakshmi Kumar",
					Gender:      "female",
					RawMentions: []string{"my wife Lakshmi"},
				},
			},
			Relationships: []domain.ExtractedRelationship{
				{PersonA: "Ravi Kumar", PersonB: "Lakshmi Kumar", Kind: domain.RelationSpouse, Term: "wife"},
			},
			SpeakerName: "Ravi Kumar",
		},
	}
}

func (c *MockClient) Extract(ctx context.Context, text string) (*domain.ExtractionResult, error) {
	c.ExtractCalls = append(c.ExtractCalls, text)
	if c.ExtractError != nil {
		return nil, c.ExtractError
	}
	return c.ExtractResponse, nil
}

// Reset clears all recorded calls and resets the response to its default.
func (c *MockClient) Reset() {
	c.ExtractResponse = NewMockClient().ExtractResponse
	c.ExtractError = nil
	c.ExtractCalls = nil
}
