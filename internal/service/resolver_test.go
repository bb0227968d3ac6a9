package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/hearthlabs/kinship/internal/domain"
)

func newTestResolver() *DuplicateResolver {
	return NewDuplicateResolver(NewSimilarityScorer(), ResolverConfig{}, zap.NewNop())
}

func candidatesWithScores(scores ...float64) []domain.CandidateMatch {
	out := make([]domain.CandidateMatch, len(scores))
	for i, s := range scores {
		out[i] = domain.CandidateMatch{
			PersonID:    uuid.New(),
			DisplayName: "candidate",
			Score:       s,
		}
	}
	return out
}

func TestDuplicateResolver_Decide_NoCandidates(t *testing.T) {
	r := newTestResolver()

	decision := r.decide(nil)

	assert.Equal(t, domain.DecisionCreateNew, decision.Kind)
	assert.Equal(t, uuid.Nil, decision.TargetPersonID)
	assert.Empty(t, decision.Candidates)
}

func TestDuplicateResolver_Decide_AllBelowCandidateThreshold(t *testing.T) {
	r := newTestResolver()

	decision := r.decide(candidatesWithScores(0.84, 0.70, 0.20))

	assert.Equal(t, domain.DecisionCreateNew, decision.Kind)
	assert.Empty(t, decision.Candidates)
}

func TestDuplicateResolver_Decide_ClearWinnerAutoMerges(t *testing.T) {
	r := newTestResolver()
	scored := candidatesWithScores(0.97, 0.91)

	decision := r.decide(scored)

	assert.Equal(t, domain.DecisionAutoMerge, decision.Kind)
	assert.Equal(t, scored[0].PersonID, decision.TargetPersonID)
	assert.InDelta(t, 0.97, decision.Confidence, 1e-9)
}

func TestDuplicateResolver_Decide_CloseCompetitorNeedsClarification(t *testing.T) {
	r := newTestResolver()
	scored := candidatesWithScores(0.96, 0.94)

	decision := r.decide(scored)

	assert.Equal(t, domain.DecisionNeedsClarification, decision.Kind)
	assert.Equal(t, uuid.Nil, decision.TargetPersonID)
	assert.Len(t, decision.Candidates, 2, "ranked candidate list must be carried for clarification")
}

func TestDuplicateResolver_Decide_HighScoreAloneAutoMerges(t *testing.T) {
	r := newTestResolver()
	scored := candidatesWithScores(0.95)

	decision := r.decide(scored)

	assert.Equal(t, domain.DecisionAutoMerge, decision.Kind)
	assert.Equal(t, scored[0].PersonID, decision.TargetPersonID)
}

func TestDuplicateResolver_Decide_MiddleBandNeedsClarification(t *testing.T) {
	r := newTestResolver()

	decision := r.decide(candidatesWithScores(0.90))

	assert.Equal(t, domain.DecisionNeedsClarification, decision.Kind)
	assert.Len(t, decision.Candidates, 1)
}

func TestDuplicateResolver_Decide_EligibleListDropsWeakCandidates(t *testing.T) {
	r := newTestResolver()

	decision := r.decide(candidatesWithScores(0.96, 0.94, 0.40))

	assert.Equal(t, domain.DecisionNeedsClarification, decision.Kind)
	assert.Len(t, decision.Candidates, 2, "candidates below the threshold stay out of the ranked list")
}

func TestDuplicateResolver_Decide_CustomConfig(t *testing.T) {
	r := NewDuplicateResolver(NewSimilarityScorer(), ResolverConfig{
		CandidateThreshold: 0.50,
		AutoMergeThreshold: 0.80,
		AmbiguityGap:       0.20,
	}, zap.NewNop())

	decision := r.decide(candidatesWithScores(0.85, 0.60))

	assert.Equal(t, domain.DecisionAutoMerge, decision.Kind)
}

func TestDuplicateResolver_Resolve_RescoresCandidates(t *testing.T) {
	r := newTestResolver()
	rec := NewTrajectoryRecorder(uuid.New())

	person := domain.ExtractedPerson{DisplayName: "John Smith", Location: "Seattle"}
	// retrieval scores are deliberately misleading; the resolver must re-score
	candidates := []domain.CandidateMatch{
		{PersonID: uuid.New(), DisplayName: "Rajesh Kumar", Location: "Delhi", Score: 1.0},
		{PersonID: uuid.New(), DisplayName: "John Smith", Location: "Seattle", Score: 0.1},
	}

	decision := r.Resolve(context.Background(), rec, person, candidates)

	assert.Equal(t, domain.DecisionAutoMerge, decision.Kind)
	assert.Equal(t, candidates[1].PersonID, decision.TargetPersonID)
	assert.InDelta(t, 1.0, decision.Confidence, 1e-9)
}

func TestDuplicateResolver_Resolve_AmbiguousPair(t *testing.T) {
	r := newTestResolver()
	rec := NewTrajectoryRecorder(uuid.New())

	person := domain.ExtractedPerson{DisplayName: "Jon Smith"}
	candidates := []domain.CandidateMatch{
		{PersonID: uuid.New(), DisplayName: "John Smith"},
		{PersonID: uuid.New(), DisplayName: "Joan Smith"},
	}

	decision := r.Resolve(context.Background(), rec, person, candidates)

	assert.Equal(t, domain.DecisionNeedsClarification, decision.Kind)
	assert.Len(t, decision.Candidates, 2)
}

func TestDuplicateResolver_Resolve_EmitsTrajectorySteps(t *testing.T) {
	r := newTestResolver()
	rec := NewTrajectoryRecorder(uuid.New())

	person := domain.ExtractedPerson{DisplayName: "Asha Reddy"}
	r.Resolve(context.Background(), rec, person, nil)

	steps := rec.StepsForAgent(agentResolver)
	assert.Len(t, steps, 3)
	assert.Equal(t, domain.StepObservation, steps[0].Type)
	assert.Equal(t, domain.StepReasoning, steps[1].Type)
	assert.Equal(t, domain.StepResult, steps[2].Type)
}
