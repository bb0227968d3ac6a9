package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/hearthlabs/kinship/internal/domain"
)

const (
	// DefaultCandidateThreshold is the minimum similarity for a stored person
	// to count as a duplicate candidate at all.
	DefaultCandidateThreshold = 0.85

	// DefaultAutoMergeThreshold is the minimum similarity for merging into an
	// existing person without clarification.
	DefaultAutoMergeThreshold = 0.95

	// DefaultAmbiguityGap is how close a runner-up may sit to the best match
	// before the decision needs clarification.
	DefaultAmbiguityGap = 0.05

	agentResolver = "duplicate_resolver"
)

// ResolverConfig tunes the merge tiers. Zero values fall back to the package
// defaults, so the zero config is usable.
type ResolverConfig struct {
	CandidateThreshold float64
	AutoMergeThreshold float64
	AmbiguityGap       float64
}

func (c ResolverConfig) withDefaults() ResolverConfig {
	if c.CandidateThreshold <= 0 {
		c.CandidateThreshold = DefaultCandidateThreshold
	}
	if c.AutoMergeThreshold <= 0 {
		c.AutoMergeThreshold = DefaultAutoMergeThreshold
	}
	if c.AmbiguityGap <= 0 {
		c.AmbiguityGap = DefaultAmbiguityGap
	}
	return c
}

// DuplicateResolver decides, for one extracted person at a time, whether to
// merge into a stored person, ask for clarification, or create a new record.
// Candidate scores coming from the store are retrieval ranking only; the
// resolver re-scores every candidate with its own scorer before deciding.
type DuplicateResolver struct {
	scorer *SimilarityScorer
	cfg    ResolverConfig
	logger *zap.Logger
}

func NewDuplicateResolver(scorer *SimilarityScorer, cfg ResolverConfig, logger *zap.Logger) *DuplicateResolver {
	return &DuplicateResolver{
		scorer: scorer,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Resolve scores the candidates against the extracted person and produces
// exactly one merge decision, emitting observation, reasoning and result
// steps on the run's trajectory.
func (r *DuplicateResolver) Resolve(ctx context.Context, rec *TrajectoryRecorder, person domain.ExtractedPerson, candidates []domain.CandidateMatch) domain.MergeDecision {
	traj := rec.ForAgent(agentResolver)

	scored := r.scoreCandidates(person, candidates)
	traj.Observe(
		fmt.Sprintf("resolving %q against %d stored candidates", person.DisplayName, len(scored)),
		map[string]any{"scores": topScores(scored, 3)},
	)

	decision := r.decide(scored)
	traj.Reason(decision.Reason, nil)
	traj.Result(
		fmt.Sprintf("decision %s for %q", decision.Kind, person.DisplayName),
		map[string]any{"kind": string(decision.Kind), "confidence": decision.Confidence},
	)

	r.logger.Debug("duplicate resolution",
		zap.String("person", person.DisplayName),
		zap.String("decision", string(decision.Kind)),
		zap.Float64("confidence", decision.Confidence),
		zap.Int("candidates", len(scored)))
	return decision
}

// scoreCandidates re-scores each candidate with the resolver's scorer and
// returns them ranked best-first. Retrieval order breaks score ties.
func (r *DuplicateResolver) scoreCandidates(person domain.ExtractedPerson, candidates []domain.CandidateMatch) []domain.CandidateMatch {
	scored := make([]domain.CandidateMatch, len(candidates))
	for i, cand := range candidates {
		cand.Score = r.scorer.ScoreWithAttributes(person.DisplayName, cand.DisplayName, person.Location, cand.Location)
		scored[i] = cand
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

func (r *DuplicateResolver) decide(scored []domain.CandidateMatch) domain.MergeDecision {
	var eligible []domain.CandidateMatch
	for _, cand := range scored {
		if cand.Score >= r.cfg.CandidateThreshold {
			eligible = append(eligible, cand)
		}
	}

	if len(eligible) == 0 {
		return domain.MergeDecision{
			Kind:   domain.DecisionCreateNew,
			Reason: fmt.Sprintf("no stored person scored at or above %.2f", r.cfg.CandidateThreshold),
		}
	}

	best := eligible[0]
	if best.Score >= r.cfg.AutoMergeThreshold {
		if len(eligible) > 1 && best.Score-eligible[1].Score < r.cfg.AmbiguityGap {
			return domain.MergeDecision{
				Kind:       domain.DecisionNeedsClarification,
				Confidence: best.Score,
				Candidates: eligible,
				Reason: fmt.Sprintf("best match %q (%.2f) has a competitor within %.2f; defaulting to create-new without clarification",
					best.DisplayName, best.Score, r.cfg.AmbiguityGap),
			}
		}
		return domain.MergeDecision{
			Kind:           domain.DecisionAutoMerge,
			TargetPersonID: best.PersonID,
			Confidence:     best.Score,
			Candidates:     eligible,
			Reason:         fmt.Sprintf("single clear match %q at %.2f", best.DisplayName, best.Score),
		}
	}

	return domain.MergeDecision{
		Kind:       domain.DecisionNeedsClarification,
		Confidence: best.Score,
		Candidates: eligible,
		Reason: fmt.Sprintf("best match %q scored %.2f, below the auto-merge bar %.2f; defaulting to create-new without clarification",
			best.DisplayName, best.Score, r.cfg.AutoMergeThreshold),
	}
}

func topScores(scored []domain.CandidateMatch, n int) []map[string]any {
	if len(scored) < n {
		n = len(scored)
	}
	out := make([]map[string]any, 0, n)
	for _, cand := range scored[:n] {
		out = append(out, map[string]any{"name": cand.DisplayName, "score": cand.Score})
	}
	return out
}
