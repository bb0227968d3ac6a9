package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthlabs/kinship/internal/domain"
	"github.com/hearthlabs/kinship/internal/store"
)

var (
	// ErrNoExtractionProvider is returned by ProcessText when the service was
	// wired without an extraction provider.
	ErrNoExtractionProvider = errors.New("no extraction provider configured")
)

const (
	// DefaultDedupWorkers bounds concurrent duplicate lookups per run.
	DefaultDedupWorkers = 4

	// searchLimit caps how many stored candidates one person is scored against.
	searchLimit = 10

	agentPipeline = "pipeline"
)

// Resolver decides the merge tier for one extracted person.
type Resolver interface {
	Resolve(ctx context.Context, rec *TrajectoryRecorder, person domain.ExtractedPerson, candidates []domain.CandidateMatch) domain.MergeDecision
}

// GroupingEngine partitions a resolved batch into family groups.
type GroupingEngine interface {
	Group(ctx context.Context, rec *TrajectoryRecorder, persons []domain.ExtractedPerson, relationships []domain.ExtractedRelationship) ([]domain.FamilyGroup, error)
}

// PipelineService drives one extraction batch through duplicate resolution,
// family grouping and persistence, tracking the run's state machine and
// recording every step on a session-scoped trajectory.
//
// Per-person failures degrade to create-new decisions with warnings; only a
// corrupt batch or a grouping contract violation aborts a run.
type PipelineService struct {
	persons       domain.PersonStore
	families      domain.FamilyStore
	relationships domain.RelationshipStore
	resolver      Resolver
	grouping      GroupingEngine
	logger        *zap.Logger

	workers     int
	familyLocks *keyedMutex

	extractor    domain.ExtractionProvider
	trajectories domain.TrajectoryStore
	mentions     domain.MentionStore
	embedder     domain.EmbeddingClient
}

func NewPipelineService(
	persons domain.PersonStore,
	families domain.FamilyStore,
	relationships domain.RelationshipStore,
	resolver Resolver,
	grouping GroupingEngine,
	logger *zap.Logger,
) *PipelineService {
	return &PipelineService{
		persons:       persons,
		families:      families,
		relationships: relationships,
		resolver:      resolver,
		grouping:      grouping,
		logger:        logger,
		workers:       DefaultDedupWorkers,
		familyLocks:   newKeyedMutex(),
	}
}

// SetDedupWorkers overrides the duplicate-resolution worker bound.
func (s *PipelineService) SetDedupWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// SetExtractionProvider enables ProcessText.
func (s *PipelineService) SetExtractionProvider(p domain.ExtractionProvider) {
	s.extractor = p
}

// SetTrajectoryStore enables archiving each run's trajectory after it ends.
func (s *PipelineService) SetTrajectoryStore(ts domain.TrajectoryStore) {
	s.trajectories = ts
}

// SetMentionArchive enables embedding and archiving raw mention texts for
// semantic recall. Both collaborators are required.
func (s *PipelineService) SetMentionArchive(ms domain.MentionStore, ec domain.EmbeddingClient) {
	s.mentions = ms
	s.embedder = ec
}

// ProcessText extracts a batch from raw text and runs the pipeline on it.
func (s *PipelineService) ProcessText(ctx context.Context, text string) (*domain.PipelineResult, error) {
	if s.extractor == nil {
		return nil, ErrNoExtractionProvider
	}
	if strings.TrimSpace(text) == "" {
		return nil, &domain.ExtractionError{Reason: "empty input text"}
	}

	extraction, err := s.extractor.Extract(ctx, text)
	if err != nil {
		var exErr *domain.ExtractionError
		if errors.As(err, &exErr) {
			return nil, err
		}
		return nil, &domain.ExtractionError{Reason: "extraction provider failed", Err: err}
	}
	return s.Run(ctx, extraction)
}

// Run drives one batch through the full pipeline. It returns an error only
// when the batch itself is unusable (ExtractionError); every in-run failure
// is reported inside the PipelineResult instead. Cancelling ctx between
// stages ends the run early with the partial result and the cancelled flag.
func (s *PipelineService) Run(ctx context.Context, extraction *domain.ExtractionResult) (*domain.PipelineResult, error) {
	if extraction == nil || len(extraction.Persons) == 0 {
		return nil, &domain.ExtractionError{Reason: "extraction produced no persons"}
	}

	persons, warnings := sanitizePersons(extraction.Persons)
	if len(persons) == 0 {
		return nil, &domain.ExtractionError{Reason: "no usable persons after discarding entries without a display name"}
	}

	rec := NewTrajectoryRecorder(uuid.New())
	res := &domain.PipelineResult{
		SessionID: rec.SessionID(),
		State:     domain.StateIdle,
		Warnings:  warnings,
	}
	traj := rec.ForAgent(agentPipeline)
	s.logger.Info("pipeline run started",
		zap.String("session_id", res.SessionID.String()),
		zap.Int("persons", len(persons)),
		zap.Int("relationships", len(extraction.Relationships)))

	traj.Observe(fmt.Sprintf("batch holds %d persons and %d relationships", len(persons), len(extraction.Relationships)), nil)
	s.transition(rec, res, domain.StateExtracted)
	if s.cancelled(ctx, rec, res, "intake") {
		return s.finish(ctx, rec, res), nil
	}

	resolved := s.dedupStage(ctx, rec, res, persons)
	s.transition(rec, res, domain.StateDeduplicated)
	if s.cancelled(ctx, rec, res, "duplicate resolution") {
		return s.finish(ctx, rec, res), nil
	}

	groups, err := s.grouping.Group(ctx, rec, persons, extraction.Relationships)
	if err != nil {
		s.transition(rec, res, domain.StateAbortedAtGrouping)
		res.FatalError = err.Error()
		s.logger.Error("grouping aborted the run",
			zap.String("session_id", res.SessionID.String()), zap.Error(err))
		return s.finish(ctx, rec, res), nil
	}
	res.Groups = groups
	s.transition(rec, res, domain.StateGrouped)
	if s.cancelled(ctx, rec, res, "family grouping") {
		return s.finish(ctx, rec, res), nil
	}

	s.persistStage(ctx, rec, res, resolved, groups, extraction.Relationships)
	s.transition(rec, res, domain.StatePersisted)

	s.transition(rec, res, domain.StateDone)
	res.Success = true
	return s.finish(ctx, rec, res), nil
}

// sanitizePersons drops entries without a display name and folds repeated
// names into their first occurrence, filling only missing attributes.
func sanitizePersons(in []domain.ExtractedPerson) ([]domain.ExtractedPerson, []string) {
	out := make([]domain.ExtractedPerson, 0, len(in))
	var warnings []string
	index := make(map[string]int, len(in))
	for _, p := range in {
		p.DisplayName = strings.Join(strings.Fields(p.DisplayName), " ")
		if p.DisplayName == "" {
			warnings = append(warnings, "discarded extracted person with empty display name")
			continue
		}
		if i, ok := index[p.DisplayName]; ok {
			out[i] = fillPerson(out[i], p)
			continue
		}
		index[p.DisplayName] = len(out)
		out = append(out, p)
	}
	return out, warnings
}

func fillPerson(base, extra domain.ExtractedPerson) domain.ExtractedPerson {
	if base.Surname == "" {
		base.Surname = extra.Surname
	}
	if base.Location == "" {
		base.Location = extra.Location
	}
	if base.Gender == "" {
		base.Gender = extra.Gender
	}
	if base.Age == 0 {
		base.Age = extra.Age
	}
	if base.Occupation == "" {
		base.Occupation = extra.Occupation
	}
	base.IsSpeaker = base.IsSpeaker || extra.IsSpeaker
	base.RawMentions = append(base.RawMentions, extra.RawMentions...)
	return base
}

// dedupStage resolves every person concurrently under the worker bound.
// Results land in input order regardless of completion order.
func (s *PipelineService) dedupStage(ctx context.Context, rec *TrajectoryRecorder, res *domain.PipelineResult, persons []domain.ExtractedPerson) []domain.ResolvedPerson {
	workers := s.workers
	if workers <= 0 {
		workers = DefaultDedupWorkers
	}
	rec.ForAgent(agentPipeline).Act(fmt.Sprintf("resolving %d persons with %d workers", len(persons), workers), nil)

	resolved := make([]domain.ResolvedPerson, len(persons))
	warns := make([]string, len(persons))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := range persons {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, person domain.ExtractedPerson) {
			defer wg.Done()
			defer func() { <-sem }()

			decision, warn := s.resolveOne(ctx, rec, person)
			resolved[i] = domain.ResolvedPerson{Person: person, Decision: decision}
			warns[i] = warn
		}(i, persons[i])
	}
	wg.Wait()

	for i := range resolved {
		res.Decisions = append(res.Decisions, domain.PersonDecision{
			ExtractedName: resolved[i].Person.DisplayName,
			Decision:      resolved[i].Decision,
		})
		if warns[i] != "" {
			res.Warnings = append(res.Warnings, warns[i])
		}
	}
	return resolved
}

// resolveOne searches the person store for candidates and asks the resolver
// for a decision. A failed search degrades to create-new with a warning; an
// ambiguous decision keeps its kind and warns about the create-new fallback.
func (s *PipelineService) resolveOne(ctx context.Context, rec *TrajectoryRecorder, person domain.ExtractedPerson) (domain.MergeDecision, string) {
	candidates, err := s.persons.Search(ctx, person.DisplayName, domain.SearchAttributes{Limit: searchLimit})
	if err != nil {
		rec.ForAgent(agentPipeline).Error(fmt.Sprintf("candidate search failed for %q: %v", person.DisplayName, err), nil)
		s.logger.Warn("candidate search failed, defaulting to create-new",
			zap.String("person", person.DisplayName), zap.Error(err))
		decision := domain.MergeDecision{
			Kind:   domain.DecisionCreateNew,
			Reason: "candidate search unavailable; creating new record",
		}
		return decision, fmt.Sprintf("search failed for %q: defaulted to create-new", person.DisplayName)
	}

	decision := s.resolver.Resolve(ctx, rec, person, candidates)
	if decision.Kind == domain.DecisionNeedsClarification {
		return decision, fmt.Sprintf("ambiguous match for %q: %s", person.DisplayName, decision.Reason)
	}
	return decision, ""
}

// persistStage writes groups in parallel. Group order in the result is the
// grouping order; family codes are minted here under per-key locks so that
// concurrent runs touching the same (surname, location) serialize.
func (s *PipelineService) persistStage(ctx context.Context, rec *TrajectoryRecorder, res *domain.PipelineResult, resolved []domain.ResolvedPerson, groups []domain.FamilyGroup, rels []domain.ExtractedRelationship) {
	traj := rec.ForAgent(agentPipeline)
	traj.Act(fmt.Sprintf("persisting %d groups", len(groups)), nil)

	byName := make(map[string]int, len(resolved))
	for i := range resolved {
		byName[resolved[i].Person.DisplayName] = i
	}

	// Relationships always connect members of one component, so each edge
	// lands in exactly the group holding its endpoints.
	memberGroup := make(map[string]int)
	for gi, g := range groups {
		for _, name := range g.Members {
			memberGroup[name] = gi
		}
	}
	relsByGroup := make([][]domain.ExtractedRelationship, len(groups))
	for _, rel := range rels {
		if gi, ok := memberGroup[rel.PersonA]; ok {
			relsByGroup[gi] = append(relsByGroup[gi], rel)
		}
	}

	shared := newPersistShared()
	workers := s.workers
	if workers <= 0 {
		workers = DefaultDedupWorkers
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for gi := range groups {
		wg.Add(1)
		sem <- struct{}{}
		go func(g *domain.FamilyGroup, groupRels []domain.ExtractedRelationship) {
			defer wg.Done()
			defer func() { <-sem }()
			s.persistGroup(ctx, rec, g, groupRels, resolved, byName, shared)
		}(&groups[gi], relsByGroup[gi])
	}
	wg.Wait()

	for i := range res.Decisions {
		if id, ok := shared.id(res.Decisions[i].ExtractedName); ok {
			res.Decisions[i].PersonID = id
		}
	}
	res.Groups = groups
	res.Storage = shared.outcome

	s.archiveMentions(ctx, res.SessionID, resolved, shared)

	traj.Result(fmt.Sprintf("storage complete: %d families created, %d persons created, %d merged, %d relationships",
		res.Storage.FamiliesCreated, res.Storage.PersonsCreated, res.Storage.PersonsMerged, res.Storage.RelationshipsCreated),
		map[string]any{"errors": len(res.Storage.Errors)})
}

// persistGroup mints or reuses the group's family code, then writes members
// and the group's relationship edges sequentially. A code failure aborts this
// group only; a member failure skips that member and any edges naming them.
func (s *PipelineService) persistGroup(ctx context.Context, rec *TrajectoryRecorder, g *domain.FamilyGroup, groupRels []domain.ExtractedRelationship, resolved []domain.ResolvedPerson, byName map[string]int, shared *persistShared) {
	traj := rec.ForAgent(agentPipeline)

	if g.Unassigned {
		traj.Act(fmt.Sprintf("persisting %d unassigned persons", len(g.Members)), nil)
	} else {
		unlock := s.familyLocks.Lock(g.Surname + "|" + g.Location)
		code, minted, err := s.ensureFamilyCode(ctx, g)
		unlock()
		if err != nil {
			shared.addError(fmt.Sprintf("family code for %s-%s: %v", g.Surname, g.Location, err))
			traj.Error(fmt.Sprintf("aborting group %s-%s: %v", g.Surname, g.Location, err), nil)
			s.logger.Error("family code minting failed",
				zap.String("surname", g.Surname), zap.String("location", g.Location), zap.Error(err))
			return
		}
		g.FamilyCode = code
		if minted {
			shared.countFamily()
		}
		traj.Act(fmt.Sprintf("persisting group %s with %d members", code, len(g.Members)), nil)
	}

	for _, name := range g.Members {
		rp := resolved[byName[name]]
		id, err := s.persistPerson(ctx, rp, g.FamilyCode, shared)
		if err != nil {
			shared.addError(fmt.Sprintf("persist %q: %v", name, err))
			traj.Error(fmt.Sprintf("failed to persist %q: %v", name, err), nil)
			s.logger.Warn("person write failed", zap.String("person", name), zap.Error(err))
			continue
		}
		shared.setID(name, id)
	}

	for _, rel := range groupRels {
		aID, okA := shared.id(rel.PersonA)
		bID, okB := shared.id(rel.PersonB)
		if !okA || !okB {
			shared.addError(fmt.Sprintf("skipping relationship %s-%s (%s): endpoint not stored", rel.PersonA, rel.PersonB, rel.Term))
			continue
		}
		kind := rel.Kind
		if kind == "" {
			kind = domain.RelationKindForTerm(rel.Term)
		}
		record := &domain.RelationshipRecord{PersonAID: aID, PersonBID: bID, Kind: kind, Term: rel.Term}
		if err := s.relationships.Create(ctx, record); err != nil {
			shared.addError(fmt.Sprintf("relationship %s-%s: %v", rel.PersonA, rel.PersonB, err))
			continue
		}
		shared.countRelationship()
	}
}

// ensureFamilyCode reuses the code already registered for the group's
// (surname, location) pair or mints the next one. Callers hold the key lock.
func (s *PipelineService) ensureFamilyCode(ctx context.Context, g *domain.FamilyGroup) (string, bool, error) {
	code, err := s.families.FindExisting(ctx, g.Surname, g.Location)
	if err == nil {
		return code, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", false, err
	}

	seq, err := s.families.NextSequence(ctx, g.Surname, g.Location)
	if err != nil {
		return "", false, err
	}
	code = domain.ComposeFamilyCode(g.Surname, g.Location, seq)
	record := &domain.FamilyRecord{
		Code:     code,
		Surname:  g.Surname,
		Location: g.Location,
		Sequence: seq,
	}
	if err := s.families.Upsert(ctx, record); err != nil {
		return "", false, err
	}
	return code, true, nil
}

// persistPerson writes one resolved person: auto-merges fill gaps on the
// target record, everything else creates a new record. The returned id is
// the durable identity relationship edges bind to.
func (s *PipelineService) persistPerson(ctx context.Context, rp domain.ResolvedPerson, familyCode string, shared *persistShared) (uuid.UUID, error) {
	if rp.Decision.Kind == domain.DecisionAutoMerge {
		if err := s.mergePerson(ctx, rp, familyCode); err != nil {
			return uuid.Nil, err
		}
		shared.countMerged()
		return rp.Decision.TargetPersonID, nil
	}

	record := &domain.PersonRecord{
		DisplayName: rp.Person.DisplayName,
		Surname:     rp.Person.EffectiveSurname(),
		FamilyCode:  familyCode,
		Location:    rp.Person.Location,
		Gender:      rp.Person.Gender,
		Age:         rp.Person.Age,
		Occupation:  rp.Person.Occupation,
		RawMentions: rp.Person.RawMentions,
	}
	if err := s.persons.Create(ctx, record); err != nil {
		return uuid.Nil, err
	}
	shared.countCreated()
	return record.ID, nil
}

// mergePerson applies a fill-only update to the merge target: existing values
// win, missing ones are taken from the extraction, raw mentions accumulate.
func (s *PipelineService) mergePerson(ctx context.Context, rp domain.ResolvedPerson, familyCode string) error {
	existing, err := s.persons.GetByID(ctx, rp.Decision.TargetPersonID)
	if err != nil {
		return fmt.Errorf("load merge target: %w", err)
	}

	var upd domain.PersonUpdate
	changed := false
	if existing.Surname == "" {
		if v := rp.Person.EffectiveSurname(); v != "" {
			upd.Surname = &v
			changed = true
		}
	}
	if existing.Location == "" && rp.Person.Location != "" {
		v := rp.Person.Location
		upd.Location = &v
		changed = true
	}
	if existing.Gender == "" && rp.Person.Gender != "" {
		v := rp.Person.Gender
		upd.Gender = &v
		changed = true
	}
	if existing.Age == 0 && rp.Person.Age != 0 {
		v := rp.Person.Age
		upd.Age = &v
		changed = true
	}
	if existing.Occupation == "" && rp.Person.Occupation != "" {
		v := rp.Person.Occupation
		upd.Occupation = &v
		changed = true
	}
	if existing.FamilyCode == "" && familyCode != "" {
		upd.FamilyCode = &familyCode
		changed = true
	}
	if merged := appendMentions(existing.RawMentions, rp.Person.RawMentions); len(merged) != len(existing.RawMentions) {
		upd.RawMentions = merged
		changed = true
	}

	if !changed {
		return nil
	}
	if err := s.persons.Update(ctx, existing.ID, upd); err != nil {
		return fmt.Errorf("update merge target: %w", err)
	}
	return nil
}

func appendMentions(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	out := append([]string(nil), existing...)
	for _, m := range existing {
		seen[m] = struct{}{}
	}
	for _, m := range incoming {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// archiveMentions embeds and stores raw mention texts for persons that were
// persisted. Best-effort: failures are logged, never surfaced on the result.
func (s *PipelineService) archiveMentions(ctx context.Context, sessionID uuid.UUID, resolved []domain.ResolvedPerson, shared *persistShared) {
	if s.mentions == nil || s.embedder == nil {
		return
	}
	for _, rp := range resolved {
		id, ok := shared.id(rp.Person.DisplayName)
		if !ok {
			continue
		}
		for _, text := range rp.Person.RawMentions {
			embedding, err := s.embedder.Embed(ctx, text)
			if err != nil {
				s.logger.Warn("mention embedding failed", zap.String("person", rp.Person.DisplayName), zap.Error(err))
				continue
			}
			m := &domain.Mention{PersonID: id, SessionID: sessionID, Text: text, Embedding: embedding}
			if err := s.mentions.Create(ctx, m); err != nil {
				s.logger.Warn("mention archive failed", zap.String("person", rp.Person.DisplayName), zap.Error(err))
			}
		}
	}
}

// transition advances the run's state machine. Illegal transitions are
// programming errors: they are rejected and logged, never applied.
func (s *PipelineService) transition(rec *TrajectoryRecorder, res *domain.PipelineResult, to domain.PipelineState) {
	if !domain.CanTransition(res.State, to) {
		s.logger.Error("illegal pipeline transition rejected",
			zap.String("from", string(res.State)), zap.String("to", string(to)))
		return
	}
	res.State = to
	rec.ForAgent(agentPipeline).Act("entering state "+string(to), nil)
}

// cancelled checks for cancellation at a stage boundary. In-flight work is
// never force-terminated; the run simply stops advancing and returns what it
// has, flagged as cancelled.
func (s *PipelineService) cancelled(ctx context.Context, rec *TrajectoryRecorder, res *domain.PipelineResult, afterStage string) bool {
	if ctx.Err() == nil {
		return false
	}
	res.Cancelled = true
	warning := fmt.Sprintf("run cancelled after %s: %v", afterStage, ctx.Err())
	res.Warnings = append(res.Warnings, warning)
	rec.ForAgent(agentPipeline).Error(warning, nil)
	s.logger.Warn("pipeline run cancelled",
		zap.String("session_id", res.SessionID.String()), zap.String("after_stage", afterStage))
	return true
}

// finish stamps the summary, snapshots the trajectory onto the result and
// archives it when a trajectory store is wired.
func (s *PipelineService) finish(ctx context.Context, rec *TrajectoryRecorder, res *domain.PipelineResult) *domain.PipelineResult {
	res.Summary = summarize(res)
	rec.ForAgent(agentPipeline).Result(res.Summary, map[string]any{"state": string(res.State), "success": res.Success})
	res.Trajectory = rec.Steps()

	if s.trajectories != nil {
		if err := s.trajectories.AppendSteps(ctx, res.Trajectory); err != nil {
			s.logger.Warn("trajectory archive failed",
				zap.String("session_id", res.SessionID.String()), zap.Error(err))
		}
	}

	s.logger.Info("pipeline run finished",
		zap.String("session_id", res.SessionID.String()),
		zap.String("state", string(res.State)),
		zap.Bool("success", res.Success),
		zap.Int("warnings", len(res.Warnings)),
		zap.Int("storage_errors", len(res.Storage.Errors)))
	return res
}

// persistShared is the mutable state persistence goroutines share: durable
// ids keyed by display name plus the storage counters.
type persistShared struct {
	mu      sync.Mutex
	ids     map[string]uuid.UUID
	outcome domain.StorageOutcome
}

func newPersistShared() *persistShared {
	return &persistShared{ids: make(map[string]uuid.UUID)}
}

func (p *persistShared) setID(name string, id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[name] = id
}

func (p *persistShared) id(name string) (uuid.UUID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.ids[name]
	return id, ok
}

func (p *persistShared) addError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcome.Errors = append(p.outcome.Errors, msg)
}

func (p *persistShared) countFamily() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcome.FamiliesCreated++
}

func (p *persistShared) countCreated() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcome.PersonsCreated++
}

func (p *persistShared) countMerged() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcome.PersonsMerged++
}

func (p *persistShared) countRelationship() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcome.RelationshipsCreated++
}
