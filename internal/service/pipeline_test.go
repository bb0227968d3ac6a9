package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthlabs/kinship/internal/domain"
	"github.com/hearthlabs/kinship/internal/store"
)

// memPersonStore implements domain.PersonStore for testing.
type memPersonStore struct {
	mu        sync.Mutex
	records   map[uuid.UUID]*domain.PersonRecord
	order     []uuid.UUID
	searchErr error
	createErr error
}

func newMemPersonStore() *memPersonStore {
	return &memPersonStore{records: make(map[uuid.UUID]*domain.PersonRecord)}
}

func (m *memPersonStore) Create(ctx context.Context, p *domain.PersonRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	p.ID = uuid.New()
	cp := *p
	m.records[p.ID] = &cp
	m.order = append(m.order, p.ID)
	return nil
}

func (m *memPersonStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.PersonRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memPersonStore) Update(ctx context.Context, id uuid.UUID, upd domain.PersonUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return store.ErrNotFound
	}
	if upd.DisplayName != nil {
		rec.DisplayName = *upd.DisplayName
	}
	if upd.Surname != nil {
		rec.Surname = *upd.Surname
	}
	if upd.FamilyCode != nil {
		rec.FamilyCode = *upd.FamilyCode
	}
	if upd.Location != nil {
		rec.Location = *upd.Location
	}
	if upd.Gender != nil {
		rec.Gender = *upd.Gender
	}
	if upd.Age != nil {
		rec.Age = *upd.Age
	}
	if upd.Occupation != nil {
		rec.Occupation = *upd.Occupation
	}
	if upd.Notes != nil {
		rec.Notes = *upd.Notes
	}
	if upd.RawMentions != nil {
		rec.RawMentions = upd.RawMentions
	}
	return nil
}

func (m *memPersonStore) Search(ctx context.Context, query string, attrs domain.SearchAttributes) ([]domain.CandidateMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	// retrieval returns everything; the resolver re-scores authoritatively
	var out []domain.CandidateMatch
	for _, id := range m.order {
		rec := m.records[id]
		out = append(out, domain.CandidateMatch{
			PersonID:    rec.ID,
			DisplayName: rec.DisplayName,
			Surname:     rec.Surname,
			Location:    rec.Location,
			Score:       0.5,
			MatchedOn:   "name",
		})
	}
	return out, nil
}

func (m *memPersonStore) ListByFamilyCode(ctx context.Context, code string) ([]domain.PersonRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PersonRecord
	for _, id := range m.order {
		if m.records[id].FamilyCode == code {
			out = append(out, *m.records[id])
		}
	}
	return out, nil
}

func (m *memPersonStore) byName(name string) *domain.PersonRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.DisplayName == name {
			cp := *rec
			return &cp
		}
	}
	return nil
}

func (m *memPersonStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// memFamilyStore implements domain.FamilyStore for testing.
type memFamilyStore struct {
	mu       sync.Mutex
	seqs     map[string]int
	families map[string]*domain.FamilyRecord
	seqErr   error
}

func newMemFamilyStore() *memFamilyStore {
	return &memFamilyStore{
		seqs:     make(map[string]int),
		families: make(map[string]*domain.FamilyRecord),
	}
}

func (m *memFamilyStore) NextSequence(ctx context.Context, surname, location string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seqErr != nil {
		return 0, m.seqErr
	}
	key := surname + "|" + location
	m.seqs[key]++
	return m.seqs[key], nil
}

func (m *memFamilyStore) FindExisting(ctx context.Context, surname, location string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.families {
		if f.Surname == surname && f.Location == location {
			return f.Code, nil
		}
	}
	return "", store.ErrNotFound
}

func (m *memFamilyStore) Upsert(ctx context.Context, f *domain.FamilyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.families[f.Code]; ok {
		f.ID = existing.ID
		return nil
	}
	f.ID = uuid.New()
	cp := *f
	m.families[f.Code] = &cp
	return nil
}

func (m *memFamilyStore) GetByCode(ctx context.Context, code string) (*domain.FamilyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.families[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memFamilyStore) List(ctx context.Context) ([]domain.FamilyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.FamilyRecord
	for _, f := range m.families {
		out = append(out, *f)
	}
	return out, nil
}

// memRelationshipStore implements domain.RelationshipStore for testing.
type memRelationshipStore struct {
	mu      sync.Mutex
	records []domain.RelationshipRecord
}

func (m *memRelationshipStore) Create(ctx context.Context, r *domain.RelationshipRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	m.records = append(m.records, *r)
	return nil
}

func (m *memRelationshipStore) GetByPerson(ctx context.Context, personID uuid.UUID) ([]domain.RelationshipRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RelationshipRecord
	for _, r := range m.records {
		if r.PersonAID == personID || r.PersonBID == personID {
			out = append(out, r)
		}
	}
	return out, nil
}

// memTrajectoryStore implements domain.TrajectoryStore for testing.
type memTrajectoryStore struct {
	mu    sync.Mutex
	steps []domain.TrajectoryStep
}

func (m *memTrajectoryStore) AppendSteps(ctx context.Context, steps []domain.TrajectoryStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
	return nil
}

func (m *memTrajectoryStore) GetBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.TrajectoryStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TrajectoryStep
	for _, s := range m.steps {
		if s.SessionID == sessionID {
			out = append(out, s)
		}
	}
	return out, nil
}

// stubExtractor implements domain.ExtractionProvider for testing.
type stubExtractor struct {
	result *domain.ExtractionResult
	err    error
}

func (s *stubExtractor) Extract(ctx context.Context, text string) (*domain.ExtractionResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func setupPipelineTest() (*PipelineService, *memPersonStore, *memFamilyStore, *memRelationshipStore) {
	logger := zap.NewNop()
	persons := newMemPersonStore()
	families := newMemFamilyStore()
	relationships := &memRelationshipStore{}

	resolver := NewDuplicateResolver(NewSimilarityScorer(), ResolverConfig{}, logger)
	grouping := NewFamilyGroupingEngine(logger)
	svc := NewPipelineService(persons, families, relationships, resolver, grouping, logger)
	return svc, persons, families, relationships
}

func smithBatch() *domain.ExtractionResult {
	return &domain.ExtractionResult{
		Persons: []domain.ExtractedPerson{
			{DisplayName: "John Smith", Surname: "Smith", Location: "Seattle", IsSpeaker: true},
			{DisplayName: "Mary Smith", Location: "Seattle"},
		},
		Relationships: []domain.ExtractedRelationship{
			{PersonA: "John Smith", PersonB: "Mary Smith", Kind: domain.RelationSpouse, Term: "wife"},
		},
		SpeakerName: "John Smith",
	}
}

func TestPipelineService_Run_CreatesFamily(t *testing.T) {
	svc, persons, _, relationships := setupPipelineTest()

	res, err := svc.Run(context.Background(), smithBatch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.Success {
		t.Fatalf("expected success, got state %s, fatal %q", res.State, res.FatalError)
	}
	if res.State != domain.StateDone {
		t.Fatalf("state = %s, want done", res.State)
	}
	if res.Cancelled {
		t.Fatal("run must not be cancelled")
	}

	if len(res.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(res.Groups))
	}
	if res.Groups[0].FamilyCode != "SMITH-SEATTLE-001" {
		t.Fatalf("family code = %q, want SMITH-SEATTLE-001", res.Groups[0].FamilyCode)
	}
	if !domain.ValidFamilyCode(res.Groups[0].FamilyCode) {
		t.Fatalf("family code %q fails the wire format", res.Groups[0].FamilyCode)
	}

	if res.Storage.FamiliesCreated != 1 || res.Storage.PersonsCreated != 2 || res.Storage.RelationshipsCreated != 1 {
		t.Fatalf("storage outcome = %+v", res.Storage)
	}
	if len(res.Storage.Errors) != 0 {
		t.Fatalf("unexpected storage errors: %v", res.Storage.Errors)
	}

	if len(res.Decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(res.Decisions))
	}
	for _, d := range res.Decisions {
		if d.Decision.Kind != domain.DecisionCreateNew {
			t.Errorf("decision for %q = %s, want create_new", d.ExtractedName, d.Decision.Kind)
		}
		if d.PersonID == uuid.Nil {
			t.Errorf("decision for %q has no durable person id", d.ExtractedName)
		}
	}

	john := persons.byName("John Smith")
	if john == nil || john.FamilyCode != "SMITH-SEATTLE-001" {
		t.Fatalf("stored John Smith = %+v", john)
	}
	if john.Surname != "Smith" {
		t.Fatalf("stored surname = %q, want Smith", john.Surname)
	}

	relationships.mu.Lock()
	edges := len(relationships.records)
	relationships.mu.Unlock()
	if edges != 1 {
		t.Fatalf("expected 1 relationship edge, got %d", edges)
	}

	if len(res.Trajectory) == 0 {
		t.Fatal("expected trajectory steps on the result")
	}
	for i, step := range res.Trajectory {
		if step.Seq != i+1 {
			t.Fatalf("trajectory seq broken at %d: %d", i, step.Seq)
		}
	}
	if res.Summary == "" {
		t.Fatal("expected a summary line")
	}
}

func TestPipelineService_Run_DisjointClustersGetDistinctCodes(t *testing.T) {
	svc, _, _, _ := setupPipelineTest()

	batch := &domain.ExtractionResult{
		Persons: []domain.ExtractedPerson{
			{DisplayName: "Dev Sharma", Surname: "Sharma", Location: "Hyderabad"},
			{DisplayName: "Amit Kumar", Surname: "Kumar", Location: "Bangalore"},
		},
	}

	res, err := svc.Run(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got state %s, fatal %q", res.State, res.FatalError)
	}

	if len(res.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(res.Groups))
	}
	if res.Groups[0].FamilyCode != "SHARMA-HYDERABAD-001" {
		t.Fatalf("first code = %q, want SHARMA-HYDERABAD-001", res.Groups[0].FamilyCode)
	}
	if res.Groups[1].FamilyCode != "KUMAR-BANGALORE-001" {
		t.Fatalf("second code = %q, want KUMAR-BANGALORE-001", res.Groups[1].FamilyCode)
	}
	if res.Storage.FamiliesCreated != 2 || res.Storage.PersonsCreated != 2 {
		t.Fatalf("storage outcome = %+v", res.Storage)
	}
}

func TestPipelineService_Run_AutoMergesExistingPerson(t *testing.T) {
	svc, persons, _, _ := setupPipelineTest()

	seeded := &domain.PersonRecord{DisplayName: "John Smith", Surname: "Smith", Location: "Seattle"}
	if err := persons.Create(context.Background(), seeded); err != nil {
		t.Fatalf("seed: %v", err)
	}

	batch := &domain.ExtractionResult{
		Persons: []domain.ExtractedPerson{
			{DisplayName: "John Smith", Location: "Seattle", Occupation: "engineer"},
		},
	}

	res, err := svc.Run(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Decisions[0].Decision.Kind != domain.DecisionAutoMerge {
		t.Fatalf("decision = %s, want auto_merge (reason %q)", res.Decisions[0].Decision.Kind, res.Decisions[0].Decision.Reason)
	}
	if res.Decisions[0].PersonID != seeded.ID {
		t.Fatalf("merged person id = %s, want the seeded record %s", res.Decisions[0].PersonID, seeded.ID)
	}
	if res.Storage.PersonsMerged != 1 || res.Storage.PersonsCreated != 0 {
		t.Fatalf("storage outcome = %+v", res.Storage)
	}
	if persons.count() != 1 {
		t.Fatalf("store should still hold 1 person, got %d", persons.count())
	}

	// fill-only: the merge adds the missing occupation, keeps everything else
	merged := persons.byName("John Smith")
	if merged.Occupation != "engineer" {
		t.Fatalf("occupation not filled: %+v", merged)
	}
	if merged.Location != "Seattle" {
		t.Fatalf("existing location must be kept, got %q", merged.Location)
	}
}

func TestPipelineService_Run_MergeDoesNotOverwriteExistingValues(t *testing.T) {
	svc, persons, _, _ := setupPipelineTest()

	seeded := &domain.PersonRecord{DisplayName: "John Smith", Surname: "Smith", Location: "Portland", Occupation: "teacher"}
	if err := persons.Create(context.Background(), seeded); err != nil {
		t.Fatalf("seed: %v", err)
	}

	batch := &domain.ExtractionResult{
		Persons: []domain.ExtractedPerson{
			{DisplayName: "John Smith", Location: "Seattle", Occupation: "engineer"},
		},
	}

	res, err := svc.Run(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decisions[0].Decision.Kind != domain.DecisionAutoMerge {
		t.Fatalf("decision = %s, want auto_merge", res.Decisions[0].Decision.Kind)
	}

	merged := persons.byName("John Smith")
	if merged.Location != "Portland" || merged.Occupation != "teacher" {
		t.Fatalf("merge overwrote populated fields: %+v", merged)
	}
}

func TestPipelineService_Run_ReprocessingSameBatchCreatesNothing(t *testing.T) {
	svc, persons, _, _ := setupPipelineTest()

	first, err := svc.Run(context.Background(), smithBatch())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !first.Success {
		t.Fatalf("first run failed: %+v", first)
	}
	if persons.count() != 2 {
		t.Fatalf("first run should store 2 persons, got %d", persons.count())
	}

	second, err := svc.Run(context.Background(), smithBatch())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.Success {
		t.Fatalf("second run failed: %+v", second)
	}

	for _, d := range second.Decisions {
		if d.Decision.Kind != domain.DecisionAutoMerge {
			t.Fatalf("second run decision for %q = %s, want auto_merge", d.ExtractedName, d.Decision.Kind)
		}
	}
	if second.Storage.PersonsCreated != 0 || second.Storage.FamiliesCreated != 0 {
		t.Fatalf("second run must not create records: %+v", second.Storage)
	}
	if second.Storage.PersonsMerged != 2 {
		t.Fatalf("second run should merge both persons: %+v", second.Storage)
	}
	if persons.count() != 2 {
		t.Fatalf("person count grew on re-processing: %d", persons.count())
	}
	if second.Groups[0].FamilyCode != first.Groups[0].FamilyCode {
		t.Fatalf("family code changed across runs: %q vs %q", second.Groups[0].FamilyCode, first.Groups[0].FamilyCode)
	}
}

func TestPipelineService_Run_AmbiguousFallsBackToCreateNew(t *testing.T) {
	svc, persons, _, _ := setupPipelineTest()

	for _, name := range []string{"John Smith", "Joan Smith"} {
		if err := persons.Create(context.Background(), &domain.PersonRecord{DisplayName: name, Surname: "Smith"}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	batch := &domain.ExtractionResult{
		Persons: []domain.ExtractedPerson{
			{DisplayName: "Jon Smith"},
		},
	}

	res, err := svc.Run(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decision := res.Decisions[0]
	if decision.Decision.Kind != domain.DecisionNeedsClarification {
		t.Fatalf("decision = %s, want needs_clarification", decision.Decision.Kind)
	}
	if len(decision.Decision.Candidates) != 2 {
		t.Fatalf("expected 2 ranked candidates, got %d", len(decision.Decision.Candidates))
	}

	// without interactive clarification the person is stored as new
	if res.Storage.PersonsCreated != 1 || res.Storage.PersonsMerged != 0 {
		t.Fatalf("storage outcome = %+v", res.Storage)
	}
	if persons.count() != 3 {
		t.Fatalf("store should hold 3 persons, got %d", persons.count())
	}

	foundWarning := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "ambiguous") {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Fatalf("expected an ambiguity warning, got %v", res.Warnings)
	}
	if !res.Success {
		t.Fatal("ambiguity must not fail the run")
	}
}

func TestPipelineService_Run_GroupingErrorAbortsBatch(t *testing.T) {
	svc, persons, _, _ := setupPipelineTest()

	batch := &domain.ExtractionResult{
		Persons: []domain.ExtractedPerson{
			{DisplayName: "John Smith", Surname: "Smith"},
		},
		Relationships: []domain.ExtractedRelationship{
			{PersonA: "John Smith", PersonB: "Ghost Person", Kind: domain.RelationSibling, Term: "brother"},
		},
	}

	res, err := svc.Run(context.Background(), batch)
	if err != nil {
		t.Fatalf("run itself must not error, got %v", err)
	}

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.State != domain.StateAbortedAtGrouping {
		t.Fatalf("state = %s, want aborted_at_grouping", res.State)
	}
	if res.FatalError == "" {
		t.Fatal("expected a fatal error message")
	}
	if persons.count() != 0 {
		t.Fatalf("nothing may be persisted on abort, store holds %d", persons.count())
	}
	if res.Storage.PersonsCreated != 0 || res.Storage.FamiliesCreated != 0 {
		t.Fatalf("storage outcome = %+v, want zeroes", res.Storage)
	}
	// dedup already ran, so decisions are part of the partial result
	if len(res.Decisions) != 1 {
		t.Fatalf("expected the dedup decision in the partial result, got %d", len(res.Decisions))
	}
}

func TestPipelineService_Run_EmptyBatchIsExtractionError(t *testing.T) {
	svc, _, _, _ := setupPipelineTest()

	_, err := svc.Run(context.Background(), &domain.ExtractionResult{})
	var exErr *domain.ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected *domain.ExtractionError, got %v", err)
	}

	_, err = svc.Run(context.Background(), nil)
	if !errors.As(err, &exErr) {
		t.Fatalf("expected *domain.ExtractionError for nil batch, got %v", err)
	}
}

func TestPipelineService_Run_SearchFailureDefaultsToCreateNew(t *testing.T) {
	svc, persons, _, _ := setupPipelineTest()
	persons.searchErr = errors.New("connection refused")

	batch := &domain.ExtractionResult{
		Persons: []domain.ExtractedPerson{
			{DisplayName: "John Smith", Surname: "Smith", Location: "Seattle"},
		},
	}

	res, err := svc.Run(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.Success {
		t.Fatal("a per-person store failure must not fail the run")
	}
	if res.Decisions[0].Decision.Kind != domain.DecisionCreateNew {
		t.Fatalf("decision = %s, want create_new fallback", res.Decisions[0].Decision.Kind)
	}

	foundWarning := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "search failed") {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Fatalf("expected a search-failure warning, got %v", res.Warnings)
	}
}

func TestPipelineService_Run_CancelledBeforeWork(t *testing.T) {
	svc, persons, _, _ := setupPipelineTest()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.Run(ctx, smithBatch())
	if err != nil {
		t.Fatalf("cancellation must return the partial result, got error %v", err)
	}

	if !res.Cancelled {
		t.Fatal("expected the cancelled flag")
	}
	if res.Success {
		t.Fatal("cancelled run must not be successful")
	}
	if res.State != domain.StateExtracted {
		t.Fatalf("state = %s, want extracted (first boundary)", res.State)
	}
	if persons.count() != 0 {
		t.Fatalf("no writes may happen after cancellation, store holds %d", persons.count())
	}
}

func TestPipelineService_Run_UnassignedPerson(t *testing.T) {
	svc, persons, _, _ := setupPipelineTest()

	batch := &domain.ExtractionResult{
		Persons: []domain.ExtractedPerson{
			{DisplayName: "Cher"},
		},
	}

	res, err := svc.Run(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Groups) != 1 || !res.Groups[0].Unassigned {
		t.Fatalf("expected one unassigned group, got %+v", res.Groups)
	}
	if res.Storage.FamiliesCreated != 0 {
		t.Fatalf("unassigned persons must not mint family codes, outcome %+v", res.Storage)
	}
	if res.Storage.PersonsCreated != 1 {
		t.Fatalf("the person itself is still stored, outcome %+v", res.Storage)
	}

	stored := persons.byName("Cher")
	if stored == nil || stored.FamilyCode != "" {
		t.Fatalf("stored person = %+v, want empty family code", stored)
	}
}

func TestPipelineService_Run_ReusesExistingFamilyCode(t *testing.T) {
	svc, _, families, _ := setupPipelineTest()

	seeded := &domain.FamilyRecord{Code: "SMITH-SEATTLE-001", Surname: "SMITH", Location: "SEATTLE", Sequence: 1}
	if err := families.Upsert(context.Background(), seeded); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := families.NextSequence(context.Background(), "SMITH", "SEATTLE"); err != nil {
		t.Fatalf("seed sequence: %v", err)
	}

	res, err := svc.Run(context.Background(), smithBatch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Groups[0].FamilyCode != "SMITH-SEATTLE-001" {
		t.Fatalf("family code = %q, want the reused SMITH-SEATTLE-001", res.Groups[0].FamilyCode)
	}
	if res.Storage.FamiliesCreated != 0 {
		t.Fatalf("reuse must not count as a created family, outcome %+v", res.Storage)
	}
}

func TestPipelineService_Run_CodeMintFailureAbortsOnlyThatGroup(t *testing.T) {
	svc, persons, families, _ := setupPipelineTest()
	families.seqErr = errors.New("sequence allocation failed")

	batch := &domain.ExtractionResult{
		Persons: []domain.ExtractedPerson{
			{DisplayName: "John Smith", Surname: "Smith", Location: "Seattle"},
			{DisplayName: "Cher"},
		},
	}

	res, err := svc.Run(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.Success {
		t.Fatal("a single aborted group must not fail the run")
	}
	if len(res.Storage.Errors) == 0 {
		t.Fatal("expected a storage error for the aborted group")
	}
	// the Smith group aborted before members were written; Cher still landed
	if res.Storage.PersonsCreated != 1 {
		t.Fatalf("outcome = %+v, want exactly the unassigned person stored", res.Storage)
	}
	if persons.byName("John Smith") != nil {
		t.Fatal("aborted group member must not be stored")
	}
	if persons.byName("Cher") == nil {
		t.Fatal("sibling group must be unaffected")
	}
}

func TestPipelineService_Run_ArchivesTrajectory(t *testing.T) {
	svc, _, _, _ := setupPipelineTest()
	archive := &memTrajectoryStore{}
	svc.SetTrajectoryStore(archive)

	res, err := svc.Run(context.Background(), smithBatch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := archive.GetBySession(context.Background(), res.SessionID)
	if err != nil {
		t.Fatalf("archive lookup: %v", err)
	}
	if len(stored) != len(res.Trajectory) {
		t.Fatalf("archived %d steps, result carries %d", len(stored), len(res.Trajectory))
	}
}

func TestPipelineService_Run_DiscardsBlankNames(t *testing.T) {
	svc, _, _, _ := setupPipelineTest()

	batch := &domain.ExtractionResult{
		Persons: []domain.ExtractedPerson{
			{DisplayName: "   "},
			{DisplayName: "John Smith", Surname: "Smith"},
		},
	}

	res, err := svc.Run(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Decisions) != 1 {
		t.Fatalf("expected 1 decision after discarding blanks, got %d", len(res.Decisions))
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a warning for the discarded entry")
	}
}

func TestPipelineService_Run_AllBlankNamesIsExtractionError(t *testing.T) {
	svc, _, _, _ := setupPipelineTest()

	batch := &domain.ExtractionResult{
		Persons: []domain.ExtractedPerson{{DisplayName: ""}, {DisplayName: "  "}},
	}

	_, err := svc.Run(context.Background(), batch)
	var exErr *domain.ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected *domain.ExtractionError, got %v", err)
	}
}

func TestPipelineService_Run_DecisionsKeepInputOrderUnderConcurrency(t *testing.T) {
	svc, _, _, _ := setupPipelineTest()
	svc.SetDedupWorkers(3)

	batch := &domain.ExtractionResult{}
	want := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("Person%02d Alpha", i)
		want = append(want, name)
		batch.Persons = append(batch.Persons, domain.ExtractedPerson{DisplayName: name})
	}

	res, err := svc.Run(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Decisions) != len(want) {
		t.Fatalf("expected %d decisions, got %d", len(want), len(res.Decisions))
	}
	for i, d := range res.Decisions {
		if d.ExtractedName != want[i] {
			t.Fatalf("decision %d = %q, want %q (input order)", i, d.ExtractedName, want[i])
		}
	}
}

func TestPipelineService_ProcessText(t *testing.T) {
	svc, _, _, _ := setupPipelineTest()
	svc.SetExtractionProvider(&stubExtractor{result: smithBatch()})

	res, err := svc.ProcessText(context.Background(), "My wife Mary and I live in Seattle.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Storage.PersonsCreated != 2 {
		t.Fatalf("storage outcome = %+v", res.Storage)
	}
}

func TestPipelineService_ProcessText_NoProvider(t *testing.T) {
	svc, _, _, _ := setupPipelineTest()

	_, err := svc.ProcessText(context.Background(), "hello")
	if !errors.Is(err, ErrNoExtractionProvider) {
		t.Fatalf("expected ErrNoExtractionProvider, got %v", err)
	}
}

func TestPipelineService_ProcessText_EmptyText(t *testing.T) {
	svc, _, _, _ := setupPipelineTest()
	svc.SetExtractionProvider(&stubExtractor{result: smithBatch()})

	_, err := svc.ProcessText(context.Background(), "   ")
	var exErr *domain.ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected *domain.ExtractionError, got %v", err)
	}
}

func TestPipelineService_ProcessText_ProviderFailure(t *testing.T) {
	svc, _, _, _ := setupPipelineTest()
	svc.SetExtractionProvider(&stubExtractor{err: errors.New("model timeout")})

	_, err := svc.ProcessText(context.Background(), "some text")
	var exErr *domain.ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected wrapped *domain.ExtractionError, got %v", err)
	}
}
