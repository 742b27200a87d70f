package resolution

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/blocking"
	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/llm"
	"github.com/Ramsey-B/fern/pkg/locking"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalization"
	"github.com/Ramsey-B/fern/pkg/similarity"
)

func testLogger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

// graphState is the in-memory graph shared by the store fakes, so
// cross-store expectations (a synonym's owner, a merged entity's chain)
// stay consistent within a test.
type graphState struct {
	mu sync.Mutex

	entities map[string]*models.Entity
	entOrder []string
	merged   map[string]string // source id -> merge target id

	synonyms map[string]*models.Synonym
	synOrder []string

	keys map[string][]string // entity id -> blocking keys

	rels     map[string]*models.LibraryRelationship
	relOrder []string

	audits    []models.AuditEntry
	decisions []models.MatchDecisionRecord

	seq             int
	findByNameCalls int

	createEntityErr  error
	createSynonymErr error
	reinforceErr     error
	indexErr         error
	createRelErr     error
	recordAuditErr   error
	createBatchErr   error
}

func newGraphState() *graphState {
	return &graphState{
		entities: make(map[string]*models.Entity),
		merged:   make(map[string]string),
		synonyms: make(map[string]*models.Synonym),
		keys:     make(map[string][]string),
		rels:     make(map[string]*models.LibraryRelationship),
	}
}

// nextID must be called with the mutex held.
func (s *graphState) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *graphState) entity(id string) *models.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entities[id]
	if !ok {
		return nil
	}
	snapshot := *ent
	return &snapshot
}

func (s *graphState) synonym(id string) *models.Synonym {
	s.mu.Lock()
	defer s.mu.Unlock()
	syn, ok := s.synonyms[id]
	if !ok {
		return nil
	}
	snapshot := *syn
	return &snapshot
}

func (s *graphState) keysFor(entityID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys[entityID]...)
}

func (s *graphState) findCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByNameCalls
}

func (s *graphState) auditActions() []models.AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := make([]models.AuditAction, 0, len(s.audits))
	for _, e := range s.audits {
		actions = append(actions, e.Action)
	}
	return actions
}

func (s *graphState) auditDetails(action models.AuditAction) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.audits {
		if e.Action == action {
			return e.Details
		}
	}
	return nil
}

func (s *graphState) decisionsFor(tempID string) []models.MatchDecisionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MatchDecisionRecord
	for _, d := range s.decisions {
		if d.InputEntityTempID == tempID {
			out = append(out, d)
		}
	}
	return out
}

type fakeEntityStore struct{ s *graphState }

func (f *fakeEntityStore) Create(ctx context.Context, entity *models.Entity) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.createEntityErr != nil {
		return f.s.createEntityErr
	}
	if entity.ID == "" {
		entity.ID = f.s.nextID("ent")
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now().UTC()
	}
	entity.UpdatedAt = entity.CreatedAt
	if entity.Status == "" {
		entity.Status = models.EntityStatusActive
	}
	stored := *entity
	f.s.entities[entity.ID] = &stored
	f.s.entOrder = append(f.s.entOrder, entity.ID)
	return nil
}

func (f *fakeEntityStore) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	ent, ok := f.s.entities[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "entity not found")
	}
	snapshot := *ent
	return &snapshot, nil
}

func (f *fakeEntityStore) FindByNormalizedName(ctx context.Context, normalizedName, entityType string) ([]models.Entity, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.findByNameCalls++
	var out []models.Entity
	for _, id := range f.s.entOrder {
		ent := f.s.entities[id]
		if ent.Status == models.EntityStatusActive && ent.NormalizedName == normalizedName && ent.Type == entityType {
			out = append(out, *ent)
		}
	}
	return out, nil
}

func (f *fakeEntityStore) FindCandidatesByBlockingKeys(ctx context.Context, blockingKeys []string, entityType string) ([]models.Entity, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	want := make(map[string]bool, len(blockingKeys))
	for _, k := range blockingKeys {
		want[k] = true
	}
	var out []models.Entity
	for _, id := range f.s.entOrder {
		ent := f.s.entities[id]
		if ent.Status != models.EntityStatusActive || ent.Type != entityType {
			continue
		}
		for _, k := range f.s.keys[id] {
			if want[k] {
				out = append(out, *ent)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeEntityStore) ListActiveByType(ctx context.Context, entityType string) ([]models.Entity, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Entity
	for _, id := range f.s.entOrder {
		ent := f.s.entities[id]
		if ent.Status == models.EntityStatusActive && ent.Type == entityType {
			out = append(out, *ent)
		}
	}
	return out, nil
}

func (f *fakeEntityStore) ResolveCanonicalID(ctx context.Context, id string) (string, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	cur := id
	for {
		next, ok := f.s.merged[cur]
		if !ok {
			break
		}
		cur = next
	}
	if _, ok := f.s.entities[cur]; !ok {
		return "", httperror.NewHTTPError(http.StatusNotFound, "entity not found")
	}
	return cur, nil
}

type fakeSynonymStore struct{ s *graphState }

func (f *fakeSynonymStore) Create(ctx context.Context, syn *models.Synonym) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.createSynonymErr != nil {
		return f.s.createSynonymErr
	}
	if syn.ID == "" {
		syn.ID = f.s.nextID("syn")
	}
	if syn.CreatedAt.IsZero() {
		syn.CreatedAt = time.Now().UTC()
	}
	stored := *syn
	f.s.synonyms[syn.ID] = &stored
	f.s.synOrder = append(f.s.synOrder, syn.ID)
	return nil
}

func (f *fakeSynonymStore) FindByNormalizedValue(ctx context.Context, normalizedValue, entityType string) (*models.Synonym, *models.Entity, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, id := range f.s.synOrder {
		syn := f.s.synonyms[id]
		if syn.NormalizedValue != normalizedValue {
			continue
		}
		owner, ok := f.s.entities[syn.EntityID]
		if !ok || owner.Status != models.EntityStatusActive || owner.Type != entityType {
			continue
		}
		sc, oc := *syn, *owner
		return &sc, &oc, nil
	}
	return nil, nil, nil
}

func (f *fakeSynonymStore) ListByEntity(ctx context.Context, entityID string) ([]models.Synonym, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Synonym
	for _, id := range f.s.synOrder {
		if syn := f.s.synonyms[id]; syn.EntityID == entityID {
			out = append(out, *syn)
		}
	}
	return out, nil
}

func (f *fakeSynonymStore) Reinforce(ctx context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.reinforceErr != nil {
		return f.s.reinforceErr
	}
	syn, ok := f.s.synonyms[id]
	if !ok {
		return httperror.NewHTTPError(http.StatusNotFound, "synonym not found")
	}
	syn.SupportCount++
	syn.LastConfirmedAt = time.Now().UTC()
	return nil
}

type fakeBlockingKeyStore struct{ s *graphState }

func (f *fakeBlockingKeyStore) IndexEntity(ctx context.Context, entityID string, keys []string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.indexErr != nil {
		return f.s.indexErr
	}
	f.s.keys[entityID] = append(f.s.keys[entityID], keys...)
	return nil
}

type fakeRelationshipStore struct{ s *graphState }

func (f *fakeRelationshipStore) Create(ctx context.Context, rel *models.LibraryRelationship) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.createRelErr != nil {
		return f.s.createRelErr
	}
	if rel.ID == "" {
		rel.ID = f.s.nextID("rel")
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}
	stored := *rel
	f.s.rels[rel.ID] = &stored
	f.s.relOrder = append(f.s.relOrder, rel.ID)
	return nil
}

func (f *fakeRelationshipStore) GetByID(ctx context.Context, id string) (*models.LibraryRelationship, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	rel, ok := f.s.rels[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "relationship not found")
	}
	snapshot := *rel
	return &snapshot, nil
}

func (f *fakeRelationshipStore) ListForEntity(ctx context.Context, entityID string, direction models.RelationshipDirection) ([]models.LibraryRelationship, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.LibraryRelationship
	for _, id := range f.s.relOrder {
		rel := f.s.rels[id]
		outgoing := rel.SourceEntityID == entityID
		incoming := rel.TargetEntityID == entityID
		switch direction {
		case models.RelationshipDirectionOutgoing:
			if !outgoing {
				continue
			}
		case models.RelationshipDirectionIncoming:
			if !incoming {
				continue
			}
		default:
			if !outgoing && !incoming {
				continue
			}
		}
		out = append(out, *rel)
	}
	return out, nil
}

type fakeAuditStore struct{ s *graphState }

func (f *fakeAuditStore) Record(ctx context.Context, entry *models.AuditEntry) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.recordAuditErr != nil {
		return f.s.recordAuditErr
	}
	if entry.ID == "" {
		entry.ID = f.s.nextID("aud")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	f.s.audits = append(f.s.audits, *entry)
	return nil
}

func (f *fakeAuditStore) ListByEntity(ctx context.Context, entityID string, from, to time.Time) ([]models.AuditEntry, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.AuditEntry
	for _, e := range f.s.audits {
		if e.EntityID != entityID {
			continue
		}
		if !from.IsZero() && e.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && e.Timestamp.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeAuditStore) Page(ctx context.Context, cursor *models.AuditCursor, limit int) ([]models.AuditEntry, *models.AuditCursor, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	start := 0
	if cursor != nil {
		for i, e := range f.s.audits {
			if e.ID == cursor.ID {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(f.s.audits))
	page := append([]models.AuditEntry(nil), f.s.audits[start:end]...)
	if end >= len(f.s.audits) || len(page) == 0 {
		return page, nil, nil
	}
	last := page[len(page)-1]
	return page, &models.AuditCursor{Timestamp: last.Timestamp, ID: last.ID}, nil
}

type fakeDecisionStore struct{ s *graphState }

func (f *fakeDecisionStore) CreateBatch(ctx context.Context, records []models.MatchDecisionRecord) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.createBatchErr != nil {
		return f.s.createBatchErr
	}
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = f.s.nextID("dec")
		}
		if rec.EvaluatedAt.IsZero() {
			rec.EvaluatedAt = time.Now().UTC()
		}
		if rec.Evaluator == "" {
			rec.Evaluator = models.DefaultEvaluator
		}
		f.s.decisions = append(f.s.decisions, rec)
	}
	return nil
}

func (f *fakeDecisionStore) ListByTempID(ctx context.Context, inputEntityTempID string) ([]models.MatchDecisionRecord, error) {
	return f.s.decisionsFor(inputEntityTempID), nil
}

type mergerCall struct {
	sourceID    string
	targetID    string
	match       models.MatchSummary
	triggeredBy string
	strategy    models.MergeStrategy
}

// fakeMerger records calls and, on success, marks the source merged in the
// shared state so ref resolution sees the chain.
type fakeMerger struct {
	s *graphState

	mu        sync.Mutex
	calls     []mergerCall
	err       error
	synonymID string
	history   []models.MergeRecord
}

func (f *fakeMerger) Merge(ctx context.Context, sourceID, targetID string, match models.MatchSummary, triggeredBy string, strategy models.MergeStrategy) (*models.MergeResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, mergerCall{sourceID, targetID, match, triggeredBy, strategy})
	err := f.err
	synonymID := f.synonymID
	f.mu.Unlock()

	if err != nil {
		return &models.MergeResult{
			SourceEntityID: sourceID,
			TargetEntityID: targetID,
			FailedStep:     "mark_merged",
			Errors:         []string{err.Error()},
		}, err
	}

	f.s.mu.Lock()
	if ent, ok := f.s.entities[sourceID]; ok {
		ent.Status = models.EntityStatusMerged
	}
	f.s.merged[sourceID] = targetID
	f.s.mu.Unlock()

	return &models.MergeResult{
		Success:        true,
		SourceEntityID: sourceID,
		TargetEntityID: targetID,
		SynonymID:      synonymID,
		CompletedAt:    time.Now().UTC(),
	}, nil
}

func (f *fakeMerger) CanMerge(ctx context.Context, sourceID, targetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeMerger) MergeHistory(ctx context.Context, entityID string) ([]models.MergeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, nil
}

func (f *fakeMerger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeLocker struct {
	mu       sync.Mutex
	err      error
	delay    time.Duration
	acquires int
	releases int
}

func (f *fakeLocker) TryAcquire(ctx context.Context, key string, ttl, wait time.Duration) (locking.Lock, error) {
	f.mu.Lock()
	f.acquires++
	err := f.err
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &fakeLock{locker: f}, nil
}

type fakeLock struct{ locker *fakeLocker }

func (l *fakeLock) Release(ctx context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	l.locker.releases++
	return nil
}

type fakeQueue struct {
	mu        sync.Mutex
	items     []models.ReviewItem
	submitErr error
}

func (f *fakeQueue) Submit(ctx context.Context, item *models.ReviewItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.items = append(f.items, *item)
	return nil
}

func (f *fakeQueue) GetPending(ctx context.Context, limit, offset int) ([]models.ReviewItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ReviewItem(nil), f.items...), nil
}

func (f *fakeQueue) Approve(ctx context.Context, id, reviewedBy string) (*models.MergeResult, error) {
	return nil, nil
}

func (f *fakeQueue) Reject(ctx context.Context, id, reviewedBy, notes string) error {
	return nil
}

type fakeLLM struct {
	mu        sync.Mutex
	available bool
	verdict   *llm.Verdict
	err       error
	requests  []llm.Request
}

func (f *fakeLLM) Enrich(ctx context.Context, req llm.Request) (*llm.Verdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.verdict, nil
}

func (f *fakeLLM) Available(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

type fakeEmitter struct {
	mu         sync.Mutex
	created    []string
	merged     []string
	audited    []models.AuditAction
	createdErr error
}

func (f *fakeEmitter) EmitEntityCreated(ctx context.Context, entity *models.Entity, correlationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createdErr != nil {
		return f.createdErr
	}
	f.created = append(f.created, entity.ID)
	return nil
}

func (f *fakeEmitter) EmitEntityMerged(ctx context.Context, record *models.MergeRecord, entityType string, correlationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merged = append(f.merged, record.SourceEntityID)
	return nil
}

func (f *fakeEmitter) EmitAudit(ctx context.Context, entry *models.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audited = append(f.audited, entry.Action)
	return nil
}

// staticStrategy pins every name to the same blocking keys so candidate
// discovery in tests is deterministic.
type staticStrategy []string

func (s staticStrategy) Keys(normalized string) []string { return s }

// staticNormalizer ignores its input.
type staticNormalizer string

func (n staticNormalizer) Normalize(raw, entityType string) string { return string(n) }

// stubScorer looks the candidate side of a comparison up in a table, so
// tests place candidates in exact threshold bands.
type stubScorer map[string]float64

func (s stubScorer) Score(a, b string) similarity.Breakdown {
	v := s[b]
	return similarity.Breakdown{Levenshtein: v, JaroWinkler: v, Jaccard: v, Composite: v}
}

func (s stubScorer) Weights() similarity.Weights { return similarity.DefaultWeights() }

type resolverFixture struct {
	state     *graphState
	entities  *fakeEntityStore
	synonyms  *fakeSynonymStore
	blocking  *fakeBlockingKeyStore
	rels      *fakeRelationshipStore
	audit     *fakeAuditStore
	decisions *fakeDecisionStore
	merger    *fakeMerger
	locker    *fakeLocker
	llm       *fakeLLM
	emitter   *fakeEmitter
	queue     *fakeQueue
	resolver  *Resolver
}

func newResolverFixture(t *testing.T, mutate func(*Options)) *resolverFixture {
	t.Helper()

	options := DefaultOptions()
	if mutate != nil {
		mutate(&options)
	}

	state := newGraphState()
	fx := &resolverFixture{
		state:     state,
		entities:  &fakeEntityStore{s: state},
		synonyms:  &fakeSynonymStore{s: state},
		blocking:  &fakeBlockingKeyStore{s: state},
		rels:      &fakeRelationshipStore{s: state},
		audit:     &fakeAuditStore{s: state},
		decisions: &fakeDecisionStore{s: state},
		merger:    &fakeMerger{s: state, synonymID: "syn-merge"},
		locker:    &fakeLocker{},
		llm:       &fakeLLM{},
		emitter:   &fakeEmitter{},
	}

	scorer, err := similarity.NewScorer(options.SimilarityWeights)
	require.NoError(t, err)

	fx.resolver = &Resolver{
		options:       options,
		logger:        testLogger(),
		normalizer:    normalization.Default(),
		strategy:      blocking.NewDefault(),
		scorer:        scorer,
		cache:         cache.NewMemory(cache.DefaultMemoryConfig()),
		locker:        fx.locker,
		llm:           fx.llm,
		emitter:       fx.emitter,
		merger:        fx.merger,
		entities:      fx.entities,
		synonyms:      fx.synonyms,
		blockingKeys:  fx.blocking,
		relationships: fx.rels,
		audit:         fx.audit,
		decisions:     fx.decisions,
	}
	return fx
}

// withQueue installs a review queue on the resolver under test.
func (fx *resolverFixture) withQueue() *fakeQueue {
	fx.queue = &fakeQueue{}
	fx.resolver.queue = fx.queue
	return fx.queue
}

func (fx *resolverFixture) seedEntity(t *testing.T, id, canonical, normalized, entityType string) *models.Entity {
	t.Helper()
	ent := &models.Entity{
		ID:              id,
		CanonicalName:   canonical,
		NormalizedName:  normalized,
		Type:            entityType,
		ConfidenceScore: 1.0,
	}
	require.NoError(t, fx.entities.Create(context.Background(), ent))
	return ent
}

func (fx *resolverFixture) indexEntity(t *testing.T, id string, keys ...string) {
	t.Helper()
	require.NoError(t, fx.blocking.IndexEntity(context.Background(), id, keys))
}

func (fx *resolverFixture) seedSynonym(t *testing.T, entityID, value, normalized string) *models.Synonym {
	t.Helper()
	syn := &models.Synonym{
		Value:           value,
		NormalizedValue: normalized,
		Source:          models.SynonymSourceHuman,
		Confidence:      0.9,
		EntityID:        entityID,
	}
	require.NoError(t, fx.synonyms.Create(context.Background(), syn))
	return syn
}

func (fx *resolverFixture) cached(entityType, normalizedName string) bool {
	_, ok := fx.resolver.cache.Get(context.Background(), entityType, normalizedName)
	return ok
}
