// Package resolution is the orchestrator: it runs the resolve state machine
// over the graph store, the cache and the per-key lock, drives the merge
// engine, and exposes the read paths over the artifacts the pipeline writes.
package resolution

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/internal/repositories/audit"
	"github.com/Ramsey-B/fern/internal/repositories/blockingkey"
	"github.com/Ramsey-B/fern/internal/repositories/duplicate"
	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/matchdecision"
	"github.com/Ramsey-B/fern/internal/repositories/mergerecord"
	"github.com/Ramsey-B/fern/internal/repositories/relationship"
	"github.com/Ramsey-B/fern/internal/repositories/reviewitem"
	synonymrepo "github.com/Ramsey-B/fern/internal/repositories/synonym"
	"github.com/Ramsey-B/fern/pkg/blocking"
	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/llm"
	"github.com/Ramsey-B/fern/pkg/locking"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalization"
	"github.com/Ramsey-B/fern/pkg/review"
	"github.com/Ramsey-B/fern/pkg/similarity"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// The internal repositories back the pipeline's store interfaces.
var (
	_ EntityStore       = (*entity.Repository)(nil)
	_ SynonymStore      = (*synonymrepo.Repository)(nil)
	_ BlockingKeyStore  = (*blockingkey.Repository)(nil)
	_ RelationshipStore = (*relationship.Repository)(nil)
	_ AuditStore        = (*audit.Repository)(nil)
	_ DecisionStore     = (*matchdecision.Repository)(nil)
	_ Merger            = (*merging.Engine)(nil)
	_ Scorer            = (*similarity.Scorer)(nil)
	_ review.ItemStore  = (*reviewitem.Repository)(nil)
)

// Resolver runs resolutions against one graph store with one set of options.
// It is safe for concurrent use.
type Resolver struct {
	store   graph.Store
	options Options
	logger  ectologger.Logger

	normalizer normalization.Normalizer
	strategy   blocking.Strategy
	scorer     Scorer
	cache      cache.Cache
	locker     locking.Locker
	llm        llm.Provider
	queue      review.Queue
	emitter    events.Emitter
	merger     Merger

	entities      EntityStore
	synonyms      SynonymStore
	blockingKeys  BlockingKeyStore
	relationships RelationshipStore
	audit         AuditStore
	decisions     DecisionStore

	useGraphQueue bool
}

// Option customizes a Resolver at construction time.
type Option func(*Resolver)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger ectologger.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithCache replaces the default in-memory resolution cache.
func WithCache(c cache.Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithLocker replaces the default in-process per-key lock.
func WithLocker(l locking.Locker) Option {
	return func(r *Resolver) { r.locker = l }
}

// WithLLMProvider enables LLM enrichment for borderline matches.
func WithLLMProvider(p llm.Provider) Option {
	return func(r *Resolver) { r.llm = p }
}

// WithReviewQueue routes REVIEW outcomes to the queue. Without one, REVIEW
// outcomes are recorded as MANUAL_REVIEW_REQUESTED audit entries.
func WithReviewQueue(q review.Queue) Option {
	return func(r *Resolver) { r.queue = q }
}

// WithGraphReviewQueue wires the graph-backed review queue over the same
// store the resolver uses; approvals merge through the resolver's engine.
func WithGraphReviewQueue() Option {
	return func(r *Resolver) { r.useGraphQueue = true }
}

// WithEmitter publishes entity, merge and audit events. The default drops
// them.
func WithEmitter(e events.Emitter) Option {
	return func(r *Resolver) { r.emitter = e }
}

// WithNormalizer replaces the default rule set.
func WithNormalizer(n normalization.Normalizer) Option {
	return func(r *Resolver) { r.normalizer = n }
}

// WithBlockingStrategy replaces the default blocking-key strategy.
func WithBlockingStrategy(s blocking.Strategy) Option {
	return func(r *Resolver) { r.strategy = s }
}

// WithScorer replaces the similarity scorer built from the options' weights.
func WithScorer(s Scorer) Option {
	return func(r *Resolver) { r.scorer = s }
}

// New builds a resolver over the store. The store is required; every other
// collaborator has a default (in-memory cache and lock, default rules and
// weights, no-op LLM, emitter and review queue).
func New(store graph.Store, options Options, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "graph store is required")
	}

	options = options.withDefaults()
	if err := options.Validate(); err != nil {
		return nil, err
	}

	r := &Resolver{
		store:   store,
		options: options,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
	}
	if r.normalizer == nil {
		r.normalizer = normalization.Default()
	}
	if r.strategy == nil {
		r.strategy = blocking.NewDefault()
	}
	if r.scorer == nil {
		scorer, err := similarity.NewScorer(options.SimilarityWeights)
		if err != nil {
			return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid resolution options: %v", err)
		}
		r.scorer = scorer
	}
	if r.cache == nil {
		r.cache = cache.NewMemory(cache.DefaultMemoryConfig())
	}
	if r.locker == nil {
		r.locker = locking.NewMemory()
	}
	if r.llm == nil {
		r.llm = llm.NewNoop()
	}
	if r.emitter == nil {
		r.emitter = events.NewNoop()
	}

	entities := entity.NewRepository(store, r.logger)
	synonyms := synonymrepo.NewRepository(store, r.logger)
	duplicates := duplicate.NewRepository(store, r.logger)
	relationships := relationship.NewRepository(store, r.logger)
	auditRepo := audit.NewRepository(store, r.logger)
	ledger := mergerecord.NewRepository(store, r.logger)

	r.entities = entities
	r.synonyms = synonyms
	r.blockingKeys = blockingkey.NewRepository(store, r.logger)
	r.relationships = relationships
	r.audit = auditRepo
	r.decisions = matchdecision.NewRepository(store, r.logger)

	if r.merger == nil {
		r.merger = merging.NewEngine(merging.Stores{
			Entities:      entities,
			Synonyms:      synonyms,
			Duplicates:    duplicates,
			Relationships: relationships,
			Ledger:        ledger,
			Audit:         auditRepo,
		}, r.emitter, options.SourceSystem, r.logger)
	}

	if r.queue == nil && r.useGraphQueue {
		r.queue = review.NewGraphQueue(reviewitem.NewRepository(store, r.logger), r.merger, r.logger)
	}

	return r, nil
}

// Options returns the configuration the resolver runs with.
func (r *Resolver) Options() Options {
	return r.options
}

// ReviewQueue returns the configured queue, or nil when REVIEW outcomes only
// leave audit entries.
func (r *Resolver) ReviewQueue() review.Queue {
	return r.queue
}

// EntityRef returns a merge-stable handle for the entity. The handle's
// canonical id tracks merges by walking MERGED_INTO through the store.
func (r *Resolver) EntityRef(id, entityType string) *models.EntityRef {
	return models.NewEntityRefWithResolver(id, entityType, func(ctx context.Context) (string, error) {
		return r.entities.ResolveCanonicalID(ctx, id)
	})
}

// GetEntity returns the entity snapshot by id.
func (r *Resolver) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.GetEntity")
	defer span.End()

	return r.entities.GetByID(ctx, id)
}

// GetSynonyms returns the synonyms attached to the entity, oldest first.
func (r *Resolver) GetSynonyms(ctx context.Context, entityID string) ([]models.Synonym, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.GetSynonyms")
	defer span.End()

	return r.synonyms.ListByEntity(ctx, entityID)
}

// GetAuditTrail returns the entity's audit entries within [from, to]. Zero
// bounds are open.
func (r *Resolver) GetAuditTrail(ctx context.Context, entityID string, from, to time.Time) ([]models.AuditEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.GetAuditTrail")
	defer span.End()

	return r.audit.ListByEntity(ctx, entityID, from, to)
}

// AuditTrailPage returns one page of the entity-agnostic audit trail in
// (timestamp, id) order. A nil cursor starts from the beginning; the
// returned cursor is nil once the trail is exhausted.
func (r *Resolver) AuditTrailPage(ctx context.Context, cursor *models.AuditCursor, limit int) ([]models.AuditEntry, *models.AuditCursor, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.AuditTrailPage")
	defer span.End()

	return r.audit.Page(ctx, cursor, limit)
}

// MergeHistory returns the ledger records involving the entity.
func (r *Resolver) MergeHistory(ctx context.Context, entityID string) ([]models.MergeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.MergeHistory")
	defer span.End()

	return r.merger.MergeHistory(ctx, entityID)
}

// DecisionsForInput returns every candidate evaluation persisted for one
// resolution call, best score first. The temp id is the call's correlation
// id.
func (r *Resolver) DecisionsForInput(ctx context.Context, tempID string) ([]models.MatchDecisionRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.DecisionsForInput")
	defer span.End()

	return r.decisions.ListByTempID(ctx, tempID)
}

// GetRelationship returns a library relationship by id.
func (r *Resolver) GetRelationship(ctx context.Context, id string) (*models.LibraryRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.GetRelationship")
	defer span.End()

	return r.relationships.GetByID(ctx, id)
}

// RelationshipsFor returns the library relationships touching the entity in
// the given direction.
func (r *Resolver) RelationshipsFor(ctx context.Context, entityID string, direction models.RelationshipDirection) ([]models.LibraryRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.RelationshipsFor")
	defer span.End()

	switch direction {
	case models.RelationshipDirectionOutgoing, models.RelationshipDirectionIncoming, models.RelationshipDirectionBoth:
	default:
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid relationship direction %q", direction)
	}

	return r.relationships.ListForEntity(ctx, entityID, direction)
}

var relationshipTypeRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func validateRelationshipType(relType string) error {
	if !relationshipTypeRe.MatchString(relType) {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid relationship type %q: must match [A-Za-z0-9_]+", relType)
	}
	return nil
}

func validateRelationshipProperties(properties map[string]any) error {
	for key := range properties {
		if relationship.IsReservedEdgeKey(key) {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "relationship property %q collides with a reserved edge key", key)
		}
	}
	return nil
}

// CreateRelationship creates a library-managed edge between the refs'
// current canonical entities. Both endpoints must resolve to ACTIVE
// entities; the edge survives later merges because the engine migrates
// LIBRARY_REL edges by id.
func (r *Resolver) CreateRelationship(ctx context.Context, src, tgt *models.EntityRef, relType string, properties map[string]any) (*models.LibraryRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.CreateRelationship")
	defer span.End()

	if src == nil || tgt == nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "both relationship endpoints are required")
	}
	if err := validateRelationshipType(relType); err != nil {
		return nil, err
	}
	if err := validateRelationshipProperties(properties); err != nil {
		return nil, err
	}

	srcID, err := src.CanonicalID(ctx)
	if err != nil {
		return nil, err
	}
	tgtID, err := tgt.CanonicalID(ctx)
	if err != nil {
		return nil, err
	}

	// Re-resolve through the store so static refs cannot pin an edge to a
	// merged-away entity.
	srcID, err = r.entities.ResolveCanonicalID(ctx, srcID)
	if err != nil {
		return nil, err
	}
	tgtID, err = r.entities.ResolveCanonicalID(ctx, tgtID)
	if err != nil {
		return nil, err
	}

	rel := &models.LibraryRelationship{
		SourceEntityID: srcID,
		TargetEntityID: tgtID,
		Type:           relType,
		Properties:     properties,
		CreatedBy:      r.options.SourceSystem,
	}
	if err := r.relationships.Create(ctx, rel); err != nil {
		return nil, err
	}

	r.recordAudit(ctx, &models.AuditEntry{
		Action:   models.AuditActionRelationshipCreated,
		EntityID: srcID,
		Details: map[string]any{
			"relationshipId":   rel.ID,
			"relationshipType": relType,
			"targetEntityId":   tgtID,
		},
	})

	return rel, nil
}

// Merge performs an explicit merge of source into target and invalidates
// any cached resolutions for both names. The match summary is recorded on
// the ledger and the MERGED_INTO edge as given.
func (r *Resolver) Merge(ctx context.Context, sourceID, targetID string, match models.MatchSummary, triggeredBy string, strategy models.MergeStrategy) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.Merge")
	defer span.End()

	if triggeredBy == "" {
		triggeredBy = models.DefaultEvaluator
	}

	source, err := r.entities.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	target, err := r.entities.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	result, err := r.merger.Merge(ctx, sourceID, targetID, match, triggeredBy, strategy)
	if err != nil {
		return result, err
	}

	r.cache.Invalidate(ctx, source.Type, source.NormalizedName)
	r.cache.Invalidate(ctx, target.Type, target.NormalizedName)

	return result, nil
}

// CanMerge reports whether the pair currently satisfies the merge
// preconditions.
func (r *Resolver) CanMerge(ctx context.Context, sourceID, targetID string) error {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.CanMerge")
	defer span.End()

	return r.merger.CanMerge(ctx, sourceID, targetID)
}

// recordAudit writes an audit entry and mirrors it onto the event bus.
// Audit persistence never fails a resolution; failures are logged and
// counted.
func (r *Resolver) recordAudit(ctx context.Context, entry *models.AuditEntry) {
	if err := r.audit.Record(ctx, entry); err != nil {
		metrics.RecordAuditFailure()
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"action": string(entry.Action)}).Warn("Failed to record audit entry")
		return
	}
	if err := r.emitter.EmitAudit(ctx, entry); err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("Failed to emit audit.recorded event")
	}
}
