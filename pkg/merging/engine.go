// Package merging implements the saga-style merge engine. A merge is a
// sequence of graph mutations that must land together; each step registers a
// compensation over its recorded outputs and a failed step unwinds the
// completed ones in reverse order.
package merging

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Step names recorded on MergeResult.FailedStep.
const (
	stepPreconditions = "preconditions"
	stepSynonym       = "create_synonym"
	stepDuplicate     = "create_duplicate"
	stepLibraryEdges  = "migrate_library_relationships"
	stepForeignEdges  = "migrate_arbitrary_edges"
	stepTransition    = "mark_merged"
	stepLedger        = "record_merge"
)

// EntityStore is the entity persistence the engine drives.
type EntityStore interface {
	GetByID(ctx context.Context, id string) (*models.Entity, error)
	MarkMerged(ctx context.Context, sourceID, targetID string, confidence float64, reason string, mergedAt time.Time) error
	RestoreActive(ctx context.Context, sourceID, targetID string) error
}

// SynonymStore is the synonym persistence the engine drives.
type SynonymStore interface {
	FindByValue(ctx context.Context, entityID, value string) (*models.Synonym, error)
	Create(ctx context.Context, syn *models.Synonym) error
	Delete(ctx context.Context, id string) error
}

// DuplicateStore is the duplicate-record persistence the engine drives.
type DuplicateStore interface {
	Create(ctx context.Context, dup *models.DuplicateEntity) error
	Delete(ctx context.Context, id string) error
}

// RelationshipStore migrates edges during a merge. Library relationships move
// by id; arbitrary edges move by snapshot descriptor.
type RelationshipStore interface {
	ListForMigration(ctx context.Context, entityID, excludeOtherID string) ([]models.LibraryRelationship, error)
	RedirectSources(ctx context.Context, ids []string, from, to string) error
	RedirectTargets(ctx context.Context, ids []string, from, to string) error
	SnapshotForeignEdges(ctx context.Context, entityID, excludeOtherID string) ([]models.EdgeDescriptor, error)
	MoveEdges(ctx context.Context, from, to string, edges []models.EdgeDescriptor) error
}

// LedgerStore is the append-only merge ledger.
type LedgerStore interface {
	Create(ctx context.Context, record *models.MergeRecord) error
	ListForEntity(ctx context.Context, entityID string) ([]models.MergeRecord, error)
}

// AuditRecorder records audit entries. Audit writes are best-effort: the
// engine logs failures and carries on.
type AuditRecorder interface {
	Record(ctx context.Context, entry *models.AuditEntry) error
}

// Stores bundles the persistence the engine needs. Each field is satisfied by
// the matching repository under internal/repositories.
type Stores struct {
	Entities      EntityStore
	Synonyms      SynonymStore
	Duplicates    DuplicateStore
	Relationships RelationshipStore
	Ledger        LedgerStore
	Audit         AuditRecorder
}

// Engine performs merges between canonical entities
type Engine struct {
	stores       Stores
	emitter      events.Emitter
	sourceSystem string
	logger       ectologger.Logger
}

// NewEngine creates a new merge engine
func NewEngine(stores Stores, emitter events.Emitter, sourceSystem string, logger ectologger.Logger) *Engine {
	if emitter == nil {
		emitter = events.NewNoop()
	}
	if sourceSystem == "" {
		sourceSystem = models.DefaultSourceSystem
	}

	return &Engine{
		stores:       stores,
		emitter:      emitter,
		sourceSystem: sourceSystem,
		logger:       logger,
	}
}

// compensation undoes one completed step. It closes over the step's recorded
// outputs rather than reading live state, so unwinding stays correct even
// when the failing step left the graph half-written.
type compensation struct {
	step string
	fn   func(ctx context.Context) error
}

type saga struct {
	compensations []compensation
}

func (s *saga) register(step string, fn func(ctx context.Context) error) {
	s.compensations = append(s.compensations, compensation{step: step, fn: fn})
}

// unwind runs the registered compensations in reverse order. A failing
// compensation is recorded and the rest still run.
func (s *saga) unwind(ctx context.Context) []string {
	var errs []string
	for i := len(s.compensations) - 1; i >= 0; i-- {
		c := s.compensations[i]
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", c.step, err))
		}
	}
	return errs
}

// CanMerge reports whether the merge preconditions hold for the pair: both
// entities exist, both are ACTIVE, same type, different ids. A nil return
// means mergeable.
func (e *Engine) CanMerge(ctx context.Context, sourceID, targetID string) error {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.CanMerge")
	defer span.End()

	_, _, err := e.checkPreconditions(ctx, sourceID, targetID)
	return err
}

// MergeHistory returns the ledger records that involve the entity as either
// side, oldest first.
func (e *Engine) MergeHistory(ctx context.Context, entityID string) ([]models.MergeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.MergeHistory")
	defer span.End()

	return e.stores.Ledger.ListForEntity(ctx, entityID)
}

// Merge folds source into target. With MergeStrategyKeepSource the roles
// swap first, so the result's source/target always reflect the direction the
// graph mutation actually ran. On failure the populated result is returned
// alongside the error so callers can inspect which step failed and whether
// every compensation succeeded.
func (e *Engine) Merge(ctx context.Context, sourceID, targetID string, match models.MatchSummary, triggeredBy string, strategy models.MergeStrategy) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.Merge")
	defer span.End()

	if strategy == models.MergeStrategyKeepSource {
		sourceID, targetID = targetID, sourceID
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"source_entity_id": sourceID,
		"target_entity_id": targetID,
		"triggered_by":     triggeredBy,
	})

	result := &models.MergeResult{
		SourceEntityID: sourceID,
		TargetEntityID: targetID,
	}

	source, target, err := e.checkPreconditions(ctx, sourceID, targetID)
	if err != nil {
		log.WithError(err).Warn("Merge rejected by preconditions")
		result.FailedStep = stepPreconditions
		result.Errors = append(result.Errors, err.Error())
		result.CompletedAt = time.Now().UTC()
		metrics.RecordMerge("rejected")
		return result, err
	}

	sg := &saga{}

	fail := func(step string, stepErr error) (*models.MergeResult, error) {
		log.WithError(stepErr).WithFields(map[string]any{"failed_step": step}).Error("Merge step failed, compensating")
		result.FailedStep = step
		result.Errors = append(result.Errors, stepErr.Error())
		result.CompensationErrors = sg.unwind(ctx)
		result.CompletedAt = time.Now().UTC()
		if len(result.CompensationErrors) > 0 {
			log.WithFields(map[string]any{"compensation_errors": result.CompensationErrors}).Error("Merge compensation left residue")
		}
		metrics.RecordMerge("failed")
		return result, stepErr
	}

	// Step 1: the source's canonical name becomes a synonym of the target,
	// unless an equivalent value is already attached.
	existing, err := e.stores.Synonyms.FindByValue(ctx, target.ID, source.CanonicalName)
	if err != nil {
		return fail(stepSynonym, err)
	}
	if existing == nil {
		syn := &models.Synonym{
			Value:           source.CanonicalName,
			NormalizedValue: source.NormalizedName,
			Source:          models.SynonymSourceSystem,
			Confidence:      match.Confidence,
			EntityID:        target.ID,
		}
		if err := e.stores.Synonyms.Create(ctx, syn); err != nil {
			return fail(stepSynonym, err)
		}
		result.SynonymID = syn.ID

		synID := syn.ID
		sg.register(stepSynonym, func(ctx context.Context) error {
			return e.stores.Synonyms.Delete(ctx, synID)
		})
	}

	// Step 2: duplicate provenance record on the target.
	dup := &models.DuplicateEntity{
		OriginalName:      source.CanonicalName,
		NormalizedName:    source.NormalizedName,
		SourceSystem:      e.sourceSystem,
		CanonicalEntityID: target.ID,
	}
	if err := e.stores.Duplicates.Create(ctx, dup); err != nil {
		return fail(stepDuplicate, err)
	}
	result.DuplicateID = dup.ID

	dupID := dup.ID
	sg.register(stepDuplicate, func(ctx context.Context) error {
		return e.stores.Duplicates.Delete(ctx, dupID)
	})

	// Step 3: redirect library-managed relationships by edge id. Edges whose
	// other endpoint is the target are skipped by the listing.
	libEdges, err := e.stores.Relationships.ListForMigration(ctx, source.ID, target.ID)
	if err != nil {
		return fail(stepLibraryEdges, err)
	}

	outgoingIDs := make([]string, 0, len(libEdges))
	incomingIDs := make([]string, 0, len(libEdges))
	for _, rel := range libEdges {
		if rel.SourceEntityID == source.ID {
			outgoingIDs = append(outgoingIDs, rel.ID)
		} else {
			incomingIDs = append(incomingIDs, rel.ID)
		}
	}

	if len(outgoingIDs) > 0 {
		if err := e.stores.Relationships.RedirectSources(ctx, outgoingIDs, source.ID, target.ID); err != nil {
			return fail(stepLibraryEdges, err)
		}
		ids := outgoingIDs
		sg.register(stepLibraryEdges, func(ctx context.Context) error {
			return e.stores.Relationships.RedirectSources(ctx, ids, target.ID, source.ID)
		})
	}
	if len(incomingIDs) > 0 {
		if err := e.stores.Relationships.RedirectTargets(ctx, incomingIDs, source.ID, target.ID); err != nil {
			return fail(stepLibraryEdges, err)
		}
		ids := incomingIDs
		sg.register(stepLibraryEdges, func(ctx context.Context) error {
			return e.stores.Relationships.RedirectTargets(ctx, ids, target.ID, source.ID)
		})
	}
	result.RelationshipsMigrated = len(libEdges)

	// Step 4: move every other edge type by snapshot. SYNONYM_OF and
	// DUPLICATE_OF follow the canonical through this step.
	foreign, err := e.stores.Relationships.SnapshotForeignEdges(ctx, source.ID, target.ID)
	if err != nil {
		return fail(stepForeignEdges, err)
	}
	if len(foreign) > 0 {
		if err := e.stores.Relationships.MoveEdges(ctx, source.ID, target.ID, foreign); err != nil {
			return fail(stepForeignEdges, err)
		}
		edges := foreign
		sg.register(stepForeignEdges, func(ctx context.Context) error {
			return e.stores.Relationships.MoveEdges(ctx, target.ID, source.ID, edges)
		})
	}
	result.ArbitraryEdgesMigrated = len(foreign)

	// Step 5: status transition plus the MERGED_INTO edge.
	mergedAt := time.Now().UTC()
	if err := e.stores.Entities.MarkMerged(ctx, source.ID, target.ID, match.Confidence, match.Reasoning, mergedAt); err != nil {
		return fail(stepTransition, err)
	}
	sg.register(stepTransition, func(ctx context.Context) error {
		return e.stores.Entities.RestoreActive(ctx, source.ID, target.ID)
	})

	// Step 6: ledger record. Once this lands the saga is committed and
	// nothing unwinds.
	record := &models.MergeRecord{
		SourceEntityID: source.ID,
		TargetEntityID: target.ID,
		SourceName:     source.CanonicalName,
		TargetName:     target.CanonicalName,
		Confidence:     match.Confidence,
		Decision:       match.Decision,
		TriggeredBy:    triggeredBy,
		Reasoning:      match.Reasoning,
		Timestamp:      mergedAt,
	}
	if err := e.stores.Ledger.Create(ctx, record); err != nil {
		return fail(stepLedger, err)
	}
	result.MergeRecordID = record.ID

	result.Success = true
	result.CompletedAt = time.Now().UTC()

	e.recordAudit(ctx, &models.AuditEntry{
		Action:   models.AuditActionEntityMerged,
		EntityID: target.ID,
		ActorID:  triggeredBy,
		Details: map[string]any{
			"sourceEntityId": source.ID,
			"sourceName":     source.CanonicalName,
			"confidence":     match.Confidence,
			"reasoning":      match.Reasoning,
			"correlationId":  match.CorrelationID,
		},
	})
	if result.SynonymID != "" {
		e.recordAudit(ctx, &models.AuditEntry{
			Action:   models.AuditActionSynonymCreated,
			EntityID: target.ID,
			ActorID:  triggeredBy,
			Details: map[string]any{
				"synonymId":     result.SynonymID,
				"value":         source.CanonicalName,
				"correlationId": match.CorrelationID,
			},
		})
	}
	e.recordAudit(ctx, &models.AuditEntry{
		Action:   models.AuditActionDuplicateCreated,
		EntityID: target.ID,
		ActorID:  triggeredBy,
		Details: map[string]any{
			"duplicateId":   result.DuplicateID,
			"originalName":  source.CanonicalName,
			"correlationId": match.CorrelationID,
		},
	})
	if migrated := result.RelationshipsMigrated + result.ArbitraryEdgesMigrated; migrated > 0 {
		e.recordAudit(ctx, &models.AuditEntry{
			Action:   models.AuditActionRelationshipsMigrated,
			EntityID: target.ID,
			ActorID:  triggeredBy,
			Details: map[string]any{
				"sourceEntityId":         source.ID,
				"libraryRelationships":   result.RelationshipsMigrated,
				"arbitraryRelationships": result.ArbitraryEdgesMigrated,
				"correlationId":          match.CorrelationID,
			},
		})
	}

	if err := e.emitter.EmitEntityMerged(ctx, record, target.Type, match.CorrelationID); err != nil {
		log.WithError(err).Warn("Failed to emit entity.merged event")
	}

	metrics.RecordMerge("success")
	log.WithFields(map[string]any{
		"relationships_migrated": result.RelationshipsMigrated,
		"arbitrary_migrated":     result.ArbitraryEdgesMigrated,
		"confidence":             match.Confidence,
	}).Info("Merged entities")

	return result, nil
}

func (e *Engine) checkPreconditions(ctx context.Context, sourceID, targetID string) (*models.Entity, *models.Entity, error) {
	if sourceID == targetID {
		return nil, nil, httperror.NewHTTPError(http.StatusConflict, "cannot merge an entity into itself")
	}

	source, err := e.stores.Entities.GetByID(ctx, sourceID)
	if err != nil {
		return nil, nil, err
	}
	target, err := e.stores.Entities.GetByID(ctx, targetID)
	if err != nil {
		return nil, nil, err
	}

	if !source.IsActive() {
		return nil, nil, httperror.NewHTTPErrorf(http.StatusConflict, "entity %s is not active", source.ID)
	}
	if !target.IsActive() {
		return nil, nil, httperror.NewHTTPErrorf(http.StatusConflict, "entity %s is not active", target.ID)
	}
	if source.Type != target.Type {
		return nil, nil, httperror.NewHTTPErrorf(http.StatusConflict, "cannot merge a %s entity into a %s entity", source.Type, target.Type)
	}

	return source, target, nil
}

// recordAudit writes an audit entry and mirrors it onto the event bus. Both
// are best-effort.
func (e *Engine) recordAudit(ctx context.Context, entry *models.AuditEntry) {
	if err := e.stores.Audit.Record(ctx, entry); err != nil {
		metrics.RecordAuditFailure()
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"action": string(entry.Action)}).Warn("Failed to record audit entry")
		return
	}
	if err := e.emitter.EmitAudit(ctx, entry); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("Failed to emit audit.recorded event")
	}
}
