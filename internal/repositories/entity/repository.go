// Package entity persists canonical entity nodes and their lifecycle edges.
package entity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles canonical entity persistence
type Repository struct {
	store  graph.Store
	logger ectologger.Logger
}

// NewRepository creates a new entity repository
func NewRepository(store graph.Store, logger ectologger.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger,
	}
}

// Create persists a new canonical entity node. Missing fields are filled in:
// id, timestamps, and an ACTIVE status.
func (r *Repository) Create(ctx context.Context, entity *models.Entity) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Create")
	defer span.End()

	if entity.ID == "" {
		entity.ID = uuid.New().String()
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now().UTC()
	}
	entity.UpdatedAt = entity.CreatedAt
	if entity.Status == "" {
		entity.Status = models.EntityStatusActive
	}

	cypher := `
		CREATE (e:Entity {
			id: $id,
			canonicalName: $canonicalName,
			normalizedName: $normalizedName,
			type: $type,
			confidenceScore: $confidenceScore,
			status: $status,
			createdAt: $createdAt,
			updatedAt: $updatedAt
		})
	`

	err := r.store.Execute(ctx, cypher, map[string]any{
		"id":              entity.ID,
		"canonicalName":   entity.CanonicalName,
		"normalizedName":  entity.NormalizedName,
		"type":            entity.Type,
		"confidenceScore": entity.ConfidenceScore,
		"status":          string(entity.Status),
		"createdAt":       entity.CreatedAt.UnixMilli(),
		"updatedAt":       entity.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": entity.ID}).Error("Failed to create entity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create entity")
	}

	return nil
}

// GetByID retrieves an entity by id
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.GetByID")
	defer span.End()

	rows, err := r.store.Query(ctx, `MATCH (e:Entity {id: $id}) RETURN e`, map[string]any{"id": id})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": id}).Error("Failed to get entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entity")
	}
	if len(rows) == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("entity %s not found", id))
	}

	entity := FromProps(graph.RowMap(rows[0], "e"))
	return &entity, nil
}

// FindByNormalizedName returns the ACTIVE entities whose normalizedName
// matches exactly, oldest first so ties resolve to the first entity seen.
func (r *Repository) FindByNormalizedName(ctx context.Context, normalizedName, entityType string) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.FindByNormalizedName")
	defer span.End()

	cypher := `
		MATCH (e:Entity {normalizedName: $normalizedName, type: $type, status: 'ACTIVE'})
		RETURN e
		ORDER BY e.createdAt ASC, e.id ASC
	`

	rows, err := r.store.Query(ctx, cypher, map[string]any{
		"normalizedName": normalizedName,
		"type":           entityType,
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"normalized_name": normalizedName}).Error("Failed to find entities by normalized name")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find entities by normalized name")
	}

	return entitiesFromRows(rows), nil
}

// FindCandidatesByBlockingKeys returns the distinct ACTIVE entities of the
// given type attached to any of the blocking keys, oldest first.
func (r *Repository) FindCandidatesByBlockingKeys(ctx context.Context, keys []string, entityType string) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.FindCandidatesByBlockingKeys")
	defer span.End()

	if len(keys) == 0 {
		return []models.Entity{}, nil
	}

	cypher := `
		MATCH (e:Entity {type: $type, status: 'ACTIVE'})-[:HAS_BLOCKING_KEY]->(k:BlockingKey)
		WHERE k.value IN $keys
		WITH DISTINCT e
		RETURN e
		ORDER BY e.createdAt ASC, e.id ASC
	`

	rows, err := r.store.Query(ctx, cypher, map[string]any{
		"keys": keys,
		"type": entityType,
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"key_count": len(keys)}).Error("Failed to find candidates by blocking keys")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find candidates by blocking keys")
	}

	return entitiesFromRows(rows), nil
}

// ListActiveByType returns every ACTIVE entity of the given type, oldest
// first. This is the candidate fallback when no blocking key matches.
func (r *Repository) ListActiveByType(ctx context.Context, entityType string) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.ListActiveByType")
	defer span.End()

	cypher := `
		MATCH (e:Entity {type: $type, status: 'ACTIVE'})
		RETURN e
		ORDER BY e.createdAt ASC, e.id ASC
	`

	rows, err := r.store.Query(ctx, cypher, map[string]any{"type": entityType})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_type": entityType}).Error("Failed to list active entities")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list active entities")
	}

	return entitiesFromRows(rows), nil
}

// MarkMerged transitions the source entity to MERGED and records the
// MERGED_INTO edge to the surviving target in one statement.
func (r *Repository) MarkMerged(ctx context.Context, sourceID, targetID string, confidence float64, reason string, mergedAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.MarkMerged")
	defer span.End()

	cypher := `
		MATCH (s:Entity {id: $sourceId}), (t:Entity {id: $targetId})
		SET s.status = 'MERGED', s.updatedAt = $mergedAt
		CREATE (s)-[:MERGED_INTO {confidence: $confidence, reason: $reason, mergedAt: $mergedAt}]->(t)
	`

	err := r.store.Execute(ctx, cypher, map[string]any{
		"sourceId":   sourceID,
		"targetId":   targetID,
		"confidence": confidence,
		"reason":     reason,
		"mergedAt":   mergedAt.UTC().UnixMilli(),
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_entity_id": sourceID,
			"target_entity_id": targetID,
		}).Error("Failed to mark entity merged")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark entity merged")
	}

	return nil
}

// RestoreActive undoes MarkMerged: the MERGED_INTO edge is removed and the
// source entity becomes ACTIVE again.
func (r *Repository) RestoreActive(ctx context.Context, sourceID, targetID string) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.RestoreActive")
	defer span.End()

	cypher := `
		MATCH (s:Entity {id: $sourceId})
		OPTIONAL MATCH (s)-[m:MERGED_INTO]->(:Entity {id: $targetId})
		SET s.status = 'ACTIVE', s.updatedAt = $now
		DELETE m
	`

	err := r.store.Execute(ctx, cypher, map[string]any{
		"sourceId": sourceID,
		"targetId": targetID,
		"now":      time.Now().UTC().UnixMilli(),
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_entity_id": sourceID,
			"target_entity_id": targetID,
		}).Error("Failed to restore entity to active")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to restore entity to active")
	}

	return nil
}

// ResolveCanonicalID follows the MERGED_INTO chain from the given entity to
// the ACTIVE entity currently representing it.
func (r *Repository) ResolveCanonicalID(ctx context.Context, id string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.ResolveCanonicalID")
	defer span.End()

	cypher := `
		MATCH (e:Entity {id: $id})
		OPTIONAL MATCH (e)-[:MERGED_INTO*1..]->(t:Entity {status: 'ACTIVE'})
		RETURN e.status AS status, t.id AS canonicalId
	`

	rows, err := r.store.Query(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": id}).Error("Failed to resolve canonical id")
		return "", httperror.NewHTTPError(http.StatusInternalServerError, "failed to resolve canonical id")
	}
	if len(rows) == 0 {
		return "", httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("entity %s not found", id))
	}

	row := rows[0]
	if models.EntityStatus(graph.RowString(row, "status")) == models.EntityStatusActive {
		return id, nil
	}

	canonicalID := graph.RowString(row, "canonicalId")
	if canonicalID == "" {
		r.logger.WithContext(ctx).WithFields(map[string]any{"entity_id": id}).Error("Merged entity has no active canonical")
		return "", httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("entity %s has no active canonical", id))
	}

	return canonicalID, nil
}

// FromProps maps a flattened entity node onto the model.
func FromProps(props map[string]any) models.Entity {
	return models.Entity{
		ID:              graph.RowString(props, "id"),
		CanonicalName:   graph.RowString(props, "canonicalName"),
		NormalizedName:  graph.RowString(props, "normalizedName"),
		Type:            graph.RowString(props, "type"),
		ConfidenceScore: graph.RowFloat(props, "confidenceScore"),
		Status:          models.EntityStatus(graph.RowString(props, "status")),
		CreatedAt:       graph.RowTime(props, "createdAt"),
		UpdatedAt:       graph.RowTime(props, "updatedAt"),
	}
}

func entitiesFromRows(rows []map[string]any) []models.Entity {
	entities := make([]models.Entity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, FromProps(graph.RowMap(row, "e")))
	}
	return entities
}
