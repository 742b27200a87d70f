// Package synonym persists synonym nodes and their SYNONYM_OF edges.
package synonym

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	entityrepo "github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles synonym persistence
type Repository struct {
	store  graph.Store
	logger ectologger.Logger
}

// NewRepository creates a new synonym repository
func NewRepository(store graph.Store, logger ectologger.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger,
	}
}

// Create persists a synonym and attaches it to its owning entity.
func (r *Repository) Create(ctx context.Context, syn *models.Synonym) error {
	ctx, span := tracing.StartSpan(ctx, "synonym.Repository.Create")
	defer span.End()

	if syn.ID == "" {
		syn.ID = uuid.New().String()
	}
	if syn.CreatedAt.IsZero() {
		syn.CreatedAt = time.Now().UTC()
	}
	if syn.LastConfirmedAt.IsZero() {
		syn.LastConfirmedAt = syn.CreatedAt
	}
	if syn.SupportCount <= 0 {
		syn.SupportCount = 1
	}

	cypher := `
		MATCH (e:Entity {id: $entityId})
		CREATE (s:Synonym {
			id: $id,
			value: $value,
			normalizedValue: $normalizedValue,
			source: $source,
			confidence: $confidence,
			supportCount: $supportCount,
			createdAt: $createdAt,
			lastConfirmedAt: $lastConfirmedAt
		})-[:SYNONYM_OF]->(e)
	`

	err := r.store.Execute(ctx, cypher, map[string]any{
		"entityId":        syn.EntityID,
		"id":              syn.ID,
		"value":           syn.Value,
		"normalizedValue": syn.NormalizedValue,
		"source":          string(syn.Source),
		"confidence":      syn.Confidence,
		"supportCount":    syn.SupportCount,
		"createdAt":       syn.CreatedAt.UnixMilli(),
		"lastConfirmedAt": syn.LastConfirmedAt.UnixMilli(),
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"synonym_id": syn.ID,
			"entity_id":  syn.EntityID,
		}).Error("Failed to create synonym")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create synonym")
	}

	return nil
}

// FindByNormalizedValue returns the synonym matching the normalized value
// together with the ACTIVE entity that owns it, or nils when no such synonym
// exists. Synonyms whose owner has been merged away do not match here; the
// canonical entity carries the migrated synonym after a merge.
func (r *Repository) FindByNormalizedValue(ctx context.Context, normalizedValue, entityType string) (*models.Synonym, *models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "synonym.Repository.FindByNormalizedValue")
	defer span.End()

	cypher := `
		MATCH (s:Synonym {normalizedValue: $normalizedValue})-[:SYNONYM_OF]->(e:Entity {type: $type, status: 'ACTIVE'})
		RETURN s, e
		ORDER BY s.createdAt ASC, s.id ASC
		LIMIT 1
	`

	rows, err := r.store.Query(ctx, cypher, map[string]any{
		"normalizedValue": normalizedValue,
		"type":            entityType,
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"normalized_value": normalizedValue}).Error("Failed to find synonym by normalized value")
		return nil, nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find synonym by normalized value")
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	syn := FromProps(graph.RowMap(rows[0], "s"))
	entity := entityrepo.FromProps(graph.RowMap(rows[0], "e"))
	syn.EntityID = entity.ID
	return &syn, &entity, nil
}

// FindByValue returns the entity's synonym whose value matches
// case-insensitively, or nil when the entity has no such synonym.
func (r *Repository) FindByValue(ctx context.Context, entityID, value string) (*models.Synonym, error) {
	ctx, span := tracing.StartSpan(ctx, "synonym.Repository.FindByValue")
	defer span.End()

	cypher := `
		MATCH (s:Synonym)-[:SYNONYM_OF]->(e:Entity {id: $entityId})
		WHERE toLower(s.value) = toLower($value)
		RETURN s
		LIMIT 1
	`

	rows, err := r.store.Query(ctx, cypher, map[string]any{
		"entityId": entityID,
		"value":    value,
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": entityID}).Error("Failed to find synonym by value")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find synonym by value")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	syn := FromProps(graph.RowMap(rows[0], "s"))
	syn.EntityID = entityID
	return &syn, nil
}

// ListByEntity returns every synonym attached to the entity, oldest first.
func (r *Repository) ListByEntity(ctx context.Context, entityID string) ([]models.Synonym, error) {
	ctx, span := tracing.StartSpan(ctx, "synonym.Repository.ListByEntity")
	defer span.End()

	cypher := `
		MATCH (s:Synonym)-[:SYNONYM_OF]->(e:Entity {id: $entityId})
		RETURN s
		ORDER BY s.createdAt ASC, s.id ASC
	`

	rows, err := r.store.Query(ctx, cypher, map[string]any{"entityId": entityID})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": entityID}).Error("Failed to list synonyms")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list synonyms")
	}

	synonyms := make([]models.Synonym, 0, len(rows))
	for _, row := range rows {
		syn := FromProps(graph.RowMap(row, "s"))
		syn.EntityID = entityID
		synonyms = append(synonyms, syn)
	}
	return synonyms, nil
}

// Reinforce increments the synonym's support count and moves its
// lastConfirmedAt forward.
func (r *Repository) Reinforce(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "synonym.Repository.Reinforce")
	defer span.End()

	cypher := `
		MATCH (s:Synonym {id: $id})
		SET s.supportCount = s.supportCount + 1, s.lastConfirmedAt = $now
	`

	err := r.store.Execute(ctx, cypher, map[string]any{
		"id":  id,
		"now": time.Now().UTC().UnixMilli(),
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"synonym_id": id}).Error("Failed to reinforce synonym")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reinforce synonym")
	}

	return nil
}

// Delete removes a synonym and its edges.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "synonym.Repository.Delete")
	defer span.End()

	err := r.store.Execute(ctx, `MATCH (s:Synonym {id: $id}) DETACH DELETE s`, map[string]any{"id": id})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"synonym_id": id}).Error("Failed to delete synonym")
		return httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to delete synonym %s", id))
	}

	return nil
}

// FromProps maps a flattened synonym node onto the model. EntityID is not a
// node property; callers fill it from the matched owner.
func FromProps(props map[string]any) models.Synonym {
	return models.Synonym{
		ID:              graph.RowString(props, "id"),
		Value:           graph.RowString(props, "value"),
		NormalizedValue: graph.RowString(props, "normalizedValue"),
		Source:          models.SynonymSource(graph.RowString(props, "source")),
		Confidence:      graph.RowFloat(props, "confidence"),
		SupportCount:    graph.RowInt64(props, "supportCount"),
		CreatedAt:       graph.RowTime(props, "createdAt"),
		LastConfirmedAt: graph.RowTime(props, "lastConfirmedAt"),
	}
}
