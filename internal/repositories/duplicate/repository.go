// Package duplicate persists DuplicateEntity records created by merges.
package duplicate

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

// Repository handles duplicate entity persistence
type Repository struct {
	store  graph.Store
	logger ectologger.Logger
}

// NewRepository creates a new duplicate repository
func NewRepository(store graph.Store, logger ectologger.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger,
	}
}

// Create persists a duplicate record and attaches it to its canonical entity.
func (r *Repository) Create(ctx context.Context, dup *models.DuplicateEntity) error {
	ctx, span := tracing.StartSpan(ctx, "duplicate.Repository.Create")
	defer span.End()

	if dup.ID == "" {
		dup.ID = uuid.New().String()
	}
	if dup.CreatedAt.IsZero() {
		dup.CreatedAt = time.Now().UTC()
	}

	cypher := `
		MATCH (e:Entity {id: $canonicalEntityId})
		CREATE (d:DuplicateEntity {
			id: $id,
			originalName: $originalName,
			normalizedName: $normalizedName,
			sourceSystem: $sourceSystem,
			createdAt: $createdAt
		})-[:DUPLICATE_OF]->(e)
	`

	err := r.store.Execute(ctx, cypher, map[string]any{
		"canonicalEntityId": dup.CanonicalEntityID,
		"id":                dup.ID,
		"originalName":      dup.OriginalName,
		"normalizedName":    dup.NormalizedName,
		"sourceSystem":      dup.SourceSystem,
		"createdAt":         dup.CreatedAt.UnixMilli(),
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"duplicate_id": dup.ID,
			"entity_id":    dup.CanonicalEntityID,
		}).Error("Failed to create duplicate record")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create duplicate record")
	}

	return nil
}

// ListByEntity returns the duplicate records attached to a canonical entity,
// oldest first.
func (r *Repository) ListByEntity(ctx context.Context, entityID string) ([]models.DuplicateEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicate.Repository.ListByEntity")
	defer span.End()

	cypher := `
		MATCH (d:DuplicateEntity)-[:DUPLICATE_OF]->(e:Entity {id: $entityId})
		RETURN d
		ORDER BY d.createdAt ASC, d.id ASC
	`

	rows, err := r.store.Query(ctx, cypher, map[string]any{"entityId": entityID})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": entityID}).Error("Failed to list duplicate records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list duplicate records")
	}

	duplicates := make([]models.DuplicateEntity, 0, len(rows))
	for _, row := range rows {
		props := graph.RowMap(row, "d")
		duplicates = append(duplicates, models.DuplicateEntity{
			ID:                graph.RowString(props, "id"),
			OriginalName:      graph.RowString(props, "originalName"),
			NormalizedName:    graph.RowString(props, "normalizedName"),
			SourceSystem:      graph.RowString(props, "sourceSystem"),
			CanonicalEntityID: entityID,
			CreatedAt:         graph.RowTime(props, "createdAt"),
		})
	}
	return duplicates, nil
}

// Delete removes a duplicate record. Used to unwind a failed merge.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "duplicate.Repository.Delete")
	defer span.End()

	err := r.store.Execute(ctx, `MATCH (d:DuplicateEntity {id: $id}) DETACH DELETE d`, map[string]any{"id": id})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"duplicate_id": id}).Error("Failed to delete duplicate record")
		return httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to delete duplicate record %s", id))
	}

	return nil
}
