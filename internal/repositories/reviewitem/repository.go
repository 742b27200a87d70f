// Package reviewitem persists the manual review queue.
package reviewitem

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

// Repository handles review item persistence
type Repository struct {
	store  graph.Store
	logger ectologger.Logger
}

// NewRepository creates a new review item repository
func NewRepository(store graph.Store, logger ectologger.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger,
	}
}

// Create persists a pending review item.
func (r *Repository) Create(ctx context.Context, item *models.ReviewItem) error {
	ctx, span := tracing.StartSpan(ctx, "reviewitem.Repository.Create")
	defer span.End()

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.Status == "" {
		item.Status = models.ReviewStatusPending
	}

	cypher := `
		CREATE (r:ReviewItem {
			id: $id,
			sourceEntityId: $sourceEntityId,
			candidateEntityId: $candidateEntityId,
			sourceName: $sourceName,
			candidateName: $candidateName,
			entityType: $entityType,
			similarityScore: $similarityScore,
			status: $status,
			createdAt: $createdAt,
			reviewedAt: null,
			reviewedBy: '',
			notes: ''
		})
	`

	err := r.store.Execute(ctx, cypher, map[string]any{
		"id":                item.ID,
		"sourceEntityId":    item.SourceEntityID,
		"candidateEntityId": item.CandidateEntityID,
		"sourceName":        item.SourceName,
		"candidateName":     item.CandidateName,
		"entityType":        item.EntityType,
		"similarityScore":   item.SimilarityScore,
		"status":            string(item.Status),
		"createdAt":         item.CreatedAt.UnixMilli(),
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"review_id": item.ID}).Error("Failed to create review item")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create review item")
	}

	return nil
}

// GetByID retrieves a review item by id
func (r *Repository) GetByID(ctx context.Context, id string) (*models.ReviewItem, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewitem.Repository.GetByID")
	defer span.End()

	rows, err := r.store.Query(ctx, `MATCH (r:ReviewItem {id: $id}) RETURN r`, map[string]any{"id": id})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"review_id": id}).Error("Failed to get review item")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get review item")
	}
	if len(rows) == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("review item %s not found", id))
	}

	item := fromProps(graph.RowMap(rows[0], "r"))
	return &item, nil
}

// ListPending returns pending review items oldest first.
func (r *Repository) ListPending(ctx context.Context, limit, offset int) ([]models.ReviewItem, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewitem.Repository.ListPending")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	cypher := `
		MATCH (r:ReviewItem {status: 'PENDING'})
		RETURN r
		ORDER BY r.createdAt ASC, r.id ASC
		SKIP $offset
		LIMIT $limit
	`

	rows, err := r.store.Query(ctx, cypher, map[string]any{"limit": limit, "offset": offset})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pending review items")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending review items")
	}

	items := make([]models.ReviewItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, fromProps(graph.RowMap(row, "r")))
	}
	return items, nil
}

// UpdateStatus transitions a review item out of PENDING and records who
// decided and why.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status models.ReviewStatus, reviewedBy, notes string, reviewedAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "reviewitem.Repository.UpdateStatus")
	defer span.End()

	cypher := `
		MATCH (r:ReviewItem {id: $id})
		SET r.status = $status, r.reviewedBy = $reviewedBy, r.notes = $notes, r.reviewedAt = $reviewedAt
	`

	err := r.store.Execute(ctx, cypher, map[string]any{
		"id":         id,
		"status":     string(status),
		"reviewedBy": reviewedBy,
		"notes":      notes,
		"reviewedAt": reviewedAt.UTC().UnixMilli(),
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"review_id": id,
			"status":    string(status),
		}).Error("Failed to update review item status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update review item status")
	}

	return nil
}

func fromProps(props map[string]any) models.ReviewItem {
	return models.ReviewItem{
		ID:                graph.RowString(props, "id"),
		SourceEntityID:    graph.RowString(props, "sourceEntityId"),
		CandidateEntityID: graph.RowString(props, "candidateEntityId"),
		SourceName:        graph.RowString(props, "sourceName"),
		CandidateName:     graph.RowString(props, "candidateName"),
		EntityType:        graph.RowString(props, "entityType"),
		SimilarityScore:   graph.RowFloat(props, "similarityScore"),
		Status:            models.ReviewStatus(graph.RowString(props, "status")),
		CreatedAt:         graph.RowTime(props, "createdAt"),
		ReviewedAt:        graph.RowTimePtr(props, "reviewedAt"),
		ReviewedBy:        graph.RowString(props, "reviewedBy"),
		Notes:             graph.RowString(props, "notes"),
	}
}
