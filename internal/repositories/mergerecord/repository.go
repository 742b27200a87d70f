// Package mergerecord persists the append-only merge ledger.
package mergerecord

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles merge ledger persistence
type Repository struct {
	store  graph.Store
	logger ectologger.Logger
}

// NewRepository creates a new merge record repository
func NewRepository(store graph.Store, logger ectologger.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger,
	}
}

// Create appends a ledger entry for a completed merge.
func (r *Repository) Create(ctx context.Context, record *models.MergeRecord) error {
	ctx, span := tracing.StartSpan(ctx, "mergerecord.Repository.Create")
	defer span.End()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	cypher := `
		CREATE (m:MergeRecord {
			id: $id,
			sourceEntityId: $sourceEntityId,
			targetEntityId: $targetEntityId,
			sourceName: $sourceName,
			targetName: $targetName,
			confidence: $confidence,
			decision: $decision,
			triggeredBy: $triggeredBy,
			reasoning: $reasoning,
			timestamp: $timestamp
		})
	`

	err := r.store.Execute(ctx, cypher, map[string]any{
		"id":             record.ID,
		"sourceEntityId": record.SourceEntityID,
		"targetEntityId": record.TargetEntityID,
		"sourceName":     record.SourceName,
		"targetName":     record.TargetName,
		"confidence":     record.Confidence,
		"decision":       string(record.Decision),
		"triggeredBy":    record.TriggeredBy,
		"reasoning":      record.Reasoning,
		"timestamp":      record.Timestamp.UnixMilli(),
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"merge_record_id":  record.ID,
			"source_entity_id": record.SourceEntityID,
			"target_entity_id": record.TargetEntityID,
		}).Error("Failed to create merge record")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create merge record")
	}

	return nil
}

// ListForEntity returns every ledger entry where the entity appears as
// source or target, oldest first.
func (r *Repository) ListForEntity(ctx context.Context, entityID string) ([]models.MergeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "mergerecord.Repository.ListForEntity")
	defer span.End()

	cypher := `
		MATCH (m:MergeRecord)
		WHERE m.sourceEntityId = $entityId OR m.targetEntityId = $entityId
		RETURN m
		ORDER BY m.timestamp ASC, m.id ASC
	`

	rows, err := r.store.Query(ctx, cypher, map[string]any{"entityId": entityID})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": entityID}).Error("Failed to list merge records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list merge records")
	}

	records := make([]models.MergeRecord, 0, len(rows))
	for _, row := range rows {
		props := graph.RowMap(row, "m")
		records = append(records, models.MergeRecord{
			ID:             graph.RowString(props, "id"),
			SourceEntityID: graph.RowString(props, "sourceEntityId"),
			TargetEntityID: graph.RowString(props, "targetEntityId"),
			SourceName:     graph.RowString(props, "sourceName"),
			TargetName:     graph.RowString(props, "targetName"),
			Confidence:     graph.RowFloat(props, "confidence"),
			Decision:       models.Decision(graph.RowString(props, "decision")),
			TriggeredBy:    graph.RowString(props, "triggeredBy"),
			Reasoning:      graph.RowString(props, "reasoning"),
			Timestamp:      graph.RowTime(props, "timestamp"),
		})
	}
	return records, nil
}
