// Package audit persists the append-only provenance trail.
package audit

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles audit entry persistence
type Repository struct {
	store  graph.Store
	logger ectologger.Logger
}

// NewRepository creates a new audit repository
func NewRepository(store graph.Store, logger ectologger.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger,
	}
}

// Record appends an audit entry. Details are stored as a JSON string since
// graph properties cannot nest maps.
func (r *Repository) Record(ctx context.Context, entry *models.AuditEntry) error {
	ctx, span := tracing.StartSpan(ctx, "audit.Repository.Record")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.ActorID == "" {
		entry.ActorID = models.DefaultEvaluator
	}

	details := "{}"
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"audit_id": entry.ID}).Error("Failed to marshal audit details")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to marshal audit details")
		}
		details = string(raw)
	}

	cypher := `
		CREATE (a:AuditEntry {
			id: $id,
			action: $action,
			entityId: $entityId,
			actorId: $actorId,
			details: $details,
			timestamp: $timestamp
		})
	`

	err := r.store.Execute(ctx, cypher, map[string]any{
		"id":        entry.ID,
		"action":    string(entry.Action),
		"entityId":  entry.EntityID,
		"actorId":   entry.ActorID,
		"details":   details,
		"timestamp": entry.Timestamp.UnixMilli(),
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"audit_id": entry.ID,
			"action":   string(entry.Action),
		}).Error("Failed to record audit entry")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record audit entry")
	}

	return nil
}

// ListByEntity returns the entity's audit entries ordered oldest first,
// optionally bounded by a time window. Zero times leave that side unbounded.
func (r *Repository) ListByEntity(ctx context.Context, entityID string, from, to time.Time) ([]models.AuditEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "audit.Repository.ListByEntity")
	defer span.End()

	fromMillis := int64(0)
	if !from.IsZero() {
		fromMillis = from.UTC().UnixMilli()
	}
	toMillis := int64(math.MaxInt64)
	if !to.IsZero() {
		toMillis = to.UTC().UnixMilli()
	}

	cypher := `
		MATCH (a:AuditEntry {entityId: $entityId})
		WHERE a.timestamp >= $from AND a.timestamp <= $to
		RETURN a
		ORDER BY a.timestamp ASC, a.id ASC
	`

	rows, err := r.store.Query(ctx, cypher, map[string]any{
		"entityId": entityID,
		"from":     fromMillis,
		"to":       toMillis,
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": entityID}).Error("Failed to list audit entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list audit entries")
	}

	return entriesFromRows(rows), nil
}

// Page returns one page of the entity-agnostic audit trail in (timestamp, id)
// order. A nil cursor starts from the beginning; the returned cursor is nil
// once the trail is exhausted.
func (r *Repository) Page(ctx context.Context, cursor *models.AuditCursor, limit int) ([]models.AuditEntry, *models.AuditCursor, error) {
	ctx, span := tracing.StartSpan(ctx, "audit.Repository.Page")
	defer span.End()

	if limit <= 0 {
		return nil, nil, httperror.NewHTTPError(http.StatusBadRequest, "audit page limit must be positive")
	}

	cursorMillis := int64(-1)
	cursorID := ""
	if cursor != nil {
		cursorMillis = cursor.Timestamp.UTC().UnixMilli()
		cursorID = cursor.ID
	}

	cypher := `
		MATCH (a:AuditEntry)
		WHERE a.timestamp > $cursorTs OR (a.timestamp = $cursorTs AND a.id > $cursorId)
		RETURN a
		ORDER BY a.timestamp ASC, a.id ASC
		LIMIT $limit
	`

	rows, err := r.store.Query(ctx, cypher, map[string]any{
		"cursorTs": cursorMillis,
		"cursorId": cursorID,
		"limit":    limit,
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to page audit trail")
		return nil, nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to page audit trail")
	}

	entries := entriesFromRows(rows)

	var next *models.AuditCursor
	if len(entries) == limit {
		last := entries[len(entries)-1]
		next = &models.AuditCursor{Timestamp: last.Timestamp, ID: last.ID}
	}

	return entries, next, nil
}

func entriesFromRows(rows []map[string]any) []models.AuditEntry {
	entries := make([]models.AuditEntry, 0, len(rows))
	for _, row := range rows {
		props := graph.RowMap(row, "a")

		var details map[string]any
		if raw := graph.RowString(props, "details"); raw != "" && raw != "{}" {
			// Unreadable details are kept as raw text rather than dropped.
			if err := json.Unmarshal([]byte(raw), &details); err != nil {
				details = map[string]any{"raw": raw}
			}
		}

		entries = append(entries, models.AuditEntry{
			ID:        graph.RowString(props, "id"),
			Action:    models.AuditAction(graph.RowString(props, "action")),
			EntityID:  graph.RowString(props, "entityId"),
			ActorID:   graph.RowString(props, "actorId"),
			Details:   details,
			Timestamp: graph.RowTime(props, "timestamp"),
		})
	}
	return entries
}
