// Package matchdecision persists per-candidate scoring provenance.
package matchdecision

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

// Repository handles match decision record persistence
type Repository struct {
	store  graph.Store
	logger ectologger.Logger
}

// NewRepository creates a new match decision repository
func NewRepository(store graph.Store, logger ectologger.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger,
	}
}

// CreateBatch persists every decision record from one resolution call in a
// single statement.
func (r *Repository) CreateBatch(ctx context.Context, records []models.MatchDecisionRecord) error {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.CreateBatch")
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := make([]map[string]any, 0, len(records))
	for i := range records {
		record := &records[i]
		if record.ID == "" {
			record.ID = uuid.New().String()
		}
		if record.EvaluatedAt.IsZero() {
			record.EvaluatedAt = now
		}
		if record.Evaluator == "" {
			record.Evaluator = models.DefaultEvaluator
		}

		row := map[string]any{
			"id":                 record.ID,
			"inputEntityTempId":  record.InputEntityTempID,
			"inputName":          record.InputName,
			"candidateEntityId":  record.CandidateEntityID,
			"candidateName":      record.CandidateName,
			"type":               record.Type,
			"exactScore":         record.Scores.Exact,
			"levenshteinScore":   record.Scores.Levenshtein,
			"jaroWinklerScore":   record.Scores.JaroWinkler,
			"jaccardScore":       record.Scores.Jaccard,
			"llmScore":           nil,
			"graphContextScore":  nil,
			"finalScore":         record.FinalScore,
			"autoMergeThreshold": record.AutoMergeThreshold,
			"synonymThreshold":   record.SynonymThreshold,
			"reviewThreshold":    record.ReviewThreshold,
			"outcome":            string(record.Outcome),
			"evaluator":          record.Evaluator,
			"evaluatedAt":        record.EvaluatedAt.UnixMilli(),
		}
		if record.Scores.LLM != nil {
			row["llmScore"] = *record.Scores.LLM
		}
		if record.Scores.GraphContext != nil {
			row["graphContextScore"] = *record.Scores.GraphContext
		}
		batch = append(batch, row)
	}

	cypher := `
		UNWIND $records AS rec
		CREATE (d:MatchDecisionRecord)
		SET d = rec
	`

	err := r.store.Execute(ctx, cypher, map[string]any{"records": batch})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"record_count": len(records)}).Error("Failed to create match decision records")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create match decision records")
	}

	return nil
}

// ListByTempID returns every decision record produced by the resolution call
// identified by its input temp id, best score first.
func (r *Repository) ListByTempID(ctx context.Context, inputEntityTempID string) ([]models.MatchDecisionRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.ListByTempID")
	defer span.End()

	cypher := `
		MATCH (d:MatchDecisionRecord {inputEntityTempId: $tempId})
		RETURN d
		ORDER BY d.finalScore DESC, d.id ASC
	`

	rows, err := r.store.Query(ctx, cypher, map[string]any{"tempId": inputEntityTempID})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"input_temp_id": inputEntityTempID}).Error("Failed to list match decision records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match decision records")
	}

	records := make([]models.MatchDecisionRecord, 0, len(rows))
	for _, row := range rows {
		props := graph.RowMap(row, "d")
		records = append(records, models.MatchDecisionRecord{
			ID:                graph.RowString(props, "id"),
			InputEntityTempID: graph.RowString(props, "inputEntityTempId"),
			InputName:         graph.RowString(props, "inputName"),
			CandidateEntityID: graph.RowString(props, "candidateEntityId"),
			CandidateName:     graph.RowString(props, "candidateName"),
			Type:              graph.RowString(props, "type"),
			Scores: models.ScoreBreakdown{
				Exact:        graph.RowFloat(props, "exactScore"),
				Levenshtein:  graph.RowFloat(props, "levenshteinScore"),
				JaroWinkler:  graph.RowFloat(props, "jaroWinklerScore"),
				Jaccard:      graph.RowFloat(props, "jaccardScore"),
				LLM:          graph.RowFloatPtr(props, "llmScore"),
				GraphContext: graph.RowFloatPtr(props, "graphContextScore"),
			},
			FinalScore:         graph.RowFloat(props, "finalScore"),
			AutoMergeThreshold: graph.RowFloat(props, "autoMergeThreshold"),
			SynonymThreshold:   graph.RowFloat(props, "synonymThreshold"),
			ReviewThreshold:    graph.RowFloat(props, "reviewThreshold"),
			Outcome:            models.MatchOutcome(graph.RowString(props, "outcome")),
			Evaluator:          graph.RowString(props, "evaluator"),
			EvaluatedAt:        graph.RowTime(props, "evaluatedAt"),
		})
	}
	return records, nil
}
