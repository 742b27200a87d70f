package review

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ItemStore is the review item persistence the queue needs.
type ItemStore interface {
	Create(ctx context.Context, item *models.ReviewItem) error
	GetByID(ctx context.Context, id string) (*models.ReviewItem, error)
	ListPending(ctx context.Context, limit, offset int) ([]models.ReviewItem, error)
	UpdateStatus(ctx context.Context, id string, status models.ReviewStatus, reviewedBy, notes string, reviewedAt time.Time) error
}

// Merger performs the merge behind an approval. *merging.Engine satisfies it.
type Merger interface {
	Merge(ctx context.Context, sourceID, targetID string, match models.MatchSummary, triggeredBy string, strategy models.MergeStrategy) (*models.MergeResult, error)
}

// GraphQueue persists review items as graph nodes and merges on approval
type GraphQueue struct {
	items  ItemStore
	merger Merger
	logger ectologger.Logger
}

// NewGraphQueue creates a new graph-backed review queue
func NewGraphQueue(items ItemStore, merger Merger, logger ectologger.Logger) *GraphQueue {
	return &GraphQueue{
		items:  items,
		merger: merger,
		logger: logger,
	}
}

var _ Queue = (*GraphQueue)(nil)

// Submit queues a pending review item
func (q *GraphQueue) Submit(ctx context.Context, item *models.ReviewItem) error {
	ctx, span := tracing.StartSpan(ctx, "review.GraphQueue.Submit")
	defer span.End()

	if err := q.items.Create(ctx, item); err != nil {
		return err
	}

	q.logger.WithContext(ctx).WithFields(map[string]any{
		"review_id":           item.ID,
		"source_entity_id":    item.SourceEntityID,
		"candidate_entity_id": item.CandidateEntityID,
		"similarity_score":    item.SimilarityScore,
	}).Info("Queued match for review")

	return nil
}

// GetPending returns pending items oldest first
func (q *GraphQueue) GetPending(ctx context.Context, limit, offset int) ([]models.ReviewItem, error) {
	ctx, span := tracing.StartSpan(ctx, "review.GraphQueue.GetPending")
	defer span.End()

	return q.items.ListPending(ctx, limit, offset)
}

// Approve accepts the match and merges the source entity into the candidate.
// The item must still be pending. If the merge fails the item stays PENDING
// so the reviewer can retry; if the merge lands but the status update fails,
// the returned result still reports Success so callers can tell the graph
// mutation happened.
func (q *GraphQueue) Approve(ctx context.Context, id, reviewedBy string) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "review.GraphQueue.Approve")
	defer span.End()

	item, err := q.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status != models.ReviewStatusPending {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "review item %s is already %s", id, item.Status)
	}

	match := models.MatchSummary{
		Confidence: item.SimilarityScore,
		Decision:   models.DecisionReview,
		Reasoning:  "approved from review queue",
	}

	result, err := q.merger.Merge(ctx, item.SourceEntityID, item.CandidateEntityID, match, reviewedBy, models.MergeStrategyKeepTarget)
	if err != nil {
		q.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"review_id": id}).Error("Failed to merge approved review item")
		return result, err
	}

	if err := q.items.UpdateStatus(ctx, id, models.ReviewStatusApproved, reviewedBy, "", time.Now().UTC()); err != nil {
		q.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"review_id": id}).Error("Merge landed but review item status update failed")
		return result, err
	}

	q.logger.WithContext(ctx).WithFields(map[string]any{
		"review_id":   id,
		"reviewed_by": reviewedBy,
	}).Info("Approved review item")

	return result, nil
}

// Reject declines the match and records who said no
func (q *GraphQueue) Reject(ctx context.Context, id, reviewedBy, notes string) error {
	ctx, span := tracing.StartSpan(ctx, "review.GraphQueue.Reject")
	defer span.End()

	item, err := q.items.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if item.Status != models.ReviewStatusPending {
		return httperror.NewHTTPErrorf(http.StatusConflict, "review item %s is already %s", id, item.Status)
	}

	if err := q.items.UpdateStatus(ctx, id, models.ReviewStatusRejected, reviewedBy, notes, time.Now().UTC()); err != nil {
		return err
	}

	q.logger.WithContext(ctx).WithFields(map[string]any{
		"review_id":   id,
		"reviewed_by": reviewedBy,
	}).Info("Rejected review item")

	return nil
}
