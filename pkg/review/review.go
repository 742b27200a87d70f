// Package review queues uncertain matches for human adjudication. Approving
// an item merges its source entity into the candidate through the merge
// engine; rejecting leaves both entities separate.
package review

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Queue is the review capability the resolution pipeline submits to. A no-op
// queue (default) and a graph-backed queue ship with the library.
type Queue interface {
	Submit(ctx context.Context, item *models.ReviewItem) error
	GetPending(ctx context.Context, limit, offset int) ([]models.ReviewItem, error)
	Approve(ctx context.Context, id, reviewedBy string) (*models.MergeResult, error)
	Reject(ctx context.Context, id, reviewedBy, notes string) error
}

// Noop drops submissions. It stands in when no reviewer integration is
// configured; REVIEW outcomes are still audited by the pipeline.
type Noop struct{}

// NewNoop creates a queue that drops everything
func NewNoop() *Noop {
	return &Noop{}
}

func (*Noop) Submit(ctx context.Context, item *models.ReviewItem) error {
	return nil
}

func (*Noop) GetPending(ctx context.Context, limit, offset int) ([]models.ReviewItem, error) {
	return nil, nil
}

func (*Noop) Approve(ctx context.Context, id, reviewedBy string) (*models.MergeResult, error) {
	return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "review item %s not found", id)
}

func (*Noop) Reject(ctx context.Context, id, reviewedBy, notes string) error {
	return httperror.NewHTTPErrorf(http.StatusNotFound, "review item %s not found", id)
}

var _ Queue = (*Noop)(nil)
