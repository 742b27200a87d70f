package resolution

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var (
	// ErrBatchClosed is returned by operations on a committed or rolled
	// back batch.
	ErrBatchClosed = errors.New("batch is closed")
	// ErrBatchSizeExceeded is returned when a resolve would put the batch
	// over MaxBatchSize distinct names.
	ErrBatchSizeExceeded = errors.New("batch size exceeded")
)

type batchState int

const (
	batchOpen batchState = iota
	batchCommitted
	batchRolledBack
)

type pendingRelationship struct {
	src        *models.EntityRef
	tgt        *models.EntityRef
	relType    string
	properties map[string]any
}

// BatchContext resolves many names against one resolver, de-duplicating
// repeats within the batch, and defers relationship creation to commit time.
// Entities are persisted as each resolve runs; only the relationships wait.
// It is safe for concurrent use.
type BatchContext struct {
	resolver *Resolver

	mu       sync.Mutex
	state    batchState
	results  map[string]*models.ResolutionResult
	inflight map[string]bool
	pending  []pendingRelationship
}

// NewBatch opens a batch over the resolver.
func (r *Resolver) NewBatch() *BatchContext {
	metrics.RecordBatchStarted()
	return &BatchContext{
		resolver: r,
		results:  make(map[string]*models.ResolutionResult),
		inflight: make(map[string]bool),
	}
}

func batchKey(name, entityType string) string {
	return strings.ToLower(name) + ":" + entityType
}

// Resolve resolves the name, reusing the batch's earlier result for a name
// already seen (case-insensitively). Only distinct new names count against
// MaxBatchSize.
func (b *BatchContext) Resolve(ctx context.Context, name, entityType string) (*models.ResolutionResult, error) {
	key := batchKey(name, entityType)

	b.mu.Lock()
	if b.state != batchOpen {
		b.mu.Unlock()
		return nil, ErrBatchClosed
	}
	if res, ok := b.results[key]; ok {
		b.mu.Unlock()
		return res, nil
	}
	reserved := false
	if !b.inflight[key] {
		if len(b.results)+len(b.inflight) >= b.resolver.options.MaxBatchSize {
			b.mu.Unlock()
			return nil, ErrBatchSizeExceeded
		}
		b.inflight[key] = true
		reserved = true
	}
	b.mu.Unlock()

	res, err := b.resolver.Resolve(ctx, name, entityType)

	b.mu.Lock()
	defer b.mu.Unlock()
	if reserved {
		delete(b.inflight, key)
	}
	if err != nil {
		// A failed resolve releases its budget reservation.
		return nil, err
	}
	if existing, ok := b.results[key]; ok {
		return existing, nil
	}
	b.results[key] = res
	return res, nil
}

// CreateRelationship enqueues a relationship between two resolved refs. The
// inputs are validated now; the edge is created at commit, after both
// endpoints' resolutions (and any merges they triggered) have settled.
func (b *BatchContext) CreateRelationship(src, tgt *models.EntityRef, relType string, properties map[string]any) error {
	if src == nil || tgt == nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "both relationship endpoints are required")
	}
	if err := validateRelationshipType(relType); err != nil {
		return err
	}
	if err := validateRelationshipProperties(properties); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != batchOpen {
		return ErrBatchClosed
	}
	b.pending = append(b.pending, pendingRelationship{src: src, tgt: tgt, relType: relType, properties: properties})
	return nil
}

// Commit closes the batch and creates the pending relationships in chunks of
// BatchCommitChunkSize. Per-item failures are collected in the result rather
// than aborting the batch; a cancelled context marks the remaining items
// failed and returns the context error.
func (b *BatchContext) Commit(ctx context.Context) (*models.BatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.BatchContext.Commit")
	defer span.End()

	b.mu.Lock()
	if b.state != batchOpen {
		b.mu.Unlock()
		return nil, ErrBatchClosed
	}
	b.state = batchCommitted
	pending := b.pending
	b.pending = nil

	result := &models.BatchResult{TotalEntitiesResolved: len(b.results)}
	for _, res := range b.results {
		if res.IsNewEntity {
			result.NewEntitiesCreated++
		}
		if res.WasMerged {
			result.EntitiesMerged++
		}
	}
	b.mu.Unlock()
	metrics.RecordBatchFinished()

	chunk := b.resolver.options.BatchCommitChunkSize
	for start := 0; start < len(pending); start += chunk {
		if err := ctx.Err(); err != nil {
			for i := start; i < len(pending); i++ {
				result.Errors = append(result.Errors, models.BatchError{Index: i, Message: err.Error()})
			}
			return result, err
		}
		for i := start; i < min(start+chunk, len(pending)); i++ {
			p := pending[i]
			if _, err := b.resolver.CreateRelationship(ctx, p.src, p.tgt, p.relType, p.properties); err != nil {
				result.Errors = append(result.Errors, models.BatchError{Index: i, Message: err.Error()})
				continue
			}
			result.RelationshipsCreated++
		}
	}

	return result, nil
}

// Rollback closes the batch and discards the pending relationships.
// Entities already persisted by resolves stay; only the deferred edges are
// dropped.
func (b *BatchContext) Rollback() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != batchOpen {
		return ErrBatchClosed
	}
	b.state = batchRolledBack
	b.pending = nil
	metrics.RecordBatchFinished()
	return nil
}

// Close commits the batch if it is still open and is a no-op otherwise, so
// it is safe to defer alongside an explicit Commit or Rollback.
func (b *BatchContext) Close(ctx context.Context) error {
	b.mu.Lock()
	open := b.state == batchOpen
	b.mu.Unlock()
	if !open {
		return nil
	}

	_, err := b.Commit(ctx)
	if errors.Is(err, ErrBatchClosed) {
		return nil
	}
	return err
}
