package resolution

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"golang.org/x/sync/semaphore"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Future is the pending result of one background resolution.
type Future struct {
	done   chan struct{}
	result *models.ResolutionResult
	err    error
}

// Get blocks until the resolution finishes or the context is done. The
// background task keeps running past a Get timeout; a later Get still
// returns its outcome.
func (f *Future) Get(ctx context.Context) (*models.ResolutionResult, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AsyncResolver runs resolutions on background goroutines, bounding each
// task by the options' AsyncTimeout.
type AsyncResolver struct {
	resolver *Resolver
	timeout  time.Duration

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// Async returns a goroutine-backed facade over the resolver.
func (r *Resolver) Async() *AsyncResolver {
	return &AsyncResolver{resolver: r, timeout: r.options.AsyncTimeout}
}

// ResolveAsync starts one resolution in the background and returns its
// future.
func (a *AsyncResolver) ResolveAsync(ctx context.Context, name, entityType string) (*Future, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, httperror.NewHTTPError(http.StatusConflict, "async resolver is closed")
	}
	a.wg.Add(1)
	a.mu.Unlock()

	f := &Future{done: make(chan struct{})}
	go func() {
		defer a.wg.Done()
		defer close(f.done)

		tctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		f.result, f.err = a.resolver.Resolve(tctx, name, entityType)
	}()

	return f, nil
}

// ResolveRequest is one entry of a concurrent batch.
type ResolveRequest struct {
	Name       string `json:"name"`
	EntityType string `json:"entity_type"`
}

// AsyncResult pairs one request's result with its error.
type AsyncResult struct {
	Result *models.ResolutionResult
	Err    error
}

// ResolveBatchAsync resolves the requests concurrently, at most
// maxConcurrency at a time, and returns once all have finished. Results
// preserve request order; per-item failures are carried on the items.
func (a *AsyncResolver) ResolveBatchAsync(ctx context.Context, requests []ResolveRequest, maxConcurrency int64) ([]AsyncResult, error) {
	if maxConcurrency <= 0 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "maxConcurrency must be positive")
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, httperror.NewHTTPError(http.StatusConflict, "async resolver is closed")
	}
	a.wg.Add(len(requests))
	a.mu.Unlock()

	results := make([]AsyncResult, len(requests))
	sem := semaphore.NewWeighted(maxConcurrency)
	var wg sync.WaitGroup
	for i, req := range requests {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = AsyncResult{Err: err}
			a.wg.Done()
			continue
		}
		wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer wg.Done()
			defer sem.Release(1)

			tctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			res, err := a.resolver.Resolve(tctx, req.Name, req.EntityType)
			results[i] = AsyncResult{Result: res, Err: err}
		}()
	}
	wg.Wait()

	return results, nil
}

// Close stops intake and waits for in-flight resolutions until the context
// expires. Closing twice is a no-op.
func (a *AsyncResolver) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
