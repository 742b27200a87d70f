package graph

import "context"

// Store is the persistence capability the resolution library is written
// against. Result rows are flattened: node, relationship and path values
// are expanded into plain Go maps so callers never handle driver types.
type Store interface {
	// Query runs a read statement and returns its rows.
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)

	// Execute runs a write statement and discards any returned rows.
	Execute(ctx context.Context, cypher string, params map[string]any) error

	// CreateIndexes creates every index the library queries against.
	// Safe to call repeatedly.
	CreateIndexes(ctx context.Context) error

	// IsConnected reports whether the database is currently reachable.
	IsConnected(ctx context.Context) bool

	// Close releases all connections held by the store.
	Close(ctx context.Context) error
}
