// Package graph provides the Memgraph/Neo4j persistence layer using the Bolt protocol
package graph

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
)

// Client wraps the Neo4j driver for Memgraph compatibility
type Client struct {
	driver   neo4j.DriverWithContext
	logger   ectologger.Logger
	database string
}

var _ Store = (*Client)(nil)

// Config holds graph database configuration
type Config struct {
	Host                         string
	Port                         int
	Username                     string
	Password                     string
	Database                     string
	MaxConnectionPoolSize        int
	ConnectionAcquisitionTimeout time.Duration
	StartupMaxAttempts           int
}

// NewClient creates a new graph database client. The driver is constructed
// lazily; call Connect or VerifyConnectivity before first use.
func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	uri := fmt.Sprintf("bolt://%s:%d", cfg.Host, cfg.Port)

	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(uri, auth, func(c *config.Config) {
		if cfg.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
		}
		if cfg.ConnectionAcquisitionTimeout > 0 {
			c.ConnectionAcquisitionTimeout = cfg.ConnectionAcquisitionTimeout
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver: %w", err)
	}

	return &Client{
		driver:   driver,
		logger:   logger,
		database: cfg.Database,
	}, nil
}

// Connect builds a client and waits for the database to become reachable,
// retrying with fibonacci backoff up to cfg.StartupMaxAttempts.
func Connect(ctx context.Context, cfg Config, logger ectologger.Logger) (*Client, error) {
	client, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	maxAttempts := cfg.StartupMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	a, b := 1, 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = client.driver.VerifyConnectivity(ctx)
		if lastErr == nil {
			return client, nil
		}

		if attempt >= maxAttempts {
			break
		}

		waitTime := time.Duration(a) * time.Second
		logger.WithContext(ctx).WithError(lastErr).Warnf("Graph database not reachable, retrying in %d seconds (attempt %d/%d)", a, attempt, maxAttempts)

		select {
		case <-ctx.Done():
			_ = client.Close(ctx)
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}

		a, b = b, a+b
	}

	_ = client.Close(ctx)
	return nil, fmt.Errorf("graph database unreachable after %d attempts: %w", maxAttempts, lastErr)
}

// Close closes the driver connection
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// VerifyConnectivity checks if the database is reachable
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

// IsConnected reports whether the database is currently reachable
func (c *Client) IsConnected(ctx context.Context) bool {
	return c.driver.VerifyConnectivity(ctx) == nil
}

// Session creates a new session with the given access mode
func (c *Client) Session(ctx context.Context, accessMode neo4j.AccessMode) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   accessMode,
		DatabaseName: c.database,
	})
}

// ExecuteWrite runs a write transaction
func (c *Client) ExecuteWrite(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Client.ExecuteWrite")
	defer span.End()

	session := c.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	return session.ExecuteWrite(ctx, work)
}

// ExecuteRead runs a read transaction
func (c *Client) ExecuteRead(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Client.ExecuteRead")
	defer span.End()

	session := c.Session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	return session.ExecuteRead(ctx, work)
}

// Query runs a read statement and returns its rows with driver values
// flattened into plain Go types.
func (c *Client) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Client.Query")
	defer span.End()

	result, err := c.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return collectRows(ctx, res)
	})
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("query_len", len(cypher)).Error("Failed to execute graph query")
		return nil, shapeError(err, "failed to execute graph query")
	}

	return result.([]map[string]any), nil
}

// Execute runs a write statement and discards any returned rows.
func (c *Client) Execute(ctx context.Context, cypher string, params map[string]any) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Client.Execute")
	defer span.End()

	_, err := c.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return nil, res.Err()
	})
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("query_len", len(cypher)).Error("Failed to execute graph statement")
		return shapeError(err, "failed to execute graph statement")
	}

	return nil
}

// collectRows drains a result cursor into flattened row maps.
func collectRows(ctx context.Context, result neo4j.ResultWithContext) ([]map[string]any, error) {
	rows := make([]map[string]any, 0)
	for result.Next(ctx) {
		record := result.Record()
		row := make(map[string]any, len(record.Keys))
		for _, key := range record.Keys {
			val, _ := record.Get(key)
			row[key] = extractValue(val)
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// shapeError maps driver failures onto transport-shaped errors. Connectivity
// failures, including connection pool acquisition timeouts, surface as 503 so
// callers can distinguish an exhausted or unreachable store from a bad query.
func shapeError(err error, msg string) error {
	if neo4j.IsConnectivityError(err) {
		return httperror.NewHTTPError(http.StatusServiceUnavailable, fmt.Sprintf("%s: graph database unavailable", msg))
	}
	return httperror.NewHTTPError(http.StatusInternalServerError, msg)
}
