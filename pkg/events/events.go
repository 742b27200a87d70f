// Package events publishes entity lifecycle changes for downstream consumers
package events

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// EventType defines the type of event
type EventType string

const (
	// EventTypeEntityCreated is emitted when a new canonical entity is created
	EventTypeEntityCreated EventType = "entity.created"
	// EventTypeEntityMerged is emitted when a merge saga completes
	EventTypeEntityMerged EventType = "entity.merged"
	// EventTypeAuditRecorded mirrors audit trail entries onto the bus
	EventTypeAuditRecorded EventType = "audit.recorded"
)

// Emitter publishes resolution side effects. Emission is best-effort: the
// pipeline logs failures and carries on, so implementations must never block
// longer than their producer's own timeout.
type Emitter interface {
	EmitEntityCreated(ctx context.Context, entity *models.Entity, correlationID string) error
	EmitEntityMerged(ctx context.Context, record *models.MergeRecord, entityType string, correlationID string) error
	EmitAudit(ctx context.Context, entry *models.AuditEntry) error
}

// Noop discards all events. It is the default emitter when no producer is
// configured.
type Noop struct{}

// NewNoop creates an emitter that drops everything
func NewNoop() *Noop {
	return &Noop{}
}

func (*Noop) EmitEntityCreated(ctx context.Context, entity *models.Entity, correlationID string) error {
	return nil
}

func (*Noop) EmitEntityMerged(ctx context.Context, record *models.MergeRecord, entityType string, correlationID string) error {
	return nil
}

func (*Noop) EmitAudit(ctx context.Context, entry *models.AuditEntry) error {
	return nil
}

var _ Emitter = (*Noop)(nil)
