package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Producer is the Kafka surface the emitter writes through, satisfied by
// kafka.Producer.
type Producer interface {
	PublishEntityEvent(ctx context.Context, event *kafka.EntityEvent) error
	PublishMergeEvent(ctx context.Context, event *kafka.MergeEvent) error
	PublishAuditEvent(ctx context.Context, event *kafka.AuditEvent) error
}

// KafkaEmitter publishes events through a Kafka producer
type KafkaEmitter struct {
	producer Producer
	logger   ectologger.Logger
}

// NewKafkaEmitter creates a new Kafka-backed event emitter
func NewKafkaEmitter(producer Producer, logger ectologger.Logger) *KafkaEmitter {
	return &KafkaEmitter{
		producer: producer,
		logger:   logger,
	}
}

var _ Emitter = (*KafkaEmitter)(nil)

// EmitEntityCreated emits an entity.created event
func (e *KafkaEmitter) EmitEntityCreated(ctx context.Context, entity *models.Entity, correlationID string) error {
	ctx, span := tracing.StartSpan(ctx, "events.KafkaEmitter.EmitEntityCreated")
	defer span.End()

	event := &kafka.EntityEvent{
		EventType:      string(EventTypeEntityCreated),
		SchemaVersion:  SchemaVersion,
		EntityID:       entity.ID,
		EntityType:     entity.Type,
		CanonicalName:  entity.CanonicalName,
		NormalizedName: entity.NormalizedName,
		Confidence:     entity.ConfidenceScore,
		CorrelationID:  correlationID,
		Timestamp:      entity.CreatedAt,
	}

	if err := e.producer.PublishEntityEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit entity.created event")
		return err
	}

	return nil
}

// EmitEntityMerged emits an entity.merged event from a ledger record
func (e *KafkaEmitter) EmitEntityMerged(ctx context.Context, record *models.MergeRecord, entityType string, correlationID string) error {
	ctx, span := tracing.StartSpan(ctx, "events.KafkaEmitter.EmitEntityMerged")
	defer span.End()

	event := &kafka.MergeEvent{
		EventType:      string(EventTypeEntityMerged),
		SchemaVersion:  SchemaVersion,
		SourceEntityID: record.SourceEntityID,
		TargetEntityID: record.TargetEntityID,
		EntityType:     entityType,
		Confidence:     record.Confidence,
		Decision:       string(record.Decision),
		TriggeredBy:    record.TriggeredBy,
		CorrelationID:  correlationID,
		Timestamp:      record.Timestamp,
	}

	if err := e.producer.PublishMergeEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit entity.merged event")
		return err
	}

	return nil
}

// EmitAudit emits an audit.recorded event. The correlation id rides in the
// entry details when the pipeline recorded one.
func (e *KafkaEmitter) EmitAudit(ctx context.Context, entry *models.AuditEntry) error {
	ctx, span := tracing.StartSpan(ctx, "events.KafkaEmitter.EmitAudit")
	defer span.End()

	correlationID := ""
	if v, ok := entry.Details["correlationId"].(string); ok {
		correlationID = v
	}

	event := &kafka.AuditEvent{
		EventType:     string(EventTypeAuditRecorded),
		SchemaVersion: SchemaVersion,
		AuditID:       entry.ID,
		Action:        string(entry.Action),
		EntityID:      entry.EntityID,
		ActorID:       entry.ActorID,
		CorrelationID: correlationID,
		Timestamp:     entry.Timestamp,
	}

	if err := e.producer.PublishAuditEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit audit.recorded event")
		return err
	}

	return nil
}
