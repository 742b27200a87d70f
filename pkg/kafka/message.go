package kafka

import (
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// EntityEvent represents a lifecycle event about a canonical entity
type EntityEvent struct {
	EventType      string    `json:"event_type"` // created
	SchemaVersion  string    `json:"schema_version"`
	EntityID       string    `json:"entity_id"`
	EntityType     string    `json:"entity_type"`
	CanonicalName  string    `json:"canonical_name"`
	NormalizedName string    `json:"normalized_name"`
	Confidence     float64   `json:"confidence"`
	CorrelationID  string    `json:"correlation_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Message renders the event as a Kafka message for the topic, keyed by the
// entity id. A zero Timestamp is stamped before encoding.
func (e *EntityEvent) Message(topic string) (kafka.Message, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Topic: topic,
		Key:   []byte(e.EntityID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.EventType)},
			{Key: "entity_type", Value: []byte(e.EntityType)},
			{Key: "schema_version", Value: []byte(e.SchemaVersion)},
		},
	}, nil
}

// MergeEvent represents a completed merge between two entities
type MergeEvent struct {
	EventType      string    `json:"event_type"` // merged
	SchemaVersion  string    `json:"schema_version"`
	SourceEntityID string    `json:"source_entity_id"`
	TargetEntityID string    `json:"target_entity_id"`
	EntityType     string    `json:"entity_type"`
	Confidence     float64   `json:"confidence"`
	Decision       string    `json:"decision"`
	TriggeredBy    string    `json:"triggered_by"`
	CorrelationID  string    `json:"correlation_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Message renders the event as a Kafka message for the topic. Merges are
// keyed by the target entity so all merges into one canonical land on one
// partition.
func (e *MergeEvent) Message(topic string) (kafka.Message, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Topic: topic,
		Key:   []byte(e.TargetEntityID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.EventType)},
			{Key: "entity_type", Value: []byte(e.EntityType)},
			{Key: "schema_version", Value: []byte(e.SchemaVersion)},
		},
	}, nil
}

// AuditEvent mirrors an audit trail entry for downstream consumers
type AuditEvent struct {
	EventType     string    `json:"event_type"` // recorded
	SchemaVersion string    `json:"schema_version"`
	AuditID       string    `json:"audit_id"`
	Action        string    `json:"action"`
	EntityID      string    `json:"entity_id"`
	ActorID       string    `json:"actor_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Message renders the event as a Kafka message for the topic, keyed by the
// entity the audit entry is about.
func (e *AuditEvent) Message(topic string) (kafka.Message, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Topic: topic,
		Key:   []byte(e.EntityID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.EventType)},
			{Key: "action", Value: []byte(e.Action)},
			{Key: "schema_version", Value: []byte(e.SchemaVersion)},
		},
	}, nil
}
