package graph

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// indexStatements covers every lookup the resolution pipeline performs.
// Candidate generation reads Entity by normalizedName, type and status,
// synonym lookup reads Synonym by normalizedValue, and the provenance
// queries page audit entries and decision records.
var indexStatements = []string{
	"CREATE INDEX entity_id_index IF NOT EXISTS FOR (e:Entity) ON (e.id)",
	"CREATE INDEX entity_normalized_name_index IF NOT EXISTS FOR (e:Entity) ON (e.normalizedName)",
	"CREATE INDEX entity_type_index IF NOT EXISTS FOR (e:Entity) ON (e.type)",
	"CREATE INDEX entity_status_index IF NOT EXISTS FOR (e:Entity) ON (e.status)",
	"CREATE INDEX synonym_id_index IF NOT EXISTS FOR (s:Synonym) ON (s.id)",
	"CREATE INDEX synonym_normalized_value_index IF NOT EXISTS FOR (s:Synonym) ON (s.normalizedValue)",
	"CREATE INDEX blocking_key_value_index IF NOT EXISTS FOR (k:BlockingKey) ON (k.value)",
	"CREATE INDEX audit_id_index IF NOT EXISTS FOR (a:AuditEntry) ON (a.id)",
	"CREATE INDEX audit_entity_id_index IF NOT EXISTS FOR (a:AuditEntry) ON (a.entityId)",
	"CREATE INDEX audit_action_index IF NOT EXISTS FOR (a:AuditEntry) ON (a.action)",
	"CREATE INDEX audit_timestamp_index IF NOT EXISTS FOR (a:AuditEntry) ON (a.timestamp)",
	"CREATE INDEX review_id_index IF NOT EXISTS FOR (r:ReviewItem) ON (r.id)",
	"CREATE INDEX review_status_index IF NOT EXISTS FOR (r:ReviewItem) ON (r.status)",
	"CREATE INDEX review_entity_type_index IF NOT EXISTS FOR (r:ReviewItem) ON (r.entityType)",
	"CREATE INDEX decision_id_index IF NOT EXISTS FOR (d:MatchDecisionRecord) ON (d.id)",
	"CREATE INDEX decision_input_temp_id_index IF NOT EXISTS FOR (d:MatchDecisionRecord) ON (d.inputEntityTempId)",
	"CREATE INDEX decision_candidate_id_index IF NOT EXISTS FOR (d:MatchDecisionRecord) ON (d.candidateEntityId)",
	"CREATE INDEX merge_record_id_index IF NOT EXISTS FOR (m:MergeRecord) ON (m.id)",
	"CREATE INDEX merge_record_timestamp_index IF NOT EXISTS FOR (m:MergeRecord) ON (m.timestamp)",
}

// CreateIndexes creates the indexes the library queries against. Each
// statement is idempotent; individual failures are logged and skipped so a
// database that predates a given index syntax still comes up.
func (c *Client) CreateIndexes(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Client.CreateIndexes")
	defer span.End()

	session := c.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, statement := range indexStatements {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, statement, nil)
			return nil, err
		})
		if err != nil {
			c.logger.WithContext(ctx).WithError(err).WithField("statement", statement).Warn("Failed to create graph index")
		}
	}

	return nil
}
