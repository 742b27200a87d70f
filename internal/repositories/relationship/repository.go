// Package relationship persists library-managed edges and performs the edge
// moves a merge requires.
package relationship

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// reservedEdgeKeys are the property names the library writes on LIBRARY_REL
// edges. User properties must not collide with them.
var reservedEdgeKeys = map[string]bool{
	"id":        true,
	"type":      true,
	"createdAt": true,
	"createdBy": true,
}

// internalEdgeTypes are the edge types the library maintains itself. Merge
// migration never moves them wholesale; each has its own lifecycle.
var internalEdgeTypes = []string{"LIBRARY_REL", "MERGED_INTO", "HAS_BLOCKING_KEY"}

// IsReservedEdgeKey reports whether a user property name collides with a
// library-managed edge property.
func IsReservedEdgeKey(key string) bool {
	return reservedEdgeKeys[key]
}

// Repository handles library relationship persistence
type Repository struct {
	store  graph.Store
	logger ectologger.Logger
}

// NewRepository creates a new relationship repository
func NewRepository(store graph.Store, logger ectologger.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger,
	}
}

// Create persists a library-managed edge between two entities. Callers are
// expected to have validated the logical type and checked the endpoints.
func (r *Repository) Create(ctx context.Context, rel *models.LibraryRelationship) error {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Create")
	defer span.End()

	if rel.ID == "" {
		rel.ID = uuid.New().String()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}

	props := rel.Properties
	if props == nil {
		props = map[string]any{}
	}

	cypher := `
		MATCH (a:Entity {id: $sourceId}), (b:Entity {id: $targetId})
		CREATE (a)-[r:LIBRARY_REL {id: $id, type: $type, createdAt: $createdAt, createdBy: $createdBy}]->(b)
		SET r += $props
	`

	err := r.store.Execute(ctx, cypher, map[string]any{
		"sourceId":  rel.SourceEntityID,
		"targetId":  rel.TargetEntityID,
		"id":        rel.ID,
		"type":      rel.Type,
		"createdAt": rel.CreatedAt.UnixMilli(),
		"createdBy": rel.CreatedBy,
		"props":     props,
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"relationship_id":  rel.ID,
			"source_entity_id": rel.SourceEntityID,
			"target_entity_id": rel.TargetEntityID,
		}).Error("Failed to create relationship")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create relationship")
	}

	return nil
}

// GetByID retrieves a library relationship by id
func (r *Repository) GetByID(ctx context.Context, id string) (*models.LibraryRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.GetByID")
	defer span.End()

	cypher := `
		MATCH (a:Entity)-[r:LIBRARY_REL {id: $id}]->(b:Entity)
		RETURN r, a.id AS sourceId, b.id AS targetId
	`

	rows, err := r.store.Query(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"relationship_id": id}).Error("Failed to get relationship")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get relationship")
	}
	if len(rows) == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("relationship %s not found", id))
	}

	rel := fromRow(rows[0])
	return &rel, nil
}

// ListForEntity returns the library relationships touching the entity in the
// requested direction, oldest first.
func (r *Repository) ListForEntity(ctx context.Context, entityID string, direction models.RelationshipDirection) ([]models.LibraryRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.ListForEntity")
	defer span.End()

	outgoing := `
		MATCH (a:Entity {id: $entityId})-[r:LIBRARY_REL]->(b:Entity)
		RETURN r, a.id AS sourceId, b.id AS targetId
	`
	incoming := `
		MATCH (a:Entity)-[r:LIBRARY_REL]->(b:Entity {id: $entityId})
		RETURN r, a.id AS sourceId, b.id AS targetId
	`

	var cypher string
	switch direction {
	case models.RelationshipDirectionOutgoing:
		cypher = outgoing
	case models.RelationshipDirectionIncoming:
		cypher = incoming
	default:
		cypher = outgoing + " UNION ALL " + incoming
	}

	rows, err := r.store.Query(ctx, cypher, map[string]any{"entityId": entityID})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": entityID}).Error("Failed to list relationships")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relationships")
	}

	rels := make([]models.LibraryRelationship, 0, len(rows))
	for _, row := range rows {
		rels = append(rels, fromRow(row))
	}
	return rels, nil
}

// ListForMigration returns every library relationship touching the entity
// except those whose other endpoint is excludeOtherID. A merge uses this to
// snapshot the edges it is about to move so it can move them back.
func (r *Repository) ListForMigration(ctx context.Context, entityID, excludeOtherID string) ([]models.LibraryRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.ListForMigration")
	defer span.End()

	cypher := `
		MATCH (a:Entity {id: $entityId})-[r:LIBRARY_REL]->(b:Entity)
		WHERE b.id <> $excludeId
		RETURN r, a.id AS sourceId, b.id AS targetId
		UNION ALL
		MATCH (a:Entity)-[r:LIBRARY_REL]->(b:Entity {id: $entityId})
		WHERE a.id <> $excludeId
		RETURN r, a.id AS sourceId, b.id AS targetId
	`

	rows, err := r.store.Query(ctx, cypher, map[string]any{
		"entityId":  entityID,
		"excludeId": excludeOtherID,
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": entityID}).Error("Failed to list relationships for migration")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relationships for migration")
	}

	rels := make([]models.LibraryRelationship, 0, len(rows))
	for _, row := range rows {
		rels = append(rels, fromRow(row))
	}
	return rels, nil
}

// RedirectSources re-anchors the listed edges so they leave `to` instead of
// `from`. Edge properties, including the edge id, survive the move.
func (r *Repository) RedirectSources(ctx context.Context, ids []string, from, to string) error {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.RedirectSources")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	cypher := `
		MATCH (f:Entity {id: $from})-[r:LIBRARY_REL]->(o)
		WHERE r.id IN $ids
		MATCH (t:Entity {id: $to})
		CREATE (t)-[nr:LIBRARY_REL]->(o)
		SET nr = properties(r)
		DELETE r
	`

	err := r.store.Execute(ctx, cypher, map[string]any{"ids": ids, "from": from, "to": to})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"edge_count": len(ids),
			"from":       from,
			"to":         to,
		}).Error("Failed to redirect relationship sources")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to redirect relationship sources")
	}

	return nil
}

// RedirectTargets re-anchors the listed edges so they arrive at `to` instead
// of `from`.
func (r *Repository) RedirectTargets(ctx context.Context, ids []string, from, to string) error {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.RedirectTargets")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	cypher := `
		MATCH (o)-[r:LIBRARY_REL]->(f:Entity {id: $from})
		WHERE r.id IN $ids
		MATCH (t:Entity {id: $to})
		CREATE (o)-[nr:LIBRARY_REL]->(t)
		SET nr = properties(r)
		DELETE r
	`

	err := r.store.Execute(ctx, cypher, map[string]any{"ids": ids, "from": from, "to": to})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"edge_count": len(ids),
			"from":       from,
			"to":         to,
		}).Error("Failed to redirect relationship targets")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to redirect relationship targets")
	}

	return nil
}

// SnapshotForeignEdges returns a descriptor for every edge touching the
// entity that the library does not manage itself, skipping edges whose other
// endpoint is excludeOtherID. Synonym and duplicate attachments show up here
// as incoming edges and migrate with everything else.
func (r *Repository) SnapshotForeignEdges(ctx context.Context, entityID, excludeOtherID string) ([]models.EdgeDescriptor, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.SnapshotForeignEdges")
	defer span.End()

	cypher := `
		MATCH (s:Entity {id: $entityId})-[r]->(o)
		WHERE NOT type(r) IN $internalTypes AND o.id <> $excludeId
		RETURN type(r) AS relType, o.id AS otherId, properties(r) AS props, 'outgoing' AS direction
		UNION ALL
		MATCH (o)-[r]->(s:Entity {id: $entityId})
		WHERE NOT type(r) IN $internalTypes AND o.id <> $excludeId
		RETURN type(r) AS relType, o.id AS otherId, properties(r) AS props, 'incoming' AS direction
	`

	rows, err := r.store.Query(ctx, cypher, map[string]any{
		"entityId":      entityID,
		"excludeId":     excludeOtherID,
		"internalTypes": internalEdgeTypes,
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": entityID}).Error("Failed to snapshot foreign edges")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to snapshot foreign edges")
	}

	edges := make([]models.EdgeDescriptor, 0, len(rows))
	for _, row := range rows {
		edges = append(edges, models.EdgeDescriptor{
			Type:          graph.RowString(row, "relType"),
			Direction:     models.RelationshipDirection(graph.RowString(row, "direction")),
			OtherEntityID: graph.RowString(row, "otherId"),
			Properties:    graph.RowMap(row, "props"),
		})
	}
	return edges, nil
}

// MoveEdges recreates the described edges on `to` and deletes them from
// `from`. Cypher cannot parameterize relationship types, so the edges are
// grouped by type and direction and each group runs as its own statement
// with a sanitized type baked in.
func (r *Repository) MoveEdges(ctx context.Context, from, to string, edges []models.EdgeDescriptor) error {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.MoveEdges")
	defer span.End()

	if len(edges) == 0 {
		return nil
	}

	type group struct {
		relType   string
		direction models.RelationshipDirection
	}
	groups := make(map[group][]string)
	for _, edge := range edges {
		g := group{relType: graph.SanitizeIdentifier(edge.Type), direction: edge.Direction}
		if g.relType == "" {
			continue
		}
		groups[g] = append(groups[g], edge.OtherEntityID)
	}

	for g, otherIDs := range groups {
		var cypher string
		if g.direction == models.RelationshipDirectionOutgoing {
			cypher = fmt.Sprintf(`
				MATCH (f:Entity {id: $from})-[r:%s]->(o)
				WHERE o.id IN $otherIds
				MATCH (t:Entity {id: $to})
				CREATE (t)-[nr:%s]->(o)
				SET nr = properties(r)
				DELETE r
			`, g.relType, g.relType)
		} else {
			cypher = fmt.Sprintf(`
				MATCH (o)-[r:%s]->(f:Entity {id: $from})
				WHERE o.id IN $otherIds
				MATCH (t:Entity {id: $to})
				CREATE (o)-[nr:%s]->(t)
				SET nr = properties(r)
				DELETE r
			`, g.relType, g.relType)
		}

		err := r.store.Execute(ctx, cypher, map[string]any{
			"from":     from,
			"to":       to,
			"otherIds": otherIDs,
		})
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"rel_type":   g.relType,
				"direction":  string(g.direction),
				"edge_count": len(otherIDs),
			}).Error("Failed to move edges")
			return httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to move %s edges", g.relType))
		}
	}

	return nil
}

func fromRow(row map[string]any) models.LibraryRelationship {
	props := graph.RowMap(row, "r")
	userProps := make(map[string]any)
	for k, v := range props {
		if !reservedEdgeKeys[k] {
			userProps[k] = v
		}
	}
	if len(userProps) == 0 {
		userProps = nil
	}

	return models.LibraryRelationship{
		ID:             graph.RowString(props, "id"),
		SourceEntityID: graph.RowString(row, "sourceId"),
		TargetEntityID: graph.RowString(row, "targetId"),
		Type:           graph.RowString(props, "type"),
		Properties:     userProps,
		CreatedAt:      graph.RowTime(props, "createdAt"),
		CreatedBy:      graph.RowString(props, "createdBy"),
	}
}
