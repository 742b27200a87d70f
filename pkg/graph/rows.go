package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// extractValue converts neo4j driver types to standard Go types. Nodes and
// relationships flatten to their property maps; statements that need labels
// or relationship types project them as explicit columns.
func extractValue(val any) any {
	if val == nil {
		return nil
	}

	switch v := val.(type) {
	case neo4j.Node:
		return v.Props

	case neo4j.Relationship:
		return v.Props

	case neo4j.Path:
		nodes := make([]any, len(v.Nodes))
		for i, node := range v.Nodes {
			nodes[i] = extractValue(node)
		}
		return nodes

	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = extractValue(item)
		}
		return result

	default:
		return v
	}
}

// RowString returns the named column as a string, or "" when absent or null.
func RowString(row map[string]any, key string) string {
	if s, ok := row[key].(string); ok {
		return s
	}
	return ""
}

// RowInt64 returns the named column as an int64. Bolt integers arrive as
// int64 but values written by other clients may come back as float64.
func RowInt64(row map[string]any, key string) int64 {
	switch v := row[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// RowFloat returns the named column as a float64, or 0 when absent or null.
func RowFloat(row map[string]any, key string) float64 {
	switch v := row[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// RowFloatPtr returns the named column as a *float64, or nil when absent
// or null. Used for optional score columns.
func RowFloatPtr(row map[string]any, key string) *float64 {
	if row[key] == nil {
		return nil
	}
	f := RowFloat(row, key)
	return &f
}

// RowBool returns the named column as a bool, or false when absent or null.
func RowBool(row map[string]any, key string) bool {
	if b, ok := row[key].(bool); ok {
		return b
	}
	return false
}

// RowTime interprets the named column as epoch milliseconds and returns the
// UTC time, or the zero time when absent or null.
func RowTime(row map[string]any, key string) time.Time {
	if row[key] == nil {
		return time.Time{}
	}
	return time.UnixMilli(RowInt64(row, key)).UTC()
}

// RowTimePtr is RowTime for nullable timestamp columns.
func RowTimePtr(row map[string]any, key string) *time.Time {
	if row[key] == nil {
		return nil
	}
	t := RowTime(row, key)
	return &t
}

// RowMap returns the named column as a map, or nil when absent or null.
func RowMap(row map[string]any, key string) map[string]any {
	if m, ok := row[key].(map[string]any); ok {
		return m
	}
	return nil
}

// SanitizeIdentifier strips every character outside [A-Za-z0-9_] from a
// label or relationship type. Cypher cannot parameterize identifiers, so
// anything interpolated into a statement must pass through here first.
func SanitizeIdentifier(identifier string) string {
	result := ""
	for _, c := range identifier {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			result += string(c)
		}
	}
	return result
}
