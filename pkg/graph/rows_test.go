package graph

import (
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
)

func TestExtractValue(t *testing.T) {
	props := map[string]any{"id": "ent-1", "confidenceScore": 0.9}

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil stays nil", nil, nil},
		{"scalar passes through", int64(42), int64(42)},
		{"string passes through", "acme", "acme"},
		{"node flattens to props", neo4j.Node{Props: props}, props},
		{"relationship flattens to props", neo4j.Relationship{Props: props}, props},
		{
			"path flattens to node props",
			neo4j.Path{Nodes: []neo4j.Node{{Props: props}, {Props: map[string]any{"id": "ent-2"}}}},
			[]any{props, map[string]any{"id": "ent-2"}},
		},
		{
			"list entries flatten recursively",
			[]any{neo4j.Node{Props: props}, "plain"},
			[]any{props, "plain"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractValue(tt.in))
		})
	}
}

func TestRowString(t *testing.T) {
	row := map[string]any{"name": "acme", "count": int64(3), "missing": nil}

	assert.Equal(t, "acme", RowString(row, "name"))
	assert.Equal(t, "", RowString(row, "count"))
	assert.Equal(t, "", RowString(row, "missing"))
	assert.Equal(t, "", RowString(row, "absent"))
}

func TestRowInt64(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want int64
	}{
		{"int64", int64(42), 42},
		{"int", 42, 42},
		{"float64 truncates", 41.9, 41},
		{"nil", nil, 0},
		{"string", "42", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RowInt64(map[string]any{"n": tt.val}, "n"))
		})
	}

	assert.Equal(t, int64(0), RowInt64(map[string]any{}, "absent"))
}

func TestRowFloat(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want float64
	}{
		{"float64", 0.92, 0.92},
		{"int64", int64(1), 1.0},
		{"int", 1, 1.0},
		{"nil", nil, 0},
		{"string", "0.92", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RowFloat(map[string]any{"score": tt.val}, "score"))
		})
	}
}

func TestRowFloatPtr(t *testing.T) {
	row := map[string]any{"llmScore": 0.97, "unset": nil}

	got := RowFloatPtr(row, "llmScore")
	assert.NotNil(t, got)
	assert.Equal(t, 0.97, *got)

	assert.Nil(t, RowFloatPtr(row, "unset"))
	assert.Nil(t, RowFloatPtr(row, "absent"))
}

func TestRowBool(t *testing.T) {
	row := map[string]any{"applied": true, "count": int64(1)}

	assert.True(t, RowBool(row, "applied"))
	assert.False(t, RowBool(row, "count"))
	assert.False(t, RowBool(row, "absent"))
}

func TestRowTime(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	row := map[string]any{
		"createdAt": at.UnixMilli(),
		"updatedAt": float64(at.UnixMilli()),
		"deletedAt": nil,
	}

	assert.Equal(t, at, RowTime(row, "createdAt"))
	assert.Equal(t, time.UTC, RowTime(row, "createdAt").Location())
	assert.Equal(t, at, RowTime(row, "updatedAt"))
	assert.True(t, RowTime(row, "deletedAt").IsZero())
	assert.True(t, RowTime(row, "absent").IsZero())
}

func TestRowTimePtr(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	row := map[string]any{"reviewedAt": at.UnixMilli(), "unset": nil}

	got := RowTimePtr(row, "reviewedAt")
	assert.NotNil(t, got)
	assert.Equal(t, at, *got)

	assert.Nil(t, RowTimePtr(row, "unset"))
	assert.Nil(t, RowTimePtr(row, "absent"))
}

func TestRowMap(t *testing.T) {
	props := map[string]any{"id": "ent-1"}
	row := map[string]any{"e": props, "name": "acme"}

	assert.Equal(t, props, RowMap(row, "e"))
	assert.Nil(t, RowMap(row, "name"))
	assert.Nil(t, RowMap(row, "absent"))
}

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean identifier is unchanged", "WORKS_AT", "WORKS_AT"},
		{"mixed case and digits survive", "OwnedBy2", "OwnedBy2"},
		{"spaces are stripped", "WORKS AT", "WORKSAT"},
		{"injection characters are stripped", "KNOWS]->(n) DETACH DELETE (n", "KNOWSnDETACHDELETEn"},
		{"unicode is stripped", "RELACIÓN", "RELACIN"},
		{"empty in, empty out", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeIdentifier(tt.in))
		})
	}
}
