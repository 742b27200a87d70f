package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Normalize(t *testing.T) {
	engine := Default()

	tests := []struct {
		name       string
		raw        string
		entityType string
		want       string
	}{
		{"strips corp suffix", "Acme Corp", "COMPANY", "acme"},
		{"strips corporation suffix", "ACME CORPORATION", "COMPANY", "acme"},
		{"strips inc with period", "Foo Inc.", "COMPANY", "foo"},
		{"strips incorporated", "Foo Incorporated", "COMPANY", "foo"},
		{"strips llc", "Widgets LLC", "COMPANY", "widgets"},
		{"strips ltd", "Tea Traders Ltd", "COMPANY", "tea traders"},
		{"strips comma before suffix", "Acme, Inc.", "COMPANY", "acme"},
		{"keeps non-suffix tokens", "International Business Machines", "COMPANY", "international business machines"},
		{"suffix token inside name is stripped as a whole token only", "Corporate Ventures", "COMPANY", "corporate ventures"},
		{"collapses whitespace", "  Big   Blue  ", "COMPANY", "big blue"},
		{"lowercases", "BiG BLUE", "COMPANY", "big blue"},
		{"person type gets whitespace and case only", "Smith Corp", "PERSON", "smith corp"},
		{"unknown type gets whitespace and case only", "Acme Corp", "SHIP", "acme corp"},
		{"suffix-only input falls back to lowercased raw", "Corp", "COMPANY", "corp"},
		{"empty input stays empty", "", "COMPANY", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.Normalize(tt.raw, tt.entityType))
		})
	}
}

func TestEngine_NormalizeIdempotent(t *testing.T) {
	engine := Default()

	inputs := []struct {
		raw        string
		entityType string
	}{
		{"Acme Corp", "COMPANY"},
		{"ACME CORPORATION", "COMPANY"},
		{"Acme, Inc.", "COMPANY"},
		{"Corp", "COMPANY"},
		{"O'Neil & Co", "COMPANY"},
		{"  Big   Blue  ", "COMPANY"},
		{"José García", "PERSON"},
		{"Microsoft Corporation", "COMPANY"},
	}

	for _, in := range inputs {
		t.Run(in.raw, func(t *testing.T) {
			once := engine.Normalize(in.raw, in.entityType)
			twice := engine.Normalize(once, in.entityType)
			assert.Equal(t, once, twice)
		})
	}
}

func TestEngine_PriorityOrdering(t *testing.T) {
	// The high-priority rule rewrites to a token the low-priority rule then
	// consumes; reversing priorities would leave "beta" untouched.
	rules := []Rule{
		MustRule(`beta`, "gamma", 1),
		MustRule(`alpha`, "beta", 10),
	}
	engine := New(rules)

	assert.Equal(t, "gamma", engine.Normalize("alpha", "COMPANY"))
}

func TestEngine_SamePriorityKeepsDefinitionOrder(t *testing.T) {
	rules := []Rule{
		MustRule(`a+`, "b", 5),
		MustRule(`b+`, "c", 5),
	}
	engine := New(rules)

	// First rule runs first, its output feeds the second.
	assert.Equal(t, "c", engine.Normalize("aaa", "COMPANY"))
}

func TestEngine_TypeScoping(t *testing.T) {
	rules := []Rule{
		MustRule(`(?i)\bgmbh\b`, " ", 50, "COMPANY", "ORGANIZATION"),
	}
	engine := New(rules)

	assert.Equal(t, "siemens", engine.Normalize("Siemens GmbH", "COMPANY"))
	assert.Equal(t, "siemens", engine.Normalize("Siemens GmbH", "organization"))
	assert.Equal(t, "siemens gmbh", engine.Normalize("Siemens GmbH", "PERSON"))
}

func TestNewRule_InvalidPattern(t *testing.T) {
	_, err := NewRule(`(unclosed`, "", 1)
	require.Error(t, err)
}

func TestMustRule_PanicsOnInvalidPattern(t *testing.T) {
	assert.Panics(t, func() {
		MustRule(`[unclosed`, "", 1)
	})
}

func TestEngine_EmptyRuleSetIsCaseAndWhitespaceOnly(t *testing.T) {
	engine := New(nil)

	assert.Equal(t, "acme corp", engine.Normalize("  Acme   CORP ", "COMPANY"))
}
