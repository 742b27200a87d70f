package blocking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault_Keys(t *testing.T) {
	d := NewDefault()

	tests := []struct {
		name       string
		normalized string
		want       []string
	}{
		{"empty input", "", nil},
		{"whitespace only", "   ", nil},
		{"single short token", "ab", []string{"bg:ab", "tok:ab"}},
		{"single token", "acme", []string{"bg:ac", "pfx:acm", "tok:acme"}},
		{
			"multi token",
			"acme corp",
			[]string{"bg:ac", "bg:co", "pfx:acm", "tok:acme corp"},
		},
		{
			"unicode runes not bytes",
			"münchen",
			[]string{"bg:mü", "pfx:mün", "tok:münchen"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Keys(tt.normalized))
		})
	}
}

func TestDefault_Keys_TokenOrderInsensitive(t *testing.T) {
	d := NewDefault()

	a := d.Keys("acme global corp")
	b := d.Keys("corp global acme")

	// The sorted-token key is the stable anchor across word order.
	assert.Contains(t, a, "tok:acme corp global")
	assert.Contains(t, b, "tok:acme corp global")

	overlap := 0
	seen := make(map[string]bool, len(a))
	for _, k := range a {
		seen[k] = true
	}
	for _, k := range b {
		if seen[k] {
			overlap++
		}
	}
	assert.GreaterOrEqual(t, overlap, 1, "reordered tokens must still share a key")
}

func TestDefault_Keys_Deterministic(t *testing.T) {
	d := NewDefault()

	first := d.Keys("international business machines")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.Keys("international business machines"))
	}
	assert.IsIncreasing(t, first)
}
