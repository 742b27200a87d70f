// Package blocking derives the candidate-index keys that keep fuzzy matching
// sub-linear: only entities sharing at least one key with the query are
// scored.
package blocking

import (
	"sort"
	"strings"
)

// Key family prefixes. Keys are stored as BlockingKey node values and must
// stay stable across releases, since they index existing graphs.
const (
	PrefixFamily = "pfx:"
	TokenFamily  = "tok:"
	BigramFamily = "bg:"
)

// Strategy produces the deterministic key set for a normalized name.
type Strategy interface {
	Keys(normalized string) []string
}

// Default is the stock strategy: a three-letter prefix key, a single
// sorted-token key, and bigram keys for the string head and for every token
// of length three or more.
type Default struct{}

// NewDefault creates the stock strategy.
func NewDefault() *Default {
	return &Default{}
}

// Keys generates the key set for a normalized string. Output is sorted and
// duplicate-free; an empty input produces no keys.
func (d *Default) Keys(normalized string) []string {
	s := strings.TrimSpace(normalized)
	if s == "" {
		return nil
	}

	set := make(map[string]struct{})

	runes := []rune(s)
	if len(runes) >= 3 {
		set[PrefixFamily+string(runes[:3])] = struct{}{}
	}

	tokens := strings.Fields(s)
	sorted := make([]string, len(tokens))
	copy(sorted, tokens)
	sort.Strings(sorted)
	set[TokenFamily+strings.Join(sorted, " ")] = struct{}{}

	if len(runes) >= 2 {
		set[BigramFamily+string(runes[:2])] = struct{}{}
	}
	for _, tok := range tokens {
		tr := []rune(tok)
		if len(tr) >= 3 {
			set[BigramFamily+string(tr[:2])] = struct{}{}
		}
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
