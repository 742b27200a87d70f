// Package normalization turns raw entity names into their canonical matching
// form via an ordered, type-scoped rewrite rule set.
package normalization

import (
	"regexp"
	"sort"
	"strings"
)

// Normalizer produces the canonical form of a raw name for an entity type.
// Implementations must be deterministic and idempotent:
// Normalize(Normalize(x, t), t) == Normalize(x, t).
type Normalizer interface {
	Normalize(raw, entityType string) string
}

// Rule is one rewrite step. Higher Priority applies first; rules sharing a
// priority keep their definition order. An empty ApplicableTypes list means
// the rule applies to every type.
type Rule struct {
	Pattern         *regexp.Regexp
	Replacement     string
	ApplicableTypes []string
	Priority        int
}

// NewRule compiles a rule, returning an error for an invalid pattern.
func NewRule(pattern, replacement string, priority int, applicableTypes ...string) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, err
	}
	return Rule{
		Pattern:         re,
		Replacement:     replacement,
		ApplicableTypes: applicableTypes,
		Priority:        priority,
	}, nil
}

// MustRule is NewRule for statically known patterns; it panics on a bad one.
func MustRule(pattern, replacement string, priority int, applicableTypes ...string) Rule {
	r, err := NewRule(pattern, replacement, priority, applicableTypes...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rule) appliesTo(entityType string) bool {
	if len(r.ApplicableTypes) == 0 {
		return true
	}
	for _, t := range r.ApplicableTypes {
		if strings.EqualFold(t, entityType) {
			return true
		}
	}
	return false
}

// DefaultRules is the stock rule set: strip common organizational suffixes
// as whole tokens for COMPANY names, then clear leftover punctuation. Types
// without rules fall through to whitespace/case normalization only.
func DefaultRules() []Rule {
	return []Rule{
		MustRule(`(?i)\b(inc|incorporated|corp|corporation|ltd|llc|plc|sa|co)\b\.?`, " ", 100, "COMPANY"),
		MustRule(`[.,;:'&]+`, " ", 90, "COMPANY"),
	}
}

// Engine applies a rule set. The zero value is unusable; construct with New
// or Default.
type Engine struct {
	rules []Rule
}

// New builds an engine over the given rules, ordering them by descending
// priority while preserving definition order within a priority.
func New(rules []Rule) *Engine {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return &Engine{rules: sorted}
}

// Default builds an engine with DefaultRules.
func Default() *Engine {
	return New(DefaultRules())
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize runs every applicable rule in priority order, then collapses
// whitespace and lowercases. If the rules consume the whole string the
// lowercased raw input is returned instead, so a normalized name is never
// empty for a non-empty input.
func (e *Engine) Normalize(raw, entityType string) string {
	s := raw
	for _, rule := range e.rules {
		if !rule.appliesTo(entityType) {
			continue
		}
		s = rule.Pattern.ReplaceAllString(s, rule.Replacement)
	}
	s = collapse(s)
	if s == "" {
		return collapse(raw)
	}
	return s
}

func collapse(s string) string {
	return strings.ToLower(strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " ")))
}
