// Package similarity provides the string comparison algorithms behind fuzzy
// matching and the weighted composite that drives resolution decisions.
package similarity

import (
	"fmt"
	"strings"
)

const weightSumEpsilon = 1e-9

// Weights blends the component algorithms into one composite score. The
// components must be non-negative and sum to 1.0.
type Weights struct {
	Levenshtein float64 `json:"levenshtein"`
	JaroWinkler float64 `json:"jaro_winkler"`
	Jaccard     float64 `json:"jaccard"`
}

// DefaultWeights returns the stock blend.
func DefaultWeights() Weights {
	return Weights{Levenshtein: 0.4, JaroWinkler: 0.35, Jaccard: 0.25}
}

// Validate checks non-negativity and that the weights sum to 1.0 within a
// small epsilon.
func (w Weights) Validate() error {
	if w.Levenshtein < 0 || w.JaroWinkler < 0 || w.Jaccard < 0 {
		return fmt.Errorf("similarity weights must be non-negative, got %+v", w)
	}
	sum := w.Levenshtein + w.JaroWinkler + w.Jaccard
	if sum < 1.0-weightSumEpsilon || sum > 1.0+weightSumEpsilon {
		return fmt.Errorf("similarity weights must sum to 1.0, got %.6f", sum)
	}
	return nil
}

// Breakdown is the per-algorithm view of one comparison.
type Breakdown struct {
	Exact       float64
	Levenshtein float64
	JaroWinkler float64
	Jaccard     float64
	Composite   float64
}

// Scorer computes string similarity over already-normalized inputs.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights, validating them.
func NewScorer(weights Weights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights}, nil
}

// Weights returns the blend the scorer was built with.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score computes every component and the weighted composite for a pair.
func (s *Scorer) Score(a, b string) Breakdown {
	bd := Breakdown{
		Exact:       s.ExactMatch(a, b),
		Levenshtein: s.Levenshtein(a, b),
		JaroWinkler: s.JaroWinkler(a, b),
		Jaccard:     s.Jaccard(a, b),
	}
	bd.Composite = s.weights.Levenshtein*bd.Levenshtein +
		s.weights.JaroWinkler*bd.JaroWinkler +
		s.weights.Jaccard*bd.Jaccard
	return bd
}

// ExactMatch returns 1.0 for an exact match, 0.0 otherwise.
func (s *Scorer) ExactMatch(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return 0.0
}

// Levenshtein returns edit-distance similarity:
// 1 - distance/max(len(a), len(b)). Empty vs non-empty is 0.0.
func (s *Scorer) Levenshtein(a, b string) float64 {
	distance := s.LevenshteinDistance(a, b)
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// LevenshteinDistance calculates the edit distance between two strings using
// two-row Wagner-Fischer.
func (s *Scorer) LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}

// JaroWinkler calculates the Jaro-Winkler similarity between two strings,
// boosting Jaro by up to four characters of common prefix.
func (s *Scorer) JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}

	jaro := s.Jaro(a, b)

	prefixLen := 0
	maxPrefix := 4
	for i := 0; i < len(a) && i < len(b) && i < maxPrefix; i++ {
		if a[i] == b[i] {
			prefixLen++
		} else {
			break
		}
	}

	scalingFactor := 0.1
	return jaro + float64(prefixLen)*scalingFactor*(1.0-jaro)
}

// Jaro calculates the Jaro similarity between two strings.
func (s *Scorer) Jaro(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	matchDist := max(len(a), len(b))/2 - 1
	if matchDist < 0 {
		matchDist = 0
	}

	aMatches := make([]bool, len(a))
	bMatches := make([]bool, len(b))

	matches := 0
	transpositions := 0

	for i := 0; i < len(a); i++ {
		start := max(0, i-matchDist)
		end := min(len(b), i+matchDist+1)

		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	k := 0
	for i := 0; i < len(a); i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2

	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3
}

// Jaccard returns token-set overlap: |A∩B| / |A∪B| over whitespace-split
// tokens. Two empty token sets score 0.0.
func (s *Scorer) Jaccard(a, b string) float64 {
	aTokens := strings.Fields(a)
	bTokens := strings.Fields(b)
	if len(aTokens) == 0 && len(bTokens) == 0 {
		return 0.0
	}

	aSet := make(map[string]struct{}, len(aTokens))
	for _, tok := range aTokens {
		aSet[tok] = struct{}{}
	}
	bSet := make(map[string]struct{}, len(bTokens))
	for _, tok := range bTokens {
		bSet[tok] = struct{}{}
	}

	intersection := 0
	for tok := range aSet {
		if _, ok := bSet[tok]; ok {
			intersection++
		}
	}
	union := len(aSet) + len(bSet) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}
