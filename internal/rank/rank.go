// Package rank orders sections by cosine similarity to a query vector.
package rank

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/dgallion1/docrank/internal/document"
)

// ErrInvalidK is returned for a non-positive result count.
var ErrInvalidK = errors.New("top-k must be positive")

// Candidate is a section and its embedding.
type Candidate struct {
	Section document.Section
	Vector  []float64
}

// Cosine returns the cosine similarity of a and b clamped to [-1, 1].
// ok is false when the vectors differ in length, either has zero magnitude,
// or the magnitudes overflow.
func Cosine(a, b []float64) (sim float64, ok bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	sim = dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, sim)), true
}

// Score is Cosine with undefined similarity mapped to negative infinity.
func Score(query, v []float64) float64 {
	if sim, ok := Cosine(query, v); ok {
		return sim
	}
	return math.Inf(-1)
}

// Rank scores every candidate against queryVec and returns the best k,
// highest first. Equal scores keep document order, then section order.
// Fewer than k candidates returns them all.
func Rank(queryVec []float64, candidates []Candidate, k int) ([]document.RankedResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}

	results := make([]document.RankedResult, len(candidates))
	for i, c := range candidates {
		results[i] = document.RankedResult{Section: c.Section, Score: Score(queryVec, c.Vector)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Section.DocIndex != b.Section.DocIndex {
			return a.Section.DocIndex < b.Section.DocIndex
		}
		return a.Section.Position < b.Section.Position
	})

	if len(results) > k {
		results = results[:k]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}
