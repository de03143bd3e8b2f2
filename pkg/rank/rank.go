// Package rank orders memory candidates by cosine similarity to a query
// vector and assigns write-time similarity bands for duplicate feedback.
package rank

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// duplicateEpsilon is the floating-point tolerance for treating a similarity
// score as an exact duplicate (cosine similarity 1.0).
const duplicateEpsilon = 1e-6

// Candidate is a stored vector under consideration for ranking.
type Candidate struct {
	ID        string
	Vector    []float32
	CreatedAt time.Time
}

// Ranked is a candidate with its normalized similarity score in [0,1].
type Ranked struct {
	ID    string
	Score float64
}

// CosineDistance computes the cosine distance between two vectors of equal
// dimensionality. A dimensionality mismatch is a configuration error, never a
// per-record condition to skip.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(b), len(a))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1, nil
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)), nil
}

// Similarity converts a cosine distance into a similarity score clamped to [0,1].
func Similarity(distance float64) float64 {
	s := 1 - distance
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Rank scores every candidate against the query vector and returns them in
// descending score order. Ties break by CreatedAt descending (most recent
// wins), then by ID ascending, so repeated runs over the same input yield
// identical output.
func Rank(query []float32, candidates []Candidate) ([]Ranked, error) {
	scored := make([]Ranked, len(candidates))
	byID := make(map[string]Candidate, len(candidates))
	for i, c := range candidates {
		dist, err := CosineDistance(query, c.Vector)
		if err != nil {
			return nil, err
		}
		scored[i] = Ranked{ID: c.ID, Score: Similarity(dist)}
		byID[c.ID] = c
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		ci, cj := byID[scored[i].ID], byID[scored[j].ID]
		if !ci.CreatedAt.Equal(cj.CreatedAt) {
			return ci.CreatedAt.After(cj.CreatedAt)
		}
		return scored[i].ID < scored[j].ID
	})
	return scored, nil
}

// ByRecency orders candidates by CreatedAt descending with ID ascending as
// tiebreak. Used when no query vector is present and ranking is skipped.
func ByRecency(candidates []Candidate) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Band is the qualitative duplicate-feedback label assigned to a write-time
// similarity score. The banding is advisory and never blocks a write.
type Band string

// Similarity bands, from weakest to strongest overlap.
const (
	BandLoose       Band = "loose"        // [0.70, 0.81)
	BandRelated     Band = "related"      // [0.81, 0.91)
	BandVerySimilar Band = "very-similar" // [0.91, 1.00)
	BandDuplicate   Band = "duplicate"    // == 1.00 within epsilon
)

// BandFor maps a similarity score to its feedback band. The second return is
// false when the score falls below the loose threshold and no feedback applies.
func BandFor(similarity float64) (Band, bool) {
	switch {
	case similarity >= 1-duplicateEpsilon:
		return BandDuplicate, true
	case similarity >= 0.91:
		return BandVerySimilar, true
	case similarity >= 0.81:
		return BandRelated, true
	case similarity >= 0.70:
		return BandLoose, true
	default:
		return "", false
	}
}
