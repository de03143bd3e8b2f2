// Package trend scores label activity with a synaptic decay model: each
// occurrence of a label inside the window contributes a weight that halves
// every HalfLifeDays, so repeated or recent use keeps a label hot while
// one-off uses fade quickly.
package trend

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Defaults. The window and the half-life are independent tunables: the window
// is a hard cutoff on which occurrences count at all, the half-life controls
// how fast a counted occurrence fades. With a 7-day half-life a single use is
// down to ~5% weight after 30 days, well inside the default window.
const (
	DefaultWindowDays   = 30
	DefaultHalfLifeDays = 7
)

// Event is a single occurrence of a label at a point in time.
type Event struct {
	Label string
	At    time.Time
}

// Row is one trending result: the normalized label key, its aggregate decayed
// score, and the most frequent original-case spelling among the grouped
// occurrences. Callers use TopToken to drive a follow-up fuzzy-filtered
// retrieval.
type Row struct {
	Label    string
	Score    float64
	TopToken string
}

// Scorer computes trending labels over a bounded window.
type Scorer struct {
	// WindowDays is the hard cutoff: occurrences older than this are
	// excluded entirely, not just down-weighted.
	WindowDays int

	// HalfLifeDays is the decay constant: an occurrence one half-life old
	// weighs exactly half of one happening now.
	HalfLifeDays float64

	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// NewScorer returns a Scorer with the default window and half-life.
func NewScorer() Scorer {
	return Scorer{WindowDays: DefaultWindowDays, HalfLifeDays: DefaultHalfLifeDays}
}

func (s Scorer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Weight returns the decayed contribution of a single occurrence with the
// given age. Future timestamps clamp to weight 1.
func (s Scorer) Weight(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	halfLife := s.HalfLifeDays
	if halfLife <= 0 {
		halfLife = DefaultHalfLifeDays
	}
	ageDays := age.Hours() / 24
	return math.Exp(-math.Ln2 * ageDays / halfLife)
}

// Trending aggregates the decayed weights of all in-window occurrences,
// grouped case-insensitively, and returns rows ordered by score descending
// with alphabetical tiebreak on the normalized key. limit truncates after
// full scoring; limit <= 0 means no truncation. An empty window yields an
// empty result, never an error.
func (s Scorer) Trending(events []Event, limit int) []Row {
	windowDays := s.WindowDays
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	now := s.now()
	cutoff := now.AddDate(0, 0, -windowDays)

	scores := make(map[string]float64)
	spellings := make(map[string]map[string]int)
	for _, ev := range events {
		if ev.Label == "" || ev.At.Before(cutoff) {
			continue
		}
		key := normalize(ev.Label)
		scores[key] += s.Weight(now.Sub(ev.At))
		if spellings[key] == nil {
			spellings[key] = make(map[string]int)
		}
		spellings[key][ev.Label]++
	}

	rows := make([]Row, 0, len(scores))
	for key, score := range scores {
		rows = append(rows, Row{
			Label:    key,
			Score:    score,
			TopToken: topSpelling(spellings[key]),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Label < rows[j].Label
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// normalize lowercases a label for case-insensitive grouping.
func normalize(label string) string {
	return strings.ToLower(label)
}

// topSpelling picks the most frequent original-case spelling, breaking
// frequency ties lexicographically for determinism.
func topSpelling(counts map[string]int) string {
	var best string
	bestCount := -1
	for spelling, count := range counts {
		if count > bestCount || (count == bestCount && spelling < best) {
			best = spelling
			bestCount = count
		}
	}
	return best
}
