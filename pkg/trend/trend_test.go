package trend

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clock = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func testScorer() Scorer {
	return Scorer{
		WindowDays:   30,
		HalfLifeDays: 7,
		Now:          func() time.Time { return clock },
	}
}

func TestWeightHalfLife(t *testing.T) {
	s := testScorer()

	// An occurrence exactly one half-life ago weighs exactly half of one now.
	now := s.Weight(0)
	halved := s.Weight(7 * 24 * time.Hour)
	assert.InDelta(t, 1.0, now, 1e-9)
	assert.InDelta(t, now/2, halved, 1e-9)

	// Two half-lives quarter the weight.
	assert.InDelta(t, now/4, s.Weight(14*24*time.Hour), 1e-9)

	// Future timestamps clamp to full weight.
	assert.InDelta(t, 1.0, s.Weight(-time.Hour), 1e-9)
}

func TestTrendingHardCutoff(t *testing.T) {
	s := testScorer()
	events := []Event{
		{Label: "inside", At: clock.AddDate(0, 0, -29)},
		{Label: "outside", At: clock.AddDate(0, 0, -31)},
	}

	rows := s.Trending(events, 0)
	require.Len(t, rows, 1)
	assert.Equal(t, "inside", rows[0].Label)
}

func TestTrendingEmptyWindow(t *testing.T) {
	s := testScorer()

	// No occurrences at all: empty result, not an error and not score-0 rows.
	assert.Empty(t, s.Trending(nil, 10))
	assert.Empty(t, s.Trending([]Event{
		{Label: "stale", At: clock.AddDate(0, 0, -90)},
	}, 10))
}

func TestTrendingGroupingAndTopToken(t *testing.T) {
	s := testScorer()
	events := []Event{
		{Label: "MCP", At: clock},
		{Label: "MCP", At: clock.Add(-time.Hour)},
		{Label: "mcp", At: clock.Add(-2 * time.Hour)},
		{Label: "beer", At: clock},
	}

	rows := s.Trending(events, 0)
	require.Len(t, rows, 2)

	// Grouped case-insensitively under the normalized key, with the most
	// frequent original spelling reported.
	assert.Equal(t, "mcp", rows[0].Label)
	assert.Equal(t, "MCP", rows[0].TopToken)
	assert.InDelta(t, 3.0, rows[0].Score, 0.01)
}

func TestTrendingOrderingAndTies(t *testing.T) {
	s := testScorer()
	events := []Event{
		{Label: "bravo", At: clock},
		{Label: "alpha", At: clock},
		{Label: "hot", At: clock},
		{Label: "hot", At: clock},
	}

	rows := s.Trending(events, 0)
	require.Len(t, rows, 3)
	assert.Equal(t, "hot", rows[0].Label)
	// Equal scores order alphabetically by normalized key.
	assert.Equal(t, "alpha", rows[1].Label)
	assert.Equal(t, "bravo", rows[2].Label)
}

func TestTrendingLimitAfterScoring(t *testing.T) {
	s := testScorer()
	events := []Event{
		{Label: "a", At: clock},
		{Label: "b", At: clock},
		{Label: "b", At: clock},
		{Label: "c", At: clock},
	}

	rows := s.Trending(events, 1)
	require.Len(t, rows, 1)
	// The limit keeps the top-scored label, not the first-seen one.
	assert.Equal(t, "b", rows[0].Label)
}

func TestRepeatedUseCompounds(t *testing.T) {
	s := testScorer()

	// A label used daily over a week outweighs a single fresh occurrence.
	var events []Event
	for d := 0; d < 7; d++ {
		events = append(events, Event{Label: "steady", At: clock.AddDate(0, 0, -d)})
	}
	events = append(events, Event{Label: "oneoff", At: clock})

	rows := s.Trending(events, 0)
	require.Len(t, rows, 2)
	assert.Equal(t, "steady", rows[0].Label)
	assert.Greater(t, rows[0].Score, rows[1].Score)

	// Sanity: the steady score matches the closed-form geometric sum.
	r := math.Exp(-math.Ln2 / 7)
	expected := (1 - math.Pow(r, 7)) / (1 - r)
	assert.InDelta(t, expected, rows[0].Score, 1e-6)
}
