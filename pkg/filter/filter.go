// Package filter implements the fuzzy inclusion/exclusion matcher applied to
// memory labels and sources. A filter expression is a comma-separated list of
// patterns; a pattern prefixed with "!" excludes instead of includes. Patterns
// match by case-insensitive substring containment, so "rust" matches
// "rust-async".
package filter

import (
	"strings"
)

// Filter is a parsed filter expression.
// The zero value accepts every candidate.
type Filter struct {
	// Inclusions are the patterns a candidate must match at least one of
	// (when any are present).
	Inclusions []string

	// Exclusions are the patterns that reject a candidate outright,
	// regardless of inclusion matches.
	Exclusions []string
}

// Parse splits a filter expression into inclusion and exclusion pattern sets.
// Tokens are comma-separated; surrounding whitespace is trimmed and empty
// tokens are ignored. Patterns are stored lowercased since all matching is
// case-insensitive.
func Parse(expr string) Filter {
	var f Filter
	for _, tok := range strings.Split(expr, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(tok, "!"); ok {
			rest = strings.TrimSpace(rest)
			if rest != "" {
				f.Exclusions = append(f.Exclusions, strings.ToLower(rest))
			}
			continue
		}
		f.Inclusions = append(f.Inclusions, strings.ToLower(tok))
	}
	return f
}

// IsEmpty reports whether the filter has no patterns at all.
func (f Filter) IsEmpty() bool {
	return len(f.Inclusions) == 0 && len(f.Exclusions) == 0
}

// contains reports whether candidate contains pattern, ignoring case.
// Patterns are pre-lowercased by Parse.
func contains(candidate, pattern string) bool {
	return strings.Contains(strings.ToLower(candidate), pattern)
}

// matchesInclusion reports whether the candidate matches at least one
// inclusion pattern, or the filter has none.
func (f Filter) matchesInclusion(candidate string) bool {
	if len(f.Inclusions) == 0 {
		return true
	}
	for _, p := range f.Inclusions {
		if contains(candidate, p) {
			return true
		}
	}
	return false
}

// matchesExclusion reports whether any exclusion pattern matches the candidate.
func (f Filter) matchesExclusion(candidate string) bool {
	for _, p := range f.Exclusions {
		if contains(candidate, p) {
			return true
		}
	}
	return false
}

// Matches decides whether a single candidate value passes the filter: it must
// match at least one inclusion pattern (or there are none) and no exclusion
// pattern. Exclusion wins when both sides could apply.
func (f Filter) Matches(candidate string) bool {
	return f.matchesInclusion(candidate) && !f.matchesExclusion(candidate)
}

// MatchesAny applies the filter to a multi-valued field such as a record's
// label set: the set passes when at least one value satisfies the inclusion
// side and no value satisfies the exclusion side.
func (f Filter) MatchesAny(values []string) bool {
	for _, v := range values {
		if f.matchesExclusion(v) {
			return false
		}
	}
	if len(f.Inclusions) == 0 {
		return true
	}
	for _, v := range values {
		if f.matchesInclusion(v) {
			return true
		}
	}
	return false
}

// MatchesOptional applies the filter to a single optional value such as a
// record's source. An absent value is accepted only when there are no
// inclusion patterns: it can never be matched by an inclusion, and exclusions
// have nothing to reject.
func (f Filter) MatchesOptional(value string, present bool) bool {
	if !present {
		return len(f.Inclusions) == 0
	}
	return f.Matches(value)
}

// MatchedBy returns the values that satisfied the inclusion side of the
// filter, in original order and spelling. Used for fuzzy variant discovery:
// reporting that pattern "mcp" matched "MCP", "mcp-ce" and "fastmcp".
// Values hit by an exclusion pattern are never reported.
func (f Filter) MatchedBy(values []string) []string {
	var matched []string
	for _, v := range values {
		if f.matchesExclusion(v) {
			continue
		}
		if len(f.Inclusions) > 0 && f.matchesInclusion(v) {
			matched = append(matched, v)
		}
	}
	return matched
}
