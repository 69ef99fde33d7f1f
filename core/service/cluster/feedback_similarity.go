package cluster

import (
	"strings"

	"feedback_server/core/domain"
)

// DefaultMinShared is the number of distinct shared characters that makes
// two summaries the same problem.
const DefaultMinShared = 4

// Matcher picks the existing problem a new summary belongs to, or nil.
type Matcher interface {
	Resolve(summary string, candidates []*domain.Problem) *domain.Problem
}

// CharOverlapMatcher compares the sets of distinct characters of two
// case-folded summaries and returns the first candidate sharing at least
// MinShared of them.
type CharOverlapMatcher struct {
	MinShared int
}

func NewCharOverlapMatcher(minShared int) CharOverlapMatcher {
	if minShared <= 0 {
		minShared = DefaultMinShared
	}
	return CharOverlapMatcher{MinShared: minShared}
}

func (m CharOverlapMatcher) Resolve(summary string, candidates []*domain.Problem) *domain.Problem {
	if len(candidates) == 0 {
		return nil
	}

	want := runeSet(summary)
	if len(want) < m.MinShared {
		return nil
	}

	for _, p := range candidates {
		if sharedRunes(want, p.Summary) >= m.MinShared {
			return p
		}
	}
	return nil
}

func runeSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{})
	for _, r := range strings.ToLower(s) {
		set[r] = struct{}{}
	}
	return set
}

func sharedRunes(set map[rune]struct{}, other string) int {
	seen := make(map[rune]struct{})
	for _, r := range strings.ToLower(other) {
		if _, ok := set[r]; !ok {
			continue
		}
		seen[r] = struct{}{}
	}
	return len(seen)
}
