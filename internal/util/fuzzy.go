// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"sort"
	"strings"
)

// =============================================================================
// FUZZY MATCHING
// =============================================================================

// FuzzyMatch reports whether every rune of query appears in target in
// order, ignoring case, and scores the match (higher is better).
//
// Consecutive runes, a match at the start and matches after a separator
// (":", "/", "-", "_", ".") score extra, so "l32" prefers "llama3.2" over
// "qwen2.5:32b". Longer targets lose a little.
func FuzzyMatch(query, target string) (score int, matched bool) {
	if query == "" {
		return 0, true
	}

	q := []rune(strings.ToLower(query))
	t := []rune(strings.ToLower(target))
	if len(q) > len(t) {
		return 0, false
	}

	qi := 0
	last := -1
	for ti := 0; ti < len(t) && qi < len(q); ti++ {
		if t[ti] != q[qi] {
			continue
		}
		s := 1
		if last == ti-1 {
			s += 5
		}
		if ti == 0 {
			s += 10
		} else if isSeparator(t[ti-1]) {
			s += 7
		}
		score += s
		last = ti
		qi++
	}

	if qi != len(q) {
		return 0, false
	}
	return score - len(t)/4, true
}

func isSeparator(r rune) bool {
	switch r {
	case ':', '/', '-', '_', '.', ' ':
		return true
	}
	return false
}

// Closest returns the best fuzzy match for query among candidates. Ties keep
// candidate order.
func Closest(query string, candidates []string) (string, bool) {
	type scored struct {
		name  string
		score int
	}
	var matches []scored
	for _, c := range candidates {
		if s, ok := FuzzyMatch(query, c); ok {
			matches = append(matches, scored{c, s})
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	return matches[0].name, true
}
