// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package similarity scores place names against each other.
//
// Names are folded (lowercased, accents removed, trimmed) and compared with an
// indel ratio in [0,1]: (len(a)+len(b)-indel)/(len(a)+len(b)), where indel is
// the number of insertions and deletions turning a into b, so a substitution
// costs two. Two names are similar when the ratio is strictly above Threshold. The threshold is fixed: historic spellings that
// drift far from the modern name fall below it and are left for manual review.
package similarity

import (
	"github.com/agnivade/levenshtein"
	"github.com/jcodagnone/gazetteer/utils/textutils"
)

// Threshold is the minimum ratio (exclusive) for two names to be similar.
const Threshold = 0.70

// Score returns the indel similarity ratio of a and b, 1 meaning identical.
// A blank name on either side scores 0.
func Score(a, b string) float64 {
	ra := []rune(textutils.LowerASCIIFolding(a))
	rb := []rune(textutils.LowerASCIIFolding(b))

	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	total := len(ra) + len(rb)

	return float64(2*commonSubsequence(ra, rb)) / float64(total)
}

// Distance returns the Levenshtein distance between the folded names.
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(textutils.LowerASCIIFolding(a), textutils.LowerASCIIFolding(b))
}

// commonSubsequence returns the length of the longest common subsequence of
// a and b. The indel distance is len(a)+len(b) minus twice this length.
func commonSubsequence(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := range a {
		for j := range b {
			switch {
			case a[i] == b[j]:
				curr[j+1] = prev[j] + 1
			case prev[j+1] >= curr[j]:
				curr[j+1] = prev[j+1]
			default:
				curr[j+1] = curr[j]
			}
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// Similar reports whether Score(a, b) is above Threshold.
func Similar(a, b string) bool {
	return Score(a, b) > Threshold
}

// Match is the outcome of a best-match search.
type Match struct {
	Index int
	Name  string
	Score float64
}

// BestMatch returns the candidate scoring highest against name. Ties keep the
// earliest candidate. ok is false when candidates is empty or nothing scores
// above zero.
func BestMatch(name string, candidates []string) (m Match, ok bool) {
	m.Index = -1

	for i, candidate := range candidates {
		score := Score(name, candidate)
		if score > m.Score {
			m = Match{Index: i, Name: candidate, Score: score}
		}
	}

	return m, m.Index >= 0
}
