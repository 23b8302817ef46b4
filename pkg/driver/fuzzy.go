package driver

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/chinchliff/oti/pkg/types"
)

// identityTolerance absorbs float rounding when comparing identities.
const identityTolerance = 1e-9

// Identity returns the fraction of characters two terms share, computed as
// one minus the edit distance over the longer length.
func Identity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// Matches reports whether an indexed token satisfies the query. Exact
// indexes compare the whole value; fulltext indexes accept a token that
// matches any query word.
func (q FuzzyQuery) Matches(kind types.IndexKind, token string) bool {
	if kind == types.ExactIndex {
		text := normalizeExact(q.Text())
		return text != "" && q.similar(text, token)
	}
	for _, w := range q.Words() {
		if q.similar(w, token) {
			return true
		}
	}
	return false
}

func (q FuzzyQuery) similar(term, token string) bool {
	return Identity(term, token)+identityTolerance >= q.MinIdentity
}

// normalizeExact folds a value to the single token stored in exact indexes.
func normalizeExact(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}
