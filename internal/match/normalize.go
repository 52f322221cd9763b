// Package match scores how well a search result identifies a queried player
// and club. Scores are small ordinals (0 to 3), higher is better.
package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	nonLetter  = regexp.MustCompile(`[^a-z]`)
)

// Normalize trims, collapses whitespace, strips diacritics and case-folds s.
// Both sides of every comparison go through the same normalization.
func Normalize(s string) string {
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" {
		return ""
	}
	// Transformers are stateful, so a fresh chain is built per call.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), cases.Fold())
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// tokens splits a normalized string on spaces.
func tokens(s string) []string {
	return strings.Fields(s)
}

func tokenSet(ts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ts))
	for _, t := range ts {
		set[t] = struct{}{}
	}
	return set
}

// sharedTokens counts distinct tokens present in both lists.
func sharedTokens(a, b []string) int {
	bs := tokenSet(b)
	n := 0
	for t := range tokenSet(a) {
		if _, ok := bs[t]; ok {
			n++
		}
	}
	return n
}

// letters keeps only a-z, tolerating punctuation and encoding noise.
func letters(tok string) string {
	return nonLetter.ReplaceAllString(tok, "")
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
