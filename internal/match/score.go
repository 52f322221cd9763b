package match

import "strings"

// Score values shared by ScoreName and ScoreAffiliation.
const (
	NoMatch      = 0
	TokenMatch   = 1
	PartialMatch = 2
	ExactMatch   = 3
)

// ScoreName compares a queried player name with a displayed search result
// name. The substring rule is checked in both directions, but the token rule
// is sized by the query, so the score is not symmetric in general.
func ScoreName(query, candidate string) int {
	q := Normalize(query)
	c := Normalize(candidate)
	if q == "" || c == "" {
		return NoMatch
	}
	if q == c {
		return ExactMatch
	}
	if strings.Contains(c, q) || strings.Contains(q, c) {
		return PartialMatch
	}

	qt, ct := tokens(q), tokens(c)
	need := min(len(tokenSet(qt)), 2)
	if need < 1 {
		need = 1
	}
	if sharedTokens(qt, ct) >= need {
		return TokenMatch
	}
	if sameSurnameGivenName(qt, ct) {
		return TokenMatch
	}
	return NoMatch
}

// sameSurnameGivenName matches "Emi Martinez" against "Emiliano Martínez"
// and "L. Messi" against "Lionel Messi": close last names plus a first name
// that is a prefix (or initial) of the other.
func sameSurnameGivenName(qt, ct []string) bool {
	if len(qt) < 2 || len(ct) < 2 {
		return false
	}
	qFirst, cFirst := letters(qt[0]), letters(ct[0])
	qLast, cLast := letters(qt[len(qt)-1]), letters(ct[len(ct)-1])
	if qFirst == "" || cFirst == "" || qLast == "" || cLast == "" {
		return false
	}
	return closeSurname(qLast, cLast) && givenNamePrefix(qt[0], qFirst, cFirst)
}

func closeSurname(a, b string) bool {
	if a == b {
		return true
	}
	if commonPrefixLen(a, b) >= 5 {
		return true
	}
	shorter := min(len(a), len(b))
	return shorter >= 4 && (strings.HasPrefix(a, b) || strings.HasPrefix(b, a))
}

// givenNamePrefix accepts a mutual prefix whose shorter side has at least
// three letters, or a single-letter initial ("L." or "L") on the query side.
func givenNamePrefix(rawQuery, q, c string) bool {
	if len(q) == 1 && (rawQuery == q || rawQuery == q+".") {
		return c[0] == q[0]
	}
	if min(len(q), len(c)) < 3 {
		return false
	}
	return strings.HasPrefix(c, q) || strings.HasPrefix(q, c)
}

// ScoreAffiliation scores a queried club against the labels found on a
// search result and returns the best label. An exact match returns
// immediately; otherwise higher scores replace lower ones and equal scores
// keep the earliest label.
func ScoreAffiliation(query string, labels []string) (int, string) {
	best := ""
	if len(labels) > 0 {
		best = labels[0]
	}
	q := Normalize(query)
	if q == "" {
		return NoMatch, best
	}

	qt := tokens(q)
	score := NoMatch
	for _, label := range labels {
		l := Normalize(label)
		if l == "" {
			continue
		}
		if l == q {
			return ExactMatch, label
		}
		if strings.Contains(l, q) || strings.Contains(q, l) {
			if score < PartialMatch {
				score, best = PartialMatch, label
			}
			continue
		}
		if score < TokenMatch && sharedTokens(qt, tokens(l)) > 0 {
			score, best = TokenMatch, label
		}
	}
	return score, best
}
