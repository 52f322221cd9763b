package source

import (
	"github.com/Magalhaes24/scout/internal/match"
	"github.com/Magalhaes24/scout/internal/model"
)

// Scored is a candidate with its identity scores.
type Scored struct {
	model.Candidate
	NameScore        int
	AffiliationScore int
	MatchedLabel     string
}

// Composite ranks candidates: the name dominates, the club breaks ties
// between namesakes and a visible value breaks the rest.
func (s Scored) Composite() int {
	c := s.NameScore*10 + s.AffiliationScore*4
	if s.RawValue != "" {
		c++
	}
	return c
}

// beats reports whether s ranks strictly above o on
// (composite, name score, affiliation score).
func (s Scored) beats(o Scored) bool {
	if s.Composite() != o.Composite() {
		return s.Composite() > o.Composite()
	}
	if s.NameScore != o.NameScore {
		return s.NameScore > o.NameScore
	}
	return s.AffiliationScore > o.AffiliationScore
}

// Score computes the identity scores of c against the queried entity.
func Score(name, affiliation string, c model.Candidate) Scored {
	aff, label := match.ScoreAffiliation(affiliation, c.Labels)
	return Scored{
		Candidate:        c,
		NameScore:        match.ScoreName(name, c.DisplayName),
		AffiliationScore: aff,
		MatchedLabel:     label,
	}
}

// Select returns the best candidate for the queried entity, or nil when
// every candidate has a zero name score. Ties keep the candidate that
// appears first in source order.
func Select(name, affiliation string, candidates []model.Candidate) *Scored {
	var best *Scored
	for _, c := range candidates {
		s := Score(name, affiliation, c)
		if s.NameScore == 0 {
			continue
		}
		if best == nil || s.beats(*best) {
			best = &s
		}
	}
	return best
}

// anyLabeled reports whether a candidate surviving the name filter carries
// an affiliation label.
func anyLabeled(name string, candidates []model.Candidate) bool {
	for _, c := range candidates {
		if c.HasLabels() && match.ScoreName(name, c.DisplayName) > 0 {
			return true
		}
	}
	return false
}
