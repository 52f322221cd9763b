package source

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/Magalhaes24/scout/internal/model"
)

const searchPath = "/schnellsuche/ergebnis/schnellsuche"

var (
	profileHref = regexp.MustCompile(`/profil/spieler/\d+`)
	moneyToken  = regexp.MustCompile(`[€$£]\s*[\d.,]+\s*[mkMK]?`)

	encodingRepair = strings.NewReplacer("â‚¬", "€", "Â£", "£")
)

// SearchURL builds the quick-search URL for name.
func SearchURL(baseURL, name string) string {
	return strings.TrimRight(baseURL, "/") + searchPath + "?query=" + url.QueryEscape(strings.TrimSpace(name))
}

// ResultRow is a structural snapshot of one search result row, produced by
// both the markup parser and the browser driver.
type ResultRow struct {
	Href         string   `json:"href"`
	LinkText     string   `json:"linkText"`
	RowLinkTexts []string `json:"rowLinkTexts"`
	ClubTexts    []string `json:"clubTexts"`
	ImageLabels  []string `json:"imageLabels"`
	ValueCells   []string `json:"valueCells"`
	Text         string   `json:"text"`
}

// Candidate converts the row into a candidate. Rows without a player
// profile link are rejected.
func (r ResultRow) Candidate(base *url.URL) (model.Candidate, bool) {
	href := strings.TrimSpace(r.Href)
	if !profileHref.MatchString(href) {
		return model.Candidate{}, false
	}
	if base != nil {
		if ref, err := url.Parse(href); err == nil {
			href = base.ResolveReference(ref).String()
		}
	}

	c := model.Candidate{
		ProfileURL:  href,
		DisplayName: cleanText(r.LinkText),
		RawValue:    r.value(),
	}
	if c.DisplayName == "" {
		for _, t := range r.RowLinkTexts {
			if t = cleanText(t); len(t) > len(c.DisplayName) {
				c.DisplayName = t
			}
		}
	}
	for _, group := range [][]string{r.ClubTexts, r.ImageLabels} {
		for _, l := range group {
			if l = cleanText(l); l != "" {
				c.Labels = append(c.Labels, l)
			}
		}
	}
	return c, true
}

// value returns the first value cell holding a money token, else the first
// money token anywhere in the row text.
func (r ResultRow) value() string {
	for _, cell := range r.ValueCells {
		cell = cleanText(encodingRepair.Replace(cell))
		if moneyToken.MatchString(cell) {
			return cell
		}
	}
	return strings.TrimSpace(moneyToken.FindString(encodingRepair.Replace(r.Text)))
}

// candidatesFrom converts rows, skipping rows without a profile link.
func candidatesFrom(rows []ResultRow, base *url.URL) []model.Candidate {
	out := make([]model.Candidate, 0, len(rows))
	for _, r := range rows {
		if c, ok := r.Candidate(base); ok {
			out = append(out, c)
		}
	}
	return out
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
