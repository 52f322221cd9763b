package source

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/Magalhaes24/scout/internal/fetcher"
	"github.com/Magalhaes24/scout/internal/model"
)

const (
	profileSelector = `a[href*="/profil/spieler/"]`
	clubSelector    = `a[href*="/verein/"]`
	valueSelector   = `td.rechts.hauptlink`
)

// HTTPTier is the fast tier: one plain GET of the search page, parsed as
// markup.
type HTTPTier struct {
	fetcher fetcher.Fetcher
	baseURL string
	base    *url.URL
}

// NewHTTPTier creates the fast tier over f.
func NewHTTPTier(f fetcher.Fetcher, baseURL string) *HTTPTier {
	base, _ := url.Parse(baseURL)
	return &HTTPTier{fetcher: f, baseURL: baseURL, base: base}
}

func (t *HTTPTier) Name() model.Tier { return model.TierFast }

// Search fetches and parses the search page for name.
func (t *HTTPTier) Search(ctx context.Context, name string) ([]model.Candidate, error) {
	body, err := t.fetcher.FetchText(ctx, SearchURL(t.baseURL, name))
	if err != nil {
		return nil, eris.Wrap(err, "source: fast search")
	}
	rows, err := ParseResultRows(body)
	if err != nil {
		return nil, err
	}
	return candidatesFrom(rows, t.base), nil
}

func (t *HTTPTier) Close() error { return nil }

// ParseResultRows extracts one row snapshot per search result row, in
// document order. A result row is the table row around a profile link,
// widened to the enclosing row when the inner one carries neither club
// links nor value cells (the name often sits in a nested table).
func ParseResultRows(body string) ([]ResultRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "source: parse results")
	}

	var rows []ResultRow
	seen := make(map[*html.Node]bool)
	doc.Find(profileSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !profileHref.MatchString(href) {
			return
		}

		scope := resultRow(a)
		key := a.Get(0)
		if scope.Length() > 0 {
			key = scope.Get(0)
		} else {
			scope = a
		}
		if seen[key] {
			return
		}
		seen[key] = true

		row := ResultRow{
			Href:         href,
			LinkText:     a.Text(),
			RowLinkTexts: texts(scope.Find(profileSelector)),
			ClubTexts:    texts(scope.Find(clubSelector)),
			ValueCells:   texts(scope.Find(valueSelector)),
			Text:         scope.Text(),
		}
		scope.Find("img").Each(func(_ int, img *goquery.Selection) {
			for _, attr := range []string{"title", "alt"} {
				if v := strings.TrimSpace(img.AttrOr(attr, "")); v != "" {
					row.ImageLabels = append(row.ImageLabels, v)
				}
			}
		})
		rows = append(rows, row)
	})
	return rows, nil
}

func resultRow(a *goquery.Selection) *goquery.Selection {
	first := a.Closest("tr")
	for tr := first; tr.Length() > 0; tr = tr.Parent().Closest("tr") {
		if tr.Find(clubSelector+", "+valueSelector).Length() > 0 {
			return tr
		}
	}
	return first
}

func texts(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := cleanText(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}
