// Package input loads the entity table a run is seeded from and detects its
// name and affiliation columns.
package input

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Magalhaes24/scout/internal/fetcher"
)

// Extensions are the supported input formats in lookup order.
var Extensions = []string{".csv", ".xlsx"}

var (
	// NameAliases are header names accepted for the entity name column.
	NameAliases = []string{"Player", "player", "Name", "name", "Player Name", "player_name"}
	// AffiliationAliases are header names accepted for the affiliation column.
	AffiliationAliases = []string{"Squad", "squad", "Team", "team", "Club", "club"}
)

// Table is a raw input sheet: a header plus data rows.
type Table struct {
	Path   string
	Header []string
	Rows   [][]string
}

// Entities are the detected name/affiliation pairs, in input order.
type Entities struct {
	NameColumn        string
	AffiliationColumn string
	Names             []string
	Affiliations      []string
}

// Len returns the number of entities.
func (e Entities) Len() int { return len(e.Names) }

// Find looks for <stem><ext> in dir for each supported extension.
func Find(dir, stem string) (string, error) {
	for _, ext := range Extensions {
		p := filepath.Join(dir, stem+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", eris.Wrapf(err, "input: stat %s", p)
		}
	}
	return "", eris.Errorf("input: no %s file with extensions %v in %s", stem, Extensions, dir)
}

// Read loads a CSV or XLSX file. Fully blank rows are dropped.
func Read(path string) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, err = fetcher.ReadCSV(path)
	case ".xlsx":
		records, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	default:
		return nil, eris.Errorf("input: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, eris.Wrap(err, "input: read")
	}

	t := &Table{Path: path}
	for _, rec := range records {
		if blankRecord(rec) {
			continue
		}
		if t.Header == nil {
			t.Header = rec
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	if t.Header == nil {
		return nil, eris.Errorf("input: %s has no header row", path)
	}
	return t, nil
}

// Load reads path and detects its entity columns.
func Load(path string) (Entities, error) {
	t, err := Read(path)
	if err != nil {
		return Entities{}, err
	}
	return t.Entities()
}

// Entities extracts the name and affiliation columns.
func (t *Table) Entities() (Entities, error) {
	nameCol, err := t.NameColumn()
	if err != nil {
		return Entities{}, err
	}
	affCol, err := t.AffiliationColumn()
	if err != nil {
		return Entities{}, err
	}

	e := Entities{
		NameColumn:        t.Header[nameCol],
		AffiliationColumn: t.Header[affCol],
		Names:             t.column(nameCol),
		Affiliations:      t.column(affCol),
	}
	zap.L().Info("input: detected columns",
		zap.String("path", t.Path),
		zap.Int("rows", e.Len()),
		zap.String("name_column", e.NameColumn),
		zap.String("affiliation_column", e.AffiliationColumn),
	)
	return e, nil
}

// NameColumn returns the index of the name column: the first alias present,
// else the first column holding text.
func (t *Table) NameColumn() (int, error) {
	if i := t.aliasColumn(NameAliases); i >= 0 {
		return i, nil
	}
	for i := range t.Header {
		if t.isTextColumn(i) {
			return i, nil
		}
	}
	return -1, eris.New("input: could not detect name column")
}

// AffiliationColumn returns the index of the affiliation column. There is no
// fallback.
func (t *Table) AffiliationColumn() (int, error) {
	if i := t.aliasColumn(AffiliationAliases); i >= 0 {
		return i, nil
	}
	return -1, eris.New("input: could not detect affiliation column")
}

func (t *Table) aliasColumn(aliases []string) int {
	for _, alias := range aliases {
		for i, h := range t.Header {
			if strings.EqualFold(strings.TrimSpace(h), alias) {
				return i
			}
		}
	}
	return -1
}

// isTextColumn reports whether column i holds at least one non-numeric value.
func (t *Table) isTextColumn(i int) bool {
	for _, row := range t.Rows {
		if i >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[i])
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return true
		}
	}
	return false
}

func (t *Table) column(i int) []string {
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		if i < len(row) {
			out[r] = strings.TrimSpace(row[i])
		}
	}
	return out
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
