// Package table persists the market values table as CSV and applies
// row-level updates to it.
package table

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Magalhaes24/scout/internal/fetcher"
	"github.com/Magalhaes24/scout/internal/model"
)

// Repository holds the persisted table in memory. It is not safe for
// concurrent use; a single goroutine owns all mutation.
type Repository struct {
	path   string
	header []string
	index  map[string]int
	rows   [][]string
}

// New returns a repository backed by the CSV file at path. Nothing is read
// until Load.
func New(path string) *Repository {
	r := &Repository{path: path}
	r.setHeader(model.Headers)
	return r
}

// Path returns the backing file path.
func (r *Repository) Path() string { return r.path }

// InitializeIfMissing seeds the file with one row per input entity when it
// does not exist yet. Existing files are never touched.
func (r *Repository) InitializeIfMissing(names, affiliations []string) (bool, error) {
	if _, err := os.Stat(r.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, eris.Wrap(err, "table: stat output")
	}
	if len(names) != len(affiliations) {
		return false, eris.Errorf("table: %d names but %d affiliations", len(names), len(affiliations))
	}

	r.setHeader(model.Headers)
	r.rows = make([][]string, len(names))
	for i := range names {
		row := make([]string, len(r.header))
		row[r.index[model.ColName]] = names[i]
		row[r.index[model.ColAffiliation]] = affiliations[i]
		r.rows[i] = row
	}
	if err := r.Save(); err != nil {
		return false, err
	}

	zap.L().Info("table: created from input", zap.String("path", r.path), zap.Int("rows", len(names)))
	return true, nil
}

// Load reads the file. Cells are kept as literal text, columns are matched by
// header name and missing known columns read as blank. Unknown columns are
// kept and written back on Save, including cells of rows wider than the
// header, which get placeholder column names.
func (r *Repository) Load() error {
	records, err := fetcher.ReadCSV(r.path)
	if err != nil {
		return eris.Wrap(err, "table: load")
	}
	if len(records) == 0 {
		r.setHeader(model.Headers)
		r.rows = nil
		return nil
	}

	header := append([]string(nil), records[0]...)
	width := len(header)
	for _, rec := range records[1:] {
		width = max(width, len(rec))
	}
	if width > len(header) {
		zap.L().Warn("table: rows wider than header; adding unnamed columns",
			zap.String("path", r.path),
			zap.Int("header", len(header)),
			zap.Int("widest_row", width),
		)
		for i := len(header); i < width; i++ {
			header = append(header, unnamedColumn(header, i))
		}
	}
	for _, h := range model.Headers {
		if !slices.Contains(header, h) {
			header = append(header, h)
		}
	}
	r.setHeader(header)

	r.rows = make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(r.header))
		copy(row, rec)
		r.rows = append(r.rows, row)
	}
	return nil
}

// Save writes the whole table to a temporary file next to the target and
// renames it into place, so readers never observe a partial file.
func (r *Repository) Save() error {
	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "table: create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if err := fetcher.WriteCSV(tmp, r.header, r.rows); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return eris.Wrap(err, "table: write")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return eris.Wrap(err, "table: sync")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "table: close temp file")
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return eris.Wrap(err, "table: replace output")
	}
	return nil
}

// JobsFrom returns the jobs from the 1-based startRow onward, skipping rows
// with a blank name.
func (r *Repository) JobsFrom(startRow int) []model.Job {
	if startRow < 1 {
		startRow = 1
	}
	var jobs []model.Job
	for idx := startRow - 1; idx < len(r.rows); idx++ {
		name := r.cell(idx, model.ColName)
		if IsBlank(name) {
			continue
		}
		jobs = append(jobs, model.Job{
			Index:       idx,
			Name:        name,
			Affiliation: r.cell(idx, model.ColAffiliation),
		})
	}
	return jobs
}

// UpdateRow writes the allowed fields of row idx. Name and affiliation are
// never overwritten.
func (r *Repository) UpdateRow(idx int, fields map[string]string, allowed Columns) error {
	if err := r.checkIndex(idx); err != nil {
		return err
	}
	for col, val := range fields {
		if !editable(col) || !allowed.Has(col) {
			continue
		}
		r.rows[idx][r.index[col]] = val
	}
	zap.L().Debug("table: updated row", zap.Int("row", idx+1), zap.Strings("columns", allowed.List()))
	return nil
}

// MergeMissingFields fills the forced columns of row idx that are currently
// blank and leaves populated cells alone. Status is then recomputed from the
// merged row.
func (r *Repository) MergeMissingFields(idx int, fetched map[string]string, forced Columns) error {
	if err := r.checkIndex(idx); err != nil {
		return err
	}
	row := r.rows[idx]
	for col := range forced {
		val, ok := fetched[col]
		if !ok || !editable(col) {
			continue
		}
		if IsBlank(row[r.index[col]]) {
			row[r.index[col]] = val
		}
	}

	switch {
	case !IsBlank(row[r.index[model.ColRawValue]]):
		row[r.index[model.ColStatus]] = string(model.StatusOK)
	case !IsBlank(row[r.index[model.ColURL]]):
		row[r.index[model.ColStatus]] = string(model.StatusValueNotFound)
	}
	return nil
}

// Len returns the number of data rows.
func (r *Repository) Len() int { return len(r.rows) }

// Row returns the known columns of row idx keyed by header.
func (r *Repository) Row(idx int) map[string]string {
	if idx < 0 || idx >= len(r.rows) {
		return nil
	}
	out := make(map[string]string, len(model.Headers))
	for _, h := range model.Headers {
		out[h] = r.cell(idx, h)
	}
	return out
}

// Header returns the file header, known columns included.
func (r *Repository) Header() []string {
	return append([]string(nil), r.header...)
}

// Rows returns a copy of every data row in header order.
func (r *Repository) Rows() [][]string {
	out := make([][]string, len(r.rows))
	for i, row := range r.rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

func (r *Repository) cell(idx int, col string) string {
	return r.rows[idx][r.index[col]]
}

func (r *Repository) checkIndex(idx int) error {
	if idx < 0 || idx >= len(r.rows) {
		return eris.Errorf("table: row index %d out of range (%d rows)", idx, len(r.rows))
	}
	return nil
}

func (r *Repository) setHeader(header []string) {
	r.header = append([]string(nil), header...)
	r.index = make(map[string]int, len(header))
	for i, h := range r.header {
		if _, dup := r.index[h]; !dup {
			r.index[h] = i
		}
	}
}

// unnamedColumn names the i-th (0-based) column of a row that extends past
// the header, avoiding names already in use.
func unnamedColumn(header []string, i int) string {
	name := fmt.Sprintf("Column %d", i+1)
	for slices.Contains(header, name) {
		name += "_"
	}
	return name
}

func editable(col string) bool {
	return slices.Contains(model.EditableHeaders, col)
}
