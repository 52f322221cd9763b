package table

import (
	"strings"

	"github.com/Magalhaes24/scout/internal/model"
)

// Columns is the set of editable columns a pass may write.
type Columns map[string]bool

// AllColumns selects every editable column.
func AllColumns() Columns {
	c := make(Columns, len(model.EditableHeaders))
	for _, h := range model.EditableHeaders {
		c[h] = true
	}
	return c
}

// ParseColumns reads a column selection: "all" or a comma separated list of
// editable header names (case-insensitive). Unknown names are ignored and an
// empty selection falls back to all editable columns.
func ParseColumns(list string) Columns {
	list = strings.TrimSpace(list)
	if list == "" || strings.EqualFold(list, "all") {
		return AllColumns()
	}

	c := make(Columns)
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		for _, h := range model.EditableHeaders {
			if strings.EqualFold(part, h) {
				c[h] = true
			}
		}
	}
	if len(c) == 0 {
		return AllColumns()
	}
	return c
}

// Has reports whether col is selected.
func (c Columns) Has(col string) bool { return c[col] }

// List returns the selected columns in file order.
func (c Columns) List() []string {
	var out []string
	for _, h := range model.EditableHeaders {
		if c[h] {
			out = append(out, h)
		}
	}
	return out
}

// IsBlank reports whether a cell holds no usable value. Spreadsheet
// exports write missing values as "nan", "none" or "null".
func IsBlank(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "none", "null":
		return true
	}
	return false
}
