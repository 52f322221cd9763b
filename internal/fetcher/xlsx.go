package fetcher

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects the sheet to read.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSX reads a sheet of an XLSX workbook as formatted cell text.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// Sheet is a single worksheet to write. Cells in NumericColumns that hold a
// whole number are written as numbers, everything else as text.
type Sheet struct {
	Name           string
	Header         []string
	Rows           [][]string
	NumericColumns map[int]func(string) (int64, bool)
}

// WriteXLSX saves sheet as a new workbook at path.
func WriteXLSX(path string, sheet Sheet) error {
	name := sheet.Name
	if name == "" {
		name = "Sheet1"
	}

	f := xlsx.NewFile()
	ws, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := ws.AddRow()
	for _, h := range sheet.Header {
		header.AddCell().SetString(h)
	}

	for _, cells := range sheet.Rows {
		row := ws.AddRow()
		for j, text := range cells {
			cell := row.AddCell()
			if parse, ok := sheet.NumericColumns[j]; ok {
				if v, ok := parse(text); ok {
					cell.SetInt64(v)
					continue
				}
			}
			cell.SetString(text)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "xlsx: save")
	}
	return nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}
