// Package source loads spreadsheet exports into in-memory row sets.
//
// A [Dataset] keeps column headers exactly as authored, including trailing
// spaces and accented characters, because downstream rules match them
// byte-for-byte. Cell values keep their native type where the file format
// carries one:
//
//   - nil for blank cells
//   - float64 for numeric cells
//   - time.Time for numeric cells formatted as dates
//   - string for text cells (and for every non-blank CSV cell)
//
// Workbooks (.xlsx) are read with excelize; delimited text (.csv) is read with
// encoding/csv after BOM removal and Windows-1252 decoding of non-UTF-8 input.
package source

import "slices"

// Row maps a column header to the cell value in that column.
// Blank cells are stored as nil or omitted entirely.
type Row map[string]any

// Dataset is one parsed sheet: its header row and data rows in file order.
type Dataset struct {
	Name    string   // Source name (file name or form field), used in logs and errors
	Sheet   string   // Sheet the rows were read from; empty for CSV
	Headers []string // Header cells as authored
	Rows    []Row
}

// NewDataset builds a dataset from already-typed rows. Intended for callers
// that obtain rows from somewhere other than a file.
func NewDataset(name string, headers []string, rows ...Row) *Dataset {
	return &Dataset{
		Name:    name,
		Headers: headers,
		Rows:    rows,
	}
}

// HasColumn reports whether the dataset carries a column with exactly this header.
// The comparison is case- and whitespace-sensitive.
func (d *Dataset) HasColumn(name string) bool {
	if d == nil {
		return false
	}
	return slices.Contains(d.Headers, name)
}

// Len returns the number of data rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}
