// Package flatfile consolidates extracted records into the payroll flat file
// and renders it as a workbook or as semicolon-separated text.
//
// The layout is fixed: one sheet (or one table) with the columns SAP, FECHA,
// CONCEPTO and VALOR, one row per record, in extraction order.
package flatfile

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/planos/internal/core"
)

// Output column headers, in order.
const (
	ColSAP      = "SAP"
	ColFecha    = "FECHA"
	ColConcepto = "CONCEPTO"
	ColValor    = "VALOR"
)

// Columns returns the output headers in order.
func Columns() []string {
	return []string{ColSAP, ColFecha, ColConcepto, ColValor}
}

// BaseName is the file name stem every flat file uses.
const BaseName = "archivo_plano"

// Format is an output encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "xlsx", "csv" and their dotted or upper-case forms.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")) {
	case FormatXLSX, "excel":
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("invalid option: unknown output format %q", s)
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileName builds archivo_plano[_YYYYMMDD_HHMMSS].<ext>.
func FileName(format Format, ts time.Time, withTimestamp bool) string {
	name := BaseName
	if withTimestamp {
		name += ts.Format("_20060102_150405")
	}
	return name + format.Ext()
}

// FlatFile is the consolidated output of one run.
type FlatFile struct {
	Records []core.Record
	Stats   *core.Statistics
}

// Consolidate wraps records and their statistics. Records keep their order.
func Consolidate(records []core.Record, stats *core.Statistics) *FlatFile {
	if records == nil {
		records = []core.Record{}
	}
	return &FlatFile{Records: records, Stats: stats}
}

// FromResult consolidates an extraction result.
func FromResult(res *core.Result) *FlatFile {
	return Consolidate(res.Records, res.Stats)
}

// Len returns the number of data rows.
func (f *FlatFile) Len() int {
	return len(f.Records)
}

// Rows returns every record as text cells, without the header row.
func (f *FlatFile) Rows() [][]string {
	rows := make([][]string, len(f.Records))
	for i, r := range f.Records {
		rows[i] = []string{r.EmployeeID, r.Date, string(r.Concept), strconv.FormatInt(r.Amount, 10)}
	}
	return rows
}
