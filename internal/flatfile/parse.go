package flatfile

import (
	"fmt"

	"github.com/JonMunkholm/planos/internal/core"
	"github.com/JonMunkholm/planos/internal/source"
)

// ParseRecords reads a flat file back into records, for example one loaded
// with source.Read from a previous run's output.
func ParseRecords(ds *source.Dataset) ([]core.Record, error) {
	for _, c := range Columns() {
		if !ds.HasColumn(c) {
			return nil, fmt.Errorf("flat file: missing column %q", c)
		}
	}

	records := make([]core.Record, 0, ds.Len())
	for i, row := range ds.Rows {
		n, ok := core.ParseAmount(row[ColValor], core.DefaultNumberFormat)
		if !ok {
			return nil, fmt.Errorf("flat file: row %d: invalid %s %v", i+2, ColValor, row[ColValor])
		}
		amount, err := core.TruncateAmount(n)
		if err != nil {
			return nil, fmt.Errorf("flat file: row %d: %w", i+2, err)
		}

		records = append(records, core.Record{
			EmployeeID: core.CellString(row[ColSAP]),
			Date:       dateCell(row[ColFecha]),
			Concept:    core.Concept(core.CellString(row[ColConcepto])),
			Amount:     amount,
		})
	}
	return records, nil
}

// dateCell keeps FECHA as written. A workbook edited by hand may turn it into
// a real date, which is rendered back in the default layout.
func dateCell(v any) string {
	if _, isText := v.(string); isText || v == nil {
		return core.CellString(v)
	}
	if t, ok := core.ParseDate(v); ok {
		return t.Format(core.DefaultDateLayout)
	}
	return core.CellString(v)
}
