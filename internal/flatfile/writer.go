package flatfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
)

// SheetName is the single sheet of the workbook output.
const SheetName = "Sheet1"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Write renders the flat file in the given format.
func (f *FlatFile) Write(w io.Writer, format Format) error {
	switch format {
	case FormatXLSX:
		return f.WriteXLSX(w)
	case FormatCSV:
		return f.WriteCSV(w)
	default:
		return fmt.Errorf("invalid option: unknown output format %q", format)
	}
}

// WriteXLSX writes a workbook with one sheet. SAP, FECHA and CONCEPTO are
// text cells so that leading zeros survive; VALOR is numeric.
func (f *FlatFile) WriteXLSX(w io.Writer) error {
	wb := excelize.NewFile()
	defer wb.Close()

	sw, err := wb.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("create sheet writer: %w", err)
	}

	bold, err := wb.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	header := make([]any, 0, 4)
	for _, c := range Columns() {
		header = append(header, excelize.Cell{StyleID: bold, Value: c})
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range f.Records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{r.EmployeeID, r.Date, string(r.Concept), r.Amount}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := wb.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteCSV writes ';'-separated UTF-8 text with a byte-order mark so that
// spreadsheet tools in Spanish locales open it with the right encoding.
func (f *FlatFile) WriteCSV(w io.Writer) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(f.Rows()); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// SaveOptions controls SaveTo.
type SaveOptions struct {
	Format    Format
	Timestamp bool      // Append _YYYYMMDD_HHMMSS to the file name
	Now       time.Time // Timestamp source; zero uses time.Now
}

// SaveTo writes the flat file into dir, creating it if needed, and returns
// the full path. The file is written to a temporary name first and renamed
// into place, so a failed write never leaves a partial flat file behind.
func (f *FlatFile) SaveTo(dir string, opts SaveOptions) (path string, err error) {
	if opts.Format == "" {
		opts.Format = FormatXLSX
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+BaseName+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = f.Write(tmp, opts.Format); err != nil {
		return "", err
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	path = filepath.Join(dir, FileName(opts.Format, opts.Now, opts.Timestamp))
	if err = os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename output: %w", err)
	}
	return path, nil
}
