package source

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// readWorkbook parses the first sheet of an .xlsx workbook.
func readWorkbook(name string, data []byte) (*Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, unreadable(name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, unreadable(name, errNoSheet)
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, unreadable(name, fmt.Errorf("read sheet %q: %w", sheet, err))
	}

	headerIdx := findHeaderRow(rows)
	if headerIdx < 0 {
		return nil, unreadable(name, fmt.Errorf("%w in sheet %q", errNoHeader, sheet))
	}

	ds := &Dataset{
		Name:    name,
		Sheet:   sheet,
		Headers: normalizeHeaders(rows[headerIdx]),
	}

	cells := newCellTyper(f, sheet)
	for i, raw := range rows[headerIdx+1:] {
		if isEmptyRow(raw) {
			continue
		}
		rowNum := headerIdx + i + 2 // 1-indexed sheet row

		row := make(Row, len(ds.Headers))
		for col, header := range ds.Headers {
			if col >= len(raw) || raw[col] == "" {
				continue
			}
			row[header] = cells.value(col+1, rowNum, raw[col])
		}
		ds.Rows = append(ds.Rows, row)
	}

	return ds, nil
}

// cellTyper turns raw cell text into a typed value using the cell's stored
// type and number format. Style lookups are cached per style ID.
type cellTyper struct {
	f        *excelize.File
	sheet    string
	date1904 bool
	dates    map[int]bool
}

func newCellTyper(f *excelize.File, sheet string) *cellTyper {
	c := &cellTyper{
		f:     f,
		sheet: sheet,
		dates: make(map[int]bool),
	}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		c.date1904 = *props.Date1904
	}
	return c
}

// value returns float64 for numeric cells, time.Time for numeric cells with a
// date number format, and the raw text otherwise.
func (c *cellTyper) value(col, row int, raw string) any {
	num, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}

	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return raw
	}

	ct, err := c.f.GetCellType(c.sheet, ref)
	if err != nil {
		return raw
	}
	if ct != excelize.CellTypeUnset && ct != excelize.CellTypeNumber {
		// Numbers stored as text stay text.
		return raw
	}

	styleID, err := c.f.GetCellStyle(c.sheet, ref)
	if err == nil && c.isDateStyle(styleID) {
		if t, err := excelize.ExcelDateToTime(num, c.date1904); err == nil {
			return t
		}
	}
	return num
}

func (c *cellTyper) isDateStyle(styleID int) bool {
	if v, ok := c.dates[styleID]; ok {
		return v
	}
	style, err := c.f.GetStyle(styleID)
	v := err == nil && style != nil && isDateFormat(style.NumFmt, style.CustomNumFmt)
	c.dates[styleID] = v
	return v
}

// isDateFormat reports whether a number format renders a calendar date.
// Time-only built-ins (h:mm, mm:ss) are excluded.
func isDateFormat(numFmt int, custom *string) bool {
	if custom != nil && *custom != "" {
		return isDateFormatCode(*custom)
	}
	switch {
	case numFmt >= 14 && numFmt <= 17, numFmt == 22:
		return true
	case numFmt >= 27 && numFmt <= 36, numFmt >= 50 && numFmt <= 58:
		// East Asian locale date formats
		return true
	}
	return false
}

var (
	quotedLiteral = regexp.MustCompile(`"[^"]*"`)
	bracketed     = regexp.MustCompile(`\[[^\]]*\]`)
)

// isDateFormatCode inspects a custom format code such as "dd/mm/yyyy" or
// "[$-es-CO]d-mmm-yy" for day or year tokens, ignoring literals and locale tags.
func isDateFormatCode(code string) bool {
	code = quotedLiteral.ReplaceAllString(code, "")
	code = bracketed.ReplaceAllString(code, "")
	code = strings.ToLower(code)

	var b strings.Builder
	for i := 0; i < len(code); i++ {
		if code[i] == '\\' {
			i++ // skip escaped character
			continue
		}
		b.WriteByte(code[i])
	}
	code = b.String()

	return strings.ContainsAny(code, "dy")
}
