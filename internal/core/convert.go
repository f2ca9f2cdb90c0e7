package core

// convert.go coerces heterogeneous spreadsheet cells into the three shapes a
// flat-file record needs: an exact decimal amount, a calendar date and a
// trimmed identifier string.
//
// Cells arrive as whatever the source reader produced:
//   - float64 for numeric workbook cells
//   - time.Time for workbook cells with a date number format
//   - string for text cells and every CSV cell
//   - nil for blank cells
//
// None of these functions return errors. A cell that cannot be coerced
// reports ok=false and the extractor decides what that means for the row.

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xuri/excelize/v2"
)

// NumberFormat describes the separators used by numeric strings in a source.
type NumberFormat struct {
	Thousands rune
	Decimal   rune
}

// DefaultNumberFormat matches exports like "2,500" and "1,234.50".
var DefaultNumberFormat = NumberFormat{Thousands: ',', Decimal: '.'}

// numericRegex validates a plain decimal after separators are normalized.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// groupedRegex validates the integer part of a number written with thousands
// grouping, using '_' as a placeholder for the separator.
var groupedRegex = regexp.MustCompile(`^\d{1,3}(_\d{3})+$`)

var errAmountOverflow = errors.New("amount does not fit in int64")

// ParseAmount coerces a cell to an exact decimal.
// Returns ok=false for blank, non-numeric, NaN or infinite values.
func ParseAmount(v any, nf NumberFormat) (pgtype.Numeric, bool) {
	var s string
	switch x := v.(type) {
	case nil:
		return pgtype.Numeric{}, false
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return pgtype.Numeric{}, false
		}
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return ParseAmount(float64(x), nf)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case string:
		var ok bool
		if s, ok = normalizeNumber(x, nf); !ok {
			return pgtype.Numeric{}, false
		}
	default:
		// Dates and booleans are never amounts.
		return pgtype.Numeric{}, false
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil || !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite {
		return pgtype.Numeric{}, false
	}
	return n, true
}

// normalizeNumber rewrites a locale-formatted numeric string into the plain
// "-1234.5" form. Currency symbols, surrounding whitespace and accounting
// parentheses are accepted. Thousands separators must group digits by three.
func normalizeNumber(s string, nf NumberFormat) (string, bool) {
	s = CleanCell(s)
	if s == "" {
		return "", false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer(
		"$", "",
		"\u20ac", "", // Euro
		"\u00a3", "", // Pound
		"COP", "",
		"\u00a0", "", // no-break space
		" ", "",
	).Replace(s)

	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		if s[0] == '-' {
			sign = "-"
		}
		s = s[1:]
	}
	if negative {
		if sign == "-" {
			return "", false
		}
		sign = "-"
	}

	intPart, fracPart, hasFrac := strings.Cut(s, string(nf.Decimal))
	if strings.ContainsRune(fracPart, nf.Thousands) || strings.ContainsRune(fracPart, nf.Decimal) {
		return "", false
	}
	if strings.ContainsRune(intPart, nf.Thousands) {
		grouped := strings.ReplaceAll(intPart, string(nf.Thousands), "_")
		if !groupedRegex.MatchString(grouped) {
			return "", false
		}
		intPart = strings.ReplaceAll(grouped, "_", "")
	}

	s = sign + intPart
	if hasFrac {
		s += "." + fracPart
	}
	if !numericRegex.MatchString(s) {
		return "", false
	}
	if strings.HasPrefix(s, ".") || strings.HasPrefix(s, "-.") {
		s = strings.Replace(s, ".", "0.", 1)
	}
	return strings.TrimSuffix(s, "."), true
}

// TruncateAmount drops the fractional part of n, rounding toward zero.
func TruncateAmount(n pgtype.Numeric) (int64, error) {
	if !n.Valid || n.Int == nil {
		return 0, fmt.Errorf("invalid numeric")
	}

	v := new(big.Int).Set(n.Int)
	if n.Exp > 0 {
		v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.Exp)), nil))
	} else if n.Exp < 0 {
		v.Quo(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-n.Exp)), nil))
	}

	if !v.IsInt64() {
		return 0, errAmountOverflow
	}
	return v.Int64(), nil
}

// Excel serial day numbers accepted as dates: 1900-01-01 through 9999-12-31.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Textual layouts are day-first, as written in Colombian exports.
var (
	isoLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
	}
	fourDigitYearLayouts = []string{
		"2/1/2006", "02/01/2006", "2-1-2006", "02-01-2006", "2.1.2006", "02.01.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "2 January 2006",
		"2-Jan-2006", "2/Jan/2006", "02-Jan-2006",
	}
	twoDigitYearLayouts = []string{
		"2/1/06", "02/01/06", "2-1-06", "2.1.06", "02.01.06", "2-Jan-06",
	}
)

var spanishMonths = strings.NewReplacer(
	"enero", "January", "febrero", "February", "marzo", "March",
	"abril", "April", "mayo", "May", "junio", "June", "julio", "July",
	"agosto", "August", "septiembre", "September", "setiembre", "September",
	"octubre", "October", "noviembre", "November", "diciembre", "December",
)

var spanishMonthAbbr = regexp.MustCompile(`\b(ene|abr|ago|dic|sept|set)\b\.?`)

var spanishAbbrToEnglish = map[string]string{
	"ene": "Jan", "abr": "Apr", "ago": "Aug", "dic": "Dec", "sept": "Sep", "set": "Sep",
}

// ParseDate coerces a cell to a calendar date. Native times, Excel serial
// numbers, yyyymmdd strings and common textual layouts are accepted.
func ParseDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return x, true
	case float64:
		return dateFromNumber(x)
	case int:
		return dateFromNumber(float64(x))
	case int64:
		return dateFromNumber(float64(x))
	case string:
		return parseDateString(x)
	default:
		return time.Time{}, false
	}
}

// dateFromNumber reads an Excel serial, or an integer written as yyyymmdd.
func dateFromNumber(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	if f >= minExcelSerial && f <= maxExcelSerial {
		t, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	if f == math.Trunc(f) && f >= 10000101 && f <= 99991231 {
		return parseDateString(strconv.FormatInt(int64(f), 10))
	}
	return time.Time{}, false
}

func parseDateString(s string) (time.Time, bool) {
	s = CleanCell(s)
	if s == "" {
		return time.Time{}, false
	}

	if isDigits(s) {
		switch {
		case len(s) == 8:
			t, err := time.Parse("20060102", s)
			return t, err == nil
		case len(s) >= 5 && len(s) <= 7:
			// Serial day numbers; shorter digit runs are years or codes.
			f, _ := strconv.ParseFloat(s, 64)
			return dateFromNumber(f)
		}
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	s = stripTimeOfDay(s)
	s = translateSpanishMonths(s)

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// stripTimeOfDay drops a trailing clock component such as " 00:00:00" or
// "T10:30". Only the date part is ever formatted.
func stripTimeOfDay(s string) string {
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return s
	}
	if cut := strings.LastIndexAny(s[:colon], " T"); cut > 0 {
		return strings.TrimSpace(s[:cut])
	}
	return s
}

// translateSpanishMonths rewrites "8 de julio de 2025" and "08-ago-2025"
// into forms time.Parse understands.
func translateSpanishMonths(s string) string {
	lower := strings.ToLower(s)
	lower = strings.ReplaceAll(lower, " de ", " ")
	lower = spanishMonths.Replace(lower)
	lower = spanishMonthAbbr.ReplaceAllStringFunc(lower, func(m string) string {
		return spanishAbbrToEnglish[strings.TrimSuffix(m, ".")]
	})
	if lower == strings.ToLower(s) {
		return s
	}
	return lower
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// CellString renders a cell as trimmed text. Integral floats print without a
// fractional part so that an SAP number stored as 12345.0 reads "12345".
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return CleanCell(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// CleanCell removes common export artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
