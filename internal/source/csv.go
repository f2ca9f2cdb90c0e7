package source

// csv.go reads delimited text exports.
//
// Exports produced by spreadsheet tools on Windows commonly carry a UTF-8
// BOM, use ';' as the separator in Spanish locales, and occasionally contain
// Windows-1252 text instead of UTF-8. The reader strips the BOM, decodes
// every byte that is not part of a valid UTF-8 sequence as Windows-1252 and
// picks the separator from the header line.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readDelimited parses CSV data. Every non-blank cell is kept as a string.
func readDelimited(name string, data []byte) (*Dataset, error) {
	data = toUTF8(bytes.TrimPrefix(data, utf8BOM))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, unreadable(name, fmt.Errorf("invalid csv: %w", err))
	}

	headerIdx := findHeaderRow(records)
	if headerIdx < 0 {
		return nil, unreadable(name, errNoHeader)
	}

	ds := &Dataset{
		Name:    name,
		Headers: normalizeHeaders(records[headerIdx]),
	}

	for _, rec := range records[headerIdx+1:] {
		if isEmptyRow(rec) {
			continue
		}
		row := make(Row, len(ds.Headers))
		for col, header := range ds.Headers {
			if col < len(rec) && rec[col] != "" {
				row[header] = rec[col]
			}
		}
		ds.Rows = append(ds.Rows, row)
	}

	return ds, nil
}

// detectDelimiter picks the most frequent of ';', ',' and tab on the first
// line. Ties and lines with none of them default to ','.
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// toUTF8 returns data unchanged when it is valid UTF-8. Otherwise valid
// UTF-8 sequences are kept and each remaining byte is decoded as
// Windows-1252, the ANSI code page of Spanish-locale Excel.
func toUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data) + len(data)/2)

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(charmap.Windows1252.DecodeByte(data[0]))
		} else {
			buf.WriteRune(r)
		}
		data = data[size:]
	}
	return buf.Bytes()
}
