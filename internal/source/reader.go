package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultMaxSize is the input size limit applied when no WithMaxSize option is given (50MB).
const DefaultMaxSize int64 = 50 * 1024 * 1024

// MaxHeaderSearchRows is how many leading rows are scanned for the header row.
var MaxHeaderSearchRows = 20

type options struct {
	maxSize int64
}

// Option configures Read.
type Option func(*options)

// WithMaxSize rejects inputs larger than n bytes. Values <= 0 are ignored.
func WithMaxSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSize = n
		}
	}
}

type format int

const (
	formatUnknown format = iota
	formatXLSX
	formatXLS
	formatCSV
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Read parses the first sheet of a spreadsheet blob. The name is used for
// format detection (by extension, when content sniffing is inconclusive) and
// for error messages.
//
// Every structural failure is returned as a *SourceError matching
// ErrUnreadableSource. Context cancellation is returned as is.
func Read(ctx context.Context, name string, r io.Reader, opts ...Option) (*Dataset, error) {
	o := options{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(&o)
	}

	data, err := io.ReadAll(io.LimitReader(r, o.maxSize+1))
	if err != nil {
		return nil, unreadable(name, err)
	}
	if int64(len(data)) > o.maxSize {
		return nil, unreadable(name, fmt.Errorf("%w: exceeds %s limit", errTooLarge, formatSize(o.maxSize)))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, unreadable(name, errEmptyFile)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch detectFormat(name, data) {
	case formatXLSX:
		return readWorkbook(name, data)
	case formatCSV:
		return readDelimited(name, data)
	case formatXLS:
		return nil, unreadable(name, errLegacyXLS)
	default:
		return nil, unreadable(name, errNotSpreadsheet)
	}
}

func formatSize(n int64) string {
	if n >= 1024*1024 {
		return strconv.FormatInt(n/(1024*1024), 10) + "MB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}

// ReadFile opens path and parses it with Read.
func ReadFile(ctx context.Context, path string, opts ...Option) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, unreadable(filepath.Base(path), err)
	}
	defer f.Close()

	return Read(ctx, filepath.Base(path), f, opts...)
}

// detectFormat sniffs the content first and falls back to the file extension.
func detectFormat(name string, data []byte) format {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return formatXLSX
	case bytes.HasPrefix(data, oleMagic):
		return formatXLS
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xls":
		// Extension promises a workbook but the bytes are not one.
		return formatUnknown
	case ".csv", ".txt":
		return formatCSV
	}

	if looksLikeText(data) {
		return formatCSV
	}
	return formatUnknown
}

// looksLikeText reports whether the first bytes contain no NUL bytes, which
// is enough to tell delimited text apart from binary blobs.
func looksLikeText(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.IndexByte(head, 0) < 0
}

// findHeaderRow returns the index of the first row with a non-blank cell
// among the first MaxHeaderSearchRows rows, or -1.
func findHeaderRow(rows [][]string) int {
	limit := min(MaxHeaderSearchRows, len(rows))
	for i := 0; i < limit; i++ {
		if !isEmptyRow(rows[i]) {
			return i
		}
	}
	return -1
}

// normalizeHeaders keeps header text as authored but makes every name usable
// as a map key: blank headers become "Unnamed: N" and repeated headers get a
// ".1", ".2", ... suffix, the way spreadsheet tooling usually labels them.
func normalizeHeaders(cells []string) []string {
	headers := make([]string, len(cells))
	seen := make(map[string]int, len(cells))

	for i, h := range cells {
		if strings.TrimSpace(h) == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			h = h + "." + strconv.Itoa(n+1)
		} else {
			seen[h] = 0
		}
		headers[i] = h
	}

	// Trim trailing synthetic columns produced by ragged rows.
	for len(headers) > 0 && strings.HasPrefix(headers[len(headers)-1], "Unnamed: ") &&
		strings.TrimSpace(cells[len(headers)-1]) == "" {
		headers = headers[:len(headers)-1]
	}
	return headers
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
