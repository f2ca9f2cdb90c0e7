package source

import (
	"errors"
	"fmt"
)

// ErrUnreadableSource is the sentinel for inputs that cannot be parsed as a
// spreadsheet at all. Match it with errors.Is.
var ErrUnreadableSource = errors.New("unreadable spreadsheet")

// Causes attached to a SourceError. They are also matched by the user-facing
// error mapping, so their wording matters.
var (
	errEmptyFile      = errors.New("empty file")
	errTooLarge       = errors.New("file too large")
	errLegacyXLS      = errors.New("legacy .xls workbook, save it as .xlsx")
	errNoSheet        = errors.New("workbook has no readable sheet")
	errNoHeader       = errors.New("missing header row")
	errNotSpreadsheet = errors.New("not a spreadsheet (expected .xlsx or .csv)")
)

// SourceError reports a structural failure reading one input.
type SourceError struct {
	Name string // Source name as given by the caller
	Err  error  // Underlying cause
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrUnreadableSource, e.Name, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is makes every SourceError match ErrUnreadableSource.
func (e *SourceError) Is(target error) bool {
	return target == ErrUnreadableSource
}

func unreadable(name string, err error) error {
	return &SourceError{Name: name, Err: err}
}
