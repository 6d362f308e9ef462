package sheets

import (
	"errors"
	"fmt"
)

var (
	ErrNoHeaderRow  = errors.New("no header row")
	ErrUnknownSheet = errors.New("unknown sheet")
)

// DecodeError reports bytes that are not a recognizable spreadsheet container.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s workbook: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NoHeaderRowError is returned for a sheet whose used range is empty.
type NoHeaderRowError struct {
	Sheet string
}

func (e *NoHeaderRowError) Error() string {
	return fmt.Sprintf("sheet %q: %v", e.Sheet, ErrNoHeaderRow)
}

func (e *NoHeaderRowError) Is(target error) bool {
	return target == ErrNoHeaderRow
}
