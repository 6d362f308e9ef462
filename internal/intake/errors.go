package intake

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"claimpoint/internal"
	"claimpoint/internal/util"
)

var (
	ErrInvalidTransition = errors.New("invalid intake form transition")
	// ErrStale is returned by Apply when the form moved on since the generation was read.
	ErrStale = errors.New("stale intake form edit")
)

// MissingFieldError lists the required fields left empty, in form order.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldError) Is(target error) bool {
	return target == internal.ErrValidation
}

type InvalidDateRangeError struct {
	From time.Time
	To   time.Time
}

func (e *InvalidDateRangeError) Error() string {
	return fmt.Sprintf("paid-from date %s is after paid-to date %s", util.FormatDate(e.From), util.FormatDate(e.To))
}

func (e *InvalidDateRangeError) Is(target error) bool {
	return target == internal.ErrValidation
}
