package ics

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrMalformedLine        = errors.New("ics: malformed content line")
	ErrMalformedParameter   = errors.New("ics: malformed parameter")
	ErrUnexpectedProperty   = errors.New("ics: unexpected property")
	ErrUnterminatedCalendar = errors.New("ics: unterminated calendar")
	ErrUnterminatedEvent    = errors.New("ics: unterminated event")
	ErrInvalidDateTime      = errors.New("ics: invalid date-time")
)

// DecodeError reports where decoding stopped. Err wraps one of the package
// sentinels (or a tz/model sentinel) and can be matched with errors.Is.
type DecodeError struct {
	// Line is the 1-based physical line where the logical line starts,
	// 0 when the error is not tied to a line (end of input).
	Line     int
	Property string
	Err      error
}

func (e *DecodeError) Error() string {
	switch {
	case e.Line > 0 && e.Property != "":
		return fmt.Sprintf("line %d (%s): %v", e.Line, e.Property, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErr(line int, property string, err error) error {
	return &DecodeError{Line: line, Property: property, Err: err}
}
