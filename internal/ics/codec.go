// Package ics converts calendars between the in-memory model and iCalendar
// (RFC 5545) text.
package ics

import (
	"io"
	"strings"
	"time"

	"icalcodec/internal/model"
	"icalcodec/internal/tz"
)

// TimezoneResolver is the rule provider consulted by the codec.
// *tz.Database implements it.
type TimezoneResolver interface {
	// CanonicalIdentifier maps a location to the TZID parameter value.
	CanonicalIdentifier(loc *time.Location) (string, error)
	// Location maps a TZID value back to a location.
	Location(identifier string) (*time.Location, error)
	// RuleData returns the VTIMEZONE observances in force during year.
	RuleData(identifier string, year int) (tz.Rules, error)
	// Resolve converts a zoned wall clock to an absolute instant.
	Resolve(identifier string, local model.LocalTime) (time.Time, error)
}

// Codec encodes and decodes calendars. It holds no per-call state and is safe
// for concurrent use as long as its resolver is.
type Codec struct {
	resolver TimezoneResolver
}

// NewCodec returns a Codec using resolver, or the default tz database when
// resolver is nil.
func NewCodec(resolver TimezoneResolver) *Codec {
	if resolver == nil {
		resolver = tz.Default()
	}
	return &Codec{resolver: resolver}
}

// Encode renders cal as iCalendar text with CRLF line endings.
func (c *Codec) Encode(cal model.Calendar) (string, error) {
	b, err := c.encode(cal)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodeTo writes cal to w. Nothing is written when encoding fails.
func (c *Codec) EncodeTo(w io.Writer, cal model.Calendar) error {
	b, err := c.encode(cal)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Decode parses iCalendar text into a calendar.
func (c *Codec) Decode(text string) (model.Calendar, error) {
	return c.DecodeFrom(strings.NewReader(text))
}

// DecodeFrom parses iCalendar text read from r.
func (c *Codec) DecodeFrom(r io.Reader) (model.Calendar, error) {
	lines, err := Unfold(r)
	if err != nil {
		return model.Calendar{}, err
	}
	records := make([]Record, 0, len(lines))
	for _, l := range lines {
		rec, err := Tokenize(l)
		if err != nil {
			return model.Calendar{}, err
		}
		records = append(records, rec)
	}
	return c.decode(records)
}
