package model

import (
	"time"
	"unicode"

	"github.com/pkg/errors"
	"github.com/teambition/rrule-go"
)

var (
	ErrMissingStart      = errors.New("model: event has no start")
	ErrKindMismatch      = errors.New("model: start and end mix date and date-time values")
	ErrMissingUID        = errors.New("model: event has no UID")
	ErrMissingStamp      = errors.New("model: event has no generation timestamp")
	ErrInvalidAttendee   = errors.New("model: invalid attendee")
	ErrInvalidRecurrence = errors.New("model: invalid recurrence rule")
	ErrInvalidDateTime   = errors.New("model: invalid date-time value")
)

// Validate checks every event in order and reports the first violation.
func (c Calendar) Validate() error {
	for i, ev := range c.Events {
		if err := ev.Validate(); err != nil {
			return errors.Wrapf(err, "event %d (%s)", i, ev.UID)
		}
	}
	return nil
}

// Validate checks the event invariants.
func (e Event) Validate() error {
	if e.UID == "" {
		return ErrMissingUID
	}
	if e.Stamp.IsZero() {
		return ErrMissingStamp
	}
	if err := validateInstant(e.Stamp); err != nil {
		return errors.Wrap(err, "stamp")
	}
	if created, ok := e.Created.Get(); ok {
		if err := validateInstant(created); err != nil {
			return errors.Wrap(err, "created")
		}
	}
	if e.Start == nil {
		return ErrMissingStart
	}
	if err := validateDateTime(e.Start); err != nil {
		return errors.Wrap(err, "start")
	}
	if end, ok := e.End.Get(); ok {
		if end == nil {
			return errors.Wrap(ErrInvalidDateTime, "end is set but empty")
		}
		if err := validateDateTime(end); err != nil {
			return errors.Wrap(err, "end")
		}
		if (e.Start.Kind() == KindDate) != (end.Kind() == KindDate) {
			return errors.Wrapf(ErrKindMismatch, "start is %s, end is %s", e.Start.Kind(), end.Kind())
		}
	}
	for i, a := range e.Attendees {
		if err := a.Validate(); err != nil {
			return errors.Wrapf(err, "attendee %d", i)
		}
	}
	if e.RecurrenceRule != "" {
		if _, err := rrule.StrToROption(e.RecurrenceRule); err != nil {
			return errors.Wrapf(ErrInvalidRecurrence, "%q: %v", e.RecurrenceRule, err)
		}
	}
	return nil
}

// Validate checks that the address is a non-empty identifier without a
// scheme. NewAttendee strips the scheme.
func (a Attendee) Validate() error {
	addr := a.Address
	if addr == "" {
		return errors.Wrap(ErrInvalidAttendee, "empty address")
	}
	if TrimMailto(addr) != addr {
		return errors.Wrapf(ErrInvalidAttendee, "address %q carries a mailto scheme", addr)
	}
	for _, r := range addr {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return errors.Wrapf(ErrInvalidAttendee, "address %q contains whitespace", a.Address)
		}
	}
	return nil
}

func validateDateTime(dt DateTime) error {
	switch v := dt.(type) {
	case UTCTime:
		if v.Time.IsZero() {
			return errors.Wrap(ErrInvalidDateTime, "zero instant")
		}
		return validateInstant(v.Time)
	case ZonedTime:
		if v.Location == nil {
			return errors.Wrap(ErrInvalidDateTime, "zoned value without location")
		}
		if !v.Local.Valid() {
			return errors.Wrapf(ErrInvalidDateTime, "%s out of range", v.Local)
		}
	case FloatingTime:
		if !v.Local.Valid() {
			return errors.Wrapf(ErrInvalidDateTime, "%s out of range", v.Local)
		}
	case Date:
		if !v.Valid() {
			return errors.Wrapf(ErrInvalidDateTime, "%04d-%02d-%02d out of range", v.Year, int(v.Month), v.Day)
		}
	default:
		return errors.Wrapf(ErrInvalidDateTime, "unsupported kind %T", dt)
	}
	return nil
}

// validateInstant checks that t has a four digit year once in UTC.
func validateInstant(t time.Time) error {
	if y := t.UTC().Year(); y < 0 || y > 9999 {
		return errors.Wrapf(ErrInvalidDateTime, "instant year %d out of range", y)
	}
	return nil
}
