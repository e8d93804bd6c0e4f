package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/mo"
)

const (
	DefaultProductID = "-//icalcodec//EN"
	DefaultVersion   = "2.0"
)

// Transparency tells free/busy lookups whether an event blocks time.
// The zero value is Opaque.
type Transparency int

const (
	Opaque Transparency = iota
	Transparent
)

func (t Transparency) String() string {
	if t == Transparent {
		return "TRANSPARENT"
	}
	return "OPAQUE"
}

// ParseTransparency maps a TRANSP value (case-insensitive) to a Transparency.
func ParseTransparency(s string) (Transparency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPAQUE":
		return Opaque, nil
	case "TRANSPARENT":
		return Transparent, nil
	default:
		return Opaque, errors.Errorf("model: unknown transparency %q", s)
	}
}

// Calendar is the top-level container. It owns its events.
type Calendar struct {
	ProductID string
	Version   string

	// AutoIncludeTimezones makes the encoder emit a VTIMEZONE block for every
	// zone referenced by the events.
	AutoIncludeTimezones bool

	Events []Event
}

// NewCalendar returns an empty calendar with timezone auto-inclusion enabled.
func NewCalendar() *Calendar {
	return &Calendar{
		ProductID:            DefaultProductID,
		Version:              DefaultVersion,
		AutoIncludeTimezones: true,
		Events:               []Event{},
	}
}

// Equal compares product, version and events in order. AutoIncludeTimezones
// only affects output layout and is not compared.
func (c Calendar) Equal(o Calendar) bool {
	if c.ProductID != o.ProductID || c.Version != o.Version {
		return false
	}
	if len(c.Events) != len(o.Events) {
		return false
	}
	for i := range c.Events {
		if !c.Events[i].Equal(o.Events[i]) {
			return false
		}
	}
	return true
}

// Event is a single VEVENT. It owns its attendees and date-time values.
type Event struct {
	UID     string
	Summary string

	Description string
	Location    string

	Start DateTime
	End   mo.Option[DateTime]

	// Stamp is the generation timestamp (DTSTAMP). The wire form has second
	// precision, so Equal ignores sub-second parts of Stamp and Created.
	Stamp   time.Time
	Created mo.Option[time.Time]

	Transparency Transparency
	Attendees    []Attendee

	// RecurrenceRule is the RRULE value, e.g. "FREQ=WEEKLY;COUNT=4".
	RecurrenceRule string
}

// NewEvent returns an event with a random UID and a generation timestamp of
// now.
func NewEvent(summary string, start DateTime) Event {
	return Event{
		UID:     strings.ToUpper(uuid.NewString()),
		Summary: summary,
		Start:   start,
		End:     mo.None[DateTime](),
		Stamp:   time.Now().UTC().Truncate(time.Second),
		Created: mo.None[time.Time](),
	}
}

func (e Event) Equal(o Event) bool {
	if e.UID != o.UID || e.Summary != o.Summary ||
		e.Description != o.Description || e.Location != o.Location ||
		e.Transparency != o.Transparency || e.RecurrenceRule != o.RecurrenceRule {
		return false
	}
	if !sameSecond(e.Stamp, o.Stamp) {
		return false
	}
	if !Equal(e.Start, o.Start) {
		return false
	}

	eEnd, eOK := e.End.Get()
	oEnd, oOK := o.End.Get()
	if eOK != oOK || (eOK && !Equal(eEnd, oEnd)) {
		return false
	}

	eCreated, eOK := e.Created.Get()
	oCreated, oOK := o.Created.Get()
	if eOK != oOK || (eOK && !sameSecond(eCreated, oCreated)) {
		return false
	}

	if len(e.Attendees) != len(o.Attendees) {
		return false
	}
	for i := range e.Attendees {
		if !e.Attendees[i].Equal(o.Attendees[i]) {
			return false
		}
	}
	return true
}

// Attendee is a participant addressed by a mailto identifier.
type Attendee struct {
	Address    string
	CommonName mo.Option[string]
}

// NewAttendee builds an attendee; an empty commonName means none. A mailto:
// scheme on address is dropped in any letter case.
func NewAttendee(address, commonName string) Attendee {
	a := Attendee{Address: TrimMailto(address), CommonName: mo.None[string]()}
	if commonName != "" {
		a.CommonName = mo.Some(commonName)
	}
	return a
}

const mailtoScheme = "mailto:"

// TrimMailto strips surrounding space and a leading mailto: scheme,
// ignoring case.
func TrimMailto(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= len(mailtoScheme) && strings.EqualFold(v[:len(mailtoScheme)], mailtoScheme) {
		return v[len(mailtoScheme):]
	}
	return v
}

func (a Attendee) Equal(o Attendee) bool {
	return a.Address == o.Address && a.CommonName.OrEmpty() == o.CommonName.OrEmpty()
}
