// Package document is the YAML rendering of a calendar used by the
// command-line tool as the human-editable side of encode/decode.
package document

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/mo"
	"gopkg.in/yaml.v3"

	appLog "icalcodec/internal/log"
	"icalcodec/internal/model"
)

const (
	layoutUTC   = "2006-01-02T15:04:05Z"
	layoutLocal = "2006-01-02T15:04:05"
	layoutDate  = "2006-01-02"
)

var ErrInvalidValue = errors.New("document: invalid value")

// Locator maps a zone name to a location. *tz.Database implements it.
type Locator interface {
	Location(identifier string) (*time.Location, error)
}

// Document is the YAML form of a calendar.
type Document struct {
	ProductID            string  `yaml:"product_id,omitempty"`
	Version              string  `yaml:"version,omitempty"`
	AutoIncludeTimezones *bool   `yaml:"auto_include_timezones,omitempty"`
	Events               []Event `yaml:"events"`
}

type Event struct {
	UID          string     `yaml:"uid,omitempty"`
	Summary      string     `yaml:"summary,omitempty"`
	Description  string     `yaml:"description,omitempty"`
	Location     string     `yaml:"location,omitempty"`
	Start        DateTime   `yaml:"start"`
	End          *DateTime  `yaml:"end,omitempty"`
	Stamp        string     `yaml:"stamp,omitempty"`
	Created      string     `yaml:"created,omitempty"`
	Transparency string     `yaml:"transparency,omitempty"`
	Attendees    []Attendee `yaml:"attendees,omitempty"`
	RRule        string     `yaml:"rrule,omitempty"`
}

// DateTime is a date-time value. The kind follows from the shape:
//
//	2006-01-02T15:04:05Z               UTC
//	2006-01-02T15:04:05 + timezone     zoned
//	2006-01-02T15:04:05                floating
//	2006-01-02                         date
type DateTime struct {
	Value    string `yaml:"value"`
	Timezone string `yaml:"timezone,omitempty"`
}

type Attendee struct {
	Address    string `yaml:"address"`
	CommonName string `yaml:"cn,omitempty"`
}

// Read decodes a document. Unknown keys are rejected.
func Read(r io.Reader) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, nil
		}
		return Document{}, errors.Wrap(err, "document: parse yaml")
	}
	return doc, nil
}

// Write encodes doc with two-space indentation.
func Write(w io.Writer, doc Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "document: write yaml")
	}
	return enc.Close()
}

// ToModel converts doc into a calendar. Missing UIDs are generated and a
// missing stamp defaults to now.
func ToModel(doc Document, zones Locator) (model.Calendar, error) {
	cal := model.Calendar{
		ProductID:            doc.ProductID,
		Version:              doc.Version,
		AutoIncludeTimezones: true,
		Events:               make([]model.Event, 0, len(doc.Events)),
	}
	if doc.AutoIncludeTimezones != nil {
		cal.AutoIncludeTimezones = *doc.AutoIncludeTimezones
	}

	now := time.Now().UTC().Truncate(time.Second)
	for i, de := range doc.Events {
		ev, err := eventToModel(de, zones, now)
		if err != nil {
			return model.Calendar{}, errors.Wrapf(err, "document: event %d", i)
		}
		cal.Events = append(cal.Events, ev)
	}

	appLog.Debug("document converted to calendar", "event_count", len(cal.Events))
	return cal, nil
}

func eventToModel(de Event, zones Locator, now time.Time) (model.Event, error) {
	ev := model.Event{
		UID:            de.UID,
		Summary:        de.Summary,
		Description:    de.Description,
		Location:       de.Location,
		Stamp:          now,
		RecurrenceRule: de.RRule,
	}
	if ev.UID == "" {
		ev.UID = strings.ToUpper(uuid.NewString())
	}

	start, err := parseDateTime(de.Start, zones)
	if err != nil {
		return model.Event{}, errors.Wrap(err, "start")
	}
	ev.Start = start

	if de.End != nil {
		end, err := parseDateTime(*de.End, zones)
		if err != nil {
			return model.Event{}, errors.Wrap(err, "end")
		}
		ev.End = mo.Some(end)
	}

	if de.Stamp != "" {
		t, err := parseInstant(de.Stamp)
		if err != nil {
			return model.Event{}, errors.Wrap(err, "stamp")
		}
		ev.Stamp = t
	}
	if de.Created != "" {
		t, err := parseInstant(de.Created)
		if err != nil {
			return model.Event{}, errors.Wrap(err, "created")
		}
		ev.Created = mo.Some(t)
	}

	if de.Transparency != "" {
		t, err := model.ParseTransparency(de.Transparency)
		if err != nil {
			return model.Event{}, errors.Wrap(ErrInvalidValue, err.Error())
		}
		ev.Transparency = t
	}

	for _, a := range de.Attendees {
		ev.Attendees = append(ev.Attendees, model.NewAttendee(a.Address, a.CommonName))
	}

	if err := ev.Validate(); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

func parseInstant(v string) (time.Time, error) {
	t, err := time.Parse(layoutUTC, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidValue, "%q is not %s", v, layoutUTC)
	}
	return t.UTC(), nil
}

func parseDateTime(d DateTime, zones Locator) (model.DateTime, error) {
	v := strings.TrimSpace(d.Value)
	switch {
	case strings.HasSuffix(v, "Z"):
		if d.Timezone != "" {
			return nil, errors.Wrapf(ErrInvalidValue, "%q is UTC but has timezone %q", v, d.Timezone)
		}
		t, err := parseInstant(v)
		if err != nil {
			return nil, err
		}
		return model.UTC(t), nil

	case len(v) == len(layoutDate):
		t, err := time.Parse(layoutDate, v)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidValue, "%q is not %s", v, layoutDate)
		}
		return model.DateOf(t.Year(), t.Month(), t.Day()), nil
	}

	t, err := time.Parse(layoutLocal, v)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidValue, "%q is not %s", v, layoutLocal)
	}
	local := model.LocalOf(t)
	if d.Timezone == "" {
		return model.Floating(local), nil
	}

	loc, err := zones.Location(d.Timezone)
	if err != nil {
		return nil, err
	}
	if _, err := local.In(loc); err != nil {
		return nil, err
	}
	return model.Zoned(local, loc), nil
}

// FromModel converts cal into its document form.
func FromModel(cal model.Calendar) Document {
	auto := cal.AutoIncludeTimezones
	doc := Document{
		ProductID:            cal.ProductID,
		Version:              cal.Version,
		AutoIncludeTimezones: &auto,
		Events:               make([]Event, 0, len(cal.Events)),
	}
	for _, ev := range cal.Events {
		de := Event{
			UID:         ev.UID,
			Summary:     ev.Summary,
			Description: ev.Description,
			Location:    ev.Location,
			Start:       formatDateTime(ev.Start),
			Stamp:       ev.Stamp.UTC().Format(layoutUTC),
			RRule:       ev.RecurrenceRule,
		}
		if end, ok := ev.End.Get(); ok {
			d := formatDateTime(end)
			de.End = &d
		}
		if created, ok := ev.Created.Get(); ok {
			de.Created = created.UTC().Format(layoutUTC)
		}
		if ev.Transparency != model.Opaque {
			de.Transparency = ev.Transparency.String()
		}
		for _, a := range ev.Attendees {
			de.Attendees = append(de.Attendees, Attendee{Address: a.Address, CommonName: a.CommonName.OrEmpty()})
		}
		doc.Events = append(doc.Events, de)
	}
	return doc
}

func formatLocal(l model.LocalTime) string {
	return time.Date(l.Year, l.Month, l.Day, l.Hour, l.Minute, l.Second, 0, time.UTC).Format(layoutLocal)
}

func formatDateTime(dt model.DateTime) DateTime {
	switch v := dt.(type) {
	case model.UTCTime:
		return DateTime{Value: v.Time.UTC().Format(layoutUTC)}
	case model.ZonedTime:
		return DateTime{Value: formatLocal(v.Local), Timezone: v.ZoneName()}
	case model.FloatingTime:
		return DateTime{Value: formatLocal(v.Local)}
	case model.Date:
		return DateTime{Value: time.Date(v.Year, v.Month, v.Day, 0, 0, 0, 0, time.UTC).Format(layoutDate)}
	default:
		return DateTime{}
	}
}
