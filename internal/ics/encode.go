package ics

import (
	"github.com/pkg/errors"

	appLog "icalcodec/internal/log"
	"icalcodec/internal/model"
	"icalcodec/internal/tz"
)

// zoneUse is one distinct zone referenced by the calendar.
type zoneUse struct {
	tzid string
	// year is the earliest year a value in this zone refers to; VTIMEZONE
	// rules are derived for it.
	year int
}

// zoneSet maps location names to their canonical identifiers, keeping the
// order of first reference.
type zoneSet struct {
	byName map[string]*zoneUse
	order  []*zoneUse
}

func (s *zoneSet) tzid(z model.ZonedTime) string {
	if u, ok := s.byName[z.ZoneName()]; ok {
		return u.tzid
	}
	return ""
}

// collectZones is the first encoding pass: it resolves the canonical
// identifier of every zoned value before anything is written.
func (c *Codec) collectZones(cal model.Calendar) (*zoneSet, error) {
	set := &zoneSet{byName: make(map[string]*zoneUse)}

	add := func(ev model.Event, prop string, dt model.DateTime) error {
		z, ok := dt.(model.ZonedTime)
		if !ok {
			return nil
		}
		name := z.ZoneName()
		if u, seen := set.byName[name]; seen {
			if z.Local.Year < u.year {
				u.year = z.Local.Year
			}
			return nil
		}
		id, err := c.resolver.CanonicalIdentifier(z.Location)
		if err != nil {
			return errors.Wrapf(err, "event %q %s", ev.UID, prop)
		}
		u := &zoneUse{tzid: id, year: z.Local.Year}
		set.byName[name] = u
		set.order = append(set.order, u)
		return nil
	}

	for _, ev := range cal.Events {
		if err := add(ev, "DTSTART", ev.Start); err != nil {
			return nil, err
		}
		if end, ok := ev.End.Get(); ok {
			if err := add(ev, "DTEND", end); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

func (c *Codec) encode(cal model.Calendar) ([]byte, error) {
	if err := cal.Validate(); err != nil {
		return nil, errors.Wrap(err, "ics: encode")
	}

	zones, err := c.collectZones(cal)
	if err != nil {
		return nil, errors.Wrap(err, "ics: encode")
	}

	// Rule data is fetched before writing so a failure leaves no output.
	var blocks []tz.Rules
	if cal.AutoIncludeTimezones {
		for _, u := range zones.order {
			rules, err := c.resolver.RuleData(u.tzid, u.year)
			if err != nil {
				return nil, errors.Wrapf(err, "ics: encode: timezone %q", u.tzid)
			}
			blocks = append(blocks, rules)
		}
	}

	productID := cal.ProductID
	if productID == "" {
		productID = model.DefaultProductID
	}
	version := cal.Version
	if version == "" {
		version = model.DefaultVersion
	}

	var w lineWriter
	w.begin("VCALENDAR")
	w.text("PRODID", productID)
	w.raw("VERSION", version)
	for _, rules := range blocks {
		writeTimezone(&w, rules)
	}
	for _, ev := range cal.Events {
		writeEvent(&w, ev, zones)
	}
	w.end("VCALENDAR")

	appLog.Debug("ics encode completed", "event_count", len(cal.Events), "timezone_count", len(blocks))
	return w.Bytes(), nil
}

func writeTimezone(w *lineWriter, rules tz.Rules) {
	w.begin("VTIMEZONE")
	w.text("TZID", rules.TZID)
	if rules.Location != "" {
		w.text("X-LIC-LOCATION", rules.Location)
	}
	for _, obs := range rules.Observances {
		component := "STANDARD"
		if obs.Daylight {
			component = "DAYLIGHT"
		}
		w.begin(component)
		if obs.Name != "" {
			w.text("TZNAME", obs.Name)
		}
		w.raw("DTSTART", formatLocal(obs.Start))
		w.raw("TZOFFSETFROM", formatOffset(obs.OffsetFrom))
		w.raw("TZOFFSETTO", formatOffset(obs.OffsetTo))
		if obs.RRule != "" {
			w.raw("RRULE", obs.RRule)
		}
		w.end(component)
	}
	w.end("VTIMEZONE")
}

// writeEvent emits the fields in a fixed order that strict parsers expect.
func writeEvent(w *lineWriter, ev model.Event, zones *zoneSet) {
	tzidOf := func(dt model.DateTime) string {
		if z, ok := dt.(model.ZonedTime); ok {
			return zones.tzid(z)
		}
		return ""
	}

	w.begin("VEVENT")
	w.raw("DTSTAMP", formatUTC(ev.Stamp))
	w.property(dateTimeProperty("DTSTART", ev.Start, tzidOf(ev.Start)))
	if end, ok := ev.End.Get(); ok {
		w.property(dateTimeProperty("DTEND", end, tzidOf(end)))
	}
	if ev.Summary != "" {
		w.text("SUMMARY", ev.Summary)
	}
	w.text("UID", ev.UID)
	w.raw("TRANSP", ev.Transparency.String())
	if created, ok := ev.Created.Get(); ok {
		w.raw("CREATED", formatUTC(created))
	}
	for _, a := range ev.Attendees {
		var params []Param
		if cn, ok := a.CommonName.Get(); ok && cn != "" {
			params = append(params, Param{Name: paramCN, Values: []string{cn}})
		}
		w.raw("ATTENDEE", mailtoScheme+model.TrimMailto(a.Address), params...)
	}
	if ev.Description != "" {
		w.text("DESCRIPTION", ev.Description)
	}
	if ev.Location != "" {
		w.text("LOCATION", ev.Location)
	}
	if ev.RecurrenceRule != "" {
		w.raw("RRULE", ev.RecurrenceRule)
	}
	w.end("VEVENT")
}
