package ics

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/mo"

	appLog "icalcodec/internal/log"
	"icalcodec/internal/model"
	"icalcodec/internal/tz"
)

// state is the position of the decoder in the component tree.
type state int

const (
	stateIdle state = iota
	stateCalendar
	stateTimezone
	stateEvent
	stateSkip
	stateDone
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateCalendar:
		return "calendar"
	case stateTimezone:
		return "timezone"
	case stateEvent:
		return "event"
	case stateSkip:
		return "skip"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

var (
	calendarProps = map[string]bool{
		"PRODID": true, "VERSION": true, "CALSCALE": true, "METHOD": true,
	}
	eventProps = map[string]bool{
		"DTSTAMP": true, "DTSTART": true, "DTEND": true, "SUMMARY": true,
		"UID": true, "TRANSP": true, "CREATED": true, "ATTENDEE": true,
		"DESCRIPTION": true, "LOCATION": true, "RRULE": true,
	}
)

// zoneRef is a TZID resolved for this decode call. resolveID is the
// identifier passed to the resolver for gap checks; it is empty for zones
// built from a declared fixed-offset VTIMEZONE.
type zoneRef struct {
	loc       *time.Location
	resolveID string
}

// decoder holds the accumulators of a single decode call.
type decoder struct {
	resolver TimezoneResolver
	declared map[string]tz.Rules
	zones    map[string]zoneRef

	state state
	cal   model.Calendar

	// calSeen and seen hold the single-valued properties already read at
	// calendar and event level.
	calSeen map[string]bool

	// event is the accumulator while in stateEvent.
	event     model.Event
	eventLine int
	seen      map[string]bool

	// nest is the stack of open components in stateTimezone/stateSkip;
	// resume is the state to return to when it empties.
	nest   []string
	resume state
}

func (c *Codec) decode(records []Record) (model.Calendar, error) {
	declared, err := scanTimezones(records)
	if err != nil {
		return model.Calendar{}, err
	}
	d := &decoder{
		resolver: c.resolver,
		declared: declared,
		zones:    make(map[string]zoneRef),
		state:    stateIdle,
	}

	for i, rec := range records {
		if err := d.step(rec); err != nil {
			return model.Calendar{}, err
		}
		if d.state == stateDone {
			if rest := len(records) - i - 1; rest > 0 {
				appLog.Debug("ics decode: ignoring content after END:VCALENDAR", "records", rest)
			}
			break
		}
	}

	switch d.state {
	case stateDone:
	case stateIdle:
		return model.Calendar{}, decodeErr(0, "", errors.Wrap(ErrUnterminatedCalendar, "no BEGIN:VCALENDAR"))
	case stateEvent:
		return model.Calendar{}, decodeErr(d.eventLine, "VEVENT", ErrUnterminatedEvent)
	case stateSkip:
		if d.resume == stateEvent {
			return model.Calendar{}, decodeErr(d.eventLine, "VEVENT", ErrUnterminatedEvent)
		}
		return model.Calendar{}, decodeErr(0, "", ErrUnterminatedCalendar)
	default:
		return model.Calendar{}, decodeErr(0, "", ErrUnterminatedCalendar)
	}

	if d.cal.Events == nil {
		d.cal.Events = []model.Event{}
	}
	appLog.Debug("ics decode completed", "event_count", len(d.cal.Events), "declared_timezones", len(declared))
	return d.cal, nil
}

func componentName(rec Record) string {
	return strings.ToUpper(strings.TrimSpace(rec.Value))
}

func unexpected(rec Record, format string, args ...any) error {
	return decodeErr(rec.Line, rec.Name, errors.Wrapf(ErrUnexpectedProperty, format, args...))
}

func (d *decoder) step(rec Record) error {
	switch d.state {
	case stateIdle:
		if rec.Name == "BEGIN" && componentName(rec) == "VCALENDAR" {
			d.state = stateCalendar
			d.cal = model.Calendar{Events: []model.Event{}}
			d.calSeen = make(map[string]bool)
			return nil
		}
		return unexpected(rec, "%s before BEGIN:VCALENDAR", rec.Name)

	case stateCalendar:
		return d.calendarStep(rec)

	case stateEvent:
		return d.eventStep(rec)

	case stateTimezone, stateSkip:
		return d.nestedStep(rec)

	default:
		return unexpected(rec, "in state %s", d.state)
	}
}

func (d *decoder) calendarStep(rec Record) error {
	switch rec.Name {
	case "BEGIN":
		switch comp := componentName(rec); comp {
		case "VEVENT":
			d.state = stateEvent
			d.event = model.Event{}
			d.eventLine = rec.Line
			d.seen = make(map[string]bool)
		case "VTIMEZONE":
			d.cal.AutoIncludeTimezones = true
			d.enterNested(stateTimezone, comp)
		case "VCALENDAR":
			return unexpected(rec, "nested VCALENDAR")
		default:
			appLog.Debug("ics decode: skipping component", "component", comp, "line", rec.Line)
			d.enterNested(stateSkip, comp)
		}
		return nil
	case "END":
		if comp := componentName(rec); comp != "VCALENDAR" {
			return unexpected(rec, "END:%s without matching BEGIN", comp)
		}
		d.state = stateDone
		return nil
	}

	if eventProps[rec.Name] {
		return unexpected(rec, "event property outside VEVENT")
	}
	if !calendarProps[rec.Name] {
		appLog.Debug("ics decode: ignoring calendar property", "name", rec.Name, "line", rec.Line)
		return nil
	}
	if d.calSeen[rec.Name] {
		return unexpected(rec, "duplicate %s", rec.Name)
	}
	d.calSeen[rec.Name] = true

	switch rec.Name {
	case "PRODID":
		d.cal.ProductID = rec.Value
	case "VERSION":
		d.cal.Version = strings.TrimSpace(rec.Value)
	}
	return nil
}

func (d *decoder) enterNested(s state, component string) {
	d.resume = d.state
	d.state = s
	d.nest = append(d.nest[:0], component)
}

// nestedStep tracks BEGIN/END pairs inside VTIMEZONE blocks and skipped
// components. VTIMEZONE content was already read by scanTimezones.
func (d *decoder) nestedStep(rec Record) error {
	switch rec.Name {
	case "BEGIN":
		d.nest = append(d.nest, componentName(rec))
	case "END":
		comp := componentName(rec)
		top := d.nest[len(d.nest)-1]
		if comp != top {
			return unexpected(rec, "END:%s while %s is open", comp, top)
		}
		d.nest = d.nest[:len(d.nest)-1]
		if len(d.nest) == 0 {
			d.state = d.resume
		}
	}
	return nil
}

func (d *decoder) eventStep(rec Record) error {
	switch rec.Name {
	case "BEGIN":
		comp := componentName(rec)
		if comp == "VEVENT" || comp == "VCALENDAR" || comp == "VTIMEZONE" {
			return unexpected(rec, "%s inside VEVENT", comp)
		}
		appLog.Debug("ics decode: skipping component", "component", comp, "line", rec.Line)
		d.enterNested(stateSkip, comp)
		return nil
	case "END":
		if comp := componentName(rec); comp != "VEVENT" {
			return unexpected(rec, "END:%s while VEVENT is open", comp)
		}
		if err := d.event.Validate(); err != nil {
			return decodeErr(d.eventLine, "VEVENT", err)
		}
		d.cal.Events = append(d.cal.Events, d.event)
		d.state = stateCalendar
		return nil
	}

	if calendarProps[rec.Name] {
		return unexpected(rec, "calendar property inside VEVENT")
	}
	if !eventProps[rec.Name] {
		appLog.Debug("ics decode: ignoring event property", "name", rec.Name, "line", rec.Line)
		return nil
	}
	if rec.Name != "ATTENDEE" {
		if d.seen[rec.Name] {
			return unexpected(rec, "duplicate %s", rec.Name)
		}
		d.seen[rec.Name] = true
	}

	if err := d.eventProperty(rec); err != nil {
		return decodeErr(rec.Line, rec.Name, err)
	}
	return nil
}

func (d *decoder) eventProperty(rec Record) error {
	ev := &d.event
	switch rec.Name {
	case "DTSTAMP":
		t, err := d.instant(rec)
		if err != nil {
			return err
		}
		ev.Stamp = t
	case "CREATED":
		t, err := d.instant(rec)
		if err != nil {
			return err
		}
		ev.Created = mo.Some(t)
	case "DTSTART":
		dt, err := parseDateTime(rec, d.zone)
		if err != nil {
			return err
		}
		ev.Start = dt
	case "DTEND":
		dt, err := parseDateTime(rec, d.zone)
		if err != nil {
			return err
		}
		ev.End = mo.Some(dt)
	case "SUMMARY":
		ev.Summary = rec.Value
	case "UID":
		ev.UID = rec.Value
	case "DESCRIPTION":
		ev.Description = rec.Value
	case "LOCATION":
		ev.Location = rec.Value
	case "TRANSP":
		t, err := model.ParseTransparency(rec.Value)
		if err != nil {
			return errors.Wrap(ErrMalformedLine, err.Error())
		}
		ev.Transparency = t
	case "RRULE":
		ev.RecurrenceRule = strings.TrimSpace(rec.Raw)
	case "ATTENDEE":
		cn, _ := rec.Param(paramCN)
		a := model.NewAttendee(rec.Raw, cn)
		if err := a.Validate(); err != nil {
			return err
		}
		ev.Attendees = append(ev.Attendees, a)
	}
	return nil
}

// instant parses DTSTAMP/CREATED style values, which must denote an
// absolute instant.
func (d *decoder) instant(rec Record) (time.Time, error) {
	dt, err := parseDateTime(rec, d.zone)
	if err != nil {
		return time.Time{}, err
	}
	switch v := dt.(type) {
	case model.UTCTime:
		return v.Time, nil
	case model.ZonedTime:
		t, err := v.Instant()
		if err != nil {
			return time.Time{}, errors.Wrap(ErrInvalidDateTime, err.Error())
		}
		return t.UTC(), nil
	case model.FloatingTime, model.Date:
		return time.Time{}, errors.Wrapf(ErrInvalidDateTime, "%q must be a UTC date-time", rec.Raw)
	default:
		return time.Time{}, errors.Wrapf(ErrInvalidDateTime, "unhandled kind %T", dt)
	}
}

// zone resolves a TZID parameter: first through the resolver, then through
// a VTIMEZONE declared in the same text. Wall clocks inside a transition gap
// are rejected.
func (d *decoder) zone(tzid string, local model.LocalTime) (*time.Location, error) {
	ref, ok := d.zones[tzid]
	if !ok {
		var err error
		ref, err = d.lookupZone(tzid)
		if err != nil {
			return nil, err
		}
		d.zones[tzid] = ref
	}
	if ref.resolveID != "" {
		if _, err := d.resolver.Resolve(ref.resolveID, local); err != nil {
			return nil, err
		}
	}
	return ref.loc, nil
}

func (d *decoder) lookupZone(tzid string) (zoneRef, error) {
	loc, err := d.resolver.Location(tzid)
	if err == nil {
		return zoneRef{loc: loc, resolveID: tzid}, nil
	}

	rules, declared := d.declared[tzid]
	if !declared {
		return zoneRef{}, err
	}
	if rules.Location != "" {
		if loc, lerr := d.resolver.Location(rules.Location); lerr == nil {
			return zoneRef{loc: loc, resolveID: rules.Location}, nil
		}
	}
	loc, ferr := tz.FixedOffsetLocation(rules)
	if ferr != nil {
		return zoneRef{}, errors.Wrapf(err, "declared VTIMEZONE unusable: %v", ferr)
	}
	return zoneRef{loc: loc}, nil
}

// scanTimezones collects the VTIMEZONE blocks declared anywhere in the text
// so that TZID references can be resolved regardless of block placement.
func scanTimezones(records []Record) (map[string]tz.Rules, error) {
	out := make(map[string]tz.Rules)
	var (
		cur *tz.Rules
		obs *tz.Observance
	)
	for _, rec := range records {
		comp := ""
		if rec.Name == "BEGIN" || rec.Name == "END" {
			comp = componentName(rec)
		}
		switch {
		case rec.Name == "BEGIN" && comp == "VTIMEZONE":
			cur = &tz.Rules{}
		case cur == nil:
			continue
		case rec.Name == "BEGIN" && (comp == "STANDARD" || comp == "DAYLIGHT"):
			obs = &tz.Observance{Daylight: comp == "DAYLIGHT"}
		case rec.Name == "END" && (comp == "STANDARD" || comp == "DAYLIGHT"):
			if obs != nil {
				cur.Observances = append(cur.Observances, *obs)
				obs = nil
			}
		case rec.Name == "END" && comp == "VTIMEZONE":
			if cur.TZID != "" {
				out[cur.TZID] = *cur
			}
			cur, obs = nil, nil
		case obs == nil && rec.Name == "TZID":
			cur.TZID = rec.Value
		case obs == nil && rec.Name == "X-LIC-LOCATION":
			cur.Location = rec.Value
		case obs != nil && rec.Name == "TZNAME":
			obs.Name = rec.Value
		case obs != nil && (rec.Name == "TZOFFSETFROM" || rec.Name == "TZOFFSETTO"):
			off, err := parseOffset(rec.Raw)
			if err != nil {
				return nil, decodeErr(rec.Line, rec.Name, err)
			}
			if rec.Name == "TZOFFSETFROM" {
				obs.OffsetFrom = off
			} else {
				obs.OffsetTo = off
			}
		case obs != nil && rec.Name == "DTSTART":
			l, err := parseLocal(strings.TrimSpace(rec.Raw))
			if err != nil {
				return nil, decodeErr(rec.Line, rec.Name, err)
			}
			obs.Start = l
		case obs != nil && rec.Name == "RRULE":
			obs.RRule = rec.Raw
		}
	}
	return out, nil
}

// parseOffset parses a UTC-OFFSET value: +HHMM or +HHMMSS.
func parseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if (len(s) != 5 && len(s) != 7) || (s[0] != '+' && s[0] != '-') || !allDigits(s[1:]) {
		return 0, errors.Wrapf(ErrMalformedLine, "invalid UTC offset %q", s)
	}
	atoi := func(p string) int { return int(p[0]-'0')*10 + int(p[1]-'0') }
	d := time.Duration(atoi(s[1:3]))*time.Hour + time.Duration(atoi(s[3:5]))*time.Minute
	if len(s) == 7 {
		d += time.Duration(atoi(s[5:7])) * time.Second
	}
	if s[0] == '-' {
		d = -d
	}
	return d, nil
}
