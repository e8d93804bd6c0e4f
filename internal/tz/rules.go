package tz

import (
	"time"

	"github.com/pkg/errors"
	"github.com/teambition/rrule-go"

	"icalcodec/internal/model"
)

// Rules is the content of one VTIMEZONE block.
type Rules struct {
	// TZID is the identifier the block is referenced by.
	TZID string
	// Location is the Olson name (emitted as X-LIC-LOCATION).
	Location    string
	Observances []Observance
}

// Observance is one STANDARD or DAYLIGHT sub-component.
type Observance struct {
	Daylight bool
	// Name is the zone abbreviation, e.g. "CEST".
	Name string
	// Start is the wall clock of the transition expressed in OffsetFrom.
	Start      model.LocalTime
	OffsetFrom time.Duration
	OffsetTo   time.Duration
	// RRule is a yearly recurrence for the transition, empty for one-off
	// transitions.
	RRule string
}

// RuleData returns the observances in force for the zone during year.
//
// Every transition inside the year becomes one observance. Its RRULE is a
// YEARLY BYMONTH/BYDAY rule that is kept only when it also predicts the
// matching transition of the following year. Zones without transitions get a
// single STANDARD observance starting 1970-01-01.
func (d *Database) RuleData(identifier string, year int) (Rules, error) {
	name, err := d.OlsonName(identifier)
	if err != nil {
		return Rules{}, err
	}
	loc, _ := d.lookup(name)

	rules := Rules{TZID: identifier, Location: name}

	transitions := transitionsIn(loc, year)
	if len(transitions) == 0 {
		at := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).In(loc)
		abbr, off := at.Zone()
		rules.Observances = []Observance{{
			Daylight:   at.IsDST(),
			Name:       abbr,
			Start:      model.Local(1970, time.January, 1, 0, 0, 0),
			OffsetFrom: time.Duration(off) * time.Second,
			OffsetTo:   time.Duration(off) * time.Second,
		}}
		return rules, nil
	}

	following := transitionsIn(loc, year+1)
	for _, t := range transitions {
		obs := observanceAt(loc, t)
		obs.RRule = yearlyRule(loc, obs, following)
		rules.Observances = append(rules.Observances, obs)
	}
	return rules, nil
}

// transitionsIn lists the instants in [year, year+1) at which loc changes
// its offset or abbreviation.
func transitionsIn(loc *time.Location, year int) []time.Time {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)

	var out []time.Time
	t := start
	for {
		_, zoneEnd := t.In(loc).ZoneBounds()
		if zoneEnd.IsZero() || !zoneEnd.Before(end) || !zoneEnd.After(t) {
			break
		}
		out = append(out, zoneEnd)
		t = zoneEnd
	}
	return out
}

func observanceAt(loc *time.Location, t time.Time) Observance {
	_, offFrom := t.Add(-time.Second).In(loc).Zone()
	after := t.In(loc)
	abbr, offTo := after.Zone()
	return Observance{
		Daylight:   after.IsDST(),
		Name:       abbr,
		Start:      model.LocalOf(t.In(time.FixedZone("", offFrom))),
		OffsetFrom: time.Duration(offFrom) * time.Second,
		OffsetTo:   time.Duration(offTo) * time.Second,
	}
}

// yearlyRule derives "FREQ=YEARLY;BYMONTH=m;BYDAY=nWD" for obs and checks it
// against the next year's transitions. It returns "" when no candidate rule
// reproduces them.
func yearlyRule(loc *time.Location, obs Observance, following []time.Time) string {
	var next *Observance
	for _, t := range following {
		o := observanceAt(loc, t)
		if o.Daylight == obs.Daylight && o.OffsetFrom == obs.OffsetFrom && o.OffsetTo == obs.OffsetTo {
			next = &o
			break
		}
	}
	if next == nil {
		return ""
	}

	start := time.Date(obs.Start.Year, obs.Start.Month, obs.Start.Day,
		obs.Start.Hour, obs.Start.Minute, obs.Start.Second, 0, time.UTC)
	want := time.Date(next.Start.Year, next.Start.Month, next.Start.Day,
		next.Start.Hour, next.Start.Minute, next.Start.Second, 0, time.UTC)

	wd := weekdayOf(start.Weekday())
	ordinal := (start.Day()-1)/7 + 1
	candidates := []int{ordinal}
	if start.Day()+7 > daysIn(start.Month(), start.Year()) {
		candidates = []int{-1, ordinal}
	}

	for _, n := range candidates {
		opt := rrule.ROption{
			Freq:      rrule.YEARLY,
			Dtstart:   start,
			Count:     2,
			Bymonth:   []int{int(start.Month())},
			Byweekday: []rrule.Weekday{wd.Nth(n)},
		}
		r, err := rrule.NewRRule(opt)
		if err != nil {
			continue
		}
		occ := r.All()
		if len(occ) == 2 && occ[0].Equal(start) && occ[1].Equal(want) {
			opt.Dtstart = time.Time{}
			opt.Count = 0
			return opt.RRuleString()
		}
	}
	return ""
}

func weekdayOf(d time.Weekday) rrule.Weekday {
	switch d {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FixedOffsetLocation builds a location for a declared VTIMEZONE whose only
// observance has a constant offset.
func FixedOffsetLocation(r Rules) (*time.Location, error) {
	if len(r.Observances) == 0 {
		return nil, errors.Wrapf(ErrUnknownTimezone, "%q has no observances", r.TZID)
	}
	off := r.Observances[0].OffsetTo
	for _, o := range r.Observances {
		if o.OffsetTo != off {
			return nil, errors.Wrapf(ErrUnknownTimezone, "%q has varying offsets", r.TZID)
		}
	}
	return time.FixedZone(r.TZID, int(off/time.Second)), nil
}
