package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// ErrNonexistentLocalTime is returned when a wall clock time falls into a
// transition gap of its zone (for example 02:30 on a spring-forward day).
var ErrNonexistentLocalTime = errors.New("model: local time does not exist in zone")

// Kind identifies the active variant of a DateTime.
type Kind int

const (
	KindUTC Kind = iota
	KindZoned
	KindFloating
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindUTC:
		return "utc"
	case KindZoned:
		return "zoned"
	case KindFloating:
		return "floating"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DateTime is a closed union over UTCTime, ZonedTime, FloatingTime and Date.
// Only types in this package implement it; consumers switch on the concrete
// type and must handle every variant.
type DateTime interface {
	Kind() Kind
	isDateTime()
}

// LocalTime is a wall clock reading without any zone attached.
type LocalTime struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
}

// LocalOf returns the wall clock reading of t in its own location.
func LocalOf(t time.Time) LocalTime {
	return LocalTime{
		Year:   t.Year(),
		Month:  t.Month(),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

func (l LocalTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", l.Year, int(l.Month), l.Day, l.Hour, l.Minute, l.Second)
}

// naive interprets the wall clock as if it were UTC.
func (l LocalTime) naive() time.Time {
	return time.Date(l.Year, l.Month, l.Day, l.Hour, l.Minute, l.Second, 0, time.UTC)
}

// Valid reports whether every field is in range (no normalization needed)
// and the year fits the four-digit wire form.
func (l LocalTime) Valid() bool {
	return l.Year >= 0 && l.Year <= 9999 && LocalOf(l.naive()) == l
}

// In converts the wall clock to an instant in loc.
//
// Policy for zone transitions:
//   - overlap (the wall clock occurs twice): the earliest instant wins, i.e.
//     the offset that was in effect before the transition.
//   - gap (the wall clock never occurs): ErrNonexistentLocalTime.
func (l LocalTime) In(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	naive := l.naive()

	// Offsets in effect around the wall clock. Real transitions are never
	// closer together than this window.
	offsets := make(map[int]struct{}, 3)
	for _, probe := range []time.Duration{-36 * time.Hour, 0, 36 * time.Hour} {
		_, off := naive.Add(probe).In(loc).Zone()
		offsets[off] = struct{}{}
	}

	candidates := make([]time.Time, 0, len(offsets))
	for off := range offsets {
		t := naive.Add(-time.Duration(off) * time.Second).In(loc)
		if LocalOf(t) == l {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return time.Time{}, errors.Wrapf(ErrNonexistentLocalTime, "%s in %s", l, loc)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })
	return candidates[0], nil
}

// UTCTime is an absolute instant, serialized with a trailing Z.
type UTCTime struct {
	Time time.Time
}

// UTC returns a UTCTime for t. The instant is kept; only the location is
// normalized to UTC and sub-second precision is dropped.
func UTC(t time.Time) UTCTime {
	return UTCTime{Time: t.UTC().Truncate(time.Second)}
}

func (UTCTime) Kind() Kind  { return KindUTC }
func (UTCTime) isDateTime() {}

// ZonedTime is a wall clock bound to a zone that is referenced by TZID.
type ZonedTime struct {
	Local    LocalTime
	Location *time.Location
}

// Zoned returns the ZonedTime for a wall clock in loc.
func Zoned(local LocalTime, loc *time.Location) ZonedTime {
	return ZonedTime{Local: local, Location: loc}
}

func (ZonedTime) Kind() Kind  { return KindZoned }
func (ZonedTime) isDateTime() {}

// Instant resolves the wall clock in its zone; see LocalTime.In.
func (z ZonedTime) Instant() (time.Time, error) {
	return z.Local.In(z.Location)
}

// ZoneName is the Olson name of the zone, or "" when no location is set.
func (z ZonedTime) ZoneName() string {
	if z.Location == nil {
		return ""
	}
	return z.Location.String()
}

// FloatingTime is a wall clock with no zone; it means the same wall clock
// everywhere.
type FloatingTime struct {
	Local LocalTime
}

func Floating(local LocalTime) FloatingTime {
	return FloatingTime{Local: local}
}

func (FloatingTime) Kind() Kind  { return KindFloating }
func (FloatingTime) isDateTime() {}

// Date is a calendar day without a time of day (VALUE=DATE).
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

func (Date) Kind() Kind  { return KindDate }
func (Date) isDateTime() {}

// Valid reports whether the date exists in the proleptic Gregorian calendar.
func (d Date) Valid() bool {
	if d.Year < 0 || d.Year > 9999 {
		return false
	}
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return t.Year() == d.Year && t.Month() == d.Month && t.Day() == d.Day
}

// Local returns a wall clock at the given time of day.
func Local(year int, month time.Month, day, hour, minute, second int) LocalTime {
	return LocalTime{Year: year, Month: month, Day: day, Hour: hour, Minute: minute, Second: second}
}

// Equal compares two date-time values with kind awareness:
//   - UTC and zoned values are equal when they denote the same instant;
//   - two zoned values in the same zone compare by wall clock;
//   - floating values only equal floating values with the same wall clock;
//   - dates only equal dates.
func Equal(a, b DateTime) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case UTCTime:
		switch bv := b.(type) {
		case UTCTime:
			return sameSecond(av.Time, bv.Time)
		case ZonedTime:
			return instantEqual(av.Time, bv)
		}
		return false
	case ZonedTime:
		switch bv := b.(type) {
		case UTCTime:
			return instantEqual(bv.Time, av)
		case ZonedTime:
			if av.ZoneName() == bv.ZoneName() {
				return av.Local == bv.Local
			}
			at, aerr := av.Instant()
			bt, berr := bv.Instant()
			return aerr == nil && berr == nil && at.Equal(bt)
		}
		return false
	case FloatingTime:
		bv, ok := b.(FloatingTime)
		return ok && av.Local == bv.Local
	case Date:
		bv, ok := b.(Date)
		return ok && av == bv
	default:
		panic(fmt.Sprintf("model: unhandled DateTime %T", a))
	}
}

func instantEqual(t time.Time, z ZonedTime) bool {
	zt, err := z.Instant()
	return err == nil && sameSecond(zt, t)
}

// sameSecond compares two instants at the precision of a DATE-TIME literal.
func sameSecond(a, b time.Time) bool {
	return a.Truncate(time.Second).Equal(b.Truncate(time.Second))
}
