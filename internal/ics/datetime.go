package ics

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"icalcodec/internal/model"
)

const (
	layoutUTC      = "20060102T150405Z"
	layoutLocal    = "20060102T150405"
	layoutDate     = "20060102"
	paramTZID      = "TZID"
	paramValue     = "VALUE"
	paramCN        = "CN"
	valueTypeDate  = "DATE"
	mailtoScheme   = "mailto:"
	localLiteralSz = len(layoutLocal)
)

func formatLocal(l model.LocalTime) string {
	return fmt.Sprintf("%04d%02d%02dT%02d%02d%02d", l.Year, int(l.Month), l.Day, l.Hour, l.Minute, l.Second)
}

func formatUTC(t time.Time) string {
	return t.UTC().Format(layoutUTC)
}

func formatDate(d model.Date) string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}

func formatOffset(d time.Duration) string {
	sign := '+'
	if d < 0 {
		sign = '-'
		d = -d
	}
	secs := int(d / time.Second)
	h, m, s := secs/3600, secs/60%60, secs%60
	if s != 0 {
		return fmt.Sprintf("%c%02d%02d%02d", sign, h, m, s)
	}
	return fmt.Sprintf("%c%02d%02d", sign, h, m)
}

// dateTimeProperty renders a date-time value. tzid is the canonical
// identifier for zoned values and ignored otherwise.
func dateTimeProperty(name string, dt model.DateTime, tzid string) Property {
	switch v := dt.(type) {
	case model.UTCTime:
		return Property{Name: name, Value: formatUTC(v.Time)}
	case model.ZonedTime:
		return Property{
			Name:   name,
			Params: []Param{{Name: paramTZID, Values: []string{tzid}}},
			Value:  formatLocal(v.Local),
		}
	case model.FloatingTime:
		return Property{Name: name, Value: formatLocal(v.Local)}
	case model.Date:
		return Property{
			Name:   name,
			Params: []Param{{Name: paramValue, Values: []string{valueTypeDate}}},
			Value:  formatDate(v),
		}
	default:
		panic(fmt.Sprintf("ics: unhandled DateTime %T", dt))
	}
}

// parseLocal parses YYYYMMDDTHHMMSS strictly.
func parseLocal(s string) (model.LocalTime, error) {
	if len(s) != localLiteralSz || !allDigits(s[:8]) || s[8] != 'T' || !allDigits(s[9:]) {
		return model.LocalTime{}, errors.Wrapf(ErrInvalidDateTime, "%q is not YYYYMMDDTHHMMSS", s)
	}
	t, err := time.Parse(layoutLocal, s)
	if err != nil {
		return model.LocalTime{}, errors.Wrapf(ErrInvalidDateTime, "%q: %v", s, err)
	}
	return model.LocalOf(t), nil
}

func parseUTC(s string) (time.Time, error) {
	if len(s) != localLiteralSz+1 || s[len(s)-1] != 'Z' {
		return time.Time{}, errors.Wrapf(ErrInvalidDateTime, "%q is not YYYYMMDDTHHMMSSZ", s)
	}
	if _, err := parseLocal(s[:localLiteralSz]); err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(layoutUTC, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidDateTime, "%q: %v", s, err)
	}
	return t.UTC(), nil
}

func parseDate(s string) (model.Date, error) {
	if len(s) != len(layoutDate) || !allDigits(s) {
		return model.Date{}, errors.Wrapf(ErrInvalidDateTime, "%q is not YYYYMMDD", s)
	}
	t, err := time.Parse(layoutDate, s)
	if err != nil {
		return model.Date{}, errors.Wrapf(ErrInvalidDateTime, "%q: %v", s, err)
	}
	return model.DateOf(t.Year(), t.Month(), t.Day()), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// parseDateTime picks the kind from the literal and parameters:
//   - trailing Z: UTC instant (a TZID parameter is ignored);
//   - VALUE=DATE or an 8-digit literal: date;
//   - TZID parameter: zoned, the location comes from zone;
//   - otherwise floating.
func parseDateTime(rec Record, zone func(tzid string, local model.LocalTime) (*time.Location, error)) (model.DateTime, error) {
	raw := strings.TrimSpace(rec.Raw)

	if strings.HasSuffix(raw, "Z") {
		t, err := parseUTC(raw)
		if err != nil {
			return nil, err
		}
		return model.UTC(t), nil
	}

	if vt, ok := rec.Param(paramValue); (ok && strings.EqualFold(vt, valueTypeDate)) || len(raw) == len(layoutDate) {
		d, err := parseDate(raw)
		if err != nil {
			return nil, err
		}
		return d, nil
	}

	local, err := parseLocal(raw)
	if err != nil {
		return nil, err
	}
	if tzid, ok := rec.Param(paramTZID); ok {
		loc, err := zone(tzid, local)
		if err != nil {
			return nil, err
		}
		return model.Zoned(local, loc), nil
	}
	return model.Floating(local), nil
}
