package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tzdata "4d63.com/tz"
	"github.com/pkg/errors"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icalcodec/internal/model"
	"icalcodec/internal/tz"
)

const berlinTZID = "/freeassociation.sourceforge.net/Europe/Berlin"

func loadZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := tzdata.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

// helloWorld is the single-event calendar used by the reference scenarios.
func helloWorld(t *testing.T) model.Calendar {
	berlin := loadZone(t, "Europe/Berlin")
	epoch := time.Unix(0, 0).UTC()
	return model.Calendar{
		Events: []model.Event{{
			UID:     "TEST-UID",
			Summary: "Hello World",
			Start:   model.Zoned(model.Local(2020, time.May, 9, 11, 0, 0), berlin),
			End:     mo.Some[model.DateTime](model.Zoned(model.Local(2020, time.May, 9, 12, 0, 0), berlin)),
			Stamp:   epoch,
			Created: mo.Some(epoch),
		}},
	}
}

var helloWorldLines = []string{
	"BEGIN:VCALENDAR",
	"PRODID:-//icalcodec//EN",
	"VERSION:2.0",
	"BEGIN:VEVENT",
	"DTSTAMP:19700101T000000Z",
	"DTSTART;TZID=" + berlinTZID + ":20200509T110000",
	"DTEND;TZID=" + berlinTZID + ":20200509T120000",
	"SUMMARY:Hello World",
	"UID:TEST-UID",
	"TRANSP:OPAQUE",
	"CREATED:19700101T000000Z",
	"END:VEVENT",
	"END:VCALENDAR",
}

func joinCRLF(lines []string) string {
	return strings.Join(lines, crlf) + crlf
}

func TestEncodeHelloWorld(t *testing.T) {
	out, err := NewCodec(tz.NewDatabase()).Encode(helloWorld(t))
	require.NoError(t, err)
	assert.Equal(t, joinCRLF(helloWorldLines), out)
	assert.NotContains(t, out, "VTIMEZONE")
}

func TestEncodeAttendeeLine(t *testing.T) {
	cal := helloWorld(t)
	cal.Events[0].Attendees = []model.Attendee{model.NewAttendee("thomas@bartelmess.io", "Thomas Bartelmess")}

	out, err := NewCodec(tz.NewDatabase()).Encode(cal)
	require.NoError(t, err)

	var want []string
	for _, l := range helloWorldLines {
		want = append(want, l)
		if strings.HasPrefix(l, "CREATED:") {
			want = append(want, "ATTENDEE;CN=Thomas Bartelmess:mailto:thomas@bartelmess.io")
		}
	}
	assert.Equal(t, joinCRLF(want), out)
}

func TestEncodeAttendeeWithoutCommonName(t *testing.T) {
	cal := helloWorld(t)
	cal.Events[0].Attendees = []model.Attendee{model.NewAttendee("mailto:a@example.com", "")}

	out, err := NewCodec(tz.NewDatabase()).Encode(cal)
	require.NoError(t, err)
	assert.Contains(t, out, crlf+"ATTENDEE:mailto:a@example.com"+crlf)
}

func TestEncodeKindPreservation(t *testing.T) {
	berlin := loadZone(t, "Europe/Berlin")
	wall := model.Local(2021, time.July, 1, 8, 30, 0)
	tests := []struct {
		name string
		dt   model.DateTime
		want string
	}{
		{"utc", model.UTC(time.Date(2021, time.July, 1, 8, 30, 0, 0, time.UTC)), "DTSTART:20210701T083000Z"},
		{"zoned", model.Zoned(wall, berlin), "DTSTART;TZID=" + berlinTZID + ":20210701T083000"},
		{"floating", model.Floating(wall), "DTSTART:20210701T083000"},
		{"date", model.DateOf(2021, time.July, 1), "DTSTART;VALUE=DATE:20210701"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := model.NewEvent("kind", tt.dt)
			out, err := NewCodec(tz.NewDatabase()).Encode(model.Calendar{Events: []model.Event{ev}})
			require.NoError(t, err)
			assert.Contains(t, out, crlf+tt.want+crlf)
		})
	}
}

func TestEncodeOptionalFields(t *testing.T) {
	ev := model.NewEvent("Planning, Q3; draft", model.UTC(time.Date(2022, time.January, 3, 10, 0, 0, 0, time.UTC)))
	ev.Description = "Agenda:\n1. budget"
	ev.Location = "Room 4"
	ev.Transparency = model.Transparent
	ev.RecurrenceRule = "FREQ=WEEKLY;COUNT=4"

	out, err := NewCodec(tz.NewDatabase()).Encode(model.Calendar{Events: []model.Event{ev}})
	require.NoError(t, err)

	lines := physicalLines(t, out)
	idx := func(prefix string) int {
		for i, l := range lines {
			if strings.HasPrefix(l, prefix) {
				return i
			}
		}
		t.Fatalf("no line starting with %q in:\n%s", prefix, out)
		return -1
	}
	assert.Equal(t, `SUMMARY:Planning\, Q3\; draft`, lines[idx("SUMMARY:")])
	assert.Equal(t, "TRANSP:TRANSPARENT", lines[idx("TRANSP:")])
	assert.Equal(t, `DESCRIPTION:Agenda:\n1. budget`, lines[idx("DESCRIPTION:")])
	assert.Equal(t, "RRULE:FREQ=WEEKLY;COUNT=4", lines[idx("RRULE:")])
	assert.Less(t, idx("TRANSP:"), idx("DESCRIPTION:"))
	assert.Less(t, idx("DESCRIPTION:"), idx("LOCATION:"))
	assert.Less(t, idx("LOCATION:"), idx("RRULE:"))
	assert.NotContains(t, out, "CREATED:")
	assert.NotContains(t, out, "DTEND")
}

func TestEncodeIncludesTimezones(t *testing.T) {
	cal := helloWorld(t)
	cal.AutoIncludeTimezones = true
	ny := loadZone(t, "America/New_York")
	second := model.NewEvent("second", model.Zoned(model.Local(2020, time.June, 1, 9, 0, 0), ny))
	third := model.NewEvent("third", model.Zoned(model.Local(2019, time.June, 1, 9, 0, 0), loadZone(t, "Europe/Berlin")))
	cal.Events = append(cal.Events, second, third)

	out, err := NewCodec(tz.NewDatabase()).Encode(cal)
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, "BEGIN:VTIMEZONE"), "one block per distinct zone")
	assert.Less(t, strings.Index(out, "BEGIN:VTIMEZONE"), strings.Index(out, "BEGIN:VEVENT"))
	assert.Contains(t, out, crlf+"TZID:"+berlinTZID+crlf)
	assert.Contains(t, out, crlf+"X-LIC-LOCATION:Europe/Berlin"+crlf)
	assert.Contains(t, out, crlf+"TZID:/freeassociation.sourceforge.net/America/New_York"+crlf)
	// Berlin rules come from the earliest referenced year.
	assert.Contains(t, out, crlf+"DTSTART:20190331T020000"+crlf)
	assert.Contains(t, out, crlf+"RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=-1SU"+crlf)
	assert.Contains(t, out, crlf+"TZOFFSETFROM:+0100"+crlf)
	assert.Contains(t, out, crlf+"TZOFFSETTO:+0200"+crlf)
}

func TestEncodeUnknownTimezone(t *testing.T) {
	ev := model.NewEvent("fixed", model.Zoned(model.Local(2020, time.May, 9, 11, 0, 0), time.FixedZone("Custom", 3600)))

	var buf bytes.Buffer
	err := NewCodec(tz.NewDatabase()).EncodeTo(&buf, model.Calendar{Events: []model.Event{ev}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, tz.ErrUnknownTimezone))
	assert.Zero(t, buf.Len(), "no partial output")
}

func TestEncodeRejectsInvalidEvent(t *testing.T) {
	ev := model.NewEvent("no start", nil)
	_, err := NewCodec(tz.NewDatabase()).Encode(model.Calendar{Events: []model.Event{ev}})
	assert.True(t, errors.Is(err, model.ErrMissingStart))
}

func TestEncodeRejectsUnwritableValues(t *testing.T) {
	farStamp := helloWorld(t)
	farStamp.Events[0].Stamp = time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC)

	prefixed := helloWorld(t)
	prefixed.Events[0].Attendees = []model.Attendee{{Address: "MAILTO:x@y.z"}}

	for name, cal := range map[string]model.Calendar{"year 10000": farStamp, "scheme in address": prefixed} {
		t.Run(name, func(t *testing.T) {
			var buf strings.Builder
			err := NewCodec(tz.NewDatabase()).EncodeTo(&buf, cal)
			require.Error(t, err)
			assert.Zero(t, buf.Len())
		})
	}
}

func TestEncodeCustomEnvelope(t *testing.T) {
	cal := helloWorld(t)
	cal.ProductID = "-//Example Corp//Calendar 1.0//EN"
	out, err := NewCodec(tz.NewDatabase()).Encode(cal)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"+crlf+"PRODID:-//Example Corp//Calendar 1.0//EN"+crlf+"VERSION:2.0"+crlf))
}

func TestEncodeFoldsLongLines(t *testing.T) {
	ev := model.NewEvent(strings.Repeat("Lorem ipsum dolor sit amet, ", 10), model.Floating(model.Local(2022, 1, 1, 9, 0, 0)))
	out, err := NewCodec(tz.NewDatabase()).Encode(model.Calendar{Events: []model.Event{ev}})
	require.NoError(t, err)
	for _, l := range physicalLines(t, out) {
		assert.LessOrEqual(t, len(l), maxLineOctets)
	}
}
