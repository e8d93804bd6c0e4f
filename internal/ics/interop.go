package ics

import (
	"sort"
	"strings"

	golangical "github.com/arran4/golang-ical"
	"github.com/emersion/go-ical"
	"github.com/pkg/errors"

	"icalcodec/internal/model"
)

// ErrInteropMismatch reports that an independent parser read the text
// differently from the decoded calendar.
var ErrInteropMismatch = errors.New("ics: interop mismatch")

// CrossCheck parses text with two independent iCalendar parsers and compares
// what they see against cal: event count, UIDs, summaries and attendee
// addresses.
func CrossCheck(text string, cal model.Calendar) error {
	if err := checkGolangICal(text, cal); err != nil {
		return errors.Wrap(err, "golang-ical")
	}
	if err := checkEmersion(text, cal); err != nil {
		return errors.Wrap(err, "go-ical")
	}
	return nil
}

func checkGolangICal(text string, cal model.Calendar) error {
	parsed, err := golangical.ParseCalendar(strings.NewReader(text))
	if err != nil {
		return errors.Wrapf(ErrInteropMismatch, "parse: %v", err)
	}
	events := parsed.Events()
	if len(events) != len(cal.Events) {
		return errors.Wrapf(ErrInteropMismatch, "event count %d, want %d", len(events), len(cal.Events))
	}

	for i, ve := range events {
		want := cal.Events[i]
		uid := ve.GetProperty(golangical.ComponentPropertyUniqueId)
		if uid == nil {
			return errors.Wrapf(ErrInteropMismatch, "event %d: no UID", i)
		}
		// Older releases hand back TEXT values still escaped.
		if uid.Value != want.UID && uid.Value != EscapeText(want.UID) {
			return errors.Wrapf(ErrInteropMismatch, "event %d: UID %q, want %q", i, uid.Value, want.UID)
		}

		var got []string
		for _, a := range ve.Attendees() {
			got = append(got, strings.ToLower(model.TrimMailto(a.Email())))
		}
		if err := sameAddresses(got, want.Attendees); err != nil {
			return errors.Wrapf(err, "event %d", i)
		}
	}
	return nil
}

func checkEmersion(text string, cal model.Calendar) error {
	parsed, err := ical.NewDecoder(strings.NewReader(text)).Decode()
	if err != nil {
		return errors.Wrapf(ErrInteropMismatch, "parse: %v", err)
	}
	events := parsed.Events()
	if len(events) != len(cal.Events) {
		return errors.Wrapf(ErrInteropMismatch, "event count %d, want %d", len(events), len(cal.Events))
	}

	for i, ev := range events {
		want := cal.Events[i]
		uid, err := ev.Props.Text(ical.PropUID)
		if err != nil || uid != want.UID {
			return errors.Wrapf(ErrInteropMismatch, "event %d: UID %q, want %q", i, uid, want.UID)
		}
		summary, err := ev.Props.Text(ical.PropSummary)
		if err != nil || summary != want.Summary {
			return errors.Wrapf(ErrInteropMismatch, "event %d: SUMMARY %q, want %q", i, summary, want.Summary)
		}

		var got []string
		for _, p := range ev.Props.Values(ical.PropAttendee) {
			got = append(got, strings.ToLower(model.TrimMailto(p.Value)))
		}
		if err := sameAddresses(got, want.Attendees); err != nil {
			return errors.Wrapf(err, "event %d", i)
		}
	}
	return nil
}

func sameAddresses(got []string, want []model.Attendee) error {
	exp := make([]string, 0, len(want))
	for _, a := range want {
		exp = append(exp, strings.ToLower(model.TrimMailto(a.Address)))
	}
	sort.Strings(got)
	sort.Strings(exp)
	if strings.Join(got, ",") != strings.Join(exp, ",") {
		return errors.Wrapf(ErrInteropMismatch, "attendees %v, want %v", got, exp)
	}
	return nil
}
