package ics

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "shiftwage/internal/log"
)

const (
	layoutUTC   = "20060102T150405Z"
	layoutLocal = "20060102T150405"
	layoutDate  = "20060102"
)

// Event is the normalized representation of a VEVENT. Recurrence expansion
// operates on this type.
type Event struct {
	UID     string
	Summary string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, if present
	IsOverride bool       // true if this VEVENT replaces one instance of a recurring event
}

// Parse parses an ICS payload and returns its VEVENTs in document order.
//
// Date-times with neither a UTC suffix nor a resolvable TZID ("floating"
// values) and all-day dates are interpreted in loc. Any VEVENT without
// DTSTART, DTEND or SUMMARY aborts the whole parse with a *MissingFieldError.
func Parse(body []byte, loc *time.Location) ([]Event, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrParse)
	}
	if loc == nil {
		return nil, fmt.Errorf("ics: nil location")
	}

	if !endsCalendar(body) {
		return nil, fmt.Errorf("%w: missing END:VCALENDAR (truncated input?)", ErrParse)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	vevents := cal.Events()
	events := make([]Event, 0, len(vevents))
	allDay := 0
	for _, ve := range vevents {
		ev, err := parseVEvent(ve, loc)
		if err != nil {
			return nil, err
		}
		if ev.AllDay {
			allDay++
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed",
		"event_count", len(events),
		"all_day", allDay,
		"location", loc.String(),
	)
	return events, nil
}

// endsCalendar reports whether the last non-blank line closes the VCALENDAR.
// The parser accepts a document cut right after a component, which would
// otherwise yield a report over part of the file.
func endsCalendar(body []byte) bool {
	trimmed := bytes.TrimRight(body, " \t\r\n")
	last := trimmed[bytes.LastIndexByte(trimmed, '\n')+1:]
	return strings.EqualFold(string(bytes.TrimSpace(last)), "END:VCALENDAR")
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (Event, error) {
	var out Event

	// UID is optional here; it only labels errors and groups overrides.
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, &MissingFieldError{UID: out.UID, Field: string(ical.ComponentPropertyDtStart)}
	}
	dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd)
	if dtEnd == nil {
		return out, &MissingFieldError{UID: out.UID, Field: string(ical.ComponentPropertyDtEnd)}
	}
	summary := ve.GetProperty(ical.ComponentPropertySummary)
	if summary == nil {
		return out, &MissingFieldError{UID: out.UID, Field: string(ical.ComponentPropertySummary)}
	}
	out.Summary = summary.Value

	start, allDay, err := parseValue(dtStart.Value, dtStart.ICalParameters, loc)
	if err != nil {
		return out, fmt.Errorf("%w: DTSTART of %q: %v", ErrParse, out.UID, err)
	}
	end, _, err := parseValue(dtEnd.Value, dtEnd.ICalParameters, loc)
	if err != nil {
		return out, fmt.Errorf("%w: DTEND of %q: %v", ErrParse, out.UID, err)
	}
	out.Start = start
	out.End = end
	out.AllDay = allDay

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	// EXDATE can appear multiple times, each with a comma-separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, _, err := parseValue(part, p.ICalParameters, loc)
			if err != nil {
				return out, fmt.Errorf("%w: EXDATE of %q: %v", ErrParse, out.UID, err)
			}
			out.ExDates = append(out.ExDates, t)
		}
	}

	// Raw property name to avoid constant mismatch across library versions.
	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		t, _, err := parseValue(p.Value, p.ICalParameters, loc)
		if err != nil {
			return out, fmt.Errorf("%w: RECURRENCE-ID of %q: %v", ErrParse, out.UID, err)
		}
		out.Recurrence = &t
		out.IsOverride = true
	}

	return out, nil
}

// parseValue converts a DATE or DATE-TIME value into an instant. It returns
// whether the value was a plain DATE.
//
//   - 20250101T090000Z            UTC
//   - TZID=Europe/Rome:20250101T090000  wall clock in that zone
//   - 20250101T090000             floating, wall clock in loc
//   - 20250101 / VALUE=DATE       midnight in the TZID zone or loc
//
// A TZID that the zone database does not know (e.g. Windows zone names)
// falls back to loc.
func parseValue(v string, params map[string][]string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, fmt.Errorf("empty time value")
	}

	zone := loc
	if tzs, ok := params["TZID"]; ok && len(tzs) > 0 {
		tz, err := time.LoadLocation(tzs[0])
		if err != nil {
			appLog.Debug("unknown TZID; using configured location", "tzid", tzs[0], "location", loc.String())
		} else {
			zone = tz
		}
	}

	isDate := !strings.Contains(v, "T")
	if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		isDate = true
	}

	switch {
	case isDate:
		t, err := time.ParseInLocation(layoutDate, v, zone)
		return t, true, err
	case strings.HasSuffix(v, "Z"):
		t, err := time.Parse(layoutUTC, v)
		return t, false, err
	default:
		t, err := time.ParseInLocation(layoutLocal, v, zone)
		return t, false, err
	}
}
