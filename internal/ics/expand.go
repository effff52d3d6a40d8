package ics

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "shiftwage/internal/log"
	"shiftwage/internal/model"
	"shiftwage/internal/period"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// Window is the pay period an occurrence must start in to be counted.
	Window period.Window

	// MaxOccurrencesPerEvent is a safety cap against unbounded rules. If
	// zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded shifts and the UIDs whose expansion was
// truncated by the cap.
type ExpandResult struct {
	Shifts          []model.Shift
	TruncatedEvents []string
}

// Shifts converts events one-to-one into shifts without expanding
// recurrence rules. Every VEVENT in the document counts exactly once.
func Shifts(events []Event) []model.Shift {
	out := make([]model.Shift, 0, len(events))
	for _, ev := range events {
		out = append(out, makeShift(ev, ev.Start, ev.End, ""))
	}
	return out
}

// Expand turns events into concrete shifts that start inside the configured
// window. It handles:
//
//   - single non-recurring events
//   - RRULE-based recurrence
//   - EXDATE exception removal
//   - RECURRENCE-ID overrides
//
// Output order follows the input order of base events, then occurrence time.
// Overrides whose UID matches no base event come last, in document order.
func Expand(events []Event, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if !cfg.Window.End.After(cfg.Window.Start) {
		return result, errors.New("expand: window end must be after its start")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Overrides are grouped by UID; base events keep document order.
	overridesByUID := make(map[string][]Event)
	baseUIDs := make(map[string]bool)
	bases := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
		baseUIDs[ev.UID] = true
	}

	shifts := make([]model.Shift, 0, len(bases))
	for _, ev := range bases {
		ov := overridesByUID[ev.UID]

		if ev.RawRRule == "" {
			shifts = append(shifts, expandSingleEvent(ev, ov, cfg)...)
			continue
		}

		occ, hitCap, err := expandRecurringEvent(ev, ov, cfg)
		if err != nil {
			return ExpandResult{}, err
		}
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", ev.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
		shifts = append(shifts, occ...)
	}

	// Overrides whose series is missing count as stand-alone shifts.
	for _, ev := range events {
		if !ev.IsOverride || ev.Recurrence == nil || baseUIDs[ev.UID] {
			continue
		}
		appLog.Info("override has no base event; counting it as a single shift",
			"uid", ev.UID,
			"employee", ev.Summary,
		)
		if inWindow(ev.Start, cfg) {
			shifts = append(shifts, makeShift(ev, ev.Start, ev.End, ev.Recurrence.Format(time.RFC3339)))
		}
	}

	result.Shifts = shifts
	return result, nil
}

func expandSingleEvent(ev Event, overrides []Event, cfg ExpandConfig) []model.Shift {
	start, end := ev.Start, ev.End
	if o, ok := findOverrideForStart(overrides, start); ok {
		start, end = o.Start, o.End
		ev = o
	}
	if !inWindow(start, cfg) {
		return nil
	}
	return []model.Shift{makeShift(ev, start, end, "")}
}

func expandRecurringEvent(ev Event, overrides []Event, cfg ExpandConfig) ([]model.Shift, bool, error) {
	out := make([]model.Shift, 0)
	hitCap := false

	// DTSTART goes into the options before the rule is built so that
	// defaults such as the weekday of a bare FREQ=WEEKLY derive from it.
	opt, err := rrule.StrToROption(ev.RawRRule)
	if err != nil {
		return nil, false, fmt.Errorf("%w: RRULE of %q: %v", ErrParse, ev.UID, err)
	}
	opt.Dtstart = ev.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, false, fmt.Errorf("%w: RRULE of %q: %v", ErrParse, ev.UID, err)
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Between is inclusive on both ends; the final start is re-checked below.
	// An override may move an instance into the window from a slot on
	// either side of it, so the search covers every overridden slot.
	dur := ev.End.Sub(ev.Start)
	rangeStart := cfg.Window.Start.In(ev.Start.Location())
	rangeEnd := cfg.Window.End.In(ev.Start.Location())
	if len(overrides) > 0 {
		rangeStart = earliestRecurrence(overrides, rangeStart)
		rangeEnd = latestRecurrence(overrides, rangeEnd)
	}

	occTimes := set.Between(rangeStart, rangeEnd, true)

	for _, occStart := range occTimes {
		occEnd := occStart.Add(dur)
		baseEv := ev
		key := occStart.Format(time.RFC3339)

		if o, ok := findOverrideForStart(overrides, occStart); ok {
			occStart, occEnd = o.Start, o.End
			baseEv = o
		}
		if !inWindow(occStart, cfg) {
			continue
		}
		if len(out) == cfg.MaxOccurrencesPerEvent {
			hitCap = true
			break
		}
		out = append(out, makeShift(baseEv, occStart, occEnd, key))
	}

	return out, hitCap, nil
}

// findOverrideForStart finds an override whose RECURRENCE-ID is the same
// instant as start.
func findOverrideForStart(overrides []Event, start time.Time) (Event, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return Event{}, false
}

func earliestRecurrence(overrides []Event, t time.Time) time.Time {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Before(t) {
			t = ov.Recurrence.In(t.Location())
		}
	}
	return t
}

func latestRecurrence(overrides []Event, t time.Time) time.Time {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.After(t) {
			t = ov.Recurrence.In(t.Location())
		}
	}
	return t
}

func inWindow(t time.Time, cfg ExpandConfig) bool {
	return cfg.Window.Contains(t)
}

func makeShift(ev Event, start, end time.Time, instanceKey string) model.Shift {
	return model.Shift{
		Employee:    ev.Summary,
		UID:         ev.UID,
		InstanceKey: instanceKey,
		Start:       start,
		End:         end,
		Duration:    end.Sub(start),
	}
}
