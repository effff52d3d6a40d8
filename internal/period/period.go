package period

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// lookback bounds the search for the boundary preceding the reference time.
// It covers yearly schedules with room to spare.
const lookback = 400 * 24 * time.Hour

// Window is a half-open pay period [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Validate checks that expr is a standard 5-field cron expression
// (optionally prefixed with CRON_TZ=...).
func Validate(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("period: invalid schedule %q: %w", expr, err)
	}
	return nil
}

// For returns the pay period containing at. Period boundaries are the
// activation times of the cron expression expr, evaluated in loc unless the
// expression carries its own CRON_TZ.
//
// Examples:
//
//	"0 0 1 * *"  monthly periods starting on the 1st
//	"0 0 * * 1"  weekly periods starting Monday 00:00
func For(expr string, at time.Time, loc *time.Location) (Window, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return Window{}, fmt.Errorf("period: invalid schedule %q: %w", expr, err)
	}
	if loc == nil {
		return Window{}, errors.New("period: nil location")
	}

	at = at.In(loc)
	start := sched.Next(at.Add(-lookback))
	if start.IsZero() || start.After(at) {
		return Window{}, fmt.Errorf("period: schedule %q has no boundary within %s before %s",
			expr, lookback, at.Format(time.RFC3339))
	}

	for {
		end := sched.Next(start)
		if end.IsZero() {
			return Window{}, fmt.Errorf("period: schedule %q has no boundary after %s", expr, start.Format(time.RFC3339))
		}
		if end.After(at) {
			return Window{Start: start, End: end}, nil
		}
		start = end
	}
}
