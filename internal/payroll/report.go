package payroll

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"shiftwage/internal/ics"
	appLog "shiftwage/internal/log"
	"shiftwage/internal/model"
	"shiftwage/internal/period"
)

// Options configures a single report run.
type Options struct {
	// Input is a calendar file path or an http(s) URL.
	Input string

	HourlyRate float64

	// Location interprets floating date-times and evaluates Period. Required.
	Location *time.Location

	Order Order

	// Period is a cron expression whose activations delimit pay periods.
	// Empty means every VEVENT in the calendar counts once, unexpanded.
	Period string
	// At picks the pay period to report on. Zero means now.
	At time.Time

	MaxOccurrences int

	// Fetcher serves URL inputs. May be nil for file inputs.
	Fetcher *ics.Fetcher
}

// Report is the result of one run.
type Report struct {
	Entries []model.Entry
	Shifts  int
	// Window is set when the report covers a single pay period.
	Window *period.Window
	// Truncated lists the UIDs whose expansion stopped at MaxOccurrences.
	Truncated []string
}

// Generate reads the configured calendar and builds the wage report.
func Generate(ctx context.Context, opts Options) (*Report, error) {
	body, err := ics.Load(ctx, opts.Input, opts.Fetcher)
	if err != nil {
		return nil, err
	}
	return FromCalendar(body, opts)
}

// FromCalendar builds the wage report from raw ICS bytes.
func FromCalendar(body []byte, opts Options) (*Report, error) {
	if opts.Location == nil {
		return nil, errors.New("payroll: location is required")
	}
	if opts.HourlyRate == 0 {
		opts.HourlyRate = DefaultHourlyRate
	}

	events, err := ics.Parse(body, opts.Location)
	if err != nil {
		return nil, err
	}

	report := &Report{}

	var shifts []model.Shift
	if opts.Period == "" {
		shifts = ics.Shifts(events)
	} else {
		at := opts.At
		if at.IsZero() {
			at = time.Now()
		}
		w, err := period.For(opts.Period, at, opts.Location)
		if err != nil {
			return nil, err
		}
		report.Window = &w

		res, err := ics.Expand(events, ics.ExpandConfig{
			Window:                 w,
			MaxOccurrencesPerEvent: opts.MaxOccurrences,
		})
		if err != nil {
			return nil, err
		}
		shifts = res.Shifts
		report.Truncated = res.TruncatedEvents

		appLog.Debug("pay period expanded",
			"start", w.Start.Format(time.RFC3339),
			"end", w.End.Format(time.RFC3339),
			"events", len(events),
			"shifts", len(shifts),
		)
	}

	ledger := NewLedger(opts.HourlyRate)
	for _, s := range shifts {
		wage := ledger.Add(s)
		if s.End.Before(s.Start) {
			appLog.Info("shift ends before it starts; wage is negative", "employee", s.Employee, "uid", s.UID)
		}
		running, _ := ledger.Total(s.Employee)
		appLog.Debug("shift",
			"employee", s.Employee,
			"duration", s.Duration,
			"hours", Hours(s.Start, s.End),
			"wage", FormatAmount(wage),
			"running_total", FormatAmount(running),
		)
	}
	appLog.Debug("ledger built", "employees", ledger.Len(), "shifts", len(shifts))

	report.Entries = ledger.Entries(opts.Order)
	report.Shifts = len(shifts)
	return report, nil
}

// Line renders the summary as "<employee> <total>; " per entry.
func (r *Report) Line() string {
	var b strings.Builder
	for _, e := range r.Entries {
		b.WriteString(e.Employee)
		b.WriteByte(' ')
		b.WriteString(FormatAmount(e.Total))
		b.WriteString("; ")
	}
	return b.String()
}

// WriteTo writes Line followed by a newline.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, r.Line()+"\n")
	return int64(n), err
}
