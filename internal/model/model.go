package model

import "time"

// Shift is a single concrete block of work credited to one employee: either a
// plain VEVENT or one occurrence of a recurring VEVENT.
type Shift struct {
	// Employee is the VEVENT SUMMARY, used verbatim as the grouping key.
	Employee string
	UID      string

	// InstanceKey identifies one occurrence of a recurring event. Empty for
	// shifts taken straight from the calendar without expansion.
	InstanceKey string

	Start time.Time
	End   time.Time

	// Duration is End - Start. Reported in debug logs only; wages are
	// derived from whole epoch seconds.
	Duration time.Duration
}

// Entry is one line item of the wage summary.
type Entry struct {
	Employee string
	Total    float64
	Hours    float64
	Shifts   int
}
