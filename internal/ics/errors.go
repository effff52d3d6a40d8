package ics

import (
	"errors"
	"fmt"
)

var (
	// ErrIO marks failures to obtain the calendar bytes (missing file,
	// unreadable file, failed fetch with no cached copy).
	ErrIO = errors.New("ics: input unavailable")

	// ErrParse marks malformed calendar data.
	ErrParse = errors.New("ics: malformed calendar")

	// ErrMissingField is matched by every *MissingFieldError.
	ErrMissingField = errors.New("ics: missing required field")
)

// MissingFieldError reports a VEVENT lacking DTSTART, DTEND or SUMMARY.
type MissingFieldError struct {
	UID   string
	Field string
}

func (e *MissingFieldError) Error() string {
	if e.UID == "" {
		return fmt.Sprintf("ics: vevent missing %s", e.Field)
	}
	return fmt.Sprintf("ics: vevent %s missing %s", e.UID, e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}
