package service

import (
	"fmt"
	"time"
)

const bookingDateLayout = "2006-01-02"

// normalizeDate truncates a timestamp to a UTC calendar date. All booking
// comparisons are date-only; time-of-day never matters.
func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// parseBookingDate parses the wire date format into a UTC calendar date.
func parseBookingDate(raw string) (time.Time, error) {
	parsed, err := time.Parse(bookingDateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse booking date %q: %w", raw, err)
	}
	return normalizeDate(parsed), nil
}

// isWeekday reports whether the date falls Monday through Friday.
func isWeekday(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// combineDateTime merges a calendar date with an "HH:MM" wall-clock string,
// producing the concrete instant used for calendar events.
func combineDateTime(date time.Time, hhmm string) (time.Time, error) {
	clock, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse period time %q: %w", hhmm, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC), nil
}
