// Package timeutil provides calendar-date utilities for the nudge engine.
// Engine decisions are made on whole days in the campus timezone, so the
// package works with Date values that carry no time-of-day.
package timeutil

import (
	"fmt"
	"time"
)

// Common date formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatWeekdayMonthDay is the human-readable format used in message bodies.
	FormatWeekdayMonthDay = "Monday, January 2"
)

// DefaultLocation is used when no campus timezone is configured.
var DefaultLocation = time.UTC

// Date is a calendar date without a time of day.
// The zero value represents "no date".
type Date struct {
	t time.Time
}

// NewDate creates a Date for the given year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if t.IsZero() {
		return Date{}
	}
	if loc == nil {
		loc = DefaultLocation
	}
	local := t.In(loc)
	return NewDate(local.Year(), local.Month(), local.Day())
}

// Today returns the current calendar date in loc.
func Today(loc *time.Location) Date {
	return DateOf(time.Now(), loc)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(FormatDate, value)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

// MustParseDate is like ParseDate but panics on error. Intended for tests and constants.
func MustParseDate(value string) Date {
	d, err := ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Time returns midnight UTC of d, suitable for storing in a DATE column.
func (d Date) Time() time.Time { return d.t }

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool { return d.t.After(other.t) }

// Equal reports whether d and other are the same day.
func (d Date) Equal(other Date) bool { return d.t.Equal(other.t) }

// DaysUntil returns the signed number of days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.t.Sub(d.t).Hours() / 24)
}

// DaysSince returns the signed number of days from other to d.
func (d Date) DaysSince(other Date) int {
	return other.DaysUntil(d)
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(FormatDate)
}

// Format formats d with the given time layout.
func (d Date) Format(layout string) string {
	return d.t.Format(layout)
}

// WeekdayName returns the English weekday name of d.
func (d Date) WeekdayName() string {
	return d.t.Weekday().String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// IsWeekend checks if the date falls on Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// AdvanceSkippingWeekend walks forward the given number of steps, where a
// Friday step advances three days, a Saturday step two days and any other
// step one day. The result is the end of a window of `steps` class days.
func (d Date) AdvanceSkippingWeekend(steps int) Date {
	out := d
	for i := 0; i < steps; i++ {
		switch out.Weekday() {
		case time.Friday:
			out = out.AddDays(3)
		case time.Saturday:
			out = out.AddDays(2)
		default:
			out = out.AddDays(1)
		}
	}
	return out
}

// WeekdaysBetween counts the Monday-Friday days in [from, to).
// Returns 0 when from is not before to.
func WeekdaysBetween(from, to Date) int {
	count := 0
	for cur := from; cur.Before(to); cur = cur.AddDays(1) {
		if !cur.IsWeekend() {
			count++
		}
	}
	return count
}

// LoadLocation loads a timezone by IANA name, falling back to DefaultLocation
// for an empty name.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return DefaultLocation, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}
