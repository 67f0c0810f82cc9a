package model

import (
	"fmt"
	"time"
)

// DateLayout is the civil date format used across the engine and its storage
const DateLayout = "2006-01-02"

// ParseDate parses a civil date and normalises it to UTC midnight
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// MustDate is ParseDate for literals in fixtures and tests
func MustDate(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// NormalizeDate drops the time of day and location, keeping the calendar date
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey renders a date as a map key
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// DaysBetween returns the whole number of days from a to b (negative if b is before a)
func DaysBetween(a, b time.Time) int {
	return int(NormalizeDate(b).Sub(NormalizeDate(a)).Hours() / 24)
}

// Weekday is an ISO day of week: 1 = Monday ... 7 = Sunday
type Weekday int

// ISO weekdays
const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// WeekdayOf returns the ISO weekday of a date
func WeekdayOf(t time.Time) Weekday {
	wd := t.Weekday()
	if wd == time.Sunday {
		return Sunday
	}
	return Weekday(wd)
}

// IsValid reports whether the weekday is within 1..7
func (w Weekday) IsValid() bool {
	return w >= Monday && w <= Sunday
}

// Next returns the following weekday, wrapping Sunday to Monday
func (w Weekday) Next() Weekday {
	if w == Sunday {
		return Monday
	}
	return w + 1
}

// DateRange is an inclusive range of civil dates
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange builds a normalised range from two dates
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: NormalizeDate(start), End: NormalizeDate(end)}
}

// ParseDateRange parses two civil dates into a range
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{Start: s, End: e}, nil
}

// Validate rejects zero and inverted ranges
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("date range must have both a start and an end")
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("date range end %s is before start %s", DateKey(r.End), DateKey(r.Start))
	}
	return nil
}

// Days returns every date in the range in order
func (r DateRange) Days() []time.Time {
	var days []time.Time
	if r.Validate() != nil {
		return days
	}
	for d := NormalizeDate(r.Start); !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Contains reports whether the date falls inside the range
func (r DateRange) Contains(t time.Time) bool {
	d := NormalizeDate(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Overlaps reports whether two ranges share at least one date
func (r DateRange) Overlaps(other DateRange) bool {
	return !r.End.Before(other.Start) && !other.End.Before(r.Start)
}

// Expand widens the range by the given number of days on each side
func (r DateRange) Expand(days int) DateRange {
	return DateRange{Start: r.Start.AddDate(0, 0, -days), End: r.End.AddDate(0, 0, days)}
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", DateKey(r.Start), DateKey(r.End))
}
