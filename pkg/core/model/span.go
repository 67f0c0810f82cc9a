package model

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the length of one calendar day in minutes
const MinutesPerDay = 24 * 60

// ClockTime is a time of day expressed as minutes since midnight (0..1440).
// 1440 is allowed so that a window can end at "24:00".
type ClockTime int

// ParseClockTime parses "HH:MM" or "HH:MM:SS" into a ClockTime.
// Seconds are accepted for compatibility with database TIME columns but must be zero.
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock time %q: expected HH:MM", s)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if len(parts) == 3 {
		seconds, err := strconv.Atoi(parts[2])
		if err != nil || seconds != 0 {
			return 0, fmt.Errorf("invalid clock time %q: seconds must be 00", s)
		}
	}

	if minutes < 0 || minutes > 59 || hours < 0 || hours > 24 || (hours == 24 && minutes != 0) {
		return 0, fmt.Errorf("invalid clock time %q: out of range", s)
	}

	return ClockTime(hours*60 + minutes), nil
}

// MustClockTime is ParseClockTime for literals in fixtures and tests
func MustClockTime(s string) ClockTime {
	t, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

// String renders the clock time as HH:MM
func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalText implements encoding.TextMarshaler
func (t ClockTime) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Span is a half-open interval [Start, End) of minutes on a multi-day axis.
//
// The axis origin is whatever day the caller picks (a shift's own start date,
// or the first day of a planning window); minute 0 is midnight of that day and
// minute 1440 is midnight of the following day. Cross-midnight shifts are
// therefore plain spans with End > 1440 and never need string comparisons.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NewSpan builds a span from two clock times on the same origin day.
// When crossDay is set, or end is not after start, the end is moved onto the next day.
func NewSpan(start, end ClockTime, crossDay bool) Span {
	s := Span{Start: int(start), End: int(end)}
	if crossDay || s.End <= s.Start {
		s.End += MinutesPerDay
	}
	return s
}

// Duration returns the span length in minutes
func (s Span) Duration() int {
	return s.End - s.Start
}

// IsEmpty reports whether the span covers no time
func (s Span) IsEmpty() bool {
	return s.End <= s.Start
}

// Overlaps reports whether two spans share any minute. Touching spans do not overlap.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// Contains reports whether other lies entirely within s
func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

// Intersect returns the common part of two spans (empty if they do not overlap)
func (s Span) Intersect(other Span) Span {
	return Span{Start: max(s.Start, other.Start), End: min(s.End, other.End)}
}

// ShiftDays moves the span by a whole number of days along the axis
func (s Span) ShiftDays(days int) Span {
	return Span{Start: s.Start + days*MinutesPerDay, End: s.End + days*MinutesPerDay}
}

// SplitByDay cuts the span at every midnight. Each returned piece carries the
// day offset it falls on and its portion re-based onto that day (0..1440).
func (s Span) SplitByDay() []DayPortion {
	var portions []DayPortion
	if s.IsEmpty() {
		return portions
	}

	day := floorDiv(s.Start, MinutesPerDay)
	for cursor := s.Start; cursor < s.End; day++ {
		dayEnd := (day + 1) * MinutesPerDay
		end := min(s.End, dayEnd)
		portions = append(portions, DayPortion{
			DayOffset: day,
			Span:      Span{Start: cursor - day*MinutesPerDay, End: end - day*MinutesPerDay},
		})
		cursor = end
	}
	return portions
}

func (s Span) String() string {
	return fmt.Sprintf("[%s, %s)", spanClock(s.Start), spanClock(s.End))
}

// DayPortion is the piece of a span that falls on a single day
type DayPortion struct {
	DayOffset int
	Span      Span
}

func spanClock(minute int) string {
	day := floorDiv(minute, MinutesPerDay)
	clock := ClockTime(minute - day*MinutesPerDay).String()
	if day == 0 {
		return clock
	}
	return fmt.Sprintf("%s%+dd", clock, day)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
