package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/jakechorley/store-roster/pkg/core/model"
	"github.com/jakechorley/store-roster/pkg/core/tracker"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorDim    = "\033[2m"
)

// parseRange reads <start> [end] arguments; end defaults to start
func parseRange(args []string) (time.Time, time.Time, error) {
	start, err := model.ParseDate(args[0])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start must be YYYY-MM-DD: %w", err)
	}
	end := start
	if len(args) > 1 {
		end, err = model.ParseDate(args[1])
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end must be YYYY-MM-DD: %w", err)
		}
	}
	return start, end, nil
}

// parseWindow turns --from/--to into a substitute window. Both empty means the whole shift.
// The tracker places the times on the shift, so 02:00 on a night shift is the next morning.
func parseWindow(from, to string) (*model.ClockWindow, error) {
	if from == "" && to == "" {
		return nil, nil
	}
	if from == "" || to == "" {
		return nil, fmt.Errorf("--from and --to must be given together")
	}
	start, err := model.ParseClockTime(from)
	if err != nil {
		return nil, fmt.Errorf("--from: %w", err)
	}
	end, err := model.ParseClockTime(to)
	if err != nil {
		return nil, fmt.Errorf("--to: %w", err)
	}
	return &model.ClockWindow{Start: start, End: end}, nil
}

// formatWindow renders a span on the shift's axis as HH:MM-HH:MM, marking next-day times with +1
func formatWindow(span *model.Span) string {
	if span == nil {
		return ""
	}
	return clock(span.Start) + "-" + clock(span.End)
}

func clock(minutes int) string {
	day := minutes / model.MinutesPerDay
	s := model.ClockTime(minutes % model.MinutesPerDay).String()
	if day > 0 {
		s += fmt.Sprintf("+%d", day)
	}
	return s
}

// employeeCell renders who holds a position, highlighting gaps and changes
func employeeCell(e tracker.RosterEntry) string {
	switch {
	case e.EmployeeID == "":
		return colorRed + "UNFILLED" + colorReset
	case e.Window != nil:
		return fmt.Sprintf("%s%s%s (%s, %s otherwise)", colorYellow, e.EmployeeID, colorReset, formatWindow(e.Window), e.RegularEmployeeID)
	case e.Temporary:
		return colorGreen + e.EmployeeID + colorReset + " (temporary)"
	case e.Modified:
		return colorYellow + e.EmployeeID + colorReset
	default:
		return e.EmployeeID
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// printRoster writes the roster grouped by date
func printRoster(entries []tracker.RosterEntry) {
	var lastDate string
	for _, e := range entries {
		date := e.Date.Format("2006-01-02 (Monday)")
		if date != lastDate {
			fmt.Printf("\n%s\n%s\n", date, strings.Repeat("-", len(date)))
			lastDate = date
		}
		fmt.Printf("  %-8s %-10s %-10s #%-2d %s %s[%s seq %d]%s\n",
			e.StoreID, e.ShiftID, e.SkillID, e.Sequence, employeeCell(e),
			colorDim, e.AssignmentID, e.LatestSequence, colorReset)
	}
	fmt.Println()
}

func printRecord(r *model.ModificationRecord) {
	fmt.Printf("\n✓ %s recorded\n\n", r.Kind)
	fmt.Printf("Assignment: %s\n", r.AssignmentID)
	fmt.Printf("Sequence:   %d\n", r.Sequence)
	fmt.Printf("From:       %s\n", orDash(r.OriginalEmployeeID))
	fmt.Printf("To:         %s\n", orDash(r.NewEmployeeID))
	if r.Window != nil {
		fmt.Printf("Window:     %s\n", formatWindow(r.Window))
	}
	fmt.Println()
}
