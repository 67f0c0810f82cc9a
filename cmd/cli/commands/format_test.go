package commands

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/store-roster/pkg/core/model"
	"github.com/jakechorley/store-roster/pkg/core/tracker"
)

func TestParseRange(t *testing.T) {
	t.Run("end defaults to start", func(t *testing.T) {
		start, end, err := parseRange([]string{"2025-09-01"})
		require.NoError(t, err)
		assert.Equal(t, model.MustDate("2025-09-01"), start)
		assert.Equal(t, start, end)
	})

	t.Run("explicit end", func(t *testing.T) {
		_, end, err := parseRange([]string{"2025-09-01", "2025-09-07"})
		require.NoError(t, err)
		assert.Equal(t, model.MustDate("2025-09-07"), end)
	})

	t.Run("bad dates", func(t *testing.T) {
		_, _, err := parseRange([]string{"01/09/2025"})
		assert.ErrorContains(t, err, "start must be YYYY-MM-DD")

		_, _, err = parseRange([]string{"2025-09-01", "soon"})
		assert.ErrorContains(t, err, "end must be YYYY-MM-DD")
	})
}

func TestParseWindow(t *testing.T) {
	ct := model.MustClockTime
	tests := []struct {
		name     string
		from, to string
		expected *model.ClockWindow
		errMsg   string
	}{
		{name: "whole shift", expected: nil},
		{name: "afternoon", from: "13:00", to: "17:00", expected: &model.ClockWindow{Start: ct("13:00"), End: ct("17:00")}},
		{name: "after midnight", from: "02:00", to: "04:00", expected: &model.ClockWindow{Start: ct("02:00"), End: ct("04:00")}},
		{name: "only from", from: "13:00", errMsg: "must be given together"},
		{name: "bad to", from: "13:00", to: "5pm", errMsg: "--to"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window, err := parseWindow(tt.from, tt.to)
			if tt.errMsg != "" {
				assert.ErrorContains(t, err, tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, window)
		})
	}
}

func TestFormatWindow(t *testing.T) {
	assert.Equal(t, "", formatWindow(nil))
	assert.Equal(t, "13:00-17:00", formatWindow(&model.Span{Start: 780, End: 1020}))
	assert.Equal(t, "22:00-02:00+1", formatWindow(&model.Span{Start: 1320, End: 1560}))
}

func TestEmployeeCell(t *testing.T) {
	tests := []struct {
		name     string
		entry    tracker.RosterEntry
		contains []string
	}{
		{"unfilled", tracker.RosterEntry{}, []string{"UNFILLED", colorRed}},
		{"generated", tracker.RosterEntry{EmployeeID: "e1"}, []string{"e1"}},
		{"modified", tracker.RosterEntry{EmployeeID: "e2", Modified: true}, []string{colorYellow + "e2"}},
		{"temporary", tracker.RosterEntry{EmployeeID: "e3", Temporary: true, Modified: true}, []string{"e3", "(temporary)"}},
		{
			"partial substitute",
			tracker.RosterEntry{EmployeeID: "e2", RegularEmployeeID: "e1", Window: &model.Span{Start: 780, End: 1020}, Modified: true},
			[]string{"e2", "13:00-17:00", "e1 otherwise"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cell := employeeCell(tt.entry)
			for _, want := range tt.contains {
				assert.Contains(t, cell, want)
			}
		})
	}
}

func TestRangeLabel(t *testing.T) {
	day := model.MustDate("2025-09-01")
	assert.Equal(t, "2025-09-01", rangeLabel(model.NewDateRange(day, day)))
	assert.Equal(t, "2025-09-01..2025-09-07", rangeLabel(model.NewDateRange(day, day.AddDate(0, 0, 6))))
}

func TestRunSession(t *testing.T) {
	var got []string
	var store []string

	echo := &cobra.Command{
		Use:  "echo <word>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			got = append(got, strings.Join(store, ",")+":"+args[0])
			return nil
		},
	}
	echo.Flags().StringSliceVarP(&store, "store", "s", nil, "")

	input := strings.NewReader("echo -s s1 -s s2 one\n\nunknown\necho two\necho\nexit\necho never\n")
	require.NoError(t, runSession(input, map[string]*cobra.Command{"echo": echo}))

	// Flags from one line do not leak into the next, and a bad line does not end the session
	assert.Equal(t, []string{"s1,s2:one", ":two"}, got)
}
