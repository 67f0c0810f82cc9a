package demand

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/jakechorley/store-roster/pkg/core/model"
)

// DayTypeRule marks every date matching RRule as DayType
type DayTypeRule struct {
	RRule   string
	DayType model.DayType
}

type compiledRule struct {
	source  string
	option  rrule.ROption
	dayType model.DayType
}

// Calendar classifies dates into day types. Dates matching no rule are weekdays.
// When several rules match a date the first one wins.
type Calendar struct {
	rules []compiledRule
}

// NewCalendar parses the rules up front so bad RRULE syntax is reported before a run starts
func NewCalendar(rules []DayTypeRule) (*Calendar, error) {
	cal := &Calendar{rules: make([]compiledRule, 0, len(rules))}

	for i, r := range rules {
		option, err := rrule.StrToROption(r.RRule)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rrule for day type rule %d: %w", i, err)
		}
		switch r.DayType {
		case model.DayTypeWeekday, model.DayTypeHoliday, model.DayTypeSpecial:
		default:
			return nil, fmt.Errorf("day type rule %d has unknown day type %q", i, r.DayType)
		}
		cal.rules = append(cal.rules, compiledRule{source: r.RRule, option: *option, dayType: r.DayType})
	}

	return cal, nil
}

// Classify returns the day type of every date in the range, keyed by model.DateKey
func (c *Calendar) Classify(r model.DateRange) (map[string]model.DayType, error) {
	types := make(map[string]model.DayType)
	for _, d := range r.Days() {
		types[model.DateKey(d)] = model.DayTypeWeekday
	}
	if len(types) == 0 {
		return types, nil
	}

	// Later rules are applied first so earlier ones overwrite them
	for i := len(c.rules) - 1; i >= 0; i-- {
		matches, err := c.rules[i].occurrences(r)
		if err != nil {
			return nil, err
		}
		for _, occurrence := range matches {
			key := model.DateKey(occurrence)
			if _, inRange := types[key]; inRange {
				types[key] = c.rules[i].dayType
			}
		}
	}

	return types, nil
}

// DayTypeOf classifies a single date
func (c *Calendar) DayTypeOf(date time.Time) (model.DayType, error) {
	types, err := c.Classify(model.NewDateRange(date, date))
	if err != nil {
		return "", err
	}
	return types[model.DateKey(date)], nil
}

// occurrences anchors a copy of the rule at the start of the range so the
// calendar can be shared between concurrent runs
func (r compiledRule) occurrences(dates model.DateRange) ([]time.Time, error) {
	option := r.option
	option.Dtstart = dates.Start

	rule, err := rrule.NewRRule(option)
	if err != nil {
		return nil, fmt.Errorf("failed to build rrule %q: %w", r.source, err)
	}

	end := dates.End.Add(24*time.Hour - time.Second)
	return rule.Between(dates.Start, end, true), nil
}
