package memdb

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jakechorley/store-roster/pkg/core/demand"
	"github.com/jakechorley/store-roster/pkg/core/model"
)

// fixture is the YAML layout of a data file. Dates are YYYY-MM-DD and times HH:MM.
type fixture struct {
	Stores []struct {
		ID           string `yaml:"id"`
		Name         string `yaml:"name"`
		CrossDayRule string `yaml:"crossDayRule"`
		Active       bool   `yaml:"active"`
	} `yaml:"stores"`
	Shifts []struct {
		ID       string `yaml:"id"`
		StoreID  string `yaml:"storeId"`
		Name     string `yaml:"name"`
		Code     string `yaml:"code"`
		Start    string `yaml:"start"`
		End      string `yaml:"end"`
		CrossDay bool   `yaml:"crossDay"`
		Breaks   []struct {
			Start string `yaml:"start"`
			End   string `yaml:"end"`
		} `yaml:"breaks"`
		Active bool `yaml:"active"`
	} `yaml:"shifts"`
	Skills []struct {
		ID     string `yaml:"id"`
		Name   string `yaml:"name"`
		Active bool   `yaml:"active"`
	} `yaml:"skills"`
	Employees []struct {
		ID           string         `yaml:"id"`
		Name         string         `yaml:"name"`
		Type         string         `yaml:"type"`
		HomeStoreID  string         `yaml:"homeStoreId"`
		Priority     int            `yaml:"priority"`
		Active       bool           `yaml:"active"`
		Skills       map[string]int `yaml:"skills"`
		Availability []struct {
			Weekdays []int  `yaml:"weekdays"`
			Start    string `yaml:"start"`
			End      string `yaml:"end"`
		} `yaml:"availability"`
		RestDays []int `yaml:"restDays"`
	} `yaml:"employees"`
	LeaveLocks []struct {
		EmployeeID string `yaml:"employeeId"`
		Date       string `yaml:"date"`
		Status     string `yaml:"status"`
	} `yaml:"leaveLocks"`
	StoreEvents []struct {
		StoreID     string `yaml:"storeId"`
		Date        string `yaml:"date"`
		Kind        string `yaml:"kind"`
		Description string `yaml:"description"`
	} `yaml:"storeEvents"`
	SupportGrants []struct {
		RequestingStoreID string `yaml:"requestingStoreId"`
		SupportingStoreID string `yaml:"supportingStoreId"`
		Active            bool   `yaml:"active"`
	} `yaml:"supportGrants"`
	AccessGrants []struct {
		EmployeeID string `yaml:"employeeId"`
		StoreID    string `yaml:"storeId"`
	} `yaml:"accessGrants"`
	DemandSlots []struct {
		ID       string `yaml:"id"`
		StoreID  string `yaml:"storeId"`
		Date     string `yaml:"date"`
		ShiftID  string `yaml:"shiftId"`
		SkillID  string `yaml:"skillId"`
		Required int    `yaml:"required"`
	} `yaml:"demandSlots"`
	RequirementTemplates []struct {
		ID       string `yaml:"id"`
		StoreID  string `yaml:"storeId"`
		DayType  string `yaml:"dayType"`
		ShiftID  string `yaml:"shiftId"`
		SkillID  string `yaml:"skillId"`
		Required int    `yaml:"required"`
		Active   bool   `yaml:"active"`
	} `yaml:"requirementTemplates"`
}

// LoadFile reads a YAML data file and returns a repository seeded with it
func LoadFile(path string) (*DB, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	data, err := ParseData(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse data file %s: %w", path, err)
	}
	return New(*data), nil
}

// ParseData decodes the YAML data file format.
// Demand slots without an id get the same deterministic id template expansion uses.
func ParseData(raw []byte) (*Data, error) {
	var f fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}

	data := &Data{}

	for _, s := range f.Stores {
		data.Stores = append(data.Stores, model.Store{
			ID:           s.ID,
			Name:         s.Name,
			CrossDayRule: model.CrossDayRule(s.CrossDayRule),
			Active:       s.Active,
		})
	}

	for _, s := range f.Shifts {
		start, err := model.ParseClockTime(s.Start)
		if err != nil {
			return nil, fmt.Errorf("shift %s: %w", s.ID, err)
		}
		end, err := model.ParseClockTime(s.End)
		if err != nil {
			return nil, fmt.Errorf("shift %s: %w", s.ID, err)
		}
		shift := model.Shift{
			ID:       s.ID,
			StoreID:  s.StoreID,
			Name:     s.Name,
			Code:     s.Code,
			Start:    start,
			End:      end,
			CrossDay: s.CrossDay,
			Active:   s.Active,
		}
		for _, b := range s.Breaks {
			bs, err := model.ParseClockTime(b.Start)
			if err != nil {
				return nil, fmt.Errorf("shift %s break: %w", s.ID, err)
			}
			be, err := model.ParseClockTime(b.End)
			if err != nil {
				return nil, fmt.Errorf("shift %s break: %w", s.ID, err)
			}
			shift.Breaks = append(shift.Breaks, model.Break{Start: bs, End: be})
		}
		data.Shifts = append(data.Shifts, shift)
	}

	for _, s := range f.Skills {
		data.Skills = append(data.Skills, model.Skill{ID: s.ID, Name: s.Name, Active: s.Active})
	}

	for _, e := range f.Employees {
		emp := model.Employee{
			ID:          e.ID,
			Name:        e.Name,
			Type:        model.EmploymentType(e.Type),
			HomeStoreID: e.HomeStoreID,
			Priority:    e.Priority,
			Active:      e.Active,
			Skills:      e.Skills,
		}
		for _, w := range e.Availability {
			start, err := model.ParseClockTime(w.Start)
			if err != nil {
				return nil, fmt.Errorf("employee %s availability: %w", e.ID, err)
			}
			end, err := model.ParseClockTime(w.End)
			if err != nil {
				return nil, fmt.Errorf("employee %s availability: %w", e.ID, err)
			}
			for _, wd := range w.Weekdays {
				emp.Availability = append(emp.Availability, model.AvailabilityWindow{
					Weekday: model.Weekday(wd),
					Start:   start,
					End:     end,
				})
			}
		}
		for _, wd := range e.RestDays {
			emp.RestDays = append(emp.RestDays, model.Weekday(wd))
		}
		data.Employees = append(data.Employees, emp)
	}

	for _, l := range f.LeaveLocks {
		date, err := model.ParseDate(l.Date)
		if err != nil {
			return nil, fmt.Errorf("leave lock for %s: %w", l.EmployeeID, err)
		}
		data.LeaveLocks = append(data.LeaveLocks, model.LeaveLock{
			EmployeeID: l.EmployeeID,
			Date:       date,
			Status:     model.LeaveStatus(l.Status),
		})
	}

	for _, e := range f.StoreEvents {
		date, err := model.ParseDate(e.Date)
		if err != nil {
			return nil, fmt.Errorf("store event for %s: %w", e.StoreID, err)
		}
		data.StoreEvents = append(data.StoreEvents, model.StoreEvent{
			StoreID:     e.StoreID,
			Date:        date,
			Kind:        model.ClosureKind(e.Kind),
			Description: e.Description,
		})
	}

	for _, g := range f.SupportGrants {
		data.SupportGrants = append(data.SupportGrants, model.SupportGrant{
			RequestingStoreID: g.RequestingStoreID,
			SupportingStoreID: g.SupportingStoreID,
			Active:            g.Active,
		})
	}

	for _, g := range f.AccessGrants {
		data.AccessGrants = append(data.AccessGrants, model.AccessGrant{EmployeeID: g.EmployeeID, StoreID: g.StoreID})
	}

	for _, s := range f.DemandSlots {
		date, err := model.ParseDate(s.Date)
		if err != nil {
			return nil, fmt.Errorf("demand slot %s: %w", s.ID, err)
		}
		id := s.ID
		if id == "" {
			id = demand.SlotID(s.StoreID, date, s.ShiftID, s.SkillID)
		}
		data.DemandSlots = append(data.DemandSlots, model.DemandSlot{
			ID:       id,
			StoreID:  s.StoreID,
			Date:     date,
			ShiftID:  s.ShiftID,
			SkillID:  s.SkillID,
			Required: s.Required,
		})
	}

	for _, t := range f.RequirementTemplates {
		data.RequirementTemplates = append(data.RequirementTemplates, model.RequirementTemplate{
			ID:       t.ID,
			StoreID:  t.StoreID,
			DayType:  model.DayType(t.DayType),
			ShiftID:  t.ShiftID,
			SkillID:  t.SkillID,
			Required: t.Required,
			Active:   t.Active,
		})
	}

	return data, nil
}
