package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/store-roster/pkg/core/model"
)

func (d *DB) ListStores(ctx context.Context, storeIDs []string) ([]model.Store, error) {
	return listStores(ctx, d.pool, storeIDs)
}

func (d *DB) ListShifts(ctx context.Context, storeIDs []string) ([]model.Shift, error) {
	return listShifts(ctx, d.pool, storeIDs)
}

func (d *DB) ListSkills(ctx context.Context) ([]model.Skill, error) {
	return listSkills(ctx, d.pool)
}

func (d *DB) ListDemandSlots(ctx context.Context, storeIDs []string, dates model.DateRange) ([]model.DemandSlot, error) {
	return listDemandSlots(ctx, d.pool, storeIDs, dates)
}

func (d *DB) ListRequirementTemplates(ctx context.Context, storeIDs []string) ([]model.RequirementTemplate, error) {
	return listTemplates(ctx, d.pool, storeIDs)
}

// ListEmployees returns employees based at one of the stores, plus anyone holding
// an access grant for one of them. An empty store list returns everyone.
func (d *DB) ListEmployees(ctx context.Context, storeIDs []string) ([]model.Employee, error) {
	return listEmployees(ctx, d.pool, storeIDs)
}

func (d *DB) ListLeaveLocks(ctx context.Context, dates model.DateRange) ([]model.LeaveLock, error) {
	return listLeaveLocks(ctx, d.pool, dates)
}

func (d *DB) ListStoreEvents(ctx context.Context, dates model.DateRange) ([]model.StoreEvent, error) {
	return listStoreEvents(ctx, d.pool, dates)
}

func (d *DB) ListSupportGrants(ctx context.Context) ([]model.SupportGrant, error) {
	return listSupportGrants(ctx, d.pool)
}

func (d *DB) ListAccessGrants(ctx context.Context) ([]model.AccessGrant, error) {
	return listAccessGrants(ctx, d.pool)
}

func listStores(ctx context.Context, q querier, storeIDs []string) ([]model.Store, error) {
	rows, err := q.Query(ctx, `
		SELECT id, name, cross_day_rule, active
		FROM store
		WHERE cardinality($1::text[]) = 0 OR id = ANY($1::text[])
		ORDER BY id
	`, storeFilter(storeIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query stores: %w", err)
	}
	defer rows.Close()

	stores := make([]model.Store, 0)
	for rows.Next() {
		var s model.Store
		var rule string
		if err := rows.Scan(&s.ID, &s.Name, &rule, &s.Active); err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		s.CrossDayRule = model.CrossDayRule(rule)
		stores = append(stores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stores: %w", err)
	}
	return stores, nil
}

func listShifts(ctx context.Context, q querier, storeIDs []string) ([]model.Shift, error) {
	rows, err := q.Query(ctx, `
		SELECT id, store_id, name, code, start_minute, end_minute, cross_day, active
		FROM shift
		WHERE cardinality($1::text[]) = 0 OR store_id = ANY($1::text[])
		ORDER BY id
	`, storeFilter(storeIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	shifts := make([]model.Shift, 0)
	index := make(map[string]int)
	for rows.Next() {
		var s model.Shift
		var start, end int
		if err := rows.Scan(&s.ID, &s.StoreID, &s.Name, &s.Code, &start, &end, &s.CrossDay, &s.Active); err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		s.Start = model.ClockTime(start)
		s.End = model.ClockTime(end)
		index[s.ID] = len(shifts)
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shifts: %w", err)
	}
	rows.Close()

	if len(shifts) == 0 {
		return shifts, nil
	}

	ids := make([]string, 0, len(shifts))
	for _, s := range shifts {
		ids = append(ids, s.ID)
	}

	breakRows, err := q.Query(ctx, `
		SELECT shift_id, start_minute, end_minute
		FROM shift_break
		WHERE shift_id = ANY($1::text[])
		ORDER BY shift_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query shift breaks: %w", err)
	}
	defer breakRows.Close()

	for breakRows.Next() {
		var shiftID string
		var start, end int
		if err := breakRows.Scan(&shiftID, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan shift break: %w", err)
		}
		i := index[shiftID]
		shifts[i].Breaks = append(shifts[i].Breaks, model.Break{Start: model.ClockTime(start), End: model.ClockTime(end)})
	}
	if err := breakRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shift breaks: %w", err)
	}
	return shifts, nil
}

func listSkills(ctx context.Context, q querier) ([]model.Skill, error) {
	rows, err := q.Query(ctx, `SELECT id, name, active FROM skill ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query skills: %w", err)
	}
	defer rows.Close()

	skills := make([]model.Skill, 0)
	for rows.Next() {
		var s model.Skill
		if err := rows.Scan(&s.ID, &s.Name, &s.Active); err != nil {
			return nil, fmt.Errorf("failed to scan skill: %w", err)
		}
		skills = append(skills, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating skills: %w", err)
	}
	return skills, nil
}

func listDemandSlots(ctx context.Context, q querier, storeIDs []string, dates model.DateRange) ([]model.DemandSlot, error) {
	rows, err := q.Query(ctx, `
		SELECT id, store_id, slot_date, shift_id, skill_id, required
		FROM demand_slot
		WHERE (cardinality($1::text[]) = 0 OR store_id = ANY($1::text[]))
		  AND slot_date BETWEEN $2 AND $3
		ORDER BY slot_date, store_id, id
	`, storeFilter(storeIDs), dates.Start, dates.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query demand slots: %w", err)
	}
	defer rows.Close()

	slots := make([]model.DemandSlot, 0)
	for rows.Next() {
		var s model.DemandSlot
		if err := rows.Scan(&s.ID, &s.StoreID, &s.Date, &s.ShiftID, &s.SkillID, &s.Required); err != nil {
			return nil, fmt.Errorf("failed to scan demand slot: %w", err)
		}
		s.Date = model.NormalizeDate(s.Date)
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating demand slots: %w", err)
	}
	return slots, nil
}

func listTemplates(ctx context.Context, q querier, storeIDs []string) ([]model.RequirementTemplate, error) {
	rows, err := q.Query(ctx, `
		SELECT id, store_id, day_type, shift_id, skill_id, required, active
		FROM requirement_template
		WHERE cardinality($1::text[]) = 0 OR store_id = ANY($1::text[])
		ORDER BY id
	`, storeFilter(storeIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query requirement templates: %w", err)
	}
	defer rows.Close()

	templates := make([]model.RequirementTemplate, 0)
	for rows.Next() {
		var t model.RequirementTemplate
		var dayType string
		if err := rows.Scan(&t.ID, &t.StoreID, &dayType, &t.ShiftID, &t.SkillID, &t.Required, &t.Active); err != nil {
			return nil, fmt.Errorf("failed to scan requirement template: %w", err)
		}
		t.DayType = model.DayType(dayType)
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requirement templates: %w", err)
	}
	return templates, nil
}

func listEmployees(ctx context.Context, q querier, storeIDs []string) ([]model.Employee, error) {
	rows, err := q.Query(ctx, `
		SELECT e.id, e.name, e.employment_type, e.home_store_id, e.priority, e.active, e.rest_days
		FROM employee e
		WHERE cardinality($1::text[]) = 0
		   OR e.home_store_id = ANY($1::text[])
		   OR EXISTS (
				SELECT 1 FROM access_grant g
				WHERE g.employee_id = e.id AND g.store_id = ANY($1::text[])
		   )
		ORDER BY e.id
	`, storeFilter(storeIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	employees := make([]model.Employee, 0)
	index := make(map[string]int)
	for rows.Next() {
		var e model.Employee
		var employmentType string
		var restDays []int32
		if err := rows.Scan(&e.ID, &e.Name, &employmentType, &e.HomeStoreID, &e.Priority, &e.Active, &restDays); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		e.Type = model.EmploymentType(employmentType)
		e.Skills = make(map[string]int)
		for _, wd := range restDays {
			e.RestDays = append(e.RestDays, model.Weekday(wd))
		}
		index[e.ID] = len(employees)
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating employees: %w", err)
	}
	rows.Close()

	if len(employees) == 0 {
		return employees, nil
	}

	ids := make([]string, 0, len(employees))
	for _, e := range employees {
		ids = append(ids, e.ID)
	}

	if err := attachSkills(ctx, q, ids, employees, index); err != nil {
		return nil, err
	}
	if err := attachAvailability(ctx, q, ids, employees, index); err != nil {
		return nil, err
	}
	return employees, nil
}

func attachSkills(ctx context.Context, q querier, ids []string, employees []model.Employee, index map[string]int) error {
	rows, err := q.Query(ctx, `
		SELECT employee_id, skill_id, priority
		FROM employee_skill
		WHERE employee_id = ANY($1::text[])
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query employee skills: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var employeeID, skillID string
		var priority int
		if err := rows.Scan(&employeeID, &skillID, &priority); err != nil {
			return fmt.Errorf("failed to scan employee skill: %w", err)
		}
		employees[index[employeeID]].Skills[skillID] = priority
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating employee skills: %w", err)
	}
	return nil
}

func attachAvailability(ctx context.Context, q querier, ids []string, employees []model.Employee, index map[string]int) error {
	rows, err := q.Query(ctx, `
		SELECT employee_id, weekday, start_minute, end_minute
		FROM availability_window
		WHERE employee_id = ANY($1::text[])
		ORDER BY employee_id, weekday, start_minute
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query availability: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var employeeID string
		var weekday, start, end int
		if err := rows.Scan(&employeeID, &weekday, &start, &end); err != nil {
			return fmt.Errorf("failed to scan availability window: %w", err)
		}
		i := index[employeeID]
		employees[i].Availability = append(employees[i].Availability, model.AvailabilityWindow{
			Weekday: model.Weekday(weekday),
			Start:   model.ClockTime(start),
			End:     model.ClockTime(end),
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating availability: %w", err)
	}
	return nil
}

func listLeaveLocks(ctx context.Context, q querier, dates model.DateRange) ([]model.LeaveLock, error) {
	rows, err := q.Query(ctx, `
		SELECT employee_id, leave_date, status
		FROM leave_lock
		WHERE leave_date BETWEEN $1 AND $2
		ORDER BY leave_date, employee_id
	`, dates.Start, dates.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave locks: %w", err)
	}
	defer rows.Close()

	locks := make([]model.LeaveLock, 0)
	for rows.Next() {
		var l model.LeaveLock
		var status string
		if err := rows.Scan(&l.EmployeeID, &l.Date, &status); err != nil {
			return nil, fmt.Errorf("failed to scan leave lock: %w", err)
		}
		l.Date = model.NormalizeDate(l.Date)
		l.Status = model.LeaveStatus(status)
		locks = append(locks, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leave locks: %w", err)
	}
	return locks, nil
}

func listStoreEvents(ctx context.Context, q querier, dates model.DateRange) ([]model.StoreEvent, error) {
	rows, err := q.Query(ctx, `
		SELECT store_id, event_date, kind, description
		FROM store_event
		WHERE event_date BETWEEN $1 AND $2
		ORDER BY event_date, store_id
	`, dates.Start, dates.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query store events: %w", err)
	}
	defer rows.Close()

	events := make([]model.StoreEvent, 0)
	for rows.Next() {
		var e model.StoreEvent
		var kind string
		if err := rows.Scan(&e.StoreID, &e.Date, &kind, &e.Description); err != nil {
			return nil, fmt.Errorf("failed to scan store event: %w", err)
		}
		e.Date = model.NormalizeDate(e.Date)
		e.Kind = model.ClosureKind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating store events: %w", err)
	}
	return events, nil
}

func listSupportGrants(ctx context.Context, q querier) ([]model.SupportGrant, error) {
	rows, err := q.Query(ctx, `
		SELECT requesting_store_id, supporting_store_id, active
		FROM support_grant
		ORDER BY requesting_store_id, supporting_store_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query support grants: %w", err)
	}
	grants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.SupportGrant, error) {
		var g model.SupportGrant
		err := row.Scan(&g.RequestingStoreID, &g.SupportingStoreID, &g.Active)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan support grants: %w", err)
	}
	return grants, nil
}

func listAccessGrants(ctx context.Context, q querier) ([]model.AccessGrant, error) {
	rows, err := q.Query(ctx, `SELECT employee_id, store_id FROM access_grant ORDER BY employee_id, store_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query access grants: %w", err)
	}
	grants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.AccessGrant, error) {
		var g model.AccessGrant
		err := row.Scan(&g.EmployeeID, &g.StoreID)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan access grants: %w", err)
	}
	return grants, nil
}
