package schedule

import (
	"context"
	"sort"
	"time"

	"github.com/calmpoint/counselbook/internal/model"
)

// GenerateTimeSlots returns the full candidate grid for one calendar
// day, each slot marked available or carrying the reason it is not.
// The grid is SlotStep-aligned to each active window's start; a weekday
// with no windows yields an empty slice, as does a date beyond the
// advance-booking horizon. Slots are recomputed on every call and never
// cached: the verdict depends on live appointment state.
func (e *Engine) GenerateTimeSlots(ctx context.Context, date time.Time, serviceID string) ([]model.TimeSlot, error) {
	if date.IsZero() {
		return nil, invalid("date", "must be set")
	}
	svc, err := e.lookupService(ctx, e.store, serviceID)
	if err != nil {
		return nil, err
	}
	return e.generateSlots(ctx, e.store, date, svc.Duration())
}

func (e *Engine) generateSlots(ctx context.Context, s Store, date time.Time, duration time.Duration) ([]model.TimeSlot, error) {
	loc := e.rules.Location
	local := date.In(loc)
	year, month, day := local.Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	now := e.clock.Now()
	horizon := now.Add(e.rules.MaxAdvance)
	if !dayStart.Before(horizon) {
		// Date not offered at all.
		return nil, nil
	}

	windows, err := s.WindowsForWeekday(ctx, int(dayStart.Weekday()))
	if err != nil {
		return nil, err
	}
	var active []model.AvailabilityWindow
	for _, w := range windows {
		if w.Active && w.End > w.Start {
			active = append(active, w)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Start < active[j].Start })

	// One read per store for the whole day; per-candidate checks are
	// in-memory interval arithmetic.
	blocked, err := s.BlockedSlotsOverlapping(ctx, dayStart, dayEnd.Add(e.rules.Buffer))
	if err != nil {
		return nil, err
	}
	booked, err := s.AppointmentsOverlapping(ctx, dayStart.Add(-e.rules.Buffer), dayEnd.Add(e.rules.Buffer))
	if err != nil {
		return nil, err
	}

	durMins := int(duration / time.Minute)
	stepMins := int(e.rules.SlotStep / time.Minute)
	earliest := now.Add(e.rules.MinAdvance)

	var slots []model.TimeSlot
	for _, w := range active {
		for m := w.Start; m+durMins <= w.End; m += stepMins {
			// time.Date normalizes minute overflow, which keeps the
			// grid on wall-clock minutes across DST transitions.
			start := time.Date(year, month, day, 0, m, 0, 0, loc)
			if start.After(horizon) {
				continue
			}

			slot := model.TimeSlot{
				Start:       start,
				DisplayTime: e.displayTime(start),
			}
			switch {
			case start.Before(earliest):
				slot.Code = string(CodeTooSoon)
				slot.Reason = CodeTooSoon.reason()
			case overlapsBlocked(start, start.Add(duration+e.rules.Buffer), blocked):
				slot.Code = string(CodeBlocked)
				slot.Reason = CodeBlocked.reason()
			case overlapsBooked(start, start.Add(duration), e.rules.Buffer, booked):
				slot.Code = string(CodeBooked)
				slot.Reason = CodeBooked.reason()
			default:
				slot.Available = true
			}
			slots = append(slots, slot)
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots, nil
}

// Half-open overlap: [start,end) meets [b.Start,b.End) iff
// start < b.End && b.Start < end.
func overlapsBlocked(start, end time.Time, blocked []model.BlockedSlot) bool {
	for _, b := range blocked {
		if start.Before(b.EndTime()) && b.StartTime.Before(end) {
			return true
		}
	}
	return false
}

func overlapsBooked(start, end time.Time, buffer time.Duration, appts []model.Appointment) bool {
	for _, a := range appts {
		if !a.Status.Occupies() {
			continue
		}
		if start.Before(a.EndTime().Add(buffer)) && a.StartTime.Add(-buffer).Before(end) {
			return true
		}
	}
	return false
}
