package schedule

import (
	"context"
	"sort"
	"time"

	"github.com/calmpoint/counselbook/internal/model"
)

// Availability is the verdict for a single instant.
type Availability struct {
	Available bool
	Code      Code
	Reason    string
}

func available() Availability {
	return Availability{Available: true}
}

func unavailable(code Code) Availability {
	return Availability{Code: code, Reason: code.reason()}
}

// IsTimeSlotAvailable checks whether a booking of the service's
// duration may start at the given instant. Unlike the slot generator it
// evaluates precise predicates, so arbitrary instants work, not just
// grid-aligned ones. excludeAppointmentID lets a reschedule treat the
// appointment's own booking as non-conflicting with itself; pass ""
// otherwise.
func (e *Engine) IsTimeSlotAvailable(ctx context.Context, at time.Time, serviceID, excludeAppointmentID string) (Availability, error) {
	if at.IsZero() {
		return Availability{}, invalid("time", "must be set")
	}
	svc, err := e.lookupService(ctx, e.store, serviceID)
	if err != nil {
		return Availability{}, err
	}
	avail, _, err := e.availability(ctx, e.store, at, svc.Duration(), excludeAppointmentID)
	return avail, err
}

// lookupService resolves a service id, treating a missing or inactive
// service as not-found rather than as an unavailable slot.
func (e *Engine) lookupService(ctx context.Context, s Store, serviceID string) (model.Service, error) {
	if serviceID == "" {
		return model.Service{}, invalid("serviceId", "must be set")
	}
	svc, err := s.ServiceByID(ctx, serviceID)
	if err != nil {
		return model.Service{}, err
	}
	if !svc.Active {
		return model.Service{}, notFound("service", serviceID)
	}
	return svc, nil
}

// availability is the single occupancy computation both the checker and
// the lifecycle operations share. It returns the conflicting
// appointments alongside the verdict so callers that need them (the
// conflict detector, conflict errors) don't repeat the query.
func (e *Engine) availability(ctx context.Context, s Store, at time.Time, duration time.Duration, excludeID string) (Availability, []model.Appointment, error) {
	end := at.Add(duration)

	inWindow, err := e.withinWindows(ctx, s, at, duration)
	if err != nil {
		return Availability{}, nil, err
	}
	if !inWindow {
		return unavailable(CodeOutsideHours), nil, nil
	}

	now := e.clock.Now()
	if at.Before(now.Add(e.rules.MinAdvance)) {
		// The enumeration of overlapping bookings is independent of why
		// the slot was rejected; admins still want to see what sits there.
		conflicting, err := e.conflictingAppointments(ctx, s, at, duration, excludeID)
		if err != nil {
			return Availability{}, nil, err
		}
		return unavailable(CodeTooSoon), conflicting, nil
	}
	if at.After(now.Add(e.rules.MaxAdvance)) {
		conflicting, err := e.conflictingAppointments(ctx, s, at, duration, excludeID)
		if err != nil {
			return Availability{}, nil, err
		}
		return unavailable(CodeTooFar), conflicting, nil
	}

	// A blocked period excludes any slot whose occupied interval
	// [at, end+buffer) touches it, regardless of windows.
	blocked, err := s.BlockedSlotsOverlapping(ctx, at, end.Add(e.rules.Buffer))
	if err != nil {
		return Availability{}, nil, err
	}
	if len(blocked) > 0 {
		return unavailable(CodeBlocked), nil, nil
	}

	conflicting, err := e.conflictingAppointments(ctx, s, at, duration, excludeID)
	if err != nil {
		return Availability{}, nil, err
	}
	if len(conflicting) > 0 {
		return unavailable(CodeBooked), conflicting, nil
	}

	return available(), nil, nil
}

// withinWindows reports whether [at, at+duration] fits inside an active
// availability window on that weekday, evaluated as wall-clock minutes
// in the business timezone.
func (e *Engine) withinWindows(ctx context.Context, s Store, at time.Time, duration time.Duration) (bool, error) {
	local := at.In(e.rules.Location)
	windows, err := s.WindowsForWeekday(ctx, int(local.Weekday()))
	if err != nil {
		return false, err
	}
	startMin := local.Hour()*60 + local.Minute()
	endMin := startMin + int(duration/time.Minute)
	for _, w := range windows {
		if !w.Active {
			continue
		}
		if startMin >= w.Start && endMin <= w.End {
			return true, nil
		}
	}
	return false, nil
}

// conflictingAppointments returns occupying appointments whose
// buffer-padded interval overlaps the requested [at, at+duration).
// Two intervals conflict iff
//
//	reqStart < otherEnd+buffer && otherStart-buffer < reqEnd
//
// which is equivalent to a raw overlap against the request padded by
// the buffer on both sides.
func (e *Engine) conflictingAppointments(ctx context.Context, s Store, at time.Time, duration time.Duration, excludeID string) ([]model.Appointment, error) {
	end := at.Add(duration)
	appts, err := s.AppointmentsOverlapping(ctx, at.Add(-e.rules.Buffer), end.Add(e.rules.Buffer))
	if err != nil {
		return nil, err
	}

	var conflicting []model.Appointment
	for _, a := range appts {
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if !a.Status.Occupies() {
			continue
		}
		if at.Before(a.EndTime().Add(e.rules.Buffer)) && a.StartTime.Add(-e.rules.Buffer).Before(end) {
			conflicting = append(conflicting, a)
		}
	}
	sort.Slice(conflicting, func(i, j int) bool {
		return conflicting[i].StartTime.Before(conflicting[j].StartTime)
	})
	return conflicting, nil
}
