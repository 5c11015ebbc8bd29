package schedule

import (
	"context"
	"time"

	"github.com/calmpoint/counselbook/internal/model"
)

// ConflictReport is the structured verdict the admin UI renders when a
// requested slot cannot be booked as-is.
type ConflictReport struct {
	HasConflict             bool
	ConflictType            ConflictType
	ConflictingAppointments []model.Appointment
	Reason                  string
	SuggestedAlternatives   []Alternative
}

// Alternative is a bookable slot proposed instead of the requested one.
type Alternative struct {
	Start       time.Time
	DisplayTime string
}

// DetectConflicts classifies why the requested slot is unavailable and
// proposes up to MaxSuggestions alternative start times, scanning the
// requested day first and then up to LookaheadDays following days.
// Suggestion generation is best-effort: a store failure there degrades
// to an empty list instead of failing the verdict.
func (e *Engine) DetectConflicts(ctx context.Context, at time.Time, serviceID string, durationMinutes int, excludeAppointmentID string) (ConflictReport, error) {
	if at.IsZero() {
		return ConflictReport{}, invalid("time", "must be set")
	}
	duration := time.Duration(durationMinutes) * time.Minute
	if duration < e.rules.MinDuration || duration > e.rules.MaxDuration {
		return ConflictReport{}, invalid("durationMinutes", "out of range")
	}
	if _, err := e.lookupService(ctx, e.store, serviceID); err != nil {
		return ConflictReport{}, err
	}

	avail, conflicting, err := e.availability(ctx, e.store, at, duration, excludeAppointmentID)
	if err != nil {
		return ConflictReport{}, err
	}
	if avail.Available {
		return ConflictReport{}, nil
	}

	return ConflictReport{
		HasConflict:             true,
		ConflictType:            classify(avail.Code),
		ConflictingAppointments: conflicting,
		Reason:                  avail.Reason,
		SuggestedAlternatives:   e.suggestAlternatives(ctx, at, duration),
	}, nil
}

func (e *Engine) suggestAlternatives(ctx context.Context, at time.Time, duration time.Duration) []Alternative {
	var alts []Alternative
	for offset := 0; offset <= e.rules.LookaheadDays; offset++ {
		if len(alts) >= e.rules.MaxSuggestions {
			break
		}
		day := at.In(e.rules.Location).AddDate(0, 0, offset)
		slots, err := e.generateSlots(ctx, e.store, day, duration)
		if err != nil {
			// Conflict detection must always return a verdict; a broken
			// suggestion scan is not worth failing the report over.
			if e.logger != nil {
				e.logger.Warn("alternative slot scan failed", "err", err, "offset_days", offset)
			}
			continue
		}
		for _, s := range slots {
			if !s.Available {
				continue
			}
			alts = append(alts, Alternative{
				Start:       s.Start,
				DisplayTime: e.displayDay(offset, day) + s.DisplayTime,
			})
			if len(alts) >= e.rules.MaxSuggestions {
				break
			}
		}
	}
	return alts
}
