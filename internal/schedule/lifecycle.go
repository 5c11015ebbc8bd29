package schedule

import (
	"context"
	"encoding/json"
	"time"

	"github.com/calmpoint/counselbook/internal/model"
)

// Outbox event types, one Kafka topic per event.
const (
	EventBooked        = "counselbook.appointment.booked.v1"
	EventRescheduled   = "counselbook.appointment.rescheduled.v1"
	EventCancelled     = "counselbook.appointment.cancelled.v1"
	EventStatusChanged = "counselbook.appointment.status_changed.v1"
)

// BookingRequest is a new appointment from the public booking flow.
type BookingRequest struct {
	UserID    string
	ServiceID string
	StartTime time.Time
	Notes     string
}

// Book re-checks availability and inserts the appointment inside one
// transaction, together with its "created" history row and outbox
// event. Running the check through the transaction's store view closes
// the window where two concurrent bookings both pass the check; the
// database exclusion constraint on occupied ranges is the backstop.
func (e *Engine) Book(ctx context.Context, req BookingRequest, actor string) (model.Appointment, error) {
	if req.UserID == "" {
		return model.Appointment{}, invalid("userId", "must be set")
	}
	if req.StartTime.IsZero() {
		return model.Appointment{}, invalid("startTime", "must be set")
	}

	var booked model.Appointment
	err := e.tx.WithinTx(ctx, func(tx TxStore) error {
		svc, err := e.lookupService(ctx, tx, req.ServiceID)
		if err != nil {
			return err
		}
		avail, conflicting, err := e.availability(ctx, tx, req.StartTime, svc.Duration(), "")
		if err != nil {
			return err
		}
		if !avail.Available {
			return &ConflictError{Code: avail.Code, Reason: avail.Reason, Appointments: conflicting}
		}

		booked, err = tx.InsertAppointment(ctx, model.Appointment{
			UserID:          req.UserID,
			ServiceID:       svc.ID,
			StartTime:       req.StartTime,
			DurationMinutes: svc.DurationMinutes,
			Status:          model.StatusPending,
			Notes:           req.Notes,
		})
		if err != nil {
			return err
		}

		if _, err := tx.InsertHistory(ctx, model.HistoryEntry{
			AppointmentID: booked.ID,
			Action:        model.ActionCreated,
			NewStart:      &booked.StartTime,
			NewStatus:     booked.Status,
			Actor:         actor,
		}); err != nil {
			return err
		}

		return e.recordEvent(ctx, tx, EventBooked, booked, map[string]any{
			"user_id":    booked.UserID,
			"service_id": booked.ServiceID,
		})
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return booked, nil
}

// RescheduleResult pairs the updated appointment with the history row
// the reschedule appended.
type RescheduleResult struct {
	Appointment model.Appointment
	History     model.HistoryEntry
}

// Reschedule moves an appointment to a new start. Preconditions: the
// appointment exists, is not in a terminal status, and the new instant
// passes the availability check with the appointment's own booking
// excluded. On success the history insert and the appointment update
// commit atomically; status resets to pending because the other party
// has not acknowledged the new time.
func (e *Engine) Reschedule(ctx context.Context, appointmentID string, newStart time.Time, reason, actor string) (RescheduleResult, error) {
	if appointmentID == "" {
		return RescheduleResult{}, invalid("appointmentId", "must be set")
	}
	if newStart.IsZero() {
		return RescheduleResult{}, invalid("newStart", "must be set")
	}

	var result RescheduleResult
	err := e.tx.WithinTx(ctx, func(tx TxStore) error {
		appt, err := tx.AppointmentByIDForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if appt.Status.Terminal() {
			return ErrTerminalStatus
		}
		svc, err := e.lookupService(ctx, tx, appt.ServiceID)
		if err != nil {
			return err
		}
		avail, conflicting, err := e.availability(ctx, tx, newStart, svc.Duration(), appt.ID)
		if err != nil {
			return err
		}
		if !avail.Available {
			return &ConflictError{Code: avail.Code, Reason: avail.Reason, Appointments: conflicting}
		}

		oldStart := appt.StartTime
		result.History, err = tx.InsertHistory(ctx, model.HistoryEntry{
			AppointmentID: appt.ID,
			Action:        model.ActionRescheduled,
			OldStart:      &oldStart,
			NewStart:      &newStart,
			OldStatus:     appt.Status,
			NewStatus:     model.StatusPending,
			Reason:        reason,
			Actor:         actor,
		})
		if err != nil {
			return err
		}
		result.Appointment, err = tx.UpdateAppointmentSchedule(ctx, appt.ID, newStart, model.StatusPending)
		if err != nil {
			return err
		}

		return e.recordEvent(ctx, tx, EventRescheduled, result.Appointment, map[string]any{
			"old_start": oldStart.UTC().Format(time.RFC3339),
			"reason":    reason,
		})
	})
	if err != nil {
		return RescheduleResult{}, err
	}
	return result, nil
}

// ChangeStatus applies an admin status transition (confirm, cancel,
// complete, no-show) with its history row and outbox event in one
// transaction. Terminal appointments reject further transitions.
func (e *Engine) ChangeStatus(ctx context.Context, appointmentID string, newStatus model.Status, reason, actor string) (model.Appointment, error) {
	if appointmentID == "" {
		return model.Appointment{}, invalid("appointmentId", "must be set")
	}
	if _, ok := model.ParseStatus(string(newStatus)); !ok {
		return model.Appointment{}, invalid("status", "unknown status")
	}

	var updated model.Appointment
	err := e.tx.WithinTx(ctx, func(tx TxStore) error {
		appt, err := tx.AppointmentByIDForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if appt.Status == newStatus {
			updated = appt
			return nil
		}
		if appt.Status.Terminal() {
			return ErrTerminalStatus
		}

		updated, err = tx.UpdateAppointmentStatus(ctx, appt.ID, newStatus)
		if err != nil {
			return err
		}
		if _, err := tx.InsertHistory(ctx, model.HistoryEntry{
			AppointmentID: appt.ID,
			Action:        statusAction(newStatus),
			OldStatus:     appt.Status,
			NewStatus:     newStatus,
			Reason:        reason,
			Actor:         actor,
		}); err != nil {
			return err
		}

		eventType := EventStatusChanged
		if newStatus == model.StatusCancelled {
			eventType = EventCancelled
		}
		return e.recordEvent(ctx, tx, eventType, updated, map[string]any{
			"old_status": string(appt.Status),
			"new_status": string(newStatus),
			"reason":     reason,
		})
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return updated, nil
}

// UpdateNotes replaces the appointment notes and appends the
// corresponding history row.
func (e *Engine) UpdateNotes(ctx context.Context, appointmentID, notes, actor string) (model.Appointment, error) {
	if appointmentID == "" {
		return model.Appointment{}, invalid("appointmentId", "must be set")
	}

	var updated model.Appointment
	err := e.tx.WithinTx(ctx, func(tx TxStore) error {
		appt, err := tx.AppointmentByIDForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		updated, err = tx.UpdateAppointmentNotes(ctx, appt.ID, notes)
		if err != nil {
			return err
		}
		_, err = tx.InsertHistory(ctx, model.HistoryEntry{
			AppointmentID: appt.ID,
			Action:        model.ActionNotesUpdated,
			OldStatus:     appt.Status,
			NewStatus:     appt.Status,
			Actor:         actor,
		})
		return err
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return updated, nil
}

func statusAction(s model.Status) model.HistoryAction {
	switch s {
	case model.StatusCancelled:
		return model.ActionCancelled
	case model.StatusCompleted:
		return model.ActionCompleted
	case model.StatusNoShow:
		return model.ActionNoShow
	default:
		return model.ActionStatusChanged
	}
}

func (e *Engine) recordEvent(ctx context.Context, tx TxStore, eventType string, appt model.Appointment, extra map[string]any) error {
	body := map[string]any{
		"appointment_id": appt.ID,
		"service_id":     appt.ServiceID,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":       appt.EndTime().UTC().Format(time.RFC3339),
		"status":         string(appt.Status),
	}
	for k, v := range extra {
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return tx.RecordEvent(ctx, eventType, appt.ID, payload)
}
