package schedule

import (
	"context"
	"time"

	"github.com/calmpoint/counselbook/internal/model"
)

// Store is the read side the engine computes availability against.
// Implementations return ErrNotFound (wrapped) for missing entities.
//
// Interval arguments are half-open [from, to). AppointmentsOverlapping
// returns only appointments whose status occupies the slot
// (pending/confirmed) and whose raw [start, end) interval intersects
// the range; buffer padding is the engine's job.
type Store interface {
	ServiceByID(ctx context.Context, id string) (model.Service, error)
	WindowsForWeekday(ctx context.Context, weekday int) ([]model.AvailabilityWindow, error)
	BlockedSlotsOverlapping(ctx context.Context, from, to time.Time) ([]model.BlockedSlot, error)
	AppointmentsOverlapping(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
	AppointmentByID(ctx context.Context, id string) (model.Appointment, error)
}

// TxStore is the view of the store inside a transaction. Re-running the
// availability reads through it means the check-then-write of a booking
// or reschedule happens under the same transaction as the write, so two
// concurrent requests for the same instant cannot both pass.
type TxStore interface {
	Store

	AppointmentByIDForUpdate(ctx context.Context, id string) (model.Appointment, error)
	InsertAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	UpdateAppointmentSchedule(ctx context.Context, id string, newStart time.Time, status model.Status) (model.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error)
	UpdateAppointmentNotes(ctx context.Context, id string, notes string) (model.Appointment, error)
	InsertHistory(ctx context.Context, entry model.HistoryEntry) (model.HistoryEntry, error)

	// RecordEvent stages an integration event in the same transaction
	// as the domain write (outbox pattern). Downstream consumers decide
	// whether anything is sent to the customer.
	RecordEvent(ctx context.Context, eventType, appointmentID string, payload []byte) error
}

// Transactor runs fn within a single atomic transaction; fn's writes
// all commit or none do.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(TxStore) error) error
}
