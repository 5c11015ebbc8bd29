package model

import "time"

// Status of an appointment. Pending and confirmed appointments occupy
// their time slot for conflict purposes; the other statuses do not.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// Terminal reports whether the status excludes further scheduling
// operations. Terminal appointments cannot be rescheduled.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Occupies reports whether an appointment in this status blocks its slot.
func (s Status) Occupies() bool {
	return s == StatusPending || s == StatusConfirmed
}

func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return Status(raw), true
	}
	return "", false
}

// HistoryAction identifies the kind of lifecycle transition a history
// entry records.
type HistoryAction string

const (
	ActionCreated       HistoryAction = "created"
	ActionRescheduled   HistoryAction = "rescheduled"
	ActionCancelled     HistoryAction = "cancelled"
	ActionCompleted     HistoryAction = "completed"
	ActionNoShow        HistoryAction = "no_show"
	ActionStatusChanged HistoryAction = "status_changed"
	ActionNotesUpdated  HistoryAction = "notes_updated"
)

// Service is an offering the practice books appointments for. The
// scheduling engine only reads it; duration sizes the slot.
type Service struct {
	ID              string
	Title           string
	DurationMinutes int
	Price           string
	Active          bool
	CreatedAt       time.Time
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// AvailabilityWindow is a recurring weekly open interval. Start and End
// are minutes past midnight in the business timezone; End > Start.
// Multiple windows per weekday are allowed (split morning/afternoon).
type AvailabilityWindow struct {
	ID      string
	Weekday int // 0=Sunday .. 6=Saturday, matching time.Weekday
	Start   int
	End     int
	Active  bool
}

// BlockedSlot is a one-off exclusion period (holiday, maintenance). It
// makes overlapping slots unavailable regardless of windows.
type BlockedSlot struct {
	ID              string
	StartTime       time.Time
	DurationMinutes int
	Reason          string
	CreatedAt       time.Time
}

func (b BlockedSlot) EndTime() time.Time {
	return b.StartTime.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

type Appointment struct {
	ID              string
	UserID          string
	ServiceID       string
	StartTime       time.Time
	DurationMinutes int
	Status          Status
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// HistoryEntry is one row of the append-only appointment audit trail.
// Fields not applicable to an action are zero-valued.
type HistoryEntry struct {
	ID            string
	AppointmentID string
	Action        HistoryAction
	OldStart      *time.Time
	NewStart      *time.Time
	OldStatus     Status
	NewStatus     Status
	Reason        string
	Actor         string
	CreatedAt     time.Time
}

// TimeSlot is a computed candidate start time. Never persisted: the
// availability verdict depends on live appointment state.
type TimeSlot struct {
	Start       time.Time
	Available   bool
	Code        string
	Reason      string
	DisplayTime string
}
