package schedule

// Code is a closed set of availability verdicts. Classification works
// on codes, never on reason text.
type Code string

const (
	CodeNone         Code = ""
	CodeOutsideHours Code = "outside_hours"
	CodeTooSoon      Code = "too_soon"
	CodeTooFar       Code = "too_far"
	CodeBlocked      Code = "blocked"
	CodeBooked       Code = "booked"
)

const (
	reasonOutsideHours = "Outside business hours"
	reasonTooSoon      = "Insufficient advance notice"
	reasonTooFar       = "Too far in advance"
	reasonUnavailable  = "Time slot unavailable"
)

func (c Code) reason() string {
	switch c {
	case CodeOutsideHours:
		return reasonOutsideHours
	case CodeTooSoon:
		return reasonTooSoon
	case CodeTooFar:
		return reasonTooFar
	case CodeBlocked, CodeBooked:
		return reasonUnavailable
	}
	return ""
}

// ConflictType classifies why a requested slot is unavailable.
type ConflictType string

const (
	ConflictNone         ConflictType = ""
	ConflictAppointment  ConflictType = "appointment"
	ConflictBlocked      ConflictType = "blocked"
	ConflictOutsideHours ConflictType = "outside_hours"
)

func classify(code Code) ConflictType {
	switch code {
	case CodeNone:
		return ConflictNone
	case CodeOutsideHours:
		return ConflictOutsideHours
	case CodeBlocked:
		return ConflictBlocked
	default:
		return ConflictAppointment
	}
}
