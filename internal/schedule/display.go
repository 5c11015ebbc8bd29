package schedule

import "time"

// displayTime renders a locale-style clock time ("9:00 AM") in the
// business timezone.
func (e *Engine) displayTime(t time.Time) string {
	return t.In(e.rules.Location).Format("3:04 PM")
}

// displayDay prefixes suggestions that fall outside the requested day.
func (e *Engine) displayDay(offsetDays int, day time.Time) string {
	switch {
	case offsetDays <= 0:
		return ""
	case offsetDays == 1:
		return "Tomorrow "
	default:
		return day.In(e.rules.Location).Weekday().String() + " "
	}
}
