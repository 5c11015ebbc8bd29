package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/calmpoint/counselbook/internal/model"
)

// 2026-03-02 is a Monday.
func monday(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func baseRules() Rules {
	r := DefaultRules()
	r.Location = time.UTC
	return r
}

func TestGenerateTimeSlots_Grid(t *testing.T) {
	st := newFakeState()
	addService(st, "svc-60", 60)
	addWindow(st, 1, 9*60, 12*60) // Mon 09:00-12:00

	// Previous Monday 10:00, so every next-Monday slot clears the
	// 24h minimum advance notice.
	now := monday(10, 0).AddDate(0, 0, -7)
	eng := newTestEngine(t, st, baseRules(), now)

	slots, err := eng.GenerateTimeSlots(context.Background(), monday(0, 0), "svc-60")
	if err != nil {
		t.Fatalf("GenerateTimeSlots failed: %v", err)
	}

	// 09:00 through 11:00 inclusive on a 15-minute grid.
	if len(slots) != 9 {
		t.Fatalf("expected 9 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(monday(9, 0)) {
		t.Fatalf("expected first slot 09:00, got %s", slots[0].Start)
	}
	if !slots[len(slots)-1].Start.Equal(monday(11, 0)) {
		t.Fatalf("expected last slot 11:00, got %s", slots[len(slots)-1].Start)
	}
	for _, s := range slots {
		if !s.Available {
			t.Fatalf("slot %s unexpectedly unavailable: %s", s.Start, s.Reason)
		}
		if s.DisplayTime == "" {
			t.Fatalf("slot %s missing display time", s.Start)
		}
	}
}

func TestGenerateTimeSlots_EmptyWeekday(t *testing.T) {
	st := newFakeState()
	addService(st, "svc-60", 60)
	addWindow(st, 1, 9*60, 12*60)

	eng := newTestEngine(t, st, baseRules(), monday(10, 0).AddDate(0, 0, -7))

	// Sunday has no window configured: empty result, not an error.
	sunday := monday(0, 0).AddDate(0, 0, -1)
	slots, err := eng.GenerateTimeSlots(context.Background(), sunday, "svc-60")
	if err != nil {
		t.Fatalf("GenerateTimeSlots failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots on a day without windows, got %d", len(slots))
	}
}

func TestGenerateTimeSlots_InactiveWindowIgnored(t *testing.T) {
	st := newFakeState()
	addService(st, "svc-60", 60)
	st.windows[1] = []model.AvailabilityWindow{{
		ID: "win-off", Weekday: 1, Start: 9 * 60, End: 12 * 60, Active: false,
	}}

	eng := newTestEngine(t, st, baseRules(), monday(10, 0).AddDate(0, 0, -7))
	slots, err := eng.GenerateTimeSlots(context.Background(), monday(0, 0), "svc-60")
	if err != nil {
		t.Fatalf("GenerateTimeSlots failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("inactive window should yield no slots, got %d", len(slots))
	}
}

func TestGenerateTimeSlots_SplitWindows(t *testing.T) {
	st := newFakeState()
	addService(st, "svc-30", 30)
	addWindow(st, 1, 9*60, 10*60)  // morning
	addWindow(st, 1, 14*60, 15*60) // afternoon

	eng := newTestEngine(t, st, baseRules(), monday(10, 0).AddDate(0, 0, -7))
	slots, err := eng.GenerateTimeSlots(context.Background(), monday(0, 0), "svc-30")
	if err != nil {
		t.Fatalf("GenerateTimeSlots failed: %v", err)
	}
	// 09:00,09:15,09:30 then 14:00,14:15,14:30.
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots across split windows, got %d", len(slots))
	}
	if !slots[3].Start.Equal(monday(14, 0)) {
		t.Fatalf("expected afternoon window to start at 14:00, got %s", slots[3].Start)
	}
}

func TestGenerateTimeSlots_MinAdvanceNotice(t *testing.T) {
	st := newFakeState()
	addService(st, "svc-60", 60)
	addWindow(st, 1, 9*60, 12*60)

	// Now is the same Monday 08:00: every slot that day starts within
	// the 24h notice period.
	eng := newTestEngine(t, st, baseRules(), monday(8, 0))
	slots, err := eng.GenerateTimeSlots(context.Background(), monday(0, 0), "svc-60")
	if err != nil {
		t.Fatalf("GenerateTimeSlots failed: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected the grid to still be returned")
	}
	for _, s := range slots {
		if s.Available {
			t.Fatalf("slot %s should be too soon", s.Start)
		}
		if s.Code != string(CodeTooSoon) {
			t.Fatalf("slot %s: expected code %q, got %q", s.Start, CodeTooSoon, s.Code)
		}
		if s.Reason != "Insufficient advance notice" {
			t.Fatalf("unexpected reason %q", s.Reason)
		}
	}

	// The following Monday clears the notice period entirely.
	nextWeek, err := eng.GenerateTimeSlots(context.Background(), monday(0, 0).AddDate(0, 0, 7), "svc-60")
	if err != nil {
		t.Fatalf("GenerateTimeSlots failed: %v", err)
	}
	for _, s := range nextWeek {
		if !s.Available {
			t.Fatalf("slot %s unexpectedly unavailable: %s", s.Start, s.Reason)
		}
	}
}

func TestGenerateTimeSlots_BeyondMaxAdvance(t *testing.T) {
	st := newFakeState()
	addService(st, "svc-60", 60)
	addWindow(st, 1, 9*60, 12*60)

	eng := newTestEngine(t, st, baseRules(), monday(10, 0))
	farOut := monday(0, 0).AddDate(0, 0, 35) // past the 30-day horizon
	slots, err := eng.GenerateTimeSlots(context.Background(), farOut, "svc-60")
	if err != nil {
		t.Fatalf("GenerateTimeSlots failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("date beyond the booking horizon should not be offered, got %d slots", len(slots))
	}
}

func TestGenerateTimeSlots_BlockedAndBooked(t *testing.T) {
	st := newFakeState()
	addService(st, "svc-60", 60)
	addWindow(st, 1, 9*60, 13*60)
	st.blocked = append(st.blocked, model.BlockedSlot{
		ID: "blk-1", StartTime: monday(9, 0), DurationMinutes: 60, Reason: "holiday",
	})
	addAppointment(st, "appt-x", "svc-60", monday(11, 0), 60, model.StatusConfirmed)

	eng := newTestEngine(t, st, baseRules(), monday(10, 0).AddDate(0, 0, -7))
	slots, err := eng.GenerateTimeSlots(context.Background(), monday(0, 0), "svc-60")
	if err != nil {
		t.Fatalf("GenerateTimeSlots failed: %v", err)
	}

	byStart := map[string]model.TimeSlot{}
	for _, s := range slots {
		byStart[s.Start.Format("15:04")] = s
	}

	if s := byStart["09:00"]; s.Available || s.Code != string(CodeBlocked) {
		t.Fatalf("09:00 should be blocked, got %+v", s)
	}
	// The block ends at 10:00, so 09:45 still overlaps it and 10:00
	// clears it.
	if s := byStart["09:45"]; s.Available {
		t.Fatalf("09:45 should overlap the blocked period, got %+v", s)
	}
	if s := byStart["10:00"]; s.Code == string(CodeBlocked) {
		t.Fatalf("10:00 should clear the blocked period, got %+v", s)
	}

	// The confirmed 11:00-12:00 appointment plus 15m buffer occupies
	// [10:45, 12:15); a 60-minute slot at 10:00 ends 11:00 and with the
	// booking's front buffer conflicts from 10:00 onward.
	if s := byStart["10:00"]; s.Available || s.Code != string(CodeBooked) {
		t.Fatalf("10:00 should conflict with the 11:00 booking, got %+v", s)
	}
	if s := byStart["12:00"]; s.Available {
		t.Fatalf("12:00 still conflicts with the buffer tail, got %+v", s)
	}
}

func TestGenerateTimeSlots_UnknownService(t *testing.T) {
	st := newFakeState()
	addWindow(st, 1, 9*60, 12*60)

	eng := newTestEngine(t, st, baseRules(), monday(10, 0))
	if _, err := eng.GenerateTimeSlots(context.Background(), monday(0, 0), "nope"); err == nil {
		t.Fatal("expected error for unknown service")
	}

	st.services["svc-off"] = model.Service{ID: "svc-off", DurationMinutes: 60, Active: false}
	if _, err := eng.GenerateTimeSlots(context.Background(), monday(0, 0), "svc-off"); err == nil {
		t.Fatal("expected error for inactive service")
	}
}
