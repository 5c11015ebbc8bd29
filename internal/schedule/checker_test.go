package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/calmpoint/counselbook/internal/model"
)

func TestIsTimeSlotAvailable_BufferSymmetry(t *testing.T) {
	st := newFakeState()
	addService(st, "svc-60", 60)
	addWindow(st, 1, 9*60, 18*60)
	// Confirmed 10:00-11:00 booking; with a 15m buffer it occupies
	// [09:45, 11:15) for conflict purposes.
	addAppointment(st, "appt-1", "svc-60", monday(10, 0), 60, model.StatusConfirmed)

	eng := newTestEngine(t, st, baseRules(), monday(10, 0).AddDate(0, 0, -7))
	ctx := context.Background()

	cases := []struct {
		name string
		hour int
		min  int
		want bool
	}{
		{"inside the booking", 10, 30, false},
		{"front buffer", 9, 0, false}, // ends 10:00, inside the 09:45 front edge
		{"tail buffer", 11, 0, false}, // starts before 11:15
		{"clears the tail", 11, 20, true},
		{"exact tail boundary", 11, 15, true},
		{"well clear", 13, 0, true},
	}
	for _, tc := range cases {
		got, err := eng.IsTimeSlotAvailable(ctx, monday(tc.hour, tc.min), "svc-60", "")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got.Available != tc.want {
			t.Fatalf("%s (%02d:%02d): available=%v want %v (reason %q)",
				tc.name, tc.hour, tc.min, got.Available, tc.want, got.Reason)
		}
		if !tc.want && got.Code != CodeBooked {
			t.Fatalf("%s: expected code booked, got %q", tc.name, got.Code)
		}
	}
}

func TestIsTimeSlotAvailable_SelfExclusion(t *testing.T) {
	st := newFakeState()
	addService(st, "svc-60", 60)
	addWindow(st, 1, 9*60, 18*60)
	addAppointment(st, "appt-1", "svc-60", monday(10, 0), 60, model.StatusConfirmed)

	eng := newTestEngine(t, st, baseRules(), monday(10, 0).AddDate(0, 0, -7))
	ctx := context.Background()

	// Rescheduling to the appointment's own current instant: the
	// appointment must not conflict with itself.
	got, err := eng.IsTimeSlotAvailable(ctx, monday(10, 0), "svc-60", "appt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Available {
		t.Fatalf("self-excluded check should be available, got %q", got.Reason)
	}

	// Without the exclusion the same instant is taken.
	got, err = eng.IsTimeSlotAvailable(ctx, monday(10, 0), "svc-60", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Available {
		t.Fatal("expected conflict without self-exclusion")
	}
}

func TestIsTimeSlotAvailable_OutsideHours(t *testing.T) {
	st := newFakeState()
	addService(st, "svc-60", 60)
	addWindow(st, 1, 9*60, 12*60)

	eng := newTestEngine(t, st, baseRules(), monday(10, 0).AddDate(0, 0, -7))

	got, err := eng.IsTimeSlotAvailable(context.Background(), monday(14, 0), "svc-60", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Available || got.Code != CodeOutsideHours {
		t.Fatalf("expected outside_hours, got %+v", got)
	}

	// 11:30 starts inside the window but the 60-minute session would
	// run past its end.
	got, err = eng.IsTimeSlotAvailable(context.Background(), monday(11, 30), "svc-60", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Available || got.Code != CodeOutsideHours {
		t.Fatalf("expected outside_hours for overrunning slot, got %+v", got)
	}
}

func TestIsTimeSlotAvailable_CancelledDoesNotBlock(t *testing.T) {
	st := newFakeState()
	addService(st, "svc-60", 60)
	addWindow(st, 1, 9*60, 18*60)
	addAppointment(st, "appt-1", "svc-60", monday(10, 0), 60, model.StatusCancelled)

	eng := newTestEngine(t, st, baseRules(), monday(10, 0).AddDate(0, 0, -7))
	got, err := eng.IsTimeSlotAvailable(context.Background(), monday(10, 0), "svc-60", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Available {
		t.Fatalf("cancelled appointment must not occupy the slot, got %q", got.Reason)
	}
}

func TestIsTimeSlotAvailable_ServiceNotFound(t *testing.T) {
	st := newFakeState()
	addWindow(st, 1, 9*60, 12*60)
	eng := newTestEngine(t, st, baseRules(), monday(10, 0))

	_, err := eng.IsTimeSlotAvailable(context.Background(), monday(10, 0), "missing", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// The checker and the generator are two availability computations; for
// grid-aligned instants they must agree, slot by slot.
func TestCheckerAgreesWithGenerator(t *testing.T) {
	st := newFakeState()
	addService(st, "svc-45", 45)
	addWindow(st, 1, 9*60, 12*60)
	addWindow(st, 1, 13*60, 16*60)
	st.blocked = append(st.blocked, model.BlockedSlot{
		ID: "blk-1", StartTime: monday(13, 0), DurationMinutes: 90,
	})
	addAppointment(st, "appt-1", "svc-45", monday(9, 30), 45, model.StatusPending)
	addAppointment(st, "appt-2", "svc-45", monday(15, 0), 45, model.StatusConfirmed)

	// Sunday 10:00 "now" so the day mixes too-soon, booked, blocked and
	// available slots.
	eng := newTestEngine(t, st, baseRules(), monday(10, 0).AddDate(0, 0, -1))

	slots, err := eng.GenerateTimeSlots(context.Background(), monday(0, 0), "svc-45")
	if err != nil {
		t.Fatalf("GenerateTimeSlots failed: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected slots")
	}

	for _, s := range slots {
		got, err := eng.IsTimeSlotAvailable(context.Background(), s.Start, "svc-45", "")
		if err != nil {
			t.Fatalf("checker failed at %s: %v", s.Start, err)
		}
		if got.Available != s.Available {
			t.Fatalf("disagreement at %s: generator=%v checker=%v", s.Start, s.Available, got.Available)
		}
		if string(got.Code) != s.Code {
			t.Fatalf("code disagreement at %s: generator=%q checker=%q", s.Start, s.Code, got.Code)
		}
	}
}
