package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/calmpoint/counselbook/internal/model"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeState struct {
	services map[string]model.Service
	windows  map[int][]model.AvailabilityWindow
	blocked  []model.BlockedSlot
	appts    map[string]model.Appointment
	history  []model.HistoryEntry
	events   []string
	nextID   int
}

func newFakeState() *fakeState {
	return &fakeState{
		services: map[string]model.Service{},
		windows:  map[int][]model.AvailabilityWindow{},
		appts:    map[string]model.Appointment{},
	}
}

func (st *fakeState) clone() *fakeState {
	cp := &fakeState{
		services: make(map[string]model.Service, len(st.services)),
		windows:  make(map[int][]model.AvailabilityWindow, len(st.windows)),
		blocked:  append([]model.BlockedSlot(nil), st.blocked...),
		appts:    make(map[string]model.Appointment, len(st.appts)),
		history:  append([]model.HistoryEntry(nil), st.history...),
		events:   append([]string(nil), st.events...),
		nextID:   st.nextID,
	}
	for k, v := range st.services {
		cp.services[k] = v
	}
	for k, v := range st.windows {
		cp.windows[k] = append([]model.AvailabilityWindow(nil), v...)
	}
	for k, v := range st.appts {
		cp.appts[k] = v
	}
	return cp
}

type fakeStore struct{ st *fakeState }

func (s fakeStore) ServiceByID(_ context.Context, id string) (model.Service, error) {
	svc, ok := s.st.services[id]
	if !ok {
		return model.Service{}, notFound("service", id)
	}
	return svc, nil
}

func (s fakeStore) WindowsForWeekday(_ context.Context, weekday int) ([]model.AvailabilityWindow, error) {
	return s.st.windows[weekday], nil
}

func (s fakeStore) BlockedSlotsOverlapping(_ context.Context, from, to time.Time) ([]model.BlockedSlot, error) {
	var out []model.BlockedSlot
	for _, b := range s.st.blocked {
		if from.Before(b.EndTime()) && b.StartTime.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s fakeStore) AppointmentsOverlapping(_ context.Context, from, to time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range s.st.appts {
		if !a.Status.Occupies() {
			continue
		}
		if from.Before(a.EndTime()) && a.StartTime.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s fakeStore) AppointmentByID(_ context.Context, id string) (model.Appointment, error) {
	a, ok := s.st.appts[id]
	if !ok {
		return model.Appointment{}, notFound("appointment", id)
	}
	return a, nil
}

type fakeTxStore struct {
	fakeStore
	failOn string
}

func (s fakeTxStore) failing(op string) error {
	if s.failOn == op {
		return fmt.Errorf("injected %s failure", op)
	}
	return nil
}

func (s fakeTxStore) AppointmentByIDForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	return s.AppointmentByID(ctx, id)
}

func (s fakeTxStore) InsertAppointment(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	if err := s.failing("InsertAppointment"); err != nil {
		return model.Appointment{}, err
	}
	s.st.nextID++
	appt.ID = fmt.Sprintf("appt-%d", s.st.nextID)
	appt.CreatedAt = time.Now()
	s.st.appts[appt.ID] = appt
	return appt, nil
}

func (s fakeTxStore) UpdateAppointmentSchedule(ctx context.Context, id string, newStart time.Time, status model.Status) (model.Appointment, error) {
	if err := s.failing("UpdateAppointmentSchedule"); err != nil {
		return model.Appointment{}, err
	}
	a, err := s.AppointmentByID(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	a.StartTime = newStart
	a.Status = status
	s.st.appts[id] = a
	return a, nil
}

func (s fakeTxStore) UpdateAppointmentStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error) {
	if err := s.failing("UpdateAppointmentStatus"); err != nil {
		return model.Appointment{}, err
	}
	a, err := s.AppointmentByID(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = status
	s.st.appts[id] = a
	return a, nil
}

func (s fakeTxStore) UpdateAppointmentNotes(ctx context.Context, id string, notes string) (model.Appointment, error) {
	if err := s.failing("UpdateAppointmentNotes"); err != nil {
		return model.Appointment{}, err
	}
	a, err := s.AppointmentByID(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Notes = notes
	s.st.appts[id] = a
	return a, nil
}

func (s fakeTxStore) InsertHistory(_ context.Context, entry model.HistoryEntry) (model.HistoryEntry, error) {
	if err := s.failing("InsertHistory"); err != nil {
		return model.HistoryEntry{}, err
	}
	s.st.nextID++
	entry.ID = fmt.Sprintf("hist-%d", s.st.nextID)
	entry.CreatedAt = time.Now()
	s.st.history = append(s.st.history, entry)
	return entry, nil
}

func (s fakeTxStore) RecordEvent(_ context.Context, eventType, _ string, _ []byte) error {
	if err := s.failing("RecordEvent"); err != nil {
		return err
	}
	s.st.events = append(s.st.events, eventType)
	return nil
}

// fakeTransactor gives every WithinTx call snapshot semantics: fn works
// on a copy and the copy replaces the live state only on success.
type fakeTransactor struct {
	st     *fakeState
	failOn string
}

func (t *fakeTransactor) WithinTx(_ context.Context, fn func(TxStore) error) error {
	work := t.st.clone()
	if err := fn(fakeTxStore{fakeStore: fakeStore{st: work}, failOn: t.failOn}); err != nil {
		return err
	}
	*t.st = *work
	return nil
}

func newTestEngine(t *testing.T, st *fakeState, rules Rules, now time.Time) *Engine {
	t.Helper()
	return New(
		fakeStore{st: st},
		&fakeTransactor{st: st},
		fixedClock{now: now},
		rules,
		slog.Default(),
	)
}

func addWindow(st *fakeState, weekday, startMin, endMin int) {
	st.windows[weekday] = append(st.windows[weekday], model.AvailabilityWindow{
		ID:      fmt.Sprintf("win-%d-%d", weekday, startMin),
		Weekday: weekday,
		Start:   startMin,
		End:     endMin,
		Active:  true,
	})
}

func addService(st *fakeState, id string, durationMins int) {
	st.services[id] = model.Service{
		ID:              id,
		Title:           "Session",
		DurationMinutes: durationMins,
		Price:           "120.00",
		Active:          true,
	}
}

func addAppointment(st *fakeState, id, serviceID string, start time.Time, durationMins int, status model.Status) {
	st.appts[id] = model.Appointment{
		ID:              id,
		UserID:          "user-1",
		ServiceID:       serviceID,
		StartTime:       start,
		DurationMinutes: durationMins,
		Status:          status,
	}
}
