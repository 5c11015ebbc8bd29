// Package storage is the pgx-backed implementation of the scheduling
// engine's store interfaces plus the admin CRUD queries. Repositories
// own their SQL; transactional paths run through WithinTx so the
// engine's check-then-write happens under one transaction, with the
// exclusion constraint on appointment occupancy as the backstop
// (surfaced via IsConflict).
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/calmpoint/counselbook/internal/model"
	"github.com/calmpoint/counselbook/internal/outbox"
	"github.com/calmpoint/counselbook/internal/schedule"
	"github.com/calmpoint/counselbook/libs/db"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting the
// read queries run inside or outside a transaction unchanged.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	reads
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewRepository(pool *db.Pool, outboxRepo *outbox.Repository) *Repository {
	return &Repository{
		reads:      reads{q: pool},
		pool:       pool,
		outboxRepo: outboxRepo,
	}
}

// WithinTx implements schedule.Transactor.
func (r *Repository) WithinTx(ctx context.Context, fn func(schedule.TxStore) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&txStore{reads: reads{q: tx}, tx: tx, outboxRepo: r.outboxRepo}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// reads carries the query methods shared by the pool-backed repository
// and the in-transaction store view.
type reads struct {
	q querier
}

func (r reads) ServiceByID(ctx context.Context, id string) (model.Service, error) {
	var svc model.Service
	err := r.q.QueryRow(ctx, `
		SELECT id::text, title, duration_minutes, price::text, active, created_at
		FROM services
		WHERE id = $1
	`, id).Scan(&svc.ID, &svc.Title, &svc.DurationMinutes, &svc.Price, &svc.Active, &svc.CreatedAt)
	if err != nil {
		return model.Service{}, mapNotFound(err, "service", id)
	}
	return svc, nil
}

func (r reads) WindowsForWeekday(ctx context.Context, weekday int) ([]model.AvailabilityWindow, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id::text, weekday, start_minute, end_minute, active
		FROM availability_windows
		WHERE weekday = $1
		ORDER BY start_minute ASC
	`, weekday)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AvailabilityWindow
	for rows.Next() {
		var w model.AvailabilityWindow
		if err := rows.Scan(&w.ID, &w.Weekday, &w.Start, &w.End, &w.Active); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r reads) BlockedSlotsOverlapping(ctx context.Context, from, to time.Time) ([]model.BlockedSlot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id::text, start_time, duration_minutes, COALESCE(reason, ''), created_at
		FROM blocked_slots
		WHERE start_time < $2
			AND start_time + make_interval(mins => duration_minutes) > $1
		ORDER BY start_time ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BlockedSlot
	for rows.Next() {
		var b model.BlockedSlot
		if err := rows.Scan(&b.ID, &b.StartTime, &b.DurationMinutes, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r reads) AppointmentsOverlapping(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('pending', 'confirmed')
			AND start_time < $2
			AND start_time + make_interval(mins => duration_minutes) > $1
		ORDER BY start_time ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r reads) AppointmentByID(ctx context.Context, id string) (model.Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, mapNotFound(err, "appointment", id)
	}
	return appt, nil
}

// txStore implements schedule.TxStore on top of an open transaction.
type txStore struct {
	reads
	tx         pgx.Tx
	outboxRepo *outbox.Repository
}

func (s *txStore) AppointmentByIDForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	row := s.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, mapNotFound(err, "appointment", id)
	}
	return appt, nil
}

func (s *txStore) InsertAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	row := s.tx.QueryRow(ctx, `
		INSERT INTO appointments (id, user_id, service_id, start_time, duration_minutes, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+appointmentColumns+`
	`, appt.ID, appt.UserID, appt.ServiceID, appt.StartTime, appt.DurationMinutes, string(appt.Status), appt.Notes)
	return scanAppointment(row)
}

func (s *txStore) UpdateAppointmentSchedule(ctx context.Context, id string, newStart time.Time, status model.Status) (model.Appointment, error) {
	row := s.tx.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
			status = $3,
			updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, newStart, string(status))
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, mapNotFound(err, "appointment", id)
	}
	return appt, nil
}

func (s *txStore) UpdateAppointmentStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error) {
	row := s.tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, string(status))
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, mapNotFound(err, "appointment", id)
	}
	return appt, nil
}

func (s *txStore) UpdateAppointmentNotes(ctx context.Context, id string, notes string) (model.Appointment, error) {
	row := s.tx.QueryRow(ctx, `
		UPDATE appointments
		SET notes = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, notes)
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, mapNotFound(err, "appointment", id)
	}
	return appt, nil
}

func (s *txStore) InsertHistory(ctx context.Context, entry model.HistoryEntry) (model.HistoryEntry, error) {
	row := s.tx.QueryRow(ctx, `
		INSERT INTO appointment_history
			(appointment_id, action, old_start, new_start, old_status, new_status, reason, actor)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)
		RETURNING id::text, created_at
	`, entry.AppointmentID, string(entry.Action), entry.OldStart, entry.NewStart,
		string(entry.OldStatus), string(entry.NewStatus), entry.Reason, entry.Actor)
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return model.HistoryEntry{}, err
	}
	return entry, nil
}

func (s *txStore) RecordEvent(ctx context.Context, eventType, appointmentID string, payload []byte) error {
	return s.outboxRepo.Insert(ctx, s.tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appointmentID,
		EventType:     eventType,
		Payload:       payload,
	})
}

const appointmentColumns = `id::text, user_id::text, service_id::text, start_time,
	duration_minutes, status, COALESCE(notes, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var a model.Appointment
	var status string
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.ServiceID,
		&a.StartTime,
		&a.DurationMinutes,
		&status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	return a, nil
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var out []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	return out, rows.Err()
}

func mapNotFound(err error, entity, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFoundErr(entity, id)
	}
	return err
}

func notFoundErr(entity, id string) error {
	return fmt.Errorf("%s %q: %w", entity, id, schedule.ErrNotFound)
}

// IsConflict reports an exclusion-constraint violation on appointment
// occupancy (two occupying rows in overlapping buffered ranges).
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, schedule.ErrNotFound)
}
