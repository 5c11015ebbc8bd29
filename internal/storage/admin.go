package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/calmpoint/counselbook/internal/model"
)

// AdminUser is an operator account. Passwords are bcrypt hashes.
type AdminUser struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

func (r *Repository) AdminByEmail(ctx context.Context, email string) (AdminUser, error) {
	var u AdminUser
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, email, password_hash, created_at
		FROM admin_users
		WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return AdminUser{}, mapNotFound(err, "admin", email)
	}
	return u, nil
}

func (r *Repository) ListServices(ctx context.Context, activeOnly bool) ([]model.Service, error) {
	query := `
		SELECT id::text, title, duration_minutes, price::text, active, created_at
		FROM services
	`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY title ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var svc model.Service
		if err := rows.Scan(&svc.ID, &svc.Title, &svc.DurationMinutes, &svc.Price, &svc.Active, &svc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (r *Repository) CreateService(ctx context.Context, svc model.Service) (model.Service, error) {
	svc.ID = uuid.NewString()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO services (id, title, duration_minutes, price, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, svc.ID, svc.Title, svc.DurationMinutes, svc.Price, svc.Active).Scan(&svc.CreatedAt)
	if err != nil {
		return model.Service{}, err
	}
	return svc, nil
}

func (r *Repository) UpdateService(ctx context.Context, svc model.Service) (model.Service, error) {
	err := r.pool.QueryRow(ctx, `
		UPDATE services
		SET title = $2,
			duration_minutes = $3,
			price = $4,
			active = $5
		WHERE id = $1
		RETURNING created_at
	`, svc.ID, svc.Title, svc.DurationMinutes, svc.Price, svc.Active).Scan(&svc.CreatedAt)
	if err != nil {
		return model.Service{}, mapNotFound(err, "service", svc.ID)
	}
	return svc, nil
}

func (r *Repository) ListWindows(ctx context.Context) ([]model.AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, weekday, start_minute, end_minute, active
		FROM availability_windows
		ORDER BY weekday ASC, start_minute ASC
	`)
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

func (r *Repository) CreateWindow(ctx context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error) {
	w.ID = uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO availability_windows (id, weekday, start_minute, end_minute, active)
		VALUES ($1, $2, $3, $4, $5)
	`, w.ID, w.Weekday, w.Start, w.End, w.Active)
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	return w, nil
}

func (r *Repository) UpdateWindow(ctx context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE availability_windows
		SET weekday = $2,
			start_minute = $3,
			end_minute = $4,
			active = $5
		WHERE id = $1
	`, w.ID, w.Weekday, w.Start, w.End, w.Active)
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	if tag.RowsAffected() == 0 {
		return model.AvailabilityWindow{}, notFoundErr("window", w.ID)
	}
	return w, nil
}

func (r *Repository) DeleteWindow(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM availability_windows WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFoundErr("window", id)
	}
	return nil
}

func (r *Repository) ListBlockedSlots(ctx context.Context, from time.Time) ([]model.BlockedSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, start_time, duration_minutes, COALESCE(reason, ''), created_at
		FROM blocked_slots
		WHERE start_time + make_interval(mins => duration_minutes) > $1
		ORDER BY start_time ASC
	`, from)
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

func (r *Repository) CreateBlockedSlot(ctx context.Context, b model.BlockedSlot) (model.BlockedSlot, error) {
	b.ID = uuid.NewString()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO blocked_slots (id, start_time, duration_minutes, reason)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING created_at
	`, b.ID, b.StartTime, b.DurationMinutes, b.Reason).Scan(&b.CreatedAt)
	if err != nil {
		return model.BlockedSlot{}, err
	}
	return b, nil
}

func (r *Repository) DeleteBlockedSlot(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blocked_slots WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFoundErr("blocked slot", id)
	}
	return nil
}

// AppointmentFilter narrows ListAppointments. Zero values mean "any".
type AppointmentFilter struct {
	Status model.Status
	From   time.Time
	To     time.Time
	Limit  int
}

func (r *Repository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]model.Appointment, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1 = '' OR status = $1)
			AND ($2::timestamptz IS NULL OR start_time >= $2)
			AND ($3::timestamptz IS NULL OR start_time < $3)
		ORDER BY start_time ASC
		LIMIT $4
	`, string(f.Status), nullableTime(f.From), nullableTime(f.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r *Repository) HistoryForAppointment(ctx context.Context, appointmentID string) ([]model.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, appointment_id::text, action, old_start, new_start,
			COALESCE(old_status, ''), COALESCE(new_status, ''), COALESCE(reason, ''), actor, created_at
		FROM appointment_history
		WHERE appointment_id = $1
		ORDER BY created_at DESC, id DESC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		var action, oldStatus, newStatus string
		if err := rows.Scan(&e.ID, &e.AppointmentID, &action, &e.OldStart, &e.NewStart,
			&oldStatus, &newStatus, &e.Reason, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = model.HistoryAction(action)
		e.OldStatus = model.Status(oldStatus)
		e.NewStatus = model.Status(newStatus)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
