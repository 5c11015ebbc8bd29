// Package handlers holds the HTTP surface: public booking endpoints,
// the JWT-protected admin API, and the translation from engine errors
// to status codes (validation 400, missing entities 404, slot conflicts
// and terminal-status rejections 409).
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/calmpoint/counselbook/internal/model"
	"github.com/calmpoint/counselbook/internal/schedule"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type conflictResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Conflicts []appointmentItem `json:"conflicts,omitempty"`
}

// writeEngineError maps engine error types onto HTTP responses. Store
// errors that reach here are internal.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var vErr *schedule.ValidationError
	if errors.As(err, &vErr) {
		http.Error(w, vErr.Error(), http.StatusBadRequest)
		return
	}
	var cErr *schedule.ConflictError
	if errors.As(err, &cErr) {
		writeJSON(w, http.StatusConflict, conflictResponse{
			Error:     cErr.Reason,
			Code:      string(cErr.Code),
			Conflicts: appointmentItems(cErr.Appointments),
		})
		return
	}
	if errors.Is(err, schedule.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, schedule.ErrTerminalStatus) {
		http.Error(w, "appointment is in a terminal status", http.StatusConflict)
		return
	}
	logger.Error("request failed", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

type appointmentItem struct {
	AppointmentID   string `json:"appointment_id"`
	UserID          string `json:"user_id"`
	ServiceID       string `json:"service_id"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
	Notes           string `json:"notes,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func appointmentItemFrom(a model.Appointment) appointmentItem {
	return appointmentItem{
		AppointmentID:   a.ID,
		UserID:          a.UserID,
		ServiceID:       a.ServiceID,
		StartTime:       a.StartTime.UTC().Format(time.RFC3339),
		EndTime:         a.EndTime().UTC().Format(time.RFC3339),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func appointmentItems(appts []model.Appointment) []appointmentItem {
	if len(appts) == 0 {
		return nil
	}
	out := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		out = append(out, appointmentItemFrom(a))
	}
	return out
}
