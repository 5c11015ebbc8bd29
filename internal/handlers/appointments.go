package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/calmpoint/counselbook/internal/model"
	"github.com/calmpoint/counselbook/internal/schedule"
	"github.com/calmpoint/counselbook/internal/storage"
)

type AppointmentHandler struct {
	engine *schedule.Engine
	repo   *storage.Repository
	logger *slog.Logger
}

func NewAppointmentHandler(engine *schedule.Engine, repo *storage.Repository, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{engine: engine, repo: repo, logger: logger}
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	filter := storage.AppointmentFilter{}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := model.ParseStatus(raw)
		if !ok {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		filter.Status = status
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid from, want RFC3339", http.StatusBadRequest)
			return
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid to, want RFC3339", http.StatusBadRequest)
			return
		}
		filter.To = t
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}

	appts, err := h.repo.ListAppointments(r.Context(), filter)
	if err != nil {
		h.logger.Error("appointment list failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appointmentItems(appts)})
}

type statusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
}

func (h *AppointmentHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	status, ok := model.ParseStatus(strings.TrimSpace(req.Status))
	if !ok {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	appt, err := h.engine.ChangeStatus(r.Context(), req.AppointmentID, status, req.Reason, actorFrom(r.Context()))
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment": appointmentItemFrom(appt)})
}

type notesRequest struct {
	AppointmentID string `json:"appointment_id"`
	Notes         string `json:"notes"`
}

func (h *AppointmentHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	appt, err := h.engine.UpdateNotes(r.Context(), req.AppointmentID, req.Notes, actorFrom(r.Context()))
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment": appointmentItemFrom(appt)})
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	NewStartTime  string `json:"new_start_time"`
	Reason        string `json:"reason"`
}

type historyItem struct {
	ID            string `json:"id"`
	AppointmentID string `json:"appointment_id"`
	Action        string `json:"action"`
	OldStart      string `json:"old_start,omitempty"`
	NewStart      string `json:"new_start,omitempty"`
	OldStatus     string `json:"old_status,omitempty"`
	NewStatus     string `json:"new_status,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Actor         string `json:"actor"`
	CreatedAt     string `json:"created_at"`
}

func historyItemFrom(e model.HistoryEntry) historyItem {
	item := historyItem{
		ID:            e.ID,
		AppointmentID: e.AppointmentID,
		Action:        string(e.Action),
		OldStatus:     string(e.OldStatus),
		NewStatus:     string(e.NewStatus),
		Reason:        e.Reason,
		Actor:         e.Actor,
		CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if e.OldStart != nil {
		item.OldStart = e.OldStart.UTC().Format(time.RFC3339)
	}
	if e.NewStart != nil {
		item.NewStart = e.NewStart.UTC().Format(time.RFC3339)
	}
	return item
}

func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	newStart, err := time.Parse(time.RFC3339, req.NewStartTime)
	if err != nil {
		http.Error(w, "invalid new_start_time", http.StatusBadRequest)
		return
	}

	result, err := h.engine.Reschedule(r.Context(), req.AppointmentID, newStart, req.Reason, actorFrom(r.Context()))
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appointment": appointmentItemFrom(result.Appointment),
		"history":     historyItemFrom(result.History),
	})
}

type conflictCheckRequest struct {
	Time                 string `json:"time"`
	ServiceID            string `json:"service_id"`
	DurationMinutes      int    `json:"duration_minutes"`
	ExcludeAppointmentID string `json:"exclude_appointment_id"`
}

type alternativeItem struct {
	StartTime   string `json:"start_time"`
	DisplayTime string `json:"display_time"`
}

type conflictReportResponse struct {
	HasConflict             bool              `json:"has_conflict"`
	ConflictType            string            `json:"conflict_type,omitempty"`
	ConflictingAppointments []appointmentItem `json:"conflicting_appointments,omitempty"`
	Reason                  string            `json:"reason,omitempty"`
	SuggestedAlternatives   []alternativeItem `json:"suggested_alternatives,omitempty"`
}

// Conflicts runs the classifier for a prospective booking or move and
// returns the report with alternative suggestions.
func (h *AppointmentHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req conflictCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	at, err := time.Parse(time.RFC3339, req.Time)
	if err != nil {
		http.Error(w, "invalid time, want RFC3339", http.StatusBadRequest)
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.ServiceID == "" {
		http.Error(w, "service_id required", http.StatusBadRequest)
		return
	}

	report, err := h.engine.DetectConflicts(r.Context(), at, req.ServiceID, req.DurationMinutes, strings.TrimSpace(req.ExcludeAppointmentID))
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	resp := conflictReportResponse{
		HasConflict:             report.HasConflict,
		ConflictType:            string(report.ConflictType),
		ConflictingAppointments: appointmentItems(report.ConflictingAppointments),
		Reason:                  report.Reason,
	}
	for _, alt := range report.SuggestedAlternatives {
		resp.SuggestedAlternatives = append(resp.SuggestedAlternatives, alternativeItem{
			StartTime:   alt.Start.UTC().Format(time.RFC3339),
			DisplayTime: alt.DisplayTime,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// History returns the append-only audit trail, newest first.
func (h *AppointmentHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	appointmentID := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if appointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	if _, err := h.repo.AppointmentByID(r.Context(), appointmentID); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	entries, err := h.repo.HistoryForAppointment(r.Context(), appointmentID)
	if err != nil {
		h.logger.Error("history list failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	items := make([]historyItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, historyItemFrom(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": items})
}
