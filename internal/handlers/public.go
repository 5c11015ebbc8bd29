package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/calmpoint/counselbook/internal/model"
	"github.com/calmpoint/counselbook/internal/schedule"
	"github.com/calmpoint/counselbook/internal/storage"
)

type PublicHandler struct {
	engine *schedule.Engine
	repo   *storage.Repository
	logger *slog.Logger
}

func NewPublicHandler(engine *schedule.Engine, repo *storage.Repository, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{engine: engine, repo: repo, logger: logger}
}

type serviceItem struct {
	ServiceID       string `json:"service_id"`
	Title           string `json:"title"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           string `json:"price"`
	Active          bool   `json:"active"`
}

func serviceItemFrom(s model.Service) serviceItem {
	return serviceItem{
		ServiceID:       s.ID,
		Title:           s.Title,
		DurationMinutes: s.DurationMinutes,
		Price:           s.Price,
		Active:          s.Active,
	}
}

func (h *PublicHandler) Services(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	services, err := h.repo.ListServices(r.Context(), true)
	if err != nil {
		h.logger.Error("service list failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	items := make([]serviceItem, 0, len(services))
	for _, s := range services {
		items = append(items, serviceItemFrom(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": items})
}

type slotItem struct {
	StartTime   string `json:"start_time"`
	Available   bool   `json:"available"`
	Code        string `json:"code,omitempty"`
	Reason      string `json:"reason,omitempty"`
	DisplayTime string `json:"display_time"`
}

// Slots returns the computed slot grid for one date and service.
// Unavailable slots are included with their reason so the frontend can
// render them greyed out.
func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	if serviceID == "" {
		http.Error(w, "service_id required", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), h.engine.Rules().Location)
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	slots, err := h.engine.GenerateTimeSlots(r.Context(), date, serviceID)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			StartTime:   s.Start.UTC().Format(time.RFC3339),
			Available:   s.Available,
			Code:        s.Code,
			Reason:      s.Reason,
			DisplayTime: s.DisplayTime,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  date.Format("2006-01-02"),
		"slots": items,
	})
}

type availabilityResponse struct {
	Available bool   `json:"available"`
	Code      string `json:"code,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (h *PublicHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	if serviceID == "" {
		http.Error(w, "service_id required", http.StatusBadRequest)
		return
	}
	at, err := time.Parse(time.RFC3339, r.URL.Query().Get("time"))
	if err != nil {
		http.Error(w, "invalid time, want RFC3339", http.StatusBadRequest)
		return
	}

	avail, err := h.engine.IsTimeSlotAvailable(r.Context(), at, serviceID, "")
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		Available: avail.Available,
		Code:      string(avail.Code),
		Reason:    avail.Reason,
	})
}

type bookRequest struct {
	UserID    string `json:"user_id"`
	ServiceID string `json:"service_id"`
	StartTime string `json:"start_time"`
	Notes     string `json:"notes"`
}

type bookResponse struct {
	Appointment appointmentItem `json:"appointment"`
}

// Book creates a pending appointment. With an Idempotency-Key header a
// replay of a finished request returns the stored response instead of
// booking twice.
func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.UserID == "" || req.ServiceID == "" {
		http.Error(w, "user_id and service_id required", http.StatusBadRequest)
		return
	}
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, claimed, err := h.repo.ClaimIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			h.logger.Error("idempotency claim failed", "err", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !claimed {
			if rec.StatusCode == 0 {
				http.Error(w, "request with this idempotency key is in flight", http.StatusConflict)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.ResponseBody)
			return
		}
	}

	appt, err := h.engine.Book(ctx, schedule.BookingRequest{
		UserID:    req.UserID,
		ServiceID: req.ServiceID,
		StartTime: startTime,
		Notes:     req.Notes,
	}, req.UserID)
	if err != nil {
		if idempotencyKey != "" {
			if relErr := h.repo.ReleaseIdempotencyKey(ctx, idempotencyKey); relErr != nil {
				h.logger.Warn("idempotency release failed", "key", idempotencyKey, "err", relErr)
			}
		}
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		writeEngineError(w, h.logger, err)
		return
	}

	body, err := json.Marshal(bookResponse{Appointment: appointmentItemFrom(appt)})
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.repo.FinalizeIdempotency(ctx, idempotencyKey, appt.ID, http.StatusCreated, body); err != nil {
			h.logger.Warn("idempotency finalize failed", "key", idempotencyKey, "err", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}
