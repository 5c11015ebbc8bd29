package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/calmpoint/counselbook/internal/model"
	"github.com/calmpoint/counselbook/internal/storage"
)

// minutes per day; window bounds are minutes past midnight.
const dayMinutes = 24 * 60

type ScheduleHandler struct {
	repo   *storage.Repository
	logger *slog.Logger
}

func NewScheduleHandler(repo *storage.Repository, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{repo: repo, logger: logger}
}

type windowItem struct {
	ID          string `json:"id,omitempty"`
	Weekday     int    `json:"weekday"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	Active      bool   `json:"active"`
}

func (h *ScheduleHandler) Windows(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listWindows(w, r)
	case http.MethodPost:
		h.createWindow(w, r)
	case http.MethodPut:
		h.updateWindow(w, r)
	case http.MethodDelete:
		h.deleteWindow(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScheduleHandler) listWindows(w http.ResponseWriter, r *http.Request) {
	windows, err := h.repo.ListWindows(r.Context())
	if err != nil {
		h.logger.Error("window list failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	items := make([]windowItem, 0, len(windows))
	for _, win := range windows {
		items = append(items, windowItem{
			ID:          win.ID,
			Weekday:     win.Weekday,
			StartMinute: win.Start,
			EndMinute:   win.End,
			Active:      win.Active,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"windows": items})
}

func validWindow(item windowItem) string {
	if item.Weekday < 0 || item.Weekday > 6 {
		return "weekday must be 0..6"
	}
	if item.StartMinute < 0 || item.EndMinute > dayMinutes || item.StartMinute >= item.EndMinute {
		return "start_minute must be before end_minute within the day"
	}
	return ""
}

func (h *ScheduleHandler) createWindow(w http.ResponseWriter, r *http.Request) {
	var item windowItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if msg := validWindow(item); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	created, err := h.repo.CreateWindow(r.Context(), model.AvailabilityWindow{
		Weekday: item.Weekday,
		Start:   item.StartMinute,
		End:     item.EndMinute,
		Active:  item.Active,
	})
	if err != nil {
		h.logger.Error("window create failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	item.ID = created.ID
	writeJSON(w, http.StatusCreated, item)
}

func (h *ScheduleHandler) updateWindow(w http.ResponseWriter, r *http.Request) {
	var item windowItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(item.ID) == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	if msg := validWindow(item); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	_, err := h.repo.UpdateWindow(r.Context(), model.AvailabilityWindow{
		ID:      item.ID,
		Weekday: item.Weekday,
		Start:   item.StartMinute,
		End:     item.EndMinute,
		Active:  item.Active,
	})
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "window not found", http.StatusNotFound)
			return
		}
		h.logger.Error("window update failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ScheduleHandler) deleteWindow(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	if err := h.repo.DeleteWindow(r.Context(), id); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "window not found", http.StatusNotFound)
			return
		}
		h.logger.Error("window delete failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type blockedSlotItem struct {
	ID              string `json:"id,omitempty"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Reason          string `json:"reason,omitempty"`
}

func (h *ScheduleHandler) BlockedSlots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listBlockedSlots(w, r)
	case http.MethodPost:
		h.createBlockedSlot(w, r)
	case http.MethodDelete:
		h.deleteBlockedSlot(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScheduleHandler) listBlockedSlots(w http.ResponseWriter, r *http.Request) {
	from := time.Now()
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid from, want RFC3339", http.StatusBadRequest)
			return
		}
		from = t
	}

	blocked, err := h.repo.ListBlockedSlots(r.Context(), from)
	if err != nil {
		h.logger.Error("blocked slot list failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	items := make([]blockedSlotItem, 0, len(blocked))
	for _, b := range blocked {
		items = append(items, blockedSlotItem{
			ID:              b.ID,
			StartTime:       b.StartTime.UTC().Format(time.RFC3339),
			DurationMinutes: b.DurationMinutes,
			Reason:          b.Reason,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocked_slots": items})
}

func (h *ScheduleHandler) createBlockedSlot(w http.ResponseWriter, r *http.Request) {
	var item blockedSlotItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	startTime, err := time.Parse(time.RFC3339, item.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	if item.DurationMinutes < 15 || item.DurationMinutes > 480 {
		http.Error(w, "duration_minutes must be between 15 and 480", http.StatusBadRequest)
		return
	}

	created, err := h.repo.CreateBlockedSlot(r.Context(), model.BlockedSlot{
		StartTime:       startTime,
		DurationMinutes: item.DurationMinutes,
		Reason:          strings.TrimSpace(item.Reason),
	})
	if err != nil {
		h.logger.Error("blocked slot create failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	item.ID = created.ID
	writeJSON(w, http.StatusCreated, item)
}

func (h *ScheduleHandler) deleteBlockedSlot(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	if err := h.repo.DeleteBlockedSlot(r.Context(), id); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "blocked slot not found", http.StatusNotFound)
			return
		}
		h.logger.Error("blocked slot delete failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listServices(w, r)
	case http.MethodPost:
		h.createService(w, r)
	case http.MethodPut:
		h.updateService(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScheduleHandler) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.repo.ListServices(r.Context(), false)
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

func validService(item serviceItem) string {
	if strings.TrimSpace(item.Title) == "" {
		return "title required"
	}
	if item.DurationMinutes < 15 || item.DurationMinutes > 480 {
		return "duration_minutes must be between 15 and 480"
	}
	return ""
}

func (h *ScheduleHandler) createService(w http.ResponseWriter, r *http.Request) {
	var item serviceItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if msg := validService(item); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	created, err := h.repo.CreateService(r.Context(), model.Service{
		Title:           strings.TrimSpace(item.Title),
		DurationMinutes: item.DurationMinutes,
		Price:           item.Price,
		Active:          item.Active,
	})
	if err != nil {
		h.logger.Error("service create failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, serviceItemFrom(created))
}

func (h *ScheduleHandler) updateService(w http.ResponseWriter, r *http.Request) {
	var item serviceItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(item.ServiceID) == "" {
		http.Error(w, "service_id required", http.StatusBadRequest)
		return
	}
	if msg := validService(item); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	updated, err := h.repo.UpdateService(r.Context(), model.Service{
		ID:              item.ServiceID,
		Title:           strings.TrimSpace(item.Title),
		DurationMinutes: item.DurationMinutes,
		Price:           item.Price,
		Active:          item.Active,
	})
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "service not found", http.StatusNotFound)
			return
		}
		h.logger.Error("service update failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, serviceItemFrom(updated))
}
