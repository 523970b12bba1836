package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/calebwray/tock/internal/auth"
	"github.com/calebwray/tock/internal/recurrence"
	"github.com/calebwray/tock/internal/store"
	"github.com/calebwray/tock/internal/websocket"
)

type ReminderHandler struct {
	reminders *store.ReminderStore
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewReminderHandler(rs *store.ReminderStore, hub *websocket.Hub, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{reminders: rs, hub: hub, logger: logger}
}

type reminderRequest struct {
	Title                   string     `json:"title"`
	Description             string     `json:"description"`
	DueDate                 time.Time  `json:"due_date"`
	ReminderTime            *time.Time `json:"reminder_time"`
	NotificationTime        *time.Time `json:"notification_time"`
	ReminderIntervalMinutes *int       `json:"reminder_interval_minutes"`
	IsRecurring             bool       `json:"is_recurring"`
	RecurrenceType          string     `json:"recurrence_type"`
	RecurrenceInterval      int        `json:"recurrence_interval"`
	PreDueDays              []int      `json:"pre_due_days"`
}

func (req *reminderRequest) validate() string {
	if strings.TrimSpace(req.Title) == "" {
		return "title is required"
	}
	if req.DueDate.IsZero() {
		return "due_date is required"
	}
	if req.ReminderIntervalMinutes != nil && *req.ReminderIntervalMinutes <= 0 {
		return "reminder_interval_minutes must be positive"
	}
	if req.IsRecurring {
		if _, err := recurrence.Parse(req.RecurrenceType, req.RecurrenceInterval); err != nil {
			return "unknown recurrence_type"
		}
		if req.ReminderIntervalMinutes != nil {
			return "reminder_interval_minutes cannot be combined with recurrence"
		}
	}
	for _, d := range req.PreDueDays {
		if d <= 0 {
			return "pre_due_days entries must be positive"
		}
	}
	return ""
}

func (req *reminderRequest) params() store.ReminderParams {
	return store.ReminderParams{
		Title:                   strings.TrimSpace(req.Title),
		Description:             req.Description,
		DueDate:                 req.DueDate,
		ReminderTime:            req.ReminderTime,
		NotificationTime:        req.NotificationTime,
		ReminderIntervalMinutes: req.ReminderIntervalMinutes,
		IsRecurring:             req.IsRecurring,
		RecurrenceType:          req.RecurrenceType,
		RecurrenceInterval:      req.RecurrenceInterval,
		PreDueDays:              req.PreDueDays,
	}
}

// Create handles POST /api/reminders
func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	reminder, err := h.reminders.Create(userID, req.params())
	if err != nil {
		h.logger.Error("create reminder", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create reminder")
		return
	}

	h.hub.SendToUser(userID, websocket.NewMessage("reminder", "created", reminder.ID, nil))
	writeJSON(w, http.StatusCreated, reminder)
}

// List handles GET /api/reminders
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	reminders, err := h.reminders.ListByUser(userID)
	if err != nil {
		h.logger.Error("list reminders", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reminders")
		return
	}
	if reminders == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, reminders)
}

// Get handles GET /api/reminders/{id}
func (h *ReminderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	reminder, err := h.reminders.GetByID(id, userID)
	if err != nil {
		h.logger.Error("get reminder", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load reminder")
		return
	}
	if reminder == nil {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}

// Update handles PUT /api/reminders/{id}
func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	existing, err := h.reminders.GetByID(id, userID)
	if err != nil {
		h.logger.Error("get reminder", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load reminder")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}

	reminder, err := h.reminders.Update(id, userID, req.params())
	if err != nil {
		h.logger.Error("update reminder", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update reminder")
		return
	}

	h.hub.SendToUser(userID, websocket.NewMessage("reminder", "updated", id, nil))
	writeJSON(w, http.StatusOK, reminder)
}

// Delete handles DELETE /api/reminders/{id}
func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.reminders.Delete(id, userID); err != nil {
		h.logger.Error("delete reminder", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete reminder")
		return
	}

	h.hub.SendToUser(userID, websocket.NewMessage("reminder", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Complete handles POST /api/reminders/{id}/complete
func (h *ReminderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	reminder, err := h.reminders.Complete(id, userID)
	if err != nil {
		h.logger.Error("complete reminder", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to complete reminder")
		return
	}
	if reminder == nil {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}

	h.hub.SendToUser(userID, websocket.NewMessage("reminder", "completed", id, nil))
	writeJSON(w, http.StatusOK, reminder)
}

type snoozeRequest struct {
	Until time.Time `json:"until"`
}

// Snooze handles POST /api/reminders/{id}/snooze
func (h *ReminderHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req snoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !req.Until.After(time.Now()) {
		writeError(w, http.StatusBadRequest, "until must be in the future")
		return
	}

	reminder, err := h.reminders.Snooze(id, userID, req.Until)
	if err != nil {
		h.logger.Error("snooze reminder", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to snooze reminder")
		return
	}
	if reminder == nil {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}

	h.hub.SendToUser(userID, websocket.NewMessage("reminder", "snoozed", id, nil))
	writeJSON(w, http.StatusOK, reminder)
}
