package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/calebwray/tock/internal/auth"
	"github.com/calebwray/tock/internal/ics"
	"github.com/calebwray/tock/internal/store"
)

type CalendarHandler struct {
	reminders *store.ReminderStore
	logger    *slog.Logger
}

func NewCalendarHandler(rs *store.ReminderStore, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{reminders: rs, logger: logger}
}

// Feed handles GET /api/calendar/feed.ics
func (h *CalendarHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	reminders, err := h.reminders.ListOpenByUser(userID)
	if err != nil {
		h.logger.Error("calendar feed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build feed")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tock.ics"`)
	w.Write(ics.Feed(reminders, time.Now()))
}
