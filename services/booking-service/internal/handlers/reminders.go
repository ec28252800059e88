package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/zapislab/zapis/services/booking-service/internal/metrics"
	"github.com/zapislab/zapis/services/booking-service/internal/reminders"
)

// ReminderHandler exposes the externally scheduled daily reminder run. The
// route is wrapped with a shared-secret bearer check at mux construction.
type ReminderHandler struct {
	runner  *reminders.Runner
	logger  *slog.Logger
	metrics *metrics.BookingMetrics
	now     func() time.Time
}

func NewReminderHandler(runner *reminders.Runner, logger *slog.Logger, m *metrics.BookingMetrics) *ReminderHandler {
	return &ReminderHandler{runner: runner, logger: logger, metrics: m, now: time.Now}
}

type runRemindersResponse struct {
	Processed int `json:"processed"`
}

func (h *ReminderHandler) Run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	processed, err := h.runner.Run(r.Context(), h.now())
	if err != nil {
		h.logger.Error("reminder run failed", "err", err)
		http.Error(w, "reminder run failed", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveRemindersProcessed(processed)
	h.logger.Info("reminder run complete", "processed", processed)

	writeJSON(w, http.StatusOK, runRemindersResponse{Processed: processed})
}
