package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zapislab/zapis/libs/eventx"
	"github.com/zapislab/zapis/services/booking-service/internal/availability"
	"github.com/zapislab/zapis/services/booking-service/internal/catalog"
	"github.com/zapislab/zapis/services/booking-service/internal/metrics"
	"github.com/zapislab/zapis/services/booking-service/internal/model"
	"github.com/zapislab/zapis/services/booking-service/internal/storage"
)

const (
	EventAppointmentBooked    = "booking.appointment.booked.v1"
	EventAppointmentCancelled = "booking.appointment.cancelled.v1"
	EventWaitlistJoined       = "booking.waitlist.joined.v1"
	EventSlotFreed            = "booking.slot.freed.v1"
)

type BookingHandler struct {
	repo     *storage.BookingRepository
	waitlist *storage.WaitlistRepository
	catalog  *catalog.Repository
	outbox   *eventx.OutboxRepository
	logger   *slog.Logger
	metrics  *metrics.BookingMetrics
	now      func() time.Time
}

func NewBookingHandler(repo *storage.BookingRepository, waitlist *storage.WaitlistRepository, cat *catalog.Repository, outbox *eventx.OutboxRepository, logger *slog.Logger, m *metrics.BookingMetrics) *BookingHandler {
	return &BookingHandler{
		repo:     repo,
		waitlist: waitlist,
		catalog:  cat,
		outbox:   outbox,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

type createBookingRequest struct {
	MasterID     string `json:"master_id"`
	ServiceID    string `json:"service_id"`
	StartTime    string `json:"start_time"`
	ClientName   string `json:"client_name"`
	ClientPhone  string `json:"client_phone"`
	ClientChatID string `json:"client_chat_id"`
}

type createBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
}

type cancelBookingRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type cancelBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at"`
}

type joinWaitlistRequest struct {
	MasterID     string `json:"master_id"`
	Date         string `json:"date"`
	ClientName   string `json:"client_name"`
	ClientPhone  string `json:"client_phone"`
	ClientChatID string `json:"client_chat_id"`
}

type joinWaitlistResponse struct {
	EntryID string `json:"entry_id"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
}

type listAppointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	ServiceID     string `json:"service_id"`
	StartTime     string `json:"start_time"`
	ClientName    string `json:"client_name"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.MasterID = strings.TrimSpace(req.MasterID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.ClientPhone = strings.TrimSpace(req.ClientPhone)
	req.ClientChatID = strings.TrimSpace(req.ClientChatID)

	if req.MasterID == "" || req.ServiceID == "" || req.ClientName == "" || req.ClientPhone == "" {
		h.metrics.ObserveBooking("invalid")
		http.Error(w, "master_id, service_id, client_name, and client_phone are required", http.StatusBadRequest)
		return
	}
	startTime, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		h.metrics.ObserveBooking("invalid")
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	profile, err := h.catalog.GetProfile(ctx, req.MasterID)
	if err != nil {
		if err == catalog.ErrNotFound {
			h.metrics.ObserveBooking("invalid")
			http.Error(w, "unknown master", http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, "failed to load master profile", http.StatusInternalServerError)
		return
	}
	svc, err := h.catalog.GetService(ctx, req.MasterID, req.ServiceID)
	if err != nil {
		if err == catalog.ErrNotFound {
			h.metrics.ObserveBooking("invalid")
			http.Error(w, "unknown service for this master", http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, "failed to load service", http.StatusInternalServerError)
		return
	}

	if msg := h.validateSlot(profile, startTime); msg != "" {
		h.metrics.ObserveBooking("invalid")
		http.Error(w, msg, http.StatusUnprocessableEntity)
		return
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt := &model.Appointment{
		MasterID:     req.MasterID,
		ServiceID:    req.ServiceID,
		StartTime:    startTime,
		ClientName:   req.ClientName,
		ClientPhone:  req.ClientPhone,
		ClientChatID: req.ClientChatID,
	}
	id, err := h.repo.Create(ctx, tx, appt)
	if err != nil {
		if storage.IsConflict(err) {
			h.metrics.ObserveBooking("conflict")
			http.Error(w, "this time was just taken", http.StatusConflict)
			return
		}
		h.metrics.ObserveBooking("error")
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": id,
		"master_id":      profile.MasterID,
		"master_name":    profile.Name,
		"master_chat_id": profile.TelegramChatID,
		"service": map[string]any{
			"name":             svc.Name,
			"price":            svc.Price,
			"duration_minutes": svc.DurationMinutes,
		},
		"client_name":    appt.ClientName,
		"client_phone":   appt.ClientPhone,
		"client_chat_id": appt.ClientChatID,
		"start_time":     startTime.UTC().Format(time.RFC3339),
		"timezone":       profile.Timezone,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outbox.Insert(ctx, tx, eventx.Event{
		AggregateType: "appointment",
		AggregateID:   id,
		EventType:     EventAppointmentBooked,
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveBooking("created")

	writeJSON(w, http.StatusCreated, createBookingResponse{AppointmentID: id})
}

// validateSlot rejects starts the slot grid could never have offered. The
// unique index stays the sole guard against races; this only catches requests
// that skipped the slot listing.
func (h *BookingHandler) validateSlot(profile catalog.Profile, start time.Time) string {
	local := start.In(profile.Location())
	if !local.After(h.now().In(profile.Location())) {
		return "start_time is in the past"
	}
	for _, d := range profile.DisabledWeekdays {
		if int(local.Weekday()) == d {
			return "master does not work on this day"
		}
	}
	minute := local.Hour()*60 + local.Minute()
	if minute < profile.WorkStartMinute || minute >= profile.WorkEndMinute {
		return "start_time is outside working hours"
	}
	step := profile.SlotStepMinutes
	if step > 0 && (minute-profile.WorkStartMinute)%step != 0 {
		return "start_time is not on the slot grid"
	}
	return ""
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.Cancel(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			h.metrics.ObserveCancellation("not_found")
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.metrics.ObserveCancellation("error")
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}

	// The read model may lag behind; missing names degrade to generic text in
	// the notifier rather than failing the cancellation.
	profile, err := h.catalog.GetProfile(ctx, appt.MasterID)
	if err != nil && err != catalog.ErrNotFound {
		http.Error(w, "failed to load master profile", http.StatusInternalServerError)
		return
	}
	serviceName := ""
	if svc, err := h.catalog.GetService(ctx, appt.MasterID, appt.ServiceID); err == nil {
		serviceName = svc.Name
	}

	cancelPayload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"master_id":      appt.MasterID,
		"master_name":    profile.Name,
		"master_chat_id": profile.TelegramChatID,
		"service_name":   serviceName,
		"client_name":    appt.ClientName,
		"client_phone":   appt.ClientPhone,
		"client_chat_id": appt.ClientChatID,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"cancelled_at":   appt.CancelledAt.UTC().Format(time.RFC3339),
		"timezone":       profile.Timezone,
	})
	if err != nil {
		http.Error(w, "failed to build cancellation event", http.StatusInternalServerError)
		return
	}
	if err := h.outbox.Insert(ctx, tx, eventx.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     EventAppointmentCancelled,
		Payload:       cancelPayload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	// One slot-freed event per cancellation when anyone is waiting on the freed
	// local date, addressed to the master. Waitlisted clients are not contacted.
	freedDate := appt.StartTime.In(profile.Location()).Format("2006-01-02")
	entries, err := h.waitlist.ListForDate(ctx, appt.MasterID, freedDate)
	if err != nil {
		http.Error(w, "failed to check waitlist", http.StatusInternalServerError)
		return
	}
	if len(entries) > 0 {
		freedPayload, err := json.Marshal(map[string]any{
			"master_id":      appt.MasterID,
			"master_name":    profile.Name,
			"master_chat_id": profile.TelegramChatID,
			"date":           freedDate,
			"freed_time":     appt.StartTime.UTC().Format(time.RFC3339),
			"timezone":       profile.Timezone,
			"waiting_count":  len(entries),
		})
		if err != nil {
			http.Error(w, "failed to build slot freed event", http.StatusInternalServerError)
			return
		}
		if err := h.outbox.Insert(ctx, tx, eventx.Event{
			AggregateType: "appointment",
			AggregateID:   appt.ID,
			EventType:     EventSlotFreed,
			Payload:       freedPayload,
		}); err != nil {
			http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveCancellation("cancelled")

	writeJSON(w, http.StatusOK, cancelBookingResponse{
		AppointmentID: appt.ID,
		Status:        appt.Status,
		CancelledAt:   appt.CancelledAt.UTC().Format(time.RFC3339),
	})
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	masterID := strings.TrimSpace(r.URL.Query().Get("master_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if masterID == "" || dateStr == "" {
		http.Error(w, "master_id and date are required", http.StatusBadRequest)
		return
	}
	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	profile, err := h.catalog.GetProfile(ctx, masterID)
	if err != nil {
		if err == catalog.ErrNotFound {
			http.Error(w, "unknown master", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load master profile", http.StatusInternalServerError)
		return
	}

	loc := profile.Location()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	booked, err := h.repo.ListBookedStarts(ctx, masterID, dayStart, dayEnd)
	if err != nil {
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}

	sched := availability.Schedule{
		Location:         loc,
		DisabledWeekdays: profile.DisabledWeekdays,
		WorkStartMinute:  profile.WorkStartMinute,
		WorkEndMinute:    profile.WorkEndMinute,
		StepMinutes:      profile.SlotStepMinutes,
	}
	starts := availability.DaySlots(sched, day.Year(), day.Month(), day.Day(), booked, h.now())

	items := make([]slotItem, 0, len(starts))
	for _, s := range starts {
		items = append(items, slotItem{StartTime: s.Format(time.RFC3339)})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req joinWaitlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.MasterID = strings.TrimSpace(req.MasterID)
	req.Date = strings.TrimSpace(req.Date)
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.ClientPhone = strings.TrimSpace(req.ClientPhone)
	req.ClientChatID = strings.TrimSpace(req.ClientChatID)
	if req.MasterID == "" || req.Date == "" || req.ClientName == "" || req.ClientPhone == "" {
		http.Error(w, "master_id, date, client_name, and client_phone are required", http.StatusBadRequest)
		return
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	profile, err := h.catalog.GetProfile(ctx, req.MasterID)
	if err != nil {
		if err == catalog.ErrNotFound {
			http.Error(w, "unknown master", http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, "failed to load master profile", http.StatusInternalServerError)
		return
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	entry := &model.WaitlistEntry{
		MasterID:     req.MasterID,
		ClientName:   req.ClientName,
		ClientPhone:  req.ClientPhone,
		ClientChatID: req.ClientChatID,
	}
	entryID, err := h.waitlist.Add(ctx, tx, entry, req.Date)
	if err != nil {
		http.Error(w, "failed to add waitlist entry", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"entry_id":       entryID,
		"master_id":      req.MasterID,
		"master_name":    profile.Name,
		"master_chat_id": profile.TelegramChatID,
		"date":           req.Date,
		"client_name":    req.ClientName,
		"client_phone":   req.ClientPhone,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outbox.Insert(ctx, tx, eventx.Event{
		AggregateType: "waitlist_entry",
		AggregateID:   entryID,
		EventType:     EventWaitlistJoined,
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveWaitlistJoin()

	writeJSON(w, http.StatusCreated, joinWaitlistResponse{EntryID: entryID})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	masterID := strings.TrimSpace(r.URL.Query().Get("master_id"))
	if masterID == "" {
		http.Error(w, "master_id required", http.StatusBadRequest)
		return
	}

	appts, err := h.repo.ListByMaster(r.Context(), masterID, 50)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]listAppointmentItem, 0, len(appts))
	for _, appt := range appts {
		item := listAppointmentItem{
			AppointmentID: appt.ID,
			ServiceID:     appt.ServiceID,
			StartTime:     appt.StartTime.UTC().Format(time.RFC3339),
			ClientName:    appt.ClientName,
			Status:        appt.Status,
			CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
		}
		if appt.CancelledAt != nil {
			item.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
