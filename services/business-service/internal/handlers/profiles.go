package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/zapislab/zapis/libs/eventx"
	"github.com/zapislab/zapis/services/business-service/internal/model"
	"github.com/zapislab/zapis/services/business-service/internal/storage"
)

const (
	EventProfileUpdated  = "business.profile.updated.v1"
	EventServiceUpserted = "business.service.upserted.v1"
)

type ProfileHandler struct {
	repo   *storage.Repository
	outbox *eventx.OutboxRepository
	logger *slog.Logger
}

func NewProfileHandler(repo *storage.Repository, outbox *eventx.OutboxRepository, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{repo: repo, outbox: outbox, logger: logger}
}

type profileRequest struct {
	MasterID         string `json:"master_id"`
	Name             string `json:"name"`
	TelegramChatID   string `json:"telegram_chat_id"`
	Timezone         string `json:"timezone"`
	DisabledWeekdays []int  `json:"disabled_weekdays"`
	WorkStartMinute  int    `json:"work_start_minute"`
	WorkEndMinute    int    `json:"work_end_minute"`
	SlotStepMinutes  int    `json:"slot_step_minutes"`
}

type profileResponse struct {
	MasterID         string `json:"master_id"`
	Name             string `json:"name"`
	TelegramChatID   string `json:"telegram_chat_id"`
	Timezone         string `json:"timezone"`
	DisabledWeekdays []int  `json:"disabled_weekdays"`
	WorkStartMinute  int    `json:"work_start_minute"`
	WorkEndMinute    int    `json:"work_end_minute"`
	SlotStepMinutes  int    `json:"slot_step_minutes"`
}

type createServiceRequest struct {
	MasterID        string `json:"master_id"`
	Name            string `json:"name"`
	Price           string `json:"price"`
	DurationMinutes int    `json:"duration_minutes"`
}

type serviceItem struct {
	ServiceID       string `json:"service_id"`
	MasterID        string `json:"master_id"`
	Name            string `json:"name"`
	Price           string `json:"price"`
	DurationMinutes int    `json:"duration_minutes"`
}

func validateProfileRequest(req *profileRequest) string {
	req.Name = strings.TrimSpace(req.Name)
	req.TelegramChatID = strings.TrimSpace(req.TelegramChatID)
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Name == "" {
		return "name is required"
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return "unknown timezone"
	}
	if req.WorkStartMinute == 0 && req.WorkEndMinute == 0 {
		req.WorkStartMinute = 9 * 60
		req.WorkEndMinute = 18 * 60
	}
	if req.WorkStartMinute < 0 || req.WorkEndMinute > 24*60 || req.WorkEndMinute <= req.WorkStartMinute {
		return "working hours out of range"
	}
	if req.SlotStepMinutes == 0 {
		req.SlotStepMinutes = 60
	}
	if req.SlotStepMinutes < 0 || req.SlotStepMinutes > 12*60 {
		return "slot_step_minutes out of range"
	}
	for _, d := range req.DisabledWeekdays {
		if d < 0 || d > 6 {
			return "disabled_weekdays entries must be 0..6"
		}
	}
	return ""
}

func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if msg := validateProfileRequest(&req); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	profile := &model.Profile{
		Name:             req.Name,
		TelegramChatID:   req.TelegramChatID,
		Timezone:         req.Timezone,
		DisabledWeekdays: req.DisabledWeekdays,
		WorkStartMinute:  req.WorkStartMinute,
		WorkEndMinute:    req.WorkEndMinute,
		SlotStepMinutes:  req.SlotStepMinutes,
	}
	id, err := h.repo.CreateProfile(ctx, tx, profile)
	if err != nil {
		http.Error(w, "failed to create profile", http.StatusInternalServerError)
		return
	}
	profile.MasterID = id

	if !h.stageProfileEvent(w, r, tx, profile) {
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, profileToResponse(*profile))
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.MasterID = strings.TrimSpace(req.MasterID)
	if req.MasterID == "" {
		http.Error(w, "master_id required", http.StatusBadRequest)
		return
	}
	if msg := validateProfileRequest(&req); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	updated, err := h.repo.UpdateProfile(ctx, tx, &model.Profile{
		MasterID:         req.MasterID,
		Name:             req.Name,
		TelegramChatID:   req.TelegramChatID,
		Timezone:         req.Timezone,
		DisabledWeekdays: req.DisabledWeekdays,
		WorkStartMinute:  req.WorkStartMinute,
		WorkEndMinute:    req.WorkEndMinute,
		SlotStepMinutes:  req.SlotStepMinutes,
	})
	if err != nil {
		if err == storage.ErrNotFound {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update profile", http.StatusInternalServerError)
		return
	}

	if !h.stageProfileEvent(w, r, tx, &updated) {
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, profileToResponse(updated))
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	masterID := strings.TrimSpace(r.URL.Query().Get("master_id"))
	if masterID == "" {
		http.Error(w, "master_id required", http.StatusBadRequest)
		return
	}
	profile, err := h.repo.GetProfile(r.Context(), masterID)
	if err != nil {
		if err == storage.ErrNotFound {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, profileToResponse(profile))
}

func (h *ProfileHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.MasterID = strings.TrimSpace(req.MasterID)
	req.Name = strings.TrimSpace(req.Name)
	req.Price = strings.TrimSpace(req.Price)
	if req.MasterID == "" || req.Name == "" {
		http.Error(w, "master_id and name are required", http.StatusBadRequest)
		return
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 60
	}

	ctx := r.Context()
	if _, err := h.repo.GetProfile(ctx, req.MasterID); err != nil {
		if err == storage.ErrNotFound {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	svc := &model.Service{
		MasterID:        req.MasterID,
		Name:            req.Name,
		Price:           req.Price,
		DurationMinutes: req.DurationMinutes,
	}
	id, err := h.repo.CreateService(ctx, tx, svc)
	if err != nil {
		http.Error(w, "failed to create service", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"service_id":       id,
		"master_id":        svc.MasterID,
		"name":             svc.Name,
		"price":            svc.Price,
		"duration_minutes": svc.DurationMinutes,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outbox.Insert(ctx, tx, eventx.Event{
		AggregateType: "service",
		AggregateID:   id,
		EventType:     EventServiceUpserted,
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, serviceItem{
		ServiceID:       id,
		MasterID:        svc.MasterID,
		Name:            svc.Name,
		Price:           svc.Price,
		DurationMinutes: svc.DurationMinutes,
	})
}

func (h *ProfileHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	masterID := strings.TrimSpace(r.URL.Query().Get("master_id"))
	if masterID == "" {
		http.Error(w, "master_id required", http.StatusBadRequest)
		return
	}
	services, err := h.repo.ListServices(r.Context(), masterID)
	if err != nil {
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}
	items := make([]serviceItem, 0, len(services))
	for _, s := range services {
		items = append(items, serviceItem{
			ServiceID:       s.ID,
			MasterID:        s.MasterID,
			Name:            s.Name,
			Price:           s.Price,
			DurationMinutes: s.DurationMinutes,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// stageProfileEvent writes the read-model fan-out event; the payload mirrors
// what booking's catalog consumer expects.
func (h *ProfileHandler) stageProfileEvent(w http.ResponseWriter, r *http.Request, tx pgx.Tx, p *model.Profile) bool {
	payload, err := json.Marshal(map[string]any{
		"master_id":         p.MasterID,
		"name":              p.Name,
		"telegram_chat_id":  p.TelegramChatID,
		"timezone":          p.Timezone,
		"disabled_weekdays": p.DisabledWeekdays,
		"work_start_minute": p.WorkStartMinute,
		"work_end_minute":   p.WorkEndMinute,
		"slot_step_minutes": p.SlotStepMinutes,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return false
	}
	if err := h.outbox.Insert(r.Context(), tx, eventx.Event{
		AggregateType: "profile",
		AggregateID:   p.MasterID,
		EventType:     EventProfileUpdated,
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return false
	}
	return true
}

func profileToResponse(p model.Profile) profileResponse {
	return profileResponse{
		MasterID:         p.MasterID,
		Name:             p.Name,
		TelegramChatID:   p.TelegramChatID,
		Timezone:         p.Timezone,
		DisabledWeekdays: p.DisabledWeekdays,
		WorkStartMinute:  p.WorkStartMinute,
		WorkEndMinute:    p.WorkEndMinute,
		SlotStepMinutes:  p.SlotStepMinutes,
	}
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
