package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/zapislab/zapis/libs/eventx"
)

const (
	EventProfileUpdated  = "business.profile.updated.v1"
	EventServiceUpserted = "business.service.upserted.v1"
)

type profileUpdatedEvent struct {
	MasterID         string `json:"master_id"`
	Name             string `json:"name"`
	TelegramChatID   string `json:"telegram_chat_id"`
	Timezone         string `json:"timezone"`
	DisabledWeekdays []int  `json:"disabled_weekdays"`
	WorkStartMinute  int    `json:"work_start_minute"`
	WorkEndMinute    int    `json:"work_end_minute"`
	SlotStepMinutes  int    `json:"slot_step_minutes"`
}

type serviceUpsertedEvent struct {
	ServiceID       string `json:"service_id"`
	MasterID        string `json:"master_id"`
	Name            string `json:"name"`
	Price           string `json:"price"`
	DurationMinutes int    `json:"duration_minutes"`
}

// ProfileEventHandler applies business.profile.updated events to the local
// read model. Upserts are idempotent, so replays after an inbox wipe are safe.
func ProfileEventHandler(repo *Repository, logger *slog.Logger) eventx.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt profileUpdatedEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return fmt.Errorf("decode profile event: %w", err)
		}
		if evt.MasterID == "" {
			return fmt.Errorf("profile event missing master_id")
		}
		if err := repo.UpsertProfile(ctx, Profile{
			MasterID:         evt.MasterID,
			Name:             evt.Name,
			TelegramChatID:   evt.TelegramChatID,
			Timezone:         evt.Timezone,
			DisabledWeekdays: evt.DisabledWeekdays,
			WorkStartMinute:  evt.WorkStartMinute,
			WorkEndMinute:    evt.WorkEndMinute,
			SlotStepMinutes:  evt.SlotStepMinutes,
		}); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		logger.Info("profile read model updated", "master_id", evt.MasterID)
		return nil
	}
}

// ServiceEventHandler applies business.service.upserted events.
func ServiceEventHandler(repo *Repository, logger *slog.Logger) eventx.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt serviceUpsertedEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return fmt.Errorf("decode service event: %w", err)
		}
		if evt.ServiceID == "" || evt.MasterID == "" {
			return fmt.Errorf("service event missing ids")
		}
		if err := repo.UpsertService(ctx, Service{
			ID:              evt.ServiceID,
			MasterID:        evt.MasterID,
			Name:            evt.Name,
			Price:           evt.Price,
			DurationMinutes: evt.DurationMinutes,
		}); err != nil {
			return fmt.Errorf("upsert service: %w", err)
		}
		logger.Info("service read model updated", "service_id", evt.ServiceID, "master_id", evt.MasterID)
		return nil
	}
}
