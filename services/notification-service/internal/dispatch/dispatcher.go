// Package dispatch is the consume side of notification-service: it renders
// each booking event into a Telegram message, attempts delivery once, and
// either records success or parks the send for the retry worker.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/zapislab/zapis/libs/db"
	"github.com/zapislab/zapis/libs/eventx"
	"github.com/zapislab/zapis/libs/kafkax"
	"github.com/zapislab/zapis/services/notification-service/internal/message"
	"github.com/zapislab/zapis/services/notification-service/internal/retry"
	"github.com/zapislab/zapis/services/notification-service/internal/storage"
	"github.com/zapislab/zapis/services/notification-service/internal/telegram"
)

type Dispatcher struct {
	q             db.Querier
	notifications *storage.Repository
	retries       *retry.Repository
	outbox        *eventx.OutboxRepository
	sender        telegram.Sender
	logger        *slog.Logger
	sendTimeout   time.Duration
	retryBackoff  time.Duration
}

type Config struct {
	SendTimeout  time.Duration
	RetryBackoff time.Duration
}

func NewDispatcher(q db.Querier, notifications *storage.Repository, retries *retry.Repository, outboxRepo *eventx.OutboxRepository, sender telegram.Sender, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 1 * time.Minute
	}
	return &Dispatcher{
		q:             q,
		notifications: notifications,
		retries:       retries,
		outbox:        outboxRepo,
		sender:        sender,
		logger:        logger,
		sendTimeout:   cfg.SendTimeout,
		retryBackoff:  cfg.RetryBackoff,
	}
}

// Handler processes one consumed event. Malformed payloads and events without
// a recipient are logged and skipped; only infrastructure failures propagate,
// so a bad message can never wedge the topic.
func (d *Dispatcher) Handler() eventx.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		meta := kafkax.ExtractEventMeta(msg)
		eventType := meta.EventType
		if eventType == "" {
			eventType = msg.Topic
		}

		rendered, err := message.Render(eventType, msg.Value)
		if err != nil {
			if errors.Is(err, message.ErrNoRecipient) {
				d.logger.Info("no chat address configured, skipping", "event_type", eventType, "event_id", meta.EventID)
				return nil
			}
			d.logger.Error("render failed, skipping", "err", err, "event_type", eventType, "event_id", meta.EventID)
			return nil
		}

		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		sendErr := d.sender.Send(sendCtx, rendered.ChatID, rendered.Text)
		cancel()

		if sendErr != nil {
			d.logger.Error("telegram send failed, queueing retry", "err", sendErr, "chat_id", rendered.ChatID, "event_id", meta.EventID)
			if err := d.retries.Insert(ctx, retry.Job{
				EventID:   meta.EventID,
				EventType: eventType,
				ChatID:    rendered.ChatID,
				Body:      rendered.Text,
				NextRunAt: time.Now().UTC().Add(d.retryBackoff),
			}); err != nil {
				return err
			}
			return d.notifications.Insert(ctx, storage.Notification{
				EventID:   meta.EventID,
				EventType: eventType,
				ChatID:    rendered.ChatID,
				Body:      rendered.Text,
				Status:    storage.StatusRetrying,
			})
		}

		if err := d.notifications.Insert(ctx, storage.Notification{
			EventID:   meta.EventID,
			EventType: eventType,
			ChatID:    rendered.ChatID,
			Body:      rendered.Text,
			Status:    storage.StatusSent,
		}); err != nil {
			return err
		}
		return d.stageSent(ctx, meta, rendered.ChatID)
	}
}

func (d *Dispatcher) stageSent(ctx context.Context, meta kafkax.EventMeta, chatID string) error {
	tx, err := d.q.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	payload, err := json.Marshal(map[string]any{
		"source_event_id":   meta.EventID,
		"source_event_type": meta.EventType,
		"chat_id":           chatID,
		"provider_id":       d.sender.ProviderID(),
		"sent_at":           time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := d.outbox.Insert(ctx, tx, eventx.Event{
		AggregateType: "notification",
		AggregateID:   meta.EventID,
		EventType:     retry.EventNotificationSent,
		Payload:       payload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
