package retry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/zapislab/zapis/libs/db"
	"github.com/zapislab/zapis/libs/eventx"
	otelx "github.com/zapislab/zapis/libs/otel"
	"github.com/zapislab/zapis/services/notification-service/internal/storage"
	"github.com/zapislab/zapis/services/notification-service/internal/telegram"
)

const (
	EventNotificationSent   = "notification.sent.v1"
	EventNotificationFailed = "notification.failed.v1"
)

// Worker drains send_retry_jobs: each due job gets one more Telegram attempt,
// then is either marked processed or rescheduled with backoff. A job that
// burns through max_attempts turns into a terminal notification.failed event.
type Worker struct {
	q             db.Querier
	repo          *Repository
	notifications *storage.Repository
	outbox        *eventx.OutboxRepository
	sender        telegram.Sender
	logger        *slog.Logger
	interval      time.Duration
	batchSize     int
	backoff       time.Duration
	sendTimeout   time.Duration
}

type WorkerConfig struct {
	Interval    time.Duration
	BatchSize   int
	Backoff     time.Duration
	SendTimeout time.Duration
}

func NewWorker(q db.Querier, repo *Repository, notifications *storage.Repository, outboxRepo *eventx.OutboxRepository, sender telegram.Sender, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1 * time.Minute
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	return &Worker{
		q:             q,
		repo:          repo,
		notifications: notifications,
		outbox:        outboxRepo,
		sender:        sender,
		logger:        logger,
		interval:      cfg.Interval,
		batchSize:     cfg.BatchSize,
		backoff:       cfg.Backoff,
		sendTimeout:   cfg.SendTimeout,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ProcessBatch(ctx); err != nil {
				w.logger.Error("retry batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) ProcessBatch(ctx context.Context) error {
	tx, err := w.q.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	jobs, err := w.repo.FetchDue(ctx, tx, w.batchSize)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return tx.Commit(ctx)
	}

	var sent []int64
	for _, job := range jobs {
		jobCtx := otelx.ContextWithTraceContext(ctx, job.Traceparent, job.Tracestate)

		sendCtx, cancel := context.WithTimeout(jobCtx, w.sendTimeout)
		sendErr := w.sender.Send(sendCtx, job.ChatID, job.Body)
		cancel()

		if sendErr == nil {
			sent = append(sent, job.ID)
			if err := w.notifications.Insert(jobCtx, storage.Notification{
				EventID:   job.EventID,
				EventType: job.EventType,
				ChatID:    job.ChatID,
				Body:      job.Body,
				Status:    storage.StatusSent,
			}); err != nil {
				return err
			}
			if err := w.stageEvent(jobCtx, tx, EventNotificationSent, job, ""); err != nil {
				return err
			}
			continue
		}

		attempts := job.Attempts + 1
		nextRunAt := time.Now().UTC().Add(w.backoff)
		w.logger.Error("telegram retry failed", "err", sendErr, "chat_id", job.ChatID, "attempt", attempts)
		if err := w.repo.MarkFailed(ctx, tx, job.ID, attempts, job.MaxAttempts, nextRunAt, sendErr.Error()); err != nil {
			return err
		}
		if attempts >= job.MaxAttempts {
			if err := w.notifications.Insert(jobCtx, storage.Notification{
				EventID:   job.EventID,
				EventType: job.EventType,
				ChatID:    job.ChatID,
				Body:      job.Body,
				Status:    storage.StatusFailed,
			}); err != nil {
				return err
			}
			if err := w.stageEvent(jobCtx, tx, EventNotificationFailed, job, "max attempts reached: "+sendErr.Error()); err != nil {
				return err
			}
		}
	}

	if err := w.repo.MarkProcessed(ctx, tx, sent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (w *Worker) stageEvent(ctx context.Context, tx pgx.Tx, eventType string, job Job, reason string) error {
	fields := map[string]any{
		"source_event_id":   job.EventID,
		"source_event_type": job.EventType,
		"chat_id":           job.ChatID,
		"provider_id":       w.sender.ProviderID(),
	}
	if eventType == EventNotificationSent {
		fields["sent_at"] = time.Now().UTC().Format(time.RFC3339)
	} else {
		fields["error_reason"] = reason
		fields["failed_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return w.outbox.Insert(ctx, tx, eventx.Event{
		AggregateType: "notification",
		AggregateID:   job.EventID,
		EventType:     eventType,
		Payload:       payload,
	})
}
