package reminders

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/zapislab/zapis/libs/db"
	"github.com/zapislab/zapis/libs/eventx"
)

const EventReminderDue = "booking.reminder.due.v1"

// Runner is the daily reminder batch. It is driven by an external trigger and
// only stages events; delivery happens in notification-service after commit.
type Runner struct {
	q      db.Querier
	repo   *Repository
	outbox *eventx.OutboxRepository
	logger *slog.Logger
}

func NewRunner(q db.Querier, repo *Repository, outbox *eventx.OutboxRepository, logger *slog.Logger) *Runner {
	return &Runner{q: q, repo: repo, outbox: outbox, logger: logger}
}

// Run enqueues one reminder event per matching appointment and returns the
// number processed. A single degenerate row is logged and skipped; it never
// aborts the rest of the batch. Zero matches is a normal result.
func (r *Runner) Run(ctx context.Context, ref time.Time) (int, error) {
	tx, err := r.q.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	due, err := r.repo.FetchDue(ctx, tx, ref)
	if err != nil {
		return 0, err
	}

	var processed []string
	for _, d := range due {
		payload, err := json.Marshal(map[string]any{
			"appointment_id": d.AppointmentID,
			"master_id":      d.MasterID,
			"master_name":    d.MasterName,
			"service_name":   d.ServiceName,
			"client_name":    d.ClientName,
			"chat_id":        d.ClientChatID,
			"start_time":     d.StartTime.UTC().Format(time.RFC3339),
			"timezone":       d.Timezone,
		})
		if err != nil {
			r.logger.Error("reminder payload build failed", "appointment_id", d.AppointmentID, "err", err)
			continue
		}
		if err := r.outbox.Insert(ctx, tx, eventx.Event{
			AggregateType: "appointment",
			AggregateID:   d.AppointmentID,
			EventType:     EventReminderDue,
			Payload:       payload,
		}); err != nil {
			r.logger.Error("reminder enqueue failed", "appointment_id", d.AppointmentID, "err", err)
			continue
		}
		processed = append(processed, d.AppointmentID)
	}

	if err := r.repo.MarkSent(ctx, tx, processed, ref); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(processed), nil
}
