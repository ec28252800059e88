package retry

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/zapislab/zapis/libs/db"
	otelx "github.com/zapislab/zapis/libs/otel"
)

// Job is a Telegram send that failed and is parked for another attempt. Trace
// context is carried along so the eventual send joins the original trace.
type Job struct {
	ID          int64
	EventID     string
	EventType   string
	ChatID      string
	Body        string
	Attempts    int
	MaxAttempts int
	NextRunAt   time.Time
	Traceparent string
	Tracestate  string
}

type Repository struct {
	q db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

func (r *Repository) Insert(ctx context.Context, job Job) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := r.q.Exec(ctx, `
		INSERT INTO send_retry_jobs (event_id, event_type, chat_id, body, next_run_at, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, job.EventID, job.EventType, job.ChatID, job.Body, job.NextRunAt, traceparent, tracestate)
	return err
}

func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, limit int) ([]Job, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id, event_type, chat_id, body, attempts, max_attempts, next_run_at, traceparent, tracestate
		FROM send_retry_jobs
		WHERE status = 'pending' AND next_run_at <= now()
		ORDER BY next_run_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.EventID, &j.EventType, &j.ChatID, &j.Body,
			&j.Attempts, &j.MaxAttempts, &j.NextRunAt, &j.Traceparent, &j.Tracestate); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return jobs, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE send_retry_jobs
		SET status = 'processed', updated_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, id int64, attempts int, maxAttempts int, nextRunAt time.Time, lastError string) error {
	status := "pending"
	if attempts >= maxAttempts {
		status = "failed"
	}
	_, err := tx.Exec(ctx, `
		UPDATE send_retry_jobs
		SET attempts = $2,
		    status = $3,
		    next_run_at = $4,
		    last_error = $5,
		    updated_at = now()
		WHERE id = $1
	`, id, attempts, status, nextRunAt, lastError)
	return err
}
