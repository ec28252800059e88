package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/zapislab/zapis/libs/eventx"
	"github.com/zapislab/zapis/services/notification-service/internal/storage"
)

type fakeSender struct {
	err   error
	calls int
}

func (f *fakeSender) Send(_ context.Context, _ string, _ string) error {
	f.calls++
	return f.err
}

func (f *fakeSender) ProviderID() string { return "telegram-fake" }

func newTestWorker(t *testing.T, sender *fakeSender) (*Worker, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWorker(mock, NewRepository(mock), storage.NewRepository(mock),
		eventx.NewOutboxRepository(mock), sender, logger, WorkerConfig{
			Interval:    time.Second,
			BatchSize:   10,
			Backoff:     time.Minute,
			SendTimeout: time.Second,
		})
	return w, mock
}

func jobRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "event_id", "event_type", "chat_id", "body",
		"attempts", "max_attempts", "next_run_at", "traceparent", "tracestate",
	})
}

func TestWorker_SuccessfulRetryIsProcessed(t *testing.T) {
	sender := &fakeSender{}
	w, mock := newTestWorker(t, sender)

	due := time.Now().UTC().Add(-time.Minute)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM send_retry_jobs").
		WillReturnRows(jobRows().AddRow(int64(7), "evt-1", "booking.appointment.booked.v1",
			"chat-1", "*New booking*", 1, 5, due, "", ""))
	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE send_retry_jobs").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	if err := w.ProcessBatch(context.Background()); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if sender.calls != 1 {
		t.Fatalf("sends = %d", sender.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestWorker_ExhaustedJobEmitsFailedEvent(t *testing.T) {
	sender := &fakeSender{err: errors.New("telegram sendMessage returned 502")}
	w, mock := newTestWorker(t, sender)

	due := time.Now().UTC().Add(-time.Minute)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM send_retry_jobs").
		WillReturnRows(jobRows().AddRow(int64(7), "evt-1", "booking.appointment.booked.v1",
			"chat-1", "*New booking*", 4, 5, due, "", ""))
	mock.ExpectExec("UPDATE send_retry_jobs").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := w.ProcessBatch(context.Background()); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestWorker_EmptyBatchCommits(t *testing.T) {
	sender := &fakeSender{}
	w, mock := newTestWorker(t, sender)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM send_retry_jobs").WillReturnRows(jobRows())
	mock.ExpectCommit()

	if err := w.ProcessBatch(context.Background()); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if sender.calls != 0 {
		t.Fatalf("sends = %d", sender.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
