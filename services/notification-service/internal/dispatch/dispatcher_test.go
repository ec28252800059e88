package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/segmentio/kafka-go"
	"github.com/zapislab/zapis/libs/eventx"
	"github.com/zapislab/zapis/services/notification-service/internal/retry"
	"github.com/zapislab/zapis/services/notification-service/internal/storage"
)

type fakeSender struct {
	err   error
	calls []string
}

func (f *fakeSender) Send(_ context.Context, chatID string, text string) error {
	f.calls = append(f.calls, chatID+"|"+text)
	return f.err
}

func (f *fakeSender) ProviderID() string { return "telegram-fake" }

func newTestDispatcher(t *testing.T, sender *fakeSender) (*Dispatcher, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDispatcher(mock, storage.NewRepository(mock), retry.NewRepository(mock),
		eventx.NewOutboxRepository(mock), sender, logger, Config{
			SendTimeout:  time.Second,
			RetryBackoff: time.Minute,
		})
	return d, mock
}

func bookedMessage() kafka.Message {
	return kafka.Message{
		Topic: "booking.appointment.booked.v1",
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte("evt-1")},
			{Key: "event_type", Value: []byte("booking.appointment.booked.v1")},
		},
		Value: []byte(`{
			"master_chat_id": "chat-1",
			"service": {"name": "Manicure"},
			"client_name": "Anna",
			"client_phone": "+10000000001",
			"start_time": "2026-03-10T10:00:00Z",
			"timezone": "UTC"
		}`),
	}
}

func TestDispatcher_SendsAndRecordsNotification(t *testing.T) {
	sender := &fakeSender{}
	d, mock := newTestDispatcher(t, sender)

	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO outbox_events").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := d.Handler()(context.Background(), bookedMessage()); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(sender.calls) != 1 {
		t.Fatalf("sends = %d", len(sender.calls))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDispatcher_FailureQueuesRetryNotFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("telegram sendMessage returned 502")}
	d, mock := newTestDispatcher(t, sender)

	mock.ExpectExec("INSERT INTO send_retry_jobs").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := d.Handler()(context.Background(), bookedMessage()); err != nil {
		t.Fatalf("handler must absorb send failure, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDispatcher_NoRecipientIsSkipped(t *testing.T) {
	sender := &fakeSender{}
	d, _ := newTestDispatcher(t, sender)

	msg := bookedMessage()
	msg.Value = []byte(`{"service": {"name": "Manicure"}, "client_name": "Anna"}`)
	if err := d.Handler()(context.Background(), msg); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(sender.calls) != 0 {
		t.Fatalf("unexpected send: %v", sender.calls)
	}
}

func TestDispatcher_MalformedPayloadIsSkipped(t *testing.T) {
	sender := &fakeSender{}
	d, _ := newTestDispatcher(t, sender)

	msg := bookedMessage()
	msg.Value = []byte(`{`)
	if err := d.Handler()(context.Background(), msg); err != nil {
		t.Fatalf("poison message must not propagate: %v", err)
	}
	if len(sender.calls) != 0 {
		t.Fatalf("unexpected send: %v", sender.calls)
	}
}
