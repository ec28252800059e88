package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/segmentio/kafka-go"
)

func TestProfileEventHandler_UpsertsReadModel(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO master_profiles").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := ProfileEventHandler(NewRepository(mock), logger)

	msg := kafka.Message{Value: []byte(`{
		"master_id": "m1",
		"name": "Olga",
		"telegram_chat_id": "chat-1",
		"timezone": "Europe/Moscow",
		"disabled_weekdays": [0],
		"work_start_minute": 540,
		"work_end_minute": 1080,
		"slot_step_minutes": 60
	}`)}
	if err := handler(context.Background(), msg); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestProfileEventHandler_RejectsMissingMasterID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := ProfileEventHandler(NewRepository(mock), logger)

	if err := handler(context.Background(), kafka.Message{Value: []byte(`{"name":"Olga"}`)}); err == nil {
		t.Fatal("expected error for missing master_id")
	}
}

func TestServiceEventHandler_UpsertsService(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO master_services").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := ServiceEventHandler(NewRepository(mock), logger)

	msg := kafka.Message{Value: []byte(`{
		"service_id": "s1",
		"master_id": "m1",
		"name": "Manicure",
		"price": "1500",
		"duration_minutes": 60
	}`)}
	if err := handler(context.Background(), msg); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
