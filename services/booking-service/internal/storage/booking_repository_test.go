package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/zapislab/zapis/services/booking-service/internal/model"
)

func TestBookingRepository_Create_TranslatesSlotConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_slot_guard"})

	repo := NewBookingRepository(mock)
	tx, err := repo.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	_, err = repo.Create(context.Background(), tx, &model.Appointment{
		MasterID:    "m1",
		ServiceID:   "s1",
		StartTime:   time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		ClientName:  "Anna",
		ClientPhone: "+10000000001",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if IsNotFound(err) {
		t.Fatal("conflict must not read as not found")
	}
}

func TestBookingRepository_Cancel_ReturnsPriorSnapshot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	created := start.Add(-48 * time.Hour)
	cancelled := start.Add(-24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("appt-1", model.StatusCancelled, model.StatusPending).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "master_id", "service_id", "start_time",
			"client_name", "client_phone", "client_chat_id", "created_at", "cancelled_at",
		}).AddRow("appt-1", "m1", "s1", start, "Anna", "+10000000001", "chat-9", created, cancelled))
	mock.ExpectCommit()

	repo := NewBookingRepository(mock)
	ctx := context.Background()
	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	appt, err := repo.Cancel(ctx, tx, "appt-1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if appt.Status != model.StatusCancelled {
		t.Fatalf("status = %q", appt.Status)
	}
	if appt.ClientName != "Anna" || appt.ClientChatID != "chat-9" {
		t.Fatalf("snapshot fields lost: %+v", appt)
	}
	if appt.CancelledAt == nil || !appt.CancelledAt.Equal(cancelled) {
		t.Fatalf("cancelled_at = %v", appt.CancelledAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestBookingRepository_Cancel_MissingIsNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("nope", model.StatusCancelled, model.StatusPending).
		WillReturnError(pgx.ErrNoRows)

	repo := NewBookingRepository(mock)
	tx, err := repo.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	_, err = repo.Cancel(context.Background(), tx, "nope")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBookingRepository_ListBookedStarts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	dayStart := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	mock.ExpectQuery("SELECT start_time").
		WithArgs("m1", model.StatusPending, dayStart, dayEnd).
		WillReturnRows(pgxmock.NewRows([]string{"start_time"}).
			AddRow(dayStart.Add(10 * time.Hour)).
			AddRow(dayStart.Add(11 * time.Hour)))

	repo := NewBookingRepository(mock)
	starts, err := repo.ListBookedStarts(context.Background(), "m1", dayStart, dayEnd)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(starts) != 2 {
		t.Fatalf("got %d starts", len(starts))
	}
	if !starts[0].Before(starts[1]) {
		t.Fatal("starts out of order")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
