package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/zapislab/zapis/libs/eventx"
	"github.com/zapislab/zapis/services/business-service/internal/storage"
)

func newTestHandler(t *testing.T) (*ProfileHandler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewProfileHandler(storage.NewRepository(mock), eventx.NewOutboxRepository(mock), logger)
	return h, mock
}

func TestCreateProfile_StagesUpdatedEvent(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO master_profiles").
		WillReturnRows(pgxmock.NewRows([]string{"master_id"}).AddRow("m1"))
	mock.ExpectExec("INSERT INTO outbox_events").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	body := `{"name":"Olga","telegram_chat_id":"chat-1","timezone":"Europe/Moscow","disabled_weekdays":[0]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/profiles", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp profileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.MasterID != "m1" {
		t.Fatalf("master_id = %q", resp.MasterID)
	}
	if resp.WorkStartMinute != 9*60 || resp.WorkEndMinute != 18*60 {
		t.Fatalf("defaults not applied: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateProfile_RejectsUnknownTimezone(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"name":"Olga","timezone":"Mars/Olympus"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/profiles", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUpdateProfile_UnknownMasterReturns404(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE master_profiles").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	body := `{"master_id":"ghost","name":"Olga"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/profiles/update", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateService_StagesUpsertedEvent(t *testing.T) {
	h, mock := newTestHandler(t)

	now := time.Now()
	mock.ExpectQuery("SELECT master_id::text").WithArgs("m1").
		WillReturnRows(pgxmock.NewRows([]string{
			"master_id", "name", "telegram_chat_id", "timezone", "disabled_weekdays",
			"work_start_minute", "work_end_minute", "slot_step_minutes", "created_at", "updated_at",
		}).AddRow("m1", "Olga", "chat-1", "UTC", []int{}, 540, 1080, 60, now, now))
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO master_services").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("s1"))
	mock.ExpectExec("INSERT INTO outbox_events").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	body := `{"master_id":"m1","name":"Manicure","price":"1500","duration_minutes":60}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/services", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateService(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp serviceItem
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ServiceID != "s1" {
		t.Fatalf("service_id = %q", resp.ServiceID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
