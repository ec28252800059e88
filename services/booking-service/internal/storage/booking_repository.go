package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/zapislab/zapis/libs/db"
	"github.com/zapislab/zapis/services/booking-service/internal/model"
)

type BookingRepository struct {
	q db.Querier
}

func NewBookingRepository(q db.Querier) *BookingRepository {
	return &BookingRepository{q: q}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.q.Begin(ctx)
}

// Create inserts a pending appointment. Slot uniqueness is enforced solely by
// the partial unique index on (master_id, start_time); a losing insert comes
// back as a conflict error, never as a silently overwritten row.
func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(master_id, service_id, start_time, client_name, client_phone, client_chat_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, appt.MasterID, appt.ServiceID, appt.StartTime, appt.ClientName, appt.ClientPhone,
		appt.ClientChatID, model.StatusPending).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Cancel marks a pending appointment cancelled and returns the prior snapshot.
// A missing or already-cancelled appointment returns pgx.ErrNoRows; the single
// conditional UPDATE means two racing cancels cannot both report success.
func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, appointmentID string) (model.Appointment, error) {
	var appt model.Appointment
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
			cancelled_at = now()
		WHERE id = $1 AND status = $3
		RETURNING id::text, master_id::text, service_id::text, start_time,
			client_name, client_phone, client_chat_id, created_at, cancelled_at
	`, appointmentID, model.StatusCancelled, model.StatusPending).Scan(
		&appt.ID,
		&appt.MasterID,
		&appt.ServiceID,
		&appt.StartTime,
		&appt.ClientName,
		&appt.ClientPhone,
		&appt.ClientChatID,
		&appt.CreatedAt,
		&cancelledAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.StatusCancelled
	appt.CancelledAt = &cancelledAt
	return appt, nil
}

// ListBookedStarts returns the start times of non-cancelled appointments for
// one master inside [dayStart, dayEnd).
func (r *BookingRepository) ListBookedStarts(ctx context.Context, masterID string, dayStart, dayEnd time.Time) ([]time.Time, error) {
	rows, err := r.q.Query(ctx, `
		SELECT start_time
		FROM appointments
		WHERE master_id = $1
			AND status = $2
			AND start_time >= $3
			AND start_time < $4
		ORDER BY start_time ASC
	`, masterID, model.StatusPending, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var starts []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		starts = append(starts, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return starts, nil
}

func (r *BookingRepository) ListByMaster(ctx context.Context, masterID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.q.Query(ctx, `
		SELECT id::text, master_id::text, service_id::text, start_time,
			client_name, client_phone, client_chat_id, status, cancelled_at, created_at
		FROM appointments
		WHERE master_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, masterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		var cancelledAt *time.Time
		if err := rows.Scan(
			&appt.ID,
			&appt.MasterID,
			&appt.ServiceID,
			&appt.StartTime,
			&appt.ClientName,
			&appt.ClientPhone,
			&appt.ClientChatID,
			&appt.Status,
			&cancelledAt,
			&appt.CreatedAt,
		); err != nil {
			return nil, err
		}
		appt.CancelledAt = cancelledAt
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// IsConflict reports whether err is the slot guard firing (unique violation).
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
