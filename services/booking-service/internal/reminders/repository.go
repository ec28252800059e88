package reminders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/zapislab/zapis/libs/db"
)

// DueAppointment is one pending appointment inside tomorrow's window, joined
// with the names needed to render a reminder. Joined names may be empty when
// the read model has no matching row; the renderer falls back to generic text.
type DueAppointment struct {
	AppointmentID string
	MasterID      string
	MasterName    string
	ServiceName   string
	ClientName    string
	ClientChatID  string
	StartTime     time.Time
	Timezone      string
}

type Repository struct {
	q db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// FetchDue selects pending appointments with a client chat id whose start
// falls on the day after the reference time, evaluated in each master's
// business timezone. Appointments already marked for that local date are
// skipped, so a second run on the same day is a no-op.
func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, ref time.Time) ([]DueAppointment, error) {
	rows, err := tx.Query(ctx, `
		SELECT a.id::text, a.master_id::text,
			COALESCE(p.name, ''), COALESCE(s.name, ''),
			a.client_name, a.client_chat_id, a.start_time,
			COALESCE(p.timezone, 'UTC')
		FROM appointments a
		LEFT JOIN master_profiles p ON p.master_id = a.master_id
		LEFT JOIN master_services s ON s.id = a.service_id
		WHERE a.status = 'pending'
			AND a.client_chat_id <> ''
			AND (a.start_time AT TIME ZONE COALESCE(p.timezone, 'UTC'))::date
				= (($1::timestamptz AT TIME ZONE COALESCE(p.timezone, 'UTC'))::date + 1)
			AND a.reminder_sent_on IS DISTINCT FROM
				(($1::timestamptz AT TIME ZONE COALESCE(p.timezone, 'UTC'))::date + 1)
		ORDER BY a.start_time ASC
		FOR UPDATE OF a SKIP LOCKED
	`, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []DueAppointment
	for rows.Next() {
		var d DueAppointment
		if err := rows.Scan(
			&d.AppointmentID,
			&d.MasterID,
			&d.MasterName,
			&d.ServiceName,
			&d.ClientName,
			&d.ClientChatID,
			&d.StartTime,
			&d.Timezone,
		); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return due, nil
}

// MarkSent stamps the local target date on the processed appointments so the
// same daily run cannot pick them up again.
func (r *Repository) MarkSent(ctx context.Context, tx pgx.Tx, ids []string, ref time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE appointments a
		SET reminder_sent_on = (($2::timestamptz AT TIME ZONE COALESCE(
				(SELECT p.timezone FROM master_profiles p WHERE p.master_id = a.master_id), 'UTC'
			))::date + 1)
		WHERE a.id = ANY($1::uuid[])
	`, ids, ref)
	return err
}
