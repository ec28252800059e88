package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/zapislab/zapis/libs/db"
	"github.com/zapislab/zapis/services/booking-service/internal/model"
)

type WaitlistRepository struct {
	q db.Querier
}

func NewWaitlistRepository(q db.Querier) *WaitlistRepository {
	return &WaitlistRepository{q: q}
}

// Add inserts a waitlist entry inside the caller's transaction so the joined
// event is staged atomically with the row. date is YYYY-MM-DD.
func (r *WaitlistRepository) Add(ctx context.Context, tx pgx.Tx, entry *model.WaitlistEntry, date string) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO waitlist_entries (master_id, desired_date, client_name, client_phone, client_chat_id)
		VALUES ($1, $2::date, $3, $4, $5)
		RETURNING id
	`, entry.MasterID, date, entry.ClientName, entry.ClientPhone, entry.ClientChatID).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListForDate returns entries FIFO by creation time so cancellation fan-out is
// deterministic. Entries are kept after the date passes but never match here.
func (r *WaitlistRepository) ListForDate(ctx context.Context, masterID, date string) ([]model.WaitlistEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id::text, master_id::text, desired_date, client_name, client_phone, client_chat_id, created_at
		FROM waitlist_entries
		WHERE master_id = $1 AND desired_date = $2::date
		ORDER BY created_at ASC
	`, masterID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.WaitlistEntry
	for rows.Next() {
		var e model.WaitlistEntry
		if err := rows.Scan(&e.ID, &e.MasterID, &e.DesiredDate, &e.ClientName, &e.ClientPhone, &e.ClientChatID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

func (r *WaitlistRepository) Remove(ctx context.Context, entryID string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM waitlist_entries
		WHERE id = $1
	`, entryID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
