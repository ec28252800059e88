package eventx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/zapislab/zapis/libs/db"
)

type InboxRepository struct {
	q db.Querier
}

func NewInboxRepository(q db.Querier) *InboxRepository {
	return &InboxRepository{q: q}
}

// Record registers an event id before handling. It returns false when the
// event was already seen, keyed on the unique event_id column.
func (r *InboxRepository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return false, nil
	}

	return false, err
}
