package storage

import (
	"context"

	"github.com/zapislab/zapis/libs/db"
)

const (
	StatusSent     = "sent"
	StatusRetrying = "retrying"
	StatusFailed   = "failed"
)

// Notification is the delivery log row for one outbound Telegram message.
type Notification struct {
	EventID   string
	EventType string
	ChatID    string
	Body      string
	Status    string
}

type Repository struct {
	q db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO notifications (event_id, event_type, chat_id, body, status)
		VALUES ($1, $2, $3, $4, $5)
	`, n.EventID, n.EventType, n.ChatID, n.Body, n.Status)
	return err
}
