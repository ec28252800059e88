package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/zapislab/zapis/libs/db"
)

type Repository struct {
	q db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

var ErrNotFound = errors.New("catalog: not found")

func (r *Repository) GetProfile(ctx context.Context, masterID string) (Profile, error) {
	var p Profile
	err := r.q.QueryRow(ctx, `
		SELECT master_id::text, name, telegram_chat_id, timezone, disabled_weekdays,
			work_start_minute, work_end_minute, slot_step_minutes
		FROM master_profiles
		WHERE master_id = $1
	`, masterID).Scan(
		&p.MasterID,
		&p.Name,
		&p.TelegramChatID,
		&p.Timezone,
		&p.DisabledWeekdays,
		&p.WorkStartMinute,
		&p.WorkEndMinute,
		&p.SlotStepMinutes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (r *Repository) GetService(ctx context.Context, masterID, serviceID string) (Service, error) {
	var s Service
	err := r.q.QueryRow(ctx, `
		SELECT id::text, master_id::text, name, price, duration_minutes
		FROM master_services
		WHERE master_id = $1 AND id = $2
	`, masterID, serviceID).Scan(&s.ID, &s.MasterID, &s.Name, &s.Price, &s.DurationMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return Service{}, ErrNotFound
	}
	if err != nil {
		return Service{}, err
	}
	return s, nil
}

// UpsertProfile applies a business.profile.updated event to the read model.
func (r *Repository) UpsertProfile(ctx context.Context, p Profile) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO master_profiles
			(master_id, name, telegram_chat_id, timezone, disabled_weekdays, work_start_minute, work_end_minute, slot_step_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (master_id) DO UPDATE
		SET name = EXCLUDED.name,
			telegram_chat_id = EXCLUDED.telegram_chat_id,
			timezone = EXCLUDED.timezone,
			disabled_weekdays = EXCLUDED.disabled_weekdays,
			work_start_minute = EXCLUDED.work_start_minute,
			work_end_minute = EXCLUDED.work_end_minute,
			slot_step_minutes = EXCLUDED.slot_step_minutes,
			updated_at = now()
	`, p.MasterID, p.Name, p.TelegramChatID, p.Timezone, p.DisabledWeekdays,
		p.WorkStartMinute, p.WorkEndMinute, p.SlotStepMinutes)
	return err
}

// UpsertService applies a business.service.upserted event to the read model.
func (r *Repository) UpsertService(ctx context.Context, s Service) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO master_services (id, master_id, name, price, duration_minutes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			price = EXCLUDED.price,
			duration_minutes = EXCLUDED.duration_minutes,
			updated_at = now()
	`, s.ID, s.MasterID, s.Name, s.Price, s.DurationMinutes)
	return err
}
