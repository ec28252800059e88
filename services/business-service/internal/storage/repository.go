package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/zapislab/zapis/libs/db"
	"github.com/zapislab/zapis/services/business-service/internal/model"
)

var ErrNotFound = errors.New("storage: not found")

type Repository struct {
	q db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.q.Begin(ctx)
}

// CreateProfile inserts a new master and returns the generated id.
func (r *Repository) CreateProfile(ctx context.Context, tx pgx.Tx, p *model.Profile) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO master_profiles
			(name, telegram_chat_id, timezone, disabled_weekdays, work_start_minute, work_end_minute, slot_step_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING master_id
	`, p.Name, p.TelegramChatID, p.Timezone, p.DisabledWeekdays,
		p.WorkStartMinute, p.WorkEndMinute, p.SlotStepMinutes).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateProfile overwrites the settings of an existing master and returns the
// stored row, or ErrNotFound when the id is unknown.
func (r *Repository) UpdateProfile(ctx context.Context, tx pgx.Tx, p *model.Profile) (model.Profile, error) {
	var out model.Profile
	err := tx.QueryRow(ctx, `
		UPDATE master_profiles
		SET name = $2,
			telegram_chat_id = $3,
			timezone = $4,
			disabled_weekdays = $5,
			work_start_minute = $6,
			work_end_minute = $7,
			slot_step_minutes = $8,
			updated_at = now()
		WHERE master_id = $1
		RETURNING master_id::text, name, telegram_chat_id, timezone, disabled_weekdays,
			work_start_minute, work_end_minute, slot_step_minutes, created_at, updated_at
	`, p.MasterID, p.Name, p.TelegramChatID, p.Timezone, p.DisabledWeekdays,
		p.WorkStartMinute, p.WorkEndMinute, p.SlotStepMinutes).Scan(
		&out.MasterID,
		&out.Name,
		&out.TelegramChatID,
		&out.Timezone,
		&out.DisabledWeekdays,
		&out.WorkStartMinute,
		&out.WorkEndMinute,
		&out.SlotStepMinutes,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Profile{}, ErrNotFound
	}
	if err != nil {
		return model.Profile{}, err
	}
	return out, nil
}

func (r *Repository) GetProfile(ctx context.Context, masterID string) (model.Profile, error) {
	var p model.Profile
	err := r.q.QueryRow(ctx, `
		SELECT master_id::text, name, telegram_chat_id, timezone, disabled_weekdays,
			work_start_minute, work_end_minute, slot_step_minutes, created_at, updated_at
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
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Profile{}, ErrNotFound
	}
	if err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

func (r *Repository) CreateService(ctx context.Context, tx pgx.Tx, s *model.Service) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO master_services (master_id, name, price, duration_minutes)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, s.MasterID, s.Name, s.Price, s.DurationMinutes).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListServices(ctx context.Context, masterID string) ([]model.Service, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id::text, master_id::text, name, price, duration_minutes, created_at
		FROM master_services
		WHERE master_id = $1
		ORDER BY created_at ASC
	`, masterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var s model.Service
		var createdAt time.Time
		if err := rows.Scan(&s.ID, &s.MasterID, &s.Name, &s.Price, &s.DurationMinutes, &createdAt); err != nil {
			return nil, err
		}
		s.CreatedAt = createdAt
		services = append(services, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return services, nil
}
