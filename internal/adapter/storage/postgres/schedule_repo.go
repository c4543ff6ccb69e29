package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vending-payout-console/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ScheduleRepo implements ports.ScheduleRepository. The schedule is a
// singleton row with a fixed primary key.
type ScheduleRepo struct {
	pool Pool
}

// NewScheduleRepo creates a new ScheduleRepo.
func NewScheduleRepo(pool Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// Get fetches the schedule, or nil when it was never configured.
func (r *ScheduleRepo) Get(ctx context.Context) (*domain.PayoutSchedule, error) {
	query := `SELECT cron_expression, is_enabled, last_run_at, updated_at
		FROM payout_schedule WHERE id = 1`

	s := &domain.PayoutSchedule{}
	err := r.pool.QueryRow(ctx, query).Scan(
		&s.CronExpression, &s.IsEnabled, &s.LastRunAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return s, nil
}

// Upsert replaces the singleton schedule row, leaving last_run_at alone.
func (r *ScheduleRepo) Upsert(ctx context.Context, s *domain.PayoutSchedule) error {
	query := `INSERT INTO payout_schedule (id, cron_expression, is_enabled, last_run_at, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET cron_expression = EXCLUDED.cron_expression,
			is_enabled = EXCLUDED.is_enabled,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query, s.CronExpression, s.IsEnabled, s.LastRunAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	return nil
}

// SetLastRun records when the last scheduled batch actually ran.
func (r *ScheduleRepo) SetLastRun(ctx context.Context, at time.Time) error {
	query := `UPDATE payout_schedule SET last_run_at = $1 WHERE id = 1`

	if _, err := r.pool.Exec(ctx, query, at); err != nil {
		return fmt.Errorf("set last run: %w", err)
	}
	return nil
}
