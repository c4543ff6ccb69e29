package postgres

import (
	"context"
	"testing"
	"time"

	"vending-payout-console/internal/core/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scheduleCols() []string {
	return []string{"cron_expression", "is_enabled", "last_run_at", "updated_at"}
}

func TestScheduleRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewScheduleRepo(mock)
	lastRun := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT .+ FROM payout_schedule WHERE id = 1").
		WillReturnRows(pgxmock.NewRows(scheduleCols()).
			AddRow("0 6 1 * *", true, &lastRun, time.Now().UTC()))

	s, err := repo.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "0 6 1 * *", s.CronExpression)
	assert.True(t, s.IsEnabled)
	require.NotNil(t, s.LastRunAt)
	assert.True(t, s.LastRunAt.Equal(lastRun))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepo_Get_NeverConfigured(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewScheduleRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM payout_schedule").
		WillReturnRows(pgxmock.NewRows(scheduleCols()))

	s, err := repo.Get(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepo_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewScheduleRepo(mock)
	s := &domain.PayoutSchedule{
		CronExpression: "30 7 2 * *",
		IsEnabled:      true,
		UpdatedAt:      time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO payout_schedule").
		WithArgs(s.CronExpression, s.IsEnabled, s.LastRunAt, s.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Upsert(context.Background(), s)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepo_SetLastRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewScheduleRepo(mock)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE payout_schedule SET last_run_at").
		WithArgs(at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.SetLastRun(context.Background(), at)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
