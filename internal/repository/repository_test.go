package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/repository"
)

func openTestRepo(t *testing.T) repository.Repository {
	t.Helper()
	db, err := repository.Open("sqlite", filepath.Join(t.TempDir(), "clk.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return repository.New(db, nil)
}

func ev(name, action, ts, local string) model.SyncEvent {
	return model.SyncEvent{Name: name, Action: action, Timestamp: ts, LocalTime: local}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := repository.Open("oracle", "", false)
	assert.ErrorIs(t, err, repository.ErrUnsupportedDriver)
}

func TestRecordEventBuildsShifts(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.RecordEvent(ctx, ev("Dana", model.ActionClockIn, "2026-03-02T09:00:00.000Z", "9:00am")))
	require.NoError(t, repo.RecordEvent(ctx, ev("Dana", model.ActionClockOut, "2026-03-02T17:30:00.000Z", "5:30pm")))
	require.NoError(t, repo.RecordEvent(ctx, ev("Dana", "Paid Off", "2026-03-03T00:00:00.000Z", "N/A")))
	require.NoError(t, repo.RecordEvent(ctx, ev("Lee", model.ActionClockIn, "2026-03-02T08:00:00.000Z", "8:00am")))

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC)

	rows, err := repo.Report(ctx, start, end, "")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Lee", rows[0].UserName, "ascending by clock in")

	rows, err = repo.Report(ctx, start, end, "dana")
	require.NoError(t, err)
	require.Len(t, rows, 2, "name filter is case-insensitive")
	work := rows[0]
	require.NotNil(t, work.ClockOut)
	assert.Equal(t, 510, work.DurationMinutes)
	assert.Equal(t, "Paid Off", rows[1].Kind)
	assert.Equal(t, 480, rows[1].DurationMinutes)
}

func TestRecordEventOrphanClockOut(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.RecordEvent(ctx, ev("Dana", model.ActionClockOut, "2026-03-02T17:30:00.000Z", "5:30pm")))

	logs, err := repo.RecentLogs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRecordEventBadTimestamp(t *testing.T) {
	repo := openTestRepo(t)
	err := repo.RecordEvent(context.Background(), ev("Dana", model.ActionClockIn, "yesterday", "9:00am"))
	assert.Error(t, err)
}

func TestRecentLogsNewestFirst(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.RecordEvent(ctx, ev("Dana", model.ActionClockIn, "2026-03-02T09:00:00.000Z", "9:00am")))
	require.NoError(t, repo.RecordEvent(ctx, ev("Dana", model.ActionClockOut, "2026-03-02T17:00:00.000Z", "5:00pm")))
	require.NoError(t, repo.RecordEvent(ctx, ev("Lee", model.ActionClockIn, "2026-03-02T08:00:00.000Z", "8:00am")))

	logs, err := repo.RecentLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.ActionClockOut, logs[0].Action)
	assert.Equal(t, model.ActionClockIn, logs[1].Action)
	assert.Equal(t, "Dana", logs[1].UserName)
}
