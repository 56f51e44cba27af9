package sql

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStatsDriver(t *testing.T) {
	drv, mock := mockDriver(t)
	stats := NewStatsDriver(drv, WithStatsLogger(discardLogger()))

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))

	var rows Rows
	require.NoError(t, stats.Query(context.Background(), "SELECT id FROM users", []any{}, &rows))
	rows.Close()
	require.NoError(t, stats.Exec(context.Background(), "INSERT INTO users (name) VALUES ($1)", []any{"a"}, nil))

	snap := stats.Stats().Snapshot()
	assert.Equal(t, int64(1), snap.Queries)
	assert.Equal(t, int64(1), snap.Execs)
	assert.Zero(t, snap.Errors())
	assert.Positive(t, snap.Duration)
}

// Failures land in the counter matching their classified kind.
func TestStatsDriverClassifiesFailures(t *testing.T) {
	drv, mock := mockDriver(t)
	stats := NewStatsDriver(drv, WithStatsLogger(discardLogger()))

	mock.ExpectExec("INSERT").
		WillReturnError(&pq.Error{Code: "23505", Table: "users", Column: "email"})
	mock.ExpectExec("UPDATE").WillReturnError(assert.AnError)

	require.Error(t, stats.Exec(context.Background(), "INSERT INTO users (email) VALUES ($1)", []any{"a@x"}, nil))
	require.Error(t, stats.Exec(context.Background(), "UPDATE users SET name = $1", []any{"a"}, nil))

	snap := stats.Stats().Snapshot()
	assert.Equal(t, int64(1), snap.Constraints)
	assert.Equal(t, int64(1), snap.Failed)
	assert.Equal(t, int64(2), snap.Errors())
}

func TestStatsDriverSlowHook(t *testing.T) {
	drv, mock := mockDriver(t)

	var slow []string
	stats := NewStatsDriver(drv,
		WithStatsLogger(discardLogger()),
		WithSlowThreshold(0),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			slow = append(slow, query)
		}),
	)

	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, stats.Exec(context.Background(), "INSERT INTO users (name) VALUES ($1)", []any{"a"}, nil))

	require.Len(t, slow, 1)
	assert.Equal(t, int64(1), stats.Stats().Snapshot().Slow)
}

func TestStatsSnapshot(t *testing.T) {
	var s QueryStats
	s.queries.Store(3)
	s.execs.Store(1)
	s.duration.Store(int64(4 * time.Millisecond))
	s.constraints.Store(2)

	snap := s.Snapshot()
	assert.Equal(t, time.Millisecond, snap.AvgDuration())
	assert.Equal(t, int64(2), snap.Errors())
	assert.Contains(t, snap.String(), "queries=3")
	assert.Contains(t, snap.String(), "constraint=2")

	s.Reset()
	assert.Zero(t, s.Snapshot().Queries)
	assert.Zero(t, s.Snapshot().AvgDuration())
}
