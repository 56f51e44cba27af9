package sql

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratumdb/stratum"
)

func mockDriver(t *testing.T) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return OpenDB("postgres", db), mock
}

func TestDriverExec(t *testing.T) {
	drv, mock := mockDriver(t)
	mock.ExpectExec("INSERT INTO users").
		WithArgs("a").
		WillReturnResult(sqlmock.NewResult(1, 1))

	var res Result
	err := drv.Exec(context.Background(), "INSERT INTO users (name) VALUES ($1)", []any{"a"}, &res)
	require.NoError(t, err)
	affected, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverExec_InvalidArgs(t *testing.T) {
	drv, _ := mockDriver(t)
	err := drv.Exec(context.Background(), "SELECT 1", "not-a-slice", nil)
	assert.Error(t, err)

	err = drv.Exec(context.Background(), "SELECT 1", []any{}, "bad-dest")
	assert.Error(t, err)
}

func TestDriverQuery(t *testing.T) {
	drv, mock := mockDriver(t)
	mock.ExpectQuery("SELECT (.+) FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "a").
			AddRow(2, "b"))

	rows, err := QueryMaps(context.Background(), drv, `SELECT id, name FROM users`, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0]["name"])
	assert.Equal(t, "b", rows[1]["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

// Backend errors are classified exactly once, at the Conn boundary.
func TestDriverClassifiesAtBoundary(t *testing.T) {
	drv, mock := mockDriver(t)
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Table: "users", Column: "email"})

	err := drv.Exec(context.Background(), "INSERT INTO users (email) VALUES ($1)", []any{"a@x"}, nil)
	require.True(t, stratum.IsConstraintError(err))
	var ce *stratum.ConstraintError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, stratum.ConstraintUnique, ce.Kind)
	assert.Equal(t, "users", ce.Table)
	assert.Equal(t, "email", ce.Column)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverTx(t *testing.T) {
	drv, mock := mockDriver(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), "UPDATE users SET name = $1 WHERE id = $2", []any{"b", 1}, nil))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverTxRollback(t *testing.T) {
	drv, mock := mockDriver(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM users").
		WillReturnError(&pq.Error{Code: "23503", Table: "posts"})
	mock.ExpectRollback()

	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	err = tx.Exec(context.Background(), "DELETE FROM users WHERE id = $1", []any{1}, nil)
	require.True(t, stratum.IsConstraintError(err))
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverDialect(t *testing.T) {
	assert.Equal(t, "postgres", OpenDB("postgres", nil).Dialect())
	assert.Equal(t, "sqlite", OpenDB("sqlite", nil).Dialect())
	// Telemetry-wrapped registrations resolve to the base dialect.
	assert.Equal(t, "postgres", OpenDB("postgres-stats", nil).Dialect())
}
