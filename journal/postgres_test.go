package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return New(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestPostgresMigrate(t *testing.T) {
	t.Parallel()

	j, mock := newMockDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, j.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordWeek(t *testing.T) {
	t.Parallel()

	j, mock := newMockDB(t)
	r := sampleResult()
	w := r.Weeks[0]

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO weeks .* VALUES\s+\(\$1, \$2`).
		WithArgs(r.RunID, 1, w.Date, 100000.0, 100000.0, 10000.0, 0.0, 0.0, 0.0, 1000.0, 90000.0, "normal", 0.0, 0.0, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO actions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO holdings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO rankings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO rankings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, j.RecordWeek(context.Background(), r.RunID, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordWeekRollsBack(t *testing.T) {
	t.Parallel()

	j, mock := newMockDB(t)
	r := sampleResult()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO weeks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO actions").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := j.RecordWeek(context.Background(), r.RunID, r.Weeks[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert action A1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordResult(t *testing.T) {
	t.Parallel()

	j, mock := newMockDB(t)
	r := sampleResult()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO trades").
		WithArgs(r.RunID, 0, "AAA", "stoploss", int64(100), 100.0, 85.0, r.Trades[0].EntryDate, r.Trades[0].ExitDate, -1500.0, 0.0, 0.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, j.RecordResult(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDuplicateRun(t *testing.T) {
	t.Parallel()

	j, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})
	mock.ExpectRollback()

	err := j.RecordResult(context.Background(), sampleResult())
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRunNotFound(t *testing.T) {
	t.Parallel()

	j, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM runs WHERE run_id = \$1`).
		WithArgs("run_x").
		WillReturnRows(sqlmock.NewRows([]string{"run_id"}))

	_, err := j.GetRun(context.Background(), "run_x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListTrades(t *testing.T) {
	t.Parallel()

	j, mock := newMockDB(t)
	r := sampleResult()
	tr := r.Trades[0]

	rows := sqlmock.NewRows([]string{"run_id", "seq", "symbol", "reason", "units", "entry_price", "exit_price", "entry_date", "exit_date", "pnl", "costs", "tax"}).
		AddRow(r.RunID, 0, tr.Symbol, tr.Reason, tr.Units, tr.EntryPrice, tr.ExitPrice, tr.EntryDate, tr.ExitDate, tr.PnL, 0.0, 0.0)
	mock.ExpectQuery(`SELECT \* FROM trades WHERE run_id = \$1 ORDER BY seq`).
		WithArgs(r.RunID).
		WillReturnRows(rows)

	trades, err := j.ListTrades(context.Background(), r.RunID)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "AAA", trades[0].Symbol)
	assert.Equal(t, tr.ExitDate, trades[0].ExitDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConnectFails(t *testing.T) {
	t.Parallel()

	_, err := NewPostgres(context.Background(), "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal open postgres")
}
