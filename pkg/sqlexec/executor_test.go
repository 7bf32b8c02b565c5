package sqlexec

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, 0, 0, nil), mock
}

func TestExecute_Success(t *testing.T) {
	exec, mock := newTestExecutor(t)

	mock.ExpectQuery("SELECT id, name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "ada").
			AddRow(int64(2), "grace"))

	res := exec.Execute(context.Background(), "SELECT id, name FROM users", Options{})
	require.True(t, res.OK())
	require.Nil(t, res.Failure)

	assert.Equal(t, []string{"id", "name"}, res.Data.Columns)
	assert.Equal(t, 2, res.Data.RowCount)
	assert.False(t, res.Data.Truncated)
	assert.Equal(t, [][]any{{int64(1), "ada"}, {int64(2), "grace"}}, res.Data.Rows)
	assert.GreaterOrEqual(t, res.Data.TimeMS, 0.0)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_EmptyResult(t *testing.T) {
	exec, mock := newTestExecutor(t)

	mock.ExpectQuery("SELECT id FROM users WHERE false").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	res := exec.Execute(context.Background(), "SELECT id FROM users WHERE false", Options{})
	require.True(t, res.OK())
	assert.Equal(t, 0, res.Data.RowCount)
	assert.Empty(t, res.Data.Rows)
	assert.False(t, res.Data.Truncated)
}

func TestExecute_Truncation(t *testing.T) {
	exec, mock := newTestExecutor(t)

	rows := sqlmock.NewRows([]string{"n"})
	for i := range 5 {
		rows.AddRow(int64(i))
	}
	mock.ExpectQuery("SELECT n FROM numbers").WillReturnRows(rows)

	res := exec.Execute(context.Background(), "SELECT n FROM numbers", Options{RowLimit: 3})
	require.True(t, res.OK())
	assert.Len(t, res.Data.Rows, 3)
	assert.Equal(t, 5, res.Data.RowCount, "row count covers every matched row, not just the kept ones")
	assert.True(t, res.Data.Truncated)
}

func TestExecute_ExactLimitNotTruncated(t *testing.T) {
	exec, mock := newTestExecutor(t)

	rows := sqlmock.NewRows([]string{"n"})
	for i := range 3 {
		rows.AddRow(int64(i))
	}
	mock.ExpectQuery("SELECT n FROM numbers").WillReturnRows(rows)

	res := exec.Execute(context.Background(), "SELECT n FROM numbers", Options{RowLimit: 3})
	require.True(t, res.OK())
	assert.Len(t, res.Data.Rows, 3)
	assert.Equal(t, 3, res.Data.RowCount)
	assert.False(t, res.Data.Truncated)
}

func TestExecute_QueryFailure(t *testing.T) {
	exec, mock := newTestExecutor(t)

	mock.ExpectQuery("SELECT bogus").
		WillReturnError(errors.New(`column "bogus" does not exist`))

	res := exec.Execute(context.Background(), "SELECT bogus", Options{})
	require.False(t, res.OK())
	require.Nil(t, res.Data)
	assert.Contains(t, res.Failure.Message, "bogus")
	assert.GreaterOrEqual(t, res.Failure.TimeMS, 0.0)
}

func TestExecute_Timeout(t *testing.T) {
	exec, mock := newTestExecutor(t)

	mock.ExpectQuery("SELECT pg_sleep").
		WillDelayFor(200 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"pg_sleep"}).AddRow(""))

	res := exec.Execute(context.Background(), "SELECT pg_sleep(10)", Options{Timeout: 20 * time.Millisecond})
	require.False(t, res.OK())
	assert.Contains(t, res.Failure.Message, "timed out")
	assert.Contains(t, res.Failure.Message, "20ms")
}

func TestExecute_SchemaScoped(t *testing.T) {
	exec, mock := newTestExecutor(t)

	mock.ExpectExec(`SET search_path TO "practice_ab12cd34", public`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(int64(1)))
	mock.ExpectExec("SET search_path TO public").
		WillReturnResult(sqlmock.NewResult(0, 0))

	res := exec.Execute(context.Background(), "SELECT 1", Options{Schema: "practice_ab12cd34"})
	require.True(t, res.OK())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_RejectsMalformedSchema(t *testing.T) {
	exec, mock := newTestExecutor(t)

	res := exec.Execute(context.Background(), "SELECT 1", Options{Schema: `practice_x"; DROP SCHEMA public`})
	require.False(t, res.OK())
	assert.Contains(t, res.Failure.Message, "invalid schema name")
	// The malformed name never reached the database.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_ByteValuesSerialized(t *testing.T) {
	exec, mock := newTestExecutor(t)

	mock.ExpectQuery("SELECT price FROM products").
		WillReturnRows(sqlmock.NewRows([]string{"price"}).AddRow([]byte("19.99")))

	res := exec.Execute(context.Background(), "SELECT price FROM products", Options{})
	require.True(t, res.OK())
	assert.Equal(t, [][]any{{"19.99"}}, res.Data.Rows)
}
