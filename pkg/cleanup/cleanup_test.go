package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*Sweeper, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSweeper(db, nil, nil), mock
}

func TestRecorder_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`INSERT INTO practice_schemas \(schema_name,created_at\) VALUES \(\$1,NOW\(\)\) ON CONFLICT \(schema_name\) DO NOTHING`).
		WithArgs("practice_ab12cd34").
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := NewRecorder(db)
	assert.NoError(t, r.Record(context.Background(), "practice_ab12cd34"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepMetadata_DropsStaleSchemas(t *testing.T) {
	s, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT schema_name FROM practice_schemas WHERE created_at < \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).
			AddRow("practice_ab12cd34").
			AddRow("practice_deadbeef"))

	mock.ExpectExec(`DROP SCHEMA IF EXISTS "practice_ab12cd34" CASCADE`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM practice_schemas WHERE schema_name = \$1`).
		WithArgs("practice_ab12cd34").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(`DROP SCHEMA IF EXISTS "practice_deadbeef" CASCADE`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM practice_schemas WHERE schema_name = \$1`).
		WithArgs("practice_deadbeef").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(`DELETE FROM practice_schemas m`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	dropped, err := s.SweepMetadata(context.Background(), DefaultMaxAge)
	require.NoError(t, err)
	assert.Equal(t, []string{"practice_ab12cd34", "practice_deadbeef"}, dropped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepMetadata_NothingStale(t *testing.T) {
	s, mock := newMockDB(t)

	mock.ExpectQuery("SELECT schema_name FROM practice_schemas").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}))
	mock.ExpectExec(`DELETE FROM practice_schemas m`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	dropped, err := s.SweepMetadata(context.Background(), DefaultMaxAge)
	require.NoError(t, err)
	assert.Empty(t, dropped)
}

func TestSweepMetadata_DropFailureSkipsMetadataDelete(t *testing.T) {
	s, mock := newMockDB(t)

	mock.ExpectQuery("SELECT schema_name FROM practice_schemas").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).
			AddRow("practice_ab12cd34").
			AddRow("practice_deadbeef"))

	mock.ExpectExec(`DROP SCHEMA IF EXISTS "practice_ab12cd34" CASCADE`).
		WillReturnError(errors.New("schema is in use"))

	// The second schema still gets swept.
	mock.ExpectExec(`DROP SCHEMA IF EXISTS "practice_deadbeef" CASCADE`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM practice_schemas WHERE schema_name = \$1`).
		WithArgs("practice_deadbeef").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(`DELETE FROM practice_schemas m`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	dropped, err := s.SweepMetadata(context.Background(), DefaultMaxAge)
	require.NoError(t, err)
	assert.Equal(t, []string{"practice_deadbeef"}, dropped,
		"metadata for the failed drop is kept so a later sweep retries it")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepMetadata_PurgesSessions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var purged []string
	s := NewSweeper(db, purgerFunc(func(_ context.Context, schema string) error {
		purged = append(purged, schema)
		return nil
	}), nil)

	mock.ExpectQuery("SELECT schema_name FROM practice_schemas").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("practice_ab12cd34"))
	mock.ExpectExec(`DROP SCHEMA IF EXISTS "practice_ab12cd34" CASCADE`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM practice_schemas WHERE schema_name = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM practice_schemas m`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err = s.SweepMetadata(context.Background(), DefaultMaxAge)
	require.NoError(t, err)
	assert.Equal(t, []string{"practice_ab12cd34"}, purged)
}

type purgerFunc func(ctx context.Context, schema string) error

func (f purgerFunc) DeleteBySchema(ctx context.Context, schema string) error {
	return f(ctx, schema)
}

func TestSweepHeuristic_DropsOldSchema(t *testing.T) {
	s, mock := newMockDB(t)

	mock.ExpectQuery("SELECT schema_name\\s+FROM information_schema.schemata").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("practice_ab12cd34"))

	mock.ExpectQuery("SELECT MIN").
		WithArgs("practice_ab12cd34").
		WillReturnRows(sqlmock.NewRows([]string{"min"}).
			AddRow(time.Now().Add(-3 * time.Hour)))

	mock.ExpectExec(`DROP SCHEMA IF EXISTS "practice_ab12cd34" CASCADE`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	dropped, err := s.SweepHeuristic(context.Background(), DefaultMaxAge)
	require.NoError(t, err)
	assert.Equal(t, []string{"practice_ab12cd34"}, dropped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepHeuristic_KeepsFreshSchema(t *testing.T) {
	s, mock := newMockDB(t)

	mock.ExpectQuery("SELECT schema_name\\s+FROM information_schema.schemata").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("practice_ab12cd34"))

	mock.ExpectQuery("SELECT MIN").
		WithArgs("practice_ab12cd34").
		WillReturnRows(sqlmock.NewRows([]string{"min"}).
			AddRow(time.Now().Add(-5 * time.Minute)))

	dropped, err := s.SweepHeuristic(context.Background(), DefaultMaxAge)
	require.NoError(t, err)
	assert.Empty(t, dropped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepHeuristic_UnknownAgeDropsOnlyEmpty(t *testing.T) {
	s, mock := newMockDB(t)

	mock.ExpectQuery("SELECT schema_name\\s+FROM information_schema.schemata").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).
			AddRow("practice_ab12cd34").
			AddRow("practice_deadbeef"))

	// First schema: no age, zero tables. Dropped.
	mock.ExpectQuery("SELECT MIN").
		WithArgs("practice_ab12cd34").
		WillReturnRows(sqlmock.NewRows([]string{"min"}).AddRow(nil))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("practice_ab12cd34").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`DROP SCHEMA IF EXISTS "practice_ab12cd34" CASCADE`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// Second schema: no age but populated. Kept.
	mock.ExpectQuery("SELECT MIN").
		WithArgs("practice_deadbeef").
		WillReturnRows(sqlmock.NewRows([]string{"min"}).AddRow(nil))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("practice_deadbeef").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	dropped, err := s.SweepHeuristic(context.Background(), DefaultMaxAge)
	require.NoError(t, err)
	assert.Equal(t, []string{"practice_ab12cd34"}, dropped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepHeuristic_SkipsMalformedName(t *testing.T) {
	s, mock := newMockDB(t)

	mock.ExpectQuery("SELECT schema_name\\s+FROM information_schema.schemata").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).
			AddRow("practice_notahexid"))

	dropped, err := s.SweepHeuristic(context.Background(), DefaultMaxAge)
	require.NoError(t, err)
	assert.Empty(t, dropped, "a prefix match with an invalid shape is never dropped")
	assert.NoError(t, mock.ExpectationsWereMet())
}
