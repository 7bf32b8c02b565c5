package cleanup

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScheduler(t *testing.T) {
	s, _ := newMockDB(t)

	sched, err := NewScheduler(s, "*/30 * * * *", time.Hour, StrategyHeuristic, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, sched.maxAge)
	assert.Equal(t, StrategyHeuristic, sched.strategy)
}

func TestNewScheduler_Defaults(t *testing.T) {
	s, _ := newMockDB(t)

	sched, err := NewScheduler(s, "0 3 * * *", 0, "", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxAge, sched.maxAge)
	assert.Equal(t, StrategyMetadata, sched.strategy)
}

func TestNewScheduler_BadSpec(t *testing.T) {
	s, _ := newMockDB(t)

	_, err := NewScheduler(s, "not a cron spec", 0, StrategyMetadata, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing sweep schedule")

	// Seconds field is not accepted; the schedule format is 5-field.
	_, err = NewScheduler(s, "0 */30 * * * *", 0, StrategyMetadata, nil)
	assert.Error(t, err)
}

func TestScheduler_SweepDispatch(t *testing.T) {
	s, mock := newMockDB(t)

	sched, err := NewScheduler(s, "* * * * *", time.Hour, StrategyMetadata, nil)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT schema_name FROM practice_schemas").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}))
	mock.ExpectExec(`DELETE FROM practice_schemas m`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	dropped, err := sched.sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dropped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduler_SweepDispatchHeuristic(t *testing.T) {
	s, mock := newMockDB(t)

	sched, err := NewScheduler(s, "* * * * *", time.Hour, StrategyHeuristic, nil)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT schema_name\\s+FROM information_schema.schemata").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}))

	dropped, err := sched.sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dropped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	s, _ := newMockDB(t)

	sched, err := NewScheduler(s, "0 3 * * *", time.Hour, StrategyMetadata, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
