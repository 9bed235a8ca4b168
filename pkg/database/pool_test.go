package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryBackoff_ExponentialWithJitter(t *testing.T) {
	for attempt := 0; attempt < 3; attempt++ {
		base := defaultRetryBaseWait << attempt
		lo := time.Duration(float64(base) * (1 - retryJitterFraction))
		hi := time.Duration(float64(base) * (1 + retryJitterFraction))

		for i := 0; i < 20; i++ {
			d := retryBackoff(attempt)
			assert.GreaterOrEqual(t, d, lo, "attempt %d", attempt)
			assert.LessOrEqual(t, d, hi, "attempt %d", attempt)
		}
	}
}

func TestRetry_StopsOnNonRetryableError(t *testing.T) {
	calls := 0
	sqlErr := errors.New("syntax error at or near")

	err := retry(context.Background(), "op", nil, isConnectionError, func() error {
		calls++
		return sqlErr
	})

	require.ErrorIs(t, err, sqlErr)
	assert.Equal(t, 1, calls)
}

func TestRetry_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry(ctx, "op", nil, isConnectionError, func() error {
		return errors.New("dial tcp 127.0.0.1:5432: connection refused")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, isConnectionError(nil))
	assert.True(t, isConnectionError(errors.New("dial tcp 127.0.0.1:5432: connection refused")))
	assert.True(t, isConnectionError(errors.New("connection reset by peer")))
	assert.True(t, isConnectionError(errors.New("i/o timeout")))
	assert.True(t, isConnectionError(errors.New("could not connect to server")))
	assert.False(t, isConnectionError(errors.New("duplicate key value violates unique constraint")))
	assert.False(t, isConnectionError(errors.New("relation does not exist")))
}

// ---------------------------------------------------------------------------
// RunMigrations
// ---------------------------------------------------------------------------

func TestRunMigrations_AppliesPendingAndSkipsApplied(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	migrations := fstest.MapFS{
		"001_principals.up.sql":   {Data: []byte("CREATE TABLE principals (id BIGSERIAL)")},
		"001_principals.down.sql": {Data: []byte("DROP TABLE principals")},
		"002_groups.up.sql":       {Data: []byte("CREATE TABLE groups (id BIGSERIAL)")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("001_principals.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("002_groups.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE groups").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("002_groups.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err = RunMigrations(context.Background(), mock, migrations, logger)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SQLErrorRollsBack(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	migrations := fstest.MapFS{
		"001_broken.up.sql": {Data: []byte("CREATE TABLE broken (")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("001_broken.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE broken").WillReturnError(errors.New("syntax error at end of input"))
	mock.ExpectRollback()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err = RunMigrations(context.Background(), mock, migrations, logger)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_broken.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}
