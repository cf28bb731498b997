package resilient

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db
}

// countingConnector opens a new in-memory database on every call.
func countingConnector(t *testing.T, calls *int) Connector {
	return func(ctx context.Context) (*gorm.DB, error) {
		*calls++
		return openSQLite(t), nil
	}
}

func TestExecute_Success(t *testing.T) {
	calls := 0
	c := NewClient(openSQLite(t), countingConnector(t, &calls), DefaultPolicy(), zap.NewNop(), WithSleeper(noSleep))
	defer c.Close()

	ran := 0
	err := c.Execute(context.Background(), "noop", nil, func(db *gorm.DB) error {
		ran++
		return db.Exec("SELECT 1").Error
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.Equal(t, 0, calls, "healthy connection must not reconnect")
}

func TestExecute_RetryBound(t *testing.T) {
	calls := 0
	c := NewClient(openSQLite(t), countingConnector(t, &calls), DefaultPolicy(), zap.NewNop(), WithSleeper(noSleep))
	defer c.Close()

	cause := errors.New("dial tcp 10.0.0.1:3306: connection refused")
	ran := 0
	err := c.Execute(context.Background(), "findAll", Fields{"filter": "all"}, func(db *gorm.DB) error {
		ran++
		return cause
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsConnectivity(err))
	assert.Equal(t, DefaultMaxAttempts, calls, "exactly MaxAttempts reconnects")
	assert.Equal(t, DefaultMaxAttempts+1, ran)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "findAll", opErr.Op)
	assert.Equal(t, DefaultMaxAttempts, opErr.Attempts)
}

func TestExecute_RecoversAfterTransientFailure(t *testing.T) {
	calls := 0
	c := NewClient(openSQLite(t), countingConnector(t, &calls), DefaultPolicy(), zap.NewNop(), WithSleeper(noSleep))
	defer c.Close()

	ran := 0
	err := c.Execute(context.Background(), "create", nil, func(db *gorm.DB) error {
		ran++
		if ran < 3 {
			return driver.ErrBadConn
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, ran)
	assert.Equal(t, 2, calls)
}

func TestExecute_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	core, logs := observer.New(zap.WarnLevel)
	c := NewClient(openSQLite(t), countingConnector(t, &calls), DefaultPolicy(), zap.New(core), WithSleeper(noSleep))
	defer c.Close()

	err := c.Execute(context.Background(), "update", Fields{"id": 7}, func(db *gorm.DB) error {
		return gorm.ErrRecordNotFound
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.False(t, IsConnectivity(err))
	assert.Contains(t, err.Error(), "update (id=7)")
	assert.Equal(t, 0, calls)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "update", logs.All()[0].ContextMap()["operation"])
}

func TestExecute_HealthCheckFailureReconnects(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectClose()

	broken, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	calls := 0
	c := NewClient(broken, countingConnector(t, &calls), DefaultPolicy(), zap.NewNop(), WithSleeper(noSleep))
	defer c.Close()

	ran := 0
	err = c.Execute(context.Background(), "count", nil, func(db *gorm.DB) error {
		ran++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, ran, "op runs only on the healthy connection")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_ReconnectFailureStillBounded(t *testing.T) {
	calls := 0
	failing := func(ctx context.Context) (*gorm.DB, error) {
		calls++
		return nil, errors.New("connection refused")
	}
	c := NewClient(nil, failing, Policy{MaxAttempts: 3}, zap.NewNop(), WithSleeper(noSleep))

	err := c.Execute(context.Background(), "findByName", nil, func(db *gorm.DB) error {
		t.Fatal("op must not run without a connection")
		return nil
	})

	require.Error(t, err)
	assert.True(t, IsConnectivity(err))
	assert.Equal(t, 3, calls)
}

func TestExecute_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	c := NewClient(openSQLite(t), countingConnector(t, &calls), Policy{MaxAttempts: 5, Backoff: time.Hour}, zap.NewNop())
	defer c.Close()

	err := c.Execute(ctx, "findAll", nil, func(db *gorm.DB) error {
		cancel()
		return errors.New("i/o timeout")
	})

	require.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestHealthCheck(t *testing.T) {
	c := NewClient(openSQLite(t), nil, DefaultPolicy(), nil)
	assert.True(t, c.HealthCheck(context.Background()))

	require.NoError(t, c.Close())
	assert.False(t, c.HealthCheck(context.Background()))
	assert.Nil(t, c.DB())
}

func TestRetryState(t *testing.T) {
	s := RetryState{MaxAttempts: 2}
	assert.False(t, s.Exhausted())
	s.Next()
	s.Next()
	assert.True(t, s.Exhausted())
	s.Reset()
	assert.Equal(t, 0, s.Attempts)
}

func TestRetrier_WithoutRecoverySleeps(t *testing.T) {
	slept := 0
	r := Retrier{
		Policy: Policy{MaxAttempts: 2, Backoff: time.Millisecond},
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept++
			assert.Equal(t, time.Millisecond, d)
			return nil
		},
	}

	err := r.Do(context.Background(), "remote.list", nil, func(ctx context.Context) error {
		return Temporary(errors.New("503 service unavailable"))
	}, nil)

	require.Error(t, err)
	assert.True(t, IsConnectivity(err))
	assert.Equal(t, 2, slept)
}

func TestExecute_WithClassifier(t *testing.T) {
	errLocked := errors.New("database is locked")
	lockedIsTransient := func(err error) bool {
		return errors.Is(err, errLocked) || IsRetryable(err)
	}

	t.Run("custom error retried", func(t *testing.T) {
		calls := 0
		c := NewClient(openSQLite(t), countingConnector(t, &calls), DefaultPolicy(), zap.NewNop(),
			WithSleeper(noSleep), WithClassifier(lockedIsTransient))
		defer c.Close()

		ran := 0
		err := c.Execute(context.Background(), "create", nil, func(db *gorm.DB) error {
			ran++
			if ran == 1 {
				return errLocked
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 2, ran)
		assert.Equal(t, 1, calls)
	})

	t.Run("connectivity treated as permanent", func(t *testing.T) {
		calls := 0
		c := NewClient(openSQLite(t), countingConnector(t, &calls), DefaultPolicy(), zap.NewNop(),
			WithSleeper(noSleep), WithClassifier(func(error) bool { return false }))
		defer c.Close()

		err := c.Execute(context.Background(), "findAll", nil, func(db *gorm.DB) error {
			return errors.New("dial tcp 10.0.0.1:3306: connection refused")
		})

		require.Error(t, err)
		assert.False(t, IsConnectivity(err))
		assert.Zero(t, calls)
	})
}
