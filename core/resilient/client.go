package resilient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errNotConnected = errors.New("store connection is not established")

// Connector opens a fresh store connection.
type Connector func(ctx context.Context) (*gorm.DB, error)

// Client wraps one relational store connection with health checks and
// bounded reconnects. The connection is owned by the client; callers must
// not close the *gorm.DB they passed in.
type Client struct {
	mu      sync.RWMutex
	db      *gorm.DB
	connect Connector
	retrier Retrier
	logger  *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithSleeper replaces the backoff wait (tests use a no-op).
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.retrier.Sleep = s
	}
}

// WithClassifier replaces IsRetryable.
func WithClassifier(fn func(error) bool) Option {
	return func(c *Client) {
		c.retrier.Classify = fn
	}
}

// NewClient creates a client around an established connection. db may be nil
// when the initial connection failed; the first Execute then reconnects.
func NewClient(db *gorm.DB, connect Connector, policy Policy, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		db:      db,
		connect: connect,
		logger:  logger,
		retrier: Retrier{Policy: policy, Logger: logger},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DB returns the current connection, or nil while disconnected.
func (c *Client) DB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// HealthCheck pings the current connection.
func (c *Client) HealthCheck(ctx context.Context) bool {
	return c.ping(ctx) == nil
}

func (c *Client) ping(ctx context.Context) error {
	db := c.DB()
	if db == nil {
		return errNotConnected
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Reconnect drops the current connection, waits the policy backoff and
// opens a new one through the Connector.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	old := c.db
	c.db = nil
	c.mu.Unlock()

	if old != nil {
		if sqlDB, err := old.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				c.logger.Debug("Closing stale connection failed", zap.Error(err))
			}
		}
	}

	sleep := c.retrier.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	if err := sleep(ctx, c.retrier.Policy.Backoff); err != nil {
		return err
	}

	if c.connect == nil {
		return errors.New("no connector configured")
	}

	db, err := c.connect(ctx)
	if err != nil {
		return fmt.Errorf("reconnect failed: %w", err)
	}

	c.mu.Lock()
	c.db = db
	c.mu.Unlock()

	c.logger.Info("Store connection re-established")
	return nil
}

// Execute health-checks the connection and runs op. Connectivity failures
// trigger Reconnect and a retry, at most Policy.MaxAttempts times; other
// errors are returned immediately. Every returned error is an *OpError.
func (c *Client) Execute(ctx context.Context, name string, fields Fields, op func(db *gorm.DB) error) error {
	return c.retrier.Do(ctx, name, fields, func(ctx context.Context) error {
		db := c.DB()
		if db == nil {
			return Temporary(errNotConnected)
		}
		if err := c.ping(ctx); err != nil {
			return Temporary(fmt.Errorf("health check failed: %w", err))
		}
		return op(db.WithContext(ctx))
	}, c.Reconnect)
}

// Close releases the current connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	c.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
