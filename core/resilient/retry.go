package resilient

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxAttempts caps reconnect attempts per call chain.
	DefaultMaxAttempts = 5
	// DefaultBackoff is the fixed delay between reconnect attempts.
	DefaultBackoff = 500 * time.Millisecond
)

// Policy bounds a retry loop. The delay is fixed, not exponential.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultPolicy returns the 5 attempts / 500ms policy.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Backoff: DefaultBackoff}
}

// RetryState tracks consecutive recovery attempts for one call chain.
type RetryState struct {
	Attempts    int
	MaxAttempts int
}

// Exhausted reports whether no recovery attempts remain.
func (s *RetryState) Exhausted() bool {
	return s.Attempts >= s.MaxAttempts
}

// Next consumes one attempt.
func (s *RetryState) Next() {
	s.Attempts++
}

// Reset clears the counter after a successful operation.
func (s *RetryState) Reset() {
	s.Attempts = 0
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retrier runs operations under a Policy.
type Retrier struct {
	Policy Policy
	Logger *zap.Logger
	// Classify decides retryability; IsRetryable when nil.
	Classify func(error) bool
	// Sleep waits between attempts; SleepContext when nil.
	Sleep Sleeper
}

// Do runs fn until it succeeds, fails permanently or the policy is exhausted.
// recoverFn runs after each retryable failure, once per consumed attempt, and
// owns the backoff wait (Do sleeps itself when recoverFn is nil). A failing
// recoverFn is logged and the loop continues with the next attempt.
func (r *Retrier) Do(ctx context.Context, name string, fields Fields, fn func(ctx context.Context) error, recoverFn func(ctx context.Context) error) error {
	classify := r.Classify
	if classify == nil {
		classify = IsRetryable
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	state := RetryState{MaxAttempts: r.Policy.MaxAttempts}
	for {
		err := fn(ctx)
		if err == nil {
			state.Reset()
			return nil
		}

		if !classify(err) {
			log.Warn("Operation failed",
				zap.String("operation", name),
				zap.Any("context", fields),
				zap.Bool("retryable", false),
				zap.Error(err),
			)
			return &OpError{Op: name, Fields: fields, Err: err}
		}

		if state.Exhausted() {
			log.Error("Operation failed, retries exhausted",
				zap.String("operation", name),
				zap.Any("context", fields),
				zap.Int("attempts", state.Attempts),
				zap.Error(err),
			)
			return &OpError{Op: name, Fields: fields, Attempts: state.Attempts, Retryable: true, Err: err}
		}

		state.Next()
		log.Warn("Retryable failure, attempting recovery",
			zap.String("operation", name),
			zap.Any("context", fields),
			zap.Int("attempt", state.Attempts),
			zap.Int("max_attempts", state.MaxAttempts),
			zap.Error(err),
		)

		var rerr error
		if recoverFn != nil {
			rerr = recoverFn(ctx)
		} else {
			rerr = sleep(ctx, r.Policy.Backoff)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &OpError{Op: name, Fields: fields, Attempts: state.Attempts, Retryable: true, Err: err}
		}
		if rerr != nil {
			log.Warn("Recovery attempt failed",
				zap.String("operation", name),
				zap.Int("attempt", state.Attempts),
				zap.Error(rerr),
			)
		}
	}
}
