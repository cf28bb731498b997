// Package resilient wraps a single backing store with connection health
// checks, bounded reconnect-with-backoff and a uniform retry wrapper.
//
// # Classification
//
// IsRetryable decides whether an error is a transient connectivity failure
// (connection refused, timeouts, broken connections and a small set of MySQL
// transient error codes) or a permanent one (validation, constraint and
// domain errors). Permanent errors are never retried.
//
// # Retry loop
//
// Do runs an operation in a bounded loop carrying a RetryState. Each
// retryable failure consumes one attempt and invokes an optional recovery
// hook (Client uses it to reconnect). Once MaxAttempts recoveries have been
// made, the original error is surfaced wrapped in an *OpError.
//
// # Client
//
// Client owns the *gorm.DB handed to it at construction. Execute pings the
// connection before every attempt and reconnects through the injected
// Connector on connectivity failures. Retry state is local to each Execute
// call; only the connection swap is guarded by a lock.
//
//	client := resilient.NewClient(db, connector, resilient.DefaultPolicy(), log)
//	err := client.Execute(ctx, "findByName", resilient.Fields{"name": name}, func(db *gorm.DB) error {
//	    return db.Where("name = ?", name).First(&rec).Error
//	})
package resilient
