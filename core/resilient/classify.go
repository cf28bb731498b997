package resilient

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// transientMySQLCodes are server and client error numbers worth a reconnect.
var transientMySQLCodes = map[uint16]struct{}{
	1040: {}, // too many connections
	1053: {}, // server shutdown in progress
	1205: {}, // lock wait timeout
	1213: {}, // deadlock
	2002: {}, // can't connect through socket
	2003: {}, // can't connect to server
	2006: {}, // server has gone away
	2013: {}, // lost connection during query
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"timeout",
	"connection",
}

// errTemporary marks errors that callers explicitly flag as transient.
type errTemporary struct{ err error }

func (e errTemporary) Error() string { return e.err.Error() }
func (e errTemporary) Unwrap() error { return e.err }

// Temporary marks err as retryable regardless of its message.
func Temporary(err error) error {
	if err == nil {
		return nil
	}
	return errTemporary{err: err}
}

// IsRetryable classifies err as a transient connectivity failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Domain errors never warrant a reconnect.
	if errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, context.Canceled) {
		return false
	}

	var temp errTemporary
	if errors.As(err, &temp) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		_, ok := transientMySQLCodes[mysqlErr.Number]
		return ok
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
