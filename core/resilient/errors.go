package resilient

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Fields carries diagnostic context for an operation (e.g. the record name).
type Fields map[string]any

// String renders the fields sorted by key.
func (f Fields) String() string {
	if len(f) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, f[k]))
	}
	return strings.Join(parts, " ")
}

// OpError is returned by Do and Client.Execute for every failed operation.
type OpError struct {
	// Op is the operation name passed by the caller.
	Op string
	// Fields is the caller supplied context.
	Fields Fields
	// Attempts is the number of recovery attempts made before giving up.
	Attempts int
	// Retryable reports whether Err was classified as a connectivity failure.
	Retryable bool
	// Err is the original error.
	Err error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if ctx := e.Fields.String(); ctx != "" {
		b.WriteString(" (")
		b.WriteString(ctx)
		b.WriteString(")")
	}
	if e.Retryable {
		fmt.Fprintf(&b, " failed after %d reconnect attempts", e.Attempts)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// IsConnectivity reports whether err is an infrastructure failure that
// exhausted its retries, as opposed to a domain or validation error.
func IsConnectivity(err error) bool {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Retryable
	}
	return false
}
