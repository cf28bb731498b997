// Package repository stores canonical service records in the relational
// database. Every store call goes through resilient.Client, so connectivity
// failures are retried with reconnects while domain errors (ErrNotFound,
// ErrDuplicateName) and validation errors surface immediately.
package repository
