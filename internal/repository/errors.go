// Package repository holds the persistence layer of the auction engine: the
// Store abstraction the engine mutates through, a MySQL implementation built
// from per-table repos, and an in-memory implementation.  The sentinel
// values below let higher layers distinguish failure scenarios without
// depending on a driver.
package repository

import "errors"

// ErrNotFound is returned when the requested auction or bid row does not
// exist.
var ErrNotFound = errors.New("not found")

// ErrConflict signals a transient concurrency failure (deadlock or lock
// wait timeout).  The whole listing unit may be retried.
var ErrConflict = errors.New("conflict")
