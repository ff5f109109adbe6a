package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable marks a connectivity failure of a single store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrAllStoresUnavailable means no store could serve the operation.
	ErrAllStoresUnavailable = errors.New("all stores unavailable")
	// ErrProfileNotFound means every reachable store cleanly reported the
	// profile as absent.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrSchemaDriftDegraded annotates a relational write that only persisted
	// the core columns because the table is missing some of the others.
	ErrSchemaDriftDegraded = errors.New("schema drift: wrote core fields only")
)

// UnavailableError carries the store and operation that failed.
type UnavailableError struct {
	Store Name
	Op    string
	Err   error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Store, e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStoreUnavailable) match.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// Unavailable wraps err as an UnavailableError unless it already is one.
func Unavailable(name Name, op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Store: name, Op: op, Err: err}
}

// IsUnavailable reports whether err describes a connectivity failure.
// Deadline and cancellation errors count as unavailability.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// IsDegraded reports whether a successful write carried the schema drift
// annotation.
func IsDegraded(err error) bool {
	return errors.Is(err, ErrSchemaDriftDegraded)
}
