package booking

import (
	"errors"
	"fmt"
)

var (
	ErrConflict         = errors.New("booking: slot already taken")
	ErrNotFound         = errors.New("booking: not found")
	ErrStoreUnavailable = errors.New("booking: store unavailable")
	ErrMalformedRow     = errors.New("booking: malformed row")
	ErrStale            = errors.New("booking: working set is stale")
	ErrInvalid          = errors.New("booking: invalid booking")
)

// ConflictError reports the booking already holding the requested slot.
type ConflictError struct {
	Date     Date
	Time     Clock
	Existing Booking
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("a rehearsal is already booked on %s at %s (%s)", e.Date.DayFirst(), e.Existing.Time, e.Existing.Band)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("booking %s not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// StoreUnavailableError means the store could not be reached. The in-memory
// state that was being saved is kept, so the operation can be retried.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("could not %s bookings: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// MalformedRowError describes one stored row that was skipped on load.
// Index is zero-based in store order.
type MalformedRowError struct {
	Index int
	Field string
	Value string
	Err   error
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("row %d: %s %q: %v", e.Index+1, e.Field, e.Value, e.Err)
}

func (e *MalformedRowError) Unwrap() []error {
	return []error{ErrMalformedRow, e.Err}
}

// StaleError means the store changed since the working set was loaded.
type StaleError struct {
	Err error
}

func (e *StaleError) Error() string {
	return "the agenda was changed elsewhere; reload before saving"
}

func (e *StaleError) Unwrap() []error {
	return []error{ErrStale, e.Err}
}

// Retryable reports whether repeating the same save may succeed without reloading.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
