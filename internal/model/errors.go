package model

import "errors"

// Client-facing errors for the loan and reservation state machines. Handlers
// map these to HTTP status codes; everything else is treated as internal.
var (
	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when a loan is requested but no copies are
	// available, or the book has been removed from the catalog.
	ErrUnavailable = errors.New("no copies available")

	// ErrAlreadyReturned is returned when returning a loan that has already
	// been returned. The copy counters are left untouched.
	ErrAlreadyReturned = errors.New("loan already returned")

	// ErrInvalidTransition is returned when an action is requested on a
	// reservation in the wrong state.
	ErrInvalidTransition = errors.New("invalid reservation state for this action")

	// ErrDuplicateReservation is returned when the requester already holds an
	// active reservation for the same book.
	ErrDuplicateReservation = errors.New("active reservation already exists for this book")

	// ErrBookAvailable is returned when reserving a book that has free
	// copies; the caller should loan it directly instead.
	ErrBookAvailable = errors.New("book is available, loan it instead of reserving")

	// ErrInvalidSchedule is returned when a scheduled pickup is in the past
	// or collides with another reservation's pickup slot.
	ErrInvalidSchedule = errors.New("invalid pickup schedule")

	// ErrInvariantViolation is returned when a copy-count mutation would
	// leave lent_copies outside [0, total_copies]. With correct transaction
	// guards this indicates a bug, so it is surfaced rather than clamped.
	ErrInvariantViolation = errors.New("copy count invariant violated")
)
