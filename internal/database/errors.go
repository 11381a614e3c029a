package database

import "errors"

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotAvailable is returned when a therapist has no free slot on the date.
	ErrNotAvailable = errors.New("therapist is not available on this date")

	// ErrConcurrentModification is returned on optimistic version conflicts.
	ErrConcurrentModification = errors.New("booking was modified concurrently")

	// ErrPastDate is returned for booking dates in the past.
	ErrPastDate = errors.New("date is in the past")

	// ErrDateTooFar is returned for booking dates beyond the allowed horizon.
	ErrDateTooFar = errors.New("date is too far in the future")

	// ErrDuplicateBooking is returned when a match already has an active booking.
	ErrDuplicateBooking = errors.New("match already has an active booking")
)
