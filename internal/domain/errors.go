package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrEditConflict      = errors.New("edit conflict")
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrSeatAlreadyReserved is the storage layer's report of a lost seat
	// race; the ledger converts it into a SeatsTakenError with a fresh
	// snapshot before it reaches callers.
	ErrSeatAlreadyReserved = errors.New("seat(s) are already reserved")

	ErrNoSeatsSelected = errors.New("a booking requires at least one seat")

	ErrInvalidTransition         = errors.New("booking is already in a terminal state")
	ErrBookingExpired            = errors.New("booking hold time has expired")
	ErrAlreadyPaid               = errors.New("booking is already paid")
	ErrAlreadyCancelledOrExpired = errors.New("booking is already cancelled or expired")
)

// SeatNotFoundError reports a seat coordinate that does not exist in the
// session's hall. Not retryable without correcting the input.
type SeatNotFoundError struct {
	Coordinate SeatCoordinate
}

func (e *SeatNotFoundError) Error() string {
	return fmt.Sprintf("seat %s does not exist in the hall", e.Coordinate)
}

// SeatsTakenError reports a reservation conflict. TakenSeats carries the full
// current taken set for the session, not just the conflicting seats, so
// clients can re-render availability without another round trip.
type SeatsTakenError struct {
	TakenSeats []SeatCoordinate
}

func (e *SeatsTakenError) Error() string {
	taken := make([]string, len(e.TakenSeats))
	for i, c := range e.TakenSeats {
		taken[i] = c.String()
	}
	return fmt.Sprintf("seats already taken for this session: %s", strings.Join(taken, ", "))
}
