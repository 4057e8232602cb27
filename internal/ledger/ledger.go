// Package ledger is the single authority for seat uniqueness and for booking
// and payment state transitions. All mutations of the "seats taken for a
// session" set go through here.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/seatwise/cinema-reservation/internal/domain"
)

type Ledger struct {
	bookings domain.BookingRepository
	catalog  domain.CatalogRepository
	events   domain.BookingEventPublisher
	logger   *slog.Logger

	// sessionLocks serializes the availability-check + create sequence per
	// session; bookingLocks totally orders lifecycle transitions per
	// booking. The storage layer's partial unique index on active seats is
	// the second line of defense behind sessionLocks.
	sessionLocks *keyedMutex
	bookingLocks *keyedMutex

	now func() time.Time
}

func New(
	bookings domain.BookingRepository,
	catalog domain.CatalogRepository,
	events domain.BookingEventPublisher,
	logger *slog.Logger,
) *Ledger {
	return &Ledger{
		bookings:     bookings,
		catalog:      catalog,
		events:       events,
		logger:       logger,
		sessionLocks: newKeyedMutex(),
		bookingLocks: newKeyedMutex(),
		now:          time.Now,
	}
}

// Reserve atomically checks seat availability and creates a pending booking.
// For two concurrent calls targeting overlapping seats of the same session, at
// most one succeeds; the loser gets a SeatsTakenError carrying the full
// current taken set. Arming the expiry timer and broadcasting the new
// snapshot are the orchestrator's job.
func (l *Ledger) Reserve(
	ctx context.Context,
	userID int64,
	sessionID uuid.UUID,
	coordinates []domain.SeatCoordinate,
) (*domain.Booking, error) {

	if len(coordinates) == 0 {
		return nil, domain.ErrNoSeatsSelected
	}

	session, err := l.catalog.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	hallSeats, err := l.catalog.GetSeatsByHall(ctx, session.HallID)
	if err != nil {
		return nil, err
	}

	byCoordinate := make(map[domain.SeatCoordinate]domain.Seat, len(hallSeats))
	byID := make(map[int64]domain.Seat, len(hallSeats))
	for _, seat := range hallSeats {
		byCoordinate[seat.Coordinate()] = seat
		byID[seat.ID] = seat
	}

	seats := make([]domain.Seat, 0, len(coordinates))
	requested := make(map[int64]bool, len(coordinates))
	for _, coordinate := range coordinates {
		seat, ok := byCoordinate[coordinate]
		if !ok {
			return nil, &domain.SeatNotFoundError{Coordinate: coordinate}
		}
		if requested[seat.ID] {
			continue
		}
		requested[seat.ID] = true
		seats = append(seats, seat)
	}

	unlock := l.sessionLocks.Lock(sessionID.String())
	defer unlock()

	activeIDs, err := l.bookings.ActiveSeatIDs(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	for _, id := range activeIDs {
		if requested[id] {
			return nil, &domain.SeatsTakenError{TakenSeats: coordinatesOf(activeIDs, byID)}
		}
	}

	booking := domain.NewBooking(userID, session, seats, l.now())

	err = l.bookings.Create(ctx, booking)
	if err != nil {
		if errors.Is(err, domain.ErrSeatAlreadyReserved) {
			// Lost a race the session lock could not see, e.g. a
			// concurrent process committed first. The unique index
			// arbitrated; re-read and report the fresh taken set.
			activeIDs, snapErr := l.bookings.ActiveSeatIDs(ctx, sessionID)
			if snapErr != nil {
				return nil, snapErr
			}
			return nil, &domain.SeatsTakenError{TakenSeats: coordinatesOf(activeIDs, byID)}
		}
		return nil, err
	}

	l.publish(ctx, domain.BookingCreated, booking)

	return booking, nil
}

// Cancel transitions the booking to cancelled. Allowed from pending or
// confirmed only; terminal states report ErrInvalidTransition. Disarming any
// scheduled expiry is the caller's responsibility.
func (l *Ledger) Cancel(ctx context.Context, booking *domain.Booking) error {
	unlock := l.bookingLocks.Lock(booking.ID.String())
	defer unlock()

	current, err := l.bookings.GetById(ctx, booking.ID)
	if err != nil {
		return err
	}

	if !current.HoldsSeats() {
		return domain.ErrInvalidTransition
	}

	current.Status = domain.BookingStatusCancelled

	err = l.bookings.UpdateStatus(ctx, current)
	if err != nil {
		return err
	}

	*booking = *current
	l.publish(ctx, domain.BookingCancelled, current)

	return nil
}

// ConfirmPayment records a successful payment and flips the booking to
// confirmed in one transaction. A booking found past its deadline is expired
// on the spot (lazy expiry) and the call fails with ErrBookingExpired. The
// comparison is strictly now > deadline: paying at the exact deadline instant
// still succeeds.
func (l *Ledger) ConfirmPayment(ctx context.Context, booking *domain.Booking) (*domain.Payment, error) {
	unlock := l.bookingLocks.Lock(booking.ID.String())
	defer unlock()

	current, err := l.bookings.GetById(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	switch current.Status {
	case domain.BookingStatusCancelled, domain.BookingStatusExpired:
		return nil, domain.ErrAlreadyCancelledOrExpired
	case domain.BookingStatusConfirmed:
		return nil, domain.ErrAlreadyPaid
	}

	now := l.now()

	if now.After(current.ExpiresAt) {
		current.Status = domain.BookingStatusExpired

		err = l.bookings.UpdateStatus(ctx, current)
		if err != nil {
			return nil, err
		}

		*booking = *current
		l.publish(ctx, domain.BookingExpired, current)

		return nil, domain.ErrBookingExpired
	}

	payment := domain.NewPaidPayment(current, now)
	current.Status = domain.BookingStatusConfirmed

	err = l.bookings.ConfirmWithPayment(ctx, current, payment)
	if err != nil {
		return nil, err
	}

	*booking = *current
	l.publish(ctx, domain.BookingConfirmed, current)

	return payment, nil
}

// MarkExpired transitions an overdue pending booking to expired. Idempotent:
// it returns false without touching anything when the booking is not pending,
// its deadline has not passed yet, or it no longer exists. Both the armed
// timer and the sweep converge here, so racing them is benign.
func (l *Ledger) MarkExpired(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	unlock := l.bookingLocks.Lock(bookingID.String())
	defer unlock()

	current, err := l.bookings.GetById(ctx, bookingID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	if current.Status != domain.BookingStatusPending || !l.now().After(current.ExpiresAt) {
		return false, nil
	}

	current.Status = domain.BookingStatusExpired

	err = l.bookings.UpdateStatus(ctx, current)
	if err != nil {
		return false, err
	}

	l.publish(ctx, domain.BookingExpired, current)

	return true, nil
}

// TakenSeats returns the seats held by pending or confirmed bookings of the
// session, ordered by (row, seat number). Read path: no session lock taken.
func (l *Ledger) TakenSeats(ctx context.Context, sessionID uuid.UUID) ([]domain.SeatCoordinate, error) {
	return l.bookings.TakenSeats(ctx, sessionID)
}

func (l *Ledger) publish(ctx context.Context, eventType domain.BookingEventType, booking *domain.Booking) {
	if l.events == nil {
		return
	}

	event := domain.BookingEvent{
		Type:       eventType,
		BookingID:  booking.ID,
		SessionID:  booking.SessionID,
		Seats:      booking.SeatCoordinates(),
		OccurredAt: l.now(),
	}

	err := l.events.Publish(ctx, event)
	if err != nil {
		l.logger.Error("failed to publish booking event",
			"type", string(eventType),
			"booking_id", booking.ID,
			"error", err,
		)
	}
}

func coordinatesOf(seatIDs []int64, byID map[int64]domain.Seat) []domain.SeatCoordinate {
	coordinates := make([]domain.SeatCoordinate, 0, len(seatIDs))
	for _, id := range seatIDs {
		if seat, ok := byID[id]; ok {
			coordinates = append(coordinates, seat.Coordinate())
		}
	}

	sort.Slice(coordinates, func(i, j int) bool {
		return coordinates[i].Less(coordinates[j])
	})

	return coordinates
}
