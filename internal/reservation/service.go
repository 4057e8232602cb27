// Package reservation orchestrates the booking lifecycle: it composes the
// ledger, the expiry scheduler, the availability notifier and the mailer
// behind the four operations the API layer exposes. Ledger errors pass
// through unmodified; scheduler, notifier and mailer failures are logged and
// never fail the operation.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/seatwise/cinema-reservation/internal/domain"
	"github.com/seatwise/cinema-reservation/internal/mailer"
	"github.com/seatwise/cinema-reservation/internal/scheduler"
)

type SeatLedger interface {
	Reserve(ctx context.Context, userID int64, sessionID uuid.UUID, coordinates []domain.SeatCoordinate) (*domain.Booking, error)
	Cancel(ctx context.Context, booking *domain.Booking) error
	ConfirmPayment(ctx context.Context, booking *domain.Booking) (*domain.Payment, error)
	TakenSeats(ctx context.Context, sessionID uuid.UUID) ([]domain.SeatCoordinate, error)
}

type ExpiryScheduler interface {
	Arm(bookingID, sessionID uuid.UUID, deadline time.Time) scheduler.Handle
	Disarm(handle scheduler.Handle)
}

type SnapshotPublisher interface {
	Publish(sessionID uuid.UUID, takenSeats []domain.SeatCoordinate)
}

type Service struct {
	ledger    SeatLedger
	bookings  domain.BookingRepository
	users     domain.UserRepository
	scheduler ExpiryScheduler
	notifier  SnapshotPublisher
	mailer    mailer.Mailer
	logger    *slog.Logger

	// handles maps booking IDs to armed expiry handles for this process.
	// After a restart the map is empty and the scheduler sweep takes over.
	handles sync.Map
	wg      sync.WaitGroup
}

func NewService(
	ledger SeatLedger,
	bookings domain.BookingRepository,
	users domain.UserRepository,
	expiryScheduler ExpiryScheduler,
	notifier SnapshotPublisher,
	bookingMailer mailer.Mailer,
	logger *slog.Logger,
) *Service {
	return &Service{
		ledger:    ledger,
		bookings:  bookings,
		users:     users,
		scheduler: expiryScheduler,
		notifier:  notifier,
		mailer:    bookingMailer,
		logger:    logger,
	}
}

// CreateBooking reserves the seats, arms the expiry timer and broadcasts the
// new availability snapshot. A SeatsTakenError from the ledger reaches the
// caller with its taken list intact.
func (s *Service) CreateBooking(
	ctx context.Context,
	userID int64,
	sessionID uuid.UUID,
	coordinates []domain.SeatCoordinate,
) (*domain.Booking, error) {

	booking, err := s.ledger.Reserve(ctx, userID, sessionID, coordinates)
	if err != nil {
		return nil, err
	}

	handle := s.scheduler.Arm(booking.ID, booking.SessionID, booking.ExpiresAt)
	s.handles.Store(booking.ID, handle)
	booking.ScheduleHandle = handle.String()

	err = s.bookings.SetScheduleHandle(ctx, booking.ID, booking.ScheduleHandle)
	if err != nil {
		// The sweep expires the booking regardless; the handle column is
		// informational.
		s.logger.Error("failed to persist schedule handle", "booking_id", booking.ID, "error", err)
	}

	s.broadcast(ctx, booking.SessionID)

	return booking, nil
}

// CancelBooking cancels the user's booking and releases its seats. Bookings
// of other users are reported as not found, never as forbidden.
func (s *Service) CancelBooking(ctx context.Context, userID int64, bookingID uuid.UUID) error {
	booking, err := s.bookings.GetByIdAndUserId(ctx, bookingID, userID)
	if err != nil {
		return err
	}

	err = s.ledger.Cancel(ctx, booking)
	if err != nil {
		return err
	}

	s.disarm(booking.ID)
	s.broadcast(ctx, booking.SessionID)

	return nil
}

// Pay confirms payment for the user's booking. Payment preempts expiry: on
// success the armed timer is disarmed. When the ledger reports the booking
// expired lazily, the stale timer is dropped and the snapshot rebroadcast so
// the freed seats become visible.
func (s *Service) Pay(ctx context.Context, userID int64, bookingID uuid.UUID) (*domain.Payment, error) {
	booking, err := s.bookings.GetByIdAndUserId(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}

	payment, err := s.ledger.ConfirmPayment(ctx, booking)
	if err != nil {
		if errors.Is(err, domain.ErrBookingExpired) {
			s.disarm(booking.ID)
			s.broadcast(ctx, booking.SessionID)
		}
		return nil, err
	}

	s.disarm(booking.ID)
	s.broadcast(ctx, booking.SessionID)
	s.sendConfirmationMail(booking, payment)

	return payment, nil
}

// TakenSeats returns the current taken set for a session. Public, no
// ownership involved.
func (s *Service) TakenSeats(ctx context.Context, sessionID uuid.UUID) ([]domain.SeatCoordinate, error) {
	return s.ledger.TakenSeats(ctx, sessionID)
}

// ListBookings returns the user's bookings, newest first.
func (s *Service) ListBookings(
	ctx context.Context,
	userID int64,
	pagination domain.Pagination,
) ([]*domain.Booking, *domain.Metadata, error) {

	return s.bookings.GetByUserId(ctx, userID, pagination)
}

// Wait blocks until background work (confirmation mails) has drained. Used
// on shutdown and in tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) disarm(bookingID uuid.UUID) {
	value, ok := s.handles.LoadAndDelete(bookingID)
	if !ok {
		return
	}

	s.scheduler.Disarm(value.(scheduler.Handle))
}

func (s *Service) broadcast(ctx context.Context, sessionID uuid.UUID) {
	snapshot, err := s.ledger.TakenSeats(ctx, sessionID)
	if err != nil {
		s.logger.Error("failed to load taken seats for broadcast",
			"session_id", sessionID,
			"error", err,
		)
		return
	}

	s.notifier.Publish(sessionID, snapshot)
}

func (s *Service) sendConfirmationMail(booking *domain.Booking, payment *domain.Payment) {
	s.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		user, err := s.users.GetById(ctx, booking.UserID)
		if err != nil {
			s.logger.Error("failed to load user for confirmation mail",
				"user_id", booking.UserID,
				"error", err,
			)
			return
		}

		data := map[string]any{
			"name":      user.Name,
			"bookingID": booking.ID.String(),
			"seats":     booking.SeatCoordinates(),
			"amount":    payment.Amount.StringFixed(2),
		}

		err = s.mailer.Send(user.Email, "booking_confirmation.tmpl", data)
		if err != nil {
			s.logger.Error("failed to send confirmation mail", "booking_id", booking.ID, "error", err)
		}
	})
}

func (s *Service) background(fn func()) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("background task panicked", "error", fmt.Sprintf("%s", err))
			}
		}()

		fn()
	}()
}
