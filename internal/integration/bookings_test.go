package integration_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/seatwise/cinema-reservation/internal/domain"
)

const testUserID = int64(1)

type BookingsSuite struct {
	BaseSuite
}

func (s *BookingsSuite) SetupTest() {
	s.resetBookings(context.Background())
}

func TestBookingsSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	suite.Run(t, new(BookingsSuite))
}

func (s *BookingsSuite) TestReserveAndPayFlow() {
	ctx := context.Background()

	coords := []domain.SeatCoordinate{{Row: 1, Number: 1}, {Row: 1, Number: 2}}

	booking, err := s.service.CreateBooking(ctx, testUserID, testSessionID, coords)
	s.Require().NoError(err)
	s.Equal(domain.BookingStatusPending, booking.Status)
	s.True(booking.TotalAmount.Equal(decimal.NewFromFloat(20.00)))

	taken, err := s.bookingRepo.TakenSeats(ctx, testSessionID)
	s.Require().NoError(err)
	s.Equal(coords, taken)

	payment, err := s.service.Pay(ctx, testUserID, booking.ID)
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusPaid, payment.Status)
	s.True(payment.Amount.Equal(booking.TotalAmount))

	stored, err := s.bookingRepo.GetById(ctx, booking.ID)
	s.Require().NoError(err)
	s.Equal(domain.BookingStatusConfirmed, stored.Status)

	// Confirmed bookings keep holding their seats.
	taken, err = s.bookingRepo.TakenSeats(ctx, testSessionID)
	s.Require().NoError(err)
	s.Len(taken, 2)

	s.service.Wait()
	s.Len(s.mailer.GetSentEmails(), 1)
	s.mailer.Reset()
}

func (s *BookingsSuite) TestSeatUniquenessEnforcedByIndex() {
	ctx := context.Background()

	session, err := s.catalogRepo.GetSession(ctx, testSessionID)
	s.Require().NoError(err)

	seatID := s.seatIDByCoordinate(ctx, domain.SeatCoordinate{Row: 2, Number: 1})
	seat := domain.Seat{ID: seatID, HallID: 1, Row: 2, Number: 1}

	// Two bookings for the same seat written straight through the
	// repository, bypassing the ledger's session lock. The partial unique
	// index must reject the second.
	first := domain.NewBooking(testUserID, session, []domain.Seat{seat}, time.Now())
	s.Require().NoError(s.bookingRepo.Create(ctx, first))

	second := domain.NewBooking(testUserID, session, []domain.Seat{seat}, time.Now())
	err = s.bookingRepo.Create(ctx, second)
	s.ErrorIs(err, domain.ErrSeatAlreadyReserved)
}

func (s *BookingsSuite) TestConcurrentReservations() {
	ctx := context.Background()

	const attempts = 8

	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.CreateBooking(ctx, testUserID, testSessionID,
				[]domain.SeatCoordinate{{Row: 1, Number: 3}})
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			var seatsTaken *domain.SeatsTakenError
			s.ErrorAs(err, &seatsTaken)
		}
	}

	s.Equal(1, succeeded)
}

func (s *BookingsSuite) TestCancelReleasesSeats() {
	ctx := context.Background()

	coords := []domain.SeatCoordinate{{Row: 2, Number: 2}}

	booking, err := s.service.CreateBooking(ctx, testUserID, testSessionID, coords)
	s.Require().NoError(err)

	err = s.service.CancelBooking(ctx, testUserID, booking.ID)
	s.Require().NoError(err)

	taken, err := s.bookingRepo.TakenSeats(ctx, testSessionID)
	s.Require().NoError(err)
	s.Empty(taken)

	// The freed seat is reservable again.
	_, err = s.service.CreateBooking(ctx, testUserID, testSessionID, coords)
	s.NoError(err)
}

func (s *BookingsSuite) TestCancellingForeignBookingIsNotFound() {
	ctx := context.Background()

	booking, err := s.service.CreateBooking(ctx, testUserID, testSessionID,
		[]domain.SeatCoordinate{{Row: 2, Number: 3}})
	s.Require().NoError(err)

	err = s.service.CancelBooking(ctx, testUserID+1, booking.ID)
	s.ErrorIs(err, domain.ErrRecordNotFound)
}

func (s *BookingsSuite) TestVersionConflictOnStaleUpdate() {
	ctx := context.Background()

	booking, err := s.service.CreateBooking(ctx, testUserID, testSessionID,
		[]domain.SeatCoordinate{{Row: 1, Number: 1}})
	s.Require().NoError(err)

	stale, err := s.bookingRepo.GetById(ctx, booking.ID)
	s.Require().NoError(err)

	current, err := s.bookingRepo.GetById(ctx, booking.ID)
	s.Require().NoError(err)

	current.Status = domain.BookingStatusCancelled
	s.Require().NoError(s.bookingRepo.UpdateStatus(ctx, current))

	stale.Status = domain.BookingStatusExpired
	err = s.bookingRepo.UpdateStatus(ctx, stale)
	s.ErrorIs(err, domain.ErrEditConflict)
}

func (s *BookingsSuite) TestOverdueBookingIsSweptAndExpired() {
	ctx := context.Background()

	booking, err := s.service.CreateBooking(ctx, testUserID, testSessionID,
		[]domain.SeatCoordinate{{Row: 1, Number: 2}})
	s.Require().NoError(err)

	s.forceExpiry(ctx, booking.ID)

	overdue, err := s.bookingRepo.OverduePending(ctx, time.Now())
	s.Require().NoError(err)
	s.Require().Len(overdue, 1)
	s.Equal(booking.ID, overdue[0].BookingID)
	s.Equal(testSessionID, overdue[0].SessionID)

	expired, err := s.ledger.MarkExpired(ctx, booking.ID)
	s.Require().NoError(err)
	s.True(expired)

	stored, err := s.bookingRepo.GetById(ctx, booking.ID)
	s.Require().NoError(err)
	s.Equal(domain.BookingStatusExpired, stored.Status)

	taken, err := s.bookingRepo.TakenSeats(ctx, testSessionID)
	s.Require().NoError(err)
	s.Empty(taken)
}

func (s *BookingsSuite) TestPayAfterDeadlineExpiresBooking() {
	ctx := context.Background()

	booking, err := s.service.CreateBooking(ctx, testUserID, testSessionID,
		[]domain.SeatCoordinate{{Row: 2, Number: 1}})
	s.Require().NoError(err)

	s.forceExpiry(ctx, booking.ID)

	_, err = s.service.Pay(ctx, testUserID, booking.ID)
	s.ErrorIs(err, domain.ErrBookingExpired)

	stored, err := s.bookingRepo.GetById(ctx, booking.ID)
	s.Require().NoError(err)
	s.Equal(domain.BookingStatusExpired, stored.Status)
}

func (s *BookingsSuite) TestPaymentIsRecordedOncePerBooking() {
	ctx := context.Background()

	booking, err := s.service.CreateBooking(ctx, testUserID, testSessionID,
		[]domain.SeatCoordinate{{Row: 2, Number: 2}})
	s.Require().NoError(err)

	_, err = s.service.Pay(ctx, testUserID, booking.ID)
	s.Require().NoError(err)

	_, err = s.service.Pay(ctx, testUserID, booking.ID)
	s.ErrorIs(err, domain.ErrAlreadyPaid)

	var count int
	err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE booking_id = $1`, booking.ID).Scan(&count)
	s.Require().NoError(err)
	s.Equal(1, count)

	s.service.Wait()
	s.mailer.Reset()
}

func (s *BookingsSuite) TestListBookingsPagination() {
	ctx := context.Background()

	_, err := s.service.CreateBooking(ctx, testUserID, testSessionID,
		[]domain.SeatCoordinate{{Row: 1, Number: 1}})
	s.Require().NoError(err)

	_, err = s.service.CreateBooking(ctx, testUserID, testSessionID,
		[]domain.SeatCoordinate{{Row: 1, Number: 2}})
	s.Require().NoError(err)

	bookings, metadata, err := s.service.ListBookings(ctx, testUserID, domain.Pagination{Page: 1, PageSize: 1})
	s.Require().NoError(err)

	s.Len(bookings, 1)
	s.Equal(2, metadata.TotalRecords)
	s.Equal(2, metadata.LastPage)
	s.Len(bookings[0].Seats, 1)

	bookings, _, err = s.service.ListBookings(ctx, testUserID, domain.Pagination{Page: 2, PageSize: 1})
	s.Require().NoError(err)
	s.Len(bookings, 1)
}

func (s *BookingsSuite) TestSeatStreamGetsUpdatesOnTransitions() {
	ctx := context.Background()

	sub := s.notifier.Subscribe(testSessionID)
	defer s.notifier.Unsubscribe(sub)

	booking, err := s.service.CreateBooking(ctx, testUserID, testSessionID,
		[]domain.SeatCoordinate{{Row: 1, Number: 3}})
	s.Require().NoError(err)

	update := s.nextUpdate(sub.C)
	s.Equal(testSessionID, update.SessionID)
	s.Len(update.TakenSeats, 1)

	err = s.service.CancelBooking(ctx, testUserID, booking.ID)
	s.Require().NoError(err)

	update = s.nextUpdate(sub.C)
	s.Empty(update.TakenSeats)
}

func (s *BookingsSuite) TestUnknownSeatRejected() {
	ctx := context.Background()

	_, err := s.service.CreateBooking(ctx, testUserID, testSessionID,
		[]domain.SeatCoordinate{{Row: 99, Number: 99}})

	var seatNotFound *domain.SeatNotFoundError
	s.ErrorAs(err, &seatNotFound)
}

func (s *BookingsSuite) TestUnknownSessionRejected() {
	ctx := context.Background()

	_, err := s.service.CreateBooking(ctx, testUserID, uuid.New(),
		[]domain.SeatCoordinate{{Row: 1, Number: 1}})
	s.ErrorIs(err, domain.ErrRecordNotFound)
}
