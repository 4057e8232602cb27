package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusExpired   BookingStatus = "expired"
)

// HoldDuration is the fixed window a pending booking keeps its seats before
// automatic expiry. The expiry scheduler derives its deadlines from the
// ExpiresAt set here, so there is a single source of truth.
const HoldDuration = 15 * time.Minute

type Booking struct {
	ID             uuid.UUID
	UserID         int64
	SessionID      uuid.UUID
	Seats          []Seat
	Status         BookingStatus
	TotalAmount    decimal.Decimal
	ExpiresAt      time.Time
	ScheduleHandle string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int
}

// NewBooking creates a pending booking for the given seats. The total is fixed
// at creation time: session price times seat count.
func NewBooking(userID int64, session *Session, seats []Seat, now time.Time) *Booking {
	return &Booking{
		ID:          uuid.New(),
		UserID:      userID,
		SessionID:   session.ID,
		Seats:       seats,
		Status:      BookingStatusPending,
		TotalAmount: session.Price.Mul(decimal.NewFromInt(int64(len(seats)))),
		ExpiresAt:   now.Add(HoldDuration),
		CreatedAt:   now,
	}
}

// IsTerminal reports whether the booking reached a final state. Pending is the
// only state transitions happen from.
func (b *Booking) IsTerminal() bool {
	return b.Status != BookingStatusPending
}

// HoldsSeats reports whether the booking currently occupies its seats, i.e.
// counts toward the taken set of its session.
func (b *Booking) HoldsSeats() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}

func (b *Booking) SeatCoordinates() []SeatCoordinate {
	coords := make([]SeatCoordinate, len(b.Seats))
	for i, seat := range b.Seats {
		coords[i] = seat.Coordinate()
	}
	return coords
}

// PendingExpiry references a pending booking whose deadline has passed, as
// reported by the sweep query.
type PendingExpiry struct {
	BookingID uuid.UUID
	SessionID uuid.UUID
}

type BookingRepository interface {
	// Create persists the booking together with its seat rows in one
	// transaction. A race lost at the storage layer (the partial unique
	// index on active seats) surfaces as ErrSeatAlreadyReserved.
	Create(ctx context.Context, booking *Booking) error
	GetById(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByIdAndUserId(ctx context.Context, id uuid.UUID, userID int64) (*Booking, error)
	GetByUserId(ctx context.Context, userID int64, pagination Pagination) ([]*Booking, *Metadata, error)
	// UpdateStatus persists a state transition, releasing the booking's
	// seats in the same transaction when the new state is terminal.
	// Returns ErrEditConflict if the row changed since the booking was read.
	UpdateStatus(ctx context.Context, booking *Booking) error
	// ConfirmWithPayment atomically records the payment and flips the
	// booking to confirmed.
	ConfirmWithPayment(ctx context.Context, booking *Booking, payment *Payment) error
	SetScheduleHandle(ctx context.Context, id uuid.UUID, handle string) error
	ActiveSeatIDs(ctx context.Context, sessionID uuid.UUID) ([]int64, error)
	// TakenSeats returns the coordinates held by pending or confirmed
	// bookings of the session, ordered by (row, seat number) ascending.
	TakenSeats(ctx context.Context, sessionID uuid.UUID) ([]SeatCoordinate, error)
	OverduePending(ctx context.Context, now time.Time) ([]PendingExpiry, error)
}
