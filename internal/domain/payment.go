package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Payment is owned one-to-one by a Booking. The amount is always copied from
// the booking, never supplied by a caller.
type Payment struct {
	ID        int64
	BookingID uuid.UUID
	Amount    decimal.Decimal
	Status    PaymentStatus
	PaidAt    *time.Time
	CreatedAt time.Time
}

// NewPaidPayment records a successful payment for the booking at the given
// instant.
func NewPaidPayment(booking *Booking, now time.Time) *Payment {
	return &Payment{
		BookingID: booking.ID,
		Amount:    booking.TotalAmount,
		Status:    PaymentStatusPaid,
		PaidAt:    &now,
		CreatedAt: now,
	}
}
