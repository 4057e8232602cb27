package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type BookingEventType string

const (
	BookingCreated   BookingEventType = "booking.created"
	BookingConfirmed BookingEventType = "booking.confirmed"
	BookingCancelled BookingEventType = "booking.cancelled"
	BookingExpired   BookingEventType = "booking.expired"
)

// BookingEvent is emitted by the booking ledger on every state transition.
// Downstream consumers (availability caches, analytics) use it for explicit
// invalidation instead of polling.
type BookingEvent struct {
	Type       BookingEventType `json:"type"`
	BookingID  uuid.UUID        `json:"bookingId"`
	SessionID  uuid.UUID        `json:"sessionId"`
	Seats      []SeatCoordinate `json:"seats"`
	OccurredAt time.Time        `json:"occurredAt"`
}

type BookingEventPublisher interface {
	Publish(ctx context.Context, event BookingEvent) error
}
