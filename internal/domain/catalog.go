package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SeatCoordinate identifies a seat within a hall by its physical position.
type SeatCoordinate struct {
	Row    int `json:"rowNumber"`
	Number int `json:"seatNumber"`
}

func (c SeatCoordinate) String() string {
	return fmt.Sprintf("(row %d, seat %d)", c.Row, c.Number)
}

// Less orders coordinates by (row, seat number) ascending.
func (c SeatCoordinate) Less(other SeatCoordinate) bool {
	if c.Row != other.Row {
		return c.Row < other.Row
	}
	return c.Number < other.Number
}

type Seat struct {
	ID     int64
	HallID int64
	Row    int
	Number int
}

func (s Seat) Coordinate() SeatCoordinate {
	return SeatCoordinate{Row: s.Row, Number: s.Number}
}

type Hall struct {
	ID   int64
	Name string
}

// Session is a scheduled screening of a movie in a hall. Reference data:
// the reservation core never mutates it.
type Session struct {
	ID         uuid.UUID
	MovieID    int64
	MovieTitle string
	HallID     int64
	HallName   string
	StartsAt   time.Time
	Price      decimal.Decimal
}

type CatalogRepository interface {
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	GetSeatsByHall(ctx context.Context, hallID int64) ([]Seat, error)
}
