package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/seatwise/cinema-reservation/internal/domain"
)

type RegisterUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	Id        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type SeatSelection struct {
	Row    int `json:"rowNumber" validate:"required,gte=1"`
	Number int `json:"seatNumber" validate:"required,gte=1"`
}

type CreateBookingRequest struct {
	SessionID uuid.UUID       `json:"sessionId" validate:"required"`
	Seats     []SeatSelection `json:"seats" validate:"required,min=1,max=10,dive"`
}

type BookingResponse struct {
	Id          uuid.UUID               `json:"id"`
	SessionId   uuid.UUID               `json:"sessionId"`
	Status      string                  `json:"status"`
	Seats       []domain.SeatCoordinate `json:"seats"`
	TotalAmount string                  `json:"totalAmount"`
	ExpiresAt   time.Time               `json:"expiresAt"`
	CreatedAt   time.Time               `json:"createdAt"`
}

type BookingListResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Metadata MetadataResponse  `json:"metadata"`
}

type MetadataResponse struct {
	CurrentPage  int `json:"currentPage"`
	PageSize     int `json:"pageSize"`
	FirstPage    int `json:"firstPage"`
	LastPage     int `json:"lastPage"`
	TotalRecords int `json:"totalRecords"`
}

type PaymentResponse struct {
	Id            int64      `json:"id"`
	BookingId     uuid.UUID  `json:"bookingId"`
	Amount        string     `json:"amount"`
	Status        string     `json:"status"`
	PaidAt        *time.Time `json:"paidAt"`
	BookingStatus string     `json:"bookingStatus"`
}

type SessionSeatsResponse struct {
	SessionId  uuid.UUID               `json:"sessionId"`
	TakenSeats []domain.SeatCoordinate `json:"takenSeats"`
}

type ErrorResponse struct {
	Message   string    `json:"message"`
	RequestId string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationErrorResponse struct {
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors"`
	RequestId string            `json:"requestId,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type SeatsTakenResponse struct {
	Message    string                  `json:"message"`
	TakenSeats []domain.SeatCoordinate `json:"takenSeats"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

func toBookingResponse(booking *domain.Booking) BookingResponse {
	return BookingResponse{
		Id:          booking.ID,
		SessionId:   booking.SessionID,
		Status:      string(booking.Status),
		Seats:       booking.SeatCoordinates(),
		TotalAmount: booking.TotalAmount.StringFixed(2),
		ExpiresAt:   booking.ExpiresAt,
		CreatedAt:   booking.CreatedAt,
	}
}

func toPaymentResponse(payment *domain.Payment) PaymentResponse {
	return PaymentResponse{
		Id:            payment.ID,
		BookingId:     payment.BookingID,
		Amount:        payment.Amount.StringFixed(2),
		Status:        string(payment.Status),
		PaidAt:        payment.PaidAt,
		BookingStatus: string(domain.BookingStatusConfirmed),
	}
}

func toMetadataResponse(metadata *domain.Metadata) MetadataResponse {
	return MetadataResponse{
		CurrentPage:  metadata.CurrentPage,
		PageSize:     metadata.PageSize,
		FirstPage:    metadata.FirstPage,
		LastPage:     metadata.LastPage,
		TotalRecords: metadata.TotalRecords,
	}
}
