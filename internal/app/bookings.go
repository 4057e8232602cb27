package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/seatwise/cinema-reservation/internal/domain"
)

func (app *application) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	var input CreateBookingRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	coordinates := make([]domain.SeatCoordinate, len(input.Seats))
	for i, seat := range input.Seats {
		coordinates[i] = domain.SeatCoordinate{Row: seat.Row, Number: seat.Number}
	}

	booking, err := app.reservations.CreateBooking(r.Context(), userId, input.SessionID, coordinates)
	if err != nil {
		var seatsTaken *domain.SeatsTakenError
		var seatNotFound *domain.SeatNotFoundError

		switch {
		case errors.As(err, &seatsTaken):
			app.seatsTakenResponse(w, r, seatsTaken)
		case errors.As(err, &seatNotFound):
			app.errorResponse(w, r, http.StatusNotFound, seatNotFound.Error())
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/bookings/%s", booking.ID))

	err = app.writeJSON(w, http.StatusCreated, toBookingResponse(booking), headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) GetUserBookings(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	page, err := app.readIntQuery(r, "page", 1)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	pageSize, err := app.readIntQuery(r, "pageSize", 10)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if page < 1 || pageSize < 1 || pageSize > 100 {
		app.badRequestResponse(w, r, fmt.Errorf("page must be >= 1 and pageSize between 1 and 100"))
		return
	}

	pagination := domain.Pagination{Page: page, PageSize: pageSize}

	bookings, metadata, err := app.reservations.ListBookings(r.Context(), userId, pagination)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := BookingListResponse{
		Bookings: make([]BookingResponse, len(bookings)),
		Metadata: toMetadataResponse(metadata),
	}
	for i, booking := range bookings {
		resp.Bookings[i] = toBookingResponse(booking)
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) CancelBooking(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	bookingId, err := app.readUUIDParam(r, "bookingId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.reservations.CancelBooking(r.Context(), userId, bookingId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, domain.ErrInvalidTransition):
			app.errorResponse(w, r, http.StatusConflict, "Booking is already in a terminal state")
		case errors.Is(err, domain.ErrEditConflict):
			app.editConflictResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (app *application) PayForBooking(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	bookingId, err := app.readUUIDParam(r, "bookingId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	payment, err := app.reservations.Pay(r.Context(), userId, bookingId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, domain.ErrBookingExpired):
			app.errorResponse(w, r, http.StatusGone, "Booking hold time has expired")
		case errors.Is(err, domain.ErrAlreadyPaid):
			app.errorResponse(w, r, http.StatusConflict, "Booking is already paid")
		case errors.Is(err, domain.ErrAlreadyCancelledOrExpired):
			app.errorResponse(w, r, http.StatusConflict, "Booking is already cancelled or expired")
		case errors.Is(err, domain.ErrEditConflict):
			app.editConflictResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	err = app.writeJSON(w, http.StatusCreated, toPaymentResponse(payment), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
