package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (app *application) routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)

	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(app.recoverPanic)
	r.Use(app.sessionManager.LoadAndSave)

	r.Get("/health", app.GetHealth)

	r.Post("/users", app.RegisterUser)
	r.Post("/auth/login", app.Login)
	r.Post("/auth/logout", app.Logout)

	r.Route("/sessions/{sessionId}/seats", func(r chi.Router) {
		r.Get("/", app.GetSessionSeats)
		r.Get("/stream", app.StreamSessionSeats)
	})

	r.With(app.requireAuthentication).Route("/bookings", func(r chi.Router) {
		r.Post("/", app.CreateBooking)
		r.Get("/", app.GetUserBookings)
		r.Post("/{bookingId}/cancel", app.CancelBooking)
		r.Post("/{bookingId}/payment", app.PayForBooking)
	})

	return r
}
