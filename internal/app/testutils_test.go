package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/seatwise/cinema-reservation/internal/domain"
	"github.com/seatwise/cinema-reservation/internal/mocks"
	"github.com/seatwise/cinema-reservation/internal/notifier"
	"github.com/seatwise/cinema-reservation/internal/validator"
)

type MockReservationService struct {
	mock.Mock
}

func (m *MockReservationService) CreateBooking(
	ctx context.Context,
	userID int64,
	sessionID uuid.UUID,
	coordinates []domain.SeatCoordinate) (*domain.Booking, error) {

	args := m.Called(ctx, userID, sessionID, coordinates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockReservationService) CancelBooking(ctx context.Context, userID int64, bookingID uuid.UUID) error {
	args := m.Called(ctx, userID, bookingID)
	return args.Error(0)
}

func (m *MockReservationService) Pay(ctx context.Context, userID int64, bookingID uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, userID, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockReservationService) TakenSeats(ctx context.Context, sessionID uuid.UUID) ([]domain.SeatCoordinate, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SeatCoordinate), args.Error(1)
}

func (m *MockReservationService) ListBookings(
	ctx context.Context,
	userID int64,
	pagination domain.Pagination) ([]*domain.Booking, *domain.Metadata, error) {

	args := m.Called(ctx, userID, pagination)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]*domain.Booking), args.Get(1).(*domain.Metadata), args.Error(2)
}

func newTestApplication(opts ...func(*application)) *application {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	app := &application{
		validator: validator.NewValidator(),
		logger:    logger,
		userRepo:  &mocks.MockUserRepo{},
		notifier:  notifier.New(logger),
	}

	for _, opt := range opts {
		opt(app)
	}

	return app
}

// withUser injects the authenticated user into the request context the way
// requireAuthentication does.
func withUser(r *http.Request, userId int64) *http.Request {
	ctx := context.WithValue(r.Context(), SessionKeyUserId, userId)
	return r.WithContext(ctx)
}

// withURLParam registers a chi URL parameter for direct handler invocation.
func withURLParam(r *http.Request, name, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func executeRequest(t *testing.T, method, url string, body any) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(jsonData)
	}

	r := httptest.NewRequest(method, url, reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	return w, r
}

func decodeResponse[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var resp T
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	return resp
}
