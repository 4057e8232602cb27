package integration_test

import (
	"context"
	"io"
	"log"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"

	"github.com/seatwise/cinema-reservation/internal/domain"
	"github.com/seatwise/cinema-reservation/internal/ledger"
	"github.com/seatwise/cinema-reservation/internal/mailer"
	"github.com/seatwise/cinema-reservation/internal/notifier"
	"github.com/seatwise/cinema-reservation/internal/repository"
	"github.com/seatwise/cinema-reservation/internal/reservation"
	"github.com/seatwise/cinema-reservation/internal/scheduler"
)

const (
	dbName      = "cinema_reservation"
	dbUser      = "test_user"
	dbPassword  = "test_password"
	dbImageName = "postgres:17-alpine"
)

var testSessionID = uuid.MustParse("a3f1b0c2-5d4e-4f6a-8b7c-9d0e1f2a3b4c")

type BaseSuite struct {
	suite.Suite
	dbContainer *PostgresContainer
	db          *pgxpool.Pool

	userRepo    *repository.PostgresUserRepository
	catalogRepo *repository.PostgresCatalogRepository
	bookingRepo *repository.PostgresBookingRepository

	ledger   *ledger.Ledger
	notifier *notifier.Notifier
	sweeper  *scheduler.Scheduler
	mailer   *mailer.MockMailer
	service  *reservation.Service
}

func (s *BaseSuite) SetupSuite() {
	ctx := context.Background()

	postgresContainer, err := getDbContainer(ctx)
	if err != nil {
		log.Printf("failed to start container: %s", err)
		return
	}

	s.dbContainer = postgresContainer

	db, err := pgxpool.New(ctx, postgresContainer.ConnectionString)
	if err != nil {
		log.Printf("failed to create pool: %s", err)
		return
	}

	s.db = db

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.userRepo = repository.NewPostgresUserRepository(db)
	s.catalogRepo = repository.NewPostgresCatalogRepository(db)
	s.bookingRepo = repository.NewPostgresBookingRepository(db)

	s.ledger = ledger.New(s.bookingRepo, s.catalogRepo, nil, logger)
	s.notifier = notifier.New(logger)
	s.sweeper = scheduler.New(s.ledger, s.bookingRepo, s.notifier, time.Second, logger)
	s.mailer = mailer.NewMockMailer()
	s.service = reservation.NewService(s.ledger, s.bookingRepo, s.userRepo, s.sweeper, s.notifier, s.mailer, logger)

	s.seedCatalog(ctx)
}

func (s *BaseSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.dbContainer != nil {
		if err := testcontainers.TerminateContainer(s.dbContainer.Container); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	}
}

// seedCatalog loads a user and one screening of a 2x3 hall.
func (s *BaseSuite) seedCatalog(ctx context.Context) {
	statements := []string{
		`INSERT INTO users (name, email, password_hash)
			VALUES ('John Doe', 'test@example.com', 'x')`,
		`INSERT INTO movies (id, title, runtime_minutes) VALUES (1, 'Test Movie', 120)`,
		`INSERT INTO halls (id, name) VALUES (1, 'Hall 1')`,
		`INSERT INTO seats (hall_id, seat_row, seat_number)
			SELECT 1, r, n FROM generate_series(1, 2) r, generate_series(1, 3) n`,
		`INSERT INTO sessions (id, movie_id, hall_id, starts_at, price)
			VALUES ('` + testSessionID.String() + `', 1, 1, NOW() + INTERVAL '1 day', 10.00)`,
	}

	for _, stmt := range statements {
		_, err := s.db.Exec(ctx, stmt)
		s.Require().NoError(err)
	}
}

// resetBookings clears all booking state between tests; the catalog stays.
func (s *BaseSuite) resetBookings(ctx context.Context) {
	_, err := s.db.Exec(ctx, `TRUNCATE payments, booking_seats, bookings`)
	s.Require().NoError(err)
}

func (s *BaseSuite) seatIDByCoordinate(ctx context.Context, coordinate domain.SeatCoordinate) int64 {
	var id int64
	err := s.db.QueryRow(ctx,
		`SELECT id FROM seats WHERE hall_id = 1 AND seat_row = $1 AND seat_number = $2`,
		coordinate.Row, coordinate.Number).Scan(&id)
	s.Require().NoError(err)

	return id
}

func (s *BaseSuite) forceExpiry(ctx context.Context, bookingID uuid.UUID) {
	_, err := s.db.Exec(ctx,
		`UPDATE bookings SET expires_at = NOW() - INTERVAL '1 minute' WHERE id = $1`, bookingID)
	s.Require().NoError(err)
}

// nextUpdate blocks until the subscription delivers a snapshot.
func (s *BaseSuite) nextUpdate(c <-chan notifier.SeatUpdate) notifier.SeatUpdate {
	select {
	case update := <-c:
		return update
	case <-time.After(5 * time.Second):
		s.Require().FailNow("timed out waiting for a seat update")
		return notifier.SeatUpdate{}
	}
}
