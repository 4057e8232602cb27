package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/v2"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/seatwise/cinema-reservation/internal/domain"
	"github.com/seatwise/cinema-reservation/internal/events"
	"github.com/seatwise/cinema-reservation/internal/ledger"
	"github.com/seatwise/cinema-reservation/internal/mailer"
	"github.com/seatwise/cinema-reservation/internal/notifier"
	"github.com/seatwise/cinema-reservation/internal/repository"
	"github.com/seatwise/cinema-reservation/internal/reservation"
	"github.com/seatwise/cinema-reservation/internal/scheduler"
	appvalidator "github.com/seatwise/cinema-reservation/internal/validator"
	"github.com/seatwise/cinema-reservation/internal/vcs"
)

var (
	version = vcs.Version()
)

// ReservationService is the surface the HTTP handlers need from the booking
// orchestrator.
type ReservationService interface {
	CreateBooking(ctx context.Context, userID int64, sessionID uuid.UUID, coordinates []domain.SeatCoordinate) (*domain.Booking, error)
	CancelBooking(ctx context.Context, userID int64, bookingID uuid.UUID) error
	Pay(ctx context.Context, userID int64, bookingID uuid.UUID) (*domain.Payment, error)
	TakenSeats(ctx context.Context, sessionID uuid.UUID) ([]domain.SeatCoordinate, error)
	ListBookings(ctx context.Context, userID int64, pagination domain.Pagination) ([]*domain.Booking, *domain.Metadata, error)
}

type application struct {
	config         config
	logger         *slog.Logger
	db             *pgxpool.Pool
	redis          redis.UniversalClient
	validator      *validator.Validate
	sessionManager *scs.SessionManager

	userRepo     domain.UserRepository
	reservations ReservationService
	notifier     *notifier.Notifier
	sweeper      *scheduler.Scheduler

	// drain blocks until in-flight background work finishes. Set by Run,
	// nil in handler tests.
	drain func()
}

type config struct {
	port int
	env  string
	db   struct {
		dsn          string
		maxOpenConns int
		maxIdleTime  time.Duration
	}
	redis struct {
		url          string
		maxOpenConns int
		maxIdleConns int
		maxIdleTime  time.Duration
	}
	smtp struct {
		host     string
		port     int
		username string
		password string
		sender   string
	}
	kafka struct {
		brokers string
		topic   string
	}
	sweepInterval time.Duration
}

func Run() error {
	var cfg config

	flag.IntVar(&cfg.port, "port", 3000, "server port")
	flag.StringVar(&cfg.env, "env", "dev", "Environment (dev|staging|prod)")

	flag.StringVar(&cfg.db.dsn, "db-dsn", "", "PostgreSQL DSN")
	flag.IntVar(&cfg.db.maxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.DurationVar(&cfg.db.maxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max idle time for connections")

	flag.StringVar(&cfg.redis.url, "redis-url", "", "Redis URL")
	flag.IntVar(&cfg.redis.maxOpenConns, "redis-max-open-conns", 25, "Redis max open connections")
	flag.IntVar(&cfg.redis.maxIdleConns, "redis-max-idle-conns", 10, "Redis max idle connections")
	flag.DurationVar(&cfg.redis.maxIdleTime, "redis-max-idle-time", 2*time.Minute, "Redis max idle time for connections")

	flag.StringVar(&cfg.smtp.host, "smtp-host", "sandbox.smtp.mailtrap.io", "SMTP host")
	flag.IntVar(&cfg.smtp.port, "smtp-port", 2525, "SMTP port")
	flag.StringVar(&cfg.smtp.username, "smtp-username", "", "SMTP username")
	flag.StringVar(&cfg.smtp.password, "smtp-password", "", "SMTP password")
	flag.StringVar(&cfg.smtp.sender, "smtp-sender", "SeatWise <no-reply@seatwise.example.com>", "SMTP sender")

	flag.StringVar(&cfg.kafka.brokers, "kafka-brokers", "", "Kafka broker list, comma separated (empty disables event publishing)")
	flag.StringVar(&cfg.kafka.topic, "kafka-topic", "booking-events", "Kafka topic for booking events")

	flag.DurationVar(&cfg.sweepInterval, "expiry-sweep-interval", 30*time.Second, "Interval of the durable booking expiry sweep")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	validator := appvalidator.NewValidator()

	db, err := newDatabasePool(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	userRepo := repository.NewPostgresUserRepository(db)
	catalogRepo := repository.NewPostgresCatalogRepository(db)
	bookingRepo := repository.NewPostgresBookingRepository(db)

	redisClient, err := newRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	var eventPublisher domain.BookingEventPublisher
	if cfg.kafka.brokers != "" {
		kafkaPublisher := events.NewKafkaPublisher(strings.Split(cfg.kafka.brokers, ","), cfg.kafka.topic)
		defer kafkaPublisher.Close()

		eventPublisher = kafkaPublisher
	}

	bookingLedger := ledger.New(bookingRepo, catalogRepo, eventPublisher, logger)
	seatNotifier := notifier.New(logger)
	sweeper := scheduler.New(bookingLedger, bookingRepo, seatNotifier, cfg.sweepInterval, logger)

	smtpMailer := mailer.NewSMTPMailer(cfg.smtp.host, cfg.smtp.port, cfg.smtp.username, cfg.smtp.password, cfg.smtp.sender)

	service := reservation.NewService(bookingLedger, bookingRepo, userRepo, sweeper, seatNotifier, smtpMailer, logger)

	app := &application{
		config:         cfg,
		logger:         logger,
		db:             db,
		redis:          redisClient,
		validator:      validator,
		sessionManager: newSessionManager(redisClient),
		userRepo:       userRepo,
		reservations:   service,
		notifier:       seatNotifier,
		sweeper:        sweeper,
		drain:          service.Wait,
	}

	return app.run()
}

func newSessionManager(client *redis.Client) *scs.SessionManager {
	sessionManager := scs.New()

	sessionManager.Store = goredisstore.New(client)
	sessionManager.IdleTimeout = 20 * time.Minute
	sessionManager.Cookie.Name = "session_id"

	return sessionManager
}

func newRedisClient(cfg config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.redis.url,
		MaxIdleConns:    cfg.redis.maxIdleConns,
		MaxActiveConns:  cfg.redis.maxOpenConns,
		ConnMaxIdleTime: cfg.redis.maxIdleTime,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func newDatabasePool(cfg config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.db.dsn)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.db.maxIdleTime
	config.MaxConns = int32(cfg.db.maxOpenConns)

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *application) run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()

	go app.sweeper.Run(sweepCtx)

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		stopSweep()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(ctx)
		if err != nil {
			shutdownError <- err
		}

		shutdownError <- nil
	}()

	app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	if app.drain != nil {
		app.drain()
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}
