package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/seatwise/cinema-reservation/internal/domain"
)

type PostgresBookingRepository struct {
	db *pgxpool.Pool
}

func NewPostgresBookingRepository(db *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{
		db: db,
	}
}

// Create inserts the booking and its seat rows in one transaction. The partial
// unique index on (session_id, seat_id) for active rows turns a lost seat race
// into ErrSeatAlreadyReserved.
func (p *PostgresBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO bookings (id, user_id, session_id, status, total_amount, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at, version
		`

		err := tx.QueryRow(
			ctx,
			query,
			booking.ID,
			booking.UserID,
			booking.SessionID,
			booking.Status,
			booking.TotalAmount,
			booking.ExpiresAt).Scan(&booking.CreatedAt, &booking.UpdatedAt, &booking.Version)

		if err != nil {
			return err
		}

		rows := make([][]any, 0, len(booking.Seats))
		for _, seat := range booking.Seats {
			rows = append(rows, []any{
				booking.ID,
				booking.SessionID,
				seat.ID,
			})
		}

		_, err = tx.CopyFrom(
			ctx,
			pgx.Identifier{"booking_seats"},
			[]string{"booking_id", "session_id", "seat_id"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrSeatAlreadyReserved
		}

		return err
	}

	return nil
}

func (p *PostgresBookingRepository) GetById(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	query := `
		SELECT id, user_id, session_id, status, total_amount, expires_at,
			schedule_handle, created_at, updated_at, version
		FROM bookings
		WHERE id = $1
	`

	return p.getOne(ctx, query, id)
}

func (p *PostgresBookingRepository) GetByIdAndUserId(
	ctx context.Context,
	id uuid.UUID,
	userID int64) (*domain.Booking, error) {

	query := `
		SELECT id, user_id, session_id, status, total_amount, expires_at,
			schedule_handle, created_at, updated_at, version
		FROM bookings
		WHERE id = $1 AND user_id = $2
	`

	return p.getOne(ctx, query, id, userID)
}

func (p *PostgresBookingRepository) getOne(
	ctx context.Context,
	query string,
	args ...any) (*domain.Booking, error) {

	var booking domain.Booking

	err := p.db.QueryRow(ctx, query, args...).Scan(
		&booking.ID,
		&booking.UserID,
		&booking.SessionID,
		&booking.Status,
		&booking.TotalAmount,
		&booking.ExpiresAt,
		&booking.ScheduleHandle,
		&booking.CreatedAt,
		&booking.UpdatedAt,
		&booking.Version,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	seats, err := p.retrieveBookingSeats(ctx, []uuid.UUID{booking.ID})
	if err != nil {
		return nil, err
	}
	booking.Seats = seats[booking.ID]

	return &booking, nil
}

func (p *PostgresBookingRepository) GetByUserId(
	ctx context.Context,
	userID int64,
	pagination domain.Pagination) ([]*domain.Booking, *domain.Metadata, error) {

	query := `
		SELECT
			COUNT(*) OVER(),
			id, user_id, session_id, status, total_amount, expires_at,
			schedule_handle, created_at, updated_at, version
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := p.db.Query(ctx, query, userID, pagination.Limit(), pagination.Offset())
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	bookings := make([]*domain.Booking, 0)
	bookingIDs := make([]uuid.UUID, 0)
	totalRecords := 0

	for rows.Next() {
		var booking domain.Booking

		err := rows.Scan(
			&totalRecords,
			&booking.ID,
			&booking.UserID,
			&booking.SessionID,
			&booking.Status,
			&booking.TotalAmount,
			&booking.ExpiresAt,
			&booking.ScheduleHandle,
			&booking.CreatedAt,
			&booking.UpdatedAt,
			&booking.Version,
		)
		if err != nil {
			return nil, nil, err
		}

		bookings = append(bookings, &booking)
		bookingIDs = append(bookingIDs, booking.ID)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, err
	}

	seatsByBooking, err := p.retrieveBookingSeats(ctx, bookingIDs)
	if err != nil {
		return nil, nil, err
	}
	for _, booking := range bookings {
		booking.Seats = seatsByBooking[booking.ID]
	}

	metadata := domain.NewMetadata(totalRecords, pagination.Page, pagination.PageSize)

	return bookings, metadata, nil
}

func (p *PostgresBookingRepository) retrieveBookingSeats(
	ctx context.Context,
	bookingIDs []uuid.UUID) (map[uuid.UUID][]domain.Seat, error) {

	if len(bookingIDs) == 0 {
		return map[uuid.UUID][]domain.Seat{}, nil
	}

	query := `
		SELECT bs.booking_id, s.id, s.hall_id, s.seat_row, s.seat_number
		FROM booking_seats bs
		JOIN seats s ON bs.seat_id = s.id
		WHERE bs.booking_id = ANY($1)
		ORDER BY s.seat_row, s.seat_number
	`

	rows, err := p.db.Query(ctx, query, bookingIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seatsByBooking := make(map[uuid.UUID][]domain.Seat)

	for rows.Next() {
		var bookingID uuid.UUID
		var seat domain.Seat

		err := rows.Scan(&bookingID, &seat.ID, &seat.HallID, &seat.Row, &seat.Number)
		if err != nil {
			return nil, err
		}

		seatsByBooking[bookingID] = append(seatsByBooking[bookingID], seat)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return seatsByBooking, nil
}

// UpdateStatus persists a state transition guarded by the version column and
// deactivates the booking's seat rows when the new state no longer holds
// seats. Deactivating instead of deleting keeps the seat history and frees the
// (session_id, seat_id) slot in the partial unique index.
func (p *PostgresBookingRepository) UpdateStatus(ctx context.Context, booking *domain.Booking) error {
	return runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			UPDATE bookings
			SET status = $1, updated_at = NOW(), version = version + 1
			WHERE id = $2 AND version = $3
			RETURNING updated_at, version
		`

		err := tx.QueryRow(ctx, query, booking.Status, booking.ID, booking.Version).
			Scan(&booking.UpdatedAt, &booking.Version)

		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrEditConflict
			}

			return err
		}

		if !booking.HoldsSeats() {
			_, err = tx.Exec(ctx, `UPDATE booking_seats SET active = FALSE WHERE booking_id = $1`, booking.ID)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

func (p *PostgresBookingRepository) ConfirmWithPayment(
	ctx context.Context,
	booking *domain.Booking,
	payment *domain.Payment) error {

	return runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			UPDATE bookings
			SET status = $1, updated_at = NOW(), version = version + 1
			WHERE id = $2 AND version = $3
			RETURNING updated_at, version
		`

		err := tx.QueryRow(ctx, query, booking.Status, booking.ID, booking.Version).
			Scan(&booking.UpdatedAt, &booking.Version)

		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrEditConflict
			}

			return err
		}

		query = `
			INSERT INTO payments (booking_id, amount, status, paid_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`

		err = tx.QueryRow(
			ctx,
			query,
			payment.BookingID,
			payment.Amount,
			payment.Status,
			payment.PaidAt).Scan(&payment.ID, &payment.CreatedAt)

		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return domain.ErrAlreadyPaid
			}

			return err
		}

		return nil
	})
}

func (p *PostgresBookingRepository) SetScheduleHandle(ctx context.Context, id uuid.UUID, handle string) error {
	query := `UPDATE bookings SET schedule_handle = $1 WHERE id = $2`

	_, err := p.db.Exec(ctx, query, handle, id)
	return err
}

func (p *PostgresBookingRepository) ActiveSeatIDs(ctx context.Context, sessionID uuid.UUID) ([]int64, error) {
	query := `SELECT seat_id FROM booking_seats WHERE session_id = $1 AND active`

	rows, err := p.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seatIDs := make([]int64, 0)

	for rows.Next() {
		var seatID int64

		err := rows.Scan(&seatID)
		if err != nil {
			return nil, err
		}

		seatIDs = append(seatIDs, seatID)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return seatIDs, nil
}

func (p *PostgresBookingRepository) TakenSeats(
	ctx context.Context,
	sessionID uuid.UUID) ([]domain.SeatCoordinate, error) {

	query := `
		SELECT s.seat_row, s.seat_number
		FROM booking_seats bs
		JOIN seats s ON bs.seat_id = s.id
		WHERE bs.session_id = $1 AND bs.active
		ORDER BY s.seat_row, s.seat_number
	`

	rows, err := p.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	coordinates := make([]domain.SeatCoordinate, 0)

	for rows.Next() {
		var coordinate domain.SeatCoordinate

		err := rows.Scan(&coordinate.Row, &coordinate.Number)
		if err != nil {
			return nil, err
		}

		coordinates = append(coordinates, coordinate)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return coordinates, nil
}

func (p *PostgresBookingRepository) OverduePending(
	ctx context.Context,
	now time.Time) ([]domain.PendingExpiry, error) {

	query := `
		SELECT id, session_id
		FROM bookings
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at
	`

	rows, err := p.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overdue := make([]domain.PendingExpiry, 0)

	for rows.Next() {
		var entry domain.PendingExpiry

		err := rows.Scan(&entry.BookingID, &entry.SessionID)
		if err != nil {
			return nil, err
		}

		overdue = append(overdue, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return overdue, nil
}

func runInTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	var txOptions pgx.TxOptions

	tx, err := db.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}

	err = fn(tx)
	if err == nil {
		return tx.Commit(ctx)
	}

	rollbackErr := tx.Rollback(ctx)
	if rollbackErr != nil {
		return errors.Join(err, rollbackErr)
	}

	return err
}
