// Package scheduler fires booking expiries. Each pending booking gets an
// in-memory timer armed at its deadline; a periodic sweep over persisted
// deadlines backs the timers up so expiries survive a process restart. Both
// paths converge on the ledger's idempotent MarkExpired, whose per-booking
// lock is the final arbiter of every race with cancel and payment.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/seatwise/cinema-reservation/internal/domain"
)

const fireTimeout = 10 * time.Second

type BookingExpirer interface {
	MarkExpired(ctx context.Context, bookingID uuid.UUID) (bool, error)
	TakenSeats(ctx context.Context, sessionID uuid.UUID) ([]domain.SeatCoordinate, error)
}

type OverdueSource interface {
	OverduePending(ctx context.Context, now time.Time) ([]domain.PendingExpiry, error)
}

type SnapshotPublisher interface {
	Publish(sessionID uuid.UUID, takenSeats []domain.SeatCoordinate)
}

// Handle identifies one armed expiry. Disarming with a stale handle (the
// timer already fired, or the booking was re-armed) is a no-op.
type Handle struct {
	bookingID uuid.UUID
	seq       uint64
}

func (h Handle) String() string {
	return h.bookingID.String()
}

type armedExpiry struct {
	seq       uint64
	sessionID uuid.UUID
	timer     *time.Timer
}

type Scheduler struct {
	ledger   BookingExpirer
	source   OverdueSource
	notifier SnapshotPublisher
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	seq    uint64
	timers map[uuid.UUID]*armedExpiry
}

func New(
	ledger BookingExpirer,
	source OverdueSource,
	notifier SnapshotPublisher,
	interval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		ledger:   ledger,
		source:   source,
		notifier: notifier,
		interval: interval,
		logger:   logger,
		timers:   make(map[uuid.UUID]*armedExpiry),
	}
}

// Arm schedules an expiry for the booking at its deadline. Re-arming an
// already armed booking replaces the previous timer.
func (s *Scheduler) Arm(bookingID, sessionID uuid.UUID, deadline time.Time) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[bookingID]; ok {
		existing.timer.Stop()
	}

	s.seq++
	seq := s.seq

	armed := &armedExpiry{
		seq:       seq,
		sessionID: sessionID,
	}
	armed.timer = time.AfterFunc(time.Until(deadline), func() {
		s.fire(bookingID, sessionID, seq)
	})
	s.timers[bookingID] = armed

	return Handle{bookingID: bookingID, seq: seq}
}

// Disarm cancels a scheduled expiry. Best effort: if the timer has already
// begun firing, the fire path re-checks booking state through MarkExpired and
// becomes a no-op for anything no longer pending.
func (s *Scheduler) Disarm(handle Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	armed, ok := s.timers[handle.bookingID]
	if !ok || armed.seq != handle.seq {
		return
	}

	armed.timer.Stop()
	delete(s.timers, handle.bookingID)
}

// Run executes the durable sweep until the context is cancelled. The sweep
// expires pending bookings whose deadlines passed while no timer was armed
// for them, typically after a restart.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("expiry sweep started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweep stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	overdue, err := s.source.OverduePending(ctx, time.Now())
	if err != nil {
		s.logger.Error("failed to list overdue bookings", "error", err)
		return
	}

	for _, entry := range overdue {
		s.dropTimer(entry.BookingID)
		s.expire(ctx, entry.BookingID, entry.SessionID)
	}

	if len(overdue) > 0 {
		s.logger.Info("swept overdue bookings", "count", len(overdue))
	}
}

// fire runs on the timer goroutine once a deadline passes.
func (s *Scheduler) fire(bookingID, sessionID uuid.UUID, seq uint64) {
	s.mu.Lock()
	if armed, ok := s.timers[bookingID]; ok && armed.seq == seq {
		delete(s.timers, bookingID)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	s.expire(ctx, bookingID, sessionID)
}

func (s *Scheduler) expire(ctx context.Context, bookingID, sessionID uuid.UUID) {
	expired, err := s.ledger.MarkExpired(ctx, bookingID)
	if err != nil {
		s.logger.Error("failed to expire booking", "booking_id", bookingID, "error", err)
		return
	}

	if !expired {
		return
	}

	s.logger.Info("booking expired", "booking_id", bookingID, "session_id", sessionID)

	snapshot, err := s.ledger.TakenSeats(ctx, sessionID)
	if err != nil {
		s.logger.Error("failed to load taken seats after expiry",
			"session_id", sessionID,
			"error", err,
		)
		return
	}

	s.notifier.Publish(sessionID, snapshot)
}

func (s *Scheduler) dropTimer(bookingID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if armed, ok := s.timers[bookingID]; ok {
		armed.timer.Stop()
		delete(s.timers, bookingID)
	}
}

// Armed reports whether the booking currently has a scheduled expiry.
func (s *Scheduler) Armed(bookingID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.timers[bookingID]
	return ok
}
