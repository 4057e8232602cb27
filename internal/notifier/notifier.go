// Package notifier fans seat-availability snapshots out to live subscribers
// of a session. Delivery is best effort: a slow or gone subscriber never
// blocks the publisher or other subscribers.
package notifier

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/seatwise/cinema-reservation/internal/domain"
)

const subscriberBuffer = 8

// SeatUpdate carries the authoritative current taken set for a session, not a
// diff. Subscribers added after a publish do not see past updates.
type SeatUpdate struct {
	SessionID  uuid.UUID               `json:"sessionId"`
	TakenSeats []domain.SeatCoordinate `json:"takenSeats"`
}

type Subscription struct {
	C         <-chan SeatUpdate
	sessionID uuid.UUID
	ch        chan SeatUpdate
}

type Notifier struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*Subscription]struct{}
	logger *slog.Logger
}

func New(logger *slog.Logger) *Notifier {
	return &Notifier{
		subs:   make(map[uuid.UUID]map[*Subscription]struct{}),
		logger: logger,
	}
}

func (n *Notifier) Subscribe(sessionID uuid.UUID) *Subscription {
	ch := make(chan SeatUpdate, subscriberBuffer)
	sub := &Subscription{
		C:         ch,
		sessionID: sessionID,
		ch:        ch,
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs[sessionID] == nil {
		n.subs[sessionID] = make(map[*Subscription]struct{})
	}
	n.subs[sessionID][sub] = struct{}{}

	return sub
}

// Unsubscribe removes the subscription and closes its channel. Idempotent.
func (n *Notifier) Unsubscribe(sub *Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()

	sessionSubs, ok := n.subs[sub.sessionID]
	if !ok {
		return
	}
	if _, ok := sessionSubs[sub]; !ok {
		return
	}

	delete(sessionSubs, sub)
	if len(sessionSubs) == 0 {
		delete(n.subs, sub.sessionID)
	}

	close(sub.ch)
}

// Publish sends the snapshot to every current subscriber of the session.
// Sends are non-blocking; a subscriber with a full buffer misses this update
// and is expected to reconcile via the taken-seats query. The sends happen
// under the read lock so Unsubscribe cannot close a channel mid-publish.
func (n *Notifier) Publish(sessionID uuid.UUID, takenSeats []domain.SeatCoordinate) {
	update := SeatUpdate{
		SessionID:  sessionID,
		TakenSeats: takenSeats,
	}

	n.mu.RLock()
	dropped := 0
	for sub := range n.subs[sessionID] {
		select {
		case sub.ch <- update:
		default:
			dropped++
		}
	}
	n.mu.RUnlock()

	if dropped > 0 {
		n.logger.Warn("dropped seat updates for slow subscribers",
			"session_id", sessionID,
			"dropped", dropped,
		)
	}
}

// Subscribers reports the current subscriber count for a session.
func (n *Notifier) Subscribers(sessionID uuid.UUID) int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return len(n.subs[sessionID])
}
