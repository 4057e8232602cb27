package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/seatwise/cinema-reservation/internal/notifier"
)

const streamKeepAliveInterval = 30 * time.Second

func (app *application) GetSessionSeats(w http.ResponseWriter, r *http.Request) {
	sessionId, err := app.readUUIDParam(r, "sessionId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	takenSeats, err := app.reservations.TakenSeats(r.Context(), sessionId)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := SessionSeatsResponse{
		SessionId:  sessionId,
		TakenSeats: takenSeats,
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// StreamSessionSeats pushes seat-availability snapshots over SSE. The first
// event is the current snapshot; subsequent events follow booking
// transitions. Clients that fall behind miss intermediate snapshots and catch
// up with the next one.
func (app *application) StreamSessionSeats(w http.ResponseWriter, r *http.Request) {
	sessionId, err := app.readUUIDParam(r, "sessionId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	rc := http.NewResponseController(w)

	// Streams outlive the server's write timeout.
	err = rc.SetWriteDeadline(time.Time{})
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		app.serverErrorResponse(w, r, err)
		return
	}

	sub := app.notifier.Subscribe(sessionId)
	defer app.notifier.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	takenSeats, err := app.reservations.TakenSeats(r.Context(), sessionId)
	if err != nil {
		app.logError(r, err)
		return
	}

	initial := notifier.SeatUpdate{SessionID: sessionId, TakenSeats: takenSeats}
	err = writeSeatEvent(w, rc, initial)
	if err != nil {
		return
	}

	keepAlive := time.NewTicker(streamKeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case update, ok := <-sub.C:
			if !ok {
				return
			}
			err = writeSeatEvent(w, rc, update)
			if err != nil {
				return
			}
		case <-keepAlive.C:
			_, err = fmt.Fprint(w, ": keep-alive\n\n")
			if err != nil {
				return
			}
			err = rc.Flush()
			if err != nil {
				return
			}
		}
	}
}

func writeSeatEvent(w http.ResponseWriter, rc *http.ResponseController, update notifier.SeatUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: seats\ndata: %s\n\n", data)
	if err != nil {
		return err
	}

	return rc.Flush()
}
