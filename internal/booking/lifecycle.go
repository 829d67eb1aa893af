// Package booking cancels, lists and creates seat bookings.
//
// The server owns booking state; the client keeps a projection and asks
// the server for every transition. Cancelling is idempotent on the
// server, and duplicate calls on one Lifecycle share a single request.
package booking

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"ticketone/sync/internal/apperr"
	"ticketone/sync/internal/log"
	"ticketone/sync/internal/model"
	"ticketone/sync/internal/monitoring"
	"ticketone/sync/internal/querycache"
)

// cancelTimeout bounds a shared cancellation once it no longer follows
// any caller's context.
const cancelTimeout = 15 * time.Second

type API interface {
	CancelBooking(ctx context.Context, id int64) (model.CancelResult, error)
	TicketURL(ctx context.Context, bookingID int64) (string, error)
	Bookings(ctx context.Context) (model.BookingList, error)
	BookSeats(ctx context.Context, eventID int64, seats int64) (model.BookSeatsResult, error)
}

type Invalidator interface {
	Invalidate(prefix querycache.Key) int
}

// Key is the cache key prefix of a user's bookings collection.
func Key(userID int64) querycache.Key {
	return querycache.NewKey("bookings", userID)
}

// EventKey is the cache key of one event's detail view.
func EventKey(eventID int64) querycache.Key {
	return querycache.NewKey("event", eventID)
}

// Lifecycle drives one booking owned by userID.
type Lifecycle struct {
	api    API
	cache  Invalidator
	userID int64
	logger zerolog.Logger

	mu      sync.Mutex
	booking model.Booking
	group   singleflight.Group
}

func NewLifecycle(b model.Booking, userID int64, api API, cache Invalidator, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		api:     api,
		cache:   cache,
		userID:  userID,
		booking: b,
		logger:  log.Component(logger, "booking").With().Int64("booking_id", b.ID).Logger(),
	}
}

func (l *Lifecycle) Booking() model.Booking {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.booking
}

func (l *Lifecycle) Status() model.BookingStatus {
	b := l.Booking()
	if b.IsActive() {
		return model.BookingActive
	}
	return model.BookingCancelled
}

func (l *Lifecycle) CanViewTicket() bool {
	return l.Booking().IsActive()
}

// Cancel asks the server to cancel the booking. A booking that was
// already cancelled is a success with AlreadyCancelled set. Concurrent
// calls share one request and one result. The request runs detached from
// ctx, so a caller that gives up does not fail the others joined to it.
func (l *Lifecycle) Cancel(ctx context.Context) (model.CancelResult, error) {
	id := l.Booking().ID
	ch := l.group.DoChan(strconv.FormatInt(id, 10), func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
		defer cancel()

		result, err := l.api.CancelBooking(callCtx, id)
		if err != nil {
			monitoring.TrackCancellation("error")
			return model.CancelResult{}, err
		}

		l.mu.Lock()
		l.booking.Status = model.BookingCancelled
		l.mu.Unlock()

		l.cache.Invalidate(Key(l.userID))
		l.cache.Invalidate(EventKey(l.Booking().EventID))

		outcome := "cancelled"
		if result.AlreadyCancelled {
			outcome = "already_cancelled"
		}
		monitoring.TrackCancellation(outcome)
		l.logger.Info().Bool("already_cancelled", result.AlreadyCancelled).Msg("booking cancelled")
		return result, nil
	})

	select {
	case <-ctx.Done():
		return model.CancelResult{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			l.logger.Debug().Msg("joined in-flight cancellation")
		}
		if res.Err != nil {
			return model.CancelResult{}, res.Err
		}
		return res.Val.(model.CancelResult), nil
	}
}

// ViewTicket returns the ticket document URL. Cancelled bookings have no
// ticket.
func (l *Lifecycle) ViewTicket(ctx context.Context) (string, error) {
	b := l.Booking()
	if !b.IsActive() {
		return "", &apperr.StateError{Op: "view ticket", State: string(model.BookingCancelled)}
	}
	return l.api.TicketURL(ctx, b.ID)
}
