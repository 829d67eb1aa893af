package booking

import (
	"context"

	"github.com/rs/zerolog"

	"ticketone/sync/internal/apperr"
	"ticketone/sync/internal/model"
	"ticketone/sync/internal/querycache"
	"ticketone/sync/internal/session"
)

type Sessions interface {
	Current(channel model.Channel) session.State
}

// Service reads the attendee's bookings through the cache and hands out
// per-booking lifecycles.
type Service struct {
	api      API
	cache    *querycache.Cache
	sessions Sessions
	logger   zerolog.Logger
}

func NewService(api API, cache *querycache.Cache, sessions Sessions, logger zerolog.Logger) *Service {
	return &Service{api: api, cache: cache, sessions: sessions, logger: logger}
}

func (s *Service) attendee() (int64, error) {
	state := s.sessions.Current(model.ChannelAttendee)
	if !state.IsLoggedIn {
		return 0, &apperr.AuthRequiredError{Channel: string(model.ChannelAttendee)}
	}
	if state.Identity == nil {
		return 0, nil
	}
	return state.Identity.ID, nil
}

// List returns the attendee's bookings, served from the cache while
// fresh.
func (s *Service) List(ctx context.Context) (model.BookingList, error) {
	userID, err := s.attendee()
	if err != nil {
		return model.BookingList{}, err
	}
	entry, err := s.cache.Fetch(ctx, Key(userID), func(ctx context.Context) (any, error) {
		return s.api.Bookings(ctx)
	}, s.cache.Options())
	if err != nil {
		return model.BookingList{}, err
	}
	list, _ := querycache.Get[model.BookingList](entry)
	return list, nil
}

// Lifecycle returns the lifecycle of b for the logged-in attendee.
func (s *Service) Lifecycle(b model.Booking) (*Lifecycle, error) {
	userID, err := s.attendee()
	if err != nil {
		return nil, err
	}
	return NewLifecycle(b, userID, s.api, s.cache, s.logger), nil
}

// Find returns the lifecycle of the booking with id from the attendee's
// list.
func (s *Service) Find(ctx context.Context, id int64) (*Lifecycle, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range list.Data {
		if b.ID == id {
			return s.Lifecycle(b)
		}
	}
	return nil, apperr.Validation("booking", "booking %d not found", id)
}

// Book reserves seats on event. Seats must be positive and, when the
// event's availability is known, no more than what is left.
func (s *Service) Book(ctx context.Context, event model.Event, seats int64) (model.BookSeatsResult, error) {
	userID, err := s.attendee()
	if err != nil {
		return model.BookSeatsResult{}, err
	}
	if seats <= 0 {
		return model.BookSeatsResult{}, apperr.Validation("seats", "select at least one seat")
	}
	if event.Capacity > 0 && seats > event.SeatsAvailable {
		return model.BookSeatsResult{}, apperr.Validation("seats", "only %d seats left", event.SeatsAvailable)
	}

	result, err := s.api.BookSeats(ctx, event.ID, seats)
	if err != nil {
		return model.BookSeatsResult{}, err
	}
	s.cache.Invalidate(Key(userID))
	s.cache.Invalidate(EventKey(event.ID))
	s.cache.Invalidate(querycache.NewKey("events"))
	s.logger.Info().Int64("event_id", event.ID).Int64("seats", seats).Int64("booking_id", result.BookingID).Msg("seats booked")
	return result, nil
}
