package client

import (
	"context"
	"strings"

	"ticketone/sync/internal/apperr"
	"ticketone/sync/internal/model"
	"ticketone/sync/internal/querycache"
)

func fetchAs[T any](ctx context.Context, cache *querycache.Cache, key querycache.Key, fetch func(context.Context) (T, error)) (T, error) {
	entry, err := cache.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, cache.Options())
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := querycache.Get[T](entry)
	return v, nil
}

// Login authenticates on channel and stores the session. Logging into
// one channel clears the other when session.exclusivechannels is set.
func (c *Client) Login(ctx context.Context, channel model.Channel, email, password string) (model.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.Identity{}, apperr.Validation("credentials", "email and password are required")
	}

	result, err := c.API.Login(ctx, channel, model.LoginRequest{Email: email, Password: password})
	if err != nil {
		return model.Identity{}, err
	}
	if err := c.Sessions.Login(channel, result.Token, &result.Identity); err != nil {
		return model.Identity{}, err
	}
	c.logger.Info().Str("channel", string(channel)).Int64("id", result.Identity.ID).Msg("logged in")
	return result.Identity, nil
}

func (c *Client) Register(ctx context.Context, channel model.Channel, req model.RegisterRequest) error {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperr.Validation("credentials", "email and password are required")
	}
	return c.API.Register(ctx, channel, req)
}

func (c *Client) Logout(channel model.Channel) {
	c.Sessions.Logout(channel)
}

func (c *Client) Event(ctx context.Context, id int64) (model.Event, error) {
	return fetchAs(ctx, c.Cache, querycache.NewKey("event", id), func(ctx context.Context) (model.Event, error) {
		return c.API.GetEvent(ctx, id)
	})
}

// EventImage resolves the display URL of an event's image. Events
// created without an image have no key.
func (c *Client) EventImage(ctx context.Context, event model.Event) (string, error) {
	if event.Key == "" {
		return "", apperr.Validation("image", "event has no image")
	}
	return fetchAs(ctx, c.Cache, querycache.NewKey("event-image", event.Key), func(ctx context.Context) (string, error) {
		return c.API.EventImageURL(ctx, event.Key)
	})
}

// Upcoming lists other events in the same city as event.
func (c *Client) Upcoming(ctx context.Context, event model.Event) ([]model.Event, error) {
	if event.City == "" {
		return nil, nil
	}
	return fetchAs(ctx, c.Cache, querycache.NewKey("upcoming", event.City, event.ID), func(ctx context.Context) ([]model.Event, error) {
		return c.API.UpcomingEvents(ctx, event.City, event.ID)
	})
}

func (c *Client) orgID() (int64, error) {
	state := c.Sessions.Current(model.ChannelOrganizer)
	if !state.IsLoggedIn {
		return 0, &apperr.AuthRequiredError{Channel: string(model.ChannelOrganizer)}
	}
	if state.Identity == nil {
		return 0, nil
	}
	return state.Identity.ID, nil
}

func (c *Client) MyEvents(ctx context.Context) ([]model.Event, error) {
	orgID, err := c.orgID()
	if err != nil {
		return nil, err
	}
	return fetchAs(ctx, c.Cache, querycache.NewKey("org-events", orgID), c.API.MyEvents)
}

func (c *Client) UpdateEvent(ctx context.Context, id int64, update model.EventUpdate) error {
	if _, err := c.orgID(); err != nil {
		return err
	}
	if strings.TrimSpace(update.Name) == "" {
		return apperr.Validation("name", "event name is required")
	}
	if update.Capacity <= 0 {
		return apperr.Validation("capacity", "capacity must be greater than zero")
	}
	if err := c.API.UpdateEvent(ctx, id, update); err != nil {
		return err
	}
	c.invalidateEvent(id)
	return nil
}

func (c *Client) DeleteEvent(ctx context.Context, id int64) error {
	if _, err := c.orgID(); err != nil {
		return err
	}
	if err := c.API.DeleteEvent(ctx, id); err != nil {
		return err
	}
	c.invalidateEvent(id)
	return nil
}

func (c *Client) invalidateEvent(id int64) {
	c.Cache.Invalidate(querycache.NewKey("event", id))
	c.Cache.Invalidate(querycache.NewKey("org-events"))
	c.Cache.Invalidate(querycache.NewKey("events"))
	c.Cache.Invalidate(querycache.NewKey("upcoming"))
}
