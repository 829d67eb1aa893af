// Package client is the process-wide container for the sync layer.
//
// New opens durable storage, hydrates the session store from it exactly
// once, and builds the cache and API client every component shares.
// Close releases storage and stops the eviction sweep; Reset clears all
// in-memory and persisted state between test cases.
package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"ticketone/sync/internal/apiclient"
	"ticketone/sync/internal/booking"
	"ticketone/sync/internal/catalog"
	"ticketone/sync/internal/config"
	"ticketone/sync/internal/jobs"
	"ticketone/sync/internal/model"
	"ticketone/sync/internal/persist"
	"ticketone/sync/internal/querycache"
	"ticketone/sync/internal/session"
	"ticketone/sync/internal/upload"
)

type Client struct {
	cfg    *config.AppConfig
	logger zerolog.Logger

	Sessions *session.Store
	Cache    *querycache.Cache
	API      *apiclient.Client
	Bookings *booking.Service

	backend     persist.Store
	scheduler   *jobs.Scheduler
	unsubscribe []func()
}

type Option func(*options)

type options struct {
	backend    persist.Store
	httpClient *http.Client
}

// WithBackend replaces the storage selected by session.backend.
func WithBackend(backend persist.Store) Option {
	return func(o *options) { o.backend = backend }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) { o.httpClient = httpClient }
}

func New(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	backend := o.backend
	if backend == nil {
		var err error
		backend, err = OpenBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	sessions := session.Open(ctx, backend, session.Options{
		ExclusiveChannels: cfg.Session.ExclusiveChannels,
		Logger:            logger,
	})

	cache := querycache.New(querycache.Config{
		StaleTime:        cfg.Cache.StaleTime,
		CacheTime:        cfg.Cache.CacheTime,
		KeepPreviousData: cfg.Cache.KeepPreviousData,
		FetchTimeout:     cfg.API.Timeout,
		Logger:           logger,
	})

	api, err := apiclient.New(apiclient.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		HTTPClient: o.httpClient,
		Logger:     logger,
	}, sessions)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	c := &Client{
		cfg:       cfg,
		logger:    logger,
		Sessions:  sessions,
		Cache:     cache,
		API:       api,
		Bookings:  booking.NewService(api, cache, sessions, logger),
		backend:   backend,
		scheduler: jobs.NewScheduler(cache, cfg.Cache.SweepSchedule, logger),
	}
	c.watchSessions()

	if err := c.scheduler.Start(); err != nil {
		_ = backend.Close()
		return nil, err
	}
	return c, nil
}

// OpenBackend opens the durable storage named by session.backend.
func OpenBackend(ctx context.Context, cfg *config.AppConfig) (persist.Store, error) {
	switch cfg.Session.Backend {
	case "memory":
		return persist.NewMemoryStore(), nil
	case "redis":
		redisClient, err := persist.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return persist.NewRedisStore(redisClient, cfg.Session.KeyPrefix), nil
	case "sqlite":
		return persist.OpenSQLite(cfg.Session.Path)
	default:
		return nil, fmt.Errorf("client: unknown session backend %q", cfg.Session.Backend)
	}
}

// watchSessions drops cached per-identity views whenever a channel's
// session changes hands.
func (c *Client) watchSessions() {
	c.unsubscribe = append(c.unsubscribe,
		c.Sessions.Subscribe(model.ChannelAttendee, func(change session.Change) {
			if change.Reason != session.ReasonIdentity {
				c.Cache.Invalidate(querycache.NewKey("bookings"))
			}
		}),
		c.Sessions.Subscribe(model.ChannelOrganizer, func(change session.Change) {
			if change.Reason != session.ReasonIdentity {
				c.Cache.Invalidate(querycache.NewKey("org-events"))
			}
		}),
	)
}

// Catalog returns a new cursor over the public catalog. limit <= 0 uses
// catalog.defaultlimit.
func (c *Client) Catalog(limit int) *catalog.Cursor {
	if limit <= 0 {
		limit = c.cfg.Catalog.DefaultLimit
	}
	return catalog.New(c.Cache, c.API, limit)
}

// NewUpload returns a coordinator for one event submission.
func (c *Client) NewUpload() *upload.Coordinator {
	return upload.New(c.API, c.Sessions, c.Cache, upload.Policy{
		MaxBytes:     c.cfg.Upload.MaxBytes,
		AllowedTypes: c.cfg.Upload.AllowedTypes,
	}, c.logger)
}

func (c *Client) Close() error {
	c.scheduler.Stop()
	for _, fn := range c.unsubscribe {
		fn()
	}
	return c.backend.Close()
}

// Reset clears sessions, persisted records and cached entries, then
// re-registers the container's own session observers.
func (c *Client) Reset() {
	c.Sessions.Reset()
	c.Cache.Reset()
	c.unsubscribe = nil
	c.watchSessions()
}
