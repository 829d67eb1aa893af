// Package catalog pages through the public event catalog on top of the
// query cache.
//
// The server hands out forward cursors only, so going back means
// replaying the cursors already visited: Cursor keeps that history.
// Changing the page size throws the history away, because pages of
// different sizes do not line up.
package catalog

import (
	"context"
	"strconv"
	"sync"

	"ticketone/sync/internal/apperr"
	"ticketone/sync/internal/model"
	"ticketone/sync/internal/querycache"
)

// MinLimit is the smallest page the server will serve.
const MinLimit = 10

type PageSource interface {
	ListEvents(ctx context.Context, cursor model.CursorToken, limit int) (model.Page, error)
}

// PageKey is the cache key for one catalog page.
func PageKey(cursor model.CursorToken, limit int) querycache.Key {
	return querycache.NewKey("events", "cursor="+string(cursor), "limit="+strconv.Itoa(limit))
}

// ClampLimit raises limits below the server minimum.
func ClampLimit(limit int) int {
	if limit < MinLimit {
		return MinLimit
	}
	return limit
}

// View is what a catalog screen renders. While a page loads the last
// loaded page stays in Page with IsPlaceholder set.
type View struct {
	Page          model.Page
	HasPage       bool
	IsPlaceholder bool
	IsLoading     bool
	Err           error
}

type Cursor struct {
	cache  *querycache.Cache
	source PageSource
	opts   querycache.Options

	mu      sync.Mutex
	limit   int
	current model.CursorToken
	history []model.CursorToken

	shown      *model.Page
	shownLimit int
	lastErr    error
}

func New(cache *querycache.Cache, source PageSource, limit int) *Cursor {
	opts := cache.Options()
	// page transitions always keep the previous page on screen
	opts.KeepPreviousData = true
	return &Cursor{
		cache:  cache,
		source: source,
		opts:   opts,
		limit:  ClampLimit(limit),
	}
}

// FetchPage reads one page through the cache.
func (c *Cursor) FetchPage(ctx context.Context, cursor model.CursorToken, limit int) (model.Page, error) {
	limit = ClampLimit(limit)
	entry, err := c.cache.Fetch(ctx, PageKey(cursor, limit), func(ctx context.Context) (any, error) {
		return c.source.ListEvents(ctx, cursor, limit)
	}, c.opts)
	if err != nil {
		return model.Page{}, err
	}
	page, ok := querycache.Get[model.Page](entry)
	if !ok {
		return model.Page{}, apperr.Validation("cursor", "no page cached for %s", PageKey(cursor, limit))
	}
	return page, nil
}

// Load fetches the page the cursor currently points at.
func (c *Cursor) Load(ctx context.Context) (model.Page, error) {
	c.mu.Lock()
	cursor, limit := c.current, c.limit
	c.mu.Unlock()
	return c.load(ctx, cursor, limit)
}

// Next advances to the current page's next cursor. It is only allowed
// once the current page has loaded and reports HasNext.
func (c *Cursor) Next(ctx context.Context) (model.Page, error) {
	c.mu.Lock()
	if !c.currentLoadedLocked() {
		c.mu.Unlock()
		return model.Page{}, apperr.Validation("cursor", "the current page is still loading")
	}
	if !c.shown.HasNext || c.shown.CursorOut.IsFirst() {
		c.mu.Unlock()
		return model.Page{}, apperr.Validation("cursor", "there is no next page")
	}
	c.history = append(c.history, c.current)
	c.current = c.shown.CursorOut
	cursor, limit := c.current, c.limit
	c.mu.Unlock()

	return c.load(ctx, cursor, limit)
}

// Prev returns to the previously visited cursor.
func (c *Cursor) Prev(ctx context.Context) (model.Page, error) {
	c.mu.Lock()
	if len(c.history) == 0 {
		c.mu.Unlock()
		return model.Page{}, apperr.Validation("cursor", "there is no previous page")
	}
	last := len(c.history) - 1
	c.current = c.history[last]
	c.history = c.history[:last]
	cursor, limit := c.current, c.limit
	c.mu.Unlock()

	return c.load(ctx, cursor, limit)
}

// SetLimit changes the page size. A different size discards the cursor
// history and reloads from the first page.
func (c *Cursor) SetLimit(ctx context.Context, limit int) (model.Page, error) {
	limit = ClampLimit(limit)

	c.mu.Lock()
	if limit == c.limit {
		cursor := c.current
		c.mu.Unlock()
		return c.load(ctx, cursor, limit)
	}
	c.limit = limit
	c.current = ""
	c.history = nil
	c.mu.Unlock()

	return c.load(ctx, "", limit)
}

func (c *Cursor) load(ctx context.Context, cursor model.CursorToken, limit int) (model.Page, error) {
	page, err := c.FetchPage(ctx, cursor, limit)

	c.mu.Lock()
	defer c.mu.Unlock()
	// a navigation that happened meanwhile owns the view now
	if cursor != c.current || limit != c.limit {
		return page, err
	}
	if err != nil {
		c.lastErr = err
		return page, err
	}
	c.shown = &page
	c.shownLimit = limit
	c.lastErr = nil
	return page, nil
}

func (c *Cursor) currentLoadedLocked() bool {
	return c.shown != nil && c.shown.CursorIn == c.current && c.shownLimit == c.limit
}

func (c *Cursor) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.cache.Peek(PageKey(c.current, c.limit))
	if page, ok := querycache.Get[model.Page](entry); ok {
		return View{Page: page, HasPage: true, IsLoading: entry.IsFetching, Err: entry.Err}
	}

	view := View{IsLoading: entry.IsFetching || entry.Status == querycache.StatusPending, Err: c.lastErr}
	if entry.Err != nil {
		view.Err = entry.Err
	}
	if c.shown != nil {
		view.Page = *c.shown
		view.HasPage = true
		view.IsPlaceholder = true
	}
	return view
}

// CanNext reports whether Next would be allowed.
func (c *Cursor) CanNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLoadedLocked() && c.shown.HasNext && !c.shown.CursorOut.IsFirst()
}

func (c *Cursor) CanPrev() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history) > 0
}

func (c *Cursor) Limit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limit
}

// History returns the cursors Prev would walk back through, oldest first.
func (c *Cursor) History() []model.CursorToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.CursorToken(nil), c.history...)
}
