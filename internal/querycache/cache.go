// Package querycache is a read-through cache keyed by (resource kind,
// params) that tracks freshness, de-duplicates concurrent fetches and
// supports stale-while-revalidate invalidation.
//
// Each fetch for a key carries a generation number. A result is applied
// only when it is newer than the last applied result and was not
// superseded by an invalidation issued after the fetch started, so a slow
// response can never overwrite fresher data.
package querycache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ticketone/sync/internal/log"
	"ticketone/sync/internal/monitoring"
)

type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "pending"
	}
}

// Entry is an immutable snapshot of one key.
type Entry struct {
	Key        Key
	Status     Status
	Value      any
	Err        error
	FetchedAt  time.Time
	IsFetching bool
	IsStale    bool
}

// Get returns the entry's value as T.
func Get[T any](e Entry) (T, bool) {
	v, ok := e.Value.(T)
	return v, ok
}

type Fetcher func(ctx context.Context) (any, error)

type Options struct {
	// StaleTime is how long a successful result counts as fresh.
	StaleTime time.Duration
	// KeepPreviousData keeps the last value visible after an invalidation
	// until the refetch resolves. When false the entry reverts to pending.
	KeepPreviousData bool
}

type Config struct {
	StaleTime        time.Duration
	CacheTime        time.Duration
	KeepPreviousData bool
	// FetchTimeout bounds fetches, which run detached from the caller.
	FetchTimeout time.Duration
	Logger       zerolog.Logger
	Now          func() time.Time
}

type flight struct {
	gen     uint64
	done    chan struct{}
	err     error
	applied bool
}

type slot struct {
	entry        Entry
	keepPrevious bool
	touchedAt    time.Time

	lastGen    uint64
	appliedGen uint64
	// supersededGen is lastGen at the most recent invalidation; results of
	// generations at or below it are dropped.
	supersededGen uint64
	inflight      *flight

	subs map[int]func(Entry)
}

type Cache struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	slots   map[string]*slot
	nextSub int
}

func New(cfg Config) *Cache {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &Cache{
		cfg:    cfg,
		logger: log.Component(cfg.Logger, "querycache"),
		slots:  make(map[string]*slot),
	}
}

// Options returns the configured defaults for a read.
func (c *Cache) Options() Options {
	return Options{StaleTime: c.cfg.StaleTime, KeepPreviousData: c.cfg.KeepPreviousData}
}

// Read returns the current snapshot for key and, when the entry is
// absent, stale or failed, makes sure exactly one fetch is in flight.
// It never blocks on the network.
func (c *Cache) Read(key Key, fetch Fetcher, opts Options) Entry {
	entry, _, _ := c.read(key, fetch, opts)
	return entry
}

// Fetch is Read that waits for the in-flight result. Cancelling ctx
// abandons the wait only; the fetch still completes and updates the
// cache.
func (c *Cache) Fetch(ctx context.Context, key Key, fetch Fetcher, opts Options) (Entry, error) {
	entry, s, f := c.read(key, fetch, opts)
	for f != nil {
		select {
		case <-f.done:
		case <-ctx.Done():
			return c.Peek(key), ctx.Err()
		}

		c.mu.Lock()
		current := c.slots[key.id()]
		switch {
		case f.applied || current != s:
			entry = s.snapshot()
			c.mu.Unlock()
			return entry, f.err
		case s.inflight != nil:
			// ours was superseded; wait for the generation that replaced it
			f = s.inflight
			c.mu.Unlock()
		default:
			c.mu.Unlock()
			entry, s, f = c.read(key, fetch, opts)
		}
	}
	if entry.Status == StatusError {
		return entry, entry.Err
	}
	return entry, nil
}

func (c *Cache) read(key Key, fetch Fetcher, opts Options) (Entry, *slot, *flight) {
	c.mu.Lock()

	now := c.cfg.Now()
	s, ok := c.slots[key.id()]
	if !ok {
		s = &slot{entry: Entry{Key: key, Status: StatusPending}, subs: make(map[int]func(Entry))}
		c.slots[key.id()] = s
	}
	s.keepPrevious = opts.KeepPreviousData
	s.touchedAt = now

	if s.inflight != nil && s.inflight.gen > s.supersededGen {
		monitoring.TrackCacheRead(key.Kind(), "dedup")
		snap, f := s.snapshot(), s.inflight
		c.mu.Unlock()
		return snap, s, f
	}

	fresh := s.entry.Status == StatusSuccess && !s.entry.IsStale && now.Sub(s.entry.FetchedAt) < opts.StaleTime
	if fresh {
		monitoring.TrackCacheRead(key.Kind(), "hit")
		snap := s.snapshot()
		c.mu.Unlock()
		return snap, s, nil
	}

	if s.entry.Status == StatusSuccess {
		monitoring.TrackCacheRead(key.Kind(), "stale")
	} else {
		monitoring.TrackCacheRead(key.Kind(), "miss")
	}

	f, run := c.startLocked(key, s, fetch)
	snap := s.snapshot()
	c.mu.Unlock()

	c.notify(s, snap)
	go run()
	return snap, s, f
}

// startLocked registers a new generation for s. The returned run func
// performs the fetch and must be called without c.mu held.
func (c *Cache) startLocked(key Key, s *slot, fetch Fetcher) (*flight, func()) {
	s.lastGen++
	f := &flight{gen: s.lastGen, done: make(chan struct{})}
	s.inflight = f

	run := func() {
		done := monitoring.TrackFetchStarted(key.Kind())
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.FetchTimeout)
		defer cancel()

		value, err := fetch(ctx)
		result := "success"
		if err != nil {
			result = "error"
		}
		if !c.complete(key, s, f, value, err) {
			result = "discarded"
		}
		done(result)
	}
	return f, run
}

// complete applies a fetch result if its generation still counts.
func (c *Cache) complete(key Key, s *slot, f *flight, value any, err error) bool {
	c.mu.Lock()

	f.err = err
	if s.inflight == f {
		s.inflight = nil
	}

	if c.slots[key.id()] != s || f.gen <= s.appliedGen || f.gen <= s.supersededGen {
		c.logger.Debug().
			Str("key", key.String()).
			Uint64("gen", f.gen).
			Uint64("applied_gen", s.appliedGen).
			Msg("discard superseded result")
		snap := s.snapshot()
		c.mu.Unlock()
		c.notify(s, snap)
		close(f.done)
		return false
	}

	s.appliedGen = f.gen
	f.applied = true
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("fetch failed")
		s.entry.Status = StatusError
		s.entry.Err = err
	} else {
		s.entry.Status = StatusSuccess
		s.entry.Value = value
		s.entry.Err = nil
		s.entry.FetchedAt = c.cfg.Now()
		s.entry.IsStale = false
	}
	s.touchedAt = c.cfg.Now()
	snap := s.snapshot()
	c.mu.Unlock()

	// subscribers see the result before any waiter returns
	c.notify(s, snap)
	close(f.done)
	return true
}

// Peek returns the snapshot for key without fetching.
func (c *Cache) Peek(key Key) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[key.id()]
	if !ok {
		return Entry{Key: key, Status: StatusPending}
	}
	return s.snapshot()
}

// Invalidate marks every entry under prefix stale and returns how many
// matched. Unknown prefixes are a no-op. In-flight fetches for matching
// keys are superseded: their results are dropped and the next read
// starts a new generation.
func (c *Cache) Invalidate(prefix Key) int {
	type pending struct {
		s    *slot
		snap Entry
	}
	var changed []pending

	c.mu.Lock()
	for _, s := range c.slots {
		if !s.entry.Key.HasPrefix(prefix) {
			continue
		}
		s.supersededGen = s.lastGen
		s.entry.IsStale = true
		if !s.keepPrevious {
			s.entry.Status = StatusPending
			s.entry.Value = nil
			s.entry.Err = nil
		}
		changed = append(changed, pending{s: s, snap: s.snapshot()})
	}
	c.mu.Unlock()

	if len(changed) > 0 {
		c.logger.Debug().Str("prefix", prefix.String()).Int("entries", len(changed)).Msg("invalidate")
	}
	for _, p := range changed {
		c.notify(p.s, p.snap)
	}
	return len(changed)
}

// Subscribe registers fn for every change of key's entry. A key with
// subscribers is never evicted.
func (c *Cache) Subscribe(key Key, fn func(Entry)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[key.id()]
	if !ok {
		s = &slot{entry: Entry{Key: key, Status: StatusPending}, subs: make(map[int]func(Entry)), touchedAt: c.cfg.Now()}
		c.slots[key.id()] = s
	}
	id := c.nextSub
	c.nextSub++
	s.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(s.subs, id)
		s.touchedAt = c.cfg.Now()
	}
}

// Sweep evicts entries untouched for longer than CacheTime that have no
// subscriber and no fetch in flight.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for id, s := range c.slots {
		if len(s.subs) > 0 || s.inflight != nil {
			continue
		}
		if now.Sub(s.touchedAt) <= c.cfg.CacheTime {
			continue
		}
		delete(c.slots, id)
		evicted++
	}
	if evicted > 0 {
		monitoring.TrackEvictions(evicted)
		c.logger.Debug().Int("evicted", evicted).Msg("sweep")
	}
	return evicted
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// Reset drops every entry and subscriber. Results of fetches still in
// flight are discarded.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots = make(map[string]*slot)
}

func (s *slot) snapshot() Entry {
	e := s.entry
	e.IsFetching = s.inflight != nil
	return e
}

func (c *Cache) notify(s *slot, snap Entry) {
	c.mu.Lock()
	fns := subscribers(s)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func subscribers(s *slot) []func(Entry) {
	fns := make([]func(Entry), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	return fns
}
