// Package session holds at most one credential per identity channel and
// writes it through to durable storage.
//
// Memory is authoritative. The store is hydrated once by Open; after
// that every read is served from memory, and persistence failures are
// logged and otherwise ignored so a session stays usable for the rest of
// the process even when the backing store is broken.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ticketone/sync/internal/apperr"
	"ticketone/sync/internal/log"
	"ticketone/sync/internal/model"
	"ticketone/sync/internal/persist"
	"ticketone/sync/internal/security"
)

const persistTimeout = 3 * time.Second

type Reason string

const (
	ReasonLogin    Reason = "login"
	ReasonLogout   Reason = "logout"
	ReasonIdentity Reason = "identity"
	ReasonExpired  Reason = "expired"
	// ReasonCleared is a logout forced by a login on the other channel.
	ReasonCleared Reason = "cleared"
)

type State struct {
	IsLoggedIn bool
	Credential string
	Identity   *model.Identity
}

type Change struct {
	Channel model.Channel
	Reason  Reason
	State   State
}

type Options struct {
	// ExclusiveChannels clears the other channel on login.
	ExclusiveChannels bool
	Logger            zerolog.Logger
	Now               func() time.Time
}

type record struct {
	Credential string          `json:"credential"`
	Identity   *model.Identity `json:"identity,omitempty"`
	SavedAt    time.Time       `json:"saved_at"`
}

type Store struct {
	backend persist.Store
	opts    Options
	logger  zerolog.Logger

	mu       sync.Mutex
	sessions map[model.Channel]record
	subs     map[model.Channel]map[int]func(Change)
	nextSub  int

	// persistMu orders write-through so the stored record always ends
	// up matching the latest in-memory state of its channel.
	persistMu sync.Mutex
}

// Open hydrates a store from backend. Records whose credential carries
// an exp claim in the past are dropped during hydration.
func Open(ctx context.Context, backend persist.Store, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		backend:  backend,
		opts:     opts,
		logger:   log.Component(opts.Logger, "session"),
		sessions: make(map[model.Channel]record),
		subs:     make(map[model.Channel]map[int]func(Change)),
	}
	s.hydrate(ctx)
	return s
}

func (s *Store) hydrate(ctx context.Context) {
	for _, channel := range model.Channels {
		raw, err := s.backend.Get(ctx, string(channel))
		if errors.Is(err, persist.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("channel", string(channel)).Msg("hydrate session")
			continue
		}

		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil || rec.Credential == "" {
			s.logger.Warn().Err(err).Str("channel", string(channel)).Msg("discard unreadable session record")
			s.deleteRecord(ctx, channel)
			continue
		}
		if security.Expired(rec.Credential, s.opts.Now()) {
			s.logger.Info().Str("channel", string(channel)).Msg("stored session expired")
			s.deleteRecord(ctx, channel)
			continue
		}
		s.sessions[channel] = rec
	}
}

func (s *Store) Login(channel model.Channel, credential string, identity *model.Identity) error {
	if !channel.Valid() {
		return apperr.Validation("channel", "unknown channel %q", channel)
	}
	if credential == "" {
		return apperr.Validation("credential", "credential is required")
	}

	var changes []Change
	s.mu.Lock()
	if s.opts.ExclusiveChannels {
		other := channel.Opposite()
		if _, ok := s.sessions[other]; ok {
			delete(s.sessions, other)
			changes = append(changes, Change{Channel: other, Reason: ReasonCleared})
		}
	}
	s.sessions[channel] = record{Credential: credential, Identity: cloneIdentity(identity), SavedAt: s.opts.Now()}
	changes = append(changes, Change{Channel: channel, Reason: ReasonLogin, State: s.stateLocked(channel)})
	s.mu.Unlock()

	for _, ch := range changes {
		s.persist(ch.Channel)
	}
	s.notify(changes...)
	return nil
}

// Logout is a no-op when the channel has no session.
func (s *Store) Logout(channel model.Channel) {
	s.end(channel, ReasonLogout, "")
}

// Expire ends the session holding credential. A rejection that arrives
// after the user logged in again names the old credential and is ignored.
func (s *Store) Expire(channel model.Channel, credential string) {
	if credential == "" {
		return
	}
	s.end(channel, ReasonExpired, credential)
}

// end removes the channel's session. A non-empty credential must match
// the current one.
func (s *Store) end(channel model.Channel, reason Reason, credential string) {
	s.mu.Lock()
	rec, ok := s.sessions[channel]
	if ok && credential != "" && rec.Credential != credential {
		ok = false
	}
	if ok {
		delete(s.sessions, channel)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	s.persist(channel)
	s.notify(Change{Channel: channel, Reason: reason})
}

func (s *Store) Current(channel model.Channel) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(channel)
}

// UpdateIdentity replaces the profile of a logged-in channel without
// touching its credential.
func (s *Store) UpdateIdentity(channel model.Channel, identity *model.Identity) {
	s.mu.Lock()
	rec, ok := s.sessions[channel]
	if !ok {
		s.mu.Unlock()
		return
	}
	rec.Identity = cloneIdentity(identity)
	s.sessions[channel] = rec
	change := Change{Channel: channel, Reason: ReasonIdentity, State: s.stateLocked(channel)}
	s.mu.Unlock()

	s.persist(channel)
	s.notify(change)
}

// Subscribe registers fn for changes on channel. fn runs on the
// goroutine that made the change, after the store's lock is released.
func (s *Store) Subscribe(channel model.Channel, fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	if s.subs[channel] == nil {
		s.subs[channel] = make(map[int]func(Change))
	}
	s.subs[channel][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[channel], id)
	}
}

// Reset drops every session, persisted record and subscriber.
func (s *Store) Reset() {
	s.mu.Lock()
	s.sessions = make(map[model.Channel]record)
	s.subs = make(map[model.Channel]map[int]func(Change))
	s.mu.Unlock()

	for _, channel := range model.Channels {
		s.persist(channel)
	}
}

func (s *Store) stateLocked(channel model.Channel) State {
	rec, ok := s.sessions[channel]
	if !ok {
		return State{}
	}
	return State{IsLoggedIn: true, Credential: rec.Credential, Identity: cloneIdentity(rec.Identity)}
}

// persist writes the channel's current in-memory state through.
func (s *Store) persist(channel model.Channel) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	rec, ok := s.sessions[channel]
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if !ok {
		s.deleteRecord(ctx, channel)
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error().Err(err).Str("channel", string(channel)).Msg("encode session")
		return
	}
	if err := s.backend.Set(ctx, string(channel), raw); err != nil {
		s.logger.Error().Err(err).Str("channel", string(channel)).Msg("persist session")
	}
}

func (s *Store) deleteRecord(ctx context.Context, channel model.Channel) {
	if err := s.backend.Delete(ctx, string(channel)); err != nil {
		s.logger.Error().Err(err).Str("channel", string(channel)).Msg("remove persisted session")
	}
}

func (s *Store) notify(changes ...Change) {
	for _, change := range changes {
		s.mu.Lock()
		fns := make([]func(Change), 0, len(s.subs[change.Channel]))
		for _, fn := range s.subs[change.Channel] {
			fns = append(fns, fn)
		}
		s.mu.Unlock()

		for _, fn := range fns {
			fn(change)
		}
	}
}

func cloneIdentity(identity *model.Identity) *model.Identity {
	if identity == nil {
		return nil
	}
	cp := *identity
	return &cp
}
