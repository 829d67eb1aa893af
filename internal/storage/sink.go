package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"ticketone/sync/internal/ids"
)

var (
	ErrNoReservation = errors.New("storage: no pending reservation for key")
	ErrContentType   = errors.New("storage: content type does not match reservation")
	ErrNotFound      = errors.New("storage: object not found")
)

type Object struct {
	ContentType string
	Data        []byte
	StoredAt    time.Time
}

type pendingPut struct {
	key         string
	contentType string
	expires     time.Time
}

// Sink is the in-process stand-in for a bucket. A presigned URL carries
// a single-use token; the PUT it authorizes must use the reserved
// content type.
type Sink struct {
	mu      sync.Mutex
	baseURL string
	ttl     time.Duration
	pending map[string]pendingPut
	objects map[string]Object
	now     func() time.Time
}

func NewSink(baseURL string, ttl time.Duration) *Sink {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Sink{
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		pending: make(map[string]pendingPut),
		objects: make(map[string]Object),
		now:     time.Now,
	}
}

// SetBaseURL changes the origin used in presigned URLs. Servers started
// on a random port learn it only after listening.
func (s *Sink) SetBaseURL(baseURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = strings.TrimRight(baseURL, "/")
}

func (s *Sink) objectURL(key string) string {
	return s.baseURL + (&url.URL{Path: "/storage/" + key}).EscapedPath()
}

func (s *Sink) PresignPut(_ context.Context, key, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := ids.New()
	s.pending[token] = pendingPut{
		key:         key,
		contentType: contentType,
		expires:     s.now().Add(s.ttl),
	}
	return s.objectURL(key) + "?token=" + url.QueryEscape(token), nil
}

func (s *Sink) PresignGet(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objectURL(key), nil
}

// Put stores data under key if token reserves it. The token is consumed
// on success only, so a rejected attempt can be retried.
func (s *Sink) Put(token, key, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[token]
	if !ok || p.key != key || s.now().After(p.expires) {
		return ErrNoReservation
	}
	if p.contentType != "" && !strings.EqualFold(p.contentType, contentType) {
		return ErrContentType
	}
	delete(s.pending, token)
	s.objects[key] = Object{
		ContentType: contentType,
		Data:        append([]byte(nil), data...),
		StoredAt:    s.now(),
	}
	return nil
}

func (s *Sink) Get(key string) (Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return Object{}, ErrNotFound
	}
	return obj, nil
}

// Store writes directly, bypassing reservations. Used for objects the
// server generates itself.
func (s *Sink) Store(_ context.Context, key, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{
		ContentType: contentType,
		Data:        append([]byte(nil), data...),
		StoredAt:    s.now(),
	}
	return nil
}

func (s *Sink) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}
