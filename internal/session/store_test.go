package session

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketone/sync/internal/apperr"
	"ticketone/sync/internal/model"
	"ticketone/sync/internal/persist"
	"ticketone/sync/internal/security"
)

type brokenStore struct{}

var errDisk = errors.New("disk full")

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errDisk }
func (brokenStore) Set(context.Context, string, []byte) error   { return errDisk }
func (brokenStore) Delete(context.Context, string) error        { return errDisk }
func (brokenStore) Close() error                                { return nil }

func setupTestStore(t *testing.T, backend persist.Store) *Store {
	t.Helper()
	return Open(context.Background(), backend, Options{ExclusiveChannels: true, Logger: zerolog.Nop()})
}

func TestLogin_ClearsOppositeChannel(t *testing.T) {
	store := setupTestStore(t, persist.NewMemoryStore())

	require.NoError(t, store.Login(model.ChannelAttendee, "user-token", &model.Identity{ID: 1, FullName: "Asha"}))
	require.NoError(t, store.Login(model.ChannelOrganizer, "org-token", &model.Identity{ID: 9, Name: "Acme"}))

	assert.False(t, store.Current(model.ChannelAttendee).IsLoggedIn)
	org := store.Current(model.ChannelOrganizer)
	assert.True(t, org.IsLoggedIn)
	assert.Equal(t, "org-token", org.Credential)
	assert.Equal(t, "Acme", org.Identity.Name)

	require.NoError(t, store.Login(model.ChannelAttendee, "user-token-2", nil))
	assert.False(t, store.Current(model.ChannelOrganizer).IsLoggedIn)
	assert.True(t, store.Current(model.ChannelAttendee).IsLoggedIn)
}

func TestLogin_NonExclusiveKeepsBothChannels(t *testing.T) {
	store := Open(context.Background(), persist.NewMemoryStore(), Options{Logger: zerolog.Nop()})

	require.NoError(t, store.Login(model.ChannelAttendee, "a", nil))
	require.NoError(t, store.Login(model.ChannelOrganizer, "b", nil))

	assert.True(t, store.Current(model.ChannelAttendee).IsLoggedIn)
	assert.True(t, store.Current(model.ChannelOrganizer).IsLoggedIn)
}

func TestLogin_Validation(t *testing.T) {
	store := setupTestStore(t, persist.NewMemoryStore())

	err := store.Login("admin", "tok", nil)
	assert.True(t, apperr.IsValidation(err))

	err = store.Login(model.ChannelAttendee, "", nil)
	assert.True(t, apperr.IsValidation(err))
}

func TestLogout_IsIdempotent(t *testing.T) {
	backend := persist.NewMemoryStore()
	store := setupTestStore(t, backend)

	store.Logout(model.ChannelAttendee)

	require.NoError(t, store.Login(model.ChannelAttendee, "tok", nil))
	store.Logout(model.ChannelAttendee)
	store.Logout(model.ChannelAttendee)

	assert.Equal(t, State{}, store.Current(model.ChannelAttendee))
	_, err := backend.Get(context.Background(), string(model.ChannelAttendee))
	assert.ErrorIs(t, err, persist.ErrNotFound)
}

func TestOpen_HydratesOnce(t *testing.T) {
	backend := persist.NewMemoryStore()
	first := setupTestStore(t, backend)
	require.NoError(t, first.Login(model.ChannelOrganizer, "org-token", &model.Identity{ID: 3, Email: "o@x.io"}))

	second := setupTestStore(t, backend)
	state := second.Current(model.ChannelOrganizer)
	assert.True(t, state.IsLoggedIn)
	assert.Equal(t, "org-token", state.Credential)
	assert.Equal(t, int64(3), state.Identity.ID)

	// later writes to the backend are not observed
	require.NoError(t, backend.Delete(context.Background(), string(model.ChannelOrganizer)))
	assert.True(t, second.Current(model.ChannelOrganizer).IsLoggedIn)
}

func TestOpen_DropsExpiredCredential(t *testing.T) {
	backend := persist.NewMemoryStore()
	token, err := security.GenerateAccessToken("secret", "attendee", 5, "", time.Minute)
	require.NoError(t, err)

	first := setupTestStore(t, backend)
	require.NoError(t, first.Login(model.ChannelAttendee, token, nil))

	later := Open(context.Background(), backend, Options{
		ExclusiveChannels: true,
		Logger:            zerolog.Nop(),
		Now:               func() time.Time { return time.Now().Add(time.Hour) },
	})
	assert.False(t, later.Current(model.ChannelAttendee).IsLoggedIn)

	_, err = backend.Get(context.Background(), string(model.ChannelAttendee))
	assert.ErrorIs(t, err, persist.ErrNotFound)
}

func TestStorageFailure_IsLoggedAndIgnored(t *testing.T) {
	var buf bytes.Buffer
	store := Open(context.Background(), brokenStore{}, Options{ExclusiveChannels: true, Logger: zerolog.New(&buf)})

	require.NoError(t, store.Login(model.ChannelAttendee, "tok", nil))
	assert.True(t, store.Current(model.ChannelAttendee).IsLoggedIn)
	assert.Contains(t, buf.String(), "persist session")
	assert.Contains(t, buf.String(), "disk full")
}

func TestUpdateIdentity(t *testing.T) {
	store := setupTestStore(t, persist.NewMemoryStore())

	store.UpdateIdentity(model.ChannelAttendee, &model.Identity{ID: 1})
	assert.False(t, store.Current(model.ChannelAttendee).IsLoggedIn)

	require.NoError(t, store.Login(model.ChannelAttendee, "tok", nil))
	store.UpdateIdentity(model.ChannelAttendee, &model.Identity{ID: 1, FullName: "Ravi"})

	state := store.Current(model.ChannelAttendee)
	assert.Equal(t, "tok", state.Credential)
	assert.Equal(t, "Ravi", state.Identity.FullName)

	// callers cannot mutate the stored identity through the snapshot
	state.Identity.FullName = "changed"
	assert.Equal(t, "Ravi", store.Current(model.ChannelAttendee).Identity.FullName)
}

func TestSubscribe(t *testing.T) {
	store := setupTestStore(t, persist.NewMemoryStore())

	var attendee, organizer []Reason
	unsubscribe := store.Subscribe(model.ChannelAttendee, func(c Change) { attendee = append(attendee, c.Reason) })
	store.Subscribe(model.ChannelOrganizer, func(c Change) { organizer = append(organizer, c.Reason) })

	require.NoError(t, store.Login(model.ChannelAttendee, "a", nil))
	store.UpdateIdentity(model.ChannelAttendee, &model.Identity{ID: 1})
	require.NoError(t, store.Login(model.ChannelOrganizer, "b", nil))
	store.Expire(model.ChannelOrganizer, "b")

	unsubscribe()
	require.NoError(t, store.Login(model.ChannelAttendee, "c", nil))

	assert.Equal(t, []Reason{ReasonLogin, ReasonIdentity, ReasonCleared}, attendee)
	assert.Equal(t, []Reason{ReasonLogin, ReasonExpired}, organizer)
}

func TestExpire_IgnoresStaleCredential(t *testing.T) {
	backend := persist.NewMemoryStore()
	store := setupTestStore(t, backend)
	require.NoError(t, store.Login(model.ChannelAttendee, "old-token", nil))
	require.NoError(t, store.Login(model.ChannelAttendee, "fresh-token", nil))

	var reasons []Reason
	store.Subscribe(model.ChannelAttendee, func(c Change) { reasons = append(reasons, c.Reason) })

	store.Expire(model.ChannelAttendee, "old-token")
	store.Expire(model.ChannelAttendee, "")

	state := store.Current(model.ChannelAttendee)
	assert.True(t, state.IsLoggedIn)
	assert.Equal(t, "fresh-token", state.Credential)
	assert.Empty(t, reasons)
	raw, err := backend.Get(context.Background(), string(model.ChannelAttendee))
	require.NoError(t, err)
	assert.True(t, bytes.Contains(raw, []byte("fresh-token")))

	store.Expire(model.ChannelAttendee, "fresh-token")
	assert.False(t, store.Current(model.ChannelAttendee).IsLoggedIn)
	assert.Equal(t, []Reason{ReasonExpired}, reasons)
	_, err = backend.Get(context.Background(), string(model.ChannelAttendee))
	assert.ErrorIs(t, err, persist.ErrNotFound)
}

func TestReset(t *testing.T) {
	backend := persist.NewMemoryStore()
	store := setupTestStore(t, backend)
	require.NoError(t, store.Login(model.ChannelOrganizer, "tok", nil))

	called := false
	store.Subscribe(model.ChannelOrganizer, func(Change) { called = true })
	store.Reset()

	assert.False(t, store.Current(model.ChannelOrganizer).IsLoggedIn)
	_, err := backend.Get(context.Background(), string(model.ChannelOrganizer))
	assert.ErrorIs(t, err, persist.ErrNotFound)

	require.NoError(t, store.Login(model.ChannelOrganizer, "tok", nil))
	assert.False(t, called)
}
