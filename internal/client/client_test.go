package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketone/sync/internal/apperr"
	"ticketone/sync/internal/config"
	"ticketone/sync/internal/mockapi"
	"ticketone/sync/internal/model"
	"ticketone/sync/internal/persist"
	"ticketone/sync/internal/querycache"
	"ticketone/sync/internal/session"
	"ticketone/sync/internal/storage"
	"ticketone/sync/internal/upload"
)

var pngImage = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func testConfig(baseURL string) *config.AppConfig {
	return &config.AppConfig{
		Environment: "test",
		API:         config.APIConfig{BaseURL: baseURL, Timeout: 5 * time.Second},
		Session:     config.SessionConfig{Backend: "memory", ExclusiveChannels: true},
		Cache:       config.CacheConfig{StaleTime: time.Minute, CacheTime: 5 * time.Minute, KeepPreviousData: true},
		Upload:      config.UploadConfig{MaxBytes: 5 << 20, AllowedTypes: []string{"image/jpeg", "image/png"}},
		Catalog:     config.CatalogConfig{DefaultLimit: 10},
		Security:    config.SecurityConfig{JWTSecret: "client-test-secret", JWTTTL: time.Hour},
	}
}

func newTestClient(t *testing.T) (*Client, persist.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sink := storage.NewSink("", time.Minute)
	cfg := testConfig("")
	handlers := mockapi.NewHandlerSet(zerolog.Nop(), cfg, mockapi.NewStore(), sink)
	srv := httptest.NewServer(mockapi.NewServer(cfg, zerolog.Nop(), handlers).Handler())
	t.Cleanup(srv.Close)
	sink.SetBaseURL(srv.URL)
	cfg.API.BaseURL = srv.URL + "/api"

	backend := persist.NewMemoryStore()
	c, err := New(context.Background(), cfg, zerolog.Nop(), WithBackend(backend), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, backend
}

func registerAndLogin(t *testing.T, c *Client, channel model.Channel, req model.RegisterRequest) model.Identity {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.Register(ctx, channel, req))
	identity, err := c.Login(ctx, channel, req.Email, req.Password)
	require.NoError(t, err)
	return identity
}

func TestClient_EndToEnd(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	org := registerAndLogin(t, c, model.ChannelOrganizer, model.RegisterRequest{Name: "Night Owls", Email: "org@example.com", Password: "secret"})
	assert.Equal(t, "Night Owls", org.DisplayName())

	outcome := c.NewUpload().Submit(ctx,
		upload.Asset{FileName: "poster.png", ContentType: "image/png", Content: pngImage},
		model.EventInput{Name: "Jazz Night", Capacity: 20, Date: time.Now().Add(72 * time.Hour), City: "Pune"},
	)
	require.True(t, outcome.OK(), outcome.Message())
	assert.Equal(t, "Event created successfully!", outcome.Message())
	require.NotNil(t, outcome.Event)
	eventID := outcome.Event.ID

	mine, err := c.MyEvents(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "events/uploads/1/poster.png", mine[0].Key)

	image, err := c.EventImage(ctx, mine[0])
	require.NoError(t, err)
	assert.Contains(t, image, "/storage/events/uploads/1/poster.png")

	page, err := c.Catalog(0).Load(ctx)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.False(t, page.HasNext)

	// logging in as an attendee ends the organizer session
	registerAndLogin(t, c, model.ChannelAttendee, model.RegisterRequest{FirstName: "Asha", LastName: "Rao", Email: "asha@example.com", Password: "secret"})
	assert.False(t, c.Sessions.Current(model.ChannelOrganizer).IsLoggedIn)
	_, err = c.MyEvents(ctx)
	assert.True(t, apperr.IsAuthRequired(err))

	event, err := c.Event(ctx, eventID)
	require.NoError(t, err)
	_, err = c.Bookings.Book(ctx, event, 21)
	assert.True(t, apperr.IsValidation(err))

	booked, err := c.Bookings.Book(ctx, event, 3)
	require.NoError(t, err)

	event, err = c.Event(ctx, eventID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, event.SeatsBooked(), "booking invalidates the event")

	life, err := c.Bookings.Find(ctx, booked.BookingID)
	require.NoError(t, err)
	ticket, err := life.ViewTicket(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, ticket)

	result, err := life.Cancel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Booking cancelled successfully.", result.Message())
	result, err = life.Cancel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "This booking was already cancelled.", result.Message())

	_, err = life.ViewTicket(ctx)
	assert.True(t, apperr.IsState(err))

	list, err := c.Bookings.List(ctx)
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, model.BookingCancelled, list.Data[0].Status)
}

func TestClient_RejectedCredentialExpiresSession(t *testing.T) {
	c, backend := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Sessions.Login(model.ChannelAttendee, "not-a-real-token", &model.Identity{ID: 1, Email: "a@example.com"}))
	_, err := backend.Get(ctx, string(model.ChannelAttendee))
	require.NoError(t, err)

	var reasons []session.Reason
	c.Sessions.Subscribe(model.ChannelAttendee, func(change session.Change) {
		reasons = append(reasons, change.Reason)
	})

	// the 401 expires the session, which supersedes the read; the retry
	// then stops before the network for lack of a credential
	_, err = c.Bookings.List(ctx)
	require.Error(t, err)
	assert.True(t, apperr.IsAuthRequired(err))
	assert.False(t, c.Sessions.Current(model.ChannelAttendee).IsLoggedIn)
	assert.Equal(t, []session.Reason{session.ReasonExpired}, reasons)

	_, err = backend.Get(ctx, string(model.ChannelAttendee))
	assert.ErrorIs(t, err, persist.ErrNotFound)
}

func TestClient_DuplicateRegistration(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	req := model.RegisterRequest{FirstName: "A", Email: "dup@example.com", Password: "pw"}

	require.NoError(t, c.Register(ctx, model.ChannelAttendee, req))
	err := c.Register(ctx, model.ChannelAttendee, req)
	assert.Equal(t, 409, apperr.StatusOf(err))
	assert.Equal(t, "email already registered", apperr.UserMessage(err))
}

func TestClient_LogoutDropsIdentityViews(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	registerAndLogin(t, c, model.ChannelAttendee, model.RegisterRequest{FirstName: "A", Email: "a@example.com", Password: "pw"})

	_, err := c.Bookings.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, c.Cache.Len())

	c.Logout(model.ChannelAttendee)
	entry := c.Cache.Peek(querycache.NewKey("bookings", int64(1)))
	assert.True(t, entry.IsStale)

	_, err = c.Bookings.List(ctx)
	assert.True(t, apperr.IsAuthRequired(err))
}
