package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketone/sync/internal/config"
)

func tokenOf(t *testing.T, raw string) (string, string) {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Path, u.Query().Get("token")
}

func TestSink_SingleUse(t *testing.T) {
	sink := NewSink("http://mock.local/", time.Minute)
	ctx := context.Background()

	raw, err := sink.PresignPut(ctx, "events/uploads/1/poster art.png", "image/png")
	require.NoError(t, err)
	path, token := tokenOf(t, raw)
	assert.Equal(t, "/storage/events/uploads/1/poster art.png", path)
	require.NotEmpty(t, token)

	assert.ErrorIs(t, sink.Put(token, "events/uploads/1/poster art.png", "image/jpeg", []byte("x")), ErrContentType)
	require.NoError(t, sink.Put(token, "events/uploads/1/poster art.png", "image/png", []byte("png")))
	assert.ErrorIs(t, sink.Put(token, "events/uploads/1/poster art.png", "image/png", []byte("png")), ErrNoReservation)

	obj, err := sink.Get("events/uploads/1/poster art.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(obj.Data))
	ok, err := sink.Exists(ctx, "events/uploads/1/poster art.png")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, sink.Store(ctx, "tickets/1.txt", "text/plain", []byte("ticket")))
	ok, _ = sink.Exists(ctx, "tickets/1.txt")
	assert.True(t, ok)
}

func TestSink_RejectsWrongKeyAndExpired(t *testing.T) {
	sink := NewSink("http://mock.local", time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sink.now = func() time.Time { return now }

	raw, err := sink.PresignPut(context.Background(), "a.png", "image/png")
	require.NoError(t, err)
	_, token := tokenOf(t, raw)

	assert.ErrorIs(t, sink.Put(token, "b.png", "image/png", nil), ErrNoReservation)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, sink.Put(token, "a.png", "image/png", nil), ErrNoReservation)

	_, err = sink.Get("a.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestObjectStore_Presign(t *testing.T) {
	store, err := NewObjectStore(config.StorageConfig{
		Endpoint:   "http://127.0.0.1:9000",
		AccessKey:  "minio",
		SecretKey:  "minio-secret",
		Bucket:     "ticket-one",
		Region:     "us-east-1",
		PresignTTL: 5 * time.Minute,
	})
	require.NoError(t, err)

	raw, err := store.PresignPut(context.Background(), "events/uploads/7/a.png", "image/png")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", u.Host)
	assert.Equal(t, "/ticket-one/events/uploads/7/a.png", u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
}
