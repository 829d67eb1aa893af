package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketone/sync/internal/apperr"
	"ticketone/sync/internal/model"
	"ticketone/sync/internal/querycache"
)

type pageCall struct {
	Cursor model.CursorToken
	Limit  int
}

// fakeSource serves three pages: "" -> "c2" -> "c3" (last).
type fakeSource struct {
	mu    sync.Mutex
	calls []pageCall
	gate  map[model.CursorToken]chan struct{}
}

func (f *fakeSource) ListEvents(ctx context.Context, cursor model.CursorToken, limit int) (model.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pageCall{cursor, limit})
	gate := f.gate[cursor]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	next := map[model.CursorToken]model.CursorToken{"": "c2", "c2": "c3"}[cursor]
	items := make([]model.Event, limit)
	for i := range items {
		items[i] = model.Event{ID: int64(i + 1), Name: fmt.Sprintf("%s-%d", cursor, i)}
	}
	return model.Page{CursorIn: cursor, Items: items, CursorOut: next, HasNext: next != ""}, nil
}

func (f *fakeSource) Calls() []pageCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pageCall(nil), f.calls...)
}

func setupTestCursor(t *testing.T, limit int) (*Cursor, *fakeSource) {
	t.Helper()
	cache := querycache.New(querycache.Config{
		StaleTime:        time.Minute,
		CacheTime:        time.Hour,
		KeepPreviousData: true,
		Logger:           zerolog.Nop(),
	})
	source := &fakeSource{gate: map[model.CursorToken]chan struct{}{}}
	return New(cache, source, limit), source
}

func TestNext_FetchesWithCursorOut(t *testing.T) {
	cursor, source := setupTestCursor(t, 10)
	ctx := context.Background()

	first, err := cursor.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, first.Items, 10)
	assert.True(t, first.HasNext)
	assert.Equal(t, model.CursorToken("c2"), first.CursorOut)
	assert.True(t, cursor.CanNext())
	assert.False(t, cursor.CanPrev())

	second, err := cursor.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.CursorToken("c2"), second.CursorIn)
	assert.Equal(t, []pageCall{{"", 10}, {"c2", 10}}, source.Calls())
	assert.True(t, cursor.CanPrev())
	assert.Equal(t, []model.CursorToken{""}, cursor.History())
}

func TestSetLimit_DiscardsHistoryAndRestartsFromFirstPage(t *testing.T) {
	cursor, source := setupTestCursor(t, 10)
	ctx := context.Background()

	_, err := cursor.Load(ctx)
	require.NoError(t, err)
	_, err = cursor.Next(ctx)
	require.NoError(t, err)

	page, err := cursor.SetLimit(ctx, 20)
	require.NoError(t, err)
	assert.True(t, page.CursorIn.IsFirst())
	assert.Len(t, page.Items, 20)
	assert.Empty(t, cursor.History())
	assert.False(t, cursor.CanPrev())
	assert.Equal(t, 20, cursor.Limit())
	assert.Equal(t, pageCall{"", 20}, source.Calls()[len(source.Calls())-1])
}

func TestSetLimit_BeforeNext(t *testing.T) {
	cursor, source := setupTestCursor(t, 10)
	ctx := context.Background()

	_, err := cursor.Load(ctx)
	require.NoError(t, err)
	_, err = cursor.SetLimit(ctx, 20)
	require.NoError(t, err)

	assert.Equal(t, []pageCall{{"", 10}, {"", 20}}, source.Calls())
}

func TestPrev_ReplaysHistory(t *testing.T) {
	cursor, source := setupTestCursor(t, 10)
	ctx := context.Background()

	_, err := cursor.Prev(ctx)
	assert.True(t, apperr.IsValidation(err))

	_, _ = cursor.Load(ctx)
	_, _ = cursor.Next(ctx)
	third, err := cursor.Next(ctx)
	require.NoError(t, err)
	assert.False(t, third.HasNext)

	_, err = cursor.Next(ctx)
	assert.True(t, apperr.IsValidation(err), "next is disabled on the last page")

	back, err := cursor.Prev(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.CursorToken("c2"), back.CursorIn)
	back, err = cursor.Prev(ctx)
	require.NoError(t, err)
	assert.True(t, back.CursorIn.IsFirst())

	// revisited pages come from the cache
	assert.Len(t, source.Calls(), 3)
}

func TestNext_BeforeLoadIsRejected(t *testing.T) {
	cursor, source := setupTestCursor(t, 10)

	_, err := cursor.Next(context.Background())
	assert.True(t, apperr.IsValidation(err))
	assert.Empty(t, source.Calls())
}

func TestView_KeepsPreviousPageWhileLoading(t *testing.T) {
	cursor, source := setupTestCursor(t, 10)
	ctx := context.Background()

	_, err := cursor.Load(ctx)
	require.NoError(t, err)

	gate := make(chan struct{})
	source.mu.Lock()
	source.gate["c2"] = gate
	source.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := cursor.Next(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return len(source.Calls()) == 2 }, time.Second, time.Millisecond)
	view := cursor.View()
	assert.True(t, view.IsPlaceholder)
	assert.True(t, view.IsLoading)
	assert.True(t, view.Page.CursorIn.IsFirst())
	assert.False(t, cursor.CanNext(), "next stays disabled until the new page lands")

	close(gate)
	require.NoError(t, <-done)

	view = cursor.View()
	assert.False(t, view.IsPlaceholder)
	assert.Equal(t, model.CursorToken("c2"), view.Page.CursorIn)
}

func TestLimitIsClampedToServerMinimum(t *testing.T) {
	cursor, source := setupTestCursor(t, 3)
	assert.Equal(t, MinLimit, cursor.Limit())

	_, err := cursor.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []pageCall{{"", 10}}, source.Calls())
}

func TestPageKey(t *testing.T) {
	key := PageKey("c2", 10)
	assert.Equal(t, querycache.Key{"events", "cursor=c2", "limit=10"}, key)
	assert.True(t, key.HasPrefix(querycache.NewKey("events")))
}
