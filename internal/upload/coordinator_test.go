package upload

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketone/sync/internal/apiclient"
	"ticketone/sync/internal/apperr"
	"ticketone/sync/internal/model"
	"ticketone/sync/internal/querycache"
	"ticketone/sync/internal/session"
)

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{0}, 64)...)

type fakeAPI struct {
	calls       []string
	reservation apiclient.Reservation
	reserveErr  error
	putErr      error
	createErr   error
	putURL      string
	created     model.EventInput
}

func (f *fakeAPI) ReserveUpload(_ context.Context, fileName, fileType string) (apiclient.Reservation, error) {
	f.calls = append(f.calls, "reserve")
	return f.reservation, f.reserveErr
}

func (f *fakeAPI) PutObject(_ context.Context, uploadURL, contentType string, content []byte) error {
	f.calls = append(f.calls, "put")
	f.putURL = uploadURL
	return f.putErr
}

func (f *fakeAPI) CreateEvent(_ context.Context, input model.EventInput) (model.Event, error) {
	f.calls = append(f.calls, "create")
	f.created = input
	if f.createErr != nil {
		return model.Event{}, f.createErr
	}
	return model.Event{ID: 11, Name: input.Name, Key: input.Key, Capacity: input.Capacity, SeatsAvailable: input.Capacity}, nil
}

type organizerSession struct{ loggedIn bool }

func (o organizerSession) Current(channel model.Channel) session.State {
	if channel == model.ChannelOrganizer && o.loggedIn {
		return session.State{IsLoggedIn: true, Credential: "org"}
	}
	return session.State{}
}

type recordingCache struct{ prefixes []querycache.Key }

func (r *recordingCache) Invalidate(prefix querycache.Key) int {
	r.prefixes = append(r.prefixes, prefix)
	return 0
}

func setupTestCoordinator(t *testing.T, api *fakeAPI) (*Coordinator, *recordingCache) {
	t.Helper()
	cache := &recordingCache{}
	return New(api, organizerSession{loggedIn: true}, cache, DefaultPolicy(), zerolog.Nop()), cache
}

func validAsset() Asset {
	return Asset{FileName: "poster.png", ContentType: "image/png", Content: pngBytes}
}

func validInput() model.EventInput {
	return model.EventInput{
		Name:     "Jazz Night",
		Capacity: 120,
		Date:     time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC),
		City:     "Pune",
		Visible:  model.VisibilityPublic,
	}
}

func TestSubmit_Success(t *testing.T) {
	api := &fakeAPI{reservation: apiclient.Reservation{UploadURL: "https://s/1", Key: "k1"}}
	coord, cache := setupTestCoordinator(t, api)

	outcome := coord.Submit(context.Background(), validAsset(), validInput())
	require.True(t, outcome.OK())
	assert.Equal(t, "Event created successfully!", outcome.Message())
	assert.Equal(t, int64(11), outcome.Event.ID)

	assert.Equal(t, []string{"reserve", "put", "create"}, api.calls)
	assert.Equal(t, "https://s/1", api.putURL)
	assert.Equal(t, "k1", api.created.Key)

	committed, ok := coord.Phase().(Committed)
	require.True(t, ok)
	assert.Equal(t, "k1", committed.ReservationKey)
	assert.True(t, coord.Done())

	assert.Equal(t, []querycache.Key{{"events"}, {"org-events"}}, cache.prefixes)
}

func TestUploadRejectedByStorage_NeverCommits(t *testing.T) {
	api := &fakeAPI{
		reservation: apiclient.Reservation{UploadURL: "https://s/1", Key: "k1"},
		putErr:      &apperr.APIError{Op: "upload object", Status: http.StatusForbidden},
	}
	coord, cache := setupTestCoordinator(t, api)

	outcome := coord.Submit(context.Background(), validAsset(), validInput())
	require.False(t, outcome.OK())

	var uploadErr *UploadError
	require.ErrorAs(t, outcome.Err, &uploadErr)
	assert.Equal(t, StepUpload, outcome.Step)
	assert.Equal(t, "image upload url failed, try again", outcome.Message())

	failed, ok := coord.Phase().(Failed)
	require.True(t, ok)
	assert.Equal(t, StepUpload, failed.Step)

	assert.Equal(t, []string{"reserve", "put"}, api.calls)
	assert.Empty(t, cache.prefixes)

	// the reservation is spent; nothing can be retried on this instance
	_, err := coord.Commit(context.Background(), validInput())
	assert.True(t, apperr.IsState(err))
	_, err = coord.Upload(context.Background(), validAsset())
	assert.True(t, apperr.IsState(err))
	assert.Len(t, api.calls, 2)
}

func TestUploadBeforeReserve_IsStateErrorWithoutNetwork(t *testing.T) {
	api := &fakeAPI{}
	coord, _ := setupTestCoordinator(t, api)

	_, err := coord.Upload(context.Background(), validAsset())
	var stateErr *apperr.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "unreserved", stateErr.State)

	_, err = coord.Commit(context.Background(), validInput())
	assert.True(t, apperr.IsState(err))

	assert.Empty(t, api.calls)
	assert.IsType(t, Unreserved{}, coord.Phase())
}

func TestUpload_ValidationShortCircuits(t *testing.T) {
	cases := []struct {
		name  string
		asset Asset
		msg   string
	}{
		{"empty", Asset{FileName: "a.png", ContentType: "image/png"}, "please select an event image"},
		{"type", Asset{FileName: "a.gif", ContentType: "image/gif", Content: []byte("GIF89a....")}, "only jpeg and png images are allowed"},
		{"size", Asset{FileName: "a.png", ContentType: "image/png", Content: append(pngBytes, make([]byte, 5<<20)...)}, "image size should be less than 5MB"},
		{"content", Asset{FileName: "a.png", ContentType: "image/png", Content: []byte("<html></html>")}, "file content is not a valid png image"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeAPI{reservation: apiclient.Reservation{UploadURL: "https://s/1", Key: "k1"}}
			coord, _ := setupTestCoordinator(t, api)

			_, err := coord.Reserve(context.Background(), "a.png", "image/png")
			require.NoError(t, err)

			_, err = coord.Upload(context.Background(), tc.asset)
			require.True(t, apperr.IsValidation(err))
			assert.Equal(t, tc.msg, apperr.UserMessage(err))

			assert.Equal(t, []string{"reserve"}, api.calls)
			assert.IsType(t, Reserved{}, coord.Phase(), "validation does not consume the reservation")
		})
	}
}

func TestSubmit_ValidationBeforeAnyNetwork(t *testing.T) {
	api := &fakeAPI{}
	coord, _ := setupTestCoordinator(t, api)

	outcome := coord.Submit(context.Background(), Asset{FileName: "a.pdf", ContentType: "application/pdf", Content: []byte("%PDF")}, validInput())
	assert.Equal(t, StepValidate, outcome.Step)
	assert.Equal(t, "only jpeg and png images are allowed", outcome.Message())

	input := validInput()
	input.Name = " "
	outcome = coord.Submit(context.Background(), validAsset(), input)
	assert.Equal(t, "event name is required", outcome.Message())

	assert.Empty(t, api.calls)
}

func TestReserveFailure(t *testing.T) {
	api := &fakeAPI{reserveErr: &apperr.APIError{Op: "reserve upload", Status: http.StatusInternalServerError}}
	coord, _ := setupTestCoordinator(t, api)

	outcome := coord.Submit(context.Background(), validAsset(), validInput())
	var reservationErr *ReservationError
	require.ErrorAs(t, outcome.Err, &reservationErr)
	assert.Equal(t, "failed to get upload URL", outcome.Message())
	assert.Equal(t, []string{"reserve"}, api.calls)
	assert.IsType(t, Failed{}, coord.Phase())
}

func TestCommitFailure_ReportsServerMessage(t *testing.T) {
	api := &fakeAPI{
		reservation: apiclient.Reservation{UploadURL: "https://s/1", Key: "k1"},
		createErr:   &apperr.APIError{Op: "create event", Status: http.StatusBadRequest, Message: "invalid input: capacity"},
	}
	coord, cache := setupTestCoordinator(t, api)

	outcome := coord.Submit(context.Background(), validAsset(), validInput())
	var commitErr *CommitError
	require.ErrorAs(t, outcome.Err, &commitErr)
	assert.Equal(t, "invalid input: capacity", outcome.Message())
	assert.Equal(t, []string{"reserve", "put", "create"}, api.calls)
	assert.Empty(t, cache.prefixes)
}

func TestNetworkFailure_Message(t *testing.T) {
	api := &fakeAPI{
		reservation: apiclient.Reservation{UploadURL: "https://s/1", Key: "k1"},
		putErr:      &apperr.NetworkError{Op: "upload object", Err: errors.New("connection refused")},
	}
	coord, _ := setupTestCoordinator(t, api)

	outcome := coord.Submit(context.Background(), validAsset(), validInput())
	assert.Equal(t, "Network error. Please check your connection.", outcome.Message())
	assert.True(t, apperr.IsNetwork(outcome.Err))
}

func TestReserve_RequiresOrganizerSession(t *testing.T) {
	api := &fakeAPI{}
	coord := New(api, organizerSession{}, &recordingCache{}, DefaultPolicy(), zerolog.Nop())

	_, err := coord.Reserve(context.Background(), "a.png", "image/png")
	assert.True(t, apperr.IsAuthRequired(err))
	assert.Empty(t, api.calls)
	assert.IsType(t, Unreserved{}, coord.Phase())
}
