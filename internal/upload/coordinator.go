// Package upload binds an event image to the event created with it.
//
// The image goes straight to object storage through a presigned URL
// that the API reserves, and the event is then created referencing the
// reservation key. Storage and API are separate systems, so nothing here
// is atomic: each step runs only after the previous one succeeded, a
// failure at any step is terminal for the submission, and nothing is
// retried. Orphaned reservations and objects are left for the server to
// clean up.
package upload

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"ticketone/sync/internal/apiclient"
	"ticketone/sync/internal/apperr"
	"ticketone/sync/internal/ids"
	"ticketone/sync/internal/log"
	"ticketone/sync/internal/media/sniffer"
	"ticketone/sync/internal/model"
	"ticketone/sync/internal/monitoring"
	"ticketone/sync/internal/querycache"
	"ticketone/sync/internal/session"
)

type API interface {
	ReserveUpload(ctx context.Context, fileName, fileType string) (apiclient.Reservation, error)
	PutObject(ctx context.Context, uploadURL, contentType string, content []byte) error
	CreateEvent(ctx context.Context, input model.EventInput) (model.Event, error)
}

type Sessions interface {
	Current(channel model.Channel) session.State
}

type Invalidator interface {
	Invalidate(prefix querycache.Key) int
}

// Policy is the client-side gate applied before any bytes leave.
type Policy struct {
	MaxBytes     int64
	AllowedTypes []string
}

func DefaultPolicy() Policy {
	return Policy{MaxBytes: 5 << 20, AllowedTypes: []string{"image/jpeg", "image/png"}}
}

type Asset struct {
	FileName    string
	ContentType string
	Content     []byte
}

type Coordinator struct {
	api      API
	sessions Sessions
	cache    Invalidator
	policy   Policy
	logger   zerolog.Logger

	mu    sync.Mutex
	phase Phase
	busy  bool
}

// New returns a coordinator for one submission. Coordinators are single
// use: once Committed or Failed they accept no further calls.
func New(api API, sessions Sessions, cache Invalidator, policy Policy, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		api:      api,
		sessions: sessions,
		cache:    cache,
		policy:   policy,
		logger:   log.Component(logger, "upload").With().Str("submission", ids.New()).Logger(),
		phase:    Unreserved{},
	}
}

func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Done reports whether the submission reached Committed or Failed.
func (c *Coordinator) Done() bool {
	return c.Phase().terminal()
}

// Validate checks an asset against the policy without touching the
// network.
func (c *Coordinator) Validate(asset Asset) error {
	if len(asset.Content) == 0 {
		return apperr.Validation("image", "please select an event image")
	}
	declared := sniffer.Normalize(asset.ContentType)
	allowed := false
	for _, t := range c.policy.AllowedTypes {
		if sniffer.Normalize(t) == declared {
			allowed = true
			break
		}
	}
	if !allowed {
		return apperr.Validation("image", "only %s images are allowed", allowedNames(c.policy.AllowedTypes))
	}
	if int64(len(asset.Content)) > c.policy.MaxBytes {
		return apperr.Validation("image", "image size should be less than %dMB", c.policy.MaxBytes>>20)
	}
	if !sniffer.Matches(declared, asset.Content) {
		return apperr.Validation("image", "file content is not a valid %s image", strings.TrimPrefix(declared, "image/"))
	}
	return nil
}

// begin claims the coordinator for op if it is in the wanted phase.
func (c *Coordinator) begin(op string, want func(Phase) bool) (Phase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return nil, &apperr.StateError{Op: op, State: c.phase.Name() + " (busy)"}
	}
	if !want(c.phase) {
		return nil, &apperr.StateError{Op: op, State: c.phase.Name()}
	}
	c.busy = true
	return c.phase, nil
}

func (c *Coordinator) finish(next Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if next != nil {
		c.phase = next
	}
}

func (c *Coordinator) fail(step Step, err error) error {
	c.finish(Failed{Step: step, Err: err})
	monitoring.TrackUpload(string(step), "error")
	c.logger.Warn().Err(err).Str("step", string(step)).Msg("submission failed")
	return err
}

func (c *Coordinator) requireOrganizer() error {
	if !c.sessions.Current(model.ChannelOrganizer).IsLoggedIn {
		return &apperr.AuthRequiredError{Channel: string(model.ChannelOrganizer)}
	}
	return nil
}

// Reserve asks the API for a one-time upload location.
func (c *Coordinator) Reserve(ctx context.Context, fileName, fileType string) (Reserved, error) {
	if _, err := c.begin("reserve", isUnreserved); err != nil {
		return Reserved{}, err
	}
	if err := c.requireOrganizer(); err != nil {
		c.finish(nil)
		return Reserved{}, err
	}

	reservation, err := c.api.ReserveUpload(ctx, fileName, sniffer.Normalize(fileType))
	if err != nil {
		return Reserved{}, c.fail(StepReserve, &ReservationError{Err: err})
	}

	reserved := Reserved{UploadURL: reservation.UploadURL, ReservationKey: reservation.Key}
	c.finish(reserved)
	c.logger.Debug().Str("key", reservation.Key).Msg("upload reserved")
	return reserved, nil
}

// Upload sends the asset to the reserved URL. A policy violation returns
// a ValidationError and leaves the phase unchanged.
func (c *Coordinator) Upload(ctx context.Context, asset Asset) (Uploaded, error) {
	phase, err := c.begin("upload", isReserved)
	if err != nil {
		return Uploaded{}, err
	}
	reserved := phase.(Reserved)

	if err := c.Validate(asset); err != nil {
		c.finish(nil)
		return Uploaded{}, err
	}

	if err := c.api.PutObject(ctx, reserved.UploadURL, sniffer.Normalize(asset.ContentType), asset.Content); err != nil {
		return Uploaded{}, c.fail(StepUpload, &UploadError{Err: err})
	}

	uploaded := Uploaded{ReservationKey: reserved.ReservationKey}
	c.finish(uploaded)
	c.logger.Debug().Str("key", reserved.ReservationKey).Int("bytes", len(asset.Content)).Msg("image uploaded")
	return uploaded, nil
}

// Commit creates the event with the uploaded image's reservation key.
func (c *Coordinator) Commit(ctx context.Context, input model.EventInput) (model.Event, error) {
	phase, err := c.begin("commit", isUploaded)
	if err != nil {
		return model.Event{}, err
	}
	uploaded := phase.(Uploaded)

	if err := ValidateInput(input); err != nil {
		c.finish(nil)
		return model.Event{}, err
	}

	input.Key = uploaded.ReservationKey
	event, err := c.api.CreateEvent(ctx, input)
	if err != nil {
		return model.Event{}, c.fail(StepCommit, &CommitError{Err: err})
	}

	c.finish(Committed{ReservationKey: uploaded.ReservationKey, Event: event})
	monitoring.TrackUpload(string(StepCommit), "success")
	c.cache.Invalidate(querycache.NewKey("events"))
	c.cache.Invalidate(querycache.NewKey("org-events"))
	c.logger.Info().Int64("event_id", event.ID).Str("key", uploaded.ReservationKey).Msg("event created")
	return event, nil
}

// ValidateInput checks the event fields the API requires.
func ValidateInput(input model.EventInput) error {
	switch {
	case strings.TrimSpace(input.Name) == "":
		return apperr.Validation("name", "event name is required")
	case input.Capacity <= 0:
		return apperr.Validation("capacity", "capacity must be greater than zero")
	case input.Date.IsZero():
		return apperr.Validation("date", "event date is required")
	case strings.TrimSpace(input.City) == "":
		return apperr.Validation("city", "city is required")
	}
	return nil
}

// Outcome is the single terminal result of Submit.
type Outcome struct {
	Event *model.Event
	Step  Step
	Err   error
}

func (o Outcome) OK() bool { return o.Err == nil }

// Message is the one line shown to the user for this submission.
func (o Outcome) Message() string {
	if o.Err == nil {
		return "Event created successfully!"
	}
	if apperr.IsValidation(o.Err) || apperr.IsAuthRequired(o.Err) || apperr.IsState(o.Err) || apperr.IsNetwork(o.Err) {
		return apperr.UserMessage(o.Err)
	}

	var reservation *ReservationError
	var upload *UploadError
	switch {
	case errors.As(o.Err, &reservation):
		return "failed to get upload URL"
	case errors.As(o.Err, &upload):
		return "image upload url failed, try again"
	default:
		return apperr.UserMessage(o.Err)
	}
}

// Submit runs validate, reserve, upload and commit in order and stops at
// the first failure.
func (c *Coordinator) Submit(ctx context.Context, asset Asset, input model.EventInput) Outcome {
	if err := c.Validate(asset); err != nil {
		return Outcome{Step: StepValidate, Err: err}
	}
	if err := ValidateInput(input); err != nil {
		return Outcome{Step: StepValidate, Err: err}
	}
	if _, err := c.Reserve(ctx, asset.FileName, asset.ContentType); err != nil {
		return Outcome{Step: StepReserve, Err: err}
	}
	if _, err := c.Upload(ctx, asset); err != nil {
		return Outcome{Step: StepUpload, Err: err}
	}
	event, err := c.Commit(ctx, input)
	if err != nil {
		return Outcome{Step: StepCommit, Err: err}
	}
	return Outcome{Event: &event, Step: StepCommit}
}

func isUnreserved(p Phase) bool {
	_, ok := p.(Unreserved)
	return ok
}

func isReserved(p Phase) bool {
	_, ok := p.(Reserved)
	return ok
}

func isUploaded(p Phase) bool {
	_, ok := p.(Uploaded)
	return ok
}

func allowedNames(types []string) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = strings.TrimPrefix(sniffer.Normalize(t), "image/")
	}
	return strings.Join(names, " and ")
}
