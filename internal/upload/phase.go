package upload

import (
	"fmt"

	"ticketone/sync/internal/model"
)

type Step string

const (
	StepValidate Step = "validate"
	StepReserve  Step = "reserve"
	StepUpload   Step = "upload"
	StepCommit   Step = "commit"
)

// Phase is one of Unreserved, Reserved, Uploaded, Committed or Failed.
// Each phase carries only the data that exists in it: there is no upload
// URL before a reservation and no event before a commit.
type Phase interface {
	Name() string
	terminal() bool
}

type Unreserved struct{}

type Reserved struct {
	UploadURL      string
	ReservationKey string
}

type Uploaded struct {
	ReservationKey string
}

type Committed struct {
	ReservationKey string
	Event          model.Event
}

type Failed struct {
	Step Step
	Err  error
}

func (Unreserved) Name() string { return "unreserved" }
func (Reserved) Name() string   { return "reserved" }
func (Uploaded) Name() string   { return "uploaded" }
func (Committed) Name() string  { return "committed" }
func (Failed) Name() string     { return "failed" }

func (Unreserved) terminal() bool { return false }
func (Reserved) terminal() bool   { return false }
func (Uploaded) terminal() bool   { return false }
func (Committed) terminal() bool  { return true }
func (Failed) terminal() bool     { return true }

// ReservationError means the API would not hand out an upload location.
type ReservationError struct{ Err error }

// UploadError means storage rejected the bytes. The reservation is spent;
// trying again needs a new coordinator.
type UploadError struct{ Err error }

// CommitError means the event was not created. The uploaded object stays
// in storage unreferenced.
type CommitError struct{ Err error }

func (e *ReservationError) Error() string { return fmt.Sprintf("reserve upload: %v", e.Err) }
func (e *ReservationError) Unwrap() error { return e.Err }
func (e *UploadError) Error() string      { return fmt.Sprintf("upload image: %v", e.Err) }
func (e *UploadError) Unwrap() error      { return e.Err }
func (e *CommitError) Error() string      { return fmt.Sprintf("create event: %v", e.Err) }
func (e *CommitError) Unwrap() error      { return e.Err }
