package model

import "time"

type BookingStatus string

const (
	BookingActive    BookingStatus = "ACTIVE"
	BookingCancelled BookingStatus = "CANCELLED"
)

type Booking struct {
	ID        int64         `json:"id"`
	EventID   int64         `json:"event_id"`
	UserID    int64         `json:"user_id"`
	Seats     int64         `json:"seats"`
	Status    BookingStatus `json:"status"`
	BookedAt  time.Time     `json:"booked_at"`
	EventName string        `json:"name,omitempty"`
	EventDate time.Time     `json:"date,omitempty"`
	City      string        `json:"city,omitempty"`
}

// IsActive treats a missing status as active; the server only started
// reporting it once cancellation existed.
func (b Booking) IsActive() bool {
	return b.Status == "" || b.Status == BookingActive
}

type BookingList struct {
	Data  []Booking `json:"data"`
	Count int       `json:"count"`
}

// CancelResult is the body of PUT /booking/{id}. Both outcomes are
// successes.
type CancelResult struct {
	Cancelled        bool `json:"cancelled"`
	AlreadyCancelled bool `json:"alreadyCancelled"`
}

type BookSeatsRequest struct {
	Seats int64 `json:"seats"`
}

type BookSeatsResult struct {
	BookingID int64 `json:"booking_id"`
	EventID   int64 `json:"event_id"`
	UserID    int64 `json:"user_id"`
	Seats     int64 `json:"seats"`
}

// Message distinguishes a fresh cancellation from a repeated one.
func (r CancelResult) Message() string {
	if r.AlreadyCancelled {
		return "This booking was already cancelled."
	}
	return "Booking cancelled successfully."
}
