package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

type Event struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	OrgID          int64      `json:"org_id"`
	OrganizedBy    string     `json:"organized_by"`
	Key            string     `json:"key,omitempty"`
	ImageURL       string     `json:"image_url,omitempty"`
	Visible        Visibility `json:"visible,omitempty"`
	Capacity       int64      `json:"capacity"`
	SeatsAvailable int64      `json:"seats_available"`
	Date           time.Time  `json:"date"`
	Address        string     `json:"address,omitempty"`
	City           string     `json:"city"`
	State          string     `json:"state,omitempty"`
	Country        string     `json:"country,omitempty"`
	CreatedAt      time.Time  `json:"created_at,omitempty"`
}

// SeatsBooked is the only seat-count interpretation the client uses:
// capacity minus what the server reports as still available.
func (e Event) SeatsBooked() int64 {
	booked := e.Capacity - e.SeatsAvailable
	if booked < 0 {
		return 0
	}
	return booked
}

func (e Event) SoldOut() bool {
	return e.SeatsAvailable <= 0
}

// EventInput is the organizer payload for create-event; Key is filled in
// by the upload coordinator with the reservation key.
type EventInput struct {
	Name     string     `json:"name"`
	Capacity int64      `json:"capacity"`
	Date     time.Time  `json:"date"`
	Address  string     `json:"address"`
	City     string     `json:"city"`
	State    string     `json:"state"`
	Country  string     `json:"country"`
	Key      string     `json:"key"`
	Visible  Visibility `json:"visible"`
}

type EventUpdate struct {
	Name     string    `json:"name"`
	DateTime time.Time `json:"date_time"`
	Address  string    `json:"address"`
	City     string    `json:"city"`
	State    string    `json:"state"`
	Country  string    `json:"country"`
	Capacity int64     `json:"capacity"`
	Visible  string    `json:"visible"`
}

// CursorToken is an opaque page cursor. The empty token is the first
// page. The server emits numeric ids; strings and null are accepted too.
type CursorToken string

func (c *CursorToken) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = CursorToken(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("cursor token: %w", err)
	}
	if n.String() == "0" {
		*c = ""
		return nil
	}
	*c = CursorToken(n.String())
	return nil
}

func (c CursorToken) MarshalJSON() ([]byte, error) {
	if c == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

func (c CursorToken) IsFirst() bool { return c == "" }

// Page is one catalog fetch. Pages replace each other in the view.
type Page struct {
	CursorIn  CursorToken
	Items     []Event
	CursorOut CursorToken
	HasNext   bool
}

// EventList is the wire shape of GET /events.
type EventList struct {
	Data       []Event     `json:"data"`
	HasNext    bool        `json:"has_next"`
	NextCursor CursorToken `json:"next_cursor"`
}
