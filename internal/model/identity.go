package model

import "fmt"

type Channel string

const (
	ChannelAttendee  Channel = "attendee"
	ChannelOrganizer Channel = "organizer"
)

// Channels lists every identity channel in a stable order.
var Channels = []Channel{ChannelAttendee, ChannelOrganizer}

func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelAttendee, ChannelOrganizer:
		return Channel(s), nil
	case "user":
		return ChannelAttendee, nil
	case "org", "organization":
		return ChannelOrganizer, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// Opposite returns the channel that cannot be active at the same time.
func (c Channel) Opposite() Channel {
	if c == ChannelAttendee {
		return ChannelOrganizer
	}
	return ChannelAttendee
}

func (c Channel) Valid() bool {
	return c == ChannelAttendee || c == ChannelOrganizer
}

// Identity is the profile summary returned by login.
type Identity struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

// DisplayName prefers the person name, then the organization name.
func (i Identity) DisplayName() string {
	if i.FullName != "" {
		return i.FullName
	}
	if i.Name != "" {
		return i.Name
	}
	return i.Email
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest covers both channels; attendees use first/last name,
// organizations use Name.
type RegisterRequest struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Password  string `json:"password"`
}
