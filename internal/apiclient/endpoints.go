package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"ticketone/sync/internal/apperr"
	"ticketone/sync/internal/model"
)

type LoginResult struct {
	Token    string
	Identity model.Identity
}

func (c *Client) Login(ctx context.Context, channel model.Channel, req model.LoginRequest) (LoginResult, error) {
	var resp struct {
		Data struct {
			Token string `json:"token"`
			model.Identity
		} `json:"data"`
	}
	err := c.do(ctx, call{
		op:     "login",
		method: http.MethodPost,
		path:   "/auth/" + string(channel) + "/login",
		body:   req,
		out:    &resp,
	})
	if err != nil {
		return LoginResult{}, err
	}
	if resp.Data.Token == "" {
		return LoginResult{}, fmt.Errorf("apiclient: login response carries no token")
	}
	return LoginResult{Token: resp.Data.Token, Identity: resp.Data.Identity}, nil
}

// Register returns an *apperr.APIError with status 409 when the email is
// already registered on channel.
func (c *Client) Register(ctx context.Context, channel model.Channel, req model.RegisterRequest) error {
	return c.do(ctx, call{
		op:     "register",
		method: http.MethodPost,
		path:   "/auth/" + string(channel) + "/register",
		body:   req,
	})
}

func (c *Client) ListEvents(ctx context.Context, cursor model.CursorToken, limit int) (model.Page, error) {
	query := url.Values{}
	if !cursor.IsFirst() {
		query.Set("cursor", string(cursor))
	}
	query.Set("limit", strconv.Itoa(limit))

	var resp model.EventList
	if err := c.do(ctx, call{op: "list events", method: http.MethodGet, path: "/events", query: query, out: &resp}); err != nil {
		return model.Page{}, err
	}
	return model.Page{
		CursorIn:  cursor,
		Items:     resp.Data,
		CursorOut: resp.NextCursor,
		HasNext:   resp.HasNext,
	}, nil
}

func (c *Client) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	var resp struct {
		Data model.Event `json:"data"`
	}
	err := c.do(ctx, call{op: "get event", method: http.MethodGet, path: "/event/" + strconv.FormatInt(id, 10), out: &resp})
	return resp.Data, err
}

func (c *Client) EventImageURL(ctx context.Context, key string) (string, error) {
	var resp struct {
		ImageURL string `json:"imageUrl"`
	}
	err := c.do(ctx, call{
		op:     "event image",
		method: http.MethodGet,
		path:   "/event/image",
		query:  url.Values{"key": {key}},
		out:    &resp,
	})
	return resp.ImageURL, err
}

// UpcomingEvents lists events in city other than exclude.
func (c *Client) UpcomingEvents(ctx context.Context, city string, exclude int64) ([]model.Event, error) {
	query := url.Values{"city": {city}}
	if exclude > 0 {
		query.Set("exclude", strconv.FormatInt(exclude, 10))
	}
	var resp struct {
		Data []model.Event `json:"data"`
	}
	err := c.do(ctx, call{op: "upcoming events", method: http.MethodGet, path: "/events/upcoming", query: query, out: &resp})
	return resp.Data, err
}

func (c *Client) MyEvents(ctx context.Context) ([]model.Event, error) {
	var resp struct {
		Data []model.Event `json:"data"`
	}
	err := c.do(ctx, call{
		op:      "my events",
		method:  http.MethodGet,
		path:    "/organization/my-events",
		channel: model.ChannelOrganizer,
		out:     &resp,
	})
	return resp.Data, err
}

func (c *Client) UpdateEvent(ctx context.Context, id int64, update model.EventUpdate) error {
	return c.do(ctx, call{
		op:      "update event",
		method:  http.MethodPut,
		path:    "/update/event/" + strconv.FormatInt(id, 10),
		channel: model.ChannelOrganizer,
		body:    update,
	})
}

func (c *Client) DeleteEvent(ctx context.Context, id int64) error {
	return c.do(ctx, call{
		op:      "delete event",
		method:  http.MethodPut,
		path:    "/delete/event/" + strconv.FormatInt(id, 10),
		channel: model.ChannelOrganizer,
	})
}

// Reservation is a one-time write location for an event image.
type Reservation struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"presignKey"`
}

func (c *Client) ReserveUpload(ctx context.Context, fileName, fileType string) (Reservation, error) {
	var resp Reservation
	err := c.do(ctx, call{
		op:      "reserve upload",
		method:  http.MethodPost,
		path:    "/event/image/upload-url",
		channel: model.ChannelOrganizer,
		body:    map[string]string{"fileName": fileName, "fileType": fileType},
		out:     &resp,
	})
	if err != nil {
		return Reservation{}, err
	}
	if resp.UploadURL == "" || resp.Key == "" {
		return Reservation{}, &apperr.APIError{Op: "reserve upload", Status: http.StatusOK, Message: "incomplete upload reservation"}
	}
	return resp, nil
}

// PutObject sends content straight to a reserved storage URL. The URL is
// presigned, so no credential is attached.
func (c *Client) PutObject(ctx context.Context, uploadURL, contentType string, content []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("apiclient: build upload request: %w", err)
	}
	req.ContentLength = int64(len(content))
	req.Header.Set("Content-Type", contentType)

	body, status, err := c.send("upload object", req)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &apperr.APIError{Op: "upload object", Status: status, Message: errorMessage(body)}
	}
	return nil
}

func (c *Client) CreateEvent(ctx context.Context, input model.EventInput) (model.Event, error) {
	var resp struct {
		Data model.Event `json:"data"`
	}
	err := c.do(ctx, call{
		op:      "create event",
		method:  http.MethodPost,
		path:    "/create-event",
		channel: model.ChannelOrganizer,
		body:    input,
		out:     &resp,
	})
	return resp.Data, err
}

func (c *Client) Bookings(ctx context.Context) (model.BookingList, error) {
	var resp model.BookingList
	err := c.do(ctx, call{
		op:      "list bookings",
		method:  http.MethodGet,
		path:    "/user/bookings",
		channel: model.ChannelAttendee,
		out:     &resp,
	})
	return resp, err
}

// CancelBooking treats every 2xx as a successful cancellation; the body
// says whether it had already happened.
func (c *Client) CancelBooking(ctx context.Context, id int64) (model.CancelResult, error) {
	var resp model.CancelResult
	err := c.do(ctx, call{
		op:      "cancel booking",
		method:  http.MethodPut,
		path:    "/booking/" + strconv.FormatInt(id, 10),
		channel: model.ChannelAttendee,
		out:     &resp,
	})
	if err != nil {
		return model.CancelResult{}, err
	}
	resp.Cancelled = true
	return resp, nil
}

func (c *Client) TicketURL(ctx context.Context, bookingID int64) (string, error) {
	var resp struct {
		Data string `json:"data"`
	}
	err := c.do(ctx, call{
		op:      "ticket",
		method:  http.MethodGet,
		path:    "/pdf/booking/" + strconv.FormatInt(bookingID, 10),
		channel: model.ChannelAttendee,
		out:     &resp,
	})
	return resp.Data, err
}

func (c *Client) BookSeats(ctx context.Context, eventID int64, seats int64) (model.BookSeatsResult, error) {
	var resp struct {
		Data model.BookSeatsResult `json:"data"`
	}
	err := c.do(ctx, call{
		op:      "book seats",
		method:  http.MethodPost,
		path:    "/book-seats/" + strconv.FormatInt(eventID, 10),
		channel: model.ChannelAttendee,
		body:    model.BookSeatsRequest{Seats: seats},
		out:     &resp,
	})
	return resp.Data, err
}
