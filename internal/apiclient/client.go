// Package apiclient talks to the ticketing HTTP API and to the storage
// URLs it hands out for uploads.
//
// Authenticated calls take the bearer credential of the channel they act
// for from the session store. A call made without a session fails with
// *apperr.AuthRequiredError before any network I/O; a 401 response
// expires that channel's session.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ticketone/sync/internal/apperr"
	"ticketone/sync/internal/log"
	"ticketone/sync/internal/model"
	"ticketone/sync/internal/monitoring"
	"ticketone/sync/internal/session"
)

const (
	RequestIDHeader = "X-Request-Id"
	maxResponseSize = 4 << 20
)

// Sessions is the part of the session store the client needs.
type Sessions interface {
	Current(channel model.Channel) session.State
	Expire(channel model.Channel, credential string)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   Sessions
	logger     zerolog.Logger
}

func New(cfg Config, sessions Sessions) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("apiclient: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("apiclient: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		sessions:   sessions,
		logger:     log.Component(cfg.Logger, "apiclient"),
	}, nil
}

// call describes one JSON round trip to the API.
type call struct {
	op      string
	method  string
	path    string
	query   url.Values
	channel model.Channel // empty for anonymous calls
	body    any
	out     any
}

func (c *Client) do(ctx context.Context, cl call) error {
	var credential string
	if cl.channel != "" {
		state := c.sessions.Current(cl.channel)
		if !state.IsLoggedIn {
			return &apperr.AuthRequiredError{Channel: string(cl.channel)}
		}
		credential = state.Credential
	}

	requestURL := c.baseURL + cl.path
	if len(cl.query) > 0 {
		requestURL += "?" + cl.query.Encode()
	}

	var bodyReader io.Reader
	if cl.body != nil {
		encoded, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("apiclient: encode %s request: %w", cl.op, err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, requestURL, bodyReader)
	if err != nil {
		return fmt.Errorf("apiclient: build %s request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	body, status, err := c.send(cl.op, req)
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		apiErr := &apperr.APIError{Op: cl.op, Status: status, Message: errorMessage(body)}
		if status == http.StatusUnauthorized && cl.channel != "" {
			c.logger.Info().Str("channel", string(cl.channel)).Str("op", cl.op).Msg("credential rejected, expiring session")
			c.sessions.Expire(cl.channel, credential)
		}
		return apiErr
	}

	if cl.out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, cl.out); err != nil {
		return fmt.Errorf("apiclient: decode %s response: %w", cl.op, err)
	}
	return nil
}

// send performs req and returns the (size-limited) body. Transport
// failures come back as *apperr.NetworkError.
func (c *Client) send(op string, req *http.Request) ([]byte, int, error) {
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		monitoring.TrackAPIRequest(op, "network", time.Since(start))
		c.logger.Warn().Err(err).Str("op", op).Str("request_id", requestID).Msg("request failed")
		return nil, 0, &apperr.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, &apperr.NetworkError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	elapsed := time.Since(start)
	monitoring.TrackAPIRequest(op, strconv.Itoa(resp.StatusCode/100)+"xx", elapsed)
	c.logger.Debug().
		Str("op", op).
		Str("method", req.Method).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("api request")

	return body, resp.StatusCode, nil
}

// errorMessage extracts {"error": "..."} or {"message": "..."} from a
// failed response.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}
