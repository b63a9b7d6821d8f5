// Package api is the HTTP client for the calendar storage server. The client
// only ferries records back and forth; windowing, expansion, and edit scoping
// happen in the packages above it, and nothing is mutated locally when a call
// fails.
package api

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

	"github.com/mikaelstaldal/mycal/internal/contract"
)

// Service is the storage collaborator surface the commands talk to. Tests
// swap in a fake.
type Service interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]contract.Event, error)
	SearchEvents(ctx context.Context, query string) ([]contract.Event, error)
	GetEvent(ctx context.Context, id int64) (contract.Event, error)
	CreateEvent(ctx context.Context, req contract.CreateEventRequest) (contract.Event, error)
	// UpdateEvent with a nonempty instanceStart targets a single occurrence
	// of a recurring series; the server creates or updates the override.
	UpdateEvent(ctx context.Context, id int64, req contract.UpdateEventRequest, instanceStart string) (contract.Event, error)
	DeleteEvent(ctx context.Context, id int64, instanceStart string) error
}

// ServerError is a non-2xx response from the server, carrying its message.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// NotFound reports whether err is a 404 from the server.
func NotFound(err error) bool {
	se, ok := err.(*ServerError)
	return ok && se.StatusCode == http.StatusNotFound
}

// Config carries the connection settings for a Client.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client talks JSON to /api/v1/events. Every mutating request carries a
// fresh X-Request-Id so server logs can correlate idempotent retries.
type Client struct {
	base     string
	username string
	password string
	http     *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
	}
}

var _ Service = (*Client)(nil)

func (c *Client) ListEvents(ctx context.Context, from, to time.Time) ([]contract.Event, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))
	var events []contract.Event
	if err := c.call(ctx, http.MethodGet, "/api/v1/events", q, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) SearchEvents(ctx context.Context, query string) ([]contract.Event, error) {
	q := url.Values{}
	q.Set("q", query)
	var events []contract.Event
	if err := c.call(ctx, http.MethodGet, "/api/v1/events/search", q, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) GetEvent(ctx context.Context, id int64) (contract.Event, error) {
	var ev contract.Event
	if err := c.call(ctx, http.MethodGet, c.eventPath(id), nil, nil, &ev); err != nil {
		return contract.Event{}, err
	}
	return ev, nil
}

func (c *Client) CreateEvent(ctx context.Context, req contract.CreateEventRequest) (contract.Event, error) {
	var ev contract.Event
	if err := c.call(ctx, http.MethodPost, "/api/v1/events", nil, req, &ev); err != nil {
		return contract.Event{}, err
	}
	return ev, nil
}

func (c *Client) UpdateEvent(ctx context.Context, id int64, req contract.UpdateEventRequest, instanceStart string) (contract.Event, error) {
	q := url.Values{}
	if instanceStart != "" {
		q.Set("instance_start", instanceStart)
	}
	var ev contract.Event
	if err := c.call(ctx, http.MethodPut, c.eventPath(id), q, req, &ev); err != nil {
		return contract.Event{}, err
	}
	return ev, nil
}

func (c *Client) DeleteEvent(ctx context.Context, id int64, instanceStart string) error {
	q := url.Values{}
	if instanceStart != "" {
		q.Set("instance_start", instanceStart)
	}
	return c.call(ctx, http.MethodDelete, c.eventPath(id), q, nil, nil)
}

func (c *Client) eventPath(id int64) string {
	return "/api/v1/events/" + strconv.FormatInt(id, 10)
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("X-Request-Id", uuid.NewString())
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calendar server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.serverError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// serverError extracts {"error": "..."} when the server sends one, falling
// back to the raw body.
func (c *Client) serverError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(data, &payload); err == nil {
		msg = payload.Error
	}
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	return &ServerError{StatusCode: resp.StatusCode, Message: msg}
}
