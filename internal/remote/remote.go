// Package remote implements the HTTP client for the care-record backend.
//
// The client covers the mutation endpoints the offline action queue delivers
// to, plus a cheap liveness probe the queue uses to decide between direct
// submission and deferral. Every mutation carries an Idempotency-Key header
// so a delivery retried after an ambiguous failure cannot create a duplicate
// record server-side.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/curanote/curanote/internal/resilience"
)

// ActionType enumerates the backend mutations the client can deliver.
type ActionType string

const (
	ActionCreateEntry    ActionType = "CreateEntry"
	ActionUpdateEntry    ActionType = "UpdateEntry"
	ActionApproveEntry   ActionType = "ApproveEntry"
	ActionRejectEntry    ActionType = "RejectEntry"
	ActionCreateResident ActionType = "CreateResident"
	ActionUpdateResident ActionType = "UpdateResident"
)

// ErrUnknownActionType is returned by [Client.Deliver] for an action type
// outside the known set.
var ErrUnknownActionType = errors.New("remote: unknown action type")

// Action is one mutation to deliver to the backend.
type Action struct {
	// Type selects the endpoint.
	Type ActionType

	// EntityID is the entry or resident ID for endpoints addressing an
	// existing entity. Empty for creations.
	EntityID string

	// Payload is the JSON request body.
	Payload json.RawMessage

	// IdempotencyKey deduplicates retried deliveries server-side.
	IdempotencyKey string
}

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. Default: a client with a 30s
// timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client talks to the care-record backend. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// New returns a [Client] for the backend at baseURL (no trailing slash).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Ping probes backend liveness. A reachable backend answering the health
// endpoint with a 2xx status counts as online; anything else is an error
// marked transient.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("remote: ping: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return resilience.AsTransient(fmt.Errorf("remote: ping: %w", err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resilience.AsTransient(fmt.Errorf("remote: ping: unexpected status %d", resp.StatusCode))
	}
	return nil
}

// Deliver submits one mutation to the backend. Network failures and 5xx
// responses come back marked transient so the queue retries them; 4xx
// responses are permanent.
func (c *Client) Deliver(ctx context.Context, action Action) error {
	method, path, err := endpoint(action)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(action.Payload))
	if err != nil {
		return fmt.Errorf("remote: %s: %w", action.Type, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if action.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", action.IdempotencyKey)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return resilience.AsTransient(fmt.Errorf("remote: %s: %w", action.Type, err))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return resilience.AsTransient(fmt.Errorf("remote: %s: status %d: %s",
			action.Type, resp.StatusCode, bytes.TrimSpace(body)))
	default:
		return fmt.Errorf("remote: %s: status %d: %s",
			action.Type, resp.StatusCode, bytes.TrimSpace(body))
	}
}

// endpoint maps an action to its backend method and path.
func endpoint(action Action) (method, path string, err error) {
	switch action.Type {
	case ActionCreateEntry:
		return http.MethodPost, "/api/v1/entries", nil
	case ActionUpdateEntry:
		return http.MethodPut, "/api/v1/entries/" + action.EntityID, nil
	case ActionApproveEntry:
		return http.MethodPost, "/api/v1/entries/" + action.EntityID + "/approve", nil
	case ActionRejectEntry:
		return http.MethodPost, "/api/v1/entries/" + action.EntityID + "/reject", nil
	case ActionCreateResident:
		return http.MethodPost, "/api/v1/residents", nil
	case ActionUpdateResident:
		return http.MethodPut, "/api/v1/residents/" + action.EntityID, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownActionType, action.Type)
	}
}
