package webclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/raysh454/convotap/internal/logging"
	"github.com/raysh454/convotap/internal/model"
)

// ErrNoSnapshot is returned by Latest when the daemon has nothing captured.
var ErrNoSnapshot = errors.New("no snapshot captured yet")

// Health mirrors the daemon's /healthz reply.
type Health struct {
	Status          string `json:"status"`
	TrackedTabs     int    `json:"tracked_tabs"`
	PendingRequests int    `json:"pending_requests"`
}

// Client calls the daemon API.
type Client struct {
	base   *url.URL
	wc     WebClient
	logger logging.Logger
}

// NewClient returns a client for the daemon at baseURL, e.g. http://127.0.0.1:7717.
func NewClient(baseURL string, wc WebClient, logger logging.Logger) (*Client, error) {
	if wc == nil {
		return nil, errors.New("webclient: nil web client")
	}
	if logger == nil {
		return nil, errors.New("webclient: nil logger")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse daemon url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported daemon url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("daemon url %q has no host", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return &Client{
		base:   u,
		wc:     wc,
		logger: logger.With(logging.Field{Key: "daemon", Value: u.Host}),
	}, nil
}

// BaseURL returns the daemon address.
func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path += path
	return u.String()
}

// Health fetches the daemon's liveness and capture counters.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.call(ctx, http.MethodGet, "/healthz", nil, &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

// Latest fetches the most recent snapshot.
func (c *Client) Latest(ctx context.Context) (*model.Snapshot, error) {
	var snap model.Snapshot
	err := c.call(ctx, http.MethodGet, "/latest", nil, &snap)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Tabs lists the tabs the daemon is attached to.
func (c *Client) Tabs(ctx context.Context) ([]model.TrackedTab, error) {
	var tabs []model.TrackedTab
	if err := c.call(ctx, http.MethodGet, "/tabs", nil, &tabs); err != nil {
		return nil, err
	}
	return tabs, nil
}

// CheckDebugger asks the daemon to re-check a tab and returns its status
// line. Empty arguments check the active tab.
func (c *Client) CheckDebugger(ctx context.Context, tabID, tabURL string) (string, error) {
	var reply struct {
		Status string `json:"status"`
	}
	body := model.DebuggerCheckRequest{TabID: tabID, TabURL: tabURL}
	if err := c.call(ctx, http.MethodPost, "/debugger/check", body, &reply); err != nil {
		return "", err
	}
	return reply.Status, nil
}

// Send posts a typed message and returns the daemon's reply. An error reply
// is returned as an error.
func (c *Client) Send(ctx context.Context, msg model.Message) (model.Message, error) {
	var reply model.Message
	err := c.call(ctx, http.MethodPost, "/messages", msg, &reply)
	if reply.Type == model.MessageError {
		return reply, replyError(reply)
	}
	if err != nil {
		return model.Message{}, err
	}
	return reply, nil
}

// StatusError is a non-2xx daemon reply.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Code, e.Message)
}

// call performs one JSON round trip. out is decoded for error replies too,
// so typed message errors reach the caller.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	req := &Request{Method: method, URL: c.endpoint(path), Headers: http.Header{}}
	req.Headers.Set("Accept", "application/json")
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		req.Body = b
		req.Headers.Set("Content-Type", "application/json")
	}

	resp, err := c.wc.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return fmt.Errorf("decode %s reply: %w", path, err)
		}
		return nil
	}

	if out != nil {
		_ = json.Unmarshal(resp.Body, out)
	}
	var er struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(resp.Body, &er)
	c.logger.Debug("daemon error reply",
		logging.Field{Key: "path", Value: path},
		logging.Field{Key: "status", Value: resp.StatusCode})
	return &StatusError{Code: resp.StatusCode, Message: er.Error}
}

func replyError(msg model.Message) error {
	var p model.ErrorPayload
	if err := msg.Decode(&p); err != nil || p.Error == "" {
		return errors.New("daemon replied with an error")
	}
	return errors.New(p.Error)
}
