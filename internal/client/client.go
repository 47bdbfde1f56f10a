// Package client talks to the daemon's hub ingress API. Session processes
// link against it to broadcast, share notes and report file activity.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/VentureIA/chorus/internal/intel"
	"github.com/VentureIA/chorus/internal/webaccess"
)

// DefaultTimeout bounds each request.
const DefaultTimeout = 5 * time.Second

// ServerError is a non-2xx answer from the daemon.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (HTTP %d): %s", e.Status, e.Body)
}

// Validation decodes the hub's field error from a 400 response, if that is
// what the body holds.
func (e *ServerError) Validation() (*intel.ValidationError, bool) {
	if e.Status != http.StatusBadRequest {
		return nil, false
	}
	var v intel.ValidationError
	if json.Unmarshal([]byte(e.Body), &v) != nil || v.Field == "" {
		return nil, false
	}
	return &v, true
}

// Client carries the caller's identity so requests are attributed to the
// right session.
type Client struct {
	base       string
	http       *http.Client
	sessionID  uint32
	instanceID string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSession sets the session and instance ids sent with every write.
func WithSession(sessionID uint32, instanceID string) Option {
	return func(c *Client) {
		c.sessionID = sessionID
		c.instanceID = instanceID
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SessionID() uint32 { return c.sessionID }

func (c *Client) Broadcast(ctx context.Context, category, message string, metadata json.RawMessage) (intel.BroadcastMessage, error) {
	var out intel.BroadcastMessage
	err := c.do(ctx, http.MethodPost, "/broadcast", intel.BroadcastRequest{
		SessionID:  c.sessionID,
		InstanceID: c.instanceID,
		Category:   category,
		Message:    message,
		Metadata:   metadata,
	}, &out)
	return out, err
}

// Messages returns broadcasts from every session except this one.
func (c *Client) Messages(ctx context.Context) ([]intel.BroadcastMessage, error) {
	var out []intel.BroadcastMessage
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/messages/%d", c.sessionID), nil, &out)
	return out, err
}

func (c *Client) AllMessages(ctx context.Context) ([]intel.BroadcastMessage, error) {
	var out []intel.BroadcastMessage
	err := c.do(ctx, http.MethodGet, "/messages", nil, &out)
	return out, err
}

func (c *Client) WriteScratchpad(ctx context.Context, category, title, content string) (intel.ScratchpadEntry, error) {
	var out intel.ScratchpadEntry
	err := c.do(ctx, http.MethodPost, "/scratchpad", intel.ScratchpadWriteRequest{
		SessionID:  c.sessionID,
		InstanceID: c.instanceID,
		Category:   category,
		Title:      title,
		Content:    content,
	}, &out)
	return out, err
}

func (c *Client) ReadScratchpad(ctx context.Context) ([]intel.ScratchpadEntry, error) {
	var out []intel.ScratchpadEntry
	err := c.do(ctx, http.MethodGet, "/scratchpad", nil, &out)
	return out, err
}

func (c *Client) ClearScratchpad(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/scratchpad", nil, nil)
}

// ReportFile records activity on path and returns any conflict it caused.
func (c *Client) ReportFile(ctx context.Context, path, action string) ([]intel.FileConflict, error) {
	var out []intel.FileConflict
	err := c.do(ctx, http.MethodPost, "/file-activity", intel.FileActivityRequest{
		SessionID:  c.sessionID,
		InstanceID: c.instanceID,
		FilePath:   path,
		Action:     action,
	}, &out)
	return out, err
}

func (c *Client) Conflicts(ctx context.Context) ([]intel.FileConflict, error) {
	var out []intel.FileConflict
	err := c.do(ctx, http.MethodGet, "/conflicts", nil, &out)
	return out, err
}

// Export fetches a rendered snapshot in one of json, csv or yaml.
func (c *Client) Export(ctx context.Context, format string) ([]byte, error) {
	var out []byte
	err := c.do(ctx, http.MethodGet, "/export?format="+url.QueryEscape(format), nil, &out)
	return out, err
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) IssueToken(ctx context.Context) (webaccess.TokenResult, error) {
	var out webaccess.TokenResult
	err := c.do(ctx, http.MethodPost, "/web-access/token", nil, &out)
	return out, err
}

func (c *Client) RevokeToken(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/web-access/token", nil, nil)
}

func (c *Client) WebAccessStatus(ctx context.Context) (webaccess.Status, error) {
	var out webaccess.Status
	err := c.do(ctx, http.MethodGet, "/web-access/status", nil, &out)
	return out, err
}

// do sends body as JSON and decodes the response into out. A *[]byte out
// receives the raw body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServerError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	switch v := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*v = data
		return nil
	default:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}
