// Package wsgateway talks to notesd: JSON over HTTP for reads and
// mutations, one websocket per change feed.
package wsgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Makepad-fr/notes/internal/api"
	"github.com/Makepad-fr/notes/internal/gateway"
	"github.com/Makepad-fr/notes/internal/model"
)

// ErrUnauthorized is returned when notesd rejects the bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// Client is a gateway.Gateway backed by a notesd server.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	dialer *websocket.Dialer
	log    *zap.Logger
}

var _ gateway.Gateway = (*Client)(nil)

type Option func(*Client)

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option { return func(c *Client) { c.token = token } }

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithDialer(d *websocket.Dialer) Option { return func(c *Client) { c.dialer = d } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// New returns a client for the server at baseURL (http or https).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 30 * time.Second},
		dialer: websocket.DefaultDialer,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ListAll(ctx context.Context) ([]model.Note, error) {
	var notes []model.Note
	if err := c.do(ctx, http.MethodGet, api.PathNotes, nil, &notes); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

func (c *Client) Create(ctx context.Context, note model.Note) error {
	if err := c.do(ctx, http.MethodPost, api.PathNotes, note, nil); err != nil {
		return fmt.Errorf("create note %s: %w", note.ID, err)
	}
	return nil
}

func (c *Client) Update(ctx context.Context, id string, patch model.NotePatch) error {
	if err := c.do(ctx, http.MethodPatch, notePath(id), patch, nil); err != nil {
		return fmt.Errorf("update note %s: %w", id, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, notePath(id), nil, nil); err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	return nil
}

func (c *Client) SubscribeCreations(ctx context.Context, handler func(model.Note)) (gateway.Subscription, error) {
	return c.subscribe(ctx, api.PathFeedCreations, func(p []byte) error {
		var n model.Note
		if err := json.Unmarshal(p, &n); err != nil {
			return err
		}
		handler(n)
		return nil
	})
}

func (c *Client) SubscribeDeletions(ctx context.Context, handler func(string)) (gateway.Subscription, error) {
	return c.subscribe(ctx, api.PathFeedDeletions, func(p []byte) error {
		var d api.Deleted
		if err := json.Unmarshal(p, &d); err != nil {
			return err
		}
		handler(d.ID)
		return nil
	})
}

func notePath(id string) string {
	return strings.Replace(api.PathNote, "{id}", url.PathEscape(id), 1)
}

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("json marshal: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return err
	}
	req.Header = c.header()
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	return nil
}

// statusError maps non-2xx responses onto gateway errors.
func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var e api.Error
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
	msg := e.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, gateway.ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", msg, gateway.ErrConflict)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w", msg, ErrUnauthorized)
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
}
