package origin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/archivist/internal/model"
)

const (
	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultRetryCooldown is the fixed wait before the one retry of a
	// transient failure.
	DefaultRetryCooldown = 2 * time.Second

	// maxBodyBytes caps how much of a response is read.
	maxBodyBytes = 64 << 20
)

// Client is an Origin backed by the remote service's HTTP API.
//
// Routes, relative to the base URL:
//
//	user/{handle}/info
//	userbyid/{id}
//	tweet/{id}
//	user/{handle}/tweets
//	conversation/{id}
//	user/{handle}/tweets-since/{timestamp}
//	user/{handle}/has_tweeted_since/{timestamp}
//
// Timestamps use model.TimestampLayout.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cooldown   time.Duration
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The client's own
// Timeout is used as-is.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-attempt timeout.
//
// Default: 30s (DefaultTimeout)
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetryCooldown sets the wait before retrying a transient failure.
//
// Default: 2s (DefaultRetryCooldown)
// Use WithRetryCooldown(0) in tests.
func WithRetryCooldown(d time.Duration) ClientOption {
	return func(c *Client) {
		c.cooldown = d
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a Client for the origin rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("origin: invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("origin: base URL %q must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		cooldown:   DefaultRetryCooldown,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchUser implements Origin.
func (c *Client) FetchUser(ctx context.Context, id uint64) (model.User, error) {
	target := formatID(id)
	var u *model.User
	if err := c.get(ctx, OpFetchUser, target, "userbyid/"+target, &u); err != nil {
		return model.User{}, err
	}
	return checkUser(OpFetchUser, target, u)
}

// FetchUserByHandle implements Origin.
func (c *Client) FetchUserByHandle(ctx context.Context, handle string) (model.User, error) {
	target := "@" + handle
	var u *model.User
	if err := c.get(ctx, OpFetchUserByHandle, target, "user/"+url.PathEscape(handle)+"/info", &u); err != nil {
		return model.User{}, err
	}
	return checkUser(OpFetchUserByHandle, target, u)
}

// FetchPost implements Origin.
func (c *Client) FetchPost(ctx context.Context, id uint64) (model.Post, error) {
	target := formatID(id)
	var p *model.Post
	if err := c.get(ctx, OpFetchPost, target, "tweet/"+target, &p); err != nil {
		return model.Post{}, err
	}
	if p == nil {
		return model.Post{}, NotFound(OpFetchPost, target)
	}
	if err := p.Validate(); err != nil {
		return model.Post{}, Malformed(OpFetchPost, target, err)
	}
	if p.ID != id {
		return model.Post{}, Malformed(OpFetchPost, target, fmt.Errorf("response is post %d", p.ID))
	}
	return *p, nil
}

// FetchTimeline implements Origin.
func (c *Client) FetchTimeline(ctx context.Context, handle string) ([]model.Post, error) {
	return c.getPosts(ctx, OpFetchTimeline, "@"+handle, "user/"+url.PathEscape(handle)+"/tweets")
}

// FetchConversation implements Origin.
func (c *Client) FetchConversation(ctx context.Context, rootID uint64) ([]model.Post, error) {
	target := formatID(rootID)
	return c.getPosts(ctx, OpFetchConversation, target, "conversation/"+target)
}

// FetchPostsSince implements Origin.
func (c *Client) FetchPostsSince(ctx context.Context, handle string, since time.Time) ([]model.Post, error) {
	ts := model.FormatTimestamp(since)
	path := "user/" + url.PathEscape(handle) + "/tweets-since/" + url.PathEscape(ts)
	return c.getPosts(ctx, OpFetchPostsSince, "@"+handle+" since "+ts, path)
}

// HasPostedSince implements Origin.
func (c *Client) HasPostedSince(ctx context.Context, handle string, since time.Time) (bool, error) {
	ts := model.FormatTimestamp(since)
	target := "@" + handle + " since " + ts
	path := "user/" + url.PathEscape(handle) + "/has_tweeted_since/" + url.PathEscape(ts)

	var posted *bool
	if err := c.get(ctx, OpHasPostedSince, target, path, &posted); err != nil {
		return false, err
	}
	if posted == nil {
		return false, Malformed(OpHasPostedSince, target, errors.New("null response"))
	}
	return *posted, nil
}

// getPosts fetches and validates a list of posts. A null body is an empty list.
func (c *Client) getPosts(ctx context.Context, op, target, path string) ([]model.Post, error) {
	var posts []model.Post
	if err := c.get(ctx, op, target, path, &posts); err != nil {
		return nil, err
	}
	if posts == nil {
		return []model.Post{}, nil
	}
	for i := range posts {
		if err := posts[i].Validate(); err != nil {
			return nil, Malformed(op, target, fmt.Errorf("item %d: %w", i, err))
		}
	}
	return posts, nil
}

// get performs one logical request: an attempt, and on a transient failure
// one more attempt after the cooldown.
func (c *Client) get(ctx context.Context, op, target, path string, out any) error {
	err := c.attempt(ctx, op, target, path, out)
	if !IsTransient(err) {
		return err
	}

	c.logger.Warn("origin request failed, retrying",
		"op", op,
		"target", target,
		"cooldown", c.cooldown,
		"error", err,
	)

	if c.cooldown > 0 {
		timer := time.NewTimer(c.cooldown)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Transient(op, target, ctx.Err())
		case <-timer.C:
		}
	}

	return c.attempt(ctx, op, target, path, out)
}

// attempt performs a single HTTP GET and decodes a JSON body into out.
func (c *Client) attempt(ctx context.Context, op, target, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+path, nil)
	if err != nil {
		return Malformed(op, target, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("origin request", "op", op, "target", target, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Transient(op, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Transient(op, target, fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return NotFound(op, target)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return Transient(op, target, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Malformed(op, target, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return Malformed(op, target, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func checkUser(op, target string, u *model.User) (model.User, error) {
	if u == nil {
		return model.User{}, NotFound(op, target)
	}
	if err := u.Validate(); err != nil {
		return model.User{}, Malformed(op, target, err)
	}
	return *u, nil
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
