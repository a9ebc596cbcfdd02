// Package backend talks to the activity service that owns users, listening
// history and playlists.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"tunefeed/config"
	"tunefeed/models"
)

var ErrNotFound = errors.New("not found")

// StatusError is returned for non-2xx responses other than 404.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// Retryable reports whether another attempt may succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryPolicy
	logger     *log.Entry
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) { c.retry = policy }
}

func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1) }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		retry:      DefaultRetryPolicy,
		logger:     log.WithFields(log.Fields{"module": "backend"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a client from the global backend settings.
func NewFromConfig(cfg config.BackendConfig) *Client {
	return New(cfg.BaseURL,
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout()}),
		WithRateLimit(cfg.RequestsPerSecond),
	)
}

type errorBody struct {
	Detail string `json:"detail"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	span := sentry.StartSpan(ctx, "backend.request")
	span.Description = method + " " + path
	span.SetTag("http.method", method)
	defer span.Finish()

	if err := c.limiter.Wait(ctx); err != nil {
		span.Status = sentry.SpanStatusCanceled
		return err
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			span.Status = sentry.SpanStatusInvalidArgument
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		span.Status = sentry.SpanStatusInvalidArgument
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.Status = sentry.SpanStatusUnavailable
		return err
	}
	defer resp.Body.Close()

	span.SetData("http.status_code", resp.StatusCode)

	if resp.StatusCode == http.StatusNotFound {
		span.Status = sentry.SpanStatusNotFound
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.Status = sentry.SpanStatusInternalError
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil {
			statusErr.Detail = eb.Detail
		}
		return statusErr
	}

	span.Status = sentry.SpanStatusOK
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.retry.Do(ctx, func() error {
		return c.do(ctx, http.MethodGet, path, nil, out)
	}, func(attempt int, err error) {
		c.logger.Warnf("GET %s failed (attempt %d): %v", path, attempt, err)
	})
}

func userPath(id string, suffix string) string {
	return "/users/" + url.PathEscape(id) + suffix
}

// GetUser looks a user up by custom URL or Spotify id.
func (c *Client) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := c.get(ctx, userPath(id, ""), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) CurrentlyPlaying(ctx context.Context, id string) (*models.NowPlaying, error) {
	var np models.NowPlaying
	if err := c.get(ctx, userPath(id, "/currently-playing"), &np); err != nil {
		return nil, err
	}
	return &np, nil
}

func (c *Client) RecentTracks(ctx context.Context, id string) ([]models.RecentTrack, error) {
	tracks := []models.RecentTrack{}
	if err := c.get(ctx, userPath(id, "/recent-tracks"), &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

func (c *Client) TopTracks(ctx context.Context, id string) ([]models.TopTrack, error) {
	tracks := []models.TopTrack{}
	if err := c.get(ctx, userPath(id, "/top-tracks"), &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

func (c *Client) TopArtists(ctx context.Context, id string) ([]models.TopArtist, error) {
	artists := []models.TopArtist{}
	if err := c.get(ctx, userPath(id, "/top-artists"), &artists); err != nil {
		return nil, err
	}
	return artists, nil
}

func (c *Client) Playlists(ctx context.Context, id string) ([]models.Playlist, error) {
	playlists := []models.Playlist{}
	if err := c.get(ctx, userPath(id, "/playlists"), &playlists); err != nil {
		return nil, err
	}
	return playlists, nil
}

// SearchUsers returns no results without calling the backend for an empty
// query.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]models.UserSummary, error) {
	users := []models.UserSummary{}
	if query == "" {
		return users, nil
	}
	if err := c.get(ctx, "/users/search?query="+url.QueryEscape(query), &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) SharedPlaylist(ctx context.Context, code string) (*models.PlaylistDetail, error) {
	var detail models.PlaylistDetail
	if err := c.get(ctx, "/playlists/"+url.PathEscape(code), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) CheckURL(ctx context.Context, customURL string) (*models.URLAvailability, error) {
	var availability models.URLAvailability
	if err := c.get(ctx, "/check-url/"+url.PathEscape(customURL), &availability); err != nil {
		return nil, err
	}
	return &availability, nil
}

// AuthCallback hands a Spotify authorization code to the backend. It is not
// retried: codes are single use.
func (c *Client) AuthCallback(ctx context.Context, req models.AuthRequest) (*models.AuthResult, error) {
	var result models.AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/callback", req, &result); err != nil {
		return nil, err
	}
	if !result.Success || result.UserID == "" {
		return nil, errors.New("backend rejected authorization code")
	}
	return &result, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
