package controller

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"tunefeed/backend"
	"tunefeed/config"
	"tunefeed/database"
	"tunefeed/models"
	"tunefeed/router"
	"tunefeed/sentryhelper"
	"tunefeed/session"
	"tunefeed/spotify"
)

var (
	ErrInvalidCustomURL = errors.New("invalid custom URL")
	ErrStateMismatch    = errors.New("login state mismatch")
)

var customURLPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,30}$`)

// NormalizeCustomURL validates a profile URL the same way the backend does
// and returns it lower-cased.
func NormalizeCustomURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !customURLPattern.MatchString(raw) {
		return "", ErrInvalidCustomURL
	}
	return strings.ToLower(raw), nil
}

type Settings struct {
	CacheTTL     time.Duration
	SessionTTL   time.Duration
	HistoryLimit int
}

func SettingsFromConfig(cfg *config.ConfigStruct) Settings {
	return Settings{
		CacheTTL:     cfg.Backend.CacheTTL(),
		SessionTTL:   cfg.Session.TTL(),
		HistoryLimit: cfg.Session.HistoryLimit,
	}
}

// Controller owns the route table and the session store, and loads data
// from the backend for the views it registers.
type Controller struct {
	Views    *router.Router
	Sessions *session.Store

	backend *backend.Client
	auth    *spotify.Authorizer
	cache   *responseCache
	logger  *log.Entry
}

func NewController(db *database.Database, client *backend.Client, auth *spotify.Authorizer, settings Settings) *Controller {
	c := &Controller{
		backend: client,
		auth:    auth,
		cache:   newResponseCache(db, settings.CacheTTL),
		logger:  log.WithFields(log.Fields{"module": "controller"}),
	}
	c.Views = router.New(c.notFoundView)
	c.registerViews()
	c.Sessions = session.NewStore(db, c.Views, settings.SessionTTL, settings.HistoryLimit)
	return c
}

// BeginLogin starts the Spotify round trip for s and returns the URL to
// send the visitor to. An empty customURL lets the backend fall back to
// the Spotify user id.
func (c *Controller) BeginLogin(s *session.Session, customURL string) (string, error) {
	if customURL != "" {
		normalized, err := NormalizeCustomURL(customURL)
		if err != nil {
			return "", err
		}
		customURL = normalized
	}
	state := s.BeginLogin(customURL)
	return c.auth.AuthURL(state), nil
}

// Login forwards the authorization code to the backend and binds the
// resulting user to a fresh session.
func (c *Controller) Login(ctx context.Context, s *session.Session, code, state string) (*session.Session, error) {
	span := sentry.StartSpan(ctx, "controller.login")
	defer span.Finish()

	customURL, ok := s.CompleteLogin(state)
	if !ok {
		span.Status = sentry.SpanStatusPermissionDenied
		return nil, ErrStateMismatch
	}

	result, err := c.backend.AuthCallback(span.Context(), models.AuthRequest{
		Code:        code,
		CustomURL:   customURL,
		RedirectURI: c.auth.RedirectURI(),
	})
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("failed to complete login: %w", err)
	}

	fresh, err := c.Sessions.Login(s, result.UserID)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	// a re-login may have changed what the backend holds for this user
	c.cache.forget(result.UserID)

	sentryhelper.AddBreadcrumb(ctx, &sentry.Breadcrumb{
		Category: "auth",
		Message:  "user logged in",
		Data:     map[string]interface{}{"user_id": result.UserID},
		Level:    sentry.LevelInfo,
	})
	span.Status = sentry.SpanStatusOK
	return fresh, nil
}

func (c *Controller) Logout(ctx context.Context, s *session.Session) error {
	userID := s.UserID()
	if err := c.Sessions.Logout(s); err != nil {
		sentryhelper.CaptureException(ctx, err)
		return fmt.Errorf("failed to delete session: %w", err)
	}
	c.logger.Infof("User %s logged out", userID)
	return nil
}

// Health reports whether the backend answers.
func (c *Controller) Health(ctx context.Context) error {
	return c.backend.Health(ctx)
}
