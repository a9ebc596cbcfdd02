package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	sentry "github.com/getsentry/sentry-go"
	"golang.org/x/sync/errgroup"

	"tunefeed/backend"
	"tunefeed/models"
	"tunefeed/pages"
	"tunefeed/spotify"
)

// LoadActivity fetches everything the dashboard and profile show for id,
// which may be a custom URL or a Spotify user id. Only a failed user
// lookup is an error; a failing section is recorded in Activity.Errors and
// the rest of the page still renders.
func (c *Controller) LoadActivity(ctx context.Context, id string) (models.Activity, error) {
	span := sentry.StartSpan(ctx, "controller.activity")
	span.Description = id
	defer span.Finish()
	ctx = span.Context()

	user, _, err := cached(ctx, c.cache, id, kindUser, func(ctx context.Context) (*models.User, error) {
		u, err := c.backend.GetUser(ctx, id)
		if err == nil {
			c.cache.storeAliases(id, u)
		}
		return u, err
	})
	if errors.Is(err, backend.ErrNotFound) {
		span.Status = sentry.SpanStatusNotFound
		return models.Activity{}, err
	}
	if err != nil {
		span.Status = sentry.SpanStatusUnavailable
		return models.Activity{}, fmt.Errorf("failed to load user %s: %w", id, err)
	}

	activity := models.Activity{
		User:   *user,
		Errors: make(map[string]error),
		Stale:  make(map[string]bool),
	}
	var mu sync.Mutex
	record := func(section string, stale bool, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			c.logger.WithField("user", user.ID).Warnf("Failed to load %s: %v", section, err)
			activity.Errors[section] = err
		}
		if stale {
			activity.Stale[section] = true
		}
	}

	var g errgroup.Group
	g.Go(func() error {
		np, err := c.backend.CurrentlyPlaying(ctx, user.ID)
		record(pages.SectionNowPlaying, false, err)
		if err == nil {
			mu.Lock()
			activity.NowPlaying = np
			mu.Unlock()
		}
		return nil
	})
	g.Go(func() error {
		tracks, stale, err := cached(ctx, c.cache, user.ID, kindRecentTracks, func(ctx context.Context) ([]models.RecentTrack, error) {
			return c.backend.RecentTracks(ctx, user.ID)
		})
		record(pages.SectionRecentTracks, stale, err)
		mu.Lock()
		activity.RecentTracks = tracks
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		tracks, stale, err := cached(ctx, c.cache, user.ID, kindTopTracks, func(ctx context.Context) ([]models.TopTrack, error) {
			return c.backend.TopTracks(ctx, user.ID)
		})
		record(pages.SectionTopTracks, stale, err)
		mu.Lock()
		activity.TopTracks = tracks
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		artists, stale, err := cached(ctx, c.cache, user.ID, kindTopArtists, func(ctx context.Context) ([]models.TopArtist, error) {
			return c.backend.TopArtists(ctx, user.ID)
		})
		record(pages.SectionTopArtists, stale, err)
		mu.Lock()
		activity.TopArtists = artists
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		playlists, stale, err := cached(ctx, c.cache, user.ID, kindPlaylists, func(ctx context.Context) ([]models.Playlist, error) {
			return c.backend.Playlists(ctx, user.ID)
		})
		record(pages.SectionPlaylists, stale, err)
		mu.Lock()
		activity.Playlists = playlists
		mu.Unlock()
		return nil
	})
	_ = g.Wait()

	if len(activity.Errors) > 0 {
		span.Status = sentry.SpanStatusUnavailable
	} else {
		span.Status = sentry.SpanStatusOK
	}
	return activity, nil
}

func (c *Controller) SharedPlaylist(ctx context.Context, code string) (*models.PlaylistDetail, error) {
	return c.backend.SharedPlaylist(ctx, code)
}

func (c *Controller) Search(ctx context.Context, query string) ([]models.UserSummary, error) {
	return c.backend.SearchUsers(ctx, strings.TrimSpace(query))
}

// CheckURL rejects malformed candidates locally and asks the backend about
// the rest.
func (c *Controller) CheckURL(ctx context.Context, candidate string) (*models.URLAvailability, error) {
	normalized, err := NormalizeCustomURL(candidate)
	if err != nil {
		return &models.URLAvailability{Available: false, Reason: "Invalid URL format"}, nil
	}
	return c.backend.CheckURL(ctx, normalized)
}

// ProfileFromQuery recognises a pasted open.spotify.com user link and
// returns the user id it points at.
func ProfileFromQuery(query string) (string, bool) {
	query = strings.TrimSpace(query)
	if !strings.HasPrefix(query, "https://open.spotify.com/") {
		return "", false
	}
	req, err := spotify.ParseSpotifyURL(query)
	if err != nil || req.UserID == "" {
		return "", false
	}
	return string(req.UserID), true
}
