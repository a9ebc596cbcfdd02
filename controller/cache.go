package controller

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"tunefeed/backend"
	"tunefeed/database"
	"tunefeed/models"
)

// Cache kinds, one row per (user, kind).
const (
	kindUser         = "user"
	kindRecentTracks = "recent-tracks"
	kindTopTracks    = "top-tracks"
	kindTopArtists   = "top-artists"
	kindPlaylists    = "playlists"
)

// responseCache keeps the last successful backend response per user and
// kind. Entries younger than ttl are served without calling the backend;
// older ones are only used when a fetch fails.
type responseCache struct {
	db     *database.Database
	ttl    time.Duration
	group  singleflight.Group
	now    func() time.Time
	logger *log.Entry
}

func newResponseCache(db *database.Database, ttl time.Duration) *responseCache {
	return &responseCache{
		db:     db,
		ttl:    ttl,
		now:    time.Now,
		logger: log.WithFields(log.Fields{"module": "cache"}),
	}
}

func (rc *responseCache) lookup(userID, kind string) *database.CachedResponse {
	if rc.db == nil {
		return nil
	}
	rec, err := rc.db.GetResponse(userID, kind)
	if err != nil {
		rc.logger.Warnf("Failed to read cache: %v", err)
		return nil
	}
	return rec
}

func (rc *responseCache) store(userID, kind string, value any) {
	if rc.db == nil {
		return
	}
	body, err := json.Marshal(value)
	if err != nil {
		rc.logger.Warnf("Failed to encode %s for cache: %v", kind, err)
		return
	}
	if err := rc.db.PutResponse(userID, kind, body); err != nil {
		rc.logger.Warnf("Failed to write cache: %v", err)
	}
}

// storeAliases caches user under every other id it can be requested by,
// so forget finds the row whichever id it is given.
func (rc *responseCache) storeAliases(requested string, user *models.User) {
	for _, key := range userKeys(requested, user) {
		if key != requested {
			rc.store(key, kindUser, user)
		}
	}
}

// forget drops everything cached for userID and for the other ids of the
// same user.
func (rc *responseCache) forget(userID string) {
	if rc.db == nil {
		return
	}
	keys := []string{userID}
	if rec := rc.lookup(userID, kindUser); rec != nil {
		var user models.User
		if err := json.Unmarshal(rec.Body, &user); err == nil {
			keys = userKeys(userID, &user)
		}
	}
	for _, key := range keys {
		if err := rc.db.DeleteResponses(key); err != nil {
			rc.logger.Warnf("Failed to clear cache for %s: %v", key, err)
		}
	}
}

func userKeys(requested string, user *models.User) []string {
	keys := []string{requested}
	for _, key := range []string{user.ID, strings.ToLower(user.CustomURL)} {
		if key != "" && !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	return keys
}

// cached returns the value for (userID, kind), calling fetch when the cached
// copy is missing or older than the ttl. Concurrent fetches of the same key
// share one backend call. If fetch fails for any reason other than
// backend.ErrNotFound, the last cached copy is returned with stale set.
func cached[T any](ctx context.Context, rc *responseCache, userID, kind string, fetch func(context.Context) (T, error)) (value T, stale bool, err error) {
	rec := rc.lookup(userID, kind)
	if rec != nil && rc.ttl > 0 && rc.now().Sub(rec.FetchedAt) < rc.ttl {
		if err := json.Unmarshal(rec.Body, &value); err == nil {
			return value, false, nil
		}
	}

	res, err, _ := rc.group.Do(kind+"/"+userID, func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		rc.store(userID, kind, v)
		return v, nil
	})
	if err == nil {
		return res.(T), false, nil
	}

	var zero T
	if rec == nil || errors.Is(err, backend.ErrNotFound) {
		return zero, false, err
	}
	if uerr := json.Unmarshal(rec.Body, &value); uerr != nil {
		rc.logger.Warnf("Discarding unreadable cached %s for %s: %v", kind, userID, uerr)
		return zero, false, err
	}
	rc.logger.WithFields(log.Fields{"user": userID, "kind": kind}).
		Warnf("Serving cached copy from %s after fetch failed: %v", rec.FetchedAt.Format(time.RFC3339), err)
	return value, true, nil
}
