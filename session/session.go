// Package session keeps per-visitor state on the server: who is logged in,
// the pending login handshake, and the visitor's page navigation history.
// Sessions travel through request handling in the context rather than as
// ambient globals.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"tunefeed/database"
	"tunefeed/router"
)

var ErrNoSession = errors.New("no session in context")

// touchInterval bounds how often activity on a live session is written back.
const touchInterval = time.Minute

type Session struct {
	Token string

	mu               sync.RWMutex
	userID           string
	pendingState     string
	pendingCustomURL string
	lastSeen         time.Time
	persistedAt      time.Time

	Navigator *router.Navigator
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) LoggedIn() bool {
	return s.UserID() != ""
}

// BeginLogin records the state nonce and desired custom URL for an
// authorization round trip and returns the nonce.
func (s *Session) BeginLogin(customURL string) string {
	state := uuid.NewString()
	s.mu.Lock()
	s.pendingState = state
	s.pendingCustomURL = customURL
	s.mu.Unlock()
	return state
}

// CompleteLogin consumes the pending handshake. It reports false if state
// does not match the one issued by BeginLogin.
func (s *Session) CompleteLogin(state string) (customURL string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingState == "" || s.pendingState != state {
		return "", false
	}
	customURL = s.pendingCustomURL
	s.pendingState = ""
	s.pendingCustomURL = ""
	return customURL, true
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// needsPersist reports whether the stored last-seen time of a logged-in
// session is older than interval, and marks it as refreshed if so.
func (s *Session) needsPersist(now time.Time, interval time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" || now.Sub(s.persistedAt) < interval {
		return false
	}
	s.persistedAt = now
	return true
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.lastSeen)
}

type contextKey string

const sessionContextKey contextKey = "tunefeed_session"

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

func FromContext(ctx context.Context) (*Session, error) {
	if ctx == nil {
		return nil, ErrNoSession
	}
	if s, ok := ctx.Value(sessionContextKey).(*Session); ok && s != nil {
		return s, nil
	}
	return nil, ErrNoSession
}

// Store owns every live session. Logged-in sessions are persisted so they
// survive restarts; anonymous ones live only in memory.
type Store struct {
	db           *database.Database
	views        *router.Router
	ttl          time.Duration
	historyLimit int
	sessions     map[string]*Session
	mutex        sync.Mutex
	now          func() time.Time
	logger       *log.Entry
}

func NewStore(db *database.Database, views *router.Router, ttl time.Duration, historyLimit int) *Store {
	return &Store{
		db:           db,
		views:        views,
		ttl:          ttl,
		historyLimit: historyLimit,
		sessions:     make(map[string]*Session),
		now:          time.Now,
		logger:       log.WithFields(log.Fields{"module": "session"}),
	}
}

func (st *Store) newSession(token, userID string) *Session {
	now := st.now()
	s := &Session{
		Token:       token,
		userID:      userID,
		lastSeen:    now,
		persistedAt: now,
		Navigator:   router.NewNavigator(st.views, router.NewHistory(st.historyLimit), &router.Frame{}),
	}
	st.sessions[token] = s
	return s
}

// Create starts an anonymous session.
func (st *Store) Create() *Session {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	return st.newSession(uuid.NewString(), "")
}

// Get returns the live session for token, restoring a persisted one if
// needed. Expired sessions are dropped and reported as missing.
func (st *Store) Get(token string) (*Session, bool) {
	if token == "" {
		return nil, false
	}
	now := st.now()

	st.mutex.Lock()
	s, ok := st.sessions[token]
	st.mutex.Unlock()

	if ok {
		if st.ttl > 0 && s.idleSince(now) > st.ttl {
			st.expire(s)
			return nil, false
		}
		s.touch(now)
		st.persistTouch(s, now)
		return s, true
	}

	if st.db == nil {
		return nil, false
	}
	rec, err := st.db.GetSession(token)
	if err != nil {
		st.logger.Errorf("Failed to load session: %v", err)
		return nil, false
	}
	if rec == nil {
		return nil, false
	}
	if st.ttl > 0 && now.Sub(rec.LastSeenAt) > st.ttl {
		if err := st.db.DeleteSession(token); err != nil {
			st.logger.Warnf("Failed to delete expired session: %v", err)
		}
		return nil, false
	}
	if err := st.db.TouchSession(token, now); err != nil {
		st.logger.Warnf("Failed to touch session: %v", err)
	}

	st.mutex.Lock()
	defer st.mutex.Unlock()
	// another request may have restored it while we were reading
	if s, ok := st.sessions[token]; ok {
		return s, true
	}
	st.logger.Debugf("Restored session for user %s", rec.UserID)
	return st.newSession(token, rec.UserID), true
}

// Login binds userID to s under a fresh token, so a token seen before
// authentication is never reused after it.
func (st *Store) Login(s *Session, userID string) (*Session, error) {
	token := uuid.NewString()
	if st.db != nil {
		if err := st.db.SaveSession(token, userID, st.now()); err != nil {
			return nil, err
		}
	}

	st.mutex.Lock()
	delete(st.sessions, s.Token)
	fresh := st.newSession(token, userID)
	// keep the visitor's navigation history across the login
	fresh.Navigator = s.Navigator
	st.mutex.Unlock()

	st.logger.Infof("User %s logged in", userID)
	return fresh, nil
}

// Logout deletes the session everywhere.
func (st *Store) Logout(s *Session) error {
	st.mutex.Lock()
	delete(st.sessions, s.Token)
	st.mutex.Unlock()

	s.mu.Lock()
	s.userID = ""
	s.mu.Unlock()

	if st.db == nil {
		return nil
	}
	return st.db.DeleteSession(s.Token)
}

// persistTouch keeps the stored last-seen time of an active logged-in
// session close to its in-memory one, so pruning the database never drops a
// visitor who is still around.
func (st *Store) persistTouch(s *Session, now time.Time) {
	if st.db == nil || !s.needsPersist(now, touchInterval) {
		return
	}
	if err := st.db.TouchSession(s.Token, now); err != nil {
		st.logger.Warnf("Failed to touch session: %v", err)
	}
}

func (st *Store) expire(s *Session) {
	st.mutex.Lock()
	delete(st.sessions, s.Token)
	st.mutex.Unlock()
	if st.db != nil && s.LoggedIn() {
		if err := st.db.DeleteSession(s.Token); err != nil {
			st.logger.Warnf("Failed to delete expired session: %v", err)
		}
	}
}

// Prune drops idle in-memory sessions and expired persisted ones.
func (st *Store) Prune() (int64, error) {
	now := st.now()

	st.mutex.Lock()
	var dropped int64
	for token, s := range st.sessions {
		if st.ttl > 0 && s.idleSince(now) > st.ttl {
			delete(st.sessions, token)
			dropped++
		}
	}
	st.mutex.Unlock()

	if st.db == nil || st.ttl <= 0 {
		return dropped, nil
	}
	n, err := st.db.PruneSessions(now.Add(-st.ttl))
	if err != nil {
		return dropped, err
	}
	return dropped + n, nil
}

func (st *Store) Len() int {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	return len(st.sessions)
}
