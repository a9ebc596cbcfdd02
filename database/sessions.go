package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

type SessionRecord struct {
	Token      string
	UserID     string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// SaveSession inserts a session or refreshes the user and last-seen time of
// an existing one.
func (d *Database) SaveSession(token, userID string, at time.Time) error {
	now := formatTime(at)
	_, err := d.db.Exec(
		`INSERT INTO sessions (token, user_id, created_at, last_seen_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(token) DO UPDATE SET user_id = excluded.user_id, last_seen_at = excluded.last_seen_at`,
		token, userID, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession returns nil without error when the token is unknown.
func (d *Database) GetSession(token string) (*SessionRecord, error) {
	var r SessionRecord
	var createdAt, lastSeenAt string
	err := d.db.QueryRow(
		`SELECT token, user_id, created_at, last_seen_at FROM sessions WHERE token = ?`,
		token,
	).Scan(&r.Token, &r.UserID, &createdAt, &lastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		log.Warnf("Session %s has bad created_at: %v", token, err)
	}
	if r.LastSeenAt, err = parseTime(lastSeenAt); err != nil {
		log.Warnf("Session %s has bad last_seen_at: %v", token, err)
		r.LastSeenAt = time.Now()
	}
	return &r, nil
}

// TouchSession records activity on a persisted session at the given time.
func (d *Database) TouchSession(token string, at time.Time) error {
	if _, err := d.db.Exec(`UPDATE sessions SET last_seen_at = ? WHERE token = ?`, formatTime(at), token); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

func (d *Database) DeleteSession(token string) error {
	if _, err := d.db.Exec(`DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PruneSessions deletes sessions not seen since before cutoff and returns
// how many were removed.
func (d *Database) PruneSessions(cutoff time.Time) (int64, error) {
	res, err := d.db.Exec(`DELETE FROM sessions WHERE last_seen_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	return res.RowsAffected()
}
