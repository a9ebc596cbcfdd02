package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type CachedResponse struct {
	UserID    string
	Kind      string
	Body      []byte
	FetchedAt time.Time
}

// PutResponse stores the latest body for (userID, kind); the last write wins.
func (d *Database) PutResponse(userID, kind string, body []byte) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO response_cache (user_id, kind, body, fetched_at) VALUES (?, ?, ?, ?)`,
		userID, kind, body, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to cache %s for %s: %w", kind, userID, err)
	}
	return nil
}

// GetResponse returns nil without error on a cache miss.
func (d *Database) GetResponse(userID, kind string) (*CachedResponse, error) {
	r := CachedResponse{UserID: userID, Kind: kind}
	var fetchedAt string
	err := d.db.QueryRow(
		`SELECT body, fetched_at FROM response_cache WHERE user_id = ? AND kind = ?`,
		userID, kind,
	).Scan(&r.Body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached %s for %s: %w", kind, userID, err)
	}
	if r.FetchedAt, err = parseTime(fetchedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *Database) DeleteResponses(userID string) error {
	_, err := d.db.Exec(`DELETE FROM response_cache WHERE user_id = ?`, userID)
	return err
}
