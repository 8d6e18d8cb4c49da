package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var _ FeedRepository = (*feedRepository)(nil)

type feedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) FeedRepository {
	return &feedRepository{db: db}
}

const feedColumns = `name, url, title, etag, last_modified, last_date, interval_seconds,
	last_status, last_error, last_fetched_at, next_fetch_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*Feed, error) {
	var (
		feed                   Feed
		intervalSeconds        int64
		lastFetched, nextFetch sql.NullString
		createdAt, updatedAt   string
	)

	err := row.Scan(
		&feed.Name, &feed.URL, &feed.Title, &feed.ETag, &feed.LastModified, &feed.LastDate, &intervalSeconds,
		&feed.LastStatus, &feed.LastError, &lastFetched, &nextFetch, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	feed.Interval = time.Duration(intervalSeconds) * time.Second

	if feed.LastFetchedAt, err = parseNullTime(lastFetched); err != nil {
		return nil, err
	}
	if feed.NextFetchAt, err = parseNullTime(nextFetch); err != nil {
		return nil, err
	}
	if feed.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if feed.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &feed, nil
}

func (r *feedRepository) GetFeed(feedName string) (*Feed, error) {
	row := r.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE name = ?`, feedName)

	feed, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return feed, nil
}

func (r *feedRepository) GetFeeds() ([]Feed, error) {
	rows, err := r.db.Query(`SELECT ` + feedColumns + ` FROM feeds ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *feedRepository) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

// GetHistory returns the stored fingerprints of a feed, newest first.
func (r *feedRepository) GetHistory(feedName string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT fingerprint FROM feed_history
		WHERE feed_name = ?
		ORDER BY position
	`, feedName)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var history []string
	for rows.Next() {
		var fingerprint string
		if err := rows.Scan(&fingerprint); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		history = append(history, fingerprint)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}

	return history, nil
}

// UpsertFeed registers a configured feed. A changed URL makes it a different
// feed, so the stored poll state and history are dropped and true is returned.
func (r *feedRepository) UpsertFeed(feedName, feedURL string) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())

	var currentURL string
	err = tx.QueryRow(`SELECT url FROM feeds WHERE name = ?`, feedName).Scan(&currentURL)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.Exec(`
			INSERT INTO feeds (name, url, created_at, updated_at)
			VALUES (?, ?, ?, ?)
		`, feedName, feedURL, now, now)
		if err != nil {
			return false, fmt.Errorf("failed to insert feed: %w", err)
		}
		return false, commit(tx)

	case err != nil:
		return false, fmt.Errorf("failed to check existing feed: %w", err)
	}

	urlChanged := currentURL != feedURL
	if !urlChanged {
		return false, nil
	}

	_, err = tx.Exec(`
		UPDATE feeds
		SET url = ?, title = '', etag = '', last_modified = '', last_date = '',
		    interval_seconds = 0, last_status = '', last_error = '', next_fetch_at = NULL, updated_at = ?
		WHERE name = ?
	`, feedURL, now, feedName)
	if err != nil {
		return false, fmt.Errorf("failed to update feed url: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM feed_history WHERE feed_name = ?`, feedName); err != nil {
		return false, fmt.Errorf("failed to reset history: %w", err)
	}

	return true, commit(tx)
}

// SaveState stores the outcome of a successful poll and replaces the history.
func (r *feedRepository) SaveState(feedName string, state FeedState) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE feeds
		SET title = CASE WHEN ? = '' THEN title ELSE ? END,
		    etag = ?, last_modified = ?, last_date = ?, interval_seconds = ?,
		    last_status = ?, last_error = '', last_fetched_at = ?, next_fetch_at = ?, updated_at = ?
		WHERE name = ?
	`, state.Title, state.Title,
		state.ETag, state.LastModified, state.LastDate, int64(state.Interval/time.Second),
		state.Status, nullTime(&state.FetchedAt), nullTime(&state.NextFetchAt), formatTime(time.Now()),
		feedName)
	if err != nil {
		return fmt.Errorf("failed to update feed state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("feed not found: %s", feedName)
	}

	if _, err := tx.Exec(`DELETE FROM feed_history WHERE feed_name = ?`, feedName); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	for position, fingerprint := range state.History {
		_, err := tx.Exec(`
			INSERT INTO feed_history (feed_name, position, fingerprint)
			VALUES (?, ?, ?)
		`, feedName, position, fingerprint)
		if err != nil {
			return fmt.Errorf("failed to store history: %w", err)
		}
	}

	return commit(tx)
}

// RecordFailure keeps the previous state and only reschedules the feed.
func (r *feedRepository) RecordFailure(feedName string, errMsg string, fetchedAt, nextFetch time.Time) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET last_status = 'failed', last_error = ?, last_fetched_at = ?, next_fetch_at = ?, updated_at = ?
		WHERE name = ?
	`, errMsg, nullTime(&fetchedAt), nullTime(&nextFetch), formatTime(time.Now()), feedName)
	if err != nil {
		return fmt.Errorf("failed to record feed failure: %w", err)
	}

	return nil
}

func commit(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
