package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

var _ ItemRepository = (*itemRepository)(nil)

type itemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) ItemRepository {
	return &itemRepository{db: db}
}

// StoreItems inserts new items and returns how many were stored. Items
// already stored for the feed are left untouched.
func (r *itemRepository) StoreItems(feedName string, items []NewItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	stored := 0

	for _, item := range items {
		categories, err := json.Marshal(item.Categories)
		if err != nil {
			return 0, fmt.Errorf("failed to encode categories: %w", err)
		}
		if item.Categories == nil {
			categories = []byte("[]")
		}

		res, err := tx.Exec(`
			INSERT INTO items (
				feed_name, fingerprint, guid, title, link, author, categories,
				summary, published_at, is_filtered, filter_reason, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (feed_name, fingerprint) DO NOTHING
		`, feedName, item.Fingerprint, item.GUID, item.Title, item.Link, item.Author, string(categories),
			item.Summary, nullTime(item.PublishedAt), item.IsFiltered, item.FilterReason, now)
		if err != nil {
			return 0, fmt.Errorf("failed to store item: %w", err)
		}

		if n, err := res.RowsAffected(); err == nil {
			stored += int(n)
		}
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	return stored, nil
}

// GetItems returns the most recently stored items of a feed, newest first.
func (r *itemRepository) GetItems(feedName string, limit int, includeFiltered bool) ([]Item, error) {
	rows, err := r.db.Query(`
		SELECT id, feed_name, fingerprint, guid, title, link, author, categories,
		       summary, published_at, is_filtered, filter_reason, created_at
		FROM items
		WHERE feed_name = ?
		  AND (? OR is_filtered = 0)
		ORDER BY id DESC
		LIMIT ?
	`, feedName, includeFiltered, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var (
			item        Item
			categories  string
			publishedAt sql.NullString
			createdAt   string
		)

		err := rows.Scan(
			&item.ID, &item.FeedName, &item.Fingerprint, &item.GUID, &item.Title, &item.Link, &item.Author, &categories,
			&item.Summary, &publishedAt, &item.IsFiltered, &item.FilterReason, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}

		if err := json.Unmarshal([]byte(categories), &item.Categories); err != nil {
			return nil, fmt.Errorf("failed to decode categories: %w", err)
		}
		if item.PublishedAt, err = parseNullTime(publishedAt); err != nil {
			return nil, err
		}
		if item.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

// GetAllItems returns every stored item of a feed, filtered ones included.
func (r *itemRepository) GetAllItems(feedName string) ([]Item, error) {
	return r.GetItems(feedName, -1, true)
}

func (r *itemRepository) UpdateItemFilterStatus(itemID int64, isFiltered bool, filterReason string) error {
	_, err := r.db.Exec(`
		UPDATE items
		SET is_filtered = ?, filter_reason = ?
		WHERE id = ?
	`, isFiltered, filterReason, itemID)
	if err != nil {
		return fmt.Errorf("failed to update item filter status: %w", err)
	}

	return nil
}

func (r *itemRepository) GetItemCount(feedName string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM items WHERE feed_name = ?", feedName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

// GetItemStats returns total, visible and filtered item counts for a feed.
func (r *itemRepository) GetItemStats(feedName string) (total, visible, filtered int, err error) {
	err = r.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_filtered = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_filtered = 1 THEN 1 ELSE 0 END), 0)
		FROM items
		WHERE feed_name = ?
	`, feedName).Scan(&total, &visible, &filtered)

	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get item stats: %w", err)
	}

	return total, visible, filtered, nil
}
