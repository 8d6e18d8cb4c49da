package database

import (
	"time"
)

// FeedState is what a poll leaves behind: the reader snapshot plus the
// schedule and outcome of the cycle.
type FeedState struct {
	Title        string
	ETag         string
	LastModified string
	LastDate     string
	Interval     time.Duration
	History      []string // newest first
	Status       string
	FetchedAt    time.Time
	NextFetchAt  time.Time
}

type NewItem struct {
	Fingerprint  string
	GUID         string
	Title        string
	Link         string
	Author       string
	Categories   []string
	Summary      string
	PublishedAt  *time.Time
	IsFiltered   bool
	FilterReason string
}

type FeedRepository interface {
	GetFeed(feedName string) (*Feed, error)
	GetFeeds() ([]Feed, error)
	GetFeedCount() (int, error)
	GetHistory(feedName string) ([]string, error)

	UpsertFeed(feedName, feedURL string) (bool, error)
	SaveState(feedName string, state FeedState) error
	RecordFailure(feedName string, errMsg string, fetchedAt, nextFetch time.Time) error
}

type ItemRepository interface {
	GetItems(feedName string, limit int, includeFiltered bool) ([]Item, error)
	GetAllItems(feedName string) ([]Item, error)
	GetItemCount(feedName string) (int, error)
	GetItemStats(feedName string) (int, int, int, error)

	StoreItems(feedName string, items []NewItem) (int, error)
	UpdateItemFilterStatus(itemID int64, isFiltered bool, filterReason string) error
}
