package database

import (
	"time"
)

type Feed struct {
	Name          string // Configuration feed identifier derived from filename
	URL           string
	Title         string // Channel title learned while polling
	ETag          string
	LastModified  string
	LastDate      string        // Feed-level date of the last completed cycle
	Interval      time.Duration // Effective poll interval, raised by the feed's ttl
	LastStatus    string
	LastError     string
	LastFetchedAt *time.Time
	NextFetchAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Item struct {
	ID           int64
	FeedName     string
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
	CreatedAt    time.Time
}
