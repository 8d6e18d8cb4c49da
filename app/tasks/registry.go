package tasks

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/lysyi3m/feedsub/app/database"
	"github.com/lysyi3m/feedsub/app/feed"
	"github.com/lysyi3m/feedsub/app/reader"
	"github.com/lysyi3m/feedsub/app/transport"
)

// Registry keeps one reader per feed between polls. Readers are built from
// the state stored in the database, so a restarted process resumes where
// the previous one stopped.
type Registry struct {
	feedRepo  database.FeedRepository
	transport transport.Transport

	mu      sync.Mutex
	entries map[string]*registryEntry
	polling map[string]bool
}

type registryEntry struct {
	config *feed.Config
	reader *reader.Reader
}

func NewRegistry(feedRepo database.FeedRepository, t transport.Transport) *Registry {
	return &Registry{
		feedRepo:  feedRepo,
		transport: t,
		entries:   make(map[string]*registryEntry),
		polling:   make(map[string]bool),
	}
}

// Reader returns the reader for feedConfig, building a new one when the
// feed is unknown or its configuration was reloaded.
func (r *Registry) Reader(feedConfig *feed.Config) (*reader.Reader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[feedConfig.Name]; ok && entry.config == feedConfig {
		return entry.reader, nil
	}

	stored, err := r.feedRepo.GetFeed(feedConfig.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load feed state: %w", err)
	}

	var history []string
	if stored != nil {
		history, err = r.feedRepo.GetHistory(feedConfig.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to load feed history: %w", err)
		}
	}

	opts, err := readerOptions(feedConfig, stored, history)
	if err != nil {
		return nil, err
	}
	opts.Transport = r.transport

	rd, err := reader.New(feedConfig.URL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}

	slog.Debug("Reader created", "feed", feedConfig.Name, "history", len(history), "interval", rd.Interval())

	r.entries[feedConfig.Name] = &registryEntry{config: feedConfig, reader: rd}
	return rd, nil
}

// Forget drops the reader of a feed; the next poll rebuilds it from the
// stored state.
func (r *Registry) Forget(feedName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, feedName)
}

// Acquire marks a feed as being polled. It returns false when a poll of the
// same feed is already running.
func (r *Registry) Acquire(feedName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.polling[feedName] {
		return false
	}
	r.polling[feedName] = true
	return true
}

func (r *Registry) Release(feedName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.polling, feedName)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func readerOptions(feedConfig *feed.Config, stored *database.Feed, history []string) (reader.Options, error) {
	settings := feedConfig.Settings

	tokenizer, err := feed.NewTokenizer(settings.Parser)
	if err != nil {
		return reader.Options{}, fmt.Errorf("failed to create tokenizer: %w", err)
	}

	var header http.Header
	if len(settings.Headers) > 0 {
		header = make(http.Header, len(settings.Headers))
		for key, value := range settings.Headers {
			header.Set(key, value)
		}
	}

	opts := reader.Options{
		Interval:      settings.IntervalDuration(),
		ForceInterval: settings.ForceInterval,
		EmitOnStart:   settings.EmitOnStart,
		History:       history,
		MaxHistory:    settings.MaxHistory,
		SkipHours:     settings.SkipHours,
		HoursToSkip:   settings.HoursToSkip,
		SkipDays:      settings.SkipDays,
		DaysToSkip:    settings.DaysToSkip,
		ReadEveryItem: settings.ReadEveryItem,
		Header:        header,
		Tokenizer:     tokenizer,
		Logger:        slog.Default().With("feed", feedConfig.Name),
	}

	if stored != nil {
		opts.LastDate = stored.LastDate
		opts.ETag = stored.ETag
		opts.LastModified = stored.LastModified
		if !settings.ForceInterval && stored.Interval > opts.Interval {
			opts.Interval = stored.Interval
		}
	}

	return opts, nil
}
