package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/feedsub/app/database"
	"github.com/lysyi3m/feedsub/app/feed"
	"github.com/lysyi3m/feedsub/app/reader"
)

// PollFeedTask runs one reader cycle for a feed and stores what it found.
type PollFeedTask struct {
	Task
	FeedConfig *feed.Config
	registry   *Registry
	filterer   *feed.Filterer
	feedRepo   database.FeedRepository
	itemRepo   database.ItemRepository
}

func NewPollFeedTask(feedName string, feedConfig *feed.Config, registry *Registry, filterer *feed.Filterer, feedRepo database.FeedRepository, itemRepo database.ItemRepository) *PollFeedTask {
	return &PollFeedTask{
		Task:       NewTask(TaskTypePollFeed, feedName),
		FeedConfig: feedConfig,
		registry:   registry,
		filterer:   filterer,
		feedRepo:   feedRepo,
		itemRepo:   itemRepo,
	}
}

func (t *PollFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.Enabled {
		slog.Debug("Feed disabled, skipping", "feed", t.FeedName)
		return nil
	}

	if !t.registry.Acquire(t.FeedName) {
		slog.Debug("Feed poll already running, skipping", "feed", t.FeedName)
		return nil
	}
	defer t.registry.Release(t.FeedName)

	rd, err := t.registry.Reader(t.FeedConfig)
	if err != nil {
		return err
	}

	if timeout := t.FeedConfig.Settings.TimeoutDuration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := rd.Run(ctx)
	now := time.Now().UTC()
	if err != nil {
		if recordErr := t.feedRepo.RecordFailure(t.FeedName, err.Error(), now, now.Add(rd.Interval())); recordErr != nil {
			slog.Error("Failed to record poll failure", "feed", t.FeedName, "error", recordErr)
		}
		return fmt.Errorf("failed to poll feed (%s): %w", errorKind(err), err)
	}

	filteredItems := t.filterer.Run(result.Items, t.FeedConfig)

	newItems := make([]database.NewItem, 0, len(filteredItems))
	filteredCount := 0
	for _, item := range filteredItems {
		if item.IsFiltered {
			filteredCount++
		}
		newItems = append(newItems, toNewItem(item))
	}

	stored, err := t.itemRepo.StoreItems(t.FeedName, newItems)
	if err != nil {
		// The reader already counts these items as seen; rebuilding it from
		// the stored history reports them again on the next poll.
		t.registry.Forget(t.FeedName)
		return fmt.Errorf("failed to store items: %w", err)
	}

	snapshot := rd.Snapshot()
	err = t.feedRepo.SaveState(t.FeedName, database.FeedState{
		Title:        snapshot.Title,
		ETag:         snapshot.ETag,
		LastModified: snapshot.LastModified,
		LastDate:     snapshot.LastDate,
		Interval:     snapshot.Interval,
		History:      snapshot.History,
		Status:       result.Status.String(),
		FetchedAt:    now,
		NextFetchAt:  now.Add(snapshot.Interval),
	})
	if err != nil {
		return fmt.Errorf("failed to save feed state: %w", err)
	}

	slog.Info("Task completed",
		"type", "PollFeed",
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"status", result.Status.String(),
		"received", result.Received,
		"early_exit", result.EarlyExit,
		"filtered", filteredCount,
		"new", stored)

	return nil
}

func toNewItem(filtered feed.FilteredItem) database.NewItem {
	item := filtered.Item

	var publishedAt *time.Time
	if date := item.Date(); !date.Equal(feed.Epoch) {
		publishedAt = &date
	}

	return database.NewItem{
		Fingerprint:  item.Fingerprint(),
		GUID:         item.GUID,
		Title:        item.Title,
		Link:         item.Link,
		Author:       item.Author,
		Categories:   item.Categories,
		Summary:      feed.Summarize(item),
		PublishedAt:  publishedAt,
		IsFiltered:   filtered.IsFiltered,
		FilterReason: filtered.FilterReason,
	}
}

func errorKind(err error) string {
	var transportErr *reader.TransportError
	var parseErr *reader.ParseError

	switch {
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "unknown"
	}
}
