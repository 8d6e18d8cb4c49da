package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/feedsub/app/database"
	"github.com/lysyi3m/feedsub/app/feed"
)

// RefilterFeedTask applies the current filters to items already stored.
type RefilterFeedTask struct {
	Task
	FeedConfig *feed.Config
	filterer   *feed.Filterer
	itemRepo   database.ItemRepository
}

func NewRefilterFeedTask(feedName string, feedConfig *feed.Config, filterer *feed.Filterer, itemRepo database.ItemRepository) *RefilterFeedTask {
	return &RefilterFeedTask{
		Task:       NewTask(TaskTypeRefilterFeed, feedName),
		FeedConfig: feedConfig,
		filterer:   filterer,
		itemRepo:   itemRepo,
	}
}

func (t *RefilterFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	items, err := t.itemRepo.GetAllItems(t.FeedName)
	if err != nil {
		return fmt.Errorf("failed to get feed items: %w", err)
	}

	// Only the summary survives storage, so it stands in for description.
	feedItems := make([]*feed.Item, len(items))
	for i, item := range items {
		feedItems[i] = &feed.Item{
			GUID:        item.GUID,
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Summary,
			Author:      item.Author,
			Categories:  item.Categories,
		}
	}

	filteredItems := t.filterer.Run(feedItems, t.FeedConfig)

	updatedCount := 0
	errorCount := 0

	for i, filteredItem := range filteredItems {
		stored := items[i]
		if stored.IsFiltered == filteredItem.IsFiltered && stored.FilterReason == filteredItem.FilterReason {
			continue
		}

		err := t.itemRepo.UpdateItemFilterStatus(stored.ID, filteredItem.IsFiltered, filteredItem.FilterReason)
		if err != nil {
			slog.Error("Failed to update item filter status", "item_id", stored.ID, "error", err)
			errorCount++
			continue
		}
		updatedCount++
	}

	slog.Info("Task completed",
		"type", "RefilterFeed",
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"updated", updatedCount,
		"errors", errorCount)

	return nil
}
