package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/feedsub/app/database"
	"github.com/lysyi3m/feedsub/app/feed"
	"github.com/lysyi3m/feedsub/app/tasks"
)

func NewHandler(configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	itemRepo database.ItemRepository, filterer *feed.Filterer, registry *tasks.Registry,
	scheduler tasks.TaskSchedulerInterface, version string) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		itemRepo:    itemRepo,
		configCache: configCache,
		filterer:    filterer,
		generator:   feed.NewGenerator(version),
		registry:    registry,
		scheduler:   scheduler,
		version:     version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	health["loaded_configurations"] = h.configCache.Count()
	health["active_readers"] = h.registry.Len()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("name")

	_, stored, ok := h.lookupFeed(c, name)
	if !ok {
		return
	}

	items, err := h.itemRepo.GetItems(name, defaultItemsLimit, false)
	if err != nil {
		slog.Error("Database error", "operation", "get_items", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	selfLink := fmt.Sprintf("%s://%s/feeds/%s", requestScheme(c), c.Request.Host, name)

	rss, err := h.generator.Run(*stored, items, selfLink)
	if err != nil {
		slog.Error("RSS generation error", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Header("X-Feed-Name", name)
	c.Header("X-Last-Updated", stored.UpdatedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	configs := h.configCache.All()

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	slices.Sort(names)

	feeds := make([]map[string]interface{}, 0, len(configs))

	for _, name := range names {
		feedConfig := configs[name]
		feedInfo := map[string]interface{}{
			"name":     feedConfig.Name,
			"url":      feedConfig.URL,
			"title":    "",
			"enabled":  feedConfig.Settings.Enabled,
			"interval": feedConfig.Settings.IntervalDuration().String(),
			"filters":  len(feedConfig.Filters),
		}

		if stored, err := h.feedRepo.GetFeed(feedConfig.Name); err == nil && stored != nil {
			feedInfo["title"] = stored.Title
			feedInfo["last_status"] = stored.LastStatus
			feedInfo["last_error"] = stored.LastError
			feedInfo["last_fetched_at"] = stored.LastFetchedAt
			feedInfo["next_fetch_at"] = stored.NextFetchAt
		}

		if itemCount, err := h.itemRepo.GetItemCount(feedConfig.Name); err == nil {
			feedInfo["item_count"] = itemCount
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIGetFeedDetails(c *gin.Context) {
	name := c.Param("name")

	feedConfig, stored, ok := h.lookupFeed(c, name)
	if !ok {
		return
	}

	history, err := h.feedRepo.GetHistory(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_history", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	settings := feedConfig.Settings
	details := map[string]interface{}{
		"name":    name,
		"url":     feedConfig.URL,
		"title":   stored.Title,
		"enabled": settings.Enabled,
		"settings": map[string]interface{}{
			"interval":        settings.IntervalDuration().String(),
			"force_interval":  settings.ForceInterval,
			"emit_on_start":   settings.EmitOnStart,
			"max_history":     settings.MaxHistory,
			"skip_hours":      settings.SkipHours,
			"hours_to_skip":   settings.HoursToSkip,
			"skip_days":       settings.SkipDays,
			"days_to_skip":    settings.DaysToSkip,
			"read_every_item": settings.ReadEveryItem,
			"timeout":         settings.TimeoutDuration().String(),
			"parser":          settings.Parser,
		},
		"filters": feedConfig.Filters,
	}

	details["state"] = map[string]interface{}{
		"etag":            stored.ETag,
		"last_modified":   stored.LastModified,
		"last_date":       stored.LastDate,
		"interval":        stored.Interval.String(),
		"history_size":    len(history),
		"last_status":     stored.LastStatus,
		"last_error":      stored.LastError,
		"last_fetched_at": stored.LastFetchedAt,
		"next_fetch_at":   stored.NextFetchAt,
		"created_at":      stored.CreatedAt,
		"updated_at":      stored.UpdatedAt,
	}

	if total, visible, filtered, err := h.itemRepo.GetItemStats(name); err == nil {
		details["items"] = map[string]interface{}{
			"total":    total,
			"visible":  visible,
			"filtered": filtered,
		}
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIGetFeedItems(c *gin.Context) {
	name := c.Param("name")

	if _, _, ok := h.lookupFeed(c, name); !ok {
		return
	}

	limit := defaultItemsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxItemsLimit)
	}
	includeFiltered := c.Query("filtered") == "true"

	items, err := h.itemRepo.GetItems(name, limit, includeFiltered)
	if err != nil {
		slog.Error("Database error", "operation", "get_items", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		entry := map[string]interface{}{
			"id":           item.ID,
			"fingerprint":  item.Fingerprint,
			"guid":         item.GUID,
			"title":        item.Title,
			"link":         item.Link,
			"author":       item.Author,
			"categories":   item.Categories,
			"summary":      item.Summary,
			"published_at": item.PublishedAt,
			"created_at":   item.CreatedAt,
		}
		if includeFiltered {
			entry["is_filtered"] = item.IsFiltered
			entry["filter_reason"] = item.FilterReason
		}
		response = append(response, entry)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feed":  name,
		"items": response,
		"total": len(response),
	})
}

func (h *Handler) APIPollFeed(c *gin.Context) {
	name := c.Param("name")

	feedConfig, _, ok := h.lookupFeed(c, name)
	if !ok {
		return
	}

	if !feedConfig.Settings.Enabled {
		c.JSON(http.StatusConflict, gin.H{"error": "Feed is disabled"})
		return
	}

	pollTask := tasks.NewPollFeedTask(name, feedConfig, h.registry, h.filterer, h.feedRepo, h.itemRepo)
	if err := h.scheduler.EnqueueTask(pollTask); err != nil {
		slog.Error("Error enqueueing poll task", "feed", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue poll task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task": gin.H{
			"id":   pollTask.ID,
			"type": pollTask.Type,
		},
	})
}

func (h *Handler) APIReloadFeed(c *gin.Context) {
	name := c.Param("name")

	if _, _, ok := h.lookupFeed(c, name); !ok {
		return
	}

	feedConfig, err := h.configCache.Load(name)
	if err != nil {
		slog.Error("Error reloading configuration", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	syncFeedTask := tasks.NewSyncFeedConfigTask(name, feedConfig, h.feedRepo, h.registry)
	if err := h.scheduler.EnqueueTask(syncFeedTask); err != nil {
		slog.Error("Error enqueueing sync task", "feed", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	refilterFeedTask := tasks.NewRefilterFeedTask(name, feedConfig, h.filterer, h.itemRepo)
	if err := h.scheduler.EnqueueTask(refilterFeedTask); err != nil {
		slog.Error("Error enqueueing refilter task", "feed", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue refilter task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded and tasks enqueued successfully",
		"feed": gin.H{
			"name": name,
			"url":  feedConfig.URL,
		},
		"tasks": []gin.H{
			{"id": syncFeedTask.ID, "type": syncFeedTask.Type},
			{"id": refilterFeedTask.ID, "type": refilterFeedTask.Type},
		},
	})
}

// lookupFeed writes the error response itself when ok is false.
func (h *Handler) lookupFeed(c *gin.Context, name string) (*feed.Config, *database.Feed, bool) {
	feedConfig, err := h.configCache.Get(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return nil, nil, false
	}

	stored, err := h.feedRepo.GetFeed(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, nil, false
	}

	if stored == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found in database"})
		return nil, nil, false
	}

	return feedConfig, stored, true
}

func requestScheme(c *gin.Context) string {
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}
