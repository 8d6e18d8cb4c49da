package api

import (
	"github.com/lysyi3m/feedsub/app/database"
	"github.com/lysyi3m/feedsub/app/feed"
	"github.com/lysyi3m/feedsub/app/tasks"
)

const (
	defaultItemsLimit = 50
	maxItemsLimit     = 500
)

type Handler struct {
	feedRepo    database.FeedRepository
	itemRepo    database.ItemRepository
	configCache *feed.ConfigCache
	filterer    *feed.Filterer
	generator   *feed.Generator
	registry    *tasks.Registry
	scheduler   tasks.TaskSchedulerInterface
	version     string
}
