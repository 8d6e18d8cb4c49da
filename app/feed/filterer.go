package feed

import (
	"fmt"
	"strings"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run marks every item against the feed's include/exclude rules. Items are
// never dropped; callers decide what to do with filtered ones.
func (f *Filterer) Run(items []*Item, feedConfig *Config) []FilteredItem {
	result := make([]FilteredItem, 0, len(items))
	for _, item := range items {
		verdict := FilteredItem{Item: item}
		if feedConfig != nil {
			verdict.IsFiltered, verdict.FilterReason = f.check(item, feedConfig.Filters)
		}
		result = append(result, verdict)
	}
	return result
}

func (f *Filterer) check(item *Item, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := strings.ToLower(fieldValue(item, filter.Field))

		for _, exclude := range filter.Excludes {
			if strings.Contains(value, strings.ToLower(exclude)) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) == 0 {
			continue
		}

		matched := false
		for _, include := range filter.Includes {
			if strings.Contains(value, strings.ToLower(include)) {
				matched = true
				break
			}
		}
		if !matched {
			return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
		}
	}

	return false, ""
}

var filterFields = map[string]bool{
	"title":       true,
	"description": true,
	"content":     true,
	"author":      true,
	"link":        true,
	"categories":  true,
}

func fieldValue(item *Item, field string) string {
	switch field {
	case "title":
		return item.Title
	case "description":
		return item.Description
	case "content":
		return item.Content
	case "author":
		return item.Author
	case "link":
		return item.Link
	case "categories":
		return strings.Join(item.Categories, " ")
	default:
		return ""
	}
}
