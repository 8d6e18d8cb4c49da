package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	ext "github.com/mmcdole/gofeed/extensions"
	jsonfeed "github.com/mmcdole/gofeed/json"
	"github.com/mmcdole/gofeed/rss"
)

// BufferedTokenizer reads the whole document and parses it with gofeed's
// format parsers. It understands JSON Feed in addition to RSS and Atom, at
// the cost of holding the full document in memory.
type BufferedTokenizer struct {
	rssParser  *rss.Parser
	atomParser *atom.Parser
	jsonParser *jsonfeed.Parser
}

func NewBufferedTokenizer() *BufferedTokenizer {
	return &BufferedTokenizer{
		rssParser:  &rss.Parser{},
		atomParser: &atom.Parser{},
		jsonParser: &jsonfeed.Parser{},
	}
}

var _ Tokenizer = (*BufferedTokenizer)(nil)

func (t *BufferedTokenizer) Run(r io.Reader, sink Sink) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read feed: %w", err)
	}

	switch gofeed.DetectFeedType(bytes.NewReader(data)) {
	case gofeed.FeedTypeRSS:
		feed, err := t.rssParser.Parse(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to parse RSS feed: %w", err)
		}
		t.replayRSS(feed, sink)

	case gofeed.FeedTypeAtom:
		feed, err := t.atomParser.Parse(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to parse Atom feed: %w", err)
		}
		t.replayAtom(feed, sink)

	case gofeed.FeedTypeJSON:
		feed, err := t.jsonParser.Parse(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to parse JSON feed: %w", err)
		}
		t.replayJSON(feed, sink)

	default:
		return ErrUnknownFormat
	}

	return nil
}

func (t *BufferedTokenizer) replayRSS(feed *rss.Feed, sink Sink) {
	emitMeta(sink, MetaTitle, feed.Title)
	emitMeta(sink, MetaPubDate, feed.PubDate)
	emitMeta(sink, MetaLastBuildDate, feed.LastBuildDate)
	emitMeta(sink, MetaTTL, feed.TTL)
	if len(feed.SkipHours) > 0 {
		sink.Meta(MetaSkipHours, trimAll(feed.SkipHours)...)
	}
	if len(feed.SkipDays) > 0 {
		sink.Meta(MetaSkipDays, trimAll(feed.SkipDays)...)
	}

	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}

		item := &Item{
			Title:       strings.TrimSpace(entry.Title),
			Link:        strings.TrimSpace(entry.Link),
			Description: strings.TrimSpace(entry.Description),
			Content:     strings.TrimSpace(entry.Content),
			Author:      strings.TrimSpace(entry.Author),
			PubDate:     strings.TrimSpace(entry.PubDate),
			Published:   extensionText(entry.Extensions, "published", "issued"),
			Updated:     extensionText(entry.Extensions, "updated", "modified"),
		}
		if entry.GUID != nil {
			item.GUID = strings.TrimSpace(entry.GUID.Value)
		}
		if dc := entry.DublinCoreExt; dc != nil {
			if item.PubDate == "" {
				item.PubDate = firstText(dc.Date)
			}
			if item.Author == "" {
				item.Author = firstText(dc.Creator)
			}
		}
		for _, category := range entry.Categories {
			if category != nil && strings.TrimSpace(category.Value) != "" {
				item.Categories = append(item.Categories, strings.TrimSpace(category.Value))
			}
		}

		if !sink.Item(item) {
			return
		}
	}
}

func (t *BufferedTokenizer) replayAtom(feed *atom.Feed, sink Sink) {
	emitMeta(sink, MetaTitle, feed.Title)
	emitMeta(sink, MetaUpdated, feed.Updated)

	for _, entry := range feed.Entries {
		if entry == nil {
			continue
		}

		item := &Item{
			Title:       strings.TrimSpace(entry.Title),
			Link:        atomLink(entry.Links),
			Description: strings.TrimSpace(entry.Summary),
			GUID:        strings.TrimSpace(entry.ID),
			Published:   strings.TrimSpace(entry.Published),
			Updated:     strings.TrimSpace(entry.Updated),
		}
		if entry.Content != nil {
			item.Content = strings.TrimSpace(entry.Content.Value)
		}
		for _, author := range entry.Authors {
			if author == nil {
				continue
			}
			if formatted := formatAuthor(strings.TrimSpace(author.Name), strings.TrimSpace(author.Email)); formatted != "" {
				item.Author = formatted
				break
			}
		}
		for _, category := range entry.Categories {
			if category == nil {
				continue
			}
			if value := cmp.Or(strings.TrimSpace(category.Term), strings.TrimSpace(category.Label)); value != "" {
				item.Categories = append(item.Categories, value)
			}
		}

		if !sink.Item(item) {
			return
		}
	}
}

func (t *BufferedTokenizer) replayJSON(feed *jsonfeed.Feed, sink Sink) {
	emitMeta(sink, MetaTitle, feed.Title)

	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}

		item := &Item{
			Title:       strings.TrimSpace(entry.Title),
			Link:        strings.TrimSpace(cmp.Or(entry.URL, entry.ExternalURL)),
			Description: strings.TrimSpace(entry.Summary),
			Content:     strings.TrimSpace(cmp.Or(entry.ContentHTML, entry.ContentText)),
			GUID:        strings.TrimSpace(entry.ID),
			Published:   strings.TrimSpace(entry.DatePublished),
			Updated:     strings.TrimSpace(entry.DateModified),
			Categories:  trimAll(entry.Tags),
		}
		if entry.Author != nil {
			item.Author = strings.TrimSpace(entry.Author.Name)
		}

		if !sink.Item(item) {
			return
		}
	}
}

func atomLink(links []*atom.Link) string {
	var fallback string
	for _, link := range links {
		if link == nil || link.Href == "" {
			continue
		}
		if link.Rel == "" || link.Rel == "alternate" {
			return strings.TrimSpace(link.Href)
		}
		if fallback == "" {
			fallback = strings.TrimSpace(link.Href)
		}
	}
	return fallback
}

// extensionText returns the first value of a namespaced item element such as
// atom:updated or dcterms:modified, trying names in order.
func extensionText(extensions ext.Extensions, names ...string) string {
	prefixes := slices.Sorted(maps.Keys(extensions))
	for _, name := range names {
		for _, prefix := range prefixes {
			for _, extension := range extensions[prefix][name] {
				if value := strings.TrimSpace(extension.Value); value != "" {
					return value
				}
			}
		}
	}
	return ""
}

func emitMeta(sink Sink, name, value string) {
	if value = strings.TrimSpace(value); value != "" {
		sink.Meta(name, value)
	}
}
