package feed

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/feedsub/app/database"
)

func TestGeneratorRun(t *testing.T) {
	generator := NewGenerator("1.2.3")

	published := time.Date(2024, 7, 3, 10, 0, 0, 0, time.UTC)
	stored := time.Date(2024, 7, 4, 8, 0, 0, 0, time.UTC)

	storedFeed := database.Feed{
		Name:  "tech",
		URL:   "https://example.com/feed.xml",
		Title: "Tech & News",
	}

	items := []database.Item{
		{
			GUID:        "https://example.com/item1",
			Title:       "Item <1>",
			Link:        "https://example.com/item1",
			Author:      "jane@example.com (Jane)",
			Categories:  []string{"Go", "Feeds"},
			Summary:     "First & foremost",
			PublishedAt: &published,
		},
		{
			GUID:      "item-2",
			Title:     "Item 2",
			Link:      "https://example.com/item2",
			CreatedAt: stored,
		},
	}

	rss, err := generator.Run(storedFeed, items, "http://localhost:8080/feeds/tech")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var doc struct {
		Channel struct {
			Title         string `xml:"title"`
			LastBuildDate string `xml:"lastBuildDate"`
			Generator     string `xml:"generator"`
			Items         []struct {
				GUID struct {
					Value     string `xml:",chardata"`
					PermaLink string `xml:"isPermaLink,attr"`
				} `xml:"guid"`
				Title       string   `xml:"title"`
				Description string   `xml:"description"`
				PubDate     string   `xml:"pubDate"`
				Categories  []string `xml:"category"`
			} `xml:"item"`
		} `xml:"channel"`
	}
	if err := xml.Unmarshal([]byte(rss), &doc); err != nil {
		t.Fatalf("Generated document is not valid XML: %v", err)
	}

	channel := doc.Channel
	if channel.Title != "Tech & News" {
		t.Errorf("Expected title 'Tech & News', got '%s'", channel.Title)
	}
	if channel.Generator != "feedsub/1.2.3" {
		t.Errorf("Expected generator 'feedsub/1.2.3', got '%s'", channel.Generator)
	}
	if channel.LastBuildDate != published.Format(time.RFC1123Z) {
		t.Errorf("Expected lastBuildDate of the first item, got '%s'", channel.LastBuildDate)
	}

	if len(channel.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(channel.Items))
	}

	first := channel.Items[0]
	if first.Title != "Item <1>" {
		t.Errorf("Expected escaped title to round trip, got '%s'", first.Title)
	}
	if first.GUID.PermaLink != "true" {
		t.Errorf("Expected URL guid to be a permalink, got '%s'", first.GUID.PermaLink)
	}
	if len(first.Categories) != 2 {
		t.Errorf("Expected 2 categories, got %d", len(first.Categories))
	}

	second := channel.Items[1]
	if second.GUID.PermaLink != "false" {
		t.Errorf("Expected plain guid not to be a permalink, got '%s'", second.GUID.PermaLink)
	}
	if second.PubDate != stored.Format(time.RFC1123Z) {
		t.Errorf("Expected undated item to use its stored time, got '%s'", second.PubDate)
	}
	if second.Description != "" {
		t.Errorf("Expected no description, got '%s'", second.Description)
	}

	if !strings.Contains(rss, `<atom:link href="http://localhost:8080/feeds/tech"`) {
		t.Error("Expected self link in channel")
	}
}

func TestGeneratorRunEmpty(t *testing.T) {
	rss, err := NewGenerator("dev").Run(database.Feed{Name: "empty", URL: "https://example.com/rss"}, nil, "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(rss, "<title>empty</title>") {
		t.Error("Expected feed name as title fallback")
	}
	if strings.Contains(rss, "<item>") {
		t.Error("Expected no items")
	}
	if strings.Contains(rss, "atom:link") {
		t.Error("Expected no self link")
	}
}
