package database

import (
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "data", "feedsub.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestRunMigrations(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Expected re-run to succeed, got %v", err)
	}
	if version != 2 {
		t.Errorf("Expected version 2, got %d", version)
	}
	if dirty {
		t.Error("Expected clean migration state")
	}
}

func TestUpsertFeed(t *testing.T) {
	repo := NewFeedRepository(newTestDB(t))

	changed, err := repo.UpsertFeed("news", "https://example.com/feed.xml")
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("Expected a new feed not to count as changed")
	}

	feed, err := repo.GetFeed("news")
	if err != nil {
		t.Fatal(err)
	}
	if feed == nil || feed.URL != "https://example.com/feed.xml" {
		t.Fatalf("Expected stored feed, got %+v", feed)
	}
	if feed.NextFetchAt != nil || feed.LastFetchedAt != nil {
		t.Error("Expected a new feed to be due immediately")
	}

	changed, err = repo.UpsertFeed("news", "https://example.com/feed.xml")
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("Expected unchanged URL")
	}

	count, err := repo.GetFeedCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 feed, got %d", count)
	}
}

func TestGetFeedMissing(t *testing.T) {
	repo := NewFeedRepository(newTestDB(t))

	feed, err := repo.GetFeed("missing")
	if err != nil {
		t.Fatal(err)
	}
	if feed != nil {
		t.Errorf("Expected nil feed, got %+v", feed)
	}
}

func TestSaveStateRoundTrip(t *testing.T) {
	repo := NewFeedRepository(newTestDB(t))
	if _, err := repo.UpsertFeed("news", "https://example.com/feed.xml"); err != nil {
		t.Fatal(err)
	}

	fetched := time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC)
	state := FeedState{
		Title:        "News",
		ETag:         `"v1"`,
		LastModified: "Sat, 06 Jan 2024 11:00:00 GMT",
		LastDate:     "Sat, 06 Jan 2024 10:00:00 +0000",
		Interval:     30 * time.Minute,
		History:      []string{"c", "b", "a"},
		Status:       "completed",
		FetchedAt:    fetched,
		NextFetchAt:  fetched.Add(30 * time.Minute),
	}
	if err := repo.SaveState("news", state); err != nil {
		t.Fatal(err)
	}

	feed, err := repo.GetFeed("news")
	if err != nil {
		t.Fatal(err)
	}
	if feed.Title != "News" || feed.ETag != `"v1"` || feed.LastDate != state.LastDate {
		t.Errorf("Expected saved state, got %+v", feed)
	}
	if feed.Interval != 30*time.Minute {
		t.Errorf("Expected interval 30m, got %v", feed.Interval)
	}
	if feed.NextFetchAt == nil || !feed.NextFetchAt.Equal(state.NextFetchAt) {
		t.Errorf("Expected next fetch %v, got %v", state.NextFetchAt, feed.NextFetchAt)
	}

	history, err := repo.GetHistory("news")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(history, state.History) {
		t.Errorf("Expected history %v, got %v", state.History, history)
	}

	// A later cycle without a title keeps the learned one and replaces history.
	state.Title = ""
	state.History = []string{"d", "c"}
	if err := repo.SaveState("news", state); err != nil {
		t.Fatal(err)
	}

	feed, _ = repo.GetFeed("news")
	if feed.Title != "News" {
		t.Errorf("Expected title to be kept, got %q", feed.Title)
	}
	history, _ = repo.GetHistory("news")
	if !slices.Equal(history, []string{"d", "c"}) {
		t.Errorf("Expected replaced history, got %v", history)
	}
}

func TestSaveStateUnknownFeed(t *testing.T) {
	repo := NewFeedRepository(newTestDB(t))

	if err := repo.SaveState("missing", FeedState{}); err == nil {
		t.Error("Expected error for unknown feed")
	}
}

func TestUpsertFeedURLChangeResetsState(t *testing.T) {
	repo := NewFeedRepository(newTestDB(t))
	if _, err := repo.UpsertFeed("news", "https://example.com/old.xml"); err != nil {
		t.Fatal(err)
	}
	err := repo.SaveState("news", FeedState{
		Title:    "Old",
		ETag:     `"old"`,
		Interval: time.Hour,
		History:  []string{"a"},
		Status:   "completed",
	})
	if err != nil {
		t.Fatal(err)
	}

	changed, err := repo.UpsertFeed("news", "https://example.com/new.xml")
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("Expected URL change to be reported")
	}

	feed, _ := repo.GetFeed("news")
	if feed.URL != "https://example.com/new.xml" || feed.ETag != "" || feed.Interval != 0 {
		t.Errorf("Expected reset state, got %+v", feed)
	}
	history, _ := repo.GetHistory("news")
	if len(history) != 0 {
		t.Errorf("Expected history to be dropped, got %v", history)
	}
}

func TestRecordFailure(t *testing.T) {
	repo := NewFeedRepository(newTestDB(t))
	if _, err := repo.UpsertFeed("news", "https://example.com/feed.xml"); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveState("news", FeedState{ETag: `"v1"`, History: []string{"a"}, Status: "completed"}); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	if err := repo.RecordFailure("news", "unexpected status 500", now, now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	feed, _ := repo.GetFeed("news")
	if feed.LastStatus != "failed" || feed.LastError != "unexpected status 500" {
		t.Errorf("Expected failure to be recorded, got %+v", feed)
	}
	if feed.ETag != `"v1"` {
		t.Errorf("Expected previous validators to survive, got %q", feed.ETag)
	}
	history, _ := repo.GetHistory("news")
	if !slices.Equal(history, []string{"a"}) {
		t.Errorf("Expected history to survive, got %v", history)
	}
}

func TestGetFeeds(t *testing.T) {
	repo := NewFeedRepository(newTestDB(t))
	for _, name := range []string{"b", "a"} {
		if _, err := repo.UpsertFeed(name, "https://example.com/"+name); err != nil {
			t.Fatal(err)
		}
	}

	feeds, err := repo.GetFeeds()
	if err != nil {
		t.Fatal(err)
	}
	if len(feeds) != 2 || feeds[0].Name != "a" || feeds[1].Name != "b" {
		t.Errorf("Expected feeds ordered by name, got %+v", feeds)
	}
}

func TestStoreItems(t *testing.T) {
	db := newTestDB(t)
	if _, err := NewFeedRepository(db).UpsertFeed("news", "https://example.com/feed.xml"); err != nil {
		t.Fatal(err)
	}
	repo := NewItemRepository(db)

	published := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)
	items := []NewItem{
		{Fingerprint: "fp-a", Title: "A", Link: "https://example.com/a", Categories: []string{"go", "rss"}, PublishedAt: &published},
		{Fingerprint: "fp-b", Title: "B", IsFiltered: true, FilterReason: "title contains: sponsored"},
	}

	stored, err := repo.StoreItems("news", items)
	if err != nil {
		t.Fatal(err)
	}
	if stored != 2 {
		t.Errorf("Expected 2 stored items, got %d", stored)
	}

	stored, err = repo.StoreItems("news", items[:1])
	if err != nil {
		t.Fatal(err)
	}
	if stored != 0 {
		t.Errorf("Expected duplicate to be ignored, got %d stored", stored)
	}

	visible, err := repo.GetItems("news", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 1 || visible[0].Title != "A" {
		t.Fatalf("Expected only the visible item, got %+v", visible)
	}
	if !slices.Equal(visible[0].Categories, []string{"go", "rss"}) {
		t.Errorf("Expected categories, got %v", visible[0].Categories)
	}
	if visible[0].PublishedAt == nil || !visible[0].PublishedAt.Equal(published) {
		t.Errorf("Expected published time, got %v", visible[0].PublishedAt)
	}

	all, err := repo.GetItems("news", 10, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Title != "B" {
		t.Errorf("Expected both items newest first, got %+v", all)
	}
	if !all[0].IsFiltered || all[0].FilterReason == "" {
		t.Error("Expected filter status to be stored")
	}
	if all[0].PublishedAt != nil {
		t.Error("Expected missing publish time to stay empty")
	}

	limited, _ := repo.GetItems("news", 1, true)
	if len(limited) != 1 {
		t.Errorf("Expected limit to apply, got %d", len(limited))
	}

	total, visibleCount, filtered, err := repo.GetItemStats("news")
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || visibleCount != 1 || filtered != 1 {
		t.Errorf("Expected 2/1/1, got %d/%d/%d", total, visibleCount, filtered)
	}

	count, _ := repo.GetItemCount("news")
	if count != 2 {
		t.Errorf("Expected 2 items, got %d", count)
	}
}

func TestGetItemStatsEmpty(t *testing.T) {
	repo := NewItemRepository(newTestDB(t))

	total, visible, filtered, err := repo.GetItemStats("none")
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 || visible != 0 || filtered != 0 {
		t.Errorf("Expected zero stats, got %d/%d/%d", total, visible, filtered)
	}
}

func TestUpdateItemFilterStatus(t *testing.T) {
	db := newTestDB(t)
	if _, err := NewFeedRepository(db).UpsertFeed("news", "https://example.com/feed.xml"); err != nil {
		t.Fatal(err)
	}
	repo := NewItemRepository(db)

	if _, err := repo.StoreItems("news", []NewItem{{Fingerprint: "fp-a", Title: "A"}}); err != nil {
		t.Fatal(err)
	}

	items, err := repo.GetAllItems("news")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}

	if err := repo.UpdateItemFilterStatus(items[0].ID, true, "excluded"); err != nil {
		t.Fatal(err)
	}

	visible, _ := repo.GetItems("news", 10, false)
	if len(visible) != 0 {
		t.Errorf("Expected item to be hidden, got %d visible", len(visible))
	}
	all, _ := repo.GetAllItems("news")
	if !all[0].IsFiltered || all[0].FilterReason != "excluded" {
		t.Errorf("Expected updated filter status, got %+v", all[0])
	}
}
