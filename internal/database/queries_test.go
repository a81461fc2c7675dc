package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertTestItem(t *testing.T, db *DB, title, date string, source int64) Item {
	t.Helper()
	item := Item{
		Title:   title,
		Date:    date,
		Link:    "http://example.com/" + title,
		Body:    "body of " + title,
		Source:  source,
		Deleted: Visible,
		Flag:    FlagUnread,
	}
	if _, err := db.InsertItem(context.Background(), &item); err != nil {
		t.Fatalf("Failed to insert item %q: %v", title, err)
	}
	return item
}

func TestInsertItemAssignsID(t *testing.T) {
	db := setupTestDB(t)

	first := insertTestItem(t, db, "first", "2023-01-01 10:00:00", 1)
	second := insertTestItem(t, db, "second", "2023-01-02 10:00:00", 1)

	if first.ID == 0 || second.ID == 0 {
		t.Fatalf("Expected assigned ids, got %d and %d", first.ID, second.ID)
	}
	if second.ID <= first.ID {
		t.Errorf("Expected ids to grow with insertion order, got %d then %d", first.ID, second.ID)
	}
}

func TestCountByTitle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insertTestItem(t, db, "known title", "2023-01-01 10:00:00", 1)

	count, err := db.CountByTitle(ctx, "known title")
	if err != nil {
		t.Fatalf("CountByTitle failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected count 1, got %d", count)
	}

	count, err = db.CountByTitle(ctx, "unknown title")
	if err != nil {
		t.Fatalf("CountByTitle failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected count 0, got %d", count)
	}
}

func TestCountByTitleIncludesDeleted(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	item := insertTestItem(t, db, "gone", "2023-01-01 10:00:00", 1)
	if err := db.SoftDeleteItem(ctx, item.ID); err != nil {
		t.Fatalf("SoftDeleteItem failed: %v", err)
	}

	count, err := db.CountByTitle(ctx, "gone")
	if err != nil {
		t.Fatalf("CountByTitle failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Soft-deleted rows must still count for dedup, got %d", count)
	}
}

func TestGetVisibleItems(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	older := insertTestItem(t, db, "older", "2023-01-01 10:00:00", 1)
	newer := insertTestItem(t, db, "newer", "2023-01-05 10:00:00", 1)
	insertTestItem(t, db, "other source", "2023-01-03 10:00:00", 2)
	hidden := insertTestItem(t, db, "hidden", "2023-01-04 10:00:00", 1)
	if err := db.SoftDeleteItem(ctx, hidden.ID); err != nil {
		t.Fatalf("SoftDeleteItem failed: %v", err)
	}

	items, err := db.GetVisibleItems(ctx, 1)
	if err != nil {
		t.Fatalf("GetVisibleItems failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 visible items for source 1, got %d", len(items))
	}
	if items[0].ID != newer.ID || items[1].ID != older.ID {
		t.Errorf("Expected newest-first order, got ids %d, %d", items[0].ID, items[1].ID)
	}
}

func TestSearchItems(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insertTestItem(t, db, "quantum computing", "2023-01-01 10:00:00", 1)
	insertTestItem(t, db, "gardening", "2023-01-02 10:00:00", 1)

	items, err := db.SearchItems(ctx, "quantum")
	if err != nil {
		t.Fatalf("SearchItems failed: %v", err)
	}
	if len(items) != 1 || items[0].Title != "quantum computing" {
		t.Errorf("Expected only the quantum item, got %v", items)
	}

	// "body of gardening" should match on body too
	items, err = db.SearchItems(ctx, "of gardening")
	if err != nil {
		t.Fatalf("SearchItems failed: %v", err)
	}
	if len(items) != 1 || items[0].Title != "gardening" {
		t.Errorf("Expected body match for gardening, got %v", items)
	}
}

func TestItemFlags(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	item := insertTestItem(t, db, "flags", "2023-01-01 10:00:00", 1)

	if err := db.MarkItemRead(ctx, item.ID); err != nil {
		t.Fatalf("MarkItemRead failed: %v", err)
	}
	items, err := db.GetVisibleItems(ctx, 1)
	if err != nil {
		t.Fatalf("GetVisibleItems failed: %v", err)
	}
	if items[0].Flag != FlagRead {
		t.Errorf("Expected flag %d, got %d", FlagRead, items[0].Flag)
	}

	if err := db.MarkItemFavorite(ctx, item.ID); err != nil {
		t.Fatalf("MarkItemFavorite failed: %v", err)
	}
	items, _ = db.GetVisibleItems(ctx, 1)
	if items[0].Flag != FlagFavorite {
		t.Errorf("Expected flag %d, got %d", FlagFavorite, items[0].Flag)
	}

	if err := db.MarkItemRead(ctx, 9999); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound for missing item, got %v", err)
	}
}

func TestPurgeDeletedBefore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	oldDeleted := insertTestItem(t, db, "old deleted", "2022-12-01 10:00:00", 1)
	oldFavorite := insertTestItem(t, db, "old favorite", "2022-12-01 10:00:00", 1)
	insertTestItem(t, db, "old visible", "2022-12-01 10:00:00", 1)
	recentDeleted := insertTestItem(t, db, "recent deleted", "2023-01-10 10:00:00", 1)

	for _, id := range []int64{oldDeleted.ID, oldFavorite.ID, recentDeleted.ID} {
		if err := db.SoftDeleteItem(ctx, id); err != nil {
			t.Fatalf("SoftDeleteItem failed: %v", err)
		}
	}
	if err := db.MarkItemFavorite(ctx, oldFavorite.ID); err != nil {
		t.Fatalf("MarkItemFavorite failed: %v", err)
	}

	cutoff := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	n, err := db.PurgeDeletedBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("PurgeDeletedBefore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 purged row, got %d", n)
	}

	for _, tc := range []struct {
		title string
		want  int
	}{
		{"old deleted", 0},
		{"old favorite", 1},
		{"old visible", 1},
		{"recent deleted", 1},
	} {
		count, err := db.CountByTitle(ctx, tc.title)
		if err != nil {
			t.Fatalf("CountByTitle failed: %v", err)
		}
		if count != tc.want {
			t.Errorf("Title %q: expected %d rows after purge, got %d", tc.title, tc.want, count)
		}
	}
}

func TestSettings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Defaults are seeded on schema creation.
	if _, err := db.GetSetting(ctx, "blacklist"); err != nil {
		t.Fatalf("Expected seeded blacklist setting, got %v", err)
	}
	days, err := db.GetSettingInt(ctx, "expunge_days")
	if err != nil {
		t.Fatalf("GetSettingInt failed: %v", err)
	}
	if days != 7 {
		t.Errorf("Expected default expunge_days 7, got %d", days)
	}

	if err := db.UpdateSetting(ctx, "expunge_days", "14"); err != nil {
		t.Fatalf("UpdateSetting failed: %v", err)
	}
	days, _ = db.GetSettingInt(ctx, "expunge_days")
	if days != 14 {
		t.Errorf("Expected updated expunge_days 14, got %d", days)
	}

	if _, err := db.GetSetting(ctx, "no such key"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFetchState(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, ok, err := db.GetFetchState(ctx, "http://example.com/feed")
	if err != nil {
		t.Fatalf("GetFetchState failed: %v", err)
	}
	if ok {
		t.Error("Expected no fetch state before the first fetch")
	}

	at := time.Date(2023, 1, 15, 12, 30, 45, 0, time.UTC)
	if err := db.SetFetchState(ctx, "http://example.com/feed", at); err != nil {
		t.Fatalf("SetFetchState failed: %v", err)
	}

	got, ok, err := db.GetFetchState(ctx, "http://example.com/feed")
	if err != nil {
		t.Fatalf("GetFetchState failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected fetch state after SetFetchState")
	}
	if !got.Equal(at) {
		t.Errorf("Expected %v, got %v", at, got)
	}

	// Overwrite
	later := at.Add(time.Hour)
	if err := db.SetFetchState(ctx, "http://example.com/feed", later); err != nil {
		t.Fatalf("SetFetchState failed: %v", err)
	}
	got, _, _ = db.GetFetchState(ctx, "http://example.com/feed")
	if !got.Equal(later) {
		t.Errorf("Expected %v after overwrite, got %v", later, got)
	}
}

func TestFormatDate(t *testing.T) {
	at := time.Date(2023, 2, 3, 4, 5, 6, 0, time.UTC)
	if got := FormatDate(at); got != "2023-02-03 04:05:06" {
		t.Errorf("Expected zero-padded canonical date, got %q", got)
	}
}
