package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Error definitions
var (
	ErrNotFound = errors.New("record not found")
)

// Item is a persisted feed item. ID is assigned by the store on insert and
// never changes afterwards. Date holds the canonical DateFormat string.
type Item struct {
	ID      int64
	Title   string
	Date    string
	Link    string
	Body    string
	Image   []byte
	Source  int64
	Deleted int
	Flag    int
}

// InsertItem stores a new item and fills in its assigned id.
func (db *DB) InsertItem(ctx context.Context, item *Item) (int64, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (title, date, link, body, image, source, deleted, flag)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Title, item.Date, item.Link, item.Body, item.Image,
		item.Source, item.Deleted, item.Flag,
	)
	if err != nil {
		return 0, fmt.Errorf("error inserting item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error reading inserted item id: %w", err)
	}
	item.ID = id
	return id, nil
}

// CountByTitle reports how many stored items carry exactly this title,
// regardless of visibility. Title equality is the dedup key.
func (db *DB) CountByTitle(ctx context.Context, title string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM items WHERE title = ?",
		title,
	).Scan(&count)
	return count, err
}

// GetVisibleItems returns the visible items of one source, newest first.
func (db *DB) GetVisibleItems(ctx context.Context, source int64) ([]Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, title, date, link, body, image, source, deleted, flag
         FROM items WHERE deleted = ? AND source = ?
         ORDER BY date DESC`,
		Visible, source,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// SearchItems matches the query as a substring of title or body among
// visible items, newest first.
func (db *DB) SearchItems(ctx context.Context, query string) ([]Item, error) {
	pattern := "%" + query + "%"
	rows, err := db.QueryContext(ctx,
		`SELECT id, title, date, link, body, image, source, deleted, flag
         FROM items WHERE deleted = ? AND (title LIKE ? OR body LIKE ?)
         ORDER BY date DESC`,
		Visible, pattern, pattern,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Title, &it.Date, &it.Link, &it.Body,
			&it.Image, &it.Source, &it.Deleted, &it.Flag); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// MarkItemRead clears the unread flag.
func (db *DB) MarkItemRead(ctx context.Context, id int64) error {
	return db.setItemFlag(ctx, id, FlagRead)
}

// MarkItemFavorite pins an item so it survives purges.
func (db *DB) MarkItemFavorite(ctx context.Context, id int64) error {
	return db.setItemFlag(ctx, id, FlagFavorite)
}

func (db *DB) setItemFlag(ctx context.Context, id int64, flag int) error {
	result, err := db.ExecContext(ctx,
		"UPDATE items SET flag = ? WHERE id = ?", flag, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteItem hides an item without removing the row, so its title keeps
// suppressing re-ingestion.
func (db *DB) SoftDeleteItem(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx,
		"UPDATE items SET deleted = ? WHERE id = ?", Deleted, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeDeletedBefore removes soft-deleted, non-favorite rows older than the
// cutoff. Visible rows and favorites are never purged here.
func (db *DB) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.ExecContext(ctx,
		"DELETE FROM items WHERE deleted = ? AND flag != ? AND date < ?",
		Deleted, FlagFavorite, FormatDate(cutoff),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// GetSetting retrieves a setting value.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?",
		key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// GetSettingInt retrieves and parses an integer setting.
func (db *DB) GetSettingInt(ctx context.Context, key string) (int, error) {
	value, err := db.GetSetting(ctx, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// UpdateSetting inserts or replaces a setting value.
func (db *DB) UpdateSetting(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	return err
}

// GetFetchState returns the stored last-fetch time for a feed URL. The
// second return value is false when no fetch has been recorded yet.
func (db *DB) GetFetchState(ctx context.Context, url string) (time.Time, bool, error) {
	var raw string
	err := db.QueryRowContext(ctx,
		"SELECT last_fetch FROM fetch_state WHERE url = ?",
		url,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.ParseInLocation(DateFormat, raw, time.UTC)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("error parsing fetch state for %s: %w", url, err)
	}
	return t, true, nil
}

// SetFetchState records the last-fetch time for a feed URL.
func (db *DB) SetFetchState(ctx context.Context, url string, t time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO fetch_state (url, last_fetch) VALUES (?, ?)
         ON CONFLICT(url) DO UPDATE SET last_fetch = excluded.last_fetch`,
		url, FormatDate(t),
	)
	return err
}
