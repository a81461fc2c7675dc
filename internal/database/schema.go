// Database schema and setup for the Feedwatch item store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const Schema = `
-- Settings table
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Items table: one row per ingested feed item
CREATE TABLE IF NOT EXISTS items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT,
    date DATETIME,
    link TEXT,
    body TEXT,
    image BLOB,
    source INTEGER NOT NULL DEFAULT 0,
    deleted INTEGER NOT NULL DEFAULT 0,
    flag INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Per-URL conditional fetch state
CREATE TABLE IF NOT EXISTS fetch_state (
    url TEXT PRIMARY KEY,
    last_fetch TIMESTAMP NOT NULL
);`

const Indexes = `
CREATE INDEX IF NOT EXISTS idx_items_date ON items(date DESC);
CREATE INDEX IF NOT EXISTS idx_items_title ON items(title);
CREATE INDEX IF NOT EXISTS idx_items_visible ON items(deleted, source, date DESC);`

// DateFormat is the canonical persisted timestamp layout. It is fixed-width
// and zero-padded, so lexicographic comparison of stored dates is equivalent
// to chronological comparison.
const DateFormat = "2006-01-02 15:04:05"

// FormatDate renders a time in the canonical persisted layout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateFormat)
}

// Visibility values for Item.Deleted.
const (
	Visible = 0
	Deleted = 1
)

// Read-state values for Item.Flag.
const (
	FlagRead     = 0
	FlagUnread   = 1
	FlagFavorite = 2
)

// DB represents our database connection and operations
type DB struct {
	*sql.DB
}

// Configuration for the database
type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns the default database configuration
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// NewDB creates a new database connection with optimized settings
func NewDB(dbPath string, cfg Config) (*DB, error) {
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL",
		dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating schema: %w", err)
	}

	return &DB{db}, nil
}

func createSchema(db *sql.DB) error {
	if _, err := db.Exec(`
        PRAGMA journal_mode=WAL;
        PRAGMA synchronous=NORMAL;
        PRAGMA cache_size=10000;
        PRAGMA temp_store=MEMORY;
    `); err != nil {
		return fmt.Errorf("error setting pragmas: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(Schema); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}
	if _, err := tx.Exec(Indexes); err != nil {
		return fmt.Errorf("error creating indexes: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing schema: %w", err)
	}

	return insertDefaultSettings(db)
}

// insertDefaultSettings seeds behavioral settings without overwriting
// values an operator has already changed.
func insertDefaultSettings(db *sql.DB) error {
	defaults := map[string]string{
		"blacklist":       "",
		"notify_color":    "#ff6600",
		"notify_mode":     "2",
		"max_image_width": "256",
		"expunge_days":    "7",
		"strip_marker":    "",
	}

	for key, value := range defaults {
		_, err := db.Exec(
			"INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)",
			key, value,
		)
		if err != nil {
			return fmt.Errorf("error inserting default setting %s: %w", key, err)
		}
	}
	return nil
}
