package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the durable policy store: groups, members, warnings, blocked words
// and media settings. Every method returns a TransientStoreError on failure.
type Store struct {
	db *sqlx.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS chat_groups (
		chat_id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT 'en',
		welcome_enabled INTEGER NOT NULL DEFAULT 1,
		goodbye_enabled INTEGER NOT NULL DEFAULT 1,
		captcha_enabled INTEGER NOT NULL DEFAULT 0,
		approval_mode INTEGER NOT NULL DEFAULT 0,
		anti_flood_enabled INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS members (
		group_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		username TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		is_approved INTEGER NOT NULL DEFAULT 0,
		is_admin INTEGER NOT NULL DEFAULT 0,
		warnings_count INTEGER NOT NULL DEFAULT 0,
		joined_at INTEGER NOT NULL,
		PRIMARY KEY (group_id, user_id)
	);`,
	`CREATE TABLE IF NOT EXISTS warnings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		issued_by TEXT NOT NULL,
		issued_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_warnings_user ON warnings (group_id, user_id);`,
	`CREATE TABLE IF NOT EXISTS blocked_words (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id TEXT NOT NULL,
		word TEXT NOT NULL,
		is_regex INTEGER NOT NULL DEFAULT 0,
		UNIQUE (group_id, word)
	);`,
	`CREATE TABLE IF NOT EXISTS media_settings (
		group_id TEXT NOT NULL,
		media_type TEXT NOT NULL,
		allowed INTEGER NOT NULL DEFAULT 1,
		admin_only INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (group_id, media_type)
	);`,
}

// Columns added after the first release.
var alterStatements = []string{
	`ALTER TABLE chat_groups ADD COLUMN night_mode_enabled INTEGER NOT NULL DEFAULT 0`,
	`ALTER TABLE chat_groups ADD COLUMN night_mode_start TEXT NOT NULL DEFAULT '23:00'`,
	`ALTER TABLE chat_groups ADD COLUMN night_mode_end TEXT NOT NULL DEFAULT '07:00'`,
	`ALTER TABLE warnings ADD COLUMN event_id TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE warnings ADD COLUMN triggered_ban INTEGER NOT NULL DEFAULT 0`,
}

// Indexes that depend on migrated columns.
var postMigrate = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_warnings_event ON warnings (group_id, event_id) WHERE event_id != '';`,
	`CREATE INDEX IF NOT EXISTS idx_warnings_issued ON warnings (group_id, issued_at);`,
}

// Open connects to the SQLite database at dbPath and ensures all tables exist.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// SQLite allows a single writer; one connection keeps transactions from
	// tripping over each other with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	for _, stmt := range alterStatements {
		_, err := db.Exec(stmt)
		if err != nil && !strings.Contains(err.Error(), "duplicate column name") {
			return fmt.Errorf("failed to execute ALTER statement %s: %w", stmt, err)
		}
	}

	for _, stmt := range postMigrate {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
