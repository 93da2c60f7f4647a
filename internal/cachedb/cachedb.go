// Package cachedb persists the session index cache in SQLite so restarts
// can serve metadata without re-parsing every session file.
package cachedb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Acidni-LLC/copilot-chat-manager/internal/index"
)

// SchemaVersion tracks the current database schema version.
// Bump this when adding migrations.
const SchemaVersion = 1

// DefaultFileName is the database file created under the app directory.
const DefaultFileName = "cache.db"

// CacheDB wraps a SQLite database holding cache entries.
// Thread-safe for concurrent use from multiple goroutines within one process.
// Multiple OS processes can safely read/write via WAL mode + busy timeout.
type CacheDB struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at dbPath with WAL mode and busy
// timeout.
func Open(dbPath string) (*CacheDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("cachedb: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cachedb: open: %w", err)
	}

	// WAL mode: allows concurrent readers while writing
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cachedb: wal mode: %w", err)
	}

	// Busy timeout: wait up to 5s if another process holds a lock
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cachedb: busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cachedb: foreign keys: %w", err)
	}

	return &CacheDB{db: db}, nil
}

// Close checkpoints WAL and closes the database.
func (c *CacheDB) Close() error {
	_, _ = c.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return c.db.Close()
}

// DB returns the underlying sql.DB for advanced use cases (e.g., testing).
func (c *CacheDB) DB() *sql.DB {
	return c.db
}

// Migrate creates tables if they don't exist.
//
// Timestamps are stored as INTEGER nanoseconds, never as formatted text:
// the staleness check compares mtimes exactly, and a text round-trip that
// drops sub-second precision would invalidate every cache entry on reload.
func (c *CacheDB) Migrate() error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("cachedb: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("cachedb: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			path     TEXT PRIMARY KEY,
			identity TEXT NOT NULL,
			mtime_ns INTEGER NOT NULL,
			size     INTEGER NOT NULL,
			summary  TEXT NOT NULL DEFAULT '{}'
		)
	`); err != nil {
		return fmt.Errorf("cachedb: create entries: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, fmt.Sprintf("%d", SchemaVersion)); err != nil {
		return fmt.Errorf("cachedb: set schema version: %w", err)
	}

	return tx.Commit()
}

// IsEmpty returns true if the entries table has no rows.
func (c *CacheDB) IsEmpty() (bool, error) {
	var count int
	err := c.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// SaveEntries replaces the persisted cache with the given entries in a
// single transaction. Rows not in the new list are deleted, so sessions
// removed from disk don't reappear on reload.
func (c *CacheDB) SaveEntries(entries []*index.CacheEntry) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if len(entries) == 0 {
		if _, err := tx.Exec("DELETE FROM entries"); err != nil {
			return err
		}
	} else {
		placeholders := make([]string, len(entries))
		args := make([]any, len(entries))
		for i, e := range entries {
			placeholders[i] = "?"
			args[i] = e.Path
		}
		query := "DELETE FROM entries WHERE path NOT IN (" + strings.Join(placeholders, ",") + ")"
		if _, err := tx.Exec(query, args...); err != nil {
			return err
		}
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO entries (path, identity, mtime_ns, size, summary)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		summary, err := json.Marshal(e.Summary)
		if err != nil {
			return fmt.Errorf("cachedb: marshal summary %s: %w", e.Identity, err)
		}
		if _, err := stmt.Exec(e.Path, e.Identity, e.ModTime.UnixNano(), e.Size, string(summary)); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return c.Touch()
}

// LoadEntries returns all persisted cache entries. Rows whose summary blob
// no longer unmarshals are skipped rather than failing the whole load.
func (c *CacheDB) LoadEntries() ([]*index.CacheEntry, error) {
	rows, err := c.db.Query("SELECT path, identity, mtime_ns, size, summary FROM entries")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*index.CacheEntry
	for rows.Next() {
		e := &index.CacheEntry{}
		var mtimeNS int64
		var summaryStr string
		if err := rows.Scan(&e.Path, &e.Identity, &mtimeNS, &e.Size, &summaryStr); err != nil {
			return nil, err
		}
		e.ModTime = time.Unix(0, mtimeNS)

		var summary index.SessionSummary
		if err := json.Unmarshal([]byte(summaryStr), &summary); err != nil {
			continue
		}
		e.Summary = &summary
		result = append(result, e)
	}
	return result, rows.Err()
}

// DeleteEntry removes one entry by path.
func (c *CacheDB) DeleteEntry(path string) error {
	_, err := c.db.Exec("DELETE FROM entries WHERE path = ?", path)
	return err
}

// --- Metadata ---

// SetMeta sets a key-value pair in the metadata table.
func (c *CacheDB) SetMeta(key, value string) error {
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta gets a value from the metadata table. Returns "" if not found.
func (c *CacheDB) GetMeta(key string) (string, error) {
	var value string
	err := c.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Touch updates a metadata timestamp that other instances can poll to
// detect changes.
func (c *CacheDB) Touch() error {
	return c.SetMeta("last_modified", fmt.Sprintf("%d", time.Now().UnixNano()))
}

// LastModified returns the last_modified timestamp from metadata.
func (c *CacheDB) LastModified() (int64, error) {
	val, err := c.GetMeta("last_modified")
	if err != nil || val == "" {
		return 0, err
	}
	var ts int64
	_, err = fmt.Sscanf(val, "%d", &ts)
	return ts, err
}
