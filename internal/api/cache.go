package api

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS http_cache (
	cache_key TEXT PRIMARY KEY,
	url       TEXT NOT NULL,
	etag      TEXT NOT NULL,
	body      BLOB NOT NULL,
	stored_at INTEGER NOT NULL
)`

// CacheMaxAge is how long an entry is kept without being refreshed.
const CacheMaxAge = 30 * 24 * time.Hour

// CacheEntry is a stored response body and its validator.
type CacheEntry struct {
	URL      string
	ETag     string
	Body     []byte
	StoredAt time.Time
}

// Cache stores ETag-validated GET responses in SQLite so repeated runs can
// revalidate with If-None-Match instead of downloading again.
type Cache struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenCache opens (creating if needed) the cache database in dir.
func OpenCache(dir string) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache dir is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	path := filepath.Join(filepath.Clean(dir), "responses.db")
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &Cache{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file.
func (c *Cache) Path() string { return c.path }

// Close releases the database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Key derives the cache key for a URL fetched with token. Different tokens
// never share entries.
func (c *Cache) Key(rawURL, token string) string {
	h := sha256.New()
	h.Write([]byte(rawURL))
	h.Write([]byte{0})
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the entry for key.
func (c *Cache) Get(ctx context.Context, key string) (CacheEntry, bool, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT url, etag, body, stored_at FROM http_cache WHERE cache_key = ?`, key)

	var entry CacheEntry
	var storedAt int64
	if err := row.Scan(&entry.URL, &entry.ETag, &entry.Body, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CacheEntry{}, false, nil
		}
		return CacheEntry{}, false, fmt.Errorf("get cache entry: %w", err)
	}
	entry.StoredAt = time.UnixMilli(storedAt).UTC()
	return entry, true, nil
}

// Put upserts an entry.
func (c *Cache) Put(ctx context.Context, key, rawURL, etag string, body []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO http_cache (cache_key, url, etag, body, stored_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			url = excluded.url,
			etag = excluded.etag,
			body = excluded.body,
			stored_at = excluded.stored_at`,
		key, rawURL, etag, body, c.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// CacheStats summarizes the cache contents.
type CacheStats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// Stats counts entries and stored body bytes.
func (c *Cache) Stats(ctx context.Context) (CacheStats, error) {
	var s CacheStats
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(LENGTH(body)), 0) FROM http_cache`).Scan(&s.Entries, &s.Bytes)
	if err != nil {
		return CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return s, nil
}

// Prune deletes entries stored before cutoff and returns how many went.
func (c *Cache) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM http_cache WHERE stored_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return res.RowsAffected()
}

// Clear deletes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM http_cache`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}
