package sigcache

import (
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite is a persistent cache backend. It survives process restarts, which
// matters for the slowly-changing signals (population is cached for a day).
type SQLite struct {
	db *sql.DB
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS signal_cache (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_signal_cache_expires_at ON signal_cache(expires_at);
`

// NewSQLite opens (or creates) the cache database at path and configures
// WAL mode for concurrent readers.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sigcache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sigcache: exec %s", pragma)
		}
	}
	if _, err := db.Exec(sqliteMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sigcache: migrate")
	}
	return &SQLite{db: db}, nil
}

// Get implements Cache. Expired rows are deleted on read.
func (c *SQLite) Get(key string) ([]byte, bool) {
	var val string
	err := c.db.QueryRow(
		"SELECT value FROM signal_cache WHERE key = ? AND expires_at > datetime('now')",
		key,
	).Scan(&val)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			zap.L().Warn("sigcache: sqlite read failed", zap.Error(err))
		}
		// Lazy expiry: clear the stale row if that is what blocked the read.
		_, _ = c.db.Exec("DELETE FROM signal_cache WHERE key = ? AND expires_at <= datetime('now')", key)
		return nil, false
	}
	return []byte(val), true
}

// Set implements Cache. Cache write failures are logged, not surfaced: the
// cache is an optimization, never a correctness dependency.
func (c *SQLite) Set(key string, val []byte, ttl time.Duration) {
	expires := time.Now().UTC().Add(ttl).Format("2006-01-02 15:04:05")
	_, err := c.db.Exec(`
		INSERT INTO signal_cache (key, value, cached_at, expires_at)
		VALUES (?, ?, datetime('now'), ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at`,
		key, string(val), expires,
	)
	if err != nil {
		zap.L().Warn("sigcache: sqlite write failed", zap.Error(err))
	}
}

// Close releases the underlying database handle.
func (c *SQLite) Close() error {
	return c.db.Close()
}
