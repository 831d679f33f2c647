package sigcache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	c, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSQLite_SetGet(t *testing.T) {
	t.Parallel()

	c := newTestSQLite(t)
	c.Set("population|1.0000,2.0000|||2026", []byte(`{"population":1234}`), time.Hour)

	val, ok := c.Get("population|1.0000,2.0000|||2026")
	require.True(t, ok)
	assert.JSONEq(t, `{"population":1234}`, string(val))
}

func TestSQLite_Miss(t *testing.T) {
	t.Parallel()

	c := newTestSQLite(t)
	_, ok := c.Get("absent")
	assert.False(t, ok)
}

func TestSQLite_Overwrite(t *testing.T) {
	t.Parallel()

	c := newTestSQLite(t)
	c.Set("k", []byte("first"), time.Hour)
	c.Set("k", []byte("second"), time.Hour)

	val, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "second", string(val))
}

func TestSQLite_TTLExpiry(t *testing.T) {
	t.Parallel()

	c := newTestSQLite(t)
	// Already-expired entry must read as a miss and be cleared lazily.
	c.Set("k", []byte("v"), -time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)

	var n int
	err := c.db.QueryRow("SELECT COUNT(*) FROM signal_cache WHERE key = ?", "k").Scan(&n)
	require.NoError(t, err)
	assert.Zero(t, n)
}
