package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdimtricp/verifai/internal/ensemble"
)

func newTestCache(t *testing.T, ttl time.Duration) *ScoreCache {
	t.Helper()
	c, err := Open(Config{InMemory: true, TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestScoreCacheRoundTrip(t *testing.T) {
	c := newTestCache(t, 0)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	b := ensemble.Breakdown{Spatial: 0.3, Temporal: 0.45, Forensic: 0.6, Metadata: 0.1}
	require.NoError(t, c.Put(ctx, "abc", Entry{Breakdown: b, Frames: 42, Settings: "fps=5"}))

	entry, ok, err := c.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, b, entry.Breakdown)
	assert.Equal(t, 42, entry.Frames)
	assert.Equal(t, "fps=5", entry.Settings)
	assert.False(t, entry.StoredAt.IsZero())

	require.NoError(t, c.Delete(ctx, "abc"))
	_, ok, err = c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, c.Delete(ctx, "never-stored"))
	assert.NoError(t, c.RunGC(0.5))
}

func TestScoreCacheOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	b := ensemble.Breakdown{Spatial: 0.9}

	c, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "k", Entry{Breakdown: b, Frames: 1}))
	require.NoError(t, c.Close())

	c, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	defer c.Close()

	entry, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.9, entry.Breakdown.Spatial)
	assert.NoError(t, c.RunGC(0.5))
}

func TestScoreCacheCanceledContext(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Put(ctx, "k", Entry{}), context.Canceled)
	assert.ErrorIs(t, c.Delete(ctx, "k"), context.Canceled)
	_, _, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp4")
	b := filepath.Join(dir, "b.mp4")
	require.NoError(t, os.WriteFile(a, []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("hello"), 0o644))

	ha, err := HashFile(a)
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", ha)

	hb, err := HashFile(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	_, err = HashFile(filepath.Join(dir, "missing.mp4"))
	assert.Error(t, err)
}
