package derivative

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeyIsPureAndDeterministic(t *testing.T) {
	k1 := Key("vacation/beach.jpg", SizeToken(1024), "jpg", WatermarkToken(false))
	k2 := Key("vacation/beach.jpg", SizeToken(1024), "jpg", WatermarkToken(false))
	require.Equal(t, k1, k2)
}

func TestKeyDiffersByEachComponent(t *testing.T) {
	base := Key("a.jpg", SizeToken(100), "jpg", WatermarkToken(false))

	require.NotEqual(t, base, Key("b.jpg", SizeToken(100), "jpg", WatermarkToken(false)))
	require.NotEqual(t, base, Key("a.jpg", SizeToken(200), "jpg", WatermarkToken(false)))
	require.NotEqual(t, base, Key("a.jpg", SizeToken(100), "png", WatermarkToken(false)))
	require.NotEqual(t, base, Key("a.jpg", SizeToken(100), "jpg", WatermarkToken(true)))
}

func TestCompositeKeyIndependentFromKey(t *testing.T) {
	// CompositeKey hashes the composite string directly, with no size token
	// or watermark token mixed in.
	k := CompositeKey("folder|a.jpg,b.jpg", "jpg")
	require.Equal(t, Key("folder|a.jpg,b.jpg", "", "jpg", ""), k)
}

func TestCacheStoreThenLookupHits(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	require.NoError(t, c.EnsureDir())

	key := Key("p.jpg", SizeToken(240), "jpg", WatermarkToken(false))
	_, hit := c.Lookup(key, "jpg", time.Time{})
	require.False(t, hit, "nothing stored yet")

	require.NoError(t, c.Store(key, "jpg", []byte("derivative-bytes")))

	data, hit := c.Lookup(key, "jpg", time.Time{})
	require.True(t, hit)
	require.Equal(t, []byte("derivative-bytes"), data)
}

func TestCacheStoreIsAtomic(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	require.NoError(t, c.EnsureDir())

	key := Key("p.jpg", SizeToken(240), "jpg", WatermarkToken(false))
	require.NoError(t, c.Store(key, "jpg", []byte("first")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "no leftover temp file after a successful store")
	}

	require.NoError(t, c.Store(key, "jpg", []byte("second")))
	data, hit := c.Lookup(key, "jpg", time.Time{})
	require.True(t, hit)
	require.Equal(t, []byte("second"), data)
}

func TestLookupTreatsOlderCacheThanSourceAsMiss(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	require.NoError(t, c.EnsureDir())

	key := Key("p.jpg", SizeToken(240), "jpg", WatermarkToken(false))
	require.NoError(t, c.Store(key, "jpg", []byte("stale-bytes")))

	cached, err := os.Stat(c.Filename(key, "jpg"))
	require.NoError(t, err)

	sourceModTime := cached.ModTime().Add(time.Hour)
	_, hit := c.Lookup(key, "jpg", sourceModTime)
	require.False(t, hit, "a cache file older than the source must be a miss")

	_, hit = c.Lookup(key, "jpg", cached.ModTime().Add(-time.Hour))
	require.True(t, hit, "a cache file newer than the source is still a hit")
}

func TestFilenameUsesKeyAndExtension(t *testing.T) {
	c := New("/cache/root")
	got := c.Filename("deadbeef", "webp")
	require.Equal(t, filepath.Join("/cache/root", "deadbeef.webp"), got)
}
