package derivative

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPregeneratorSkipsAlreadyCachedVariants(t *testing.T) {
	dir := t.TempDir()
	cache := New(dir)
	require.NoError(t, cache.EnsureDir())

	v := Variant{RelPath: "a.jpg", SizeToken: SizeToken(240), FormatExt: "jpg"}
	key := Key(v.RelPath, v.SizeToken, v.FormatExt, WatermarkToken(v.Watermark))
	require.NoError(t, cache.Store(key, v.FormatExt, []byte("already-here")))

	p := NewPregenerator(cache, 2)
	var calls atomic.Int32
	results := p.Run(context.Background(), []Variant{v}, func(ctx context.Context, v Variant) ([]byte, error) {
		calls.Add(1)
		return []byte("fresh"), nil
	})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Equal(t, int32(0), calls.Load(), "cached variant must not invoke the generator")
}

func TestPregeneratorGeneratesAndCachesMissingVariants(t *testing.T) {
	dir := t.TempDir()
	cache := New(dir)
	require.NoError(t, cache.EnsureDir())

	variants := []Variant{
		{RelPath: "a.jpg", SizeToken: SizeToken(240), FormatExt: "jpg"},
		{RelPath: "b.jpg", SizeToken: SizeToken(240), FormatExt: "jpg"},
	}

	p := NewPregenerator(cache, 2)
	results := p.Run(context.Background(), variants, func(ctx context.Context, v Variant) ([]byte, error) {
		return []byte("generated:" + v.RelPath), nil
	})

	require.Len(t, results, 2)
	for i, r := range results {
		require.NoError(t, r.Err)
		key := Key(variants[i].RelPath, variants[i].SizeToken, variants[i].FormatExt, WatermarkToken(false))
		data, hit := cache.Lookup(key, "jpg", time.Time{})
		require.True(t, hit)
		require.Equal(t, []byte("generated:"+variants[i].RelPath), data)
	}
}

func TestPregeneratorRegeneratesVariantOlderThanSource(t *testing.T) {
	dir := t.TempDir()
	cache := New(dir)
	require.NoError(t, cache.EnsureDir())

	v := Variant{RelPath: "a.jpg", SizeToken: SizeToken(240), FormatExt: "jpg"}
	key := Key(v.RelPath, v.SizeToken, v.FormatExt, WatermarkToken(v.Watermark))
	require.NoError(t, cache.Store(key, v.FormatExt, []byte("stale")))

	cachedInfo, err := os.Stat(cache.Filename(key, v.FormatExt))
	require.NoError(t, err)
	v.SourceModTime = cachedInfo.ModTime().Add(time.Hour)

	p := NewPregenerator(cache, 1)
	var calls atomic.Int32
	results := p.Run(context.Background(), []Variant{v}, func(ctx context.Context, v Variant) ([]byte, error) {
		calls.Add(1)
		return []byte("fresh"), nil
	})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Equal(t, int32(1), calls.Load(), "a variant older than its source must be regenerated")
}

func TestPregeneratorDeduplicatesConcurrentIdenticalVariants(t *testing.T) {
	dir := t.TempDir()
	cache := New(dir)
	require.NoError(t, cache.EnsureDir())

	// Same variant repeated: only one generation should ever run, since the
	// cache lookup for the second copy races the first's in-flight write,
	// but the dedup group collapses identical keys regardless of order.
	v := Variant{RelPath: "dup.jpg", SizeToken: SizeToken(240), FormatExt: "jpg"}
	variants := make([]Variant, 8)
	for i := range variants {
		variants[i] = v
	}

	var calls atomic.Int32
	p := NewPregenerator(cache, 4)
	results := p.Run(context.Background(), variants, func(ctx context.Context, v Variant) ([]byte, error) {
		calls.Add(1)
		return []byte("payload"), nil
	})

	for _, r := range results {
		require.NoError(t, r.Err)
	}
	require.Equal(t, int32(1), calls.Load())
}

func TestPregeneratorStopsLaunchingAfterContextCanceled(t *testing.T) {
	dir := t.TempDir()
	cache := New(dir)
	require.NoError(t, cache.EnsureDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := Variant{RelPath: "a.jpg", SizeToken: SizeToken(240), FormatExt: "jpg"}
	p := NewPregenerator(cache, 1)
	results := p.Run(ctx, []Variant{v}, func(ctx context.Context, v Variant) ([]byte, error) {
		t.Fatal("generator must not run once the context is already canceled")
		return nil, nil
	})

	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
}
