package metadata

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartBackgroundRefreshSkipsImmediateTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	StartBackgroundRefresh(ctx, 20*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	time.Sleep(5 * time.Millisecond)
	require.Equal(t, int32(0), calls.Load(), "must not refresh before the first tick elapses")

	time.Sleep(40 * time.Millisecond)
	require.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestStartPeriodicFlushOnlyWritesWhenDirty(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, "1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartPeriodicFlush(ctx, 15*time.Millisecond, store)
	time.Sleep(40 * time.Millisecond)
	require.False(t, store.dirty.Load())

	store.Insert("a.jpg", ImageMetadata{Width: 1, Height: 1})
	time.Sleep(40 * time.Millisecond)
	require.False(t, store.dirty.Load(), "the periodic tick should have flushed the dirty insert")
}
