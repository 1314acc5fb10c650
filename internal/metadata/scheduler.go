package metadata

import (
	"context"
	"time"

	"gallerysvc/pkg/logger"
)

// RefreshFunc performs a full metadata refresh (and optional derivative
// pregeneration), returning an error if the pass failed outright.
type RefreshFunc func(ctx context.Context) error

// StartBackgroundRefresh runs refresh once per interval until ctx is
// canceled. time.Ticker does not fire immediately, so the first refresh
// happens one interval after the call and a freshly started process does
// not redo the refresh its own startup sequence already performed.
func StartBackgroundRefresh(ctx context.Context, interval time.Duration, refresh RefreshFunc) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.Info("starting scheduled metadata cache refresh")
				if err := refresh(ctx); err != nil {
					logger.Error("failed to refresh metadata cache: %v", err)
				}
			}
		}
	}()
}

// StartPeriodicFlush saves the store to disk once per interval, but only
// when it is dirty, until ctx is canceled. As with StartBackgroundRefresh,
// the first check happens one interval after the call.
func StartPeriodicFlush(ctx context.Context, interval time.Duration, store *Store) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := store.FlushIfDirty(); err != nil {
					logger.Error("failed to save metadata cache: %v", err)
					continue
				}
				logger.Info("periodic metadata cache save completed")
			}
		}
	}()
}
