package derivative

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gallerysvc/pkg/logger"
)

// tempFileMaxAge is how long a leftover .tmp-* file (from an atomic write
// that never completed its rename, e.g. a crash mid-write) is kept around
// before being swept. It never touches a file that has actually been
// published under its content-addressed name.
const tempFileMaxAge = 5 * time.Minute

// RunSweeperEvery periodically removes leftover .tmp-* files from
// interrupted atomic writes under root, once per interval until ctx is
// canceled. Unlike a TTL/size-based janitor, it never removes a published
// derivative: the cache directory is meant to be an append-mostly store
// that the pipeline itself never prunes.
func RunSweeperEvery(ctx context.Context, interval time.Duration, root string) {
	t := time.NewTicker(interval)
	defer t.Stop()

	select {
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
		return
	}

	sweepOnce(root)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sweepOnce(root)
		}
	}
}

func sweepOnce(root string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("derivative sweeper panic: %v", r)
		}
	}()

	expireBefore := time.Now().Add(-tempFileMaxAge)
	removed := 0

	_ = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.HasPrefix(filepath.Base(p), ".tmp-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(expireBefore) {
			if err := os.Remove(p); err == nil {
				removed++
			}
		}
		return nil
	})

	if removed > 0 {
		logger.Info("derivative sweeper removed %d stale temp files", removed)
	}
}
