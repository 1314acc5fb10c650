// Package derivative implements the content-addressed derivative cache (C3):
// resized/reformatted/watermarked variants are written once under a key
// derived from the source path and the variant descriptor, and are never
// deleted by the pipeline itself — the cache directory is an append-mostly
// grave of hashed bytes.
package derivative

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Cache is a disk-backed store of generated derivative bytes, keyed by a
// SHA-256 digest of the variant descriptor.
type Cache struct {
	dir string
}

// New returns a Cache rooted at dir. The directory is not created here;
// call EnsureDir before first use.
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// EnsureDir creates the cache directory if it does not already exist.
func (c *Cache) EnsureDir() error {
	return os.MkdirAll(c.dir, 0o755)
}

// Key computes the derivative cache key for a source image at relPath,
// resized toward sizeToken, encoded as formatExt, with watermarkToken
// distinguishing watermarked from unwatermarked variants. hash =
// SHA-256(rel_path || size_token || format_ext || watermark_token).
func Key(relPath, sizeToken, formatExt, watermarkToken string) string {
	h := sha256.New()
	h.Write([]byte(relPath))
	h.Write([]byte(sizeToken))
	h.Write([]byte(formatExt))
	h.Write([]byte(watermarkToken))
	return hex.EncodeToString(h.Sum(nil))
}

// CompositeKey computes the cache key for a folder composite preview: the
// composite identity string is hashed directly against the target format,
// with empty size and watermark tokens.
func CompositeKey(compositeString, formatExt string) string {
	return Key(compositeString, "", formatExt, "")
}

// SizeToken renders a pixel dimension as the token embedded in cache keys.
func SizeToken(maxDim int) string {
	return strconv.Itoa(maxDim)
}

// WatermarkToken renders the watermark on/off flag as a cache-key token.
func WatermarkToken(applied bool) string {
	if applied {
		return "wm"
	}
	return "raw"
}

// Filename returns the on-disk path for a given key and format extension.
func (c *Cache) Filename(key, formatExt string) string {
	return filepath.Join(c.dir, key+"."+formatExt)
}

// Lookup returns the cached bytes for key/formatExt, and whether they are
// still valid. A cache file is valid iff it exists and its mtime is at or
// after sourceModTime: a derivative older than the source it was generated
// from is treated as a miss and regenerated on access.
func (c *Cache) Lookup(key, formatExt string, sourceModTime time.Time) ([]byte, bool) {
	name := c.Filename(key, formatExt)
	info, err := os.Stat(name)
	if err != nil {
		return nil, false
	}
	if info.ModTime().Before(sourceModTime) {
		return nil, false
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, false
	}
	return b, true
}

// Store writes data under key/formatExt, atomically via a temp-file-then-
// rename so concurrent readers never observe a partially written derivative.
func (c *Cache) Store(key, formatExt string, data []byte) error {
	return atomicWriteFile(c.Filename(key, formatExt), data)
}

func atomicWriteFile(p string, data []byte) error {
	dir := filepath.Dir(p)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	var success bool
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, p); err != nil {
		return err
	}
	success = true
	return nil
}
