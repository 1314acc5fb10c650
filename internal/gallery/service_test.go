package gallery

import (
	"context"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gallerysvc/internal/codec"
	"gallerysvc/internal/metadata"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 100, 255})
		}
	}
	return img
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data, err := codec.EncodeJPEG(testImage(w, h), 85, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newTestService(t *testing.T) (*Service, Config) {
	t.Helper()
	sourceDir := t.TempDir()
	cacheDir := t.TempDir()

	cfg := Config{
		SourceDir:  sourceDir,
		CacheDir:   cacheDir,
		PathPrefix: "gallery",
		Sizes: map[string]SizeSpec{
			"thumbnail": {Width: 100, Height: 100},
			"gallery":   {Width: 800, Height: 800},
			"medium":    {Width: 1000, Height: 1000},
		},
		JPEGQuality: 85,
		WebPQuality: 85,
	}

	meta, err := metadata.Open(cacheDir, "1")
	require.NoError(t, err)

	svc, err := NewService(cfg, meta)
	require.NoError(t, err)
	return svc, cfg
}

func TestServeReturnsResizedDerivativeAndCachesIt(t *testing.T) {
	svc, cfg := newTestService(t)
	writeJPEG(t, filepath.Join(cfg.SourceDir, "photo.jpg"), 800, 600)

	rendered, err := svc.Serve(context.Background(), "photo.jpg", "thumbnail", "")
	require.NoError(t, err)
	require.Equal(t, codec.FormatJPEG, rendered.Format)
	require.NotEmpty(t, rendered.Data)

	decoded, _, err := codec.Decode(rendered.Data)
	require.NoError(t, err)
	require.LessOrEqual(t, decoded.Bounds().Dx(), 100)
	require.LessOrEqual(t, decoded.Bounds().Dy(), 100)

	entries, err := os.ReadDir(cfg.CacheDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestServeRegeneratesWhenSourceIsReplacedAfterCaching(t *testing.T) {
	svc, cfg := newTestService(t)
	photoPath := filepath.Join(cfg.SourceDir, "photo.jpg")
	writeJPEG(t, photoPath, 800, 600)

	first, err := svc.Serve(context.Background(), "photo.jpg", "thumbnail", "")
	require.NoError(t, err)

	// Replace the source with different content and push its mtime into the
	// future so it postdates whatever the cached derivative's mtime is.
	writeJPEG(t, photoPath, 300, 300)
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(photoPath, future, future))

	second, err := svc.Serve(context.Background(), "photo.jpg", "thumbnail", "")
	require.NoError(t, err)
	require.NotEqual(t, first.Data, second.Data, "a replaced source must invalidate the cached derivative")
}

func TestServeUnknownSizeReturnsError(t *testing.T) {
	svc, cfg := newTestService(t)
	writeJPEG(t, filepath.Join(cfg.SourceDir, "photo.jpg"), 400, 400)

	_, err := svc.Serve(context.Background(), "photo.jpg", "nonexistent", "")
	require.Error(t, err)
}

func TestServeInvalidPathReturnsError(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Serve(context.Background(), "../../etc/passwd", "thumbnail", "")
	require.Error(t, err)
}

func TestImageInfoExtractsDimensions(t *testing.T) {
	svc, cfg := newTestService(t)
	writeJPEG(t, filepath.Join(cfg.SourceDir, "photo.jpg"), 320, 240)

	info, err := svc.ImageInfo("photo.jpg")
	require.NoError(t, err)
	require.Equal(t, 320, info.Width)
	require.Equal(t, 240, info.Height)
}

func TestAuthorizeHiddenAllowsNonHiddenByDefault(t *testing.T) {
	svc, cfg := newTestService(t)
	writeJPEG(t, filepath.Join(cfg.SourceDir, "open", "a.jpg"), 100, 100)

	r := httptest.NewRequest(http.MethodGet, "/gallery/image/open/a.jpg", nil)
	require.True(t, svc.AuthorizeHidden(r, "open/a.jpg"))
}

func TestAuthorizeHiddenRequiresCookieForHiddenFolder(t *testing.T) {
	sourceDir := t.TempDir()
	cacheDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(sourceDir, "secret"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "secret", "_folder.md"), []byte("+++\nhidden = true\n+++\n"), 0o644))
	writeJPEG(t, filepath.Join(sourceDir, "secret", "a.jpg"), 100, 100)

	cfg := Config{
		SourceDir:   sourceDir,
		CacheDir:    cacheDir,
		PathPrefix:  "gallery",
		ShareSecret: []byte("topsecret"),
		Sizes:       map[string]SizeSpec{"thumbnail": {Width: 100, Height: 100}},
	}
	meta, err := metadata.Open(cacheDir, "1")
	require.NoError(t, err)
	svc, err := NewService(cfg, meta)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/gallery/image/secret/a.jpg", nil)
	require.False(t, svc.AuthorizeHidden(r, "secret/a.jpg"))

	r2 := httptest.NewRequest(http.MethodGet, "/gallery/image/secret/a.jpg", nil)
	r2.AddCookie(&http.Cookie{Name: "gallery_share", Value: svc.verifier.Sign("secret/a.jpg")})
	require.True(t, svc.AuthorizeHidden(r2, "secret/a.jpg"))
}

func TestCompositeBuildsFromFolderPreviews(t *testing.T) {
	svc, cfg := newTestService(t)
	writeJPEG(t, filepath.Join(cfg.SourceDir, "trip", "a.jpg"), 400, 300)
	writeJPEG(t, filepath.Join(cfg.SourceDir, "trip", "b.jpg"), 300, 400)

	rendered, err := svc.Composite(context.Background(), "trip")
	require.NoError(t, err)
	require.Equal(t, codec.FormatJPEG, rendered.Format)
	require.NotEmpty(t, rendered.Data)
}

func TestRefreshAllPopulatesMetadataForEveryImage(t *testing.T) {
	svc, cfg := newTestService(t)
	writeJPEG(t, filepath.Join(cfg.SourceDir, "a.jpg"), 200, 100)
	writeJPEG(t, filepath.Join(cfg.SourceDir, "sub", "b.jpg"), 150, 150)

	require.NoError(t, svc.RefreshAll(context.Background()))

	_, ok := svc.meta.Get("a.jpg")
	require.True(t, ok)
	_, ok = svc.meta.Get("sub/b.jpg")
	require.True(t, ok)
}

func TestPregenerateThumbnailsWarmsCache(t *testing.T) {
	svc, cfg := newTestService(t)
	writeJPEG(t, filepath.Join(cfg.SourceDir, "a.jpg"), 200, 200)

	require.NoError(t, svc.PregenerateThumbnails(context.Background(), 2))

	entries, err := os.ReadDir(cfg.CacheDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}
