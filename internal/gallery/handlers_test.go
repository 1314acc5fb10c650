package gallery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gallerysvc/internal/metadata"
)

func newTestMux(t *testing.T, svc *Service) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gallery", svc.ListHandler())
	mux.HandleFunc("GET /gallery/preview", svc.PreviewHandler())
	mux.HandleFunc("GET /gallery/image/{path...}", svc.ImageHandler())
	mux.HandleFunc("GET /gallery/info/{path...}", svc.ImageInfoHandler())
	mux.HandleFunc("GET /gallery/composite/{path...}", svc.CompositeHandler())
	return mux
}

func TestListHandlerReturnsDirectoriesAndImages(t *testing.T) {
	svc, cfg := newTestService(t)
	writeJPEG(t, filepath.Join(cfg.SourceDir, "a.jpg"), 100, 100)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.SourceDir, "sub"), 0o755))

	mux := newTestMux(t, svc)
	req := httptest.NewRequest(http.MethodGet, "/gallery", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Directories, 1)
	require.Len(t, resp.Images, 1)
}

func TestListHandlerForbidsHiddenFolderWithoutCookie(t *testing.T) {
	sourceDir := t.TempDir()
	cacheDirPath := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(sourceDir, "secret"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "secret", "_folder.md"), []byte("+++\nhidden = true\n+++\n"), 0o644))
	writeJPEG(t, filepath.Join(sourceDir, "secret", "a.jpg"), 100, 100)

	svc := newServiceWithShareSecret(t, sourceDir, cacheDirPath, []byte("topsecret"))
	mux := newTestMux(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/gallery?path=secret", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestImageHandlerServesDerivativeWithHeaders(t *testing.T) {
	svc, cfg := newTestService(t)
	writeJPEG(t, filepath.Join(cfg.SourceDir, "a.jpg"), 400, 300)

	mux := newTestMux(t, svc)
	req := httptest.NewRequest(http.MethodGet, "/gallery/image/a.jpg?size=thumbnail", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	require.Equal(t, defaultCacheControl, rec.Header().Get("Cache-Control"))
	require.NotEmpty(t, rec.Body.Bytes())
}

func TestImageHandlerDefaultsToGallerySize(t *testing.T) {
	svc, cfg := newTestService(t)
	writeJPEG(t, filepath.Join(cfg.SourceDir, "a.jpg"), 400, 300)

	mux := newTestMux(t, svc)
	req := httptest.NewRequest(http.MethodGet, "/gallery/image/a.jpg", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestImageInfoHandlerReturnsMetadataJSON(t *testing.T) {
	svc, cfg := newTestService(t)
	writeJPEG(t, filepath.Join(cfg.SourceDir, "a.jpg"), 640, 480)

	mux := newTestMux(t, svc)
	req := httptest.NewRequest(http.MethodGet, "/gallery/info/a.jpg", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var info struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.Equal(t, 640, info.Width)
	require.Equal(t, 480, info.Height)
}

func TestCompositeHandlerServesJPEG(t *testing.T) {
	svc, cfg := newTestService(t)
	writeJPEG(t, filepath.Join(cfg.SourceDir, "trip", "a.jpg"), 300, 300)

	mux := newTestMux(t, svc)
	req := httptest.NewRequest(http.MethodGet, "/gallery/composite/trip", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
}

func newServiceWithShareSecret(t *testing.T, sourceDir, cacheDir string, secret []byte) *Service {
	t.Helper()
	cfg := Config{
		SourceDir:   sourceDir,
		CacheDir:    cacheDir,
		PathPrefix:  "gallery",
		ShareSecret: secret,
		Sizes:       map[string]SizeSpec{"thumbnail": {Width: 100, Height: 100}},
	}
	meta, err := metadata.Open(cacheDir, "1")
	require.NoError(t, err)
	svc, err := NewService(cfg, meta)
	require.NoError(t, err)
	return svc
}
