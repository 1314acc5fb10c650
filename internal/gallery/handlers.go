package gallery

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"gallerysvc/internal/folder"
	"gallerysvc/internal/galleryerr"
	"gallerysvc/pkg/logger"
)

const defaultCacheControl = "public, max-age=3600"

// ListingResponse is the JSON body returned by the directory listing route.
type ListingResponse struct {
	Path        string              `json:"path"`
	Breadcrumbs []folder.Breadcrumb `json:"breadcrumbs"`
	Directories []folder.Item       `json:"directories"`
	Images      []folder.Item       `json:"images"`
	Page        int                 `json:"page"`
	TotalPages  int                 `json:"total_pages"`
}

// ListHandler serves the JSON directory listing for the path carried in the
// "path" query parameter (root when absent), paginated by "page".
func (s *Service) ListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := strings.TrimPrefix(r.URL.Query().Get("path"), "/")
		page := atoiDefault(r.URL.Query().Get("page"), 0)

		if !s.AuthorizeHidden(r, relPath) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		dirs, images, totalPages, err := s.scanner.ListDirectory(relPath, page)
		if err != nil {
			writeError(w, err)
			return
		}

		resp := ListingResponse{
			Path:        relPath,
			Breadcrumbs: s.scanner.BuildBreadcrumbs(relPath),
			Directories: dirs,
			Images:      images,
			Page:        page,
			TotalPages:  totalPages,
		}
		writeJSON(w, resp)
	}
}

// PreviewHandler serves a random sample of images across the whole gallery
// tree, for a home-page preview strip.
func (s *Service) PreviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		max := atoiDefault(r.URL.Query().Get("count"), 12)
		items, err := s.scanner.GetGalleryPreview(max)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, items)
	}
}

// ImageInfoHandler serves the cached metadata record (dimensions, capture
// date, camera and location info) for a single image.
func (s *Service) ImageInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := strings.TrimPrefix(r.PathValue("path"), "/")
		info, err := s.ImageInfo(relPath)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, info)
	}
}

// ImageHandler serves a resized (and, for the medium size, watermarked)
// derivative of the image at the request path, negotiating output format
// from the Accept header.
func (s *Service) ImageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := strings.TrimPrefix(r.PathValue("path"), "/")
		size := r.URL.Query().Get("size")
		if size == "" {
			size = "gallery"
		}

		if !s.AuthorizeHidden(r, relPath) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		rendered, err := s.Serve(r.Context(), relPath, size, r.Header.Get("Accept"))
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", rendered.ContentType)
		w.Header().Set("Cache-Control", defaultCacheControl)
		w.Header().Set("Vary", "Accept")
		_, _ = w.Write(rendered.Data)
	}
}

// CompositeHandler serves the 2x2 folder preview JPEG for the directory at
// the request path.
func (s *Service) CompositeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relPath := strings.TrimPrefix(r.PathValue("path"), "/")

		rendered, err := s.Composite(r.Context(), relPath)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", rendered.ContentType)
		w.Header().Set("Cache-Control", defaultCacheControl)
		_, _ = w.Write(rendered.Data)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed writing json response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := galleryerr.HTTPStatus(err)
	var gErr *galleryerr.Error
	kind := "error"
	if errors.As(err, &gErr) {
		kind = gErr.Kind.String()
	}
	http.Error(w, kind, status)
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
