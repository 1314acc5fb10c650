package gallery

import (
	"bytes"
	"context"
	"image"
	"net/http"
	"os"
	"strings"
	"time"

	"gallerysvc/internal/auth"
	"gallerysvc/internal/codec"
	"gallerysvc/internal/composite"
	"gallerysvc/internal/dedup"
	"gallerysvc/internal/derivative"
	"gallerysvc/internal/folder"
	"gallerysvc/internal/galleryerr"
	"gallerysvc/internal/metadata"
	"gallerysvc/internal/resize"
	"gallerysvc/pkg/logger"
)

// Service orchestrates the whole request path: resolving a gallery-relative
// path against the source tree, decoding and resizing the original, applying
// the watermark, encoding in the negotiated format, and caching the result
// under its content-addressed key.
type Service struct {
	cfg      Config
	scanner  *folder.Scanner
	meta     *metadata.Store
	cache    *derivative.Cache
	group    *dedup.Group
	verifier *auth.Verifier
}

// NewService wires a Scanner (with its MetadataLookup callback bound back
// into meta), a derivative cache and an in-flight dedup group into a single
// orchestration entry point.
func NewService(cfg Config, meta *metadata.Store) (*Service, error) {
	cache := derivative.New(cfg.CacheDir)
	if err := cache.EnsureDir(); err != nil {
		return nil, err
	}

	cookieName := cfg.ShareCookie
	if cookieName == "" {
		cookieName = "gallery_share"
	}

	svc := &Service{
		cfg:      cfg,
		meta:     meta,
		cache:    cache,
		group:    dedup.NewGroup(),
		verifier: auth.NewVerifier(cfg.ShareSecret, cookieName),
	}

	svc.scanner = &folder.Scanner{
		SourceDir:           cfg.SourceDir,
		PathPrefix:          cfg.PathPrefix,
		ImagesPerPage:       40,
		PreviewMaxImages:    4,
		PreviewMaxDepth:     3,
		PreviewMaxPerFolder: 2,
		NewThresholdDays:    14,
		Lookup:              svc.lookupDimensions,
	}
	return svc, nil
}

// Scanner exposes the underlying folder.Scanner for listing/breadcrumb
// handlers.
func (s *Service) Scanner() *folder.Scanner { return s.scanner }

// AuthorizeHidden reports whether r may access relPath when relPath (or an
// ancestor of it) is a hidden folder. Non-hidden paths are always allowed;
// hidden ones require a signed share cookie naming the exact path.
func (s *Service) AuthorizeHidden(r *http.Request, relPath string) bool {
	for p := relPath; ; p = parentDir(p) {
		if s.scanner.IsFolderHidden(p) {
			return s.verifier.Allow(r, relPath)
		}
		if p == "" {
			return true
		}
	}
}

func parentDir(relPath string) string {
	idx := strings.LastIndex(relPath, "/")
	if idx < 0 {
		return ""
	}
	return relPath[:idx]
}

// lookupDimensions backs folder.MetadataLookup: it serves cached dimensions
// and capture date when known, and otherwise decodes just enough of the
// source file to populate the cache for next time.
func (s *Service) lookupDimensions(relPath string) (width, height int, captureDate *time.Time, ok bool) {
	if m, found := s.meta.Get(relPath); found {
		return m.Width, m.Height, m.CaptureDate, true
	}

	full, err := s.scanner.Resolve(relPath)
	if err != nil {
		return 0, 0, nil, false
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return 0, 0, nil, false
	}

	img, _, err := codec.Decode(data)
	if err != nil {
		return 0, 0, nil, false
	}
	b := img.Bounds()
	m := metadata.ImageMetadata{Width: b.Dx(), Height: b.Dy()}
	m.CaptureDate, m.CameraInfo, m.LocationInfo = metadata.ExtractEXIF(bytes.NewReader(data))
	s.meta.Insert(relPath, m)

	return m.Width, m.Height, m.CaptureDate, true
}

// ImageInfo returns the full cached (or freshly extracted) metadata record
// for a source image, used by detail views.
func (s *Service) ImageInfo(relPath string) (metadata.ImageMetadata, error) {
	if m, ok := s.meta.Get(relPath); ok {
		return m, nil
	}
	if _, _, _, ok := s.lookupDimensions(relPath); !ok {
		return metadata.ImageMetadata{}, galleryerr.New(galleryerr.KindNotFound, errImageNotFound)
	}
	m, _ := s.meta.Get(relPath)
	return m, nil
}

// Rendered is a served derivative: its bytes, negotiated format and the
// content type to answer the request with.
type Rendered struct {
	Data        []byte
	Format      codec.OutputFormat
	ContentType string
}

// Serve resolves relPath under the requested size name, returning a cached
// derivative if one already exists for this exact (path, size, format,
// watermark) combination, and otherwise decoding, resizing, optionally
// watermarking, encoding and caching it. Concurrent identical requests for
// the same derivative are collapsed via the in-flight dedup group.
func (s *Service) Serve(ctx context.Context, relPath, sizeName, acceptHeader string) (Rendered, error) {
	full, err := s.scanner.Resolve(relPath)
	if err != nil {
		return Rendered{}, galleryerr.New(galleryerr.KindInvalidPath, err)
	}

	srcInfo, err := os.Stat(full)
	if err != nil {
		return Rendered{}, galleryerr.New(galleryerr.KindIoError, err)
	}

	w, h, isMedium, ok := s.cfg.parseSize(sizeName)
	if !ok {
		return Rendered{}, galleryerr.New(galleryerr.KindInvalidSize, errUnknownSize)
	}

	format := DetermineOutputFormat(acceptHeader, relPath, s.cfg.AVIFEnabled)
	watermark := isMedium && s.cfg.CopyrightHolder != ""

	key := derivative.Key(relPath, derivative.SizeToken(maxDim(w, h)), format.Extension(), derivative.WatermarkToken(watermark))
	if data, hit := s.cache.Lookup(key, format.Extension(), srcInfo.ModTime()); hit {
		return Rendered{Data: data, Format: format, ContentType: format.MimeType()}, nil
	}

	data, err := s.group.Do(key, func() ([]byte, error) {
		return s.render(full, relPath, w, h, format, watermark)
	})
	if err != nil {
		return Rendered{}, err
	}

	if err := s.cache.Store(key, format.Extension(), data); err != nil {
		logger.Warn("derivative cache store failed for %s: %v", relPath, err)
	}
	return Rendered{Data: data, Format: format, ContentType: format.MimeType()}, nil
}

func (s *Service) render(full, relPath string, w, h int, format codec.OutputFormat, watermark bool) ([]byte, error) {
	raw, err := os.ReadFile(full)
	if err != nil {
		return nil, galleryerr.New(galleryerr.KindIoError, err)
	}

	img, icc, err := codec.Decode(raw)
	if err != nil {
		return nil, galleryerr.Codec("decode", err)
	}

	resized := resize.ToFit(img, w, h)

	if watermark {
		resized, err = resize.ApplyWatermark(resized, resize.WatermarkOptions{
			Text:     s.cfg.CopyrightHolder,
			FontPath: s.cfg.WatermarkFontPath,
		})
		if err != nil {
			logger.Warn("watermark failed for %s, serving unwatermarked: %v", relPath, err)
		}
	}

	out, err := codec.Encode(resized, format, codec.EncodeOptions{
		JPEGQuality: s.cfg.JPEGQuality,
		WebPQuality: s.cfg.WebPQuality,
		ICCProfile:  icc,
		AVIFSpeed:   s.cfg.AVIFSpeed,
	})
	if err != nil {
		return nil, galleryerr.Codec("encode", err)
	}
	return out, nil
}

func maxDim(w, h int) int {
	if w > h {
		return w
	}
	return h
}

// Composite builds the 2x2 preview JPEG for the folder at relPath from the
// first four decodable images of its own listing, and caches it under the
// identity `composite_<relPath with '/' replaced by '_'>` (`composite_root`
// for the root). A cached composite is a miss once any of the folder's first
// four listed images is newer than it.
func (s *Service) Composite(ctx context.Context, relPath string) (Rendered, error) {
	var members []string
	if _, images, _, err := s.scanner.ListDirectory(relPath, 0); err == nil {
		for i := 0; i < len(images) && i < 4; i++ {
			members = append(members, images[i].Path)
		}
	}

	identity := "composite_" + strings.ReplaceAll(relPath, "/", "_")
	if relPath == "" {
		identity = "composite_root"
	}
	compositeKey := derivative.CompositeKey(identity, "jpg")
	if data, hit := s.cache.Lookup(compositeKey, "jpg", s.newestModTime(members)); hit {
		return Rendered{Data: data, Format: codec.FormatJPEG, ContentType: codec.FormatJPEG.MimeType()}, nil
	}

	data, err := s.group.Do(compositeKey, func() ([]byte, error) {
		return s.buildComposite(relPath)
	})
	if err != nil {
		return Rendered{}, err
	}
	if err := s.cache.Store(compositeKey, "jpg", data); err != nil {
		logger.Warn("composite cache store failed for %s: %v", relPath, err)
	}
	return Rendered{Data: data, Format: codec.FormatJPEG, ContentType: codec.FormatJPEG.MimeType()}, nil
}

// newestModTime returns the most recent mtime among the named member
// images, so the composite cache is invalidated if any member photo is
// replaced even though the set of member paths stays the same.
func (s *Service) newestModTime(relPaths []string) time.Time {
	var newest time.Time
	for _, relPath := range relPaths {
		full, err := s.scanner.Resolve(relPath)
		if err != nil {
			continue
		}
		info, err := os.Stat(full)
		if err != nil {
			continue
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	return newest
}

func (s *Service) buildComposite(relPath string) ([]byte, error) {
	_, images, _, err := s.scanner.ListDirectory(relPath, 0)
	if err != nil {
		return nil, galleryerr.New(galleryerr.KindInvalidPath, err)
	}

	imgs := make([]image.Image, 0, 4)
	for _, item := range images {
		if len(imgs) >= 4 {
			break
		}
		full, err := s.scanner.Resolve(item.Path)
		if err != nil {
			continue
		}
		raw, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		img, _, err := codec.Decode(raw)
		if err != nil {
			continue
		}
		imgs = append(imgs, img)
	}
	return composite.Build(imgs)
}

// Flush writes any dirty metadata to disk; callers should invoke this on
// shutdown.
func (s *Service) Flush() error { return s.meta.Flush() }

// RefreshAll walks the whole source tree, populating the metadata store for
// any image not already cached. It backs the periodic background refresh;
// an already-populated store does negligible work on each pass.
func (s *Service) RefreshAll(ctx context.Context) error {
	return s.refreshDir(ctx, "")
}

// PregenerateThumbnails walks the source tree and warms the derivative
// cache for the thumbnail size, so the first real request for a gallery
// listing never pays for a synchronous resize. Generation runs through a
// derivative.Pregenerator, which bounds concurrency with its own semaphore
// and collapses duplicate variants with its own in-flight group.
func (s *Service) PregenerateThumbnails(ctx context.Context, concurrency int) error {
	w, h, _, ok := s.cfg.parseSize("thumbnail")
	if !ok {
		return nil
	}

	var variants []derivative.Variant
	if err := s.collectVariants(ctx, "", w, h, &variants); err != nil {
		return err
	}

	pregen := derivative.NewPregenerator(s.cache, concurrency)
	results := pregen.Run(ctx, variants, func(ctx context.Context, v derivative.Variant) ([]byte, error) {
		full, err := s.scanner.Resolve(v.RelPath)
		if err != nil {
			return nil, err
		}
		format, _ := codec.FormatFromExtension(v.FormatExt)
		return s.render(full, v.RelPath, w, h, format, v.Watermark)
	})

	for _, r := range results {
		if r.Err != nil {
			logger.Warn("pregenerate failed for %s: %v", r.Variant.RelPath, r.Err)
		}
	}
	return nil
}

func (s *Service) collectVariants(ctx context.Context, relPath string, w, h int, out *[]derivative.Variant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	items, err := s.scanner.ScanDirectory(relPath)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.IsDirectory {
			if err := s.collectVariants(ctx, item.Path, w, h, out); err != nil {
				return err
			}
			continue
		}
		format := DetermineOutputFormat("", item.Path, s.cfg.AVIFEnabled)
		var modTime time.Time
		if full, err := s.scanner.Resolve(item.Path); err == nil {
			if info, err := os.Stat(full); err == nil {
				modTime = info.ModTime()
			}
		}
		*out = append(*out, derivative.Variant{
			RelPath:       item.Path,
			SizeToken:     derivative.SizeToken(maxDim(w, h)),
			FormatExt:     format.Extension(),
			SourceModTime: modTime,
		})
	}
	return nil
}

func (s *Service) refreshDir(ctx context.Context, relPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	items, err := s.scanner.ScanDirectory(relPath)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.IsDirectory {
			if err := s.refreshDir(ctx, item.Path); err != nil {
				return err
			}
			continue
		}
		s.lookupDimensions(item.Path)
	}
	return nil
}

var (
	errImageNotFound = galleryNotFoundError("image not found")
	errUnknownSize   = galleryNotFoundError("unknown size")
)

type galleryNotFoundError string

func (e galleryNotFoundError) Error() string { return string(e) }
