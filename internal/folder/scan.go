package folder

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true,
}

// IsImage reports whether fileName's extension is one the gallery serves.
func IsImage(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	return imageExtensions[ext]
}

func isExcluded(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".md")
}

// MetadataLookup resolves an image's cached dimensions and capture date,
// extracting and caching them on first access if necessary. Implemented by
// the serve layer (C7), which owns the metadata store and codec decoders;
// folder scanning only consumes the result.
type MetadataLookup func(relPath string) (width, height int, captureDate *time.Time, ok bool)

// Scanner walks a gallery's source directory tree.
type Scanner struct {
	SourceDir           string
	PathPrefix          string
	ImagesPerPage       int
	PreviewMaxImages    int
	PreviewMaxDepth     int
	PreviewMaxPerFolder int
	NewThresholdDays    int
	Lookup              MetadataLookup
}

var errInvalidPath = fmt.Errorf("path escapes source directory")

// ErrInvalidPath is returned when a requested relative path would resolve
// outside the gallery's source directory.
func ErrInvalidPath() error { return errInvalidPath }

func (s *Scanner) Resolve(relPath string) (string, error) {
	full := filepath.Join(s.SourceDir, relPath)
	cleanSource, err := filepath.Abs(s.SourceDir)
	if err != nil {
		return "", err
	}
	cleanFull, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if cleanFull != cleanSource && !strings.HasPrefix(cleanFull, cleanSource+string(filepath.Separator)) {
		return "", errInvalidPath
	}
	return full, nil
}

// ScanDirectory lists the visible contents of relPath: hidden files/.md
// sidecars are excluded, subdirectories are listed first sorted by display
// name, then images sorted by capture date (images without one sort after,
// by name).
func (s *Scanner) ScanDirectory(relPath string) ([]Item, error) {
	full, err := s.Resolve(relPath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if isExcluded(name) {
			continue
		}

		itemPath := name
		if relPath != "" {
			itemPath = relPath + "/" + name
		}

		if entry.IsDir() {
			if s.IsFolderHidden(itemPath) {
				continue
			}
			displayName, description := s.ReadFolderMetadata(itemPath)
			items = append(items, Item{
				Name:          name,
				DisplayName:   displayName,
				Description:   description,
				Path:          itemPath,
				ParentPath:    relPath,
				IsDirectory:   true,
				PreviewImages: s.GetDirectoryPreviewImages(itemPath),
				ItemCount:     s.CountImagesInDirectory(itemPath),
			})
			continue
		}

		if !IsImage(name) {
			continue
		}

		item := Item{
			Name:         name,
			Path:         itemPath,
			ParentPath:   relPath,
			IsDirectory:  false,
			ThumbnailURL: s.imageURL(itemPath, "thumbnail"),
			GalleryURL:   s.imageURL(itemPath, "gallery"),
		}
		if s.Lookup != nil {
			if w, h, captured, ok := s.Lookup(itemPath); ok {
				item.HasDimensions = true
				item.Width, item.Height = w, h
				if captured != nil {
					item.HasCaptureDate = true
					item.CaptureDateUTC = captured.Unix()
				}
			}
		}
		if info, err := entry.Info(); err == nil {
			item.IsNew = s.isNew(info.ModTime())
		}
		items = append(items, item)
	}

	sortItems(items)
	return items, nil
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.IsDirectory != b.IsDirectory {
			return a.IsDirectory
		}
		if a.IsDirectory {
			return sortName(a) < sortName(b)
		}
		switch {
		case a.HasCaptureDate && b.HasCaptureDate:
			return a.CaptureDateUTC < b.CaptureDateUTC
		case a.HasCaptureDate:
			return true
		case b.HasCaptureDate:
			return false
		default:
			return a.Name < b.Name
		}
	})
}

func sortName(i Item) string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Name
}

// ListDirectory partitions ScanDirectory's results into directories and a
// page of images, computing the total page count with ceil-division and a
// floor of one page.
func (s *Scanner) ListDirectory(relPath string, page int) (dirs, images []Item, totalPages int, err error) {
	items, err := s.ScanDirectory(relPath)
	if err != nil {
		return nil, nil, 0, err
	}

	for _, it := range items {
		if it.IsDirectory {
			dirs = append(dirs, it)
		} else {
			images = append(images, it)
		}
	}

	perPage := s.ImagesPerPage
	if perPage <= 0 {
		perPage = 1
	}
	totalPages = ceilDiv(len(images), perPage)
	if totalPages < 1 {
		totalPages = 1
	}

	start := page * perPage
	end := start + perPage
	if end > len(images) {
		end = len(images)
	}
	if start < len(images) {
		images = images[start:end]
	} else {
		images = nil
	}
	return dirs, images, totalPages, nil
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// CountImagesInDirectory recursively counts visible images under relPath.
func (s *Scanner) CountImagesInDirectory(relPath string) int {
	full, err := s.Resolve(relPath)
	if err != nil {
		return 0
	}
	count := 0
	_ = filepath.WalkDir(full, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasPrefix(name, ".") && IsImage(name) {
			count++
		}
		return nil
	})
	return count
}

// GetDirectoryPreviewImages returns thumbnail URLs for up to
// PreviewMaxImages images found within PreviewMaxDepth of relPath.
func (s *Scanner) GetDirectoryPreviewImages(relPath string) []string {
	full, err := s.Resolve(relPath)
	if err != nil {
		return nil
	}

	var urls []string
	sourceAbs, _ := filepath.Abs(s.SourceDir)

	_ = filepath.WalkDir(full, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if len(urls) >= s.PreviewMaxImages {
			return filepath.SkipAll
		}
		if d.IsDir() {
			rel, _ := filepath.Rel(full, p)
			depth := 0
			if rel != "." {
				depth = len(strings.Split(rel, string(filepath.Separator)))
			}
			if depth > s.PreviewMaxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") || !IsImage(name) {
			return nil
		}
		absP, _ := filepath.Abs(p)
		rel, err := filepath.Rel(sourceAbs, absP)
		if err != nil {
			return nil
		}
		urls = append(urls, s.imageURL(filepath.ToSlash(rel), "thumbnail"))
		return nil
	})
	return urls
}

// ReadFolderMetadata reads folderRelPath's `_folder.md`, returning a custom
// display name and a rendered HTML description if present. The display name
// is the front-matter title, or else the text of the body's first `# `
// heading line; that heading line is left out of the description. Absence of
// the file yields empty values; the hidden flag is not consulted here (see
// IsFolderHidden).
func (s *Scanner) ReadFolderMetadata(folderRelPath string) (displayName, descriptionHTML string) {
	full, err := s.Resolve(filepath.Join(folderRelPath, "_folder.md"))
	if err != nil {
		return "", ""
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", ""
	}
	fm, body := ParseFolderMD(string(data))
	title := fm.Title
	var rest []string
	headingSeen := false
	for _, line := range strings.Split(body, "\n") {
		if !headingSeen && strings.HasPrefix(line, "# ") {
			headingSeen = true
			if title == "" {
				title = strings.TrimSpace(line[2:])
			}
			continue
		}
		rest = append(rest, line)
	}
	return title, RenderMarkdown(strings.TrimSpace(strings.Join(rest, "\n")))
}

// IsFolderHidden reports whether folderRelPath's `_folder.md` front matter
// sets hidden = true. A hidden folder is omitted from its parent's listing
// but remains directly accessible by path.
func (s *Scanner) IsFolderHidden(folderRelPath string) bool {
	full, err := s.Resolve(filepath.Join(folderRelPath, "_folder.md"))
	if err != nil {
		return false
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return false
	}
	fm, _ := ParseFolderMD(string(data))
	return fm.Hidden
}

// ReadSidecarMarkdown renders the `<stem>.md` file next to imageRelPath, if
// one exists.
func (s *Scanner) ReadSidecarMarkdown(imageRelPath string) string {
	ext := filepath.Ext(imageRelPath)
	stem := strings.TrimSuffix(imageRelPath, ext)
	full, err := s.Resolve(stem + ".md")
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return ""
	}
	return RenderMarkdown(string(data))
}

func (s *Scanner) isNew(modTime time.Time) bool {
	if s.NewThresholdDays <= 0 {
		return false
	}
	elapsed := time.Since(modTime)
	return elapsed <= time.Duration(s.NewThresholdDays)*24*time.Hour
}

func (s *Scanner) imageURL(relPath, size string) string {
	return fmt.Sprintf("/%s/image/%s?size=%s", s.PathPrefix, url.PathEscape(relPath), size)
}
