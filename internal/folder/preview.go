package folder

import (
	"math/rand/v2"
	"os"
)

// GetGalleryPreview recursively samples up to maxItems images from across
// the whole gallery tree (bounded by PreviewMaxDepth/PreviewMaxPerFolder),
// shuffling 1-3 times when oversampled so repeated calls surface different
// images rather than always the same truncated prefix.
func (s *Scanner) GetGalleryPreview(maxItems int) ([]Item, error) {
	var all []Item
	if err := s.collectPreviewItems("", &all, 0); err != nil {
		return nil, err
	}

	if len(all) > maxItems {
		rounds := 1 + rand.IntN(3) // 1..3 inclusive
		for i := 0; i < rounds; i++ {
			rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
		}
		all = all[:maxItems]
	}
	return all, nil
}

func (s *Scanner) collectPreviewItems(path string, items *[]Item, depth int) error {
	if depth > s.PreviewMaxDepth {
		return nil
	}

	full, err := s.Resolve(path)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return err
	}

	perFolder := 0
	for _, entry := range entries {
		name := entry.Name()
		if isExcluded(name) {
			continue
		}

		itemPath := name
		if path != "" {
			itemPath = path + "/" + name
		}

		if entry.IsDir() {
			if s.IsFolderHidden(itemPath) {
				continue
			}
			if err := s.collectPreviewItems(itemPath, items, depth+1); err != nil {
				return err
			}
			continue
		}

		if !IsImage(name) || perFolder >= s.PreviewMaxPerFolder {
			continue
		}
		perFolder++

		item := Item{
			Name:         name,
			Path:         itemPath,
			ParentPath:   path,
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
		*items = append(*items, item)
	}
	return nil
}
