// Package folder implements the C5 directory model: recursive scanning with
// hidden-file/`.md` exclusion, `_folder.md`/sidecar markdown metadata,
// breadcrumbs and shuffled preview sampling.
package folder

// Item is one entry (file or subdirectory) in a scanned directory listing.
type Item struct {
	Name           string   `json:"name"`
	DisplayName    string   `json:"display_name,omitempty"`
	Description    string   `json:"description,omitempty"`
	Path           string   `json:"path"`
	ParentPath     string   `json:"parent_path"`
	IsDirectory    bool     `json:"is_directory"`
	ThumbnailURL   string   `json:"thumbnail_url,omitempty"`
	GalleryURL     string   `json:"gallery_url,omitempty"`
	PreviewImages  []string `json:"preview_images,omitempty"`
	ItemCount      int      `json:"item_count,omitempty"`
	HasDimensions  bool     `json:"-"`
	Width          int      `json:"width,omitempty"`
	Height         int      `json:"height,omitempty"`
	HasCaptureDate bool     `json:"-"`
	CaptureDateUTC int64    `json:"capture_date,omitempty"`
	IsNew          bool     `json:"is_new"`
}

// Breadcrumb is one segment in the path from the gallery root to the
// currently viewed directory.
type Breadcrumb struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Path        string `json:"path"`
	IsCurrent   bool   `json:"is_current"`
}
