// Package config holds the gallery server's runtime configuration: defaults
// and validation, kept separate from flag registration (in cmd/server) so it
// can be constructed directly in tests. No environment variables are read.
package config

import (
	"fmt"
	"os"
	"strings"

	"gallerysvc/internal/gallery"
)

// Config is the fully-resolved server configuration.
type Config struct {
	Addr       string
	SourceDir  string
	CacheDir   string
	PathPrefix string

	JPEGQuality int
	WebPQuality float32
	AVIFEnabled bool
	AVIFSpeed   int

	CopyrightHolder   string
	WatermarkFontPath string

	ShareSecret string
	ShareCookie string

	LogLevel string
}

// Default returns the configuration a bare invocation should run with.
func Default() *Config {
	return &Config{
		Addr:        ":9090",
		SourceDir:   "./photos",
		CacheDir:    "./cache",
		PathPrefix:  "gallery",
		JPEGQuality: 85,
		WebPQuality: 85,
		AVIFEnabled: false,
		AVIFSpeed:   6,
		LogLevel:    "info",
	}
}

// Validate checks the configuration is internally consistent, and
// normalizes PathPrefix (surrounding slashes trimmed, empty becomes
// "gallery").
func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("source directory is required (-source-dir)")
	}
	if c.CacheDir == "" {
		return fmt.Errorf("cache directory is required (-cache-dir)")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be 1-100, got %d", c.JPEGQuality)
	}
	if c.WebPQuality < 1 || c.WebPQuality > 100 {
		return fmt.Errorf("webp quality must be 1-100, got %v", c.WebPQuality)
	}
	c.PathPrefix = strings.Trim(c.PathPrefix, "/")
	if c.PathPrefix == "" {
		c.PathPrefix = "gallery"
	}
	if c.CopyrightHolder != "" && c.WatermarkFontPath == "" {
		return fmt.Errorf("watermark font path is required when a copyright holder is set")
	}
	if c.CopyrightHolder != "" {
		if _, err := os.Stat(c.WatermarkFontPath); err != nil {
			return fmt.Errorf("watermark font not found at %s: %w", c.WatermarkFontPath, err)
		}
	}
	return nil
}

// GalleryConfig projects the server configuration onto the subset the
// gallery service orchestration layer needs.
func (c *Config) GalleryConfig() gallery.Config {
	return gallery.Config{
		SourceDir:   c.SourceDir,
		CacheDir:    c.CacheDir,
		PathPrefix:  c.PathPrefix,
		JPEGQuality: c.JPEGQuality,
		WebPQuality: c.WebPQuality,
		AVIFEnabled: c.AVIFEnabled,
		AVIFSpeed:   c.AVIFSpeed,
		CopyrightHolder:   c.CopyrightHolder,
		WatermarkFontPath: c.WatermarkFontPath,
		ShareSecret:       []byte(c.ShareSecret),
		ShareCookie:       c.ShareCookie,
		Sizes: map[string]gallery.SizeSpec{
			"thumbnail": {Width: 240, Height: 240},
			"gallery":   {Width: 1024, Height: 1024},
			"medium":    {Width: 1600, Height: 1600},
			"large":     {Width: 2560, Height: 2560},
		},
	}
}
