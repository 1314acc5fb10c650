// Package gallery implements the C7 serve layer: format negotiation and
// request orchestration tying together codecs, resize, the derivative
// cache, metadata and folder scanning.
package gallery

import (
	"strings"

	"gallerysvc/internal/codec"
)

// DetermineOutputFormat picks the response image format for a request,
// mirroring the priority order: a PNG source always stays PNG (to preserve
// transparency/quality), otherwise the Accept header is checked for AVIF
// (only when avifEnabled), then WebP, falling back to JPEG.
func DetermineOutputFormat(acceptHeader, sourcePath string, avifEnabled bool) codec.OutputFormat {
	if strings.HasSuffix(strings.ToLower(sourcePath), ".png") {
		return codec.FormatPNG
	}
	if avifEnabled && strings.Contains(acceptHeader, "image/avif") {
		return codec.FormatAVIF
	}
	if strings.Contains(acceptHeader, "image/webp") {
		return codec.FormatWebP
	}
	return codec.FormatJPEG
}
