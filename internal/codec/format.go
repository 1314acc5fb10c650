// Package codec implements the C1 format codecs: ICC-aware extraction and
// encoding for JPEG, PNG, WebP and AVIF, plus the AVIF HDR classifier and the
// defensive ISO-BMFF container fallback parser.
package codec

import "image"

// OutputFormat is the closed set of derivative formats the pipeline can
// produce. Dispatch over it is always a switch, never an interface vtable.
type OutputFormat string

const (
	FormatJPEG OutputFormat = "jpeg"
	FormatWebP OutputFormat = "webp"
	FormatPNG  OutputFormat = "png"
	FormatAVIF OutputFormat = "avif"
)

// Extension returns the on-disk file extension for the format.
func (f OutputFormat) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatWebP:
		return "webp"
	case FormatPNG:
		return "png"
	case FormatAVIF:
		return "avif"
	default:
		return "jpg"
	}
}

// MimeType returns the HTTP content type for the format.
func (f OutputFormat) MimeType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	case FormatPNG:
		return "image/png"
	case FormatAVIF:
		return "image/avif"
	default:
		return "application/octet-stream"
	}
}

// FormatFromExtension maps a filename extension (without leading dot, any
// case) to an OutputFormat. ok is false for unrecognized extensions.
func FormatFromExtension(ext string) (OutputFormat, bool) {
	switch normalizeExt(ext) {
	case "jpg", "jpeg":
		return FormatJPEG, true
	case "webp":
		return FormatWebP, true
	case "png":
		return FormatPNG, true
	case "avif":
		return FormatAVIF, true
	default:
		return "", false
	}
}

func normalizeExt(ext string) string {
	out := make([]byte, 0, len(ext))
	for _, c := range []byte(ext) {
		if c == '.' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c = c - 'A' + 'a'
		}
		out = append(out, c)
	}
	return string(out)
}

// EncodeOptions bundles the parameters every codec's Encode needs, per the
// uniform "encode(bitmap, target, quality, icc) -> bytes" shape from §9.
type EncodeOptions struct {
	JPEGQuality int     // 0-100
	WebPQuality float32 // 0.0-100.0
	ICCProfile  []byte  // nil if none to embed
	HDRPreserve bool    // AVIF only
	AVIFSpeed   int     // AVIF only, 0-10; 0 selects the codec default
	AVIFGainMap []byte  // AVIF only, optional auxiliary gain-map image to mux in
}

// Encode dispatches to the codec-specific encoder named by format.
func Encode(img image.Image, format OutputFormat, opts EncodeOptions) ([]byte, error) {
	switch format {
	case FormatJPEG:
		return EncodeJPEG(img, opts.JPEGQuality, opts.ICCProfile)
	case FormatWebP:
		return EncodeWebP(img, opts.WebPQuality, opts.ICCProfile)
	case FormatPNG:
		return EncodePNG(img)
	case FormatAVIF:
		return EncodeAVIF(img, opts.JPEGQuality, opts.ICCProfile, opts.HDRPreserve, opts.AVIFSpeed, opts.AVIFGainMap)
	default:
		return EncodeJPEG(img, opts.JPEGQuality, opts.ICCProfile)
	}
}
