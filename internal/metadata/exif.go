package metadata

import (
	"fmt"
	"io"
	"time"

	goexif "github.com/rwcarlsen/goexif/exif"
)

// dateLayouts mirrors the capture-date parse fallbacks, tried in order
// after the canonical EXIF "2006:01:02 15:04:05" layout fails.
var dateLayouts = []string{
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006:01:02",
	"2006-01-02",
	"2006/01/02",
}

// ExtractEXIF reads capture date, camera info and GPS location from an
// image's EXIF block, in that priority order: DateTimeOriginal, then
// DateTimeDigitized, then DateTime. A file with no EXIF block, or no
// decodable tags, yields all-nil results rather than an error.
func ExtractEXIF(r io.Reader) (captureDate *time.Time, camera *CameraInfo, location *LocationInfo) {
	x, err := goexif.Decode(r)
	if err != nil {
		return nil, nil, nil
	}
	return extractCaptureDate(x), extractCameraInfo(x), extractLocationInfo(x)
}

func extractCaptureDate(x *goexif.Exif) *time.Time {
	for _, field := range []goexif.FieldName{goexif.DateTimeOriginal, goexif.DateTimeDigitized, goexif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		if t, ok := parseEXIFDateTime(s); ok {
			return &t
		}
	}
	return nil
}

func parseEXIFDateTime(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func extractCameraInfo(x *goexif.Exif) *CameraInfo {
	info := &CameraInfo{}
	hasData := false

	if s, ok := stringTag(x, goexif.Make); ok {
		info.CameraMake = s
		hasData = true
	}
	if s, ok := stringTag(x, goexif.Model); ok {
		info.CameraModel = s
		hasData = true
	}
	if s, ok := stringTag(x, goexif.LensModel); ok {
		info.LensModel = s
		hasData = true
	}
	if tag, err := x.Get(goexif.ISOSpeedRatings); err == nil {
		if iso, err := tag.Int(0); err == nil {
			info.ISO = iso
			hasData = true
		}
	}
	if tag, err := x.Get(goexif.FNumber); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			info.Aperture = fmt.Sprintf("f/%.1f", float64(num)/float64(den))
			hasData = true
		}
	}
	if tag, err := x.Get(goexif.ExposureTime); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			info.ShutterSpeed = formatShutterSpeed(num, den)
			hasData = true
		}
	}
	if tag, err := x.Get(goexif.FocalLength); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			info.FocalLength = fmt.Sprintf("%.0fmm", float64(num)/float64(den))
			hasData = true
		}
	}

	if !hasData {
		return nil
	}
	return info
}

func formatShutterSpeed(num, den int64) string {
	if num == 0 {
		return "0s"
	}
	seconds := float64(num) / float64(den)
	if seconds >= 1 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	return fmt.Sprintf("1/%ds", int64(float64(den)/float64(num)))
}

func stringTag(x *goexif.Exif, field goexif.FieldName) (string, bool) {
	tag, err := x.Get(field)
	if err != nil {
		return "", false
	}
	s, err := tag.StringVal()
	if err != nil || s == "" {
		return "", false
	}
	return trimQuotes(s), true
}

func trimQuotes(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == '"' || s[start] == ' ') {
		start++
	}
	for end > start && (s[end-1] == '"' || s[end-1] == ' ' || s[end-1] == 0) {
		end--
	}
	return s[start:end]
}

// extractLocationInfo decodes GPS latitude/longitude, applying the
// hemisphere reference sign flip (S/W negate), and precomputes map links.
func extractLocationInfo(x *goexif.Exif) *LocationInfo {
	lat, lon, err := x.LatLong()
	if err != nil {
		return nil
	}
	return &LocationInfo{
		Latitude:      lat,
		Longitude:     lon,
		GoogleMapsURL: fmt.Sprintf("https://maps.google.com/?q=%v,%v", lat, lon),
		AppleMapsURL:  fmt.Sprintf("https://maps.apple.com/?ll=%v,%v", lat, lon),
	}
}
