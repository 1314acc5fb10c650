package gallery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gallerysvc/internal/codec"
)

func TestDetermineOutputFormatPNGSourceAlwaysStaysPNG(t *testing.T) {
	got := DetermineOutputFormat("image/avif,image/webp", "photo.PNG", true)
	require.Equal(t, codec.FormatPNG, got)
}

func TestDetermineOutputFormatPrefersAVIFWhenEnabledAndAccepted(t *testing.T) {
	got := DetermineOutputFormat("image/avif,image/webp,*/*", "photo.jpg", true)
	require.Equal(t, codec.FormatAVIF, got)
}

func TestDetermineOutputFormatSkipsAVIFWhenDisabled(t *testing.T) {
	got := DetermineOutputFormat("image/avif,image/webp", "photo.jpg", false)
	require.Equal(t, codec.FormatWebP, got)
}

func TestDetermineOutputFormatFallsBackToWebP(t *testing.T) {
	got := DetermineOutputFormat("image/webp,*/*", "photo.jpg", false)
	require.Equal(t, codec.FormatWebP, got)
}

func TestDetermineOutputFormatFallsBackToJPEGByDefault(t *testing.T) {
	got := DetermineOutputFormat("text/html", "photo.jpg", true)
	require.Equal(t, codec.FormatJPEG, got)
}
