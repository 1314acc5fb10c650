package codec

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	return img
}

func TestJPEGICCRoundTrip(t *testing.T) {
	icc := bytes.Repeat([]byte{0xAB, 0xCD, 0xEF, 0x01}, 50) // 200 bytes, well under one chunk

	data, err := EncodeJPEG(testImage(16, 16), 85, icc)
	require.NoError(t, err)

	got := ExtractJPEGICC(data)
	require.Equal(t, icc, got)
}

func TestJPEGICCRoundTripMultiChunk(t *testing.T) {
	// Larger than a single APP2 segment can hold (~65KB), forcing the
	// multi-chunk path in injectJPEGICC/ExtractJPEGICC.
	icc := bytes.Repeat([]byte{0x11, 0x22, 0x33, 0x44}, 20000) // 80000 bytes

	data, err := EncodeJPEG(testImage(32, 32), 85, icc)
	require.NoError(t, err)

	got := ExtractJPEGICC(data)
	require.Equal(t, icc, got)
}

func TestEncodeJPEGWithoutICCHasNoProfile(t *testing.T) {
	data, err := EncodeJPEG(testImage(8, 8), 85, nil)
	require.NoError(t, err)
	require.Nil(t, ExtractJPEGICC(data))
}

func TestExtractJPEGICCOnNonJPEGReturnsNil(t *testing.T) {
	require.Nil(t, ExtractJPEGICC([]byte("not a jpeg")))
}

func TestClampQuality(t *testing.T) {
	require.Equal(t, 85, clampQuality(0))
	require.Equal(t, 100, clampQuality(500))
	require.Equal(t, 50, clampQuality(50))
}
