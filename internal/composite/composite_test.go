package composite

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestBuildProducesFixedCanvasSize(t *testing.T) {
	imgs := []image.Image{
		solidImage(400, 300, color.RGBA{255, 0, 0, 255}),
		solidImage(300, 400, color.RGBA{0, 255, 0, 255}),
	}
	data, err := Build(imgs)
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, canvasSize, decoded.Bounds().Dx())
	require.Equal(t, canvasSize, decoded.Bounds().Dy())
}

func TestBuildWithFewerThanFourImagesLeavesRemainingCellsWhite(t *testing.T) {
	imgs := []image.Image{solidImage(100, 100, color.RGBA{0, 0, 255, 255})}
	data, err := Build(imgs)
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	// Bottom-right cell was never populated; sample well inside it, away
	// from the border, and expect it close to white.
	x := canvasSize - cellSize/2
	y := canvasSize - cellSize/2
	r, g, b, _ := decoded.At(x, y).RGBA()
	require.Greater(t, r, uint32(0xe000))
	require.Greater(t, g, uint32(0xe000))
	require.Greater(t, b, uint32(0xe000))
}

func TestBuildIgnoresSlotsBeyondGridCapacity(t *testing.T) {
	imgs := make([]image.Image, 6)
	for i := range imgs {
		imgs[i] = solidImage(50, 50, color.RGBA{10, 20, 30, 255})
	}
	// Must not panic or error on more images than grid cells (4).
	data, err := Build(imgs)
	require.NoError(t, err)
	require.NotEmpty(t, data)
}

func TestBuildStopsAtFirstNilSlot(t *testing.T) {
	// A nil entry halts placement rather than skipping just that cell, so
	// every slot from the nil onward (including ones after it) stays white.
	imgs := []image.Image{solidImage(100, 100, color.RGBA{1, 2, 3, 255}), nil, solidImage(100, 100, color.RGBA{1, 2, 3, 255})}
	data, err := Build(imgs)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	// Slot 2 (bottom-left) was given a dark image after the nil; it must
	// still be white.
	r, g, b, _ := decoded.At(cellSize/2, canvasSize-cellSize/2).RGBA()
	require.Greater(t, r, uint32(0xe000))
	require.Greater(t, g, uint32(0xe000))
	require.Greater(t, b, uint32(0xe000))
}
