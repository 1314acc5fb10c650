// Package composite builds the 2x2 folder preview image (C6): four thumbnails
// cover-resized into a fixed grid, bordered, flattened to opaque RGB, and
// encoded as JPEG.
package composite

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"gallerysvc/internal/resize"
)

const (
	gridSize    = 2
	cellSize    = 600
	padding     = 10
	borderSize  = 2
	jpegQuality = 90
	// canvasSize is the assembled grid before the border: cellSize*gridSize +
	// padding*(gridSize-1) = 600*2 + 10*1 = 1210.
	canvasSize = cellSize*gridSize + padding*(gridSize-1)
)

var borderColor = color.RGBA{200, 200, 200, 255}

// Build assembles up to gridSize*gridSize images into a 1210x1210 JPEG
// composite: each supplied image is cover-resized into its 600px cell, a
// 2px border is drawn inward along the canvas edge (not expanding it, so
// the result stays exactly 1210x1210), and the result is flattened onto a
// white background before JPEG encoding. Missing slots stay white.
func Build(images []image.Image) ([]byte, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, canvasSize, canvasSize))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	for idx, img := range images {
		if idx >= gridSize*gridSize || img == nil {
			break
		}
		row, col := idx/gridSize, idx%gridSize
		x := col * (cellSize + padding)
		y := row * (cellSize + padding)

		cell := resize.ToFill(img, cellSize, cellSize)
		dstRect := image.Rect(x, y, x+cellSize, y+cellSize)
		draw.Draw(canvas, dstRect, cell, image.Point{}, draw.Src)
	}

	drawInwardBorder(canvas, borderSize, borderColor)

	rgb := flattenToRGB(canvas, color.White)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// drawInwardBorder paints a border-width ring along the edges of img in
// place, overwriting pixels rather than expanding the canvas — the
// deliberate deviation from the Rust add_border behavior (which grows the
// canvas by 2*borderWidth) needed to keep the composite at exactly
// canvasSize x canvasSize.
func drawInwardBorder(img *image.RGBA, width int, c color.Color) {
	b := img.Bounds()
	uniform := image.NewUniform(c)

	top := image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+width)
	bottom := image.Rect(b.Min.X, b.Max.Y-width, b.Max.X, b.Max.Y)
	left := image.Rect(b.Min.X, b.Min.Y, b.Min.X+width, b.Max.Y)
	right := image.Rect(b.Max.X-width, b.Min.Y, b.Max.X, b.Max.Y)

	for _, r := range []image.Rectangle{top, bottom, left, right} {
		draw.Draw(img, r, uniform, image.Point{}, draw.Src)
	}
}

func flattenToRGB(img image.Image, background color.Color) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.NewUniform(background), image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}
