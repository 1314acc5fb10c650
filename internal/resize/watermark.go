package resize

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// WatermarkOptions configures the copyright overlay applied to served
// derivatives. Text is always anchored bottom-left with a fixed margin.
type WatermarkOptions struct {
	Text     string
	FontPath string
	FontSize float64
	Margin   int
}

var (
	faceCacheMu sync.Mutex
	faceCache   = map[string]*opentype.Font{}
)

func loadFont(path string) (*opentype.Font, error) {
	faceCacheMu.Lock()
	defer faceCacheMu.Unlock()
	if f, ok := faceCache[path]; ok {
		return f, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(raw)
	if err != nil {
		return nil, err
	}
	faceCache[path] = f
	return f, nil
}

// ApplyWatermark draws opts.Text in the bottom-left corner of img, choosing
// white or black text by the WCAG relative luminance of the pixels the text
// will cover, exactly as the system this pipeline reimplements does in its
// copyright overlay: white text unless the sampled region is already bright.
func ApplyWatermark(img image.Image, opts WatermarkOptions) (image.Image, error) {
	if opts.Text == "" {
		return img, nil
	}

	size := opts.FontSize
	if size <= 0 {
		size = 14
	}
	margin := opts.Margin
	if margin <= 0 {
		margin = 10
	}

	fnt, err := loadFont(opts.FontPath)
	if err != nil {
		return img, err
	}
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return img, err
	}
	defer face.Close()

	b := img.Bounds()
	textW := font.MeasureString(face, opts.Text).Ceil()
	metrics := face.Metrics()
	textH := metrics.Height.Ceil()

	originX := b.Min.X + margin
	originY := b.Max.Y - margin

	sampleRect := image.Rect(originX, originY-textH, originX+textW, originY)
	sampleRect = sampleRect.Intersect(b)
	textColor := pickTextColor(img, sampleRect)

	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.P(originX, originY),
	}
	d.DrawString(opts.Text)
	return dst, nil
}

// pickTextColor implements the WCAG relative-luminance rule: sRGB-linearize
// each channel, weight 0.2126/0.7152/0.0722, and choose white text unless the
// mean sampled luminance is already above 0.5. Defaults to white when no
// pixels are sampled (an empty or out-of-bounds region).
func pickTextColor(img image.Image, region image.Rectangle) color.Color {
	if region.Empty() {
		return color.White
	}

	var sum float64
	var n int
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			sum += luminance(
				float64(r>>8)/255,
				float64(g>>8)/255,
				float64(b>>8)/255,
			)
			n++
		}
	}
	if n == 0 {
		return color.White
	}
	mean := sum / float64(n)
	if mean < 0.5 {
		return color.White
	}
	return color.Black
}

func luminance(r, g, b float64) float64 {
	return 0.2126*linearize(r) + 0.7152*linearize(g) + 0.0722*linearize(b)
}

func linearize(c float64) float64 {
	if c <= 0.03928 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}
