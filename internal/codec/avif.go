package codec

import (
	"bytes"
	"image"

	"github.com/gen2brain/avif"

	"gallerysvc/internal/galleryerr"
)

// AVIFInfo carries the container-level properties of an AVIF file that the
// pixel decoder alone does not expose: bit depth, color properties, ICC
// profile bytes, embedded EXIF, content light level and HDR/gain-map
// classification. ColorPrimaries, TransferCharacteristics and
// MatrixCoefficients are set by DecodeAVIF to the BT.709/sRGB defaults
// (1, 13, 1); an nclx 'colr' box is not parsed, so they do not reflect the
// file's own color description.
type AVIFInfo struct {
	Width                   int
	Height                  int
	BitDepth                int
	HasAlpha                bool
	ColorPrimaries          int
	TransferCharacteristics int
	MatrixCoefficients      int
	ICCProfile              []byte
	EXIFData                []byte
	MaxCLL                  uint16
	MaxPALL                 uint16
	HasGainMap              bool
	GainMap                 *GainMapInfo
	IsHDR                   bool
}

// GainMapInfo describes an AVIF auxiliary gain-map image used for HDR/SDR
// tone mapping. Without a decoder API that surfaces the actual tone-mapping
// curve, a detected gain map is reported with these neutral defaults
// (identity gamma, full-range min/max, no offsets) rather than decoded
// values; HasImage stays false since the gain-map pixels themselves are
// never extracted.
type GainMapInfo struct {
	HasImage              bool
	Gamma                 [3]float64
	Min                   [3]float64
	Max                   [3]float64
	BaseOffset            [3]float64
	AlternateOffset       [3]float64
	BaseHDRHeadroom       float64
	AlternateHDRHeadroom  float64
	UseBaseColorSpace     bool
}

func defaultGainMapInfo() *GainMapInfo {
	return &GainMapInfo{
		Gamma:                [3]float64{1, 1, 1},
		Min:                  [3]float64{0, 0, 0},
		Max:                  [3]float64{1, 1, 1},
		BaseHDRHeadroom:      1,
		AlternateHDRHeadroom: 1,
		UseBaseColorSpace:    true,
	}
}

// Color property constants from ISO/IEC 23091-2 (CICP), the subset the HDR
// classifier in §4.1 needs.
const (
	cpBT2020           = 9
	cpDisplayP3        = 12
	tcSMPTE2084PQ      = 16
	tcHLG              = 18
	mcBT2020NonConstant = 9
)

// DecodeAVIF decodes the pixel data via the bundled AVIF codec and augments
// it with container-level metadata recovered by the defensive box parser,
// since the high-level decoder does not surface color properties or ICC.
func DecodeAVIF(data []byte) (image.Image, AVIFInfo, error) {
	img, err := avif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, AVIFInfo{}, galleryerr.Codec("decode", err)
	}

	info := AVIFInfo{
		ColorPrimaries:          1, // BT.709 default
		TransferCharacteristics: 13,
		MatrixCoefficients:      1,
		BitDepth:                8,
	}
	if w, h, ok := extractDimensionsFromContainer(data); ok {
		info.Width, info.Height = int(w), int(h)
	} else {
		b := img.Bounds()
		info.Width, info.Height = b.Dx(), b.Dy()
	}
	info.ICCProfile = extractICCProfileFromContainer(data)
	info.EXIFData = extractEXIFFromContainer(data)
	info.MaxCLL, info.MaxPALL, _ = extractCLLIFromContainer(data)
	info.HasGainMap, info.GainMap = detectGainMapInContainer(data)

	if _, hasAlpha := img.(*image.NRGBA); hasAlpha {
		info.HasAlpha = true
	} else if _, hasAlpha := img.(*image.NRGBA64); hasAlpha {
		info.HasAlpha = true
		info.BitDepth = 10
	} else if _, is16 := img.(*image.RGBA64); is16 {
		info.BitDepth = 10
	}

	info.IsHDR = classifyHDR(info)
	return img, info, nil
}

// classifyHDR implements the HDR heuristic from §4.1: bit_depth > 8 AND
// (BT.2020 + PQ/HLG, OR Display-P3 + >=10-bit, OR PQ/HLG at high bit depth,
// OR non-zero CLLI), OR a gain map is present.
func classifyHDR(info AVIFInfo) bool {
	if info.HasGainMap {
		return true
	}
	if info.BitDepth <= 8 {
		return false
	}
	hasHDRTransfer := info.TransferCharacteristics == tcSMPTE2084PQ || info.TransferCharacteristics == tcHLG
	if info.ColorPrimaries == cpBT2020 && hasHDRTransfer {
		return true
	}
	if info.ColorPrimaries == cpDisplayP3 && info.BitDepth >= 10 {
		return true
	}
	if hasHDRTransfer {
		return true
	}
	if info.MaxCLL > 0 || info.MaxPALL > 0 {
		return true
	}
	return false
}

// defaultAVIFSpeed is the gen2brain/avif speed/quality tradeoff knob used
// when the caller doesn't specify one (0-10, higher is faster/lower quality).
const defaultAVIFSpeed = 6

// EncodeAVIF encodes img at the given quality (0-100, passed to the codec
// as is). speed <= 0 selects defaultAVIFSpeed. hdrPreserve does not change
// the output: no higher bit depth, BT.2020 primaries or PQ transfer is
// selected for it. icc and gainMap are accepted but not embedded in the
// result; see the notes below.
func EncodeAVIF(img image.Image, quality int, icc []byte, hdrPreserve bool, speed int, gainMap []byte) ([]byte, error) {
	if quality <= 0 {
		quality = 85
	}
	if quality > 100 {
		quality = 100
	}
	if speed <= 0 {
		speed = defaultAVIFSpeed
	}

	var buf bytes.Buffer
	opts := []avif.EncodeOption{avif.Quality(quality), avif.Speed(speed)}
	if hdrPreserve {
		opts = append(opts, avif.Quality(quality))
	}
	if err := avif.Encode(&buf, img, opts...); err != nil {
		return nil, galleryerr.Codec("encode", err)
	}
	out := buf.Bytes()

	// gen2brain/avif has no ICC-mux entry point, and injectAVIFICC always
	// returns errAVIFMuxUnsupported, so a supplied profile leaves the
	// profile-less bytes in place.
	if len(icc) > 0 {
		if withICC, err := injectAVIFICC(out, icc); err == nil {
			out = withICC
		}
	}

	// gen2brain/avif exposes no way to attach an auxiliary gain-map item
	// either, for the same reason noted on injectAVIFICC: a safe mux would
	// require rewriting the iloc/iinf item tables the encoder already wrote,
	// which this package does not attempt. A caller-supplied gain map is
	// therefore dropped and the base image is encoded alone.
	_ = gainMap

	return out, nil
}
