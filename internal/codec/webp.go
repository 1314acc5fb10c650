package codec

import (
	"bytes"
	"encoding/binary"
	"image"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	"gallerysvc/internal/galleryerr"
)

// DecodeWebP decodes a WebP bitstream via the native libwebp binding.
func DecodeWebP(data []byte) (image.Image, error) {
	img, err := webp.Decode(bytes.NewReader(data), &webp.DecoderOptions{})
	if err != nil {
		return nil, galleryerr.Codec("decode", err)
	}
	return img, nil
}

// ExtractWebPICC walks a WebP RIFF container's top-level chunks looking for
// an ICCP chunk (only present in the extended VP8X container format).
func ExtractWebPICC(data []byte) []byte {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return nil
	}
	pos := 12
	for pos+8 <= len(data) {
		fourCC := string(data[pos : pos+4])
		size := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		bodyStart := pos + 8
		bodyEnd := bodyStart + int(size)
		if bodyEnd > len(data) {
			break
		}
		if fourCC == "ICCP" {
			return data[bodyStart:bodyEnd]
		}
		pos = bodyEnd
		if size%2 == 1 {
			pos++
		}
	}
	return nil
}

// EncodeWebP encodes img via the native libwebp binding at the given quality
// (0-100). When icc is non-empty, the simple bitstream produced by the
// encoder is rewritten into the extended (VP8X) container with an ICCP
// chunk muxed in, mirroring the WebPMux ICC-injection step of the system
// this codec replaces. Mux failure falls back to the simple, profile-less
// stream rather than failing the request.
func EncodeWebP(img image.Image, quality float32, icc []byte) ([]byte, error) {
	if quality <= 0 {
		quality = 85
	}
	if quality > 100 {
		quality = 100
	}
	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetPhoto, quality)
	if err != nil {
		return nil, galleryerr.Codec("encode", err)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, opts); err != nil {
		return nil, galleryerr.Codec("encode", err)
	}
	simple := buf.Bytes()
	if len(icc) == 0 {
		return simple, nil
	}

	muxed, err := muxICCProfile(simple, icc)
	if err != nil {
		return simple, nil
	}
	return muxed, nil
}

// muxICCProfile rewrites a simple-format WebP (RIFF/WEBP/VP8 or VP8L chunk)
// into extended format (RIFF/WEBP/VP8X + ICCP + <bitstream chunk>) with the
// ICC profile flag set.
func muxICCProfile(simple []byte, icc []byte) ([]byte, error) {
	if len(simple) < 20 || string(simple[0:4]) != "RIFF" || string(simple[8:12]) != "WEBP" {
		return nil, errNotWebP
	}
	fourCC := string(simple[12:16])
	if fourCC != "VP8 " && fourCC != "VP8L" {
		return nil, errNotWebP
	}
	width, height, ok := webpDimensions(simple, fourCC)
	if !ok {
		return nil, errNotWebP
	}

	bitstreamChunk := simple[12:] // fourCC + size + payload(+pad)

	var vp8x [10]byte
	vp8x[0] = 0x20 // ICC flag bit
	w1 := width - 1
	h1 := height - 1
	vp8x[4] = byte(w1)
	vp8x[5] = byte(w1 >> 8)
	vp8x[6] = byte(w1 >> 16)
	vp8x[7] = byte(h1)
	vp8x[8] = byte(h1 >> 8)
	vp8x[9] = byte(h1 >> 16)

	var out bytes.Buffer
	out.WriteString("RIFF")
	writeU32LE(&out, 0) // placeholder, patched below
	out.WriteString("WEBP")

	writeChunk(&out, "VP8X", vp8x[:])
	writeChunk(&out, "ICCP", icc)
	out.Write(bitstreamChunk)

	result := out.Bytes()
	riffSize := uint32(len(result) - 8)
	binary.LittleEndian.PutUint32(result[4:8], riffSize)
	return result, nil
}

func writeChunk(buf *bytes.Buffer, fourCC string, payload []byte) {
	buf.WriteString(fourCC)
	writeU32LE(buf, uint32(len(payload)))
	buf.Write(payload)
	if len(payload)%2 == 1 {
		buf.WriteByte(0)
	}
}

func writeU32LE(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func webpDimensions(simple []byte, fourCC string) (width, height uint32, ok bool) {
	payload := simple[20:]
	switch fourCC {
	case "VP8 ":
		if len(payload) < 10 {
			return 0, 0, false
		}
		// VP8 key frame: 3-byte start code at payload[3:6] == 0x9d 0x01 0x2a
		if len(payload) < 10 || payload[3] != 0x9d || payload[4] != 0x01 || payload[5] != 0x2a {
			return 0, 0, false
		}
		w := uint32(payload[6]) | uint32(payload[7])<<8
		h := uint32(payload[8]) | uint32(payload[9])<<8
		return w & 0x3fff, h & 0x3fff, true
	case "VP8L":
		if len(payload) < 5 || payload[0] != 0x2f {
			return 0, 0, false
		}
		b := payload[1:5]
		bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		w := (bits & 0x3fff) + 1
		h := ((bits >> 14) & 0x3fff) + 1
		return w, h, true
	}
	return 0, 0, false
}

var errNotWebP = webpFormatError("not a simple-format WebP stream")

type webpFormatError string

func (e webpFormatError) Error() string { return string(e) }
