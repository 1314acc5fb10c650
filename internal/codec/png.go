package codec

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"image"
	stdpng "image/png"
	"io"

	"gallerysvc/internal/galleryerr"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// ExtractPNGICC walks the chunk stream following the 8-byte PNG signature and
// returns the zlib-inflated payload of the first iCCP chunk, or nil if none
// is present or the chunk is malformed.
func ExtractPNGICC(data []byte) []byte {
	if len(data) < 8 || !bytes.Equal(data[:8], pngSignature) {
		return nil
	}
	pos := 8
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		bodyStart := pos + 8
		if bodyStart+length > len(data) {
			break
		}
		body := data[bodyStart : bodyStart+length]

		if typ == "iCCP" {
			nul := bytes.IndexByte(body, 0)
			if nul < 0 || nul+2 > len(body) {
				return nil
			}
			compressionMethod := body[nul+1]
			if compressionMethod != 0 {
				return nil
			}
			compressed := body[nul+2:]
			r, err := zlib.NewReader(bytes.NewReader(compressed))
			if err != nil {
				return nil
			}
			defer r.Close()
			out, err := io.ReadAll(r)
			if err != nil {
				return nil
			}
			return out
		}
		if typ == "IEND" {
			break
		}
		pos = bodyStart + length + 4 // skip CRC
	}
	return nil
}

// EncodePNG writes a baseline PNG. Per spec §4.1, PNG encoding never
// reinjects an ICC profile: PNG is only used to re-encode PNG-sourced
// derivatives, where the original can instead be served directly.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := &stdpng.Encoder{CompressionLevel: stdpng.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, galleryerr.Codec("encode", err)
	}
	return buf.Bytes(), nil
}
