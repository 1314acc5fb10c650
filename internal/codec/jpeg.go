package codec

import (
	"bytes"
	"encoding/binary"
	"image"
	stdjpeg "image/jpeg"

	"gallerysvc/internal/galleryerr"
)

const iccMarkerID = "ICC_PROFILE\x00"

// ExtractJPEGICC scans APP2 (0xFFE2) segments for concatenated ICC profile
// chunks tagged with the 12-byte "ICC_PROFILE\0" identifier, skipping the two
// sequence bytes that follow it, and returns the reassembled profile bytes.
func ExtractJPEGICC(data []byte) []byte {
	var profile []byte
	pos := 2 // skip SOI marker 0xFFD8
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			break
		}
		marker := data[pos+1]
		if marker == 0xD8 || marker == 0xD9 || (marker >= 0xD0 && marker <= 0xD7) {
			pos += 2
			continue
		}
		if pos+4 > len(data) {
			break
		}
		segLen := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		if segLen < 2 || pos+2+segLen > len(data) {
			break
		}
		segData := data[pos+4 : pos+2+segLen]
		if marker == 0xE2 && len(segData) >= 14 && string(segData[:12]) == iccMarkerID {
			profile = append(profile, segData[14:]...)
		}
		if marker == 0xDA { // start of scan: no more markers of interest
			break
		}
		pos += 2 + segLen
	}
	if len(profile) == 0 {
		return nil
	}
	return profile
}

// EncodeJPEG encodes img as baseline JPEG at the given quality, embedding icc
// as APP2 ICC_PROFILE segments (split into as many chunks as the 64KB
// segment limit needs) when non-empty. If embedding
// fails for any reason, it falls back to a profile-less encode rather than
// failing the request.
func EncodeJPEG(img image.Image, quality int, icc []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := stdjpeg.Encode(&buf, img, &stdjpeg.Options{Quality: clampQuality(quality)}); err != nil {
		return nil, galleryerr.Codec("encode", err)
	}
	if len(icc) == 0 {
		return buf.Bytes(), nil
	}
	withICC, err := injectJPEGICC(buf.Bytes(), icc)
	if err != nil {
		// Profile attach failed; fall back to the profile-less bytes already produced.
		return buf.Bytes(), nil
	}
	return withICC, nil
}

// injectJPEGICC inserts an APP2 ICC_PROFILE segment immediately after the SOI
// marker (and after any existing APP0/JFIF or APP1/EXIF segment, to keep
// readers happy about marker ordering conventions).
func injectJPEGICC(jpegData []byte, icc []byte) ([]byte, error) {
	if len(jpegData) < 2 || jpegData[0] != 0xFF || jpegData[1] != 0xD8 {
		return nil, galleryerr.Codec("icc", errNotJPEG)
	}

	const maxChunk = 65533 - 2 - 12 - 2 // segment length field budget minus identifier+seq bytes
	var segments [][]byte
	total := (len(icc) + maxChunk - 1) / maxChunk
	if total == 0 {
		total = 1
	}
	for i := 0; i < len(icc); i += maxChunk {
		end := i + maxChunk
		if end > len(icc) {
			end = len(icc)
		}
		segments = append(segments, icc[i:end])
	}
	if len(segments) == 0 {
		segments = [][]byte{{}}
	}

	insertAt := 2
	// Skip a leading APP0/APP1 segment so ICC lands right after it, matching
	// the conventional marker ordering most decoders expect.
	if insertAt+4 <= len(jpegData) && jpegData[insertAt] == 0xFF &&
		(jpegData[insertAt+1] == 0xE0 || jpegData[insertAt+1] == 0xE1) {
		segLen := int(binary.BigEndian.Uint16(jpegData[insertAt+2 : insertAt+4]))
		insertAt += 2 + segLen
	}

	var out bytes.Buffer
	out.Write(jpegData[:insertAt])
	for i, chunk := range segments {
		seg := make([]byte, 0, 14+len(chunk))
		seg = append(seg, iccMarkerID...)
		seg = append(seg, byte(i+1), byte(len(segments)))
		seg = append(seg, chunk...)

		out.Write([]byte{0xFF, 0xE2})
		lenField := make([]byte, 2)
		binary.BigEndian.PutUint16(lenField, uint16(len(seg)+2))
		out.Write(lenField)
		out.Write(seg)
	}
	out.Write(jpegData[insertAt:])
	return out.Bytes(), nil
}

func clampQuality(q int) int {
	if q <= 0 {
		return 85
	}
	if q > 100 {
		return 100
	}
	return q
}

var errNotJPEG = jpegFormatError("not a JPEG stream")

type jpegFormatError string

func (e jpegFormatError) Error() string { return string(e) }
