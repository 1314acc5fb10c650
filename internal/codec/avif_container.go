package codec

import "encoding/binary"

// This file is a direct port of the defensive ISO-BMFF box-tree walker used
// by the system's AVIF container-level fallbacks: dimensions via 'ispe',
// ICC via 'colr'/'prof', gain-map presence via 'auxC'/'tmap'. Unknown boxes
// are skipped; a box with size 0 or 1 terminates traversal at that level;
// 'iprp'/'ipco'/'iref' containers recurse.

func extractICCProfileFromContainer(data []byte) []byte {
	pos := 0
	for pos+8 <= len(data) {
		boxSize := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		if boxSize == 0 || boxSize == 1 || pos+boxSize > len(data) {
			break
		}
		boxType := string(data[pos+4 : pos+8])
		if boxType == "meta" && pos+12 < len(data) {
			return findColrInMeta(data[pos+12 : pos+boxSize])
		}
		pos += boxSize
	}
	return nil
}

func findColrInMeta(meta []byte) []byte {
	pos := 0
	for pos+8 <= len(meta) {
		boxSize := int(binary.BigEndian.Uint32(meta[pos : pos+4]))
		if boxSize == 0 || boxSize == 1 || pos+boxSize > len(meta) {
			break
		}
		boxType := string(meta[pos+4 : pos+8])

		if boxType == "colr" && boxSize > 12 {
			colrData := meta[pos+8 : pos+boxSize]
			if len(colrData) > 4 && string(colrData[0:4]) == "prof" {
				return colrData[4:]
			}
		}
		if (boxType == "iprp" || boxType == "ipco") && boxSize > 8 {
			if icc := findColrInMeta(meta[pos+8 : pos+boxSize]); icc != nil {
				return icc
			}
		}
		pos += boxSize
	}
	return nil
}

func extractDimensionsFromContainer(data []byte) (width, height uint32, ok bool) {
	pos := 0
	for pos+8 <= len(data) {
		boxSize := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		if boxSize == 0 || boxSize == 1 || pos+boxSize > len(data) {
			break
		}
		boxType := string(data[pos+4 : pos+8])
		if boxType == "meta" && pos+12 < len(data) {
			if w, h, found := findIspeInMeta(data[pos+12 : pos+boxSize]); found {
				return w, h, true
			}
		}
		pos += boxSize
	}
	return 0, 0, false
}

func findIspeInMeta(meta []byte) (width, height uint32, ok bool) {
	pos := 0
	for pos+8 <= len(meta) {
		boxSize := int(binary.BigEndian.Uint32(meta[pos : pos+4]))
		if boxSize == 0 || boxSize == 1 || pos+boxSize > len(meta) {
			break
		}
		boxType := string(meta[pos+4 : pos+8])

		if boxType == "ispe" && pos+20 <= len(meta) {
			w := binary.BigEndian.Uint32(meta[pos+12 : pos+16])
			h := binary.BigEndian.Uint32(meta[pos+16 : pos+20])
			return w, h, true
		}
		if (boxType == "iprp" || boxType == "ipco") && boxSize > 8 {
			if w, h, found := findIspeInMeta(meta[pos+8 : pos+boxSize]); found {
				return w, h, true
			}
		}
		pos += boxSize
	}
	return 0, 0, false
}

// extractCLLIFromContainer locates the content light level box ('clli'),
// which carries the two fields the HDR classifier needs: maxCLL and maxPALL,
// each an unsigned 16-bit value in candelas per square meter.
func extractCLLIFromContainer(data []byte) (maxCLL, maxPALL uint16, ok bool) {
	pos := 0
	for pos+8 <= len(data) {
		boxSize := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		if boxSize == 0 || boxSize == 1 || pos+boxSize > len(data) {
			break
		}
		boxType := string(data[pos+4 : pos+8])
		if boxType == "meta" && pos+12 < len(data) {
			if cll, pall, found := findClliInMeta(data[pos+12 : pos+boxSize]); found {
				return cll, pall, true
			}
		}
		pos += boxSize
	}
	return 0, 0, false
}

func findClliInMeta(meta []byte) (maxCLL, maxPALL uint16, ok bool) {
	pos := 0
	for pos+8 <= len(meta) {
		boxSize := int(binary.BigEndian.Uint32(meta[pos : pos+4]))
		if boxSize == 0 || boxSize == 1 || pos+boxSize > len(meta) {
			break
		}
		boxType := string(meta[pos+4 : pos+8])

		if boxType == "clli" && boxSize >= 12 {
			payload := meta[pos+8 : pos+boxSize]
			return binary.BigEndian.Uint16(payload[0:2]), binary.BigEndian.Uint16(payload[2:4]), true
		}
		if (boxType == "iprp" || boxType == "ipco") && boxSize > 8 {
			if cll, pall, found := findClliInMeta(meta[pos+8 : pos+boxSize]); found {
				return cll, pall, true
			}
		}
		pos += boxSize
	}
	return 0, 0, false
}

// extractEXIFFromContainer locates the item of type 'Exif' referenced by the
// meta box's item-info table ('iinf'/'infe'), resolves its byte range via the
// item-location table ('iloc'), and strips the leading 4-byte TIFF-header
// offset that the Exif item format prepends, returning the raw TIFF bytes
// ready for metadata.ExtractEXIF.
func extractEXIFFromContainer(data []byte) []byte {
	pos := 0
	for pos+8 <= len(data) {
		boxSize := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		if boxSize == 0 || boxSize == 1 || pos+boxSize > len(data) {
			break
		}
		boxType := string(data[pos+4 : pos+8])
		if boxType == "meta" && pos+12 < len(data) {
			meta := data[pos+12 : pos+boxSize]
			itemID, found := findExifItemID(meta)
			if !found {
				return nil
			}
			offset, length, found := findItemLocation(meta, itemID)
			if !found || offset+length > uint64(len(data)) {
				return nil
			}
			return stripExifTIFFHeader(data[offset : offset+length])
		}
		pos += boxSize
	}
	return nil
}

func findExifItemID(meta []byte) (uint32, bool) {
	pos := 0
	for pos+8 <= len(meta) {
		boxSize := int(binary.BigEndian.Uint32(meta[pos : pos+4]))
		if boxSize == 0 || boxSize == 1 || pos+boxSize > len(meta) {
			break
		}
		boxType := string(meta[pos+4 : pos+8])
		if boxType == "iinf" && boxSize > 12 {
			if id, found := findExifItemIDInIinf(meta[pos+8 : pos+boxSize]); found {
				return id, true
			}
		}
		pos += boxSize
	}
	return 0, false
}

func findExifItemIDInIinf(iinf []byte) (uint32, bool) {
	if len(iinf) < 6 {
		return 0, false
	}
	version := iinf[0]
	pos := 4
	if version == 0 {
		pos += 2
	} else {
		pos += 4
	}
	for pos+8 <= len(iinf) {
		boxSize := int(binary.BigEndian.Uint32(iinf[pos : pos+4]))
		if boxSize == 0 || boxSize == 1 || pos+boxSize > len(iinf) {
			break
		}
		boxType := string(iinf[pos+4 : pos+8])
		if boxType == "infe" {
			if id, itemType, ok := parseInfe(iinf[pos+8 : pos+boxSize]); ok && itemType == "Exif" {
				return id, true
			}
		}
		pos += boxSize
	}
	return 0, false
}

// parseInfe reads the fields common to ItemInfoEntry versions 0-3 that this
// parser needs: the item ID and, for versions 2/3 (the ones AVIF/HEIF
// actually emit), the four-character item type.
func parseInfe(payload []byte) (itemID uint32, itemType string, ok bool) {
	if len(payload) < 4 {
		return 0, "", false
	}
	version := payload[0]
	p := 4
	switch version {
	case 0, 1:
		if p+2 > len(payload) {
			return 0, "", false
		}
		return uint32(binary.BigEndian.Uint16(payload[p : p+2])), "", true
	case 2:
		if p+8 > len(payload) {
			return 0, "", false
		}
		id := uint32(binary.BigEndian.Uint16(payload[p : p+2]))
		return id, string(payload[p+4 : p+8]), true
	case 3:
		if p+10 > len(payload) {
			return 0, "", false
		}
		id := binary.BigEndian.Uint32(payload[p : p+4])
		return id, string(payload[p+6 : p+10]), true
	default:
		return 0, "", false
	}
}

func findItemLocation(meta []byte, itemID uint32) (offset, length uint64, ok bool) {
	iloc := findIlocBox(meta)
	if iloc == nil || len(iloc) < 6 {
		return 0, 0, false
	}

	version := iloc[0]
	offsetSize := int(iloc[4] >> 4)
	lengthSize := int(iloc[4] & 0x0F)
	baseOffsetSize := int(iloc[5] >> 4)
	indexSize := int(iloc[5] & 0x0F)

	p := 6
	var itemCount int
	if version < 2 {
		if p+2 > len(iloc) {
			return 0, 0, false
		}
		itemCount = int(binary.BigEndian.Uint16(iloc[p : p+2]))
		p += 2
	} else {
		if p+4 > len(iloc) {
			return 0, 0, false
		}
		itemCount = int(binary.BigEndian.Uint32(iloc[p : p+4]))
		p += 4
	}

	for i := 0; i < itemCount; i++ {
		var curID uint32
		if version < 2 {
			v, ok := readUintField(iloc, &p, 2)
			if !ok {
				return 0, 0, false
			}
			curID = uint32(v)
		} else {
			v, ok := readUintField(iloc, &p, 4)
			if !ok {
				return 0, 0, false
			}
			curID = uint32(v)
		}
		if version == 1 || version == 2 {
			if _, ok := readUintField(iloc, &p, 2); !ok { // construction_method
				return 0, 0, false
			}
		}
		if _, ok := readUintField(iloc, &p, 2); !ok { // data_reference_index
			return 0, 0, false
		}
		baseOffset, ok := readUintField(iloc, &p, baseOffsetSize)
		if !ok {
			return 0, 0, false
		}
		extentCount, ok := readUintField(iloc, &p, 2)
		if !ok {
			return 0, 0, false
		}

		var firstOffset, firstLength uint64
		for e := 0; e < int(extentCount); e++ {
			if indexSize > 0 {
				if _, ok := readUintField(iloc, &p, indexSize); !ok {
					return 0, 0, false
				}
			}
			extOffset, ok := readUintField(iloc, &p, offsetSize)
			if !ok {
				return 0, 0, false
			}
			extLength, ok := readUintField(iloc, &p, lengthSize)
			if !ok {
				return 0, 0, false
			}
			if e == 0 {
				firstOffset, firstLength = extOffset, extLength
			}
		}

		if curID == itemID {
			return baseOffset + firstOffset, firstLength, true
		}
	}
	return 0, 0, false
}

func findIlocBox(meta []byte) []byte {
	pos := 0
	for pos+8 <= len(meta) {
		boxSize := int(binary.BigEndian.Uint32(meta[pos : pos+4]))
		if boxSize == 0 || boxSize == 1 || pos+boxSize > len(meta) {
			break
		}
		boxType := string(meta[pos+4 : pos+8])
		if boxType == "iloc" {
			return meta[pos+8 : pos+boxSize]
		}
		pos += boxSize
	}
	return nil
}

// readUintField reads a big-endian unsigned integer of size bytes (0, 2, 4
// or 8, per the iloc field-size nibbles) from b at *p, advancing *p.
func readUintField(b []byte, p *int, size int) (uint64, bool) {
	if size == 0 {
		return 0, true
	}
	if *p+size > len(b) {
		return 0, false
	}
	var v uint64
	for i := 0; i < size; i++ {
		v = v<<8 | uint64(b[*p+i])
	}
	*p += size
	return v, true
}

// stripExifTIFFHeader drops the Exif item's leading 4-byte "TIFF header
// offset" field (ISO/IEC 23008-12 Annex A), returning the raw TIFF bytes
// goexif expects.
func stripExifTIFFHeader(payload []byte) []byte {
	if len(payload) < 4 {
		return nil
	}
	headerOffset := binary.BigEndian.Uint32(payload[0:4])
	start := 4 + int(headerOffset)
	if start >= len(payload) {
		return nil
	}
	return payload[start:]
}

// detectGainMapInContainer reports whether the file likely carries an AVIF
// gain map. Without a decoder API exposing gain maps, this is a container
// heuristic only (a bare 'tmap' signature anywhere, or an 'auxC' aux-type URN
// naming a gain/tone map) — sufficient for display/metadata purposes but not
// for extracting the gain-map image itself, so a detected gain map's
// parameters are reported as the library's own neutral defaults rather than
// decoded values.
func detectGainMapInContainer(data []byte) (bool, *GainMapInfo) {
	for i := 0; i+4 <= len(data); i++ {
		if string(data[i:i+4]) == "tmap" {
			return true, defaultGainMapInfo()
		}
	}

	pos := 0
	for pos+8 <= len(data) {
		boxSize := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		if boxSize == 0 || boxSize == 1 || pos+boxSize > len(data) {
			break
		}
		boxType := string(data[pos+4 : pos+8])
		if boxType == "meta" && pos+12 < len(data) {
			if detectGainMapInMeta(data[pos+12 : pos+boxSize]) {
				return true, defaultGainMapInfo()
			}
		}
		pos += boxSize
	}
	return false, nil
}

func detectGainMapInMeta(meta []byte) bool {
	pos := 0
	for pos+8 <= len(meta) {
		boxSize := int(binary.BigEndian.Uint32(meta[pos : pos+4]))
		if boxSize == 0 || boxSize == 1 || pos+boxSize > len(meta) {
			break
		}
		boxType := string(meta[pos+4 : pos+8])

		if boxType == "auxC" && boxSize > 8 {
			if auxType, ok := extractAuxType(meta[pos+8 : pos+boxSize]); ok {
				if containsAny(auxType, "gainmap", "tonemap", "hdr_reconstruction") {
					return true
				}
			}
		}
		if boxType == "tmap" {
			return true
		}
		if (boxType == "iprp" || boxType == "ipco" || boxType == "iref") && boxSize > 8 {
			if detectGainMapInMeta(meta[pos+8 : pos+boxSize]) {
				return true
			}
		}
		pos += boxSize
	}
	return false
}

func extractAuxType(auxc []byte) (string, bool) {
	if len(auxc) < 5 || auxc[0] != 0 {
		return "", false
	}
	rest := auxc[4:]
	nul := -1
	for i, b := range rest {
		if b == 0 {
			nul = i
			break
		}
	}
	if nul < 0 {
		return "", false
	}
	return string(rest[:nul]), true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(sub) == 0 || len(s) < len(sub) {
			continue
		}
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
	}
	return false
}

// injectAVIFICC is the hook for adding an ICC profile to an encoded AVIF. It
// does not rewrite the container: it always returns errAVIFMuxUnsupported,
// and callers keep the profile-less bytes.
func injectAVIFICC(data []byte, icc []byte) ([]byte, error) {
	return nil, errAVIFMuxUnsupported
}

var errAVIFMuxUnsupported = avifFormatError("avif icc mux not supported by this encoder backend")

type avifFormatError string

func (e avifFormatError) Error() string { return string(e) }
