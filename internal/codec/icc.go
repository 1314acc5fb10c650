package codec

import "encoding/binary"

// ICCProfileName returns a human-readable name for an ICC profile: the
// embedded 'desc' tag if present, otherwise a guess from common profile
// byte-sizes. Advisory only; never gates encoding.
func ICCProfileName(profile []byte) string {
	if name, ok := descTagName(profile); ok {
		return name
	}
	return identifyCommonProfile(len(profile))
}

// descTagName parses the ICC tag table (starting at offset 128, the header
// size) looking for the 'desc' tag and extracts its ASCII description.
func descTagName(profile []byte) (string, bool) {
	const headerSize = 128
	if len(profile) < headerSize+4 {
		return "", false
	}
	tagCount := binary.BigEndian.Uint32(profile[headerSize : headerSize+4])
	tableStart := headerSize + 4
	const entrySize = 12
	for i := uint32(0); i < tagCount; i++ {
		entryOffset := tableStart + int(i)*entrySize
		if entryOffset+entrySize > len(profile) {
			break
		}
		sig := string(profile[entryOffset : entryOffset+4])
		if sig != "desc" {
			continue
		}
		dataOffset := int(binary.BigEndian.Uint32(profile[entryOffset+4 : entryOffset+8]))
		dataSize := int(binary.BigEndian.Uint32(profile[entryOffset+8 : entryOffset+12]))
		if dataOffset < 0 || dataOffset+dataSize > len(profile) || dataSize < 12 {
			return "", false
		}
		descData := profile[dataOffset : dataOffset+dataSize]
		// mluc/desc type: 8-byte type+reserved, then ASCII count (4 bytes, BE), then ASCII text.
		if len(descData) < 12 {
			return "", false
		}
		asciiLen := int(binary.BigEndian.Uint32(descData[8:12]))
		if 12+asciiLen > len(descData) {
			return "", false
		}
		text := descData[12 : 12+asciiLen]
		text = trimNulAndSpace(text)
		if len(text) == 0 {
			return "", false
		}
		return string(text), true
	}
	return "", false
}

func trimNulAndSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && (b[start] == 0 || b[start] == ' ') {
		start++
	}
	for end > start && (b[end-1] == 0 || b[end-1] == ' ') {
		end--
	}
	return b[start:end]
}

func identifyCommonProfile(size int) string {
	switch size {
	case 548:
		return "Display P3"
	case 3144, 3145:
		return "sRGB"
	case 560:
		return "Adobe RGB (1998)"
	default:
		return ""
	}
}
