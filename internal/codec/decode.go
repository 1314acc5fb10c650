package codec

import (
	"bytes"
	"image"
	_ "image/gif" // register "gif" with image.Decode

	_ "golang.org/x/image/bmp" // register "bmp" with image.Decode

	"gallerysvc/internal/galleryerr"
)

// Decode decodes an image of any source format the gallery accepts and
// extracts its embedded color profile, if any. WebP and AVIF are handled by
// their native decoders directly (image.Decode has no hook for either);
// every other format goes through the standard library's registered
// decoders, sniffing the container for an ICC chunk by magic bytes.
func Decode(data []byte) (image.Image, []byte, error) {
	if bytes.HasPrefix(data, []byte("RIFF")) && len(data) > 12 && string(data[8:12]) == "WEBP" {
		img, err := DecodeWebP(data)
		if err != nil {
			return nil, nil, err
		}
		return img, ExtractWebPICC(data), nil
	}
	if isAVIF(data) {
		img, info, err := DecodeAVIF(data)
		if err != nil {
			return nil, nil, err
		}
		return img, info.ICCProfile, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, galleryerr.Codec("decode", err)
	}

	var icc []byte
	switch format {
	case "jpeg":
		icc = ExtractJPEGICC(data)
	case "png":
		icc = ExtractPNGICC(data)
	}
	return img, icc, nil
}

// isAVIF sniffs an ISO-BMFF AVIF file by its ftyp box major brand.
func isAVIF(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	return brand == "avif" || brand == "avis"
}
