package thumbnail

import (
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// EXIF orientation codes.
const (
	OrientNormal      = 1
	OrientFlipH       = 2
	OrientRotate180   = 3
	OrientFlipV       = 4
	OrientTranspose   = 5
	OrientRotate90CW  = 6
	OrientTransverse  = 7
	OrientRotate90CCW = 8
)

// Orient applies the EXIF orientation transform for code and returns a new image.
// Codes outside 2-8 are the identity. The input is never modified.
func Orient(img image.Image, code int) *image.NRGBA {
	switch code {
	case OrientFlipH:
		return imaging.FlipH(img)
	case OrientRotate180:
		return imaging.Rotate180(img)
	case OrientFlipV:
		return imaging.FlipV(img)
	case OrientTranspose:
		return imaging.Transpose(img)
	case OrientRotate90CW:
		// imaging rotates counter-clockwise.
		return imaging.Rotate270(img)
	case OrientTransverse:
		return imaging.Transverse(img)
	case OrientRotate90CCW:
		return imaging.Rotate90(img)
	default:
		return imaging.Clone(img)
	}
}

// InverseOrientation returns the code whose transform undoes code.
func InverseOrientation(code int) int {
	switch code {
	case OrientRotate90CW:
		return OrientRotate90CCW
	case OrientRotate90CCW:
		return OrientRotate90CW
	case OrientFlipH, OrientRotate180, OrientFlipV, OrientTranspose, OrientTransverse:
		return code
	default:
		return OrientNormal
	}
}

// SwapsAxes reports whether the transform for code exchanges width and height.
func SwapsAxes(code int) bool {
	return code >= OrientTranspose && code <= OrientRotate90CCW
}

// ReadOrientation returns the EXIF orientation of a still source, or 1 when the
// container carries none. Missing or unreadable metadata is not an error.
func ReadOrientation(path string, kind ContainerKind) int {
	switch kind {
	case JPEG, TIFF, WEBP:
	default:
		return OrientNormal
	}

	f, err := os.Open(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("Cannot open source for EXIF, assuming normal orientation")
		return OrientNormal
	}
	defer f.Close()

	exifData, err := imagemeta.Decode(f)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("No EXIF metadata, assuming normal orientation")
		return OrientNormal
	}

	code := int(exifData.Orientation)
	if code < OrientNormal || code > OrientRotate90CCW {
		return OrientNormal
	}

	log.Debug().Str("path", path).Int("orientation", code).Msg("EXIF orientation read")
	return code
}
