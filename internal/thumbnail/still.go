package thumbnail

import (
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// Fixed encoder settings. Quality is not user-configurable.
const (
	jpegQuality = 90
	webpQuality = 80
	gifColors   = 256
)

// ResizeFilter is the resampling filter shared by the still and animated paths.
var ResizeFilter = imaging.Lanczos

// EncodeStill resizes img to dims and writes it to w in the given container.
// Alpha is kept for PNG, TIFF and WEBP and flattened by JPEG. GIF output keeps
// a transparent index when the image has transparency.
func EncodeStill(w io.Writer, img image.Image, dims Dimensions, kind ContainerKind) error {
	return encodeStill(w, img, dims, kind, nil)
}

// encodeStill is EncodeStill with an optional GIF colour table. A non-nil pal
// is reused for GIF output so a static GIF keeps its own colours.
func encodeStill(w io.Writer, img image.Image, dims Dimensions, kind ContainerKind, pal color.Palette) error {
	if dims.Width <= 0 || dims.Height <= 0 {
		return newError(KindEncode, "", fmt.Sprintf("cannot encode at %s", dims), nil)
	}

	resized := imaging.Resize(img, dims.Width, dims.Height, ResizeFilter)

	var err error
	switch kind {
	case JPEG:
		err = jpeg.Encode(w, resized, &jpeg.Options{Quality: jpegQuality})
	case PNG:
		err = png.Encode(w, resized)
	case TIFF:
		err = tiff.Encode(w, resized, &tiff.Options{Compression: tiff.Deflate})
	case WEBP:
		err = webp.Encode(w, resized, &webp.Options{Quality: webpQuality})
	case StaticGIF:
		err = gif.Encode(w, resized, &gif.Options{
			NumColors: gifColors,
			Quantizer: paletteQuantizer{palette: gifPalette(resized, pal)},
			Drawer:    draw.FloydSteinberg,
		})
	default:
		return newError(KindEncode, "", fmt.Sprintf("%s cannot be encoded as a still", kind), nil)
	}
	if err != nil {
		return newError(KindEncode, "", fmt.Sprintf("failed to encode %s thumbnail", kind), err)
	}

	log.Debug().
		Stringer("kind", kind).
		Int("new_width", dims.Width).
		Int("new_height", dims.Height).
		Msg("Still thumbnail encoded")

	return nil
}

// paletteQuantizer hands the GIF encoder a fixed colour table.
type paletteQuantizer struct {
	palette color.Palette
}

func (q paletteQuantizer) Quantize(p color.Palette, _ image.Image) color.Palette {
	for _, c := range q.palette {
		if len(p) == cap(p) {
			break
		}
		p = append(p, c)
	}
	return p
}

// gifPalette returns the colour table for a GIF thumbnail: the source table
// when there is one, otherwise Plan9 with its last entry given up for a
// transparent colour if img is not opaque.
func gifPalette(img *image.NRGBA, src color.Palette) color.Palette {
	if len(src) > 0 {
		return src
	}
	if img.Opaque() {
		return palette.Plan9
	}
	pal := make(color.Palette, 0, gifColors)
	pal = append(pal, palette.Plan9[:gifColors-1]...)
	return append(pal, color.Transparent)
}
