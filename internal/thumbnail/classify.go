package thumbnail

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"github.com/chai2010/webp"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/tiff"
)

// ContainerKind is the closed set of source formats the pipeline accepts.
type ContainerKind int

const (
	JPEG ContainerKind = iota + 1
	PNG
	TIFF
	WEBP
	StaticGIF
	AnimatedGIF
)

func (k ContainerKind) String() string {
	switch k {
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	case TIFF:
		return "tiff"
	case WEBP:
		return "webp"
	case StaticGIF:
		return "gif"
	case AnimatedGIF:
		return "animated-gif"
	default:
		return fmt.Sprintf("ContainerKind(%d)", int(k))
	}
}

// IsAnimated reports whether the kind is transcoded to video rather than resized as a still.
func (k ContainerKind) IsAnimated() bool {
	return k == AnimatedGIF
}

// mimeKinds maps detected MIME types to container kinds. GIF is refined by frame count.
var mimeKinds = map[string]ContainerKind{
	"image/jpeg": JPEG,
	"image/png":  PNG,
	"image/tiff": TIFF,
	"image/webp": WEBP,
	"image/gif":  StaticGIF,
}

// SourceImage is a classified input file. It is not modified after Classify returns.
type SourceImage struct {
	Path   string
	Kind   ContainerKind
	MIME   string
	Width  int
	Height int
	Frames int

	// Orientation is the EXIF orientation code, 1 when absent.
	Orientation int

	// anim holds the fully decoded GIF so the animated path does not decode twice.
	anim *gif.GIF
}

// Classify inspects the file content at path and returns its container kind,
// intrinsic dimensions, frame count and EXIF orientation.
//
// Detection uses the file signature, never the extension. GIFs are decoded in
// full to count frames: exactly one frame is a static GIF, two or more is an
// animated GIF.
func Classify(path string) (*SourceImage, error) {
	log.Debug().Str("path", path).Msg("Classifying source image")

	f, err := os.Open(path)
	if err != nil {
		return nil, newError(KindIO, path, "failed to open source", err)
	}
	defer f.Close()

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, newError(KindIO, path, "failed to read source", err)
	}

	kind, ok := lookupKind(mime)
	if !ok {
		return nil, newError(KindUnsupportedFormat, path,
			fmt.Sprintf("unsupported content type %q (want jpeg, png, tiff, webp or gif)", mime.String()), nil)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, newError(KindIO, path, "failed to rewind source", err)
	}

	src := &SourceImage{
		Path:        path,
		Kind:        kind,
		MIME:        mime.String(),
		Frames:      1,
		Orientation: OrientNormal,
	}

	r := bufio.NewReader(f)
	if kind == StaticGIF {
		g, err := gif.DecodeAll(r)
		if err != nil {
			return nil, newError(KindDecode, path, "failed to decode gif", err)
		}
		if len(g.Image) == 0 {
			return nil, newError(KindDecode, path, "gif contains no frames", nil)
		}
		src.Frames = len(g.Image)
		if src.Frames > 1 {
			src.Kind = AnimatedGIF
		}
		src.Width, src.Height = g.Config.Width, g.Config.Height
		if src.Width <= 0 || src.Height <= 0 {
			b := g.Image[0].Bounds()
			src.Width, src.Height = b.Max.X, b.Max.Y
		}
		src.anim = g
	} else {
		if kind == WEBP && isAnimatedWEBP(r) {
			return nil, newError(KindUnsupportedFormat, path,
				"animated webp is not supported (only animated gif is converted to video)", nil)
		}
		cfg, err := decodeConfig(r, kind)
		if err != nil {
			return nil, newError(KindDecode, path, fmt.Sprintf("failed to read %s header", kind), err)
		}
		src.Width, src.Height = cfg.Width, cfg.Height
	}

	if src.Width <= 0 || src.Height <= 0 {
		return nil, newError(KindDecode, path,
			fmt.Sprintf("invalid intrinsic dimensions %dx%d", src.Width, src.Height), nil)
	}
	src.Orientation = ReadOrientation(path, src.Kind)

	log.Debug().
		Str("path", path).
		Str("mime_type", src.MIME).
		Stringer("kind", src.Kind).
		Int("width", src.Width).
		Int("height", src.Height).
		Int("frames", src.Frames).
		Int("orientation", src.Orientation).
		Msg("Source image classified")

	return src, nil
}

// lookupKind walks the MIME hierarchy so aliases detected by mimetype still match.
func lookupKind(mime *mimetype.MIME) (ContainerKind, bool) {
	for m := mime; m != nil; m = m.Parent() {
		for name, kind := range mimeKinds {
			if m.Is(name) {
				return kind, true
			}
		}
	}
	return 0, false
}

func decodeConfig(r io.Reader, kind ContainerKind) (image.Config, error) {
	switch kind {
	case JPEG:
		return jpeg.DecodeConfig(r)
	case PNG:
		return png.DecodeConfig(r)
	case TIFF:
		return tiff.DecodeConfig(r)
	case WEBP:
		return webp.DecodeConfig(r)
	default:
		return image.Config{}, fmt.Errorf("no header decoder for %s", kind)
	}
}

// isAnimatedWEBP reports whether the extended (VP8X) header of a WEBP stream
// sets the animation flag. r is not advanced.
func isAnimatedWEBP(r *bufio.Reader) bool {
	// RIFF size WEBP, then the first chunk's FourCC, size and flags byte.
	hdr, err := r.Peek(21)
	if err != nil {
		return false
	}
	return string(hdr[12:16]) == "VP8X" && hdr[20]&0x02 != 0
}

// colorTable returns the colour table of a static GIF's frame, nil for other kinds.
func (s *SourceImage) colorTable() color.Palette {
	if s.Kind != StaticGIF || s.anim == nil || len(s.anim.Image) == 0 {
		return nil
	}
	return s.anim.Image[0].Palette
}

// decodeStill decodes the single frame of a still source.
func decodeStill(src *SourceImage) (image.Image, error) {
	if src.Kind == StaticGIF && src.anim != nil {
		return DecodeFrames(src.anim)[0].Image, nil
	}

	f, err := os.Open(src.Path)
	if err != nil {
		return nil, newError(KindIO, src.Path, "failed to open source", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var img image.Image
	switch src.Kind {
	case JPEG:
		img, err = jpeg.Decode(r)
	case PNG:
		img, err = png.Decode(r)
	case TIFF:
		img, err = tiff.Decode(r)
	case WEBP:
		img, err = webp.Decode(r)
	case StaticGIF:
		img, err = gif.Decode(r)
	default:
		return nil, newError(KindDecode, src.Path, fmt.Sprintf("%s is not a still format", src.Kind), nil)
	}
	if err != nil {
		return nil, newError(KindDecode, src.Path, fmt.Sprintf("failed to decode %s", src.Kind), err)
	}
	return img, nil
}
