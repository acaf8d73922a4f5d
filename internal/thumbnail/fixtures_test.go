package thumbnail

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/chai2010/webp"
	"golang.org/x/image/tiff"
)

// gradient returns an image whose every pixel is distinct.
func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 13), B: uint8(x + y), A: 255})
		}
	}
	return img
}

// writeStill encodes a w×h gradient at dir/name in the given container.
func writeStill(t *testing.T, dir, name string, kind ContainerKind, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	img := gradient(w, h)
	switch kind {
	case JPEG:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	case PNG:
		err = png.Encode(f, img)
	case TIFF:
		err = tiff.Encode(f, img, nil)
	case WEBP:
		err = webp.Encode(f, img, &webp.Options{Lossless: true})
	case StaticGIF:
		err = gif.Encode(f, img, nil)
	default:
		t.Fatalf("writeStill: unsupported kind %s", kind)
	}
	if err != nil {
		t.Fatalf("encode fixture %s: %v", kind, err)
	}
	return path
}

// writeOrientedJPEG writes a w×h gradient JPEG carrying an EXIF APP1 segment
// whose IFD0 holds a single Orientation tag.
func writeOrientedJPEG(t *testing.T, dir, name string, w, h, orientation int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	encoded := buf.Bytes()

	// Big-endian TIFF header, IFD0 at offset 8 with one SHORT entry, no next IFD.
	tiffData := []byte{
		'M', 'M', 0x00, 0x2A, 0x00, 0x00, 0x00, 0x08,
		0x00, 0x01,
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, byte(orientation), 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	payload := append([]byte("Exif\x00\x00"), tiffData...)
	segLen := len(payload) + 2

	var out bytes.Buffer
	out.Write(encoded[:2]) // SOI
	out.Write([]byte{0xFF, 0xE1, byte(segLen >> 8), byte(segLen)})
	out.Write(payload)
	out.Write(encoded[2:])

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// frameColors are used to tell animation frames apart after processing.
var frameColors = []color.RGBA{
	{R: 255, A: 255},
	{G: 255, A: 255},
	{B: 255, A: 255},
	{R: 255, G: 255, A: 255},
}

// writeAnimatedGIF writes a full-canvas GIF whose frame i is solid frameColors[i%4].
func writeAnimatedGIF(t *testing.T, dir, name string, w, h int, delays []int) string {
	t.Helper()
	pal := color.Palette{color.Transparent}
	for _, c := range frameColors {
		pal = append(pal, c)
	}

	g := &gif.GIF{Config: image.Config{Width: w, Height: h, ColorModel: pal}}
	for i, d := range delays {
		frame := image.NewPaletted(image.Rect(0, 0, w, h), pal)
		idx := uint8(1 + i%len(frameColors))
		for j := range frame.Pix {
			frame.Pix[j] = idx
		}
		g.Image = append(g.Image, frame)
		g.Delay = append(g.Delay, d)
		g.Disposal = append(g.Disposal, gif.DisposalNone)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()
	if err := gif.EncodeAll(f, g); err != nil {
		t.Fatalf("encode gif fixture: %v", err)
	}
	return path
}

// writeMP3 writes an ID3-tagged MPEG audio stub.
func writeMP3(t *testing.T, dir, name string) string {
	t.Helper()
	data := []byte("ID3\x03\x00\x00\x00\x00\x00\x00")
	data = append(data, 0xFF, 0xFB, 0x90, 0x64)
	data = append(data, make([]byte, 413)...)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write mp3 fixture: %v", err)
	}
	return path
}

// dimsOf decodes the header of path as kind.
func dimsOf(t *testing.T, path string, kind ContainerKind) Dimensions {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var cfg image.Config
	if kind == StaticGIF {
		cfg, err = gif.DecodeConfig(bufio.NewReader(f))
	} else {
		cfg, err = decodeConfig(bufio.NewReader(f), kind)
	}
	if err != nil {
		t.Fatalf("decode %s header of %s: %v", kind, path, err)
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}
}

// listDir returns the names in dir, or nil if it does not exist.
func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// fakeTranscoder records what it was asked to encode and writes placeholder bytes.
type fakeTranscoder struct {
	mu     sync.Mutex
	calls  int
	frames []Frame
	dims   Dimensions
	dst    string
	err    error
}

func (f *fakeTranscoder) Transcode(_ context.Context, frames []Frame, dims Dimensions, dst string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.frames = frames
	f.dims = dims
	f.dst = dst

	// Write something first so failure cleanup is exercised.
	if err := os.WriteFile(dst, []byte("fake mp4 payload"), 0o644); err != nil {
		return err
	}
	return f.err
}
