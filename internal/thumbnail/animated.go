package thumbnail

import (
	"context"
	"image"
	"image/gif"
	"runtime"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// defaultFrameDelay is used for GIF frames that declare a zero delay.
// Browsers and ffmpeg's GIF demuxer play these at 100ms.
const defaultFrameDelay = 100 * time.Millisecond

// Frame is one fully composited frame of an animation and how long it is shown.
type Frame struct {
	Image image.Image
	Delay time.Duration
}

// DecodeFrames composites every frame of g onto the logical screen, honouring
// each frame's disposal method, and returns them in decode order. Frames are
// never dropped, reordered or merged, even when identical.
func DecodeFrames(g *gif.GIF) []Frame {
	w, h := g.Config.Width, g.Config.Height
	if w <= 0 || h <= 0 {
		var union image.Rectangle
		for _, p := range g.Image {
			union = union.Union(p.Bounds())
		}
		w, h = union.Max.X, union.Max.Y
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))
	frames := make([]Frame, 0, len(g.Image))

	for i, p := range g.Image {
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}

		var previous *image.NRGBA
		if disposal == gif.DisposalPrevious {
			previous = imaging.Clone(canvas)
		}

		draw.Draw(canvas, p.Bounds(), p, p.Bounds().Min, draw.Over)
		frames = append(frames, Frame{
			Image: imaging.Clone(canvas),
			Delay: frameDelay(g, i),
		})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, p.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}

	return frames
}

func frameDelay(g *gif.GIF, i int) time.Duration {
	if i >= len(g.Delay) || g.Delay[i] <= 0 {
		return defaultFrameDelay
	}
	// GIF delays are in hundredths of a second.
	return time.Duration(g.Delay[i]) * 10 * time.Millisecond
}

// ResizeFrames resizes every frame to exactly dims with ResizeFilter.
// Frames are processed in parallel; the result keeps input order and delays.
func ResizeFrames(ctx context.Context, frames []Frame, dims Dimensions) ([]Frame, error) {
	out := make([]Frame, len(frames))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, f := range frames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = Frame{
				Image: imaging.Resize(f.Image, dims.Width, dims.Height, ResizeFilter),
				Delay: f.Delay,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug().
		Int("frames", len(out)).
		Stringer("dimensions", dims).
		Msg("Animation frames resized")

	return out, nil
}
