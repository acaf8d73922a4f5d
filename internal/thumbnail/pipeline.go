// Package thumbnail creates a single thumbnail from a single source image.
//
// The pipeline is linear:
//
//	Start → Classified → OrientationNormalized → DimensionsResolved →
//	{StillEncoded | AnimatedTranscoded} → Done
//
// Still images (JPEG, PNG, TIFF, WEBP, single-frame GIF) are resized with a
// Lanczos filter and re-encoded in their own container. Animated GIFs are
// resized frame by frame and handed to a Transcoder that produces an MP4.
//
// Output is staged next to the destination and renamed into place only after
// encoding succeeds, so a failed run never leaves a partial file behind.
package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// VideoExtension replaces the source extension for animated sources.
const VideoExtension = ".mp4"

// Stage names a state of the pipeline, used in logs.
type Stage string

const (
	StageStart                 Stage = "start"
	StageClassified            Stage = "classified"
	StageOrientationNormalized Stage = "orientation_normalized"
	StageDimensionsResolved    Stage = "dimensions_resolved"
	StageStillEncoded          Stage = "still_encoded"
	StageAnimatedTranscoded    Stage = "animated_transcoded"
	StageDone                  Stage = "done"
)

// Request is one validated invocation of the pipeline.
type Request struct {
	Source     string
	OutDir     string
	Constraint Constraint
}

// Pipeline sequences classification, orientation, sizing and encoding.
// It holds no per-invocation state and may be reused.
type Pipeline struct {
	transcoder Transcoder
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTranscoder sets the video encoder used for animated sources.
func WithTranscoder(t Transcoder) Option {
	return func(p *Pipeline) {
		p.transcoder = t
	}
}

// NewPipeline returns a Pipeline that uses ffmpeg from PATH unless overridden.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{transcoder: &FFmpegTranscoder{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ArtifactPath returns where the thumbnail for source is written inside outDir.
func ArtifactPath(source, outDir string, kind ContainerKind) string {
	name := filepath.Base(source)
	if kind.IsAnimated() {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + VideoExtension
	}
	return filepath.Join(outDir, name)
}

// Create runs the pipeline and returns the path of the written thumbnail.
// On error no file is left at the destination.
func (p *Pipeline) Create(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	logger := log.With().Str("source", req.Source).Str("out_dir", req.OutDir).Logger()
	logger.Debug().Str("stage", string(StageStart)).Stringer("constraint", req.Constraint).Msg("Creating thumbnail")

	if err := req.Constraint.Validate(); err != nil {
		return "", err
	}

	src, err := Classify(req.Source)
	if err != nil {
		return "", err
	}
	logger.Debug().Str("stage", string(StageClassified)).Stringer("kind", src.Kind).Msg("Pipeline stage")

	dst := ArtifactPath(req.Source, req.OutDir, src.Kind)
	if same, err := samePath(req.Source, dst); err != nil {
		return "", newError(KindIO, dst, "failed to resolve output path", err)
	} else if same {
		return "", newError(KindSameInputOutput, dst, "cannot write thumbnail to the same path as the original image", nil)
	}

	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		return "", newError(KindIO, req.OutDir, "failed to create output directory", err)
	}

	var dims Dimensions
	if src.Kind.IsAnimated() {
		dims, err = p.createAnimated(ctx, src, req.Constraint, dst)
	} else {
		dims, err = p.createStill(src, req.Constraint, dst)
	}
	if err != nil {
		return "", err
	}

	logger.Info().
		Str("stage", string(StageDone)).
		Str("thumbnail", dst).
		Stringer("kind", src.Kind).
		Int("orig_width", src.Width).
		Int("orig_height", src.Height).
		Int("new_width", dims.Width).
		Int("new_height", dims.Height).
		Dur("duration", time.Since(start)).
		Msg("Thumbnail created")

	return dst, nil
}

func (p *Pipeline) createStill(src *SourceImage, c Constraint, dst string) (Dimensions, error) {
	img, err := decodeStill(src)
	if err != nil {
		return Dimensions{}, err
	}

	oriented := Orient(img, src.Orientation)
	log.Debug().Str("stage", string(StageOrientationNormalized)).Str("source", src.Path).Msg("Pipeline stage")

	b := oriented.Bounds()
	dims, err := Resolve(Dimensions{Width: b.Dx(), Height: b.Dy()}, c, false)
	if err != nil {
		return Dimensions{}, err
	}
	log.Debug().Str("stage", string(StageDimensionsResolved)).Stringer("dimensions", dims).Msg("Pipeline stage")

	var buf bytes.Buffer
	if err := encodeStill(&buf, oriented, dims, src.Kind, src.colorTable()); err != nil {
		var te *Error
		if errors.As(err, &te) && te.Path == "" {
			te.Path = src.Path
		}
		return Dimensions{}, err
	}
	log.Debug().Str("stage", string(StageStillEncoded)).Int("output_size", buf.Len()).Msg("Pipeline stage")

	if err := writeAtomic(dst, func(staging string) error {
		return writeFileSync(staging, buf.Bytes())
	}); err != nil {
		return Dimensions{}, err
	}
	return dims, nil
}

func (p *Pipeline) createAnimated(ctx context.Context, src *SourceImage, c Constraint, dst string) (Dimensions, error) {
	if src.anim == nil {
		return Dimensions{}, newError(KindDecode, src.Path, "animation frames were not decoded", nil)
	}

	frames := DecodeFrames(src.anim)
	// GIF carries no EXIF orientation, so this is normally a no-op.
	if src.Orientation != OrientNormal {
		for i := range frames {
			frames[i].Image = Orient(frames[i].Image, src.Orientation)
		}
	}
	log.Debug().Str("stage", string(StageOrientationNormalized)).Int("frames", len(frames)).Msg("Pipeline stage")

	b := frames[0].Image.Bounds()
	dims, err := Resolve(Dimensions{Width: b.Dx(), Height: b.Dy()}, c, true)
	if err != nil {
		return Dimensions{}, err
	}
	log.Debug().Str("stage", string(StageDimensionsResolved)).Stringer("dimensions", dims).Msg("Pipeline stage")

	resized, err := ResizeFrames(ctx, frames, dims)
	if err != nil {
		return Dimensions{}, newError(KindTranscode, src.Path, "failed to resize frames", err)
	}

	if err := writeAtomic(dst, func(staging string) error {
		return p.transcoder.Transcode(ctx, resized, dims, staging)
	}); err != nil {
		return Dimensions{}, err
	}
	log.Debug().Str("stage", string(StageAnimatedTranscoded)).Int("frames", len(resized)).Msg("Pipeline stage")

	return dims, nil
}

// writeAtomic lets write fill a uniquely named staging file in dst's directory
// and renames it to dst on success. The staging file is removed on any failure.
func writeAtomic(dst string, write func(staging string) error) (err error) {
	staging := filepath.Join(filepath.Dir(dst), fmt.Sprintf(".create-thumbnail-%s.tmp", uuid.NewString()))

	defer func() {
		if err == nil {
			return
		}
		if rmErr := os.Remove(staging); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn().Err(rmErr).Str("path", staging).Msg("Failed to remove staging file")
		}
	}()

	if err = write(staging); err != nil {
		return err
	}

	info, statErr := os.Stat(staging)
	if statErr != nil {
		err = newError(KindIO, staging, "encoder produced no output", statErr)
		return err
	}
	if info.Size() == 0 {
		err = newError(KindIO, staging, "encoder produced an empty file", nil)
		return err
	}

	if renameErr := os.Rename(staging, dst); renameErr != nil {
		err = newError(KindIO, dst, "failed to move thumbnail into place", renameErr)
		return err
	}
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return newError(KindIO, path, "failed to create staging file", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return newError(KindIO, path, "failed to write thumbnail", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return newError(KindIO, path, "failed to flush thumbnail", err)
	}
	if err := f.Close(); err != nil {
		return newError(KindIO, path, "failed to close thumbnail", err)
	}
	return nil
}

// samePath reports whether a and b name the same file location.
func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}
