package thumbnail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Transcoder turns an ordered, already-resized frame sequence into a video at dst.
// Implementations must keep every frame, in order, with its delay.
type Transcoder interface {
	Transcode(ctx context.Context, frames []Frame, dims Dimensions, dst string) error
}

// DefaultFFmpegBinary is looked up in PATH when no explicit path is configured.
const DefaultFFmpegBinary = "ffmpeg"

// concatListName is the ffconcat playlist written next to the frames.
const concatListName = "frames.ffconcat"

// FFmpegTranscoder encodes frames to H.264 MP4 with an external ffmpeg process.
type FFmpegTranscoder struct {
	// Path is the ffmpeg binary, resolved via PATH when it has no separator. Empty means "ffmpeg".
	Path string
	// Timeout bounds a single ffmpeg run. Zero means no limit beyond ctx.
	Timeout time.Duration
}

var _ Transcoder = (*FFmpegTranscoder)(nil)

// CheckFFmpegAvailable returns the resolved ffmpeg path, or an EncoderUnavailable error.
func CheckFFmpegAvailable(binary string) (string, error) {
	if binary == "" {
		binary = DefaultFFmpegBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", newError(KindEncoderUnavailable, binary,
			"ffmpeg not found: animated GIF thumbnails require ffmpeg. Install FFmpeg with: brew install ffmpeg (macOS) or apt install ffmpeg (Linux)", err)
	}
	log.Debug().Str("path", path).Msg("ffmpeg found")
	return path, nil
}

// Transcode writes frames to a temporary directory as PNG, describes their
// timing in an ffconcat playlist and runs ffmpeg to produce an MP4 at dst.
// The child process is killed if ctx is cancelled or the timeout elapses.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, frames []Frame, dims Dimensions, dst string) error {
	if len(frames) == 0 {
		return newError(KindTranscode, dst, "no frames to encode", nil)
	}

	ffmpegPath, err := CheckFFmpegAvailable(t.Path)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "create-thumbnail-frames-*")
	if err != nil {
		return newError(KindIO, "", "failed to create frame directory", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn().Err(err).Str("path", workDir).Msg("Failed to remove frame directory")
		}
	}()

	listPath, err := writeFrameSequence(workDir, frames)
	if err != nil {
		return err
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	args := buildFFmpegArgs(listPath, dst, dims, len(frames))
	log.Debug().
		Strs("args", args).
		Int("frames", len(frames)).
		Msg("Running ffmpeg transcode")

	start := time.Now()
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(start)
	if err != nil {
		terr := newError(KindTranscode, dst, "ffmpeg transcode failed", err)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			terr.ExitCode = exitErr.ExitCode()
			terr.Message = fmt.Sprintf("ffmpeg exited with status %d: %s",
				terr.ExitCode, strings.TrimSpace(string(output)))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			terr.Err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		log.Warn().
			Err(err).
			Str("ffmpeg_output", string(output)).
			Dur("duration", elapsed).
			Msg("ffmpeg transcode failed")
		return terr
	}

	log.Debug().
		Str("output_path", dst).
		Dur("transcode_time", elapsed).
		Msg("ffmpeg transcode complete")

	return nil
}

// writeFrameSequence writes each frame as PNG plus an ffconcat playlist and returns its path.
func writeFrameSequence(dir string, frames []Frame) (string, error) {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	names := make([]string, len(frames))

	for i, f := range frames {
		names[i] = fmt.Sprintf("frame%06d.png", i+1)
		path := filepath.Join(dir, names[i])

		out, err := os.Create(path)
		if err != nil {
			return "", newError(KindIO, path, "failed to create frame file", err)
		}
		w := bufio.NewWriter(out)
		if err := enc.Encode(w, f.Image); err != nil {
			out.Close()
			return "", newError(KindTranscode, path, "failed to write frame", err)
		}
		if err := w.Flush(); err != nil {
			out.Close()
			return "", newError(KindIO, path, "failed to write frame", err)
		}
		if err := out.Close(); err != nil {
			return "", newError(KindIO, path, "failed to close frame file", err)
		}
	}

	listPath := filepath.Join(dir, concatListName)
	if err := os.WriteFile(listPath, []byte(buildConcatList(names, frames)), 0o644); err != nil {
		return "", newError(KindIO, listPath, "failed to write frame list", err)
	}
	return listPath, nil
}

// buildConcatList renders an ffconcat playlist. The concat demuxer ignores the
// duration of the final entry, so the last frame is listed a second time.
func buildConcatList(names []string, frames []Frame) string {
	var sb strings.Builder
	sb.WriteString("ffconcat version 1.0\n")
	for i, name := range names {
		sb.WriteString(fmt.Sprintf("file '%s'\n", name))
		sb.WriteString(fmt.Sprintf("duration %.3f\n", frames[i].Delay.Seconds()))
	}
	if len(names) > 0 {
		sb.WriteString(fmt.Sprintf("file '%s'\n", names[len(names)-1]))
	}
	return sb.String()
}

// buildFFmpegArgs constructs the ffmpeg command line for an H.264 MP4 that
// plays back the playlist with variable frame timing. frameCount caps the
// output so the repeated final playlist entry is not emitted as a frame.
func buildFFmpegArgs(listPath, outputPath string, dims Dimensions, frameCount int) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}

	args = append(args, "-f", "concat", "-safe", "0", "-i", listPath)

	// Frames are already resized; the scale filter pins the exact output size.
	args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", dims.Width, dims.Height))
	args = append(args, "-pix_fmt", "yuv420p")
	args = append(args, "-c:v", "libx264")
	args = append(args, "-movflags", "+faststart")
	args = append(args, "-vsync", "vfr")
	args = append(args, "-frames:v", strconv.Itoa(frameCount))
	args = append(args, "-an")

	// The staging file has no .mp4 extension, so name the muxer explicitly.
	args = append(args, "-f", "mp4", "-y", outputPath)

	return args
}
