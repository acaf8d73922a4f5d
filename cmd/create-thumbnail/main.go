// Package main is the create-thumbnail command.
//
// It parses flags, loads configuration and hands a validated request to the
// thumbnail pipeline, then prints the path of the created thumbnail.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fpang/create-thumbnail/internal/cli"
	"github.com/fpang/create-thumbnail/internal/config"
	"github.com/fpang/create-thumbnail/internal/logging"
	"github.com/fpang/create-thumbnail/internal/thumbnail"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// CLI flags
var (
	outDirFlag string
	configFlag string
)

// rootCmd is the main Cobra command for the create-thumbnail CLI.
var rootCmd = &cobra.Command{
	Use:   "create_thumbnail PATH --out-dir DIR (--width W | --height H)",
	Short: "Create a thumbnail for an image",
	Long: `create_thumbnail resizes a single image to fit a maximum width, height, or both,
keeping its aspect ratio, orientation and file format.

Animated GIFs are converted to an MP4 video, which is much smaller than a
resized GIF. This requires ffmpeg on the PATH.

Examples:
  create_thumbnail photo.jpg --out-dir thumbs --width 150
  create_thumbnail scan.tiff --out-dir thumbs --height 400
  create_thumbnail cat.gif --out-dir thumbs --width 320 --height 240`,
	Args:          cobra.ExactArgs(1),
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMain,
}

func init() {
	rootCmd.Flags().StringVar(&outDirFlag, "out-dir", "", "Directory to save the thumbnail in (created if missing)")
	rootCmd.Flags().StringVar(&configFlag, "config", "", "Optional YAML config file")
	cli.AddDimensionFlags(rootCmd)
	_ = rootCmd.MarkFlagRequired("out-dir")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("create_thumbnail failed")
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) error {
	initStart := time.Now()

	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	logging.Init(cfg.Log.Level)

	constraint, err := cli.ConstraintFromFlags(cmd)
	if err != nil {
		return err
	}

	_, ffmpegErr := thumbnail.CheckFFmpegAvailable(cfg.FFmpeg.Path)
	logging.NewStartupLogger("create_thumbnail").
		Version(version).
		Feature("ffmpeg", ffmpegErr == nil).
		Config("ffmpegPath", cfg.FFmpeg.Path).
		Config("ffmpegTimeout", cfg.FFmpeg.Timeout.String()).
		Config("logLevel", cfg.Log.Level).
		InitDuration(time.Since(initStart)).
		Log()

	// Interrupts cancel the context, which kills a running ffmpeg child.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline := thumbnail.NewPipeline(thumbnail.WithTranscoder(&thumbnail.FFmpegTranscoder{
		Path:    cfg.FFmpeg.Path,
		Timeout: cfg.FFmpeg.Timeout,
	}))

	path, err := pipeline.Create(ctx, thumbnail.Request{
		Source:     args[0],
		OutDir:     outDirFlag,
		Constraint: constraint,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
