// Package config loads settings for create-thumbnail.
//
// Precedence, lowest to highest: built-in defaults, the optional YAML file,
// variables from a .env file in the working directory, the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable overrides.
const (
	EnvLogLevel      = "THUMBNAIL_LOG_LEVEL"
	EnvFFmpegPath    = "THUMBNAIL_FFMPEG_PATH"
	EnvFFmpegTimeout = "THUMBNAIL_FFMPEG_TIMEOUT"
)

// Config represents the application configuration
type Config struct {
	Log    LogConfig    `yaml:"log"`
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type FFmpegConfig struct {
	// Path is the ffmpeg binary name or absolute path.
	Path string `yaml:"path"`
	// Timeout bounds one transcode run; 0 disables it.
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:    LogConfig{Level: "info"},
		FFmpeg: FFmpegConfig{Path: "ffmpeg"},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// A missing .env is normal; godotenv never overrides variables already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvFFmpegPath); v != "" {
		c.FFmpeg.Path = v
	}
	if v := os.Getenv(EnvFFmpegTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFFmpegTimeout, err)
		}
		c.FFmpeg.Timeout = d
	}
	return nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.FFmpeg.Path == "" {
		return fmt.Errorf("ffmpeg.path is required")
	}
	if c.FFmpeg.Timeout < 0 {
		return fmt.Errorf("ffmpeg.timeout must not be negative")
	}
	return nil
}
