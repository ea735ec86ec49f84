// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// ErrAPIKeyRequired is returned when OPENAI_API_KEY is not set.
var ErrAPIKeyRequired = errors.New("config: OPENAI_API_KEY is required")

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// OpenAI settings
	OpenAIAPIKey  string `env:"OPENAI_API_KEY, required" json:"-"` // Masked in JSON
	WhisperModel  string `env:"WHISPER_MODEL, default=whisper-1" json:"whisper_model"`
	MaxRetries    int    `env:"MAX_RETRIES, default=3" json:"max_retries"`
	RetryDelaySec int    `env:"RETRY_DELAY_SEC, default=1" json:"retry_delay_sec"`

	// Upload limits
	MaxFileSizeMB int `env:"MAX_FILE_SIZE_MB, default=500" json:"max_file_size_mb"`

	// Chunking settings
	MaxChunkSizeMB int     `env:"MAX_CHUNK_SIZE_MB, default=24" json:"max_chunk_size_mb"`
	OverlapSeconds float64 `env:"OVERLAP_SECONDS, default=3" json:"overlap_seconds"`
	ForceTimeBased bool    `env:"FORCE_TIME_BASED, default=false" json:"force_time_based"`

	// Storage settings
	TempDir    string `env:"TEMP_DIR" json:"temp_dir,omitempty"`
	FFmpegPath string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// MaxFileBytes returns the upload size limit in bytes.
func (c *Config) MaxFileBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// MaxChunkBytes returns the per-chunk raw size limit in bytes.
func (c *Config) MaxChunkBytes() int {
	return c.MaxChunkSizeMB * 1024 * 1024
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "OPENAI_API_KEY") {
			return nil, ErrAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return ErrAPIKeyRequired
	}
	if c.MaxChunkSizeMB <= 0 {
		return fmt.Errorf("config: MAX_CHUNK_SIZE_MB must be positive, got %d", c.MaxChunkSizeMB)
	}
	if c.OverlapSeconds < 0 {
		return fmt.Errorf("config: OVERLAP_SECONDS must not be negative, got %g", c.OverlapSeconds)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, WhisperModel: %s, MaxFileSizeMB: %d, MaxChunkSizeMB: %d, OverlapSeconds: %g, ForceTimeBased: %t, TempDir: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.WhisperModel,
		c.MaxFileSizeMB,
		c.MaxChunkSizeMB,
		c.OverlapSeconds,
		c.ForceTimeBased,
		c.TempDir,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
