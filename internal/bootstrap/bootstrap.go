// Package bootstrap provides dependency initialization for the SoundScribe API.
package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/soundscribe/soundscribe-api/internal/audio"
	"github.com/soundscribe/soundscribe-api/internal/config"
	"github.com/soundscribe/soundscribe-api/internal/job"
	"github.com/soundscribe/soundscribe-api/internal/storage"
	"github.com/soundscribe/soundscribe-api/internal/whisper"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	TranscribeService *job.TranscribeService
	Whisper           whisper.Client
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize transcription client
	client, err := whisper.NewClient(cfg.OpenAIAPIKey,
		whisper.WithModel(cfg.WhisperModel),
		whisper.WithMaxRetries(cfg.MaxRetries),
		whisper.WithBaseBackoff(time.Duration(cfg.RetryDelaySec)*time.Second),
		whisper.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create whisper client: %w", err)
	}

	// Initialize audio codec and chunk planner
	codec := audio.NewFFmpegCodec(cfg.FFmpegPath)
	planner := audio.NewPlanner(logger)

	// Initialize job repository
	repo := job.NewMemoryRepository()

	// Configure chunk planning
	planOpts := audio.PlanOpts{
		MaxChunkBytes:  cfg.MaxChunkBytes(),
		OverlapSeconds: cfg.OverlapSeconds,
		ForceTimeBased: cfg.ForceTimeBased,
	}

	// Initialize TranscribeService
	svc := job.NewTranscribeService(
		repo,
		codec,
		planner,
		client,
		store,
		logger,
		job.WithPlanOpts(planOpts),
		job.WithMaxFileBytes(cfg.MaxFileBytes()),
	)

	return &Dependencies{
		TranscribeService: svc,
		Whisper:           client,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
