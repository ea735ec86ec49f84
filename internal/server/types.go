// Package server provides the HTTP server for the SoundScribe API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"github.com/soundscribe/soundscribe-api/internal/audio"
	"github.com/soundscribe/soundscribe-api/internal/transcript"
	"github.com/soundscribe/soundscribe-api/internal/whisper"
)

// CreateJobRequest is the HTTP request body for creating a new transcription job.
type CreateJobRequest struct {
	// AudioBase64 is the base64-encoded audio file content.
	AudioBase64 string `json:"audio_base64" validate:"required,base64"`
	// Filename is the original file name, used for format detection.
	Filename string `json:"filename" validate:"required"`
	// Language is an optional ISO-639-1 language hint (e.g. "en").
	Language string `json:"language,omitempty" validate:"omitempty,len=2,alpha"`
	// Prompt is an optional context prompt for the transcription model.
	Prompt string `json:"prompt,omitempty" validate:"omitempty,max=1024"`
	// PushToS3 indicates whether to upload the transcript JSON to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
	// Fingerprint is the BLAKE3 hash of the uploaded bytes.
	Fingerprint string `json:"fingerprint"`
}

// ChunkResponse describes the progress of a single audio chunk.
type ChunkResponse struct {
	Index       int     `json:"index"`
	Status      string  `json:"status"`
	SplitMethod string  `json:"split_method"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Duration    float64 `json:"duration"`
	Attempts    int     `json:"attempts,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// Filename is the original name of the uploaded file.
	Filename string `json:"filename"`
	// Format is the detected audio container format.
	Format string `json:"format,omitempty"`
	// Language is the language hint the job was created with.
	Language string `json:"language,omitempty"`
	// Fingerprint is the BLAKE3 hash of the uploaded bytes.
	Fingerprint string `json:"fingerprint,omitempty"`
	// Audio describes the decoded input, available once decoding succeeded.
	Audio *audio.Info `json:"audio,omitempty"`
	// Estimate is the projected API cost, available once decoding succeeded.
	Estimate *whisper.CostEstimate `json:"cost_estimate,omitempty"`
	// Chunks reports per-chunk transcription progress.
	Chunks []ChunkResponse `json:"chunks,omitempty"`
	// Result is the combined transcript (if completed).
	Result *transcript.Combined `json:"result,omitempty"`
	// TranscriptURL is the S3 URL of the transcript JSON (if push_to_s3=true and completed).
	TranscriptURL string `json:"transcript_url,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
