package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/soundscribe/soundscribe-api/internal/audio"
	"github.com/soundscribe/soundscribe-api/internal/export"
	"github.com/soundscribe/soundscribe-api/internal/job"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.TranscribeService
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.TranscribeService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	audioData, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio_base64 is not valid base64", "INVALID_AUDIO")
		return
	}

	input := job.TranscribeInput{
		Audio:    audioData,
		Filename: req.Filename,
		Language: strings.ToLower(req.Language),
		Prompt:   req.Prompt,
		PushToS3: req.PushToS3,
	}

	// Create job first (synchronously); upload validation errors map to 400
	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, audio.ErrUnsupportedFormat):
			writeError(w, http.StatusBadRequest, err.Error(), "UNSUPPORTED_FORMAT")
		case errors.Is(err, audio.ErrFileTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error(), "FILE_TOO_LARGE")
		default:
			h.logger.Error("failed to create job",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		}
		return
	}

	// Start processing in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		go h.service.ProcessExistingJob(context.WithoutCancel(r.Context()), createdJob.ID, input)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.String("filename", req.Filename),
		slog.Int("size_bytes", len(audioData)),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:          createdJob.ID,
		Status:      string(createdJob.Status),
		Fingerprint: createdJob.Fingerprint,
	})
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	foundJob, ok := h.findJob(w, r)
	if !ok {
		return
	}

	resp := JobResponse{
		ID:          foundJob.ID,
		Status:      string(foundJob.Status),
		Progress:    foundJob.Progress,
		Error:       foundJob.Error,
		Filename:    foundJob.Filename,
		Format:      foundJob.Format,
		Language:    foundJob.Language,
		Fingerprint: foundJob.Fingerprint,
	}

	if foundJob.Audio.SampleRate > 0 {
		info := foundJob.Audio
		estimate := foundJob.Estimate
		resp.Audio = &info
		resp.Estimate = &estimate
	}

	for _, c := range foundJob.Chunks {
		resp.Chunks = append(resp.Chunks, ChunkResponse{
			Index:       c.Index,
			Status:      string(c.Status),
			SplitMethod: string(c.Method),
			StartTime:   c.Start,
			EndTime:     c.End,
			Duration:    c.Duration,
			Attempts:    c.Attempts,
			Error:       c.Error,
		})
	}

	if foundJob.Status == job.StatusCompleted {
		resp.Result = foundJob.Result
		resp.TranscriptURL = foundJob.TranscriptURL
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteJob handles DELETE /jobs/{id} requests.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if err := h.service.DeleteJob(r.Context(), jobID); err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to delete job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportTranscript handles GET /jobs/{id}/export/{format} requests.
// The txt format accepts a timestamps=true query parameter to prefix
// each segment with its global time range.
func (h *Handlers) ExportTranscript(w http.ResponseWriter, r *http.Request) {
	foundJob, ok := h.findJob(w, r)
	if !ok {
		return
	}

	format, err := export.ParseFormat(r.PathValue("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "UNKNOWN_FORMAT")
		return
	}

	if foundJob.Status != job.StatusCompleted || foundJob.Result == nil {
		writeError(w, http.StatusConflict, "transcript not available yet", "JOB_NOT_COMPLETED")
		return
	}

	withTimestamps := r.URL.Query().Get("timestamps") == "true"
	now := time.Now().UTC()
	body, err := export.Render(format, *foundJob.Result, withTimestamps, now)
	if err != nil {
		h.logger.Error("failed to render transcript",
			slog.String("job_id", foundJob.ID),
			slog.String("format", string(format)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to render transcript", "EXPORT_FAILED")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.Filename(foundJob.Filename, format, now)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Error("failed to write transcript response",
			slog.String("job_id", foundJob.ID),
			slog.String("error", err.Error()),
		)
	}
}

// findJob resolves the {id} path value to a job, writing the error
// response itself when the job cannot be served.
func (h *Handlers) findJob(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return nil, false
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return nil, false
	}
	return foundJob, true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
