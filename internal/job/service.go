package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/soundscribe/soundscribe-api/internal/audio"
	"github.com/soundscribe/soundscribe-api/internal/export"
	"github.com/soundscribe/soundscribe-api/internal/storage"
	"github.com/soundscribe/soundscribe-api/internal/transcript"
	"github.com/soundscribe/soundscribe-api/internal/whisper"
)

// TranscribeInput contains the input parameters for a transcription job.
type TranscribeInput struct {
	// Audio is the raw uploaded file content.
	Audio []byte
	// Filename is the original name of the uploaded file.
	Filename string
	// Language is an optional ISO-639-1 language hint.
	Language string
	// Prompt is an optional context prompt for the model.
	Prompt string
	// PushToS3 indicates whether to upload the transcript JSON to S3.
	PushToS3 bool
}

// TranscribeService orchestrates the transcription workflow.
// It coordinates decoding, chunk planning, sequential API calls and
// transcript stitching, persisting job state along the way.
type TranscribeService struct {
	repo     Repository
	codec    audio.Codec
	planner  *audio.Planner
	client   whisper.Client
	store    storage.Storage
	logger   *slog.Logger
	planOpts audio.PlanOpts
	maxBytes int64
}

// ServiceOption configures a TranscribeService.
type ServiceOption func(*TranscribeService)

// WithPlanOpts overrides the default chunk planning options.
func WithPlanOpts(opts audio.PlanOpts) ServiceOption {
	return func(s *TranscribeService) { s.planOpts = opts }
}

// WithMaxFileBytes sets the maximum accepted upload size.
func WithMaxFileBytes(n int64) ServiceOption {
	return func(s *TranscribeService) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// NewTranscribeService creates a new TranscribeService.
func NewTranscribeService(
	repo Repository,
	codec audio.Codec,
	planner *audio.Planner,
	client whisper.Client,
	store storage.Storage,
	logger *slog.Logger,
	opts ...ServiceOption,
) *TranscribeService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &TranscribeService{
		repo:     repo,
		codec:    codec,
		planner:  planner,
		client:   client,
		store:    store,
		logger:   logger,
		planOpts: audio.DefaultPlanOpts(),
		maxBytes: 500 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob validates the upload and persists a new job in IN_QUEUE status.
// Validation errors from the audio package are returned unwrapped so the
// transport layer can map them to client errors.
func (s *TranscribeService) CreateJob(ctx context.Context, input TranscribeInput) (*Job, error) {
	format, err := audio.ValidateInput(input.Filename, int64(len(input.Audio)), s.maxBytes)
	if err != nil {
		return nil, err
	}

	job := New()
	job.Filename = input.Filename
	job.Format = format
	job.Language = input.Language
	job.Prompt = input.Prompt
	job.PushToS3 = input.PushToS3
	job.Fingerprint = storage.FingerprintBytes(input.Audio)

	// Repeat uploads of the same bytes get a fresh job; flag the
	// duplicate so operators can spot wasted API spend.
	if prior, err := s.repo.FindByFingerprint(ctx, job.Fingerprint); err == nil {
		s.logger.Warn("duplicate audio upload",
			slog.String("job_id", job.ID),
			slog.String("prior_job_id", prior.ID),
			slog.String("fingerprint", job.Fingerprint),
		)
	}

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("filename", input.Filename),
		slog.String("format", format),
		slog.Int("size_bytes", len(input.Audio)),
		slog.Bool("push_to_s3", input.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *TranscribeService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all jobs.
func (s *TranscribeService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// DeleteJob removes a job from the repository.
func (s *TranscribeService) DeleteJob(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// ProcessExistingJob runs the transcription workflow for a previously
// created job. It is intended to run in a background goroutine after
// CreateJob returns; all failures are recorded on the job.
func (s *TranscribeService) ProcessExistingJob(ctx context.Context, jobID string, input TranscribeInput) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		s.logger.Error("cannot process unknown job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := job.Start(); err != nil {
		s.logger.Error("job not startable",
			slog.String("job_id", jobID),
			slog.String("status", string(job.GetStatus())),
		)
		return
	}
	s.save(ctx, job)

	if err := s.process(ctx, job, input); err != nil {
		s.logger.Error("job failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		if failErr := job.Fail(err.Error()); failErr != nil {
			s.logger.Error("failed to mark job as failed",
				slog.String("job_id", job.ID),
				slog.String("error", failErr.Error()),
			)
		}
	}
	s.save(ctx, job)
}

// process runs the full pipeline against a RUNNING job. On success the
// job is left in COMPLETED state with its result set; any returned error
// is recorded by the caller.
func (s *TranscribeService) process(ctx context.Context, job *Job, input TranscribeInput) error {
	stream, err := s.codec.Decode(ctx, input.Audio, job.Format)
	if err != nil {
		return fmt.Errorf("decoding audio: %w", err)
	}
	if err := audio.ValidateStream(stream); err != nil {
		return err
	}

	info := audio.DescribeStream(stream)
	job.SetAudioInfo(info, whisper.EstimateCost(info.DurationSeconds))
	s.save(ctx, job)

	s.logger.Info("audio decoded",
		slog.String("job_id", job.ID),
		slog.Float64("duration_seconds", info.DurationSeconds),
		slog.Float64("raw_size_mb", info.RawSizeMB),
	)

	chunks := s.planner.Plan(ctx, stream, s.planOpts)
	job.SetChunks(pendingChunks(chunks))
	s.save(ctx, job)

	results := make([]transcript.ChunkResult, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("transcription interrupted: %w", err)
		}
		result := s.transcribeChunk(ctx, job, chunk, input)
		results = append(results, result)

		job.UpdateProgress((i + 1) * 100 / len(chunks))
		s.save(ctx, job)
	}

	combined := transcript.Combine(results)
	if !combined.Success {
		return errors.New(failureCause(results))
	}

	transcriptURL := ""
	if job.PushToS3 {
		url, err := s.uploadTranscript(ctx, job, combined)
		if err != nil {
			if errors.Is(err, storage.ErrUploadNotConfigured) {
				s.logger.Warn("transcript upload skipped, S3 not configured",
					slog.String("job_id", job.ID),
				)
			} else {
				return fmt.Errorf("uploading transcript: %w", err)
			}
		}
		transcriptURL = url
	}

	job.SetResult(&combined, transcriptURL)
	if err := job.Complete(); err != nil {
		return err
	}

	s.logger.Info("job completed",
		slog.String("job_id", job.ID),
		slog.Int("chunk_count", combined.ChunkCount),
		slog.Int("failed_chunks", combined.FailedChunks),
		slog.String("language", combined.Language),
	)
	return nil
}

// transcribeChunk encodes one chunk, round-trips it through temp storage
// and sends it to the transcription API. The temp file is removed on every
// path; failures are recorded in the returned result rather than aborting
// the job.
func (s *TranscribeService) transcribeChunk(ctx context.Context, job *Job, chunk audio.Chunk, input TranscribeInput) transcript.ChunkResult {
	state := Chunk{
		Index:     chunk.Meta.Index,
		Status:    ChunkStatusProcessing,
		Method:    chunk.Meta.Method,
		Start:     chunk.Meta.Start,
		End:       chunk.Meta.End,
		Duration:  chunk.Meta.Duration,
		StartedAt: time.Now(),
	}
	job.UpdateChunk(chunk.Meta.Index, state)

	result := transcript.ChunkResult{Meta: chunk.Meta}

	fail := func(err error) transcript.ChunkResult {
		s.logger.Error("chunk transcription failed",
			slog.String("job_id", job.ID),
			slog.Int("chunk_index", chunk.Meta.Index),
			slog.String("error", err.Error()),
		)
		result.Error = err.Error()
		state.Status = ChunkStatusFailed
		state.Error = err.Error()
		state.Attempts = result.Attempts
		state.CompletedAt = time.Now()
		job.UpdateChunk(chunk.Meta.Index, state)
		return result
	}

	encoded, err := s.codec.EncodeMP3(ctx, chunk.Stream)
	if err != nil {
		return fail(fmt.Errorf("encoding chunk: %w", err))
	}

	name := chunkTempName(job.Fingerprint, chunk.Meta.Index)
	path, err := s.store.SaveTemp(ctx, name, bytes.NewReader(encoded))
	if err != nil {
		return fail(fmt.Errorf("staging chunk: %w", err))
	}
	defer func() {
		if cleanErr := s.store.CleanupTemp(ctx, []string{path}); cleanErr != nil {
			s.logger.Warn("temp cleanup failed",
				slog.String("path", path),
				slog.String("error", cleanErr.Error()),
			)
		}
	}()

	staged, err := s.store.LoadTemp(ctx, path)
	if err != nil {
		return fail(fmt.Errorf("reading staged chunk: %w", err))
	}
	payload, err := io.ReadAll(staged)
	staged.Close()
	if err != nil {
		return fail(fmt.Errorf("reading staged chunk: %w", err))
	}

	s.logger.Info("transcribing chunk",
		slog.String("job_id", job.ID),
		slog.Int("chunk_index", chunk.Meta.Index),
		slog.String("split_method", string(chunk.Meta.Method)),
		slog.Float64("duration", chunk.Meta.Duration),
		slog.Int("payload_bytes", len(payload)),
	)

	res, err := s.client.Transcribe(ctx, whisper.Request{
		Audio:    payload,
		Filename: name,
		Language: input.Language,
		Prompt:   input.Prompt,
	})
	result.Attempts = res.Attempts
	if err != nil {
		return fail(err)
	}

	result.Success = true
	result.Text = res.Text
	result.Language = res.Language
	result.Duration = res.Duration
	result.Segments = res.Segments
	result.Words = res.Words

	state.Status = ChunkStatusCompleted
	state.Attempts = res.Attempts
	state.CompletedAt = time.Now()
	job.UpdateChunk(chunk.Meta.Index, state)
	return result
}

// uploadTranscript renders the combined transcript as JSON and pushes it
// to the configured object store.
func (s *TranscribeService) uploadTranscript(ctx context.Context, job *Job, combined transcript.Combined) (string, error) {
	now := time.Now().UTC()
	doc, err := export.JSON(combined, now)
	if err != nil {
		return "", err
	}
	key := export.Filename(job.Filename, export.FormatJSON, now)
	return s.store.Upload(ctx, key, bytes.NewReader(doc))
}

// save persists the current job state, logging rather than propagating
// repository errors so a flaky store cannot abort a running pipeline.
func (s *TranscribeService) save(ctx context.Context, job *Job) {
	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job state",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

// chunkTempName builds the staging filename for a chunk, content-
// addressed by the upload fingerprint so concurrent jobs over the same
// temp directory stay distinguishable.
func chunkTempName(fingerprint string, index int) string {
	if len(fingerprint) > 12 {
		fingerprint = fingerprint[:12]
	}
	return fmt.Sprintf("%s_chunk_%03d.mp3", fingerprint, index)
}

// pendingChunks maps planned audio chunks to their initial job states.
func pendingChunks(chunks []audio.Chunk) []Chunk {
	states := make([]Chunk, len(chunks))
	for i, c := range chunks {
		states[i] = Chunk{
			Index:    c.Meta.Index,
			Status:   ChunkStatusPending,
			Method:   c.Meta.Method,
			Start:    c.Meta.Start,
			End:      c.Meta.End,
			Duration: c.Meta.Duration,
		}
	}
	return states
}

// failureCause summarizes why no chunk produced a transcription,
// distinguishing credential and quota problems from silent audio.
func failureCause(results []transcript.ChunkResult) string {
	for _, r := range results {
		if r.Error != "" {
			return fmt.Sprintf("all %d chunks failed: %s", len(results), r.Error)
		}
	}
	return "transcription produced no text"
}
