// Package job provides the Job aggregate for managing transcription jobs.
// It includes the Job entity with state machine transitions, as well as
// repository interfaces for persistence.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/soundscribe/soundscribe-api/internal/audio"
	"github.com/soundscribe/soundscribe-api/internal/job/id"
	"github.com/soundscribe/soundscribe-api/internal/transcript"
	"github.com/soundscribe/soundscribe-api/internal/whisper"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting to be processed.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the job is being processed.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was manually cancelled.
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut indicates the job did not finish in time.
	StatusTimedOut Status = "TIMED_OUT"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled, StatusTimedOut},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
	StatusTimedOut:  {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ChunkStatus represents the status of a single audio chunk.
type ChunkStatus string

const (
	// ChunkStatusPending indicates the chunk is waiting to be transcribed.
	ChunkStatusPending ChunkStatus = "PENDING"
	// ChunkStatusProcessing indicates the chunk is currently being transcribed.
	ChunkStatusProcessing ChunkStatus = "PROCESSING"
	// ChunkStatusCompleted indicates the chunk was transcribed successfully.
	ChunkStatusCompleted ChunkStatus = "COMPLETED"
	// ChunkStatusFailed indicates the chunk transcription failed.
	ChunkStatusFailed ChunkStatus = "FAILED"
)

// Chunk represents one audio chunk being transcribed.
type Chunk struct {
	// Index is the position of this chunk in the sequence.
	Index int
	// Status is the current processing status.
	Status ChunkStatus
	// Method records how the chunk boundary was chosen.
	Method audio.SplitMethod
	// Start is the chunk start in the source timeline, in seconds.
	Start float64
	// End is the chunk end in the source timeline, in seconds.
	End float64
	// Duration is the chunk audio duration including overlap padding.
	Duration float64
	// Attempts is the number of API calls made for this chunk.
	Attempts int
	// Error contains any error message if transcription failed.
	Error string
	// StartedAt is when chunk transcription started.
	StartedAt time.Time
	// CompletedAt is when chunk transcription finished.
	CompletedAt time.Time
}

// Job represents a transcription job aggregate.
// It contains all state related to transcribing one uploaded audio file.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Chunks contains the audio segments being transcribed.
	Chunks []Chunk
	// Progress is the percentage of completion (0-100).
	Progress int
	// Error contains any error message if the job failed.
	Error string
	// Filename is the original name of the uploaded file.
	Filename string
	// Format is the detected audio container format.
	Format string
	// Language is the optional language hint passed to the API.
	Language string
	// Prompt is the optional context prompt passed to the API.
	Prompt string
	// Fingerprint is the BLAKE3 hash of the uploaded bytes.
	Fingerprint string
	// Audio describes the decoded input stream.
	Audio audio.Info
	// Estimate is the projected API cost for the input duration.
	Estimate whisper.CostEstimate
	// Result is the combined transcript, set on completion.
	Result *transcript.Combined
	// PushToS3 indicates whether to upload the transcript JSON to S3.
	PushToS3 bool
	// TranscriptURL is the S3 URL if PushToS3 was true.
	TranscriptURL string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		Chunks:    make([]Chunk, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	// Set timestamps based on state
	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// Timeout transitions the job to TIMED_OUT state.
func (j *Job) Timeout() error {
	return j.TransitionTo(StatusTimedOut)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetChunks sets the chunks for this job.
func (j *Job) SetChunks(chunks []Chunk) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Chunks = chunks
	j.UpdatedAt = time.Now()
}

// UpdateChunk updates a specific chunk by index.
func (j *Job) UpdateChunk(index int, chunk Chunk) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if index >= 0 && index < len(j.Chunks) {
		j.Chunks[index] = chunk
		j.UpdatedAt = time.Now()
	}
}

// UpdateProgress sets the progress percentage (0-100).
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// SetAudioInfo records the decoded stream description and cost estimate.
func (j *Job) SetAudioInfo(info audio.Info, estimate whisper.CostEstimate) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Audio = info
	j.Estimate = estimate
	j.UpdatedAt = time.Now()
}

// SetResult sets the combined transcript and optional S3 URL.
func (j *Job) SetResult(result *transcript.Combined, transcriptURL string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Result = result
	j.TranscriptURL = transcriptURL
	j.UpdatedAt = time.Now()
}

// GetResult returns the combined transcript, or nil if not yet available.
func (j *Job) GetResult() *transcript.Combined {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Result
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled ||
		j.Status == StatusTimedOut
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	chunks := make([]Chunk, len(j.Chunks))
	copy(chunks, j.Chunks)

	var result *transcript.Combined
	if j.Result != nil {
		r := *j.Result
		result = &r
	}

	return &Job{
		ID:            j.ID,
		Status:        j.Status,
		Chunks:        chunks,
		Progress:      j.Progress,
		Error:         j.Error,
		Filename:      j.Filename,
		Format:        j.Format,
		Language:      j.Language,
		Prompt:        j.Prompt,
		Fingerprint:   j.Fingerprint,
		Audio:         j.Audio,
		Estimate:      j.Estimate,
		Result:        result,
		PushToS3:      j.PushToS3,
		TranscriptURL: j.TranscriptURL,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
		StartedAt:     j.StartedAt,
		CompletedAt:   j.CompletedAt,
	}
}
