package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// Repository is the persistence port for transcription jobs.
type Repository interface {
	// Save persists a job, updating it if it already exists.
	Save(ctx context.Context, job *Job) error

	// FindByID retrieves a job by its unique identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// FindByFingerprint retrieves the most recently created job whose
	// uploaded audio hashes to the given fingerprint.
	// Returns ErrJobNotFound if no such job exists.
	FindByFingerprint(ctx context.Context, fingerprint string) (*Job, error)

	// List returns all jobs.
	List(ctx context.Context) ([]*Job, error)

	// Delete removes a job.
	// Returns ErrJobNotFound if the job does not exist.
	Delete(ctx context.Context, id string) error
}
