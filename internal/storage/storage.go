// Package storage provides temporary file storage for encoded audio
// chunks and optional S3 upload of finished transcript exports.
package storage

import (
	"context"
	"io"
)

// Storage is the port for file handling during a transcription run.
// Temporary chunk files live only for their single transcription call;
// the service releases them on every exit path.
type Storage interface {
	// SaveTemp writes data to a temporary file and returns its path.
	// The name parameter is used as a filename hint.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp opens a temporary file. The caller closes the returned
	// ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the given temporary files, continuing past
	// individual failures.
	CleanupTemp(ctx context.Context, paths []string) error

	// Upload stores data under the given key and returns its public
	// URL. Returns ErrUploadNotConfigured when no remote backend is
	// configured.
	Upload(ctx context.Context, key string, data io.Reader) (url string, err error)
}
