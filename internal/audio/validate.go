package audio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Input validation errors. These are fatal for the whole run and are
// surfaced immediately without retry.
var (
	// ErrUnsupportedFormat is returned for file extensions outside the
	// supported set.
	ErrUnsupportedFormat = errors.New("audio: unsupported file format")
	// ErrFileTooLarge is returned when the input exceeds the size cap.
	ErrFileTooLarge = errors.New("audio: file too large")
	// ErrTooShort is returned for inputs under one second.
	ErrTooShort = errors.New("audio: file is too short (less than 1 second)")
	// ErrUndecodable is returned when ffmpeg cannot decode the input.
	ErrUndecodable = errors.New("audio: could not decode file")
)

// MinDuration is the shortest accepted input.
const MinDuration = 1.0 // seconds

// SupportedFormats maps accepted file extensions to the container format
// passed to the decoder.
var SupportedFormats = map[string]string{
	"mp3":  "mp3",
	"wav":  "wav",
	"m4a":  "mp4",
	"flac": "flac",
	"ogg":  "ogg",
	"webm": "webm",
	"mp4":  "mp4",
	"mpeg": "mp3",
	"mpga": "mp3",
}

// FormatList returns the supported extensions for error messages.
func FormatList() []string {
	return []string{"mp3", "wav", "m4a", "flac", "ogg", "webm", "mp4", "mpeg", "mpga"}
}

// ValidateInput checks the declared filename and byte size before any
// decoding work. maxBytes of zero or less disables the size check.
func ValidateInput(filename string, size int64, maxBytes int64) (format string, err error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	format, ok := SupportedFormats[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)",
			ErrUnsupportedFormat, ext, strings.Join(FormatList(), ", "))
	}
	if maxBytes > 0 && size > maxBytes {
		return "", fmt.Errorf("%w: %d bytes (maximum %d)", ErrFileTooLarge, size, maxBytes)
	}
	return format, nil
}

// ValidateStream checks constraints that require a decoded stream.
func ValidateStream(s *Stream) error {
	if s.Duration() < MinDuration {
		return ErrTooShort
	}
	return nil
}
