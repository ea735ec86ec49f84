// Package transcript holds the normalized transcription result types and
// the stitcher that merges per-chunk results into one globally
// timestamped transcript.
package transcript

import "github.com/soundscribe/soundscribe-api/internal/audio"

// Segment is a provider-reported span of transcribed text. Provider
// responses are converted to this type at the client boundary; merge
// logic never branches on provider-specific shapes.
type Segment struct {
	ID               int     `json:"id"`
	Seek             int     `json:"seek"`
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	Text             string  `json:"text"`
	Tokens           []int   `json:"tokens,omitempty"`
	Temperature      float64 `json:"temperature"`
	AvgLogprob       float64 `json:"avg_logprob"`
	CompressionRatio float64 `json:"compression_ratio"`
	NoSpeechProb     float64 `json:"no_speech_prob"`
}

// Word is a single transcribed word with timing and optional confidence.
type Word struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Word        string  `json:"word"`
	Probability float64 `json:"probability,omitempty"`
}

// ChunkResult is the outcome of transcribing one audio chunk. Times in
// Segments and Words are relative to the chunk; Meta carries the chunk's
// position in the source stream for offset correction. Immutable after
// creation.
type ChunkResult struct {
	Success  bool           `json:"success"`
	Text     string         `json:"text"`
	Language string         `json:"language,omitempty"`
	Duration float64        `json:"duration,omitempty"`
	Segments []Segment      `json:"segments,omitempty"`
	Words    []Word         `json:"words,omitempty"`
	Error    string         `json:"error,omitempty"`
	Attempts int            `json:"attempts,omitempty"`
	Meta     audio.Metadata `json:"chunk_metadata"`
}

// Combined is the stitched transcript across all chunks. Segment and
// Word times are global to the original stream.
type Combined struct {
	Success       bool      `json:"success"`
	Text          string    `json:"text"`
	Segments      []Segment `json:"segments"`
	Words         []Word    `json:"words"`
	Language      string    `json:"language,omitempty"`
	TotalDuration float64   `json:"total_duration"`
	ChunkCount    int       `json:"chunk_count"`
	FailedChunks  int       `json:"failed_chunks"`
	Error         string    `json:"error,omitempty"`
}
