package audio

import "fmt"

// SplitMethod records how a chunk's boundaries were chosen.
type SplitMethod string

const (
	// SplitSingle means the whole stream fit in one chunk.
	SplitSingle SplitMethod = "single"
	// SplitSilence means the chunk was cut at silence boundaries.
	SplitSilence SplitMethod = "silence"
	// SplitTime means the chunk was cut at fixed time intervals.
	SplitTime SplitMethod = "time"
	// SplitTimeFallback means a silence-derived piece was oversized and
	// re-split by time.
	SplitTimeFallback SplitMethod = "time_fallback"
)

// Metadata describes a chunk's position in the source stream.
// Start and End are in seconds relative to the original stream and
// include any overlap padding once injected.
type Metadata struct {
	Index    int         `json:"chunk_index"`
	Start    float64     `json:"start_time"`
	End      float64     `json:"end_time"`
	Duration float64     `json:"duration"`
	Method   SplitMethod `json:"split_method"`
}

// Chunk pairs a slice of the source stream with its position metadata.
// Chunks are created by the Planner, consumed once by the transcription
// call, and then eligible for disposal.
type Chunk struct {
	Stream *Stream
	Meta   Metadata
}

// String returns a short description for logging.
func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d [%s]: %.1fs-%.1fs",
		c.Meta.Index, c.Meta.Method, c.Meta.Start, c.Meta.End)
}

// span is a raw [Start, End) interval in seconds over the source stream.
type span struct {
	start float64
	end   float64
}

func (s span) duration() float64 { return s.end - s.start }
