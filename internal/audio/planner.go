package audio

import (
	"context"
	"log/slog"
)

// silenceCutoff is the input duration above which silence detection is
// skipped entirely and time-based segmentation is used directly.
const silenceCutoff = 600.0 // seconds

// oversizeFactor marks silence-derived pieces for time-based re-splitting
// when they exceed this multiple of the target duration.
const oversizeFactor = 1.5

// maxPaddingShare caps overlap padding at this share of a chunk's own
// duration so tiny chunks are not dominated by their padding.
const maxPaddingShare = 0.25

// segmenter cuts a stream into raw spans near a target duration.
// A nil result requests fallback to time-based segmentation.
type segmenter interface {
	Segment(ctx context.Context, stream *Stream, targetDuration float64) []span
}

// PlanOpts configures a chunking plan.
type PlanOpts struct {
	// MaxChunkBytes is the raw-sample size cap per chunk. Streams at or
	// under the cap are returned as a single chunk.
	MaxChunkBytes int

	// OverlapSeconds is the silence padding injected at chunk
	// boundaries, capped at 25% of each chunk's duration.
	OverlapSeconds float64

	// ForceTimeBased skips silence detection entirely.
	ForceTimeBased bool
}

// DefaultPlanOpts returns the defaults used by the service: a 24MB chunk
// cap with three seconds of boundary overlap.
func DefaultPlanOpts() PlanOpts {
	return PlanOpts{
		MaxChunkBytes:  24 * 1024 * 1024,
		OverlapSeconds: 3,
	}
}

// Planner orchestrates segmentation: it decides whether chunking is
// needed, chooses the silence or time strategy, re-splits oversized
// silence pieces, and injects overlap padding between adjacent chunks.
// It never mutates the source stream.
type Planner struct {
	silence segmenter
	timeSeg TimeSegmenter
	logger  *slog.Logger
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithSilenceSegmenter overrides the silence segmenter.
func WithSilenceSegmenter(s segmenter) PlannerOption {
	return func(p *Planner) {
		p.silence = s
	}
}

// NewPlanner creates a Planner.
func NewPlanner(logger *slog.Logger, opts ...PlannerOption) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Planner{
		silence: NewSilenceSegmenter(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan splits the stream into ordered chunks ready for transcription.
// Before overlap injection the chunk boundaries exactly tile
// [0, duration); afterwards each boundary carries bounded silence padding
// on the overlapping sides.
func (p *Planner) Plan(ctx context.Context, stream *Stream, opts PlanOpts) []Chunk {
	if opts.MaxChunkBytes <= 0 {
		opts.MaxChunkBytes = DefaultPlanOpts().MaxChunkBytes
	}

	total := stream.Duration()
	if stream.RawSize() <= opts.MaxChunkBytes {
		p.logger.Debug("stream fits in a single chunk",
			slog.Int("raw_bytes", stream.RawSize()),
			slog.Int("max_chunk_bytes", opts.MaxChunkBytes),
		)
		return []Chunk{{
			Stream: stream,
			Meta: Metadata{
				Index:    0,
				Start:    0,
				End:      total,
				Duration: total,
				Method:   SplitSingle,
			},
		}}
	}

	estimatedChunks := stream.RawSize()/opts.MaxChunkBytes + 1
	target := total / float64(estimatedChunks)

	p.logger.Info("chunking required",
		slog.Float64("total_duration", total),
		slog.Int("estimated_chunks", estimatedChunks),
		slog.Float64("target_duration", target),
	)

	var chunks []Chunk
	if !opts.ForceTimeBased && total < silenceCutoff {
		if spans := p.silence.Segment(ctx, stream, target); len(spans) > 0 {
			chunks = p.assembleSilenceChunks(stream, spans, target)
			p.logger.Info("silence-based segmentation succeeded",
				slog.Int("chunks", len(chunks)),
			)
		} else {
			p.logger.Warn("silence-based segmentation failed, falling back to time-based")
		}
	}
	if chunks == nil {
		chunks = p.assembleSpans(stream, p.timeSeg.Segment(stream, target), SplitTime, 0)
	}

	return injectOverlap(chunks, opts.OverlapSeconds)
}

// assembleSilenceChunks turns silence-derived spans into chunks,
// re-splitting any piece longer than 1.5x the target by time. Re-split
// offsets are re-based to the piece's position in the stream and tagged
// time_fallback.
func (p *Planner) assembleSilenceChunks(stream *Stream, spans []span, target float64) []Chunk {
	var chunks []Chunk
	for _, sp := range spans {
		if sp.duration() <= target*oversizeFactor {
			chunks = append(chunks, Chunk{
				Stream: stream.Slice(sp.start, sp.end),
				Meta: Metadata{
					Index:    len(chunks),
					Start:    sp.start,
					End:      sp.end,
					Duration: sp.duration(),
					Method:   SplitSilence,
				},
			})
			continue
		}
		p.logger.Info("silence piece oversized, re-splitting by time",
			slog.Float64("piece_duration", sp.duration()),
			slog.Float64("target_duration", target),
		)
		sub := tileInterval(sp.start, sp.end, target)
		chunks = append(chunks, p.assembleSpans(stream, sub, SplitTimeFallback, len(chunks))...)
	}
	return chunks
}

// assembleSpans converts raw spans into chunks with sequential indexes
// starting at firstIndex.
func (p *Planner) assembleSpans(stream *Stream, spans []span, method SplitMethod, firstIndex int) []Chunk {
	chunks := make([]Chunk, 0, len(spans))
	for i, sp := range spans {
		chunks = append(chunks, Chunk{
			Stream: stream.Slice(sp.start, sp.end),
			Meta: Metadata{
				Index:    firstIndex + i,
				Start:    sp.start,
				End:      sp.end,
				Duration: sp.duration(),
				Method:   method,
			},
		})
	}
	return chunks
}

// injectOverlap pads chunk boundaries with silence so words cut at a
// boundary are fully audible in one of the adjacent chunks: the first
// chunk is padded at its end, the last at its start, interior chunks at
// both ends. Recorded offsets shift with the padding. Padding instead of
// trimming means no original audio is ever dropped; the stitcher removes
// the duplicated words from the text.
func injectOverlap(chunks []Chunk, overlapSeconds float64) []Chunk {
	if len(chunks) <= 1 || overlapSeconds <= 0 {
		return chunks
	}
	out := make([]Chunk, 0, len(chunks))
	for i, c := range chunks {
		pad := overlapSeconds
		if limit := c.Meta.Duration * maxPaddingShare; pad > limit {
			pad = limit
		}
		var lead, trail float64
		switch {
		case i == 0:
			trail = pad
		case i == len(chunks)-1:
			lead = pad
		default:
			lead, trail = pad, pad
		}
		padded := c.Stream.WithPadding(lead, trail)
		c.Stream = padded
		c.Meta.Start -= lead
		c.Meta.End += trail
		c.Meta.Duration = padded.Duration()
		out = append(out, c)
	}
	return out
}
