package audio

import (
	"context"
	"math"
	"time"
)

// Silence detection parameters. Thresholds are relative to the stream's
// average loudness; longer inputs use a stricter profile so detection
// stays cheap and does not over-split.
const (
	// silenceBudget bounds the whole detection pass. Exceeding it is
	// treated the same as finding no silence, never as a fatal error.
	silenceBudget = 30 * time.Second

	// analysisWindow is the granularity of loudness measurement.
	analysisWindow = 10 * time.Millisecond

	// keepSilence keeps low-amplitude audio around each cut so words
	// are not clipped.
	keepSilence = 500 * time.Millisecond

	// longInputThreshold switches to the strict detection profile.
	longInputThreshold = 300.0 // seconds

	standardThresholdOffset = 16.0 // dB below average loudness
	strictThresholdOffset   = 20.0
	standardMinSilence      = 1 * time.Second
	strictMinSilence        = 2 * time.Second
)

// SilenceSegmenter cuts a stream at low-amplitude regions into pieces
// close to a target duration. A nil result signals the caller to fall
// back to time-based segmentation; it is returned when no usable silence
// exists, the stream is entirely silent, or the time budget is exceeded.
type SilenceSegmenter struct {
	budget time.Duration
	now    func() time.Time
}

// SilenceOption configures a SilenceSegmenter.
type SilenceOption func(*SilenceSegmenter)

// WithBudget overrides the detection time budget.
func WithBudget(d time.Duration) SilenceOption {
	return func(ss *SilenceSegmenter) {
		ss.budget = d
	}
}

// WithClock overrides the wall clock used for budget checks.
func WithClock(now func() time.Time) SilenceOption {
	return func(ss *SilenceSegmenter) {
		ss.now = now
	}
}

// NewSilenceSegmenter creates a SilenceSegmenter with the default budget.
func NewSilenceSegmenter(opts ...SilenceOption) *SilenceSegmenter {
	ss := &SilenceSegmenter{
		budget: silenceBudget,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ss)
	}
	return ss
}

// Segment attempts to cut the stream at silence midpoints into spans
// close to targetDuration seconds. The returned spans exactly tile
// [0, duration). Pieces are not guaranteed to be at most the target
// duration; oversized pieces are re-split by the planner.
func (ss *SilenceSegmenter) Segment(ctx context.Context, stream *Stream, targetDuration float64) []span {
	deadline := ss.now().Add(ss.budget)

	avg := stream.DBFS()
	if math.IsInf(avg, -1) {
		// Entirely silent input has no usable speech boundaries.
		return nil
	}

	threshold := avg - standardThresholdOffset
	minSilence := standardMinSilence
	if stream.Duration() > longInputThreshold {
		threshold = avg - strictThresholdOffset
		minSilence = strictMinSilence
	}

	silences := ss.detectSilentSpans(ctx, stream, threshold, minSilence, deadline)
	if len(silences) == 0 {
		return nil
	}

	cuts := selectCutPoints(silences, stream.Duration(), targetDuration)
	if len(cuts) == 0 {
		return nil
	}

	spans := make([]span, 0, len(cuts)+1)
	last := 0.0
	for _, cut := range cuts {
		spans = append(spans, span{start: last, end: cut})
		last = cut
	}
	spans = append(spans, span{start: last, end: stream.Duration()})
	return spans
}

// detectSilentSpans scans fixed-size loudness windows and merges
// consecutive windows below the threshold into silent spans of at least
// minSilence. Returns nil when the deadline or context expires.
func (ss *SilenceSegmenter) detectSilentSpans(ctx context.Context, stream *Stream, threshold float64, minSilence time.Duration, deadline time.Time) []span {
	frame := stream.frameSize()
	windowBytes := int(analysisWindow.Seconds()*float64(stream.sampleRate)) * frame
	if windowBytes == 0 {
		return nil
	}
	windowSec := analysisWindow.Seconds()
	minWindows := int(minSilence.Seconds() / windowSec)

	var (
		silences []span
		runStart = -1
		index    int
	)
	for off := 0; off < len(stream.data); off += windowBytes {
		if index%256 == 0 {
			if ctx.Err() != nil || ss.now().After(deadline) {
				return nil
			}
		}
		end := off + windowBytes
		if end > len(stream.data) {
			end = len(stream.data)
		}
		silent := stream.dbfsWindow(off, end) < threshold
		if silent && runStart < 0 {
			runStart = index
		}
		if !silent && runStart >= 0 {
			if index-runStart >= minWindows {
				silences = append(silences, span{
					start: float64(runStart) * windowSec,
					end:   float64(index) * windowSec,
				})
			}
			runStart = -1
		}
		index++
	}
	if runStart >= 0 && index-runStart >= minWindows {
		silences = append(silences, span{
			start: float64(runStart) * windowSec,
			end:   float64(index) * windowSec,
		})
	}
	return silences
}

// selectCutPoints picks one silence midpoint near each multiple of the
// target duration. Cutting at the midpoint keeps low-amplitude audio on
// both sides of the cut; the cut is additionally kept at least
// keepSilence away from the span edges when the span allows it.
func selectCutPoints(silences []span, totalDuration, target float64) []float64 {
	if target <= 0 {
		return nil
	}
	tolerance := target / 3

	var cuts []float64
	lastCut := 0.0
	for lastCut < totalDuration-target/2 {
		ideal := lastCut + target
		best := bestSilenceNear(silences, ideal, tolerance)
		if best != nil {
			cut := cutPointWithin(*best)
			if cut > lastCut+1 && cut < totalDuration-1 {
				cuts = append(cuts, cut)
				lastCut = cut
				continue
			}
		}
		// No usable silence near this boundary; let the piece grow.
		// The planner re-splits oversized pieces by time.
		lastCut = ideal
	}
	return cuts
}

// bestSilenceNear returns the silence whose midpoint is closest to the
// ideal point within the tolerance, or nil.
func bestSilenceNear(silences []span, ideal, tolerance float64) *span {
	var best *span
	bestDistance := tolerance
	for i := range silences {
		mid := (silences[i].start + silences[i].end) / 2
		if mid < ideal-tolerance {
			continue
		}
		if mid > ideal+tolerance {
			break // silences are ordered by time
		}
		if d := math.Abs(mid - ideal); d < bestDistance {
			bestDistance = d
			best = &silences[i]
		}
	}
	return best
}

// cutPointWithin returns the span midpoint clamped to keep at least
// keepSilence of padding from each edge when the span is long enough.
func cutPointWithin(s span) float64 {
	mid := (s.start + s.end) / 2
	keep := keepSilence.Seconds()
	if s.duration() <= 2*keep {
		return mid
	}
	if mid < s.start+keep {
		return s.start + keep
	}
	if mid > s.end-keep {
		return s.end - keep
	}
	return mid
}
