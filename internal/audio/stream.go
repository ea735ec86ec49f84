// Package audio provides the in-memory audio model and the chunking
// pipeline: decoding, validation, silence-aware segmentation with a
// time-based fallback, and overlap injection.
package audio

import (
	"fmt"
	"math"
	"time"
)

// Stream is a decoded, in-memory PCM audio buffer. It is immutable once
// loaded; slicing and padding operations return new Streams sharing or
// copying the underlying samples as needed.
type Stream struct {
	sampleRate  int
	channels    int
	sampleWidth int // bytes per sample
	data        []byte
}

// NewStream creates a Stream from raw interleaved PCM data.
// Only 16-bit little-endian samples are produced by the decoder, but the
// sample width is kept explicit so the model matches the source audio.
func NewStream(data []byte, sampleRate, channels, sampleWidth int) (*Stream, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if sampleWidth <= 0 {
		return nil, fmt.Errorf("invalid sample width %d", sampleWidth)
	}
	// Trim a trailing partial frame so slicing stays frame-aligned.
	frame := channels * sampleWidth
	data = data[:len(data)-len(data)%frame]
	return &Stream{
		sampleRate:  sampleRate,
		channels:    channels,
		sampleWidth: sampleWidth,
		data:        data,
	}, nil
}

// Silent returns a stream of zero samples with the given parameters.
func Silent(duration time.Duration, sampleRate, channels, sampleWidth int) *Stream {
	frames := int(duration.Seconds() * float64(sampleRate))
	return &Stream{
		sampleRate:  sampleRate,
		channels:    channels,
		sampleWidth: sampleWidth,
		data:        make([]byte, frames*channels*sampleWidth),
	}
}

// SampleRate returns the sample rate in Hz.
func (s *Stream) SampleRate() int { return s.sampleRate }

// Channels returns the channel count.
func (s *Stream) Channels() int { return s.channels }

// BitDepth returns the bits per sample.
func (s *Stream) BitDepth() int { return s.sampleWidth * 8 }

// RawSize returns the raw sample size in bytes.
func (s *Stream) RawSize() int { return len(s.data) }

// Data returns the raw interleaved PCM samples. Callers must not mutate
// the returned slice.
func (s *Stream) Data() []byte { return s.data }

// frameSize returns bytes per frame (one sample across all channels).
func (s *Stream) frameSize() int { return s.channels * s.sampleWidth }

// Duration returns the total duration in seconds.
func (s *Stream) Duration() float64 {
	return float64(len(s.data)/s.frameSize()) / float64(s.sampleRate)
}

// Slice returns the sub-stream covering [start, end) in seconds.
// Bounds are clamped to the stream and aligned to frame boundaries.
// The returned stream shares the underlying buffer.
func (s *Stream) Slice(start, end float64) *Stream {
	if start < 0 {
		start = 0
	}
	if end > s.Duration() {
		end = s.Duration()
	}
	if end < start {
		end = start
	}
	frame := s.frameSize()
	lo := int(start*float64(s.sampleRate)) * frame
	hi := int(end*float64(s.sampleRate)) * frame
	if hi > len(s.data) {
		hi = len(s.data)
	}
	if lo > hi {
		lo = hi
	}
	return &Stream{
		sampleRate:  s.sampleRate,
		channels:    s.channels,
		sampleWidth: s.sampleWidth,
		data:        s.data[lo:hi],
	}
}

// WithPadding returns a copy of the stream with lead and trail seconds of
// silence added. Zero or negative paddings are ignored.
func (s *Stream) WithPadding(lead, trail float64) *Stream {
	frame := s.frameSize()
	leadBytes := 0
	if lead > 0 {
		leadBytes = int(lead*float64(s.sampleRate)) * frame
	}
	trailBytes := 0
	if trail > 0 {
		trailBytes = int(trail*float64(s.sampleRate)) * frame
	}
	if leadBytes == 0 && trailBytes == 0 {
		return s
	}
	padded := make([]byte, leadBytes+len(s.data)+trailBytes)
	copy(padded[leadBytes:], s.data)
	return &Stream{
		sampleRate:  s.sampleRate,
		channels:    s.channels,
		sampleWidth: s.sampleWidth,
		data:        padded,
	}
}

// DBFS returns the stream's loudness in decibels relative to full scale.
// A silent stream returns negative infinity.
func (s *Stream) DBFS() float64 {
	return rmsToDBFS(s.rms(0, len(s.data)))
}

// dbfsWindow measures loudness of the byte range [from, to).
func (s *Stream) dbfsWindow(from, to int) float64 {
	return rmsToDBFS(s.rms(from, to))
}

// rms computes the root-mean-square amplitude of 16-bit samples in the
// byte range [from, to), normalized to [0, 1].
func (s *Stream) rms(from, to int) float64 {
	if to > len(s.data) {
		to = len(s.data)
	}
	if from < 0 {
		from = 0
	}
	n := (to - from) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := from; i+1 < to; i += 2 {
		v := float64(int16(uint16(s.data[i]) | uint16(s.data[i+1])<<8))
		sum += v * v
	}
	return math.Sqrt(sum/float64(n)) / 32768.0
}

func rmsToDBFS(rms float64) float64 {
	if rms <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}

// Info describes a decoded stream for reporting purposes.
type Info struct {
	DurationSeconds   float64 `json:"duration_seconds"`
	DurationFormatted string  `json:"duration_formatted"`
	SampleRate        int     `json:"sample_rate"`
	Channels          int     `json:"channels"`
	BitDepth          int     `json:"bit_depth"`
	RawSizeMB         float64 `json:"raw_size_mb"`
}

// DescribeStream returns reporting metadata for a stream.
func DescribeStream(s *Stream) Info {
	d := s.Duration()
	return Info{
		DurationSeconds:   d,
		DurationFormatted: FormatDuration(d),
		SampleRate:        s.sampleRate,
		Channels:          s.channels,
		BitDepth:          s.BitDepth(),
		RawSizeMB:         float64(s.RawSize()) / (1024 * 1024),
	}
}

// FormatDuration formats seconds as HH:MM:SS.
func FormatDuration(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
