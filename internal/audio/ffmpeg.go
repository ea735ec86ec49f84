package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// Codec decodes arbitrary audio containers into Streams and encodes
// Streams into bounded transfer buffers for the transcription API.
type Codec interface {
	// Decode reads an encoded audio file and returns its PCM stream.
	// The format is a container hint from the validated file extension.
	Decode(ctx context.Context, data []byte, format string) (*Stream, error)

	// EncodeMP3 renders a stream as a 128kbps MP3 buffer, the fixed
	// transfer encoding for chunk uploads.
	EncodeMP3(ctx context.Context, stream *Stream) ([]byte, error)
}

// chunkBitrate is the MP3 bitrate used for chunk uploads.
const chunkBitrate = "128k"

// commandRunner abstracts process execution so codec logic is testable
// without ffmpeg installed.
type commandRunner interface {
	// Run executes the command, feeding stdin and returning stdout.
	Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error)
}

// FFmpegCodec implements Codec using the ffmpeg CLI over pipes; no
// temporary files are written during decode or encode.
type FFmpegCodec struct {
	ffmpegPath string
	runner     commandRunner
}

// CodecOption configures an FFmpegCodec.
type CodecOption func(*FFmpegCodec)

// WithRunner overrides the process runner.
func WithRunner(r commandRunner) CodecOption {
	return func(c *FFmpegCodec) {
		c.runner = r
	}
}

// NewFFmpegCodec creates a codec backed by the ffmpeg binary.
// If ffmpegPath is empty, "ffmpeg" is resolved from PATH.
func NewFFmpegCodec(ffmpegPath string, opts ...CodecOption) *FFmpegCodec {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	c := &FFmpegCodec{
		ffmpegPath: ffmpegPath,
		runner:     osRunner{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decode converts the input bytes to 16-bit PCM via a WAV pipe and
// parses the result into a Stream, preserving the source sample rate and
// channel layout.
func (c *FFmpegCodec) Decode(ctx context.Context, data []byte, format string) (*Stream, error) {
	args := []string{
		"-hide_banner",
		"-f", format,
		"-i", "pipe:0",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		"pipe:1",
	}
	out, err := c.runner.Run(ctx, c.ffmpegPath, args, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	stream, err := parseWAV(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return stream, nil
}

// EncodeMP3 renders the stream's raw samples as MP3 at the fixed chunk
// bitrate.
func (c *FFmpegCodec) EncodeMP3(ctx context.Context, stream *Stream) ([]byte, error) {
	args := []string{
		"-hide_banner",
		"-f", "s16le",
		"-ar", strconv.Itoa(stream.SampleRate()),
		"-ac", strconv.Itoa(stream.Channels()),
		"-i", "pipe:0",
		"-f", "mp3",
		"-b:a", chunkBitrate,
		"pipe:1",
	}
	out, err := c.runner.Run(ctx, c.ffmpegPath, args, bytes.NewReader(stream.Data()))
	if err != nil {
		return nil, fmt.Errorf("encode mp3: %w", err)
	}
	return out, nil
}

// parseWAV reads a RIFF/WAVE buffer produced by ffmpeg. Streamed output
// may declare a zero or maximal data length, so the data chunk is read to
// the end of the buffer when its declared size is unusable.
func parseWAV(buf []byte) (*Stream, error) {
	if len(buf) < 12 || string(buf[0:4]) != "RIFF" || string(buf[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE buffer")
	}

	var (
		sampleRate int
		channels   int
		bitDepth   int
		haveFmt    bool
	)
	pos := 12
	for pos+8 <= len(buf) {
		id := string(buf[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(buf[pos+4 : pos+8]))
		body := pos + 8

		switch id {
		case "fmt ":
			if body+16 > len(buf) {
				return nil, fmt.Errorf("truncated fmt chunk")
			}
			channels = int(binary.LittleEndian.Uint16(buf[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(buf[body+4 : body+8]))
			bitDepth = int(binary.LittleEndian.Uint16(buf[body+14 : body+16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("data chunk before fmt chunk")
			}
			end := body + size
			if size == 0 || size == 0xFFFFFFFF || end > len(buf) {
				end = len(buf)
			}
			return NewStream(buf[body:end], sampleRate, channels, bitDepth/8)
		}

		// Chunks are word-aligned.
		pos = body + size + size%2
	}
	return nil, fmt.Errorf("no data chunk found")
}
