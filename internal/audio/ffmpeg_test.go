package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

// fakeRunner records the invocation and returns canned output.
type fakeRunner struct {
	name   string
	args   []string
	stdin  []byte
	output []byte
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string, stdin io.Reader) ([]byte, error) {
	f.name = name
	f.args = args
	if stdin != nil {
		f.stdin, _ = io.ReadAll(stdin)
	}
	return f.output, f.err
}

// buildWAV assembles a RIFF/WAVE buffer around the given PCM payload.
// A negative dataSize writes the payload's real length.
func buildWAV(sampleRate, channels, bitDepth int, pcm []byte, dataSize int) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*bitDepth/8))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*bitDepth/8))
	binary.Write(&buf, binary.LittleEndian, uint16(bitDepth))

	buf.WriteString("data")
	if dataSize < 0 {
		dataSize = len(pcm)
	}
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(pcm)
	return buf.Bytes()
}

func TestFFmpegCodec_Decode(t *testing.T) {
	pcm := make([]byte, 32000) // 1s at 16kHz mono 16-bit
	runner := &fakeRunner{output: buildWAV(16000, 1, 16, pcm, -1)}
	codec := NewFFmpegCodec("", WithRunner(runner))

	input := []byte("encoded-audio")
	stream, err := codec.Decode(context.Background(), input, "mp3")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if runner.name != "ffmpeg" {
		t.Errorf("binary = %q, want ffmpeg", runner.name)
	}
	if !bytes.Equal(runner.stdin, input) {
		t.Error("input bytes were not piped to ffmpeg")
	}
	assertArg(t, runner.args, "-f", "mp3")
	assertArg(t, runner.args, "-acodec", "pcm_s16le")

	if stream.SampleRate() != 16000 || stream.Channels() != 1 || stream.BitDepth() != 16 {
		t.Errorf("unexpected stream parameters: %d Hz, %d ch, %d bit",
			stream.SampleRate(), stream.Channels(), stream.BitDepth())
	}
	if stream.Duration() != 1 {
		t.Errorf("Duration = %g, want 1", stream.Duration())
	}
}

func TestFFmpegCodec_DecodeFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1")}
	codec := NewFFmpegCodec("", WithRunner(runner))

	_, err := codec.Decode(context.Background(), []byte("junk"), "mp3")
	if !errors.Is(err, ErrUndecodable) {
		t.Errorf("error = %v, want ErrUndecodable", err)
	}
}

func TestFFmpegCodec_DecodeGarbageOutput(t *testing.T) {
	runner := &fakeRunner{output: []byte("not a wav file at all")}
	codec := NewFFmpegCodec("", WithRunner(runner))

	_, err := codec.Decode(context.Background(), []byte("junk"), "mp3")
	if !errors.Is(err, ErrUndecodable) {
		t.Errorf("error = %v, want ErrUndecodable", err)
	}
}

func TestFFmpegCodec_EncodeMP3(t *testing.T) {
	stream := toneStream(t, 2, 8000)
	runner := &fakeRunner{output: []byte("mp3-bytes")}
	codec := NewFFmpegCodec("/usr/local/bin/ffmpeg", WithRunner(runner))

	out, err := codec.EncodeMP3(context.Background(), stream)
	if err != nil {
		t.Fatalf("EncodeMP3: %v", err)
	}
	if !bytes.Equal(out, []byte("mp3-bytes")) {
		t.Error("encoder output was not returned")
	}
	if runner.name != "/usr/local/bin/ffmpeg" {
		t.Errorf("binary = %q", runner.name)
	}
	if !bytes.Equal(runner.stdin, stream.Data()) {
		t.Error("raw samples were not piped to ffmpeg")
	}
	assertArg(t, runner.args, "-ar", "16000")
	assertArg(t, runner.args, "-ac", "1")
	assertArg(t, runner.args, "-b:a", "128k")
}

func TestParseWAV_StreamedDataSize(t *testing.T) {
	pcm := make([]byte, 64000)

	// ffmpeg writing to a pipe declares unusable data sizes.
	for _, size := range []int{0, 0xFFFFFFFF} {
		stream, err := parseWAV(buildWAV(16000, 2, 16, pcm, size))
		if err != nil {
			t.Fatalf("parseWAV with declared size %d: %v", size, err)
		}
		if stream.RawSize() != len(pcm) {
			t.Errorf("RawSize = %d, want %d", stream.RawSize(), len(pcm))
		}
	}
}

func TestParseWAV_MissingData(t *testing.T) {
	buf := buildWAV(16000, 1, 16, nil, -1)
	buf = buf[:len(buf)-8] // strip the data chunk header
	if _, err := parseWAV(buf); err == nil {
		t.Error("expected an error for a buffer without a data chunk")
	}
}

// assertArg checks that flag is present and followed by value.
func assertArg(t *testing.T, args []string, flag, value string) {
	t.Helper()
	for i, a := range args {
		if a == flag {
			if i+1 >= len(args) {
				t.Errorf("flag %s has no value", flag)
			} else if args[i+1] != value {
				t.Errorf("flag %s followed by %q, want %q", flag, args[i+1], value)
			}
			return
		}
	}
	t.Errorf("flag %s not found in %v", flag, args)
}
