package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/soundscribe/soundscribe-api/internal/audio"
	"github.com/soundscribe/soundscribe-api/internal/storage"
	"github.com/soundscribe/soundscribe-api/internal/whisper"
)

// pcmStream returns a silent 16kHz mono 16-bit stream of the given
// duration, 32000 raw bytes per second.
func pcmStream(t *testing.T, seconds float64) *audio.Stream {
	t.Helper()
	s, err := audio.NewStream(make([]byte, int(seconds*32000)), 16000, 1, 2)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	return s
}

type fakeCodec struct {
	stream    *audio.Stream
	decodeErr error
	encodeErr error
	encodes   int
}

func (f *fakeCodec) Decode(_ context.Context, _ []byte, _ string) (*audio.Stream, error) {
	if f.decodeErr != nil {
		return nil, f.decodeErr
	}
	return f.stream, nil
}

func (f *fakeCodec) EncodeMP3(_ context.Context, _ *audio.Stream) ([]byte, error) {
	if f.encodeErr != nil {
		return nil, f.encodeErr
	}
	f.encodes++
	return []byte("mp3-bytes"), nil
}

type fakeWhisper struct {
	requests []whisper.Request
	failOn   map[int]error // call index -> error
}

func (f *fakeWhisper) Transcribe(_ context.Context, req whisper.Request) (whisper.Result, error) {
	call := len(f.requests)
	f.requests = append(f.requests, req)
	if err, ok := f.failOn[call]; ok {
		return whisper.Result{Attempts: 3}, err
	}
	return whisper.Result{
		Text:     fmt.Sprintf("part%d", call),
		Language: "en",
		Duration: 3,
		Attempts: 1,
	}, nil
}

func (f *fakeWhisper) ValidateKey(context.Context) error { return nil }

type fakeStore struct {
	saved     map[string][]byte
	removed   []string
	uploads   map[string][]byte
	uploadURL string
	uploadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		saved:   make(map[string][]byte),
		uploads: make(map[string][]byte),
	}
}

func (f *fakeStore) SaveTemp(_ context.Context, name string, data io.Reader) (string, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	path := "/tmp/fake/" + name
	f.saved[path] = content
	return path, nil
}

func (f *fakeStore) LoadTemp(_ context.Context, path string) (io.ReadCloser, error) {
	content, ok := f.saved[path]
	if !ok {
		return nil, errors.New("no such temp file")
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (f *fakeStore) CleanupTemp(_ context.Context, paths []string) error {
	for _, p := range paths {
		delete(f.saved, p)
		f.removed = append(f.removed, p)
	}
	return nil
}

func (f *fakeStore) Upload(_ context.Context, key string, data io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	content, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.uploads[key] = content
	return f.uploadURL, nil
}

// newTestService wires a service around fakes. The plan options force
// time-based splitting of the 10s stream into three chunks.
func newTestService(codec *fakeCodec, client *fakeWhisper, store *fakeStore) (*TranscribeService, *MemoryRepository) {
	repo := NewMemoryRepository()
	svc := NewTranscribeService(
		repo,
		codec,
		audio.NewPlanner(nil),
		client,
		store,
		nil,
		WithPlanOpts(audio.PlanOpts{
			MaxChunkBytes:  160000,
			ForceTimeBased: true,
		}),
	)
	return svc, repo
}

func testInput() TranscribeInput {
	return TranscribeInput{
		Audio:    []byte("encoded-audio"),
		Filename: "speech.mp3",
		Language: "en",
	}
}

func TestTranscribeService_CreateJob(t *testing.T) {
	svc, _ := newTestService(&fakeCodec{}, &fakeWhisper{}, newFakeStore())

	created, err := svc.CreateJob(context.Background(), testInput())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if created.Status != StatusInQueue {
		t.Errorf("Status = %s, want %s", created.Status, StatusInQueue)
	}
	if created.Format != "mp3" {
		t.Errorf("Format = %q, want mp3", created.Format)
	}
	if created.Fingerprint != storage.FingerprintBytes([]byte("encoded-audio")) {
		t.Errorf("Fingerprint = %q", created.Fingerprint)
	}

	found, err := svc.GetJob(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if found.Filename != "speech.mp3" {
		t.Errorf("Filename = %q", found.Filename)
	}
}

func TestTranscribeService_CreateJob_Invalid(t *testing.T) {
	svc, _ := newTestService(&fakeCodec{}, &fakeWhisper{}, newFakeStore())

	input := testInput()
	input.Filename = "notes.txt"
	if _, err := svc.CreateJob(context.Background(), input); !errors.Is(err, audio.ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}

	tiny := NewTranscribeService(nil, nil, nil, nil, nil, nil, WithMaxFileBytes(4))
	if _, err := tiny.CreateJob(context.Background(), testInput()); !errors.Is(err, audio.ErrFileTooLarge) {
		t.Errorf("error = %v, want ErrFileTooLarge", err)
	}
}

func TestTranscribeService_ProcessSuccess(t *testing.T) {
	codec := &fakeCodec{stream: pcmStream(t, 10)}
	client := &fakeWhisper{}
	store := newFakeStore()
	svc, repo := newTestService(codec, client, store)
	ctx := context.Background()

	created, err := svc.CreateJob(ctx, testInput())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	svc.ProcessExistingJob(ctx, created.ID, testInput())

	final, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if final.Status != StatusCompleted {
		t.Fatalf("Status = %s (error %q), want %s", final.Status, final.Error, StatusCompleted)
	}
	if final.Progress != 100 {
		t.Errorf("Progress = %d, want 100", final.Progress)
	}
	if final.Result == nil || !final.Result.Success {
		t.Fatal("expected a successful result")
	}
	if final.Result.ChunkCount != 3 || final.Result.FailedChunks != 0 {
		t.Errorf("chunks = %d/%d failed, want 3/0", final.Result.ChunkCount, final.Result.FailedChunks)
	}
	if final.Result.Text != "part0 part1 part2" {
		t.Errorf("Text = %q", final.Result.Text)
	}
	if final.Result.Language != "en" {
		t.Errorf("Language = %q", final.Result.Language)
	}

	// Chunks are transcribed sequentially in index order, staged under
	// fingerprint-prefixed names.
	if len(client.requests) != 3 {
		t.Fatalf("got %d API calls, want 3", len(client.requests))
	}
	prefix := storage.FingerprintBytes([]byte("encoded-audio"))[:12]
	for i, req := range client.requests {
		want := fmt.Sprintf("%s_chunk_%03d.mp3", prefix, i)
		if req.Filename != want {
			t.Errorf("call %d filename = %q, want %q", i, req.Filename, want)
		}
		if req.Language != "en" {
			t.Errorf("call %d language = %q", i, req.Language)
		}
	}

	// Every staged chunk file is cleaned up.
	if len(store.saved) != 0 {
		t.Errorf("%d temp files left behind", len(store.saved))
	}
	if len(store.removed) != 3 {
		t.Errorf("removed %d temp files, want 3", len(store.removed))
	}

	for i, c := range final.Chunks {
		if c.Status != ChunkStatusCompleted {
			t.Errorf("chunk %d status = %s", i, c.Status)
		}
	}

	if final.Audio.DurationSeconds != 10 {
		t.Errorf("audio duration = %g, want 10", final.Audio.DurationSeconds)
	}
}

func TestTranscribeService_PartialFailure(t *testing.T) {
	codec := &fakeCodec{stream: pcmStream(t, 10)}
	client := &fakeWhisper{failOn: map[int]error{1: whisper.ErrRateLimited}}
	store := newFakeStore()
	svc, repo := newTestService(codec, client, store)
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, testInput())
	svc.ProcessExistingJob(ctx, created.ID, testInput())

	final, _ := repo.FindByID(ctx, created.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("Status = %s (error %q), want %s", final.Status, final.Error, StatusCompleted)
	}
	if final.Result.FailedChunks != 1 {
		t.Errorf("FailedChunks = %d, want 1", final.Result.FailedChunks)
	}
	if final.Result.Text != "part0 part2" {
		t.Errorf("Text = %q", final.Result.Text)
	}
	if final.Chunks[1].Status != ChunkStatusFailed {
		t.Errorf("chunk 1 status = %s", final.Chunks[1].Status)
	}
	if !strings.Contains(final.Chunks[1].Error, "rate limited") {
		t.Errorf("chunk 1 error = %q", final.Chunks[1].Error)
	}
	if final.Chunks[1].Attempts != 3 {
		t.Errorf("chunk 1 attempts = %d, want 3", final.Chunks[1].Attempts)
	}

	// The failed chunk's temp file is cleaned up too.
	if len(store.saved) != 0 {
		t.Errorf("%d temp files left behind", len(store.saved))
	}
}

func TestTranscribeService_AllChunksFail(t *testing.T) {
	codec := &fakeCodec{stream: pcmStream(t, 10)}
	client := &fakeWhisper{failOn: map[int]error{
		0: whisper.ErrQuotaExceeded,
		1: whisper.ErrQuotaExceeded,
		2: whisper.ErrQuotaExceeded,
	}}
	svc, repo := newTestService(codec, client, newFakeStore())
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, testInput())
	svc.ProcessExistingJob(ctx, created.ID, testInput())

	final, _ := repo.FindByID(ctx, created.ID)
	if final.Status != StatusFailed {
		t.Fatalf("Status = %s, want %s", final.Status, StatusFailed)
	}
	if !strings.Contains(final.Error, "all 3 chunks failed") {
		t.Errorf("Error = %q", final.Error)
	}
	if !strings.Contains(final.Error, "quota exceeded") {
		t.Errorf("Error = %q, want the chunk failure cause", final.Error)
	}
}

func TestTranscribeService_DecodeFailure(t *testing.T) {
	codec := &fakeCodec{decodeErr: audio.ErrUndecodable}
	svc, repo := newTestService(codec, &fakeWhisper{}, newFakeStore())
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, testInput())
	svc.ProcessExistingJob(ctx, created.ID, testInput())

	final, _ := repo.FindByID(ctx, created.ID)
	if final.Status != StatusFailed {
		t.Fatalf("Status = %s, want %s", final.Status, StatusFailed)
	}
	if !strings.Contains(final.Error, "decoding audio") {
		t.Errorf("Error = %q", final.Error)
	}
}

func TestTranscribeService_TooShortAudio(t *testing.T) {
	codec := &fakeCodec{stream: pcmStream(t, 0.5)}
	svc, repo := newTestService(codec, &fakeWhisper{}, newFakeStore())
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, testInput())
	svc.ProcessExistingJob(ctx, created.ID, testInput())

	final, _ := repo.FindByID(ctx, created.ID)
	if final.Status != StatusFailed {
		t.Fatalf("Status = %s, want %s", final.Status, StatusFailed)
	}
	if !strings.Contains(final.Error, "too short") {
		t.Errorf("Error = %q", final.Error)
	}
}

func TestTranscribeService_UploadToS3(t *testing.T) {
	codec := &fakeCodec{stream: pcmStream(t, 10)}
	store := newFakeStore()
	store.uploadURL = "https://bucket.s3.us-east-1.amazonaws.com/speech.json"
	svc, repo := newTestService(codec, &fakeWhisper{}, store)
	ctx := context.Background()

	input := testInput()
	input.PushToS3 = true
	created, _ := svc.CreateJob(ctx, input)
	svc.ProcessExistingJob(ctx, created.ID, input)

	final, _ := repo.FindByID(ctx, created.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("Status = %s (error %q)", final.Status, final.Error)
	}
	if final.TranscriptURL != store.uploadURL {
		t.Errorf("TranscriptURL = %q", final.TranscriptURL)
	}
	if len(store.uploads) != 1 {
		t.Fatalf("got %d uploads, want 1", len(store.uploads))
	}
	for key := range store.uploads {
		if !strings.HasSuffix(key, ".json") {
			t.Errorf("upload key = %q, want a .json key", key)
		}
	}
}

func TestTranscribeService_UploadNotConfigured(t *testing.T) {
	codec := &fakeCodec{stream: pcmStream(t, 10)}
	store := newFakeStore()
	store.uploadErr = storage.ErrUploadNotConfigured
	svc, repo := newTestService(codec, &fakeWhisper{}, store)
	ctx := context.Background()

	input := testInput()
	input.PushToS3 = true
	created, _ := svc.CreateJob(ctx, input)
	svc.ProcessExistingJob(ctx, created.ID, input)

	final, _ := repo.FindByID(ctx, created.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("Status = %s (error %q), want completion without upload", final.Status, final.Error)
	}
	if final.TranscriptURL != "" {
		t.Errorf("TranscriptURL = %q, want empty", final.TranscriptURL)
	}
}

func TestTranscribeService_DeleteJob(t *testing.T) {
	svc, _ := newTestService(&fakeCodec{}, &fakeWhisper{}, newFakeStore())
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, testInput())
	if err := svc.DeleteJob(ctx, created.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, err := svc.GetJob(ctx, created.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("error = %v, want ErrJobNotFound", err)
	}
}
