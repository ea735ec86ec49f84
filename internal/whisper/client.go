// Package whisper provides the OpenAI speech-to-text client used for
// per-chunk transcription, with bounded retries, exponential backoff,
// and a classified error taxonomy.
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/soundscribe/soundscribe-api/internal/transcript"
)

// Static errors for client construction and classified API failures.
var (
	// ErrAPIKeyRequired is returned when no API key is provided and the
	// OPENAI_API_KEY environment variable is not set.
	ErrAPIKeyRequired = errors.New("whisper: API key is required")
	// ErrRateLimited is returned when the API throttles the request.
	ErrRateLimited = errors.New("whisper: rate limited")
	// ErrQuotaExceeded is returned when the account quota is exhausted.
	ErrQuotaExceeded = errors.New("whisper: quota exceeded")
	// ErrInvalidRequest is returned for bad credentials or parameters.
	ErrInvalidRequest = errors.New("whisper: invalid request")
	// ErrTimeout is returned when the request times out.
	ErrTimeout = errors.New("whisper: request timed out")
)

// Request is one bounded audio chunk to transcribe. Audio holds the
// encoded bytes (MP3 at a fixed bitrate); Language and Prompt are
// optional hints forwarded to the API.
type Request struct {
	Audio    []byte
	Filename string
	Language string
	Prompt   string
}

// Result is a successful transcription of one chunk. Segment and Word
// times are relative to the chunk. Provider response shapes are
// normalized here, at the boundary.
type Result struct {
	Text     string
	Language string
	Duration float64
	Segments []transcript.Segment
	Words    []transcript.Word
	Attempts int
}

// Client is the interface to the remote speech-to-text service.
type Client interface {
	// Transcribe sends one chunk and returns its transcription, or a
	// classified error after internal retries are exhausted.
	Transcribe(ctx context.Context, req Request) (Result, error)

	// ValidateKey checks that the configured credentials are accepted.
	ValidateKey(ctx context.Context) error
}

// OpenAIClient implements Client against the OpenAI audio API.
type OpenAIClient struct {
	api         *openai.Client
	model       string
	maxRetries  int
	baseBackoff time.Duration
	sleep       func(context.Context, time.Duration) error
	logger      *slog.Logger
}

// ClientOption configures an OpenAIClient.
type ClientOption func(*OpenAIClient, *openai.ClientConfig)

// WithModel sets the transcription model.
func WithModel(model string) ClientOption {
	return func(c *OpenAIClient, _ *openai.ClientConfig) {
		c.model = model
	}
}

// WithMaxRetries sets the maximum number of attempts per chunk.
// Values below one are clamped so every chunk gets at least one attempt.
func WithMaxRetries(n int) ClientOption {
	return func(c *OpenAIClient, _ *openai.ClientConfig) {
		if n < 1 {
			n = 1
		}
		c.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff; it doubles on each retry.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(c *OpenAIClient, _ *openai.ClientConfig) {
		c.baseBackoff = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(_ *OpenAIClient, cfg *openai.ClientConfig) {
		cfg.HTTPClient = hc
	}
}

// WithBaseURL sets a custom API base URL.
func WithBaseURL(url string) ClientOption {
	return func(_ *OpenAIClient, cfg *openai.ClientConfig) {
		cfg.BaseURL = url
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *OpenAIClient, _ *openai.ClientConfig) {
		c.logger = logger
	}
}

// NewClient creates an OpenAI transcription client. The API key can be
// provided directly or via the OPENAI_API_KEY environment variable.
func NewClient(apiKey string, opts ...ClientOption) (*OpenAIClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	cfg := openai.DefaultConfig(apiKey)
	c := &OpenAIClient{
		model:       openai.Whisper1,
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
		sleep:       sleepCtx,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c, &cfg)
	}
	c.api = openai.NewClientWithConfig(cfg)
	return c, nil
}

// Transcribe sends the chunk with verbose timestamps requested at both
// word and segment granularity. Transient failures are retried with
// exponential backoff; terminal failures return a classified error.
func (c *OpenAIClient) Transcribe(ctx context.Context, req Request) (Result, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
			Model:    c.model,
			Reader:   bytes.NewReader(req.Audio),
			FilePath: req.Filename,
			Language: req.Language,
			Prompt:   req.Prompt,
			Format:   openai.AudioResponseFormatVerboseJSON,
			TimestampGranularities: []openai.TranscriptionTimestampGranularity{
				openai.TranscriptionTimestampGranularityWord,
				openai.TranscriptionTimestampGranularitySegment,
			},
		})
		if err == nil {
			result := normalize(resp)
			result.Attempts = attempt
			if result.Language == "" {
				result.Language = req.Language
			}
			return result, nil
		}

		lastErr = classify(err)
		c.logger.Warn("transcription attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", c.maxRetries),
			slog.String("error", lastErr.Error()),
		)
		if !retryable(lastErr) || attempt == c.maxRetries {
			break
		}

		backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
		if err := c.sleep(ctx, backoff); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
	}
	return Result{}, lastErr
}

// ValidateKey performs a lightweight authenticated call to check the
// configured credentials.
func (c *OpenAIClient) ValidateKey(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// normalize converts the provider response into the transcript types.
func normalize(resp openai.AudioResponse) Result {
	result := Result{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
		Segments: make([]transcript.Segment, 0, len(resp.Segments)),
		Words:    make([]transcript.Word, 0, len(resp.Words)),
	}
	for _, s := range resp.Segments {
		result.Segments = append(result.Segments, transcript.Segment{
			ID:               s.ID,
			Seek:             s.Seek,
			Start:            s.Start,
			End:              s.End,
			Text:             s.Text,
			Tokens:           s.Tokens,
			Temperature:      float64(s.Temperature),
			AvgLogprob:       s.AvgLogprob,
			CompressionRatio: s.CompressionRatio,
			NoSpeechProb:     s.NoSpeechProb,
		})
	}
	for _, w := range resp.Words {
		result.Words = append(result.Words, transcript.Word{
			Start: w.Start,
			End:   w.End,
			Word:  w.Word,
		})
	}
	return result
}

// classify maps transport and API errors onto the client error taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			if apiErr.Type == "insufficient_quota" || apiErr.Code == "insufficient_quota" {
				return fmt.Errorf("%w: %s", ErrQuotaExceeded, apiErr.Message)
			}
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		case apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500:
			return fmt.Errorf("%w: %s", ErrInvalidRequest, apiErr.Message)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode >= 400 && reqErr.HTTPStatusCode < 500 {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	return err
}

// retryable reports whether a classified error is worth another attempt.
// Invalid requests and exhausted quotas never recover by retrying.
func retryable(err error) bool {
	return !errors.Is(err, ErrInvalidRequest) && !errors.Is(err, ErrQuotaExceeded)
}

// sleepCtx waits for the duration unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
