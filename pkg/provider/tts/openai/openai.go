// Package openai provides a TTS provider backed by the OpenAI speech API.
// It is the primary commercial provider in the default fallback chain.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

const defaultModel = "tts-1"

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider using the OpenAI speech API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	model   string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Useful for tests.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel selects the speech model ("tts-1" for latency, "tts-1-hd" for
// quality). Defaults to "tts-1".
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI TTS Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai tts: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retries are owned by the resilience layer, not the SDK.
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "openai" }

// Synthesize implements tts.Provider. The response body is streamed to the
// artifact file rather than buffered in memory.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Artifact, error) {
	if voice.ID == "" {
		return nil, fmt.Errorf("%w: voice.ID must not be empty", tts.ErrInvalidVoice)
	}

	res, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(voice.ID),
		Input:          text,
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, classify(err)
	}
	defer res.Body.Close()

	art := tts.NewArtifact(".mp3", "audio/mpeg")
	f, err := os.Create(art.Path)
	if err != nil {
		return nil, fmt.Errorf("openai tts: create artifact: %w", err)
	}
	if _, err := io.Copy(f, res.Body); err != nil {
		f.Close()
		art.Cleanup()
		return nil, fmt.Errorf("openai tts: write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		art.Cleanup()
		return nil, fmt.Errorf("openai tts: close artifact: %w", err)
	}
	return art, nil
}

// classify maps SDK errors onto the tts error taxonomy.
func classify(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		if clsErr := tts.ClassifyStatus(apiErr.StatusCode); clsErr != nil {
			return fmt.Errorf("openai tts: %w", clsErr)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("openai tts: %w", tts.ErrTimeout)
	}
	return fmt.Errorf("openai tts: %w", err)
}
