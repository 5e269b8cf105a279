// Package openai provides an stt.Provider backed by the OpenAI Whisper
// transcription API.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxbridge/voxbridge/pkg/provider/stt"
)

var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the OpenAI transcription API.
type Provider struct {
	client   oai.Client
	model    string
	language string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL  string
	model    string
	language string
	timeout  time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Useful for tests.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel selects the transcription model. Defaults to
// "gpt-4o-mini-transcribe".
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithLanguage pins the transcription language (ISO-639-1, e.g. "en").
// When empty the API auto-detects, which is slower and less accurate for
// short utterances.
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a Whisper transcription provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai stt: apiKey must not be empty")
	}

	cfg := &config{model: string(oai.AudioModelGPT4oMiniTranscribe)}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		language: cfg.language,
	}, nil
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return "openai" }

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	ext, err := stt.ExtensionForMIME(mimeType)
	if err != nil {
		return "", err
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(audio), "utterance"+ext, mimeType),
		Model: oai.AudioModel(p.model),
	}
	if p.language != "" {
		params.Language = oai.String(p.language)
	}

	res, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai stt: transcribe: %w", err)
	}
	return strings.TrimSpace(res.Text), nil
}
