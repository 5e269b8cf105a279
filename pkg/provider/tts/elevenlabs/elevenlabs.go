// Package elevenlabs provides a TTS provider backed by the ElevenLabs
// text-to-speech HTTP API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"
	defaultModel   = "eleven_turbo_v2"
)

var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider against the ElevenLabs API.
type Provider struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL. Useful for tests.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithModel selects the synthesis model. Defaults to "eleven_turbo_v2".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.http = c }
}

// New constructs an ElevenLabs TTS provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs tts: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "elevenlabs" }

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Artifact, error) {
	if voice.ID == "" {
		return nil, fmt.Errorf("%w: voice.ID must not be empty", tts.ErrInvalidVoice)
	}

	body, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: p.model,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs tts: marshal request: %w", err)
	}

	url := p.baseURL + "/text-to-speech/" + voice.ID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs tts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", p.apiKey)

	res, err := p.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("elevenlabs tts: %w", tts.ErrTimeout)
		}
		return nil, fmt.Errorf("elevenlabs tts: request: %w", err)
	}
	defer res.Body.Close()

	if clsErr := tts.ClassifyStatus(res.StatusCode); clsErr != nil {
		io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("elevenlabs tts: %w", clsErr)
	}

	art := tts.NewArtifact(".mp3", "audio/mpeg")
	f, err := os.Create(art.Path)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs tts: create artifact: %w", err)
	}
	if _, err := io.Copy(f, res.Body); err != nil {
		f.Close()
		art.Cleanup()
		return nil, fmt.Errorf("elevenlabs tts: write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		art.Cleanup()
		return nil, fmt.Errorf("elevenlabs tts: close artifact: %w", err)
	}
	return art, nil
}
