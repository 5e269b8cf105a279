// Package streamelements provides a TTS provider backed by the free
// StreamElements speech endpoint. Quality is modest; it sits near the end
// of the fallback chain as a keyless last network option.
package streamelements

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

const (
	defaultBaseURL = "https://api.streamelements.com/kappa/v2/speech"
	defaultVoice   = "Brian"
)

var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider against the StreamElements endpoint.
type Provider struct {
	baseURL string
	http    *http.Client
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithBaseURL overrides the endpoint URL. Useful for tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.http = c }
}

// New constructs a StreamElements TTS provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "streamelements" }

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Artifact, error) {
	voiceID := voice.ID
	if voiceID == "" {
		voiceID = defaultVoice
	}

	q := url.Values{}
	q.Set("voice", voiceID)
	q.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("streamelements tts: build request: %w", err)
	}

	res, err := p.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("streamelements tts: %w", tts.ErrTimeout)
		}
		return nil, fmt.Errorf("streamelements tts: request: %w", err)
	}
	defer res.Body.Close()

	if clsErr := tts.ClassifyStatus(res.StatusCode); clsErr != nil {
		return nil, fmt.Errorf("streamelements tts: %w", clsErr)
	}

	art := tts.NewArtifact(".mp3", "audio/mpeg")
	f, err := os.Create(art.Path)
	if err != nil {
		return nil, fmt.Errorf("streamelements tts: create artifact: %w", err)
	}
	if _, err := io.Copy(f, res.Body); err != nil {
		f.Close()
		art.Cleanup()
		return nil, fmt.Errorf("streamelements tts: write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		art.Cleanup()
		return nil, fmt.Errorf("streamelements tts: close artifact: %w", err)
	}
	return art, nil
}
