// Package mock provides a test double for the stt.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/voxbridge/voxbridge/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Audio is the audio payload passed to Transcribe.
	Audio []byte
	// MIMEType is the MIME type passed to Transcribe.
	MIMEType string
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// NameValue is returned by Name. Defaults to "mock" when empty.
	NameValue string

	// Text is returned by Transcribe on success.
	Text string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Delay, if set, is how long Transcribe blocks before returning; it
	// still honors context cancellation.
	Delay func(ctx context.Context) error

	// --- Call records ---

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

var _ stt.Provider = (*Provider)(nil)

// Name implements stt.Provider.
func (p *Provider) Name() string {
	if p.NameValue == "" {
		return "mock"
	}
	return p.NameValue
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Audio: audio, MIMEType: mimeType})
	p.mu.Unlock()

	if p.Delay != nil {
		if err := p.Delay(ctx); err != nil {
			return "", err
		}
	}
	if p.Err != nil {
		return "", p.Err
	}
	return p.Text, nil
}

// CallCount returns the number of Transcribe invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}
