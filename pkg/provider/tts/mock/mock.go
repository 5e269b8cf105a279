// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to return a prepared artifact (or a scripted error sequence)
// and to verify the text and VoiceProfile passed to synthesis.
package mock

import (
	"context"
	"os"
	"sync"

	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
	// Voice is the VoiceProfile passed to Synthesize.
	Voice tts.VoiceProfile
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// NameValue is returned by Name. Defaults to "mock" when empty.
	NameValue string

	// Audio is written to a fresh temp artifact on each successful call.
	// Defaults to a small placeholder when nil.
	Audio []byte

	// Errs is a script of errors consumed one per call; once exhausted,
	// calls succeed. A nil entry means that call succeeds.
	Errs []error

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

var _ tts.Provider = (*Provider)(nil)

// Name implements tts.Provider.
func (p *Provider) Name() string {
	if p.NameValue == "" {
		return "mock"
	}
	return p.NameValue
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Artifact, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text, Voice: voice})
	var err error
	if len(p.Errs) > 0 {
		err = p.Errs[0]
		p.Errs = p.Errs[1:]
	}
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}

	audio := p.Audio
	if audio == nil {
		audio = []byte("mock-audio")
	}
	art := tts.NewArtifact(".mp3", "audio/mpeg")
	if err := os.WriteFile(art.Path, audio, 0o600); err != nil {
		return nil, err
	}
	return art, nil
}

// CallCount returns the number of Synthesize invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}
