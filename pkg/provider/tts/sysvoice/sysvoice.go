// Package sysvoice provides a TTS provider that shells out to the speech
// synthesizer bundled with the operating system. It needs no network at
// all, which makes it the terminal entry of the fallback chain: if even
// sysvoice fails, the machine has no way to speak.
//
// macOS uses `say`; Linux uses `espeak`. Both write a WAV file.
package sysvoice

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider with the OS speech synthesizer.
type Provider struct {
	goos    string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithGOOS overrides runtime.GOOS detection. Useful for tests.
func WithGOOS(goos string) Option {
	return func(p *Provider) { p.goos = goos }
}

// WithTimeout bounds the synthesizer subprocess. Defaults to 15s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// New constructs a sysvoice provider.
func New(opts ...Option) *Provider {
	p := &Provider{goos: runtime.GOOS, timeout: 15 * time.Second}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "sysvoice" }

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	art := tts.NewArtifact(".wav", "audio/wav")

	var cmd *exec.Cmd
	switch p.goos {
	case "darwin":
		args := []string{"-o", art.Path, "--data-format=LEI16@22050"}
		if voice.ID != "" {
			args = append(args, "-v", voice.ID)
		}
		args = append(args, text)
		cmd = exec.CommandContext(ctx, "say", args...)
	case "linux":
		args := []string{"-w", art.Path}
		if voice.ID != "" {
			args = append(args, "-v", voice.ID)
		}
		args = append(args, text)
		cmd = exec.CommandContext(ctx, "espeak", args...)
	default:
		return nil, fmt.Errorf("sysvoice tts: unsupported platform %q", p.goos)
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		art.Cleanup()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("sysvoice tts: %w", tts.ErrTimeout)
		}
		return nil, fmt.Errorf("sysvoice tts: synthesizer failed: %w (output: %s)", err, out)
	}
	return art, nil
}
