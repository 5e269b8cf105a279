package resilience

import (
	"context"
	"errors"

	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with retry and failover across
// multiple synthesis backends. Each backend gets its own retry budget and
// circuit breaker: transient faults (rate limits, timeouts) are retried
// with exponential backoff on the same backend, validation errors are never
// retried, and once a backend's budget is exhausted the chain advances.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
	retry RetryConfig
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend.
func NewTTSFallback(primary tts.Provider, cfg FallbackConfig, retry RetryConfig) *TTSFallback {
	retry.Retryable = transientTTS
	return &TTSFallback{
		group: NewFallbackGroup(primary, primary.Name(), cfg),
		retry: retry,
	}
}

// AddFallback registers an additional TTS provider at the end of the chain.
func (f *TTSFallback) AddFallback(provider tts.Provider) {
	f.group.AddFallback(provider.Name(), provider)
}

// Name implements tts.Provider.
func (f *TTSFallback) Name() string { return "fallback" }

// Chain returns the backend names in trial order.
func (f *TTSFallback) Chain() []string { return f.group.Names() }

// Synthesize implements tts.Provider, trying each healthy backend in order
// with per-backend retries.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Artifact, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (*tts.Artifact, error) {
		return RetryWithResult(ctx, f.retry, func() (*tts.Artifact, error) {
			return p.Synthesize(ctx, text, voice)
		})
	})
}

// transientTTS reports whether an error is worth retrying on the same
// backend. Validation failures are permanent: the same text and voice
// cannot start succeeding.
func transientTTS(err error) bool {
	return errors.Is(err, tts.ErrRateLimited) || errors.Is(err, tts.ErrTimeout)
}
