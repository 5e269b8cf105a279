// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., OpenAI TTS, Microsoft
// Edge TTS, or the operating system's bundled voice) and presents a uniform
// batch interface: one call synthesises one utterance into a transient audio
// [Artifact] on local disk. The artifact is exclusively owned by the caller,
// which must invoke [Artifact.Cleanup] on every exit path — success, playback
// error, or early cancellation — or temporary files will leak.
//
// Implementations must be safe for concurrent use. Each Synthesize call
// produces a uniquely named artifact; no two calls ever share a path.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis requests
// may run in parallel (e.g., overlapping voice turns from distinct sessions).
type Provider interface {
	// Synthesize converts text into spoken audio and returns a handle to the
	// resulting transient artifact. The caller owns the artifact and must call
	// Cleanup when done with it.
	//
	// Implementations classify failures using the package error taxonomy:
	// [ErrRateLimited] and [ErrTimeout] are transient and may be retried by the
	// caller; [ErrInvalidVoice] and other validation errors are permanent and
	// must not be retried.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (*Artifact, error)

	// Name returns the provider's registry name (e.g., "openai", "edge").
	// Used in logs and fallback-chain diagnostics.
	Name() string
}
