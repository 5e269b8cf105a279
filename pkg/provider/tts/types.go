package tts

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// VoiceProfile describes a TTS voice configuration.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier (e.g., "nova",
	// "en-US-EricNeural", an ElevenLabs voice UUID).
	ID string

	// Language is the ISO-639-1 language code used by providers that select
	// voices per language rather than per identifier.
	Language string

	// Speed adjusts speaking rate (0.5–2.0, 0 = provider default).
	Speed float64
}

// Error taxonomy. Providers wrap failures in one of these sentinels so that
// retry and fallback layers can classify without string matching.
var (
	// ErrRateLimited marks a rate-limit rejection; transient, retry with backoff.
	ErrRateLimited = errors.New("tts: rate limited")

	// ErrTimeout marks a provider timeout; transient, retry with backoff.
	ErrTimeout = errors.New("tts: provider timeout")

	// ErrInvalidVoice marks a validation failure (unknown voice, bad input).
	// Permanent: retrying cannot succeed.
	ErrInvalidVoice = errors.New("tts: invalid voice or input")
)

// ClassifyStatus maps an HTTP status code from a provider API to the package
// error taxonomy. Returns nil for 2xx codes.
func ClassifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusGatewayTimeout || code == http.StatusRequestTimeout:
		return ErrTimeout
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity || code == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrInvalidVoice, code)
	default:
		return fmt.Errorf("tts: provider returned status %d", code)
	}
}

// Artifact is a handle to a synthesised audio file in ephemeral storage.
// It is exclusively owned by the pipeline invocation that created it.
type Artifact struct {
	// Path is the absolute location of the audio file.
	Path string

	// MIMEType is the container format of the audio (e.g., "audio/mpeg").
	MIMEType string
}

// NewArtifact reserves a uniquely named path in the OS temp directory with the
// given extension (e.g., ".mp3"). The file itself is created by the provider.
func NewArtifact(ext, mimeType string) *Artifact {
	return &Artifact{
		Path:     filepath.Join(os.TempDir(), uuid.NewString()+ext),
		MIMEType: mimeType,
	}
}

// ReadAll loads the entire artifact into memory.
func (a *Artifact) ReadAll() ([]byte, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("tts: read artifact: %w", err)
	}
	return data, nil
}

// Cleanup removes the artifact file. Safe to call on an artifact whose file
// was never written; a missing file is not an error.
func (a *Artifact) Cleanup() error {
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("tts: cleanup artifact: %w", err)
	}
	return nil
}
