// Package vad defines the voice activity detection interfaces used by the
// capture segmenter.
//
// An Engine wraps a frame-level speech detector and hands out stateful
// per-stream sessions. Detection is synchronous: ProcessFrame classifies one
// frame and returns immediately, which keeps it usable inside the capture
// loop that gates what reaches the transcription stage.
//
// Engines must be safe for concurrent use. A single Session belongs to one
// stream and must not be shared across goroutines.
package vad

import "fmt"

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the PCM sample rate in Hz of the frames passed to
	// ProcessFrame. Common values: 8000, 16000, 48000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds.
	// ProcessFrame rejects frames that do not match.
	FrameSizeMs int

	// PositiveThreshold is the speech probability at or above which a frame
	// flips the session into speech. Range (0.0, 1.0].
	PositiveThreshold float64

	// NegativeThreshold is the probability at or below which an active
	// speech segment ends. Must be strictly less than PositiveThreshold;
	// the gap between the two is the hysteresis band that keeps natural
	// mid-sentence dips from splitting an utterance.
	NegativeThreshold float64
}

// Validate checks threshold ordering and frame parameters.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("vad: sample rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameSizeMs <= 0 {
		return fmt.Errorf("vad: frame size must be positive, got %dms", c.FrameSizeMs)
	}
	if c.PositiveThreshold <= 0 || c.PositiveThreshold > 1 {
		return fmt.Errorf("vad: positive threshold %v out of range (0,1]", c.PositiveThreshold)
	}
	if c.NegativeThreshold < 0 || c.NegativeThreshold >= c.PositiveThreshold {
		return fmt.Errorf("vad: negative threshold %v must be in [0, positive)", c.NegativeThreshold)
	}
	return nil
}

// Session is an active VAD session for one audio stream. Reset clears
// accumulated detection state without closing the session; Close releases
// resources and is safe to call more than once.
type Session interface {
	// ProcessFrame classifies a single frame of raw little-endian 16-bit
	// PCM. The frame must match the SampleRate and FrameSizeMs the session
	// was created with. It must not block.
	ProcessFrame(frame []byte) (Event, error)

	// Reset clears detection state so a restarted stream does not inherit
	// the previous segment's smoothing history.
	Reset()

	// Close releases the session. Subsequent ProcessFrame calls error.
	Close() error
}

// Engine is the factory for VAD sessions, implemented by each backend.
type Engine interface {
	// NewSession creates a session ready to accept frames. Returns an
	// error when the configuration is invalid or resources cannot be
	// allocated.
	NewSession(cfg Config) (Session, error)
}
