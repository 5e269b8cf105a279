// Package energy implements a dependency-free VAD engine based on frame
// RMS energy against an adaptive noise floor.
//
// It is not a substitute for a model-based detector in noisy rooms, but it
// is deterministic, allocation-free per frame, and good enough for close-mic
// push-to-talk style capture. The probability it reports is a normalized
// energy ratio, shaped so the hysteresis thresholds behave like they would
// with a model detector.
package energy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/voxbridge/voxbridge/pkg/provider/vad"
)

// floorDecay is the EMA coefficient for the adaptive noise floor. The floor
// only adapts outside speech so loud utterances do not raise it.
const floorDecay = 0.95

var _ vad.Engine = (*Engine)(nil)

// Engine creates energy-based VAD sessions.
type Engine struct{}

// New constructs the engine.
func New() *Engine { return &Engine{} }

// NewSession implements vad.Engine.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &session{
		cfg:        cfg,
		frameBytes: cfg.SampleRate * cfg.FrameSizeMs / 1000 * 2,
	}, nil
}

var _ vad.Session = (*session)(nil)

type session struct {
	cfg        vad.Config
	frameBytes int

	inSpeech bool
	floor    float64
	primed   bool
	closed   bool
}

func (s *session) ProcessFrame(frame []byte) (vad.Event, error) {
	if s.closed {
		return vad.Event{}, errors.New("energy vad: session closed")
	}
	if len(frame) != s.frameBytes {
		return vad.Event{}, fmt.Errorf("energy vad: frame is %d bytes, want %d", len(frame), s.frameBytes)
	}

	rms := frameRMS(frame)

	if !s.primed {
		s.floor = rms
		s.primed = true
	} else if !s.inSpeech {
		s.floor = floorDecay*s.floor + (1-floorDecay)*rms
	}

	prob := probability(rms, s.floor)

	var typ vad.EventType
	switch {
	case !s.inSpeech && prob >= s.cfg.PositiveThreshold:
		s.inSpeech = true
		typ = vad.SpeechStart
	case s.inSpeech && prob <= s.cfg.NegativeThreshold:
		s.inSpeech = false
		typ = vad.SpeechEnd
	case s.inSpeech:
		typ = vad.SpeechContinue
	default:
		typ = vad.Silence
	}

	return vad.Event{Type: typ, Probability: prob}, nil
}

func (s *session) Reset() {
	s.inSpeech = false
	s.floor = 0
	s.primed = false
}

func (s *session) Close() error {
	s.closed = true
	return nil
}

// frameRMS computes the root-mean-square amplitude of little-endian 16-bit
// PCM, normalized to [0,1].
func frameRMS(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(frame[2*i:]))
		v := float64(sample) / math.MaxInt16
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// probability maps an RMS value to a pseudo speech probability relative to
// the noise floor. Energy at the floor scores well below 0.5; energy several
// times the floor approaches 1.
func probability(rms, floor float64) float64 {
	const eps = 1e-6
	ref := 3*floor + eps
	p := rms / (rms + ref)
	if p > 1 {
		p = 1
	}
	return p
}
