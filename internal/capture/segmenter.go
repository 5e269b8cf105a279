// Package capture turns a continuous microphone stream into discrete
// utterances. A Segmenter pulls PCM frames from a Source, runs them through
// a VAD session with hysteresis, and hands complete utterances to the
// caller through hooks. Utterances shorter than the minimum duration are
// reported as misfires and never reach the network.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/voxbridge/voxbridge/pkg/provider/vad"
)

// Source is a microphone abstraction. ReadFrame blocks until one PCM frame
// is available and returns io.EOF when the stream ends. The Segmenter owns
// the source and closes it exactly once.
type Source interface {
	// ReadFrame returns one frame of little-endian 16-bit PCM sized to
	// the configured frame duration.
	ReadFrame() ([]byte, error)

	// Close releases the underlying device.
	Close() error
}

// Hooks receive segmentation events. All hooks are optional and are invoked
// synchronously from the Run loop; a slow hook stalls capture.
type Hooks struct {
	// OnSpeechStart fires when speech begins.
	OnSpeechStart func()

	// OnSpeechEnd delivers a complete utterance: the buffered PCM and its
	// duration. The slice is owned by the callee.
	OnSpeechEnd func(pcm []byte, duration time.Duration)

	// OnMisfire fires instead of OnSpeechEnd when the utterance was
	// shorter than the minimum duration.
	OnMisfire func(duration time.Duration)
}

// Config tunes a Segmenter.
type Config struct {
	// VAD configures the detection session. See vad.Config.
	VAD vad.Config

	// MinUtterance is the threshold below which a finished segment counts
	// as a misfire. Default: 400ms.
	MinUtterance time.Duration
}

// Segmenter drives a Source through a VAD session. Create with New, run
// with Run, release with Close.
type Segmenter struct {
	src     Source
	session vad.Session
	hooks   Hooks
	cfg     Config

	frameDur time.Duration

	closeOnce sync.Once
	closeErr  error
}

// New constructs a Segmenter. The engine session is created immediately so
// configuration errors surface before capture starts.
func New(src Source, engine vad.Engine, cfg Config, hooks Hooks) (*Segmenter, error) {
	if cfg.MinUtterance <= 0 {
		cfg.MinUtterance = 400 * time.Millisecond
	}
	session, err := engine.NewSession(cfg.VAD)
	if err != nil {
		return nil, fmt.Errorf("capture: create vad session: %w", err)
	}
	return &Segmenter{
		src:      src,
		session:  session,
		hooks:    hooks,
		cfg:      cfg,
		frameDur: time.Duration(cfg.VAD.FrameSizeMs) * time.Millisecond,
	}, nil
}

// Run processes frames until ctx is cancelled, the source ends, or a frame
// fails. A speech segment still open when the loop ends is flushed through
// the hooks. Run does not close the source; pair it with Close.
func (s *Segmenter) Run(ctx context.Context) error {
	var (
		buf        []byte
		inSpeech   bool
		frameCount int
	)

	flush := func() {
		if !inSpeech {
			return
		}
		inSpeech = false
		duration := time.Duration(frameCount) * s.frameDur
		pcm := buf
		buf = nil
		frameCount = 0

		if duration < s.cfg.MinUtterance {
			if s.hooks.OnMisfire != nil {
				s.hooks.OnMisfire(duration)
			}
			return
		}
		if s.hooks.OnSpeechEnd != nil {
			s.hooks.OnSpeechEnd(pcm, duration)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			flush()
			return err
		}

		frame, err := s.src.ReadFrame()
		if err != nil {
			flush()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("capture: read frame: %w", err)
		}

		event, err := s.session.ProcessFrame(frame)
		if err != nil {
			flush()
			return fmt.Errorf("capture: process frame: %w", err)
		}

		switch event.Type {
		case vad.SpeechStart:
			inSpeech = true
			buf = append(buf[:0:0], frame...)
			frameCount = 1
			if s.hooks.OnSpeechStart != nil {
				s.hooks.OnSpeechStart()
			}
		case vad.SpeechContinue:
			if inSpeech {
				buf = append(buf, frame...)
				frameCount++
			}
		case vad.SpeechEnd:
			if inSpeech {
				buf = append(buf, frame...)
				frameCount++
			}
			flush()
		}
	}
}

// Close releases the VAD session and the source. Safe to call more than
// once; only the first call touches the microphone handle.
func (s *Segmenter) Close() error {
	s.closeOnce.Do(func() {
		sessionErr := s.session.Close()
		srcErr := s.src.Close()
		s.closeErr = errors.Join(sessionErr, srcErr)
	})
	return s.closeErr
}
