// Package playback coordinates audio output and captions on the client side
// of the pipeline. A Coordinator consumes pipeline milestones (it satisfies
// the orchestrator's event sink) and drives a small state machine:
//
//	Listening → Processing → Speaking → Listening
//
// Assistant text arrives before its audio; the coordinator holds it until
// the audio is ready so the caption and the voice always appear together.
package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voxbridge/voxbridge/internal/voice"
)

// State is the coordinator's position in the turn cycle.
type State int

const (
	// Listening means idle, waiting for the user to speak.
	Listening State = iota

	// Processing means an utterance is in the pipeline.
	Processing

	// Speaking means assistant audio is playing.
	Speaking
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Processing:
		return "processing"
	case Speaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Notice is a user-facing condition distinct from normal captions.
type Notice int

const (
	// NoticeRecognitionUnavailable tells the user their speech was not
	// understood. The turn is over; nothing else is wrong.
	NoticeRecognitionUnavailable Notice = iota

	// NoticeTechnicalFailure tells the user the turn failed for reasons
	// other than recognition.
	NoticeTechnicalFailure
)

// CaptionSink renders captions and notices. Implementations belong to the
// UI layer; the coordinator never touches ambient globals.
type CaptionSink interface {
	// ShowUser displays the recognised user utterance.
	ShowUser(text string)

	// ShowAssistant displays the assistant reply with estimated per-word
	// timings for karaoke-style highlighting.
	ShowAssistant(text string, timings []WordTiming)

	// ShowNotice displays a failure notice.
	ShowNotice(n Notice)
}

// Player owns the audio device. Play starts playback and returns a channel
// that closes when playback finishes, naturally or via Stop.
type Player interface {
	Play(audio []byte, mimeType string) (done <-chan struct{}, err error)
	Stop() error

	// Duration reports how long the given audio will play. Used for word
	// timing estimation.
	Duration(audio []byte, mimeType string) (time.Duration, error)
}

// Coordinator pairs pipeline events with playback and captions. Safe for
// concurrent use.
type Coordinator struct {
	captions CaptionSink
	player   Player

	mu        sync.Mutex
	state     State
	heldReply string
	playing   bool
}

// Coordinator consumes the orchestrator's milestones directly.
var _ voice.EventSink = (*Coordinator)(nil)

// New constructs a Coordinator in the Listening state.
func New(captions CaptionSink, player Player) *Coordinator {
	return &Coordinator{captions: captions, player: player, state: Listening}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Begin moves Listening → Processing when the user's utterance is sent.
func (c *Coordinator) Begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Processing
	c.heldReply = ""
}

// Transcript implements the transcript milestone: the user caption shows as
// soon as recognition lands.
func (c *Coordinator) Transcript(text string, _ float64) error {
	c.mu.Lock()
	c.state = Processing
	c.mu.Unlock()
	c.captions.ShowUser(text)
	return nil
}

// Reply implements the reply milestone. The text is held until audio is
// ready; showing it now would caption a voice that is not speaking yet.
func (c *Coordinator) Reply(text string, _ float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heldReply = text
	return nil
}

// Audio implements the terminal milestone: show the held caption with word
// timings and start playback.
func (c *Coordinator) Audio(audio []byte, mimeType, _ string, _ voice.Timings) error {
	c.mu.Lock()
	text := c.heldReply
	c.heldReply = ""
	c.mu.Unlock()

	dur, err := c.player.Duration(audio, mimeType)
	if err != nil {
		dur = 0
	}
	c.captions.ShowAssistant(text, EstimateWordTimings(text, dur))

	done, err := c.player.Play(audio, mimeType)
	if err != nil {
		c.mu.Lock()
		c.state = Listening
		c.mu.Unlock()
		return fmt.Errorf("playback: start: %w", err)
	}

	c.mu.Lock()
	c.state = Speaking
	c.playing = true
	c.mu.Unlock()

	go func() {
		<-done
		c.mu.Lock()
		if c.playing {
			c.playing = false
			c.state = Listening
		}
		c.mu.Unlock()
	}()
	return nil
}

// Fail surfaces a failed turn: recognition failures and technical failures
// get distinct notices. The state always returns to Listening.
func (c *Coordinator) Fail(err error) {
	c.mu.Lock()
	c.heldReply = ""
	c.state = Listening
	c.mu.Unlock()

	if errors.Is(err, voice.ErrRecognitionUnavailable) {
		c.captions.ShowNotice(NoticeRecognitionUnavailable)
		return
	}
	c.captions.ShowNotice(NoticeTechnicalFailure)
}

// Stop halts playback mid-turn. The audio device is always released and the
// state reset, even when the player reports an error.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	wasPlaying := c.playing
	c.playing = false
	c.heldReply = ""
	c.state = Listening
	c.mu.Unlock()

	if !wasPlaying {
		return nil
	}
	if err := c.player.Stop(); err != nil {
		return fmt.Errorf("playback: stop: %w", err)
	}
	return nil
}
