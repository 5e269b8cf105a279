package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxbridge/voxbridge/internal/voice"
)

// fakeCaptions records caption calls.
type fakeCaptions struct {
	mu         sync.Mutex
	userTexts  []string
	replies    []string
	replyTimes [][]WordTiming
	notices    []Notice
}

func (f *fakeCaptions) ShowUser(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userTexts = append(f.userTexts, text)
}

func (f *fakeCaptions) ShowAssistant(text string, timings []WordTiming) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
	f.replyTimes = append(f.replyTimes, timings)
}

func (f *fakeCaptions) ShowNotice(n Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n)
}

// fakePlayer simulates the audio device; playback finishes when the test
// calls finish().
type fakePlayer struct {
	mu        sync.Mutex
	playErr   error
	stopErr   error
	duration  time.Duration
	done      chan struct{}
	playCalls int
	stopCalls int
}

func (f *fakePlayer) Play(audio []byte, mimeType string) (<-chan struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playCalls++
	if f.playErr != nil {
		return nil, f.playErr
	}
	f.done = make(chan struct{})
	return f.done, nil
}

func (f *fakePlayer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	if f.done != nil {
		close(f.done)
		f.done = nil
	}
	return f.stopErr
}

func (f *fakePlayer) Duration(audio []byte, mimeType string) (time.Duration, error) {
	return f.duration, nil
}

func (f *fakePlayer) finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done != nil {
		close(f.done)
		f.done = nil
	}
}

func waitForState(t *testing.T, c *Coordinator, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", c.State(), want)
}

func TestCoordinator_TurnCycle(t *testing.T) {
	captions := &fakeCaptions{}
	player := &fakePlayer{duration: 2 * time.Second}
	c := New(captions, player)

	if c.State() != Listening {
		t.Fatalf("initial state = %v, want listening", c.State())
	}

	c.Begin()
	if c.State() != Processing {
		t.Fatalf("state after Begin = %v, want processing", c.State())
	}

	if err := c.Transcript("turn on the lights", 0.5); err != nil {
		t.Fatal(err)
	}
	if len(captions.userTexts) != 1 || captions.userTexts[0] != "turn on the lights" {
		t.Fatalf("user captions = %v", captions.userTexts)
	}

	// The reply caption must NOT show yet; it waits for the audio.
	if err := c.Reply("Lights are on.", 1.2); err != nil {
		t.Fatal(err)
	}
	if len(captions.replies) != 0 {
		t.Fatalf("assistant caption shown before audio: %v", captions.replies)
	}

	if err := c.Audio([]byte("mp3"), "audio/mpeg", "token", voice.Timings{}); err != nil {
		t.Fatal(err)
	}
	if c.State() != Speaking {
		t.Fatalf("state after Audio = %v, want speaking", c.State())
	}
	if len(captions.replies) != 1 || captions.replies[0] != "Lights are on." {
		t.Fatalf("assistant captions = %v", captions.replies)
	}
	if len(captions.replyTimes[0]) != 3 {
		t.Fatalf("word timings = %v, want 3 words", captions.replyTimes[0])
	}

	// Playback finishing returns the coordinator to listening.
	player.finish()
	waitForState(t, c, Listening)
}

func TestCoordinator_PlayErrorResetsState(t *testing.T) {
	captions := &fakeCaptions{}
	player := &fakePlayer{playErr: errors.New("device busy")}
	c := New(captions, player)

	c.Begin()
	c.Reply("text", 0)
	if err := c.Audio([]byte("mp3"), "audio/mpeg", "", voice.Timings{}); err == nil {
		t.Fatal("expected error from failing player")
	}
	if c.State() != Listening {
		t.Fatalf("state = %v, want listening after play failure", c.State())
	}
}

func TestCoordinator_StopMidPlayback(t *testing.T) {
	captions := &fakeCaptions{}
	player := &fakePlayer{}
	c := New(captions, player)

	c.Begin()
	c.Reply("long reply", 0)
	if err := c.Audio([]byte("mp3"), "audio/mpeg", "", voice.Timings{}); err != nil {
		t.Fatal(err)
	}
	if c.State() != Speaking {
		t.Fatalf("state = %v, want speaking", c.State())
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.State() != Listening {
		t.Fatalf("state = %v, want listening after Stop", c.State())
	}
	if player.stopCalls != 1 {
		t.Fatalf("player.Stop called %d times, want 1", player.stopCalls)
	}
}

func TestCoordinator_StopWhileIdleSkipsPlayer(t *testing.T) {
	player := &fakePlayer{}
	c := New(&fakeCaptions{}, player)

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if player.stopCalls != 0 {
		t.Fatalf("player.Stop called %d times, want 0", player.stopCalls)
	}
}

func TestCoordinator_StopResetsStateEvenOnPlayerError(t *testing.T) {
	player := &fakePlayer{stopErr: errors.New("device wedged")}
	c := New(&fakeCaptions{}, player)

	c.Begin()
	c.Reply("x", 0)
	if err := c.Audio([]byte("mp3"), "audio/mpeg", "", voice.Timings{}); err != nil {
		t.Fatal(err)
	}

	if err := c.Stop(); err == nil {
		t.Fatal("expected player error")
	}
	if c.State() != Listening {
		t.Fatalf("state = %v, want listening despite player error", c.State())
	}
}

func TestCoordinator_FailNotices(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Notice
	}{
		{"recognition", voice.ErrRecognitionUnavailable, NoticeRecognitionUnavailable},
		{"wrapped recognition", errors.Join(errors.New("turn"), voice.ErrRecognitionUnavailable), NoticeRecognitionUnavailable},
		{"technical", errors.New("backend exploded"), NoticeTechnicalFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captions := &fakeCaptions{}
			c := New(captions, &fakePlayer{})

			c.Begin()
			c.Fail(tt.err)

			if c.State() != Listening {
				t.Fatalf("state = %v, want listening", c.State())
			}
			if len(captions.notices) != 1 || captions.notices[0] != tt.want {
				t.Fatalf("notices = %v, want [%v]", captions.notices, tt.want)
			}
		})
	}
}

func TestCoordinator_FailDropsHeldReply(t *testing.T) {
	captions := &fakeCaptions{}
	player := &fakePlayer{}
	c := New(captions, player)

	c.Begin()
	c.Reply("never shown", 0)
	c.Fail(errors.New("synthesis failed"))

	// A later turn must not leak the dropped reply.
	c.Begin()
	c.Reply("shown", 0)
	if err := c.Audio([]byte("mp3"), "audio/mpeg", "", voice.Timings{}); err != nil {
		t.Fatal(err)
	}
	if len(captions.replies) != 1 || captions.replies[0] != "shown" {
		t.Fatalf("replies = %v, want [shown]", captions.replies)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Listening, "listening"},
		{Processing, "processing"},
		{Speaking, "speaking"},
		{State(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestEstimateWordTimings(t *testing.T) {
	timings := EstimateWordTimings("one two three four", 4*time.Second)
	if len(timings) != 4 {
		t.Fatalf("len = %d, want 4", len(timings))
	}
	if timings[0].Word != "one" || timings[0].Start != 0 || timings[0].End != time.Second {
		t.Errorf("timings[0] = %+v", timings[0])
	}
	if timings[3].Start != 3*time.Second || timings[3].End != 4*time.Second {
		t.Errorf("timings[3] = %+v, last word must end at total", timings[3])
	}
	for i := 1; i < len(timings); i++ {
		if timings[i].Start != timings[i-1].End {
			t.Errorf("gap between word %d and %d: %v != %v", i-1, i, timings[i-1].End, timings[i].Start)
		}
	}
}

func TestEstimateWordTimings_Degenerate(t *testing.T) {
	if got := EstimateWordTimings("", time.Second); got != nil {
		t.Errorf("empty text: %v, want nil", got)
	}
	if got := EstimateWordTimings("words here", 0); got != nil {
		t.Errorf("zero duration: %v, want nil", got)
	}
}
