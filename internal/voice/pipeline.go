// Package voice orchestrates one voice turn: recorded audio in, transcript,
// grounded reply and synthesized speech out. The stage order is fixed;
// transcription and backend session acquisition are the only two stages
// allowed to run in parallel.
package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxbridge/voxbridge/internal/completion"
	"github.com/voxbridge/voxbridge/internal/convo"
	"github.com/voxbridge/voxbridge/internal/observe"
	"github.com/voxbridge/voxbridge/internal/voicetext"
	"github.com/voxbridge/voxbridge/pkg/provider/stt"
	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

// SentinelTranscript is the transcript substituted when speech recognition
// fails. The pipeline never sends it to the completion backend.
const SentinelTranscript = "[speech recognition unavailable]"

// Hard caps applied to provider output before it goes anywhere else.
const (
	maxTranscriptChars = 1000
	maxReplyChars      = 5000
)

// Pipeline errors, distinguishable with errors.Is.
var (
	// ErrEmptyAudio rejects a request with no audio payload.
	ErrEmptyAudio = errors.New("voice: empty audio")

	// ErrAudioTooLarge rejects an oversized upload before any network call.
	ErrAudioTooLarge = errors.New("voice: audio exceeds size limit")

	// ErrUtteranceTooShort rejects utterances below the minimum duration.
	ErrUtteranceTooShort = errors.New("voice: utterance too short")

	// ErrRecognitionUnavailable marks a turn where speech recognition
	// failed. The transcript milestone still fires with the sentinel text
	// so the client can tell the user; no later stage runs.
	ErrRecognitionUnavailable = errors.New("voice: speech recognition unavailable")

	// ErrPipelineTimeout marks a turn that hit the overall deadline, as
	// opposed to an individual provider failing.
	ErrPipelineTimeout = errors.New("voice: pipeline deadline exceeded")
)

// Config tunes a [Pipeline].
type Config struct {
	// Deadline bounds the whole turn. Default: 60s.
	Deadline time.Duration

	// MaxAudioBytes rejects larger uploads. Default: 10 MiB.
	MaxAudioBytes int64

	// MinUtterance rejects shorter utterances when the request carries a
	// duration hint. Default: 400ms.
	MinUtterance time.Duration

	// MaxSentences and MaxWords bound the spoken reply; see voicetext.
	MaxSentences int
	MaxWords     int

	// Voice is the synthesis voice profile.
	Voice tts.VoiceProfile
}

func (c Config) withDefaults() Config {
	if c.Deadline <= 0 {
		c.Deadline = 60 * time.Second
	}
	if c.MaxAudioBytes <= 0 {
		c.MaxAudioBytes = 10 << 20
	}
	if c.MinUtterance <= 0 {
		c.MinUtterance = 400 * time.Millisecond
	}
	return c
}

// Request is one recorded utterance plus its conversation context.
type Request struct {
	// Audio is the complete encoded utterance.
	Audio []byte

	// MIMEType identifies the audio container, e.g. "audio/webm".
	MIMEType string

	// Conversation is the opaque window token from the previous turn.
	// Empty means a fresh conversation.
	Conversation string

	// Duration is an optional utterance duration hint from the capture
	// layer. Zero means unknown; the minimum-duration check is skipped.
	Duration time.Duration

	// ParseSeconds and BufferSeconds carry the transport's own upload
	// timings into the Timings record.
	ParseSeconds  float64
	BufferSeconds float64
}

// Result is the aggregate outcome of a successful turn.
type Result struct {
	Transcript   string
	Reply        string
	Audio        []byte
	AudioMIME    string
	Conversation string
	Timings      Timings
}

// Pipeline runs voice turns. Construct with New; safe for concurrent use.
type Pipeline struct {
	stt       stt.Provider
	completer completion.Completer
	tts       tts.Provider
	metrics   *observe.Metrics
	stats     *Stats
	cfg       Config
}

// New constructs a Pipeline. metrics may be nil in tests; stats may be nil
// when the stats endpoint is not wanted.
func New(sttProvider stt.Provider, completer completion.Completer, ttsProvider tts.Provider, metrics *observe.Metrics, stats *Stats, cfg Config) *Pipeline {
	return &Pipeline{
		stt:       sttProvider,
		completer: completer,
		tts:       ttsProvider,
		metrics:   metrics,
		stats:     stats,
		cfg:       cfg.withDefaults(),
	}
}

// Run executes the aggregate variant: the whole turn runs to completion and
// everything is returned at once.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	return p.run(ctx, req, discardSink{})
}

// RunStream executes the streaming variant, emitting each milestone to sink
// as soon as it completes.
func (p *Pipeline) RunStream(ctx context.Context, req Request, sink EventSink) error {
	_, err := p.run(ctx, req, sink)
	return err
}

func (p *Pipeline) run(ctx context.Context, req Request, sink EventSink) (res *Result, err error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Deadline)
	defer cancel()

	start := time.Now()
	log := observe.Logger(ctx)

	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			if errors.Is(err, ErrPipelineTimeout) {
				status = "timeout"
			}
			if p.stats != nil {
				p.stats.IncrErrors()
			}
		}
		if p.metrics != nil {
			p.metrics.RecordTurn(ctx, status)
		}
	}()

	result := &Result{AudioMIME: "audio/mpeg"}
	t := &result.Timings
	t.Buffer = req.BufferSeconds

	if err := stage(&t.Parse, func() error { return p.validate(req) }); err != nil {
		return nil, err
	}
	t.Parse += req.ParseSeconds

	// Transcription and session acquisition are independent; run them
	// together. This is the only parallel section of the turn.
	var sessionID string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return stage(&t.Transcribe, func() error {
			text, sttErr := p.stt.Transcribe(gctx, req.Audio, req.MIMEType)
			if sttErr != nil || strings.TrimSpace(text) == "" {
				// Degrade gracefully: the turn fails, but with a
				// speakable explanation rather than a stack of
				// provider internals.
				log.Warn("transcription failed", "error", sttErr)
				result.Transcript = SentinelTranscript
				return nil
			}
			result.Transcript = clampText(text, maxTranscriptChars)
			return nil
		})
	})
	if p.completer.RequiresSession() {
		g.Go(func() error {
			return stage(&t.Session, func() error {
				var sessErr error
				sessionID, sessErr = p.completer.NewSession(gctx)
				if sessErr != nil {
					return fmt.Errorf("voice: acquire session: %w", sessErr)
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, p.deadline(ctx, err)
	}
	if p.metrics != nil {
		p.metrics.STTDuration.Record(ctx, t.Transcribe)
		p.metrics.SessionDuration.Record(ctx, t.Session)
	}
	if p.stats != nil {
		p.stats.RecordSTT(secondsToDuration(t.Transcribe))
	}

	if err := sink.Transcript(result.Transcript, t.Transcribe); err != nil {
		return nil, err
	}
	if result.Transcript == SentinelTranscript {
		return nil, ErrRecognitionUnavailable
	}

	var window *convo.Window
	_ = stage(&t.Decode, func() error {
		window = convo.Decode(req.Conversation)
		window.Append(convo.RoleUser, result.Transcript)
		return nil
	})

	if err := stage(&t.Completion, func() error {
		raw, compErr := p.completer.Complete(ctx, window.Messages(), sessionID)
		if compErr != nil {
			return fmt.Errorf("voice: completion: %w", compErr)
		}
		raw = clampText(raw, maxReplyChars)
		result.Reply = voicetext.TruncateForVoice(raw, voicetext.Options{
			MaxSentences: p.cfg.MaxSentences,
			MaxWords:     p.cfg.MaxWords,
		})
		window.Append(convo.RoleAssistant, result.Reply)
		return nil
	}); err != nil {
		return nil, p.deadline(ctx, err)
	}
	if p.metrics != nil {
		p.metrics.CompletionDuration.Record(ctx, t.Completion)
	}
	if p.stats != nil {
		p.stats.RecordCompletion(secondsToDuration(t.Completion))
	}

	if err := sink.Reply(result.Reply, t.Completion); err != nil {
		return nil, err
	}

	var artifact *tts.Artifact
	if err := stage(&t.TTS, func() error {
		var ttsErr error
		artifact, ttsErr = p.tts.Synthesize(ctx, result.Reply, p.cfg.Voice)
		if ttsErr != nil {
			return fmt.Errorf("voice: synthesis: %w", ttsErr)
		}
		return nil
	}); err != nil {
		return nil, p.deadline(ctx, err)
	}
	// Backstop: the explicit cleanup stage below normally removes the
	// artifact, but every early return after this point must too.
	defer artifact.Cleanup()

	if p.metrics != nil {
		p.metrics.TTSDuration.Record(ctx, t.TTS)
	}
	if p.stats != nil {
		p.stats.RecordTTS(secondsToDuration(t.TTS))
	}

	if err := stage(&t.Read, func() error {
		var readErr error
		result.Audio, readErr = artifact.ReadAll()
		if readErr != nil {
			return fmt.Errorf("voice: read artifact: %w", readErr)
		}
		result.AudioMIME = artifact.MIMEType
		return nil
	}); err != nil {
		return nil, err
	}

	if err := stage(&t.Cleanup, func() error {
		if cleanErr := artifact.Cleanup(); cleanErr != nil {
			log.Warn("artifact cleanup failed", "error", cleanErr)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := stage(&t.Encode, func() error {
		token, encErr := window.Encode()
		if encErr != nil {
			return fmt.Errorf("voice: encode conversation: %w", encErr)
		}
		result.Conversation = token
		return nil
	}); err != nil {
		return nil, err
	}

	t.Total = time.Since(start).Seconds()
	if p.metrics != nil {
		p.metrics.PipelineDuration.Record(ctx, t.Total)
	}
	if p.stats != nil {
		p.stats.RecordTurn(secondsToDuration(t.Total))
		p.stats.IncrTurns()
	}
	log.Info("voice turn completed",
		"transcribe_s", t.Transcribe,
		"completion_s", t.Completion,
		"tts_s", t.TTS,
		"total_s", t.Total,
	)

	if err := sink.Audio(result.Audio, result.AudioMIME, result.Conversation, result.Timings); err != nil {
		return nil, err
	}
	return result, nil
}

// validate applies the pre-network rejections.
func (p *Pipeline) validate(req Request) error {
	if len(req.Audio) == 0 {
		return ErrEmptyAudio
	}
	if int64(len(req.Audio)) > p.cfg.MaxAudioBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrAudioTooLarge, len(req.Audio), p.cfg.MaxAudioBytes)
	}
	if req.Duration > 0 && req.Duration < p.cfg.MinUtterance {
		return fmt.Errorf("%w: %s (minimum %s)", ErrUtteranceTooShort, req.Duration, p.cfg.MinUtterance)
	}
	if _, err := stt.ExtensionForMIME(req.MIMEType); err != nil {
		return err
	}
	return nil
}

// deadline retags errors caused by the overall turn deadline so transports
// can answer 504 instead of 502.
func (p *Pipeline) deadline(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrPipelineTimeout, err)
	}
	return err
}

// clampText cuts s to at most n characters, appending an ellipsis when it
// was cut.
func clampText(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
