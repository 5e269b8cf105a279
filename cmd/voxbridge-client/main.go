// Command voxbridge-client is a terminal client for the voxbridge server. It
// reads raw little-endian 16-bit mono PCM from a file or stdin (pipe your
// microphone in with e.g. `arecord -f S16_LE -r 16000 -c 1 -t raw -`),
// segments it into utterances with the energy VAD, sends each utterance
// through the aggregate inference endpoint, and plays the reply while
// printing captions.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/voxbridge/voxbridge/internal/capture"
	"github.com/voxbridge/voxbridge/internal/playback"
	"github.com/voxbridge/voxbridge/internal/voice"
	"github.com/voxbridge/voxbridge/pkg/provider/vad"
	"github.com/voxbridge/voxbridge/pkg/provider/vad/energy"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		serverURL  = flag.String("server", "http://localhost:8080", "voxbridge server base URL")
		inputPath  = flag.String("input", "-", "raw PCM input file, or - for stdin")
		sampleRate = flag.Int("rate", 16000, "PCM sample rate in Hz")
		frameMs    = flag.Int("frame", 30, "VAD frame size in milliseconds")
		playCmd    = flag.String("play", "", "command to play reply audio (receives the file path); empty saves the file only")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	input := os.Stdin
	if *inputPath != "-" {
		f, err := os.Open(*inputPath)
		if err != nil {
			slog.Error("open input", "err", err)
			return 1
		}
		defer f.Close()
		input = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &turnClient{
		baseURL: *serverURL,
		http:    &http.Client{Timeout: 90 * time.Second},
	}
	coord := playback.New(&terminalCaptions{}, &execPlayer{command: *playCmd})

	rate := *sampleRate
	src := &readerSource{
		r:          input,
		frameBytes: rate * *frameMs / 1000 * 2,
	}

	seg, err := capture.New(src, energy.New(), capture.Config{
		VAD: vad.Config{
			SampleRate:        rate,
			FrameSizeMs:       *frameMs,
			PositiveThreshold: 0.5,
			NegativeThreshold: 0.35,
		},
	}, capture.Hooks{
		OnSpeechStart: func() {
			slog.Debug("speech started")
		},
		OnSpeechEnd: func(pcm []byte, duration time.Duration) {
			coord.Begin()
			if err := client.turn(ctx, coord, pcm, rate, duration); err != nil {
				slog.Warn("turn failed", "err", err)
				coord.Fail(err)
			}
		},
		OnMisfire: func(duration time.Duration) {
			slog.Debug("utterance too short", "duration", duration)
		},
	})
	if err != nil {
		slog.Error("create segmenter", "err", err)
		return 1
	}
	defer seg.Close()

	slog.Info("listening", "server", *serverURL, "rate", rate)
	if err := seg.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("capture loop", "err", err)
		return 1
	}
	coord.Stop()
	return 0
}

// readerSource adapts an io.Reader of raw PCM into fixed-size frames.
type readerSource struct {
	r          io.Reader
	frameBytes int
	closeOnce  sync.Once
}

func (s *readerSource) ReadFrame() ([]byte, error) {
	frame := make([]byte, s.frameBytes)
	if _, err := io.ReadFull(s.r, frame); err != nil {
		// A trailing partial frame is not worth a VAD pass.
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return frame, nil
}

func (s *readerSource) Close() error {
	s.closeOnce.Do(func() {
		if c, ok := s.r.(io.Closer); ok && s.r != os.Stdin {
			c.Close()
		}
	})
	return nil
}

// turnClient posts utterances to the aggregate inference endpoint and threads
// the conversation token across turns.
type turnClient struct {
	baseURL      string
	http         *http.Client
	conversation string
}

func (c *turnClient) turn(ctx context.Context, coord *playback.Coordinator, pcm []byte, sampleRate int, duration time.Duration) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="audio"; filename="utterance.wav"`}
	hdr["Content-Type"] = []string{"audio/wav"}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return err
	}
	part.Write(wavFromPCM(pcm, sampleRate))
	mw.WriteField("duration_ms", fmt.Sprintf("%d", duration.Milliseconds()))
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/voice/inference", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.conversation != "" {
		req.Header.Set("X-Conversation", c.conversation)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send utterance: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		if res.StatusCode == http.StatusUnprocessableEntity {
			return fmt.Errorf("%w: %s", voice.ErrRecognitionUnavailable, msg)
		}
		return fmt.Errorf("server returned %d: %s", res.StatusCode, msg)
	}

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read reply audio: %w", err)
	}
	c.conversation = res.Header.Get("X-Conversation")

	if err := coord.Transcript(decodeHeader(res.Header.Get("X-Transcript")), 0); err != nil {
		return err
	}
	if err := coord.Reply(decodeHeader(res.Header.Get("X-AI-Response")), 0); err != nil {
		return err
	}
	return coord.Audio(audio, res.Header.Get("Content-Type"), c.conversation, voice.Timings{})
}

func decodeHeader(v string) string {
	raw, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// wavFromPCM wraps raw mono 16-bit PCM in a RIFF/WAVE header.
func wavFromPCM(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	byteRate := sampleRate * 2

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(2))  // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16)) // bits per sample
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// terminalCaptions prints captions and notices to stdout.
type terminalCaptions struct{}

func (terminalCaptions) ShowUser(text string) {
	fmt.Printf("you: %s\n", text)
}

func (terminalCaptions) ShowAssistant(text string, _ []playback.WordTiming) {
	fmt.Printf("assistant: %s\n", text)
}

func (terminalCaptions) ShowNotice(n playback.Notice) {
	switch n {
	case playback.NoticeRecognitionUnavailable:
		fmt.Println("(didn't catch that — try again)")
	default:
		fmt.Println("(something went wrong, please retry)")
	}
}

// replyBitrate estimates MP3 playback duration; the server synthesizes
// 48 kbit/s audio.
const replyBitrate = 48000

// execPlayer writes reply audio to a temp file and optionally hands it to an
// external player command.
type execPlayer struct {
	command string

	mu  sync.Mutex
	cmd *exec.Cmd
}

func (p *execPlayer) Play(audio []byte, _ string) (<-chan struct{}, error) {
	f, err := os.CreateTemp("", "voxbridge-reply-*.mp3")
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(audio); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	f.Close()

	done := make(chan struct{})
	if p.command == "" {
		slog.Info("reply saved", "path", f.Name())
		close(done)
		return done, nil
	}

	cmd := exec.Command(p.command, f.Name())
	if err := cmd.Start(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("start player %q: %w", p.command, err)
	}
	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()

	go func() {
		cmd.Wait()
		os.Remove(f.Name())
		p.mu.Lock()
		p.cmd = nil
		p.mu.Unlock()
		close(done)
	}()
	return done, nil
}

func (p *execPlayer) Stop() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func (p *execPlayer) Duration(audio []byte, _ string) (time.Duration, error) {
	seconds := float64(len(audio)*8) / replyBitrate
	return time.Duration(seconds * float64(time.Second)), nil
}
