// Package edge provides a TTS provider backed by the Microsoft Edge
// read-aloud service. It requires no API key, which makes it the usual
// first fallback after the commercial providers.
//
// The service speaks a websocket protocol: the client sends a
// speech.config JSON message followed by an SSML request, then receives
// interleaved text frames (turn.start, audio.metadata, turn.end) and
// binary frames carrying MP3 audio after a length-prefixed header.
package edge

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

const (
	wsEndpoint   = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	trustedToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	outputFormat = "audio-24khz-48kbitrate-mono-mp3"

	defaultVoice = "en-US-EricNeural"
)

var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider against the Edge read-aloud service.
type Provider struct {
	endpoint string
	timeout  time.Duration
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithEndpoint overrides the websocket endpoint. Useful for tests.
func WithEndpoint(url string) Option {
	return func(p *Provider) { p.endpoint = url }
}

// WithTimeout bounds the whole synthesis exchange. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// New constructs an Edge TTS provider.
func New(opts ...Option) *Provider {
	p := &Provider{endpoint: wsEndpoint, timeout: 30 * time.Second}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "edge" }

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	voiceID := voice.ID
	if voiceID == "" {
		voiceID = defaultVoice
	}

	url := p.endpoint + "?TrustedClientToken=" + trustedToken
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Origin": []string{"chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("edge tts: dial: %w", wrapTimeout(err))
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(1 << 20)

	requestID := strings.ReplaceAll(uuid.NewString(), "-", "")

	if err := conn.Write(ctx, websocket.MessageText, []byte(configMessage())); err != nil {
		return nil, fmt.Errorf("edge tts: send config: %w", wrapTimeout(err))
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(ssmlMessage(requestID, voiceID, voice, text))); err != nil {
		return nil, fmt.Errorf("edge tts: send ssml: %w", wrapTimeout(err))
	}

	art := tts.NewArtifact(".mp3", "audio/mpeg")
	f, err := os.Create(art.Path)
	if err != nil {
		return nil, fmt.Errorf("edge tts: create artifact: %w", err)
	}

	wrote := false
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			f.Close()
			art.Cleanup()
			return nil, fmt.Errorf("edge tts: read: %w", wrapTimeout(err))
		}

		switch typ {
		case websocket.MessageText:
			if strings.Contains(string(data), "Path:turn.end") {
				if err := f.Close(); err != nil {
					art.Cleanup()
					return nil, fmt.Errorf("edge tts: close artifact: %w", err)
				}
				if !wrote {
					art.Cleanup()
					return nil, errors.New("edge tts: stream ended without audio")
				}
				return art, nil
			}
		case websocket.MessageBinary:
			audio, err := extractAudio(data)
			if err != nil {
				f.Close()
				art.Cleanup()
				return nil, fmt.Errorf("edge tts: %w", err)
			}
			if len(audio) > 0 {
				if _, err := f.Write(audio); err != nil {
					f.Close()
					art.Cleanup()
					return nil, fmt.Errorf("edge tts: write artifact: %w", err)
				}
				wrote = true
			}
		}
	}
}

// extractAudio strips the length-prefixed header from a binary frame. The
// first two bytes are a big-endian header length; audio follows the header.
func extractAudio(frame []byte) ([]byte, error) {
	if len(frame) < 2 {
		return nil, errors.New("binary frame too short")
	}
	headerLen := int(binary.BigEndian.Uint16(frame[:2]))
	if 2+headerLen > len(frame) {
		return nil, errors.New("binary frame header overruns frame")
	}
	header := string(frame[2 : 2+headerLen])
	if !strings.Contains(header, "Path:audio") {
		return nil, nil
	}
	return frame[2+headerLen:], nil
}

func configMessage() string {
	return "X-Timestamp:" + timestamp() + "\r\n" +
		"Content-Type:application/json; charset=utf-8\r\n" +
		"Path:speech.config\r\n\r\n" +
		`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"` + outputFormat + `"}}}}`
}

func ssmlMessage(requestID, voiceID string, voice tts.VoiceProfile, text string) string {
	lang := voice.Language
	if lang == "" {
		lang = "en-US"
	}
	rate := ratePercent(voice.Speed)

	ssml := fmt.Sprintf(
		`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='%s'><voice name='%s'><prosody pitch='+0Hz' rate='%s' volume='+0%%'>%s</prosody></voice></speak>`,
		lang, voiceID, rate, escapeXML(text),
	)

	return "X-RequestId:" + requestID + "\r\n" +
		"Content-Type:application/ssml+xml\r\n" +
		"X-Timestamp:" + timestamp() + "\r\n" +
		"Path:ssml\r\n\r\n" +
		ssml
}

// ratePercent converts a speed multiplier (1.0 = normal) to the signed
// percentage string the service expects.
func ratePercent(speed float64) string {
	if speed == 0 {
		speed = 1.0
	}
	pct := int((speed - 1.0) * 100)
	return fmt.Sprintf("%+d%%", pct)
}

func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"'", "&apos;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}

func timestamp() string {
	return time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")
}

// wrapTimeout retags deadline errors so the retry layer treats websocket
// stalls the same as HTTP timeouts.
func wrapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", tts.ErrTimeout, err)
	}
	return err
}
