// Package httpserver exposes the voice pipeline over HTTP: an aggregate
// endpoint that returns the synthesized reply in one response, a streaming
// endpoint that emits SSE milestones as they happen, and the usual
// operational endpoints (health, metrics, stats).
package httpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxbridge/voxbridge/internal/health"
	"github.com/voxbridge/voxbridge/internal/observe"
	"github.com/voxbridge/voxbridge/internal/voice"
)

// conversationHeader carries the opaque window token in both directions.
const conversationHeader = "X-Conversation"

// maxEncodedReplyHeader caps the base64 reply header; HTTP headers are not
// the place for five kilobytes of prose.
const maxEncodedReplyHeader = 2048

// multipartMemory is the in-memory threshold for multipart parsing.
const multipartMemory = 10 << 20

// Handler serves the voice API.
type Handler struct {
	pipeline *voice.Pipeline
	stats    *voice.Stats
	metrics  *observe.Metrics
	health   *health.Handler

	// maxUpload bounds the request body before multipart parsing.
	maxUpload int64
}

// NewHandler constructs the API handler. stats may be nil; the stats
// endpoint then serves an empty snapshot.
func NewHandler(pipeline *voice.Pipeline, stats *voice.Stats, metrics *observe.Metrics, healthHandler *health.Handler, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{
		pipeline:  pipeline,
		stats:     stats,
		metrics:   metrics,
		health:    healthHandler,
		maxUpload: maxUpload,
	}
}

// Router builds the served mux: API routes wrapped in the observability
// middleware, operational routes bare.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/voice/inference", h.Inference)
	mux.HandleFunc("POST /api/voice/inference/stream", h.InferenceStream)
	mux.HandleFunc("GET /api/voice/stats", h.Stats)
	h.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(h.metrics)(mux)
}

// Inference is the aggregate transport: multipart audio in, synthesized
// audio out, metadata in headers.
func (h *Handler) Inference(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	result, err := h.pipeline.Run(r.Context(), *req)
	if err != nil {
		status, code := classifyError(err)
		writeError(w, status, code, err.Error())
		return
	}

	w.Header().Set("Content-Type", result.AudioMIME)
	w.Header().Set(conversationHeader, result.Conversation)
	w.Header().Set("X-Transcript", encodeHeader(result.Transcript, 0))
	w.Header().Set("X-AI-Response", encodeHeader(result.Reply, maxEncodedReplyHeader))
	setTimingHeaders(w.Header(), result.Timings)
	w.WriteHeader(http.StatusOK)
	w.Write(result.Audio)
}

// InferenceStream is the SSE transport. Named events arrive in the fixed
// order transcript, ai_response, audio; failures emit a terminal error
// event instead.
func (h *Handler) InferenceStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
		return
	}

	req, err := h.parseUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if h.metrics != nil {
		h.metrics.ActiveStreams.Add(r.Context(), 1)
		defer h.metrics.ActiveStreams.Add(r.Context(), -1)
	}

	sink := &sseSink{w: w, flusher: flusher, ctx: r.Context()}
	if err := h.pipeline.RunStream(r.Context(), *req, sink); err != nil {
		_, code := classifyError(err)
		sink.event("error", errorPayload{Message: err.Error(), Code: code})
	}
}

// Stats serves the bounded-window latency snapshot.
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	var snap voice.Snapshot
	if h.stats != nil {
		snap = h.stats.Snapshot()
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(snap)
}

// parseUpload extracts the audio part, MIME type, conversation token and
// optional duration hint, measuring parse and buffer time for the Timings
// record.
func (h *Handler) parseUpload(w http.ResponseWriter, r *http.Request) (*voice.Request, error) {
	parseStart := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return nil, fmt.Errorf("missing audio part: %w", err)
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	var duration time.Duration
	if v := r.FormValue("duration_ms"); v != "" {
		var ms int64
		if _, err := fmt.Sscanf(v, "%d", &ms); err == nil && ms > 0 {
			duration = time.Duration(ms) * time.Millisecond
		}
	}
	parseSeconds := time.Since(parseStart).Seconds()

	bufferStart := time.Now()
	audio, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read audio part: %w", err)
	}
	bufferSeconds := time.Since(bufferStart).Seconds()

	return &voice.Request{
		Audio:         audio,
		MIMEType:      mimeType,
		Conversation:  r.Header.Get(conversationHeader),
		Duration:      duration,
		ParseSeconds:  parseSeconds,
		BufferSeconds: bufferSeconds,
	}, nil
}

// sseSink writes pipeline milestones as named SSE events.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
}

var _ voice.EventSink = (*sseSink)(nil)

type textPayload struct {
	Text   string  `json:"text"`
	Timing float64 `json:"timing"`
}

type audioPayload struct {
	Data         string        `json:"data"`
	MIMEType     string        `json:"mime_type"`
	Conversation string        `json:"conversation"`
	Timings      voice.Timings `json:"timings"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (s *sseSink) Transcript(text string, seconds float64) error {
	return s.event("transcript", textPayload{Text: text, Timing: seconds})
}

func (s *sseSink) Reply(text string, seconds float64) error {
	return s.event("ai_response", textPayload{Text: text, Timing: seconds})
}

func (s *sseSink) Audio(audio []byte, mimeType, conversation string, timings voice.Timings) error {
	return s.event("audio", audioPayload{
		Data:         base64.StdEncoding.EncodeToString(audio),
		MIMEType:     mimeType,
		Conversation: conversation,
		Timings:      timings,
	})
}

func (s *sseSink) event(name string, payload any) error {
	select {
	case <-s.ctx.Done():
		return errors.New("httpserver: client disconnected")
	default:
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("httpserver: marshal %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("httpserver: write %s event: %w", name, err)
	}
	s.flusher.Flush()
	return nil
}

// classifyError maps pipeline errors to HTTP status and a stable error code.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, voice.ErrEmptyAudio),
		errors.Is(err, voice.ErrAudioTooLarge),
		errors.Is(err, voice.ErrUtteranceTooShort):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, voice.ErrRecognitionUnavailable):
		return http.StatusUnprocessableEntity, "recognition_unavailable"
	case errors.Is(err, voice.ErrPipelineTimeout):
		return http.StatusGatewayTimeout, "pipeline_timeout"
	default:
		return http.StatusBadGateway, "pipeline_failure"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorPayload{Message: message, Code: code})
}

// encodeHeader base64-encodes text for header transport, truncating the
// encoded form to max when max is positive.
func encodeHeader(text string, max int) string {
	enc := base64.StdEncoding.EncodeToString([]byte(text))
	if max > 0 && len(enc) > max {
		// Truncate on a 4-byte boundary so the value stays decodable.
		enc = enc[:max-max%4]
	}
	return enc
}

func setTimingHeaders(h http.Header, t voice.Timings) {
	set := func(name string, v float64) {
		h.Set("X-Timing-"+name, fmt.Sprintf("%.4f", v))
	}
	set("Parse", t.Parse)
	set("Buffer", t.Buffer)
	set("Transcribe", t.Transcribe)
	set("Decode", t.Decode)
	set("Session", t.Session)
	set("Completion", t.Completion)
	set("TTS", t.TTS)
	set("Read", t.Read)
	set("Cleanup", t.Cleanup)
	set("Encode", t.Encode)
	set("Total", t.Total)
}
