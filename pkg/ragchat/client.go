// Package ragchat is a client for retrieval-augmented chat backends that
// scope answers to a per-conversation session. The backend indexes a
// project's documents; the client opens a conversation and sends prompts
// that are answered only from that project's content.
//
// Responses stream as server-sent events. For voice use the client can
// stop reading early once enough text for a spoken reply has arrived,
// which cuts latency on long answers.
package ragchat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sentence terminators recognized by the early-stop scanner.
const sentenceEnders = ".!?"

// Early-stop limits: reading halts once the accumulated text holds this
// many complete sentences or this many words, whichever comes first.
const (
	earlyStopSentences = 2
	earlyStopWords     = 60
)

// ErrMissingCredentials is returned by New when the API key or project ID
// is absent. Construction fails fast so a misconfigured deployment cannot
// limp along answering nothing.
var ErrMissingCredentials = errors.New("ragchat: api key and project id are required")

// StatusError reports a non-2xx response from the backend.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ragchat: %s: status %d", e.Op, e.Code)
}

// IsTransient reports whether err is worth retrying: server-side failures,
// rate limits and network-level errors. Client errors (bad credentials, bad
// request) are permanent.
func IsTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Client talks to one project on a RAG chat backend.
type Client struct {
	baseURL   string
	projectID string
	apiKey    string
	language  string
	persona   string
	earlyStop bool
	http      *http.Client
}

// Option is a functional option for Client.
type Option func(*Client)

// WithBaseURL overrides the backend base URL. Useful for tests and
// self-hosted deployments.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithLanguage sets the response language code sent with each message.
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithPersona sets a custom persona instruction forwarded to the backend
// with every message.
func WithPersona(persona string) Option {
	return func(c *Client) { c.persona = persona }
}

// WithEarlyStop controls whether SendMessage stops reading the stream once
// enough text for a spoken reply has accumulated. Defaults to true.
func WithEarlyStop(enabled bool) Option {
	return func(c *Client) { c.earlyStop = enabled }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New constructs a Client. Both credentials must be present.
func New(apiKey, projectID string, opts ...Option) (*Client, error) {
	if apiKey == "" || projectID == "" {
		return nil, ErrMissingCredentials
	}
	c := &Client{
		baseURL:   "https://app.customgpt.ai/api/v1",
		projectID: projectID,
		apiKey:    apiKey,
		language:  "en",
		earlyStop: true,
		http:      &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type conversationResponse struct {
	Data struct {
		SessionID string `json:"session_id"`
	} `json:"data"`
}

// CreateConversation opens a fresh conversation on the project and returns
// its session ID. Every voice turn gets its own conversation; history is
// threaded separately by the caller.
func (c *Client) CreateConversation(ctx context.Context, name string) (string, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return "", fmt.Errorf("ragchat: marshal conversation request: %w", err)
	}

	u := fmt.Sprintf("%s/projects/%s/conversations", c.baseURL, c.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ragchat: build conversation request: %w", err)
	}
	c.setHeaders(req)

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ragchat: create conversation: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &StatusError{Op: "create conversation", Code: res.StatusCode}
	}

	var cr conversationResponse
	if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("ragchat: decode conversation response: %w", err)
	}
	if cr.Data.SessionID == "" {
		return "", errors.New("ragchat: conversation response missing session id")
	}
	return cr.Data.SessionID, nil
}

type messageRequest struct {
	Prompt         string `json:"prompt"`
	ResponseSource string `json:"response_source"`
	CustomPersona  string `json:"custom_persona,omitempty"`
}

// streamEvent is one SSE data payload from the message endpoint.
type streamEvent struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Citations []int  `json:"citations"`
}

// Reply is one assembled answer from the backend.
type Reply struct {
	// Text is the answer, possibly cut short by early stop.
	Text string

	// Citations are the source document IDs the backend grounded the
	// answer on, in first-seen order.
	Citations []int
}

// SendMessage sends a prompt into an existing conversation and returns the
// assembled answer text. The backend streams the answer; when early stop is
// enabled the connection is dropped as soon as enough text has arrived.
func (c *Client) SendMessage(ctx context.Context, sessionID, prompt string) (string, error) {
	reply, err := c.Send(ctx, sessionID, prompt)
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

// Send is SendMessage with citations included.
func (c *Client) Send(ctx context.Context, sessionID, prompt string) (*Reply, error) {
	if sessionID == "" {
		return nil, errors.New("ragchat: sessionID must not be empty")
	}

	body, err := json.Marshal(messageRequest{
		Prompt:         prompt,
		ResponseSource: "own_content",
		CustomPersona:  c.persona,
	})
	if err != nil {
		return nil, fmt.Errorf("ragchat: marshal message request: %w", err)
	}

	q := url.Values{}
	q.Set("stream", "true")
	q.Set("lang", c.language)
	u := fmt.Sprintf("%s/projects/%s/conversations/%s/messages?%s", c.baseURL, c.projectID, sessionID, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ragchat: build message request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ragchat: send message: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &StatusError{Op: "send message", Code: res.StatusCode}
	}

	reply, err := c.readStream(res.Body)
	if err != nil {
		return nil, err
	}
	reply.Text = strings.TrimSpace(reply.Text)
	return reply, nil
}

// readStream assembles the answer from SSE data lines. Interleaved keepalive
// and non-progress events are skipped. Truncated streams are not an error:
// whatever arrived before the break is the answer.
func (c *Client) readStream(r io.Reader) (*Reply, error) {
	var (
		sb        strings.Builder
		citations []int
		seen      = map[int]bool{}
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		for _, id := range ev.Citations {
			if !seen[id] {
				seen[id] = true
				citations = append(citations, id)
			}
		}
		switch ev.Status {
		case "progress":
			sb.WriteString(ev.Message)
			if c.earlyStop && enoughForVoice(sb.String()) {
				return &Reply{Text: sb.String(), Citations: citations}, nil
			}
		case "finish":
			return &Reply{Text: sb.String(), Citations: citations}, nil
		}
	}
	if err := scanner.Err(); err != nil && sb.Len() == 0 {
		return nil, fmt.Errorf("ragchat: read stream: %w", err)
	}
	return &Reply{Text: sb.String(), Citations: citations}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// enoughForVoice reports whether text already holds a complete spoken reply:
// at least two finished sentences, or past the word ceiling with at least
// one finished sentence.
func enoughForVoice(text string) bool {
	sentences := 0
	for _, r := range text {
		if strings.ContainsRune(sentenceEnders, r) {
			sentences++
		}
	}
	if sentences >= earlyStopSentences {
		return true
	}
	return sentences >= 1 && len(strings.Fields(text)) >= earlyStopWords
}
