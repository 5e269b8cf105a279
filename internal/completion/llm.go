package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxbridge/voxbridge/internal/convo"
)

// defaultSystemPrompt keeps plain-LLM answers short enough to speak.
const defaultSystemPrompt = "You are a helpful voice assistant. Answer briefly, " +
	"in one or two sentences, in plain prose without markdown."

// LLMCompleter answers with a plain chat-completion model. It has no
// retrieval and no backend session; the window is sent as chat history.
type LLMCompleter struct {
	client    oai.Client
	model     string
	system    string
	maxTokens int64
}

var _ Completer = (*LLMCompleter)(nil)

// LLMOption is a functional option for LLMCompleter.
type LLMOption func(*llmConfig)

type llmConfig struct {
	baseURL   string
	model     string
	system    string
	maxTokens int64
	timeout   time.Duration
}

// WithLLMBaseURL overrides the API base URL. Useful for tests and
// OpenAI-compatible gateways.
func WithLLMBaseURL(url string) LLMOption {
	return func(c *llmConfig) { c.baseURL = url }
}

// WithLLMModel selects the chat model. Defaults to "gpt-4o-mini".
func WithLLMModel(model string) LLMOption {
	return func(c *llmConfig) { c.model = model }
}

// WithSystemPrompt overrides the voice-tuned system instruction.
func WithSystemPrompt(prompt string) LLMOption {
	return func(c *llmConfig) { c.system = prompt }
}

// WithMaxTokens caps the completion length. Defaults to 200, plenty for a
// spoken reply.
func WithMaxTokens(n int64) LLMOption {
	return func(c *llmConfig) { c.maxTokens = n }
}

// WithLLMTimeout sets a per-request HTTP timeout.
func WithLLMTimeout(d time.Duration) LLMOption {
	return func(c *llmConfig) { c.timeout = d }
}

// NewLLMCompleter constructs a plain-LLM completer. apiKey must be
// non-empty.
func NewLLMCompleter(apiKey string, opts ...LLMOption) (*LLMCompleter, error) {
	if apiKey == "" {
		return nil, errors.New("completion: llm apiKey must not be empty")
	}

	cfg := &llmConfig{
		model:     "gpt-4o-mini",
		system:    defaultSystemPrompt,
		maxTokens: 200,
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &LLMCompleter{
		client:    oai.NewClient(reqOpts...),
		model:     cfg.model,
		system:    cfg.system,
		maxTokens: cfg.maxTokens,
	}, nil
}

// RequiresSession implements Completer.
func (c *LLMCompleter) RequiresSession() bool { return false }

// NewSession implements Completer. Plain LLMs are sessionless.
func (c *LLMCompleter) NewSession(ctx context.Context) (string, error) { return "", nil }

// Complete implements Completer.
func (c *LLMCompleter) Complete(ctx context.Context, msgs []convo.Message, sessionID string) (string, error) {
	if len(msgs) == 0 {
		return "", errors.New("completion: empty message window")
	}

	chat := make([]oai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	chat = append(chat, oai.SystemMessage(c.system))
	for _, m := range msgs {
		switch m.Role {
		case convo.RoleAssistant:
			chat = append(chat, oai.AssistantMessage(m.Content))
		default:
			chat = append(chat, oai.UserMessage(m.Content))
		}
	}

	res, err := c.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:     oai.ChatModel(c.model),
		Messages:  chat,
		MaxTokens: oai.Int(c.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("completion: llm: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", errors.New("completion: llm returned no choices")
	}
	return strings.TrimSpace(res.Choices[0].Message.Content), nil
}
