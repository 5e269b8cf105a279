package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/voxbridge/voxbridge/internal/convo"
	"github.com/voxbridge/voxbridge/internal/resilience"
	"github.com/voxbridge/voxbridge/pkg/ragchat"
)

// ErrSessionRequired is returned by RAGCompleter.Complete when no session
// was acquired first.
var ErrSessionRequired = errors.New("completion: rag backend requires a session")

// RAGCompleter answers from the session-scoped RAG chat backend. Every
// voice turn uses a fresh conversation; continuity across turns comes from
// the window prompt, not from backend history.
type RAGCompleter struct {
	client *ragchat.Client
	retry  resilience.RetryConfig
}

var _ Completer = (*RAGCompleter)(nil)

// NewRAGCompleter wraps a ragchat client with transient-error retries.
func NewRAGCompleter(client *ragchat.Client) *RAGCompleter {
	return &RAGCompleter{
		client: client,
		retry: resilience.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   300 * time.Millisecond,
			Retryable:   ragchat.IsTransient,
		},
	}
}

// RequiresSession implements Completer.
func (c *RAGCompleter) RequiresSession() bool { return true }

// NewSession implements Completer.
func (c *RAGCompleter) NewSession(ctx context.Context) (string, error) {
	return resilience.RetryWithResult(ctx, c.retry, func() (string, error) {
		return c.client.CreateConversation(ctx, "voice turn")
	})
}

// Complete implements Completer. The backend sees one prompt per turn, so
// the trailing window is folded into the prompt text.
func (c *RAGCompleter) Complete(ctx context.Context, msgs []convo.Message, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrSessionRequired
	}
	if len(msgs) == 0 {
		return "", errors.New("completion: empty message window")
	}

	prompt := foldWindow(msgs)
	return resilience.RetryWithResult(ctx, c.retry, func() (string, error) {
		return c.client.SendMessage(ctx, sessionID, prompt)
	})
}

// foldWindow renders prior turns as context lines above the current user
// message. The RAG backend takes a single prompt string per message.
func foldWindow(msgs []convo.Message) string {
	last := msgs[len(msgs)-1]
	prior := msgs[:len(msgs)-1]
	if len(prior) == 0 {
		return last.Content
	}

	var sb strings.Builder
	sb.WriteString("Previous conversation:\n")
	for _, m := range prior {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	sb.WriteString("\nCurrent question: ")
	sb.WriteString(last.Content)
	return sb.String()
}
