// Package completion abstracts the conversational backend that answers a
// transcribed utterance. Two backends exist: the session-scoped RAG chat
// backend (answers grounded in project content) and a plain LLM.
package completion

import (
	"context"

	"github.com/voxbridge/voxbridge/internal/convo"
)

// Completer produces an assistant reply for a conversation window.
type Completer interface {
	// RequiresSession reports whether the backend needs a session
	// acquired via NewSession before Complete may be called. The
	// orchestrator uses this to decide whether to run session acquisition
	// in parallel with transcription.
	RequiresSession() bool

	// NewSession acquires a fresh backend session. Backends without
	// sessions return "".
	NewSession(ctx context.Context) (string, error)

	// Complete answers the latest user message. msgs is the full window
	// including the new user turn; sessionID is the value from NewSession
	// (empty for sessionless backends).
	Complete(ctx context.Context, msgs []convo.Message, sessionID string) (string, error)
}
