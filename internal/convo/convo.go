// Package convo carries short-term conversation context between stateless
// voice turns. The client holds an opaque token; the server decodes it,
// appends the new turn, and hands back a token with only the trailing
// messages. Nothing is stored server-side.
package convo

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Roles in a window. The system instruction is prepended by the completer
// at call time and never rides in the token.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// maxInFlight caps how many messages a decoded window may grow to within a
// single turn. A hostile or buggy client cannot inflate the prompt.
const maxInFlight = 10

// tailLen is how many trailing messages the encoded token carries.
const tailLen = 2

// Message is one turn in the window.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Window is an ordered list of role-tagged messages. The zero value is an
// empty window ready for use.
type Window struct {
	messages []Message
}

// Decode parses a client token into a Window. It is deliberately tolerant:
// an empty, malformed or oversized token yields an empty window rather than
// an error, because losing context must never fail a voice turn.
func Decode(token string) *Window {
	w := &Window{}
	token = strings.TrimSpace(token)
	if token == "" {
		return w
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return w
	}
	var msgs []Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return w
	}
	if len(msgs) > maxInFlight {
		return w
	}
	for _, m := range msgs {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return w
		}
	}
	w.messages = msgs
	return w
}

// Append adds a message. Once the in-flight cap is reached the oldest
// messages are dropped.
func (w *Window) Append(role, content string) {
	w.messages = append(w.messages, Message{Role: role, Content: content})
	if len(w.messages) > maxInFlight {
		w.messages = w.messages[len(w.messages)-maxInFlight:]
	}
}

// Messages returns the window content in order. The slice is shared; do
// not mutate.
func (w *Window) Messages() []Message { return w.messages }

// Len returns the number of messages.
func (w *Window) Len() int { return len(w.messages) }

// Tail returns the last n messages (fewer when the window is shorter).
func (w *Window) Tail(n int) []Message {
	if n >= len(w.messages) {
		return w.messages
	}
	return w.messages[len(w.messages)-n:]
}

// Encode serializes the trailing two messages as base64 JSON, the token the
// client threads into its next request. An empty window encodes to "".
func (w *Window) Encode() (string, error) {
	if len(w.messages) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(w.Tail(tailLen))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
