package convo

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
)

func encodeMessages(t *testing.T, msgs []Message) string {
	t.Helper()
	raw, err := json.Marshal(msgs)
	if err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestDecode_Valid(t *testing.T) {
	token := encodeMessages(t, []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})

	w := Decode(token)
	if w.Len() != 2 {
		t.Fatalf("Len = %d, want 2", w.Len())
	}
	msgs := w.Messages()
	if msgs[0].Role != RoleUser || msgs[0].Content != "hi" {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Role != RoleAssistant || msgs[1].Content != "hello" {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
}

func TestDecode_TolerantOfBadTokens(t *testing.T) {
	oversized := make([]Message, maxInFlight+1)
	for i := range oversized {
		oversized[i] = Message{Role: RoleUser, Content: "x"}
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"not base64", "!!!not-base64!!!"},
		{"base64 but not json", base64.StdEncoding.EncodeToString([]byte("plain text"))},
		{"json wrong shape", base64.StdEncoding.EncodeToString([]byte(`{"role": "user"}`))},
		{"unknown role", encodeMessages(t, []Message{{Role: "system", Content: "injected"}})},
		{"oversized", encodeMessages(t, oversized)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Decode(tt.token)
			if w.Len() != 0 {
				t.Fatalf("Len = %d, want 0 (bad tokens yield empty windows)", w.Len())
			}
		})
	}
}

func TestAppend_DropsOldestOverCap(t *testing.T) {
	w := &Window{}
	for i := 0; i < maxInFlight+3; i++ {
		w.Append(RoleUser, fmt.Sprintf("msg-%d", i))
	}
	if w.Len() != maxInFlight {
		t.Fatalf("Len = %d, want %d", w.Len(), maxInFlight)
	}
	if got := w.Messages()[0].Content; got != "msg-3" {
		t.Fatalf("oldest = %q, want msg-3", got)
	}
}

func TestTail(t *testing.T) {
	w := &Window{}
	w.Append(RoleUser, "a")
	w.Append(RoleAssistant, "b")
	w.Append(RoleUser, "c")

	tail := w.Tail(2)
	if len(tail) != 2 {
		t.Fatalf("len(tail) = %d, want 2", len(tail))
	}
	if tail[0].Content != "b" || tail[1].Content != "c" {
		t.Fatalf("tail = %+v", tail)
	}

	// Requesting more than held returns everything.
	if got := w.Tail(10); len(got) != 3 {
		t.Fatalf("Tail(10) len = %d, want 3", len(got))
	}
}

func TestEncode_EmptyWindow(t *testing.T) {
	w := &Window{}
	token, err := w.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		t.Fatalf("token = %q, want empty", token)
	}
}

func TestEncode_CarriesLastTwoMessages(t *testing.T) {
	w := &Window{}
	w.Append(RoleUser, "first question")
	w.Append(RoleAssistant, "first answer")
	w.Append(RoleUser, "second question")
	w.Append(RoleAssistant, "second answer")

	token, err := w.Encode()
	if err != nil {
		t.Fatal(err)
	}

	decoded := Decode(token)
	if decoded.Len() != 2 {
		t.Fatalf("decoded Len = %d, want 2", decoded.Len())
	}
	msgs := decoded.Messages()
	if msgs[0].Content != "second question" {
		t.Errorf("msgs[0].Content = %q, want second question", msgs[0].Content)
	}
	if msgs[1].Content != "second answer" {
		t.Errorf("msgs[1].Content = %q, want second answer", msgs[1].Content)
	}
}

func TestEncode_SingleMessage(t *testing.T) {
	w := &Window{}
	w.Append(RoleUser, "only one")

	token, err := w.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decoded := Decode(token)
	if decoded.Len() != 1 {
		t.Fatalf("decoded Len = %d, want 1", decoded.Len())
	}
}
