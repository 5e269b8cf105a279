package ragchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew_MissingCredentials(t *testing.T) {
	tests := []struct {
		name      string
		apiKey    string
		projectID string
	}{
		{"no key", "", "proj"},
		{"no project", "key", ""},
		{"neither", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.apiKey, tt.projectID)
			if !errors.Is(err, ErrMissingCredentials) {
				t.Fatalf("err = %v, want ErrMissingCredentials", err)
			}
		})
	}
}

func TestCreateConversation(t *testing.T) {
	var gotPath, gotAuth, gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		gotName = body["name"]
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"session_id": "sess-42"},
		})
	}))
	defer srv.Close()

	c, err := New("key", "proj-7", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	id, err := c.CreateConversation(context.Background(), "voice turn")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if id != "sess-42" {
		t.Fatalf("session id = %q, want sess-42", id)
	}
	if gotPath != "/projects/proj-7/conversations" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer key" {
		t.Errorf("Authorization = %q, want Bearer key", gotAuth)
	}
	if gotName != "voice turn" {
		t.Errorf("name = %q, want voice turn", gotName)
	}
}

func TestCreateConversation_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := New("key", "proj", WithBaseURL(srv.URL))
	_, err := c.CreateConversation(context.Background(), "n")

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if se.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", se.Code)
	}
}

func TestCreateConversation_MissingSessionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {}}`)
	}))
	defer srv.Close()

	c, _ := New("key", "proj", WithBaseURL(srv.URL))
	if _, err := c.CreateConversation(context.Background(), "n"); err == nil {
		t.Fatal("expected error for missing session id")
	}
}

// sseHandler writes the provided events as SSE data lines.
func sseHandler(t *testing.T, events []streamEvent) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			data, err := json.Marshal(ev)
			if err != nil {
				t.Errorf("marshal event: %v", err)
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
	}
}

func TestSendMessage_AssemblesStream(t *testing.T) {
	var gotStream, gotLang, gotPath string
	var gotReq messageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotStream = r.URL.Query().Get("stream")
		gotLang = r.URL.Query().Get("lang")
		json.NewDecoder(r.Body).Decode(&gotReq)
		sseHandler(t, []streamEvent{
			{Status: "progress", Message: "The answer "},
			{Status: "progress", Message: "is here"},
			{Status: "finish"},
		})(w, r)
	}))
	defer srv.Close()

	c, _ := New("key", "proj", WithBaseURL(srv.URL), WithLanguage("de"), WithPersona("be brief"))
	text, err := c.SendMessage(context.Background(), "sess-1", "what is it?")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if text != "The answer is here" {
		t.Fatalf("text = %q", text)
	}
	if gotPath != "/projects/proj/conversations/sess-1/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotStream != "true" {
		t.Errorf("stream = %q, want true", gotStream)
	}
	if gotLang != "de" {
		t.Errorf("lang = %q, want de", gotLang)
	}
	if gotReq.Prompt != "what is it?" {
		t.Errorf("prompt = %q", gotReq.Prompt)
	}
	if gotReq.ResponseSource != "own_content" {
		t.Errorf("response_source = %q, want own_content", gotReq.ResponseSource)
	}
	if gotReq.CustomPersona != "be brief" {
		t.Errorf("custom_persona = %q, want be brief", gotReq.CustomPersona)
	}
}

func TestSend_EarlyStopAfterTwoSentences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(sseHandler(t, []streamEvent{
		{Status: "progress", Message: "First sentence. "},
		{Status: "progress", Message: "Second sentence."},
		// These must never be appended: the reader stops above.
		{Status: "progress", Message: " Third sentence that keeps going."},
		{Status: "finish"},
	})))
	defer srv.Close()

	c, _ := New("key", "proj", WithBaseURL(srv.URL))
	reply, err := c.Send(context.Background(), "sess", "q")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Text != "First sentence. Second sentence." {
		t.Fatalf("text = %q, want early-stopped two sentences", reply.Text)
	}
}

func TestSend_EarlyStopDisabledReadsToFinish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(sseHandler(t, []streamEvent{
		{Status: "progress", Message: "One. "},
		{Status: "progress", Message: "Two. "},
		{Status: "progress", Message: "Three."},
		{Status: "finish"},
	})))
	defer srv.Close()

	c, _ := New("key", "proj", WithBaseURL(srv.URL), WithEarlyStop(false))
	reply, err := c.Send(context.Background(), "sess", "q")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Text != "One. Two. Three." {
		t.Fatalf("text = %q, want full answer", reply.Text)
	}
}

func TestSend_CitationsDedupedFirstSeen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(sseHandler(t, []streamEvent{
		{Status: "progress", Message: "Answer", Citations: []int{3, 1}},
		{Status: "progress", Message: " text", Citations: []int{1, 7}},
		{Status: "finish", Citations: []int{3}},
	})))
	defer srv.Close()

	c, _ := New("key", "proj", WithBaseURL(srv.URL), WithEarlyStop(false))
	reply, err := c.Send(context.Background(), "sess", "q")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	want := []int{3, 1, 7}
	if len(reply.Citations) != len(want) {
		t.Fatalf("citations = %v, want %v", reply.Citations, want)
	}
	for i := range want {
		if reply.Citations[i] != want[i] {
			t.Fatalf("citations = %v, want %v", reply.Citations, want)
		}
	}
}

func TestSend_SkipsMalformedAndKeepaliveLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "data: not json\n\n")
		fmt.Fprint(w, "data: {\"status\": \"progress\", \"message\": \"Hello.\"}\n\n")
		fmt.Fprint(w, "data: {\"status\": \"finish\"}\n\n")
	}))
	defer srv.Close()

	c, _ := New("key", "proj", WithBaseURL(srv.URL), WithEarlyStop(false))
	reply, err := c.Send(context.Background(), "sess", "q")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Text != "Hello." {
		t.Fatalf("text = %q, want Hello.", reply.Text)
	}
}

func TestSend_TruncatedStreamKeepsPartialText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No finish event; the connection just ends.
		fmt.Fprint(w, "data: {\"status\": \"progress\", \"message\": \"Partial answer\"}\n\n")
	}))
	defer srv.Close()

	c, _ := New("key", "proj", WithBaseURL(srv.URL), WithEarlyStop(false))
	reply, err := c.Send(context.Background(), "sess", "q")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Text != "Partial answer" {
		t.Fatalf("text = %q, want Partial answer", reply.Text)
	}
}

func TestSend_EmptySessionID(t *testing.T) {
	c, _ := New("key", "proj")
	if _, err := c.Send(context.Background(), "", "q"); err == nil {
		t.Fatal("expected error for empty session id")
	}
}

func TestEnoughForVoice(t *testing.T) {
	longOneSentence := strings.Repeat("word ", 60) + "end."

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", false},
		{"one short sentence", "Hello there.", false},
		{"two sentences", "Hello there. How are you?", true},
		{"exclamations count", "Wow! Amazing!", true},
		{"no terminator", strings.Repeat("word ", 100), false},
		{"long with one sentence", longOneSentence, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := enoughForVoice(tt.text); got != tt.want {
				t.Fatalf("enoughForVoice(%.40q...) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", &StatusError{Op: "send message", Code: 500}, true},
		{"bad gateway", &StatusError{Op: "send message", Code: 502}, true},
		{"rate limit", &StatusError{Op: "send message", Code: 429}, true},
		{"unauthorized", &StatusError{Op: "send message", Code: 401}, false},
		{"bad request", &StatusError{Op: "send message", Code: 400}, false},
		{"wrapped status", fmt.Errorf("retry: %w", &StatusError{Op: "x", Code: 503}), true},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"net error", &net.DNSError{IsTimeout: true}, true},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
