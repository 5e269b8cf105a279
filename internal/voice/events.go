package voice

// EventSink receives pipeline milestones during a streaming turn. Events
// always arrive in the fixed order Transcript, Reply, Audio; a failed turn
// ends after whichever milestone last completed. Implementations are called
// from a single goroutine.
//
// A non-nil return from any method aborts the turn (the client is gone;
// there is no one left to synthesize for).
type EventSink interface {
	// Transcript delivers the recognised user text and the transcription
	// time in seconds.
	Transcript(text string, seconds float64) error

	// Reply delivers the assistant text and the completion time in
	// seconds, before synthesis starts.
	Reply(text string, seconds float64) error

	// Audio delivers the synthesized reply, the re-encoded conversation
	// token, and the full stage timings. It is the terminal event of a
	// successful turn.
	Audio(audio []byte, mimeType, conversation string, timings Timings) error
}

// discardSink backs the aggregate variant, which reads everything from the
// returned Result instead.
type discardSink struct{}

func (discardSink) Transcript(string, float64) error            { return nil }
func (discardSink) Reply(string, float64) error                 { return nil }
func (discardSink) Audio([]byte, string, string, Timings) error { return nil }
