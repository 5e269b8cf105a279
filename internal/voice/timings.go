package voice

import "time"

// Timings records how long each pipeline stage took, in seconds. The
// aggregate transport surfaces it as X-Timing-* headers; the streaming
// transport attaches it to the terminal audio event.
type Timings struct {
	Parse      float64 `json:"parse"`
	Buffer     float64 `json:"buffer"`
	Transcribe float64 `json:"transcribe"`
	Decode     float64 `json:"decode"`
	Session    float64 `json:"session"`
	Completion float64 `json:"completion"`
	TTS        float64 `json:"tts"`
	Read       float64 `json:"read"`
	Cleanup    float64 `json:"cleanup"`
	Encode     float64 `json:"encode"`
	Total      float64 `json:"total"`
}

// stage measures one stage and stores the elapsed seconds through set.
func stage(set *float64, fn func() error) error {
	start := time.Now()
	err := fn()
	*set = time.Since(start).Seconds()
	return err
}
