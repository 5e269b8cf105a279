package voice

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Stats collects per-stage latency samples and turn counters for the
// /api/voice/stats endpoint. It keeps a bounded ring buffer of recent
// samples per stage and computes percentiles on demand.
//
// Safe for concurrent use.
type Stats struct {
	mu sync.Mutex

	stt        latencyBuffer
	completion latencyBuffer
	tts        latencyBuffer
	turn       latencyBuffer

	turns  int64
	errors int64
}

// NewStats creates a Stats with the given window size (maximum samples
// retained per stage). Non-positive sizes default to 100.
func NewStats(windowSize int) *Stats {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &Stats{
		stt:        newLatencyBuffer(windowSize),
		completion: newLatencyBuffer(windowSize),
		tts:        newLatencyBuffer(windowSize),
		turn:       newLatencyBuffer(windowSize),
	}
}

// RecordSTT records a transcription latency sample.
func (s *Stats) RecordSTT(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stt.add(d)
}

// RecordCompletion records a completion latency sample.
func (s *Stats) RecordCompletion(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completion.add(d)
}

// RecordTTS records a synthesis latency sample.
func (s *Stats) RecordTTS(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tts.add(d)
}

// RecordTurn records an end-to-end turn latency sample.
func (s *Stats) RecordTurn(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turn.add(d)
}

// IncrTurns increments the completed-turn counter.
func (s *Stats) IncrTurns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns++
}

// IncrErrors increments the failed-turn counter.
func (s *Stats) IncrErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}

// LatencyPercentiles holds p50 and p95 values for one stage.
type LatencyPercentiles struct {
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
}

// Snapshot is a point-in-time view of all pipeline statistics.
type Snapshot struct {
	STT        LatencyPercentiles `json:"stt"`
	Completion LatencyPercentiles `json:"completion"`
	TTS        LatencyPercentiles `json:"tts"`
	Turn       LatencyPercentiles `json:"turn"`
	Turns      int64              `json:"turns"`
	Errors     int64              `json:"errors"`
}

// Snapshot returns a point-in-time view of all pipeline statistics.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		STT:        s.stt.percentiles(),
		Completion: s.completion.percentiles(),
		TTS:        s.tts.percentiles(),
		Turn:       s.turn.percentiles(),
		Turns:      s.turns,
		Errors:     s.errors,
	}
}

// latencyBuffer is a bounded ring buffer of duration samples.
type latencyBuffer struct {
	data []time.Duration
	size int
	pos  int
	full bool
}

func newLatencyBuffer(size int) latencyBuffer {
	return latencyBuffer{
		data: make([]time.Duration, size),
		size: size,
	}
}

func (lb *latencyBuffer) add(d time.Duration) {
	lb.data[lb.pos] = d
	lb.pos++
	if lb.pos >= lb.size {
		lb.pos = 0
		lb.full = true
	}
}

func (lb *latencyBuffer) percentiles() LatencyPercentiles {
	n := lb.pos
	if lb.full {
		n = lb.size
	}
	if n == 0 {
		return LatencyPercentiles{}
	}

	sorted := make([]time.Duration, n)
	copy(sorted, lb.data[:n])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return LatencyPercentiles{
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
	}
}

// percentile returns the nearest-rank value at p (0.0 to 1.0) from a sorted
// slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
