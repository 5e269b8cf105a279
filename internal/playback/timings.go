package playback

import (
	"strings"
	"time"
)

// WordTiming is one word's display window within the spoken audio.
type WordTiming struct {
	Word  string
	Start time.Duration
	End   time.Duration
}

// EstimateWordTimings spreads the words of text evenly across the audio
// duration. Synthesis APIs used here return no word boundaries, so linear
// interpolation is the accepted approximation; it drifts on long pauses but
// stays close enough for caption highlighting.
func EstimateWordTimings(text string, total time.Duration) []WordTiming {
	words := strings.Fields(text)
	if len(words) == 0 || total <= 0 {
		return nil
	}

	per := total / time.Duration(len(words))
	timings := make([]WordTiming, len(words))
	for i, w := range words {
		start := time.Duration(i) * per
		end := start + per
		if i == len(words)-1 {
			end = total
		}
		timings[i] = WordTiming{Word: w, Start: start, End: end}
	}
	return timings
}
