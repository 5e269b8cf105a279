// Package voicetext prepares assistant replies for speech synthesis and
// chat display. Spoken text has no use for markdown or six-paragraph
// answers, so TruncateForVoice strips formatting and cuts the reply down to
// something a listener will sit through.
package voicetext

import (
	"regexp"
	"strings"
)

// Truncation defaults. Words may be raised per deployment up to MaxWordsCap.
const (
	DefaultMaxSentences = 2
	DefaultMaxWords     = 50
	MaxWordsCap         = 150
)

var (
	linkRe     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	bareURLRe  = regexp.MustCompile(`https?://\S+`)
	headerRe   = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	emphasisRe = regexp.MustCompile(`(\*{1,3}|_{1,3}|~~|` + "`" + `)`)
	spaceRe    = regexp.MustCompile(`\s+`)

	// sentenceRe captures a sentence with its terminator run so splitting
	// keeps punctuation (including ellipses) attached.
	sentenceRe = regexp.MustCompile(`[^.!?]*[.!?]+`)
)

// Options bounds the truncation.
type Options struct {
	// MaxSentences caps complete sentences kept. Zero means the default.
	MaxSentences int

	// MaxWords caps total words kept. Zero means the default; values
	// above MaxWordsCap are clamped.
	MaxWords int
}

func (o Options) normalized() Options {
	if o.MaxSentences <= 0 {
		o.MaxSentences = DefaultMaxSentences
	}
	if o.MaxWords <= 0 {
		o.MaxWords = DefaultMaxWords
	}
	if o.MaxWords > MaxWordsCap {
		o.MaxWords = MaxWordsCap
	}
	return o
}

// TruncateForVoice strips markdown and shortens text to the sentence and
// word budgets. The result ends with terminal punctuation when any text
// remains; a cut that lands mid-sentence gets an ellipsis instead. The
// function is idempotent: applying it to its own output returns the output
// unchanged.
func TruncateForVoice(text string, opts Options) string {
	opts = opts.normalized()

	plain := StripMarkdown(text)
	if plain == "" {
		return ""
	}

	sentences := sentenceRe.FindAllString(plain, -1)
	consumed := 0
	for _, s := range sentences {
		consumed += len(s)
	}
	remainder := strings.TrimSpace(plain[min(consumed, len(plain)):])

	var (
		kept      []string
		wordCount int
	)
	for _, s := range sentences {
		if len(kept) >= opts.MaxSentences {
			break
		}
		s = strings.TrimSpace(s)
		words := len(strings.Fields(s))
		if wordCount+words > opts.MaxWords {
			// Take the word-budget prefix of this sentence.
			fields := strings.Fields(s)
			take := opts.MaxWords - wordCount
			if take > 0 {
				kept = append(kept, strings.Join(fields[:take], " ")+"...")
			}
			wordCount = opts.MaxWords
			break
		}
		kept = append(kept, s)
		wordCount += words
	}

	// Text with no complete sentence at all, or trailing words after the
	// last terminator when there is still budget.
	if len(kept) < opts.MaxSentences && wordCount < opts.MaxWords && remainder != "" {
		fields := strings.Fields(remainder)
		take := opts.MaxWords - wordCount
		if take >= len(fields) {
			kept = append(kept, strings.Join(fields, " ")+".")
		} else {
			kept = append(kept, strings.Join(fields[:take], " ")+"...")
		}
	}

	return strings.TrimSpace(strings.Join(kept, " "))
}

// StripMarkdown removes formatting that reads badly aloud: links keep their
// label, bare URLs vanish, headers and emphasis markers are dropped, and
// whitespace collapses to single spaces.
func StripMarkdown(text string) string {
	s := linkRe.ReplaceAllString(text, "$1")
	s = bareURLRe.ReplaceAllString(s, "")
	s = headerRe.ReplaceAllString(s, "")
	s = emphasisRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// PreprocessMarkdown fixes the formatting glitches chat backends emit when
// streaming: missing spaces after headers, list markers and bold runs, so
// the display layer renders them correctly.
func PreprocessMarkdown(text string) string {
	s := missingSpaceAfterHeader.ReplaceAllString(text, "$1 $2")
	s = missingSpaceAfterBold.ReplaceAllString(s, "$1 $2")
	s = missingSpaceAfterItem.ReplaceAllString(s, "$1 $2")
	return s
}

var (
	missingSpaceAfterHeader = regexp.MustCompile(`(?m)^(#{1,6})([^#\s])`)
	missingSpaceAfterBold   = regexp.MustCompile(`(\*\*[^*]+\*\*)([^\s.,!?:;])`)
	missingSpaceAfterItem   = regexp.MustCompile(`(?m)^([-*])([^\s*])`)
)
