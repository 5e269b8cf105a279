package voicetext

import (
	"strings"
	"testing"
)

func TestTruncateForVoice(t *testing.T) {
	tests := []struct {
		name string
		text string
		opts Options
		want string
	}{
		{
			name: "empty input",
			text: "",
			want: "",
		},
		{
			name: "short answer untouched",
			text: "The store opens at nine.",
			want: "The store opens at nine.",
		},
		{
			name: "keeps two sentences drops third",
			text: "First fact. Second fact. Third fact nobody will hear.",
			want: "First fact. Second fact.",
		},
		{
			name: "custom sentence budget",
			text: "One. Two. Three. Four.",
			opts: Options{MaxSentences: 3},
			want: "One. Two. Three.",
		},
		{
			name: "question and exclamation terminators",
			text: "Is it open? Yes it is! And there is more.",
			want: "Is it open? Yes it is!",
		},
		{
			name: "word budget cuts mid sentence with ellipsis",
			text: "alpha beta gamma delta epsilon zeta eta theta.",
			opts: Options{MaxWords: 4},
			want: "alpha beta gamma delta...",
		},
		{
			name: "no terminator gets a period",
			text: "just some trailing words",
			want: "just some trailing words.",
		},
		{
			name: "no terminator over budget gets ellipsis",
			text: strings.Repeat("word ", 60),
			want: strings.TrimSpace(strings.Repeat("word ", 50)) + "...",
		},
		{
			name: "markdown stripped before cutting",
			text: "**Bold** answer with a [link](https://example.com) inside. Second sentence here.",
			want: "Bold answer with a link inside. Second sentence here.",
		},
		{
			name: "bare url removed",
			text: "See https://example.com/docs for details.",
			want: "See for details.",
		},
		{
			name: "word cap clamps",
			text: strings.Repeat("word ", 300),
			opts: Options{MaxWords: 10000},
			want: strings.TrimSpace(strings.Repeat("word ", MaxWordsCap)) + "...",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateForVoice(tt.text, tt.opts)
			if got != tt.want {
				t.Fatalf("TruncateForVoice = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateForVoice_Idempotent(t *testing.T) {
	inputs := []string{
		"First fact. Second fact. Third fact nobody will hear.",
		"alpha beta gamma delta epsilon zeta eta theta.",
		"just some trailing words",
		strings.Repeat("word ", 60),
		"**Bold** start. Then [a link](https://x.y). Then more.",
	}
	for _, in := range inputs {
		once := TruncateForVoice(in, Options{})
		twice := TruncateForVoice(once, Options{})
		if once != twice {
			t.Errorf("not idempotent:\n in: %q\n 1x: %q\n 2x: %q", in, once, twice)
		}
	}
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"link keeps label", "[docs](https://example.com)", "docs"},
		{"bare url dropped", "visit https://example.com now", "visit now"},
		{"header marker dropped", "## Heading\ntext", "Heading text"},
		{"emphasis dropped", "this is *very* **important** _stuff_", "this is very important stuff"},
		{"inline code marker dropped", "run `make build` first", "run make build first"},
		{"whitespace collapsed", "a\n\n  b\tc", "a b c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkdown(tt.text); got != tt.want {
				t.Fatalf("StripMarkdown = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPreprocessMarkdown(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"header missing space", "##Heading", "## Heading"},
		{"bold missing space", "**Bold**text", "**Bold** text"},
		{"bold before punctuation untouched", "**Bold**, then text", "**Bold**, then text"},
		{"list item missing space", "-item", "- item"},
		{"already fine", "## Heading\n- item\n**Bold** text", "## Heading\n- item\n**Bold** text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PreprocessMarkdown(tt.text); got != tt.want {
				t.Fatalf("PreprocessMarkdown = %q, want %q", got, tt.want)
			}
		})
	}
}
