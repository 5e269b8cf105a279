package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/voxbridge/voxbridge/internal/voicetext"
)

// ValidProviderNames lists known provider names per kind. [Validate] warns
// about unrecognised names; they may be typos or out-of-tree providers.
var ValidProviderNames = map[string][]string{
	"stt": {"openai"},
	"tts": {"openai", "edge", "elevenlabs", "streamelements", "sysvoice"},
}

// keyedTTSProviders are the TTS providers that cannot run without an API key.
var keyedTTSProviders = []string{"openai", "elevenlabs"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values, failing fast
// on missing credentials for the providers actually selected. It returns a
// joined error listing every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	mode := cfg.Completion.Mode
	if mode != "" && !mode.IsValid() {
		errs = append(errs, fmt.Errorf("completion.mode %q is invalid; valid values: rag, llm", mode))
	}
	switch mode {
	case CompletionLLM:
		if cfg.Completion.LLM.APIKey == "" {
			errs = append(errs, errors.New("completion.llm.api_key is required when completion.mode is llm"))
		}
	default:
		// rag is the default mode.
		if cfg.Backend.APIKey == "" {
			errs = append(errs, errors.New("backend.api_key is required when completion.mode is rag"))
		}
		if cfg.Backend.ProjectID == "" {
			errs = append(errs, errors.New("backend.project_id is required when completion.mode is rag"))
		}
	}

	validateProviderName("stt", cfg.STT.Name)
	if cfg.STT.Name == "openai" && cfg.STT.APIKey == "" {
		errs = append(errs, errors.New("stt.api_key is required for the openai provider"))
	}

	ttsEntries := append([]ProviderEntry{cfg.TTS.Primary}, cfg.TTS.Fallbacks...)
	for i, entry := range ttsEntries {
		prefix := "tts.primary"
		if i > 0 {
			prefix = fmt.Sprintf("tts.fallbacks[%d]", i-1)
		}
		if entry.Name == "" {
			if i == 0 {
				errs = append(errs, errors.New("tts.primary.name is required"))
			} else {
				errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			}
			continue
		}
		validateProviderName("tts", entry.Name)
		if slices.Contains(keyedTTSProviders, entry.Name) && entry.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required for the %s provider", prefix, entry.Name))
		}
	}

	if cfg.VAD.PositiveThreshold != 0 || cfg.VAD.NegativeThreshold != 0 {
		if cfg.VAD.NegativeThreshold >= cfg.VAD.PositiveThreshold {
			errs = append(errs, fmt.Errorf("vad.negative_threshold %.2f must be below vad.positive_threshold %.2f",
				cfg.VAD.NegativeThreshold, cfg.VAD.PositiveThreshold))
		}
	}

	if cfg.Pipeline.MaxWords > voicetext.MaxWordsCap {
		errs = append(errs, fmt.Errorf("pipeline.max_words %d exceeds the ceiling %d",
			cfg.Pipeline.MaxWords, voicetext.MaxWordsCap))
	}
	if cfg.Pipeline.MaxAudioBytes < 0 {
		errs = append(errs, errors.New("pipeline.max_audio_bytes must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
