// Package config provides the configuration schema, loader, and provider
// registry for the voxbridge server.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// CompletionMode selects which backend answers the transcribed utterance.
type CompletionMode string

const (
	// CompletionRAG answers from the session-scoped RAG chat backend.
	CompletionRAG CompletionMode = "rag"

	// CompletionLLM answers with a plain chat-completion model.
	CompletionLLM CompletionMode = "llm"
)

// IsValid reports whether m is a recognised completion mode.
func (m CompletionMode) IsValid() bool {
	return m == CompletionRAG || m == CompletionLLM
}

// Config is the root configuration structure, loaded from YAML via [Load]
// or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Backend    BackendConfig    `yaml:"backend"`
	Completion CompletionConfig `yaml:"completion"`
	STT        ProviderEntry    `yaml:"stt"`
	TTS        TTSConfig        `yaml:"tts"`
	VAD        VADConfig        `yaml:"vad"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// BackendConfig holds the RAG chat backend credentials and tuning.
type BackendConfig struct {
	// APIKey is the bearer credential for the chat backend.
	APIKey string `yaml:"api_key"`

	// ProjectID identifies the content project conversations are scoped to.
	ProjectID string `yaml:"project_id"`

	// BaseURL overrides the backend endpoint. Empty means the default.
	BaseURL string `yaml:"base_url"`

	// Language is the response language code sent with each message.
	Language string `yaml:"language"`

	// Persona is an optional custom persona instruction.
	Persona string `yaml:"persona"`

	// EarlyStop controls dropping the response stream once enough text
	// for a spoken reply has arrived. Nil means enabled.
	EarlyStop *bool `yaml:"early_stop"`
}

// CompletionConfig selects the completion backend.
type CompletionConfig struct {
	// Mode picks the backend: "rag" (default) or "llm".
	Mode CompletionMode `yaml:"mode"`

	// LLM configures the plain-LLM backend, used when Mode is "llm".
	LLM LLMConfig `yaml:"llm"`
}

// LLMConfig holds plain-LLM completion settings.
type LLMConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	MaxTokens    int64  `yaml:"max_tokens"`
	SystemPrompt string `yaml:"system_prompt"`
}

// ProviderEntry is the common configuration block shared by provider kinds.
// Name selects the factory in the [Registry].
type ProviderEntry struct {
	// Name selects the registered implementation (e.g., "openai", "edge").
	Name string `yaml:"name"`

	// APIKey is the provider credential if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Language is an optional language hint (ISO-639-1).
	Language string `yaml:"language"`

	// VoiceID is the provider-specific voice identifier (TTS only).
	VoiceID string `yaml:"voice_id"`

	// Speed is the speaking-rate multiplier, 1.0 = normal (TTS only).
	Speed float64 `yaml:"speed"`
}

// TTSConfig holds the synthesis chain: a primary provider, ordered
// fallbacks, and the retry/breaker tuning shared by all entries.
type TTSConfig struct {
	Primary   ProviderEntry   `yaml:"primary"`
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
	Retry     RetryConfig     `yaml:"retry"`
	Breaker   BreakerConfig   `yaml:"breaker"`
}

// RetryConfig tunes per-provider retries.
type RetryConfig struct {
	// MaxAttempts is the attempt ceiling per provider, first call
	// included. Default: 3.
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay seeds the exponential backoff. Default: 500ms.
	BaseDelay time.Duration `yaml:"base_delay"`
}

// BreakerConfig tunes the per-provider circuit breaker.
type BreakerConfig struct {
	// MaxFailures is how many consecutive failures open the breaker.
	MaxFailures int `yaml:"max_failures"`

	// Cooldown is how long an open breaker waits before probing.
	Cooldown time.Duration `yaml:"cooldown"`
}

// VADConfig tunes capture segmentation.
type VADConfig struct {
	// SampleRate is the capture PCM rate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// FrameSizeMs is the VAD frame duration. Default: 30.
	FrameSizeMs int `yaml:"frame_size_ms"`

	// PositiveThreshold flips a stream into speech. Default: 0.5.
	PositiveThreshold float64 `yaml:"positive_threshold"`

	// NegativeThreshold ends an active speech segment. Default: 0.35.
	NegativeThreshold float64 `yaml:"negative_threshold"`

	// MinUtterance is the shortest utterance forwarded to the pipeline;
	// anything shorter is a misfire. Default: 400ms.
	MinUtterance time.Duration `yaml:"min_utterance"`
}

// PipelineConfig tunes the orchestrator.
type PipelineConfig struct {
	// Deadline bounds one whole voice turn. Default: 60s.
	Deadline time.Duration `yaml:"deadline"`

	// MaxAudioBytes rejects uploads larger than this before any network
	// call. Default: 10 MiB.
	MaxAudioBytes int64 `yaml:"max_audio_bytes"`

	// MaxSentences caps the spoken reply. Default: 2.
	MaxSentences int `yaml:"max_sentences"`

	// MaxWords caps the spoken reply. Default: 50, ceiling 150.
	MaxWords int `yaml:"max_words"`
}
