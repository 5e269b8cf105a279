// Command voxbridge is the voice pipeline server: it fronts a session-scoped
// RAG chat backend with speech-to-text, completion and text-to-speech over
// aggregate and streaming HTTP transports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voxbridge/voxbridge/internal/completion"
	"github.com/voxbridge/voxbridge/internal/config"
	"github.com/voxbridge/voxbridge/internal/health"
	"github.com/voxbridge/voxbridge/internal/httpserver"
	"github.com/voxbridge/voxbridge/internal/observe"
	"github.com/voxbridge/voxbridge/internal/resilience"
	"github.com/voxbridge/voxbridge/internal/voice"
	"github.com/voxbridge/voxbridge/pkg/provider/tts"
	"github.com/voxbridge/voxbridge/pkg/ragchat"
)

const version = "0.3.0"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxbridge: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxbridge: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxbridge starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxbridge",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	registry := config.DefaultRegistry()

	sttProvider, err := registry.CreateSTT(cfg.STT)
	if err != nil {
		slog.Error("failed to build stt provider", "err", err)
		return 1
	}

	ttsChain, err := buildTTSChain(cfg, registry)
	if err != nil {
		slog.Error("failed to build tts chain", "err", err)
		return 1
	}
	slog.Info("tts chain ready", "providers", ttsChain.Chain())

	completer, backendCheck, err := buildCompleter(cfg)
	if err != nil {
		slog.Error("failed to build completion backend", "err", err)
		return 1
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	stats := voice.NewStats(200)
	pipeline := voice.New(sttProvider, completer, ttsChain, metrics, stats, voice.Config{
		Deadline:      cfg.Pipeline.Deadline,
		MaxAudioBytes: cfg.Pipeline.MaxAudioBytes,
		MinUtterance:  cfg.VAD.MinUtterance,
		MaxSentences:  cfg.Pipeline.MaxSentences,
		MaxWords:      cfg.Pipeline.MaxWords,
		Voice: tts.VoiceProfile{
			ID:       cfg.TTS.Primary.VoiceID,
			Language: cfg.Backend.Language,
			Speed:    cfg.TTS.Primary.Speed,
		},
	})

	healthHandler := health.New(health.Checker{
		Name:  "backend",
		Check: backendCheck,
	})

	handler := httpserver.NewHandler(pipeline, stats, metrics, healthHandler, cfg.Pipeline.MaxAudioBytes)

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	server := httpserver.NewServer(addr, handler.Router())

	// ── Serve until signalled ─────────────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			slog.Error("server error", "err", err)
			return 1
		}
		return 0
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildTTSChain constructs the primary provider and ordered fallbacks with
// shared retry and breaker tuning.
func buildTTSChain(cfg *config.Config, registry *config.Registry) (*resilience.TTSFallback, error) {
	primary, err := registry.CreateTTS(cfg.TTS.Primary)
	if err != nil {
		return nil, fmt.Errorf("primary %q: %w", cfg.TTS.Primary.Name, err)
	}

	chain := resilience.NewTTSFallback(primary,
		resilience.FallbackConfig{
			CircuitBreaker: resilience.BreakerConfig{
				MaxFailures: cfg.TTS.Breaker.MaxFailures,
				Cooldown:    cfg.TTS.Breaker.Cooldown,
			},
		},
		resilience.RetryConfig{
			MaxAttempts: cfg.TTS.Retry.MaxAttempts,
			BaseDelay:   cfg.TTS.Retry.BaseDelay,
		},
	)
	for _, entry := range cfg.TTS.Fallbacks {
		p, err := registry.CreateTTS(entry)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", entry.Name, err)
		}
		chain.AddFallback(p)
	}
	return chain, nil
}

// buildCompleter constructs the configured completion backend and a
// readiness check for it.
func buildCompleter(cfg *config.Config) (completion.Completer, func(context.Context) error, error) {
	if cfg.Completion.Mode == config.CompletionLLM {
		var opts []completion.LLMOption
		if cfg.Completion.LLM.BaseURL != "" {
			opts = append(opts, completion.WithLLMBaseURL(cfg.Completion.LLM.BaseURL))
		}
		if cfg.Completion.LLM.Model != "" {
			opts = append(opts, completion.WithLLMModel(cfg.Completion.LLM.Model))
		}
		if cfg.Completion.LLM.MaxTokens > 0 {
			opts = append(opts, completion.WithMaxTokens(cfg.Completion.LLM.MaxTokens))
		}
		if cfg.Completion.LLM.SystemPrompt != "" {
			opts = append(opts, completion.WithSystemPrompt(cfg.Completion.LLM.SystemPrompt))
		}
		c, err := completion.NewLLMCompleter(cfg.Completion.LLM.APIKey, opts...)
		if err != nil {
			return nil, nil, err
		}
		check := func(context.Context) error { return nil }
		return c, check, nil
	}

	var opts []ragchat.Option
	if cfg.Backend.BaseURL != "" {
		opts = append(opts, ragchat.WithBaseURL(cfg.Backend.BaseURL))
	}
	if cfg.Backend.Language != "" {
		opts = append(opts, ragchat.WithLanguage(cfg.Backend.Language))
	}
	if cfg.Backend.Persona != "" {
		opts = append(opts, ragchat.WithPersona(cfg.Backend.Persona))
	}
	if cfg.Backend.EarlyStop != nil {
		opts = append(opts, ragchat.WithEarlyStop(*cfg.Backend.EarlyStop))
	}
	client, err := ragchat.New(cfg.Backend.APIKey, cfg.Backend.ProjectID, opts...)
	if err != nil {
		return nil, nil, err
	}

	completer := completion.NewRAGCompleter(client)
	check := func(ctx context.Context) error {
		// Readiness probes configuration, not the remote API: creating a
		// throwaway conversation per probe would burn backend quota.
		if cfg.Backend.APIKey == "" || cfg.Backend.ProjectID == "" {
			return errors.New("backend credentials missing")
		}
		return nil
	}
	return completer, check, nil
}

// newLogger builds the process-wide slog logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
