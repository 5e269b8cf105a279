package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voxbridge/voxbridge/pkg/provider/stt"
	sttopenai "github.com/voxbridge/voxbridge/pkg/provider/stt/openai"
	"github.com/voxbridge/voxbridge/pkg/provider/tts"
	"github.com/voxbridge/voxbridge/pkg/provider/tts/edge"
	"github.com/voxbridge/voxbridge/pkg/provider/tts/elevenlabs"
	ttsopenai "github.com/voxbridge/voxbridge/pkg/provider/tts/openai"
	"github.com/voxbridge/voxbridge/pkg/provider/tts/streamelements"
	"github.com/voxbridge/voxbridge/pkg/provider/tts/sysvoice"
	"github.com/voxbridge/voxbridge/pkg/provider/vad"
	"github.com/voxbridge/voxbridge/pkg/provider/vad/energy"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory
// has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to constructor functions for each provider
// kind. Dispatch happens once at startup; the pipeline only ever sees the
// constructed interfaces. Safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	stt map[string]func(ProviderEntry) (stt.Provider, error)
	tts map[string]func(ProviderEntry) (tts.Provider, error)
	vad map[string]func(ProviderEntry) (vad.Engine, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt: make(map[string]func(ProviderEntry) (stt.Provider, error)),
		tts: make(map[string]func(ProviderEntry) (tts.Provider, error)),
		vad: make(map[string]func(ProviderEntry) (vad.Engine, error)),
	}
}

// DefaultRegistry returns a [Registry] with every built-in provider
// registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterSTT("openai", func(e ProviderEntry) (stt.Provider, error) {
		opts := []sttopenai.Option{sttopenai.WithTimeout(30 * time.Second)}
		if e.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(e.BaseURL))
		}
		if e.Model != "" {
			opts = append(opts, sttopenai.WithModel(e.Model))
		}
		if e.Language != "" {
			opts = append(opts, sttopenai.WithLanguage(e.Language))
		}
		return sttopenai.New(e.APIKey, opts...)
	})

	r.RegisterTTS("openai", func(e ProviderEntry) (tts.Provider, error) {
		opts := []ttsopenai.Option{ttsopenai.WithTimeout(30 * time.Second)}
		if e.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(e.BaseURL))
		}
		if e.Model != "" {
			opts = append(opts, ttsopenai.WithModel(e.Model))
		}
		return ttsopenai.New(e.APIKey, opts...)
	})
	r.RegisterTTS("edge", func(e ProviderEntry) (tts.Provider, error) {
		var opts []edge.Option
		if e.BaseURL != "" {
			opts = append(opts, edge.WithEndpoint(e.BaseURL))
		}
		return edge.New(opts...), nil
	})
	r.RegisterTTS("elevenlabs", func(e ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if e.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(e.BaseURL))
		}
		if e.Model != "" {
			opts = append(opts, elevenlabs.WithModel(e.Model))
		}
		return elevenlabs.New(e.APIKey, opts...)
	})
	r.RegisterTTS("streamelements", func(e ProviderEntry) (tts.Provider, error) {
		var opts []streamelements.Option
		if e.BaseURL != "" {
			opts = append(opts, streamelements.WithBaseURL(e.BaseURL))
		}
		return streamelements.New(opts...), nil
	})
	r.RegisterTTS("sysvoice", func(e ProviderEntry) (tts.Provider, error) {
		return sysvoice.New(), nil
	})

	r.RegisterVAD("energy", func(e ProviderEntry) (vad.Engine, error) {
		return energy.New(), nil
	})

	return r
}

// RegisterSTT registers an STT provider factory under name. Subsequent
// calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterVAD registers a VAD engine factory under name.
func (r *Registry) RegisterVAD(name string, factory func(ProviderEntry) (vad.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// CreateSTT instantiates an STT provider registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a TTS provider registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateVAD instantiates a VAD engine registered under entry.Name.
func (r *Registry) CreateVAD(entry ProviderEntry) (vad.Engine, error) {
	r.mu.RLock()
	factory, ok := r.vad[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
