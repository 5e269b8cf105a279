package vad

import "testing"

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		SampleRate:        16000,
		FrameSizeMs:       30,
		PositiveThreshold: 0.5,
		NegativeThreshold: 0.35,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"negative sample rate", func(c *Config) { c.SampleRate = -1 }, true},
		{"zero frame size", func(c *Config) { c.FrameSizeMs = 0 }, true},
		{"positive threshold zero", func(c *Config) { c.PositiveThreshold = 0 }, true},
		{"positive threshold above one", func(c *Config) { c.PositiveThreshold = 1.1 }, true},
		{"negative equals positive", func(c *Config) { c.NegativeThreshold = 0.5 }, true},
		{"negative above positive", func(c *Config) { c.NegativeThreshold = 0.6 }, true},
		{"negative below zero", func(c *Config) { c.NegativeThreshold = -0.1 }, true},
		{"zero negative threshold", func(c *Config) { c.NegativeThreshold = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestEventType_String(t *testing.T) {
	tests := []struct {
		typ  EventType
		want string
	}{
		{SpeechStart, "speech_start"},
		{SpeechContinue, "speech_continue"},
		{SpeechEnd, "speech_end"},
		{Silence, "silence"},
		{EventType(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("EventType(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}
