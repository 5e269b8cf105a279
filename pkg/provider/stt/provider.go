// Package stt defines the speech-to-text provider interface.
//
// Implementations live in subpackages (openai, mock) and are constructed
// through the configuration registry.
package stt

import (
	"context"
	"fmt"
	"strings"
)

// Provider converts a complete recorded utterance to text.
type Provider interface {
	// Transcribe converts audio (a complete encoded file, not raw PCM) to
	// text. mimeType identifies the container, e.g. "audio/webm".
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)

	// Name returns the provider identifier used in configuration and logs.
	Name() string
}

// extByMIME maps a normalized MIME subtype to the file extension the
// transcription APIs key their format detection on.
var extByMIME = map[string]string{
	"webm":  ".webm",
	"ogg":   ".ogg",
	"wav":   ".wav",
	"x-wav": ".wav",
	"mp3":   ".mp3",
	"mpeg":  ".mp3",
	"mpga":  ".mp3",
	"mp4":   ".mp4",
	"m4a":   ".m4a",
	"x-m4a": ".m4a",
}

// ExtensionForMIME returns the filename extension for an audio MIME type.
// Parameters after ";" (codec hints) are ignored. Unknown types are an
// error so a bad upload fails before any network call.
func ExtensionForMIME(mimeType string) (string, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	sub := strings.TrimPrefix(mt, "audio/")
	sub = strings.TrimPrefix(sub, "video/")
	if ext, ok := extByMIME[sub]; ok {
		return ext, nil
	}
	return "", fmt.Errorf("stt: unsupported audio MIME type %q", mimeType)
}
