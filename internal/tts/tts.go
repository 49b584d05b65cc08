// Package tts defines the speech-synthesis boundary. The engine owns the
// plan and the audio cache; synthesis itself is delegated to an external
// provider behind the Provider interface.
package tts

import (
	"context"
	"time"
)

// Prosody carries the tunable delivery parameters for a synthesis request.
// Zero values mean the provider's defaults.
type Prosody struct {
	Style          string  `json:"style,omitempty"`
	StyleIntensity float64 `json:"style_intensity,omitempty"`
	RatePercent    int     `json:"rate_percent,omitempty"`
	PitchPercent   int     `json:"pitch_percent,omitempty"`
}

// Request describes one synthesis call.
type Request struct {
	VoiceID string  `json:"voice_id" validate:"required"`
	Text    string  `json:"text" validate:"required"`
	Prosody Prosody `json:"prosody"`
}

// Artifact is the synthesized audio returned by a provider.
type Artifact struct {
	Audio     []byte    `json:"-"`
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"created_at"`
}

// Voice describes an entry in the provider's voice catalog.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
}

// Provider synthesizes speech from text. Implementations must honor
// context cancellation; the audition service enforces its deadline
// through the passed context.
type Provider interface {
	Synthesize(ctx context.Context, req Request) (Artifact, error)
	Voices(ctx context.Context) ([]Voice, error)
}
