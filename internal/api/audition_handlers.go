package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/narratorapp/narrator-server/internal/tts"
)

func (s *Server) registerAuditionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createAudition",
		Method:      http.MethodPost,
		Path:        "/api/v1/auditions",
		Summary:     "Audition a voice",
		Description: "Synthesizes a short audio preview for the given voice and text; results are cached by request identity",
		Tags:        []string{"Auditions"},
		Middlewares: huma.Middlewares{s.rateLimitMiddleware(s.auditionLimiter)},
	}, s.handleCreateAudition)

	huma.Register(s.api, huma.Operation{
		OperationID: "listVoices",
		Method:      http.MethodGet,
		Path:        "/api/v1/voices",
		Summary:     "List voices",
		Description: "Returns the synthesis provider's voice catalog",
		Tags:        []string{"Auditions"},
	}, s.handleListVoices)
}

// === DTOs ===

type ProsodyRequest struct {
	Style          string  `json:"style,omitempty" doc:"Delivery style name, provider-specific"`
	StyleIntensity float64 `json:"style_intensity,omitempty" minimum:"0" maximum:"2" doc:"Style strength, 0 uses the provider default"`
	RatePercent    int     `json:"rate_percent,omitempty" minimum:"-50" maximum:"100" doc:"Speaking rate adjustment in percent"`
	PitchPercent   int     `json:"pitch_percent,omitempty" minimum:"-50" maximum:"50" doc:"Pitch adjustment in percent"`
}

type AuditionRequest struct {
	VoiceID string         `json:"voice_id" validate:"required" doc:"Provider voice ID"`
	Text    string         `json:"text" validate:"required" doc:"Text to synthesize"`
	Prosody ProsodyRequest `json:"prosody,omitzero" doc:"Optional delivery parameters"`
}

type AuditionInput struct {
	Body AuditionRequest
}

type AuditionResponse struct {
	Audio     []byte    `json:"audio" doc:"Synthesized audio, base64-encoded"`
	Format    string    `json:"format" doc:"Audio container format"`
	CreatedAt time.Time `json:"created_at" doc:"When the audio was synthesized"`
}

type AuditionOutput struct {
	Body AuditionResponse
}

type VoiceResponse struct {
	ID       string `json:"id" doc:"Provider voice ID"`
	Name     string `json:"name" doc:"Display name"`
	Language string `json:"language,omitempty" doc:"BCP 47 language tag"`
}

type ListVoicesResponse struct {
	Voices []VoiceResponse `json:"voices" doc:"Available voices"`
}

type ListVoicesOutput struct {
	Body ListVoicesResponse
}

// === Handlers ===

func (s *Server) handleCreateAudition(ctx context.Context, input *AuditionInput) (*AuditionOutput, error) {
	artifact, err := s.services.Audition.Audition(ctx, tts.Request{
		VoiceID: input.Body.VoiceID,
		Text:    input.Body.Text,
		Prosody: tts.Prosody{
			Style:          input.Body.Prosody.Style,
			StyleIntensity: input.Body.Prosody.StyleIntensity,
			RatePercent:    input.Body.Prosody.RatePercent,
			PitchPercent:   input.Body.Prosody.PitchPercent,
		},
	})
	if err != nil {
		return nil, err
	}

	return &AuditionOutput{Body: AuditionResponse{
		Audio:     artifact.Audio,
		Format:    artifact.Format,
		CreatedAt: artifact.CreatedAt,
	}}, nil
}

func (s *Server) handleListVoices(ctx context.Context, _ *struct{}) (*ListVoicesOutput, error) {
	voices, err := s.services.Audition.Voices(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]VoiceResponse, len(voices))
	for i, v := range voices {
		resp[i] = VoiceResponse{ID: v.ID, Name: v.Name, Language: v.Language}
	}
	return &ListVoicesOutput{Body: ListVoicesResponse{Voices: resp}}, nil
}
