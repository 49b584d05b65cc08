package tts

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultTimeout = 60 * time.Second
	defaultFormat  = "mp3"
)

// HTTPProvider talks to a speech-synthesis service over REST. The service
// exposes POST /v1/synthesize returning raw audio and GET /v1/voices
// returning the voice catalog.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPProvider creates a provider for the given service base URL.
func NewHTTPProvider(baseURL, apiKey string, logger *slog.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

type synthesizeRequest struct {
	VoiceID        string  `json:"voice_id"`
	Text           string  `json:"text"`
	Style          string  `json:"style,omitempty"`
	StyleIntensity float64 `json:"style_intensity,omitempty"`
	RatePercent    int     `json:"rate_percent,omitempty"`
	PitchPercent   int     `json:"pitch_percent,omitempty"`
	OutputFormat   string  `json:"output_format"`
}

// Synthesize requests audio for the given text and voice.
func (p *HTTPProvider) Synthesize(ctx context.Context, req Request) (Artifact, error) {
	payload := synthesizeRequest{
		VoiceID:        req.VoiceID,
		Text:           req.Text,
		Style:          req.Prosody.Style,
		StyleIntensity: req.Prosody.StyleIntensity,
		RatePercent:    req.Prosody.RatePercent,
		PitchPercent:   req.Prosody.PitchPercent,
		OutputFormat:   defaultFormat,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Artifact{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/synthesize", bytes.NewReader(body))
	if err != nil {
		return Artifact{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	p.setAuth(httpReq)

	p.logger.Debug("synthesize request",
		"voice_id", req.VoiceID,
		"text_bytes", len(req.Text),
	)

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return Artifact{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Artifact{}, fmt.Errorf("synthesis service returned %d: %s", resp.StatusCode, string(msg))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return Artifact{}, fmt.Errorf("read audio: %w", err)
	}

	format := resp.Header.Get("X-Audio-Format")
	if format == "" {
		format = defaultFormat
	}

	return Artifact{
		Audio:     audio,
		Format:    format,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Voices fetches the provider's voice catalog.
func (p *HTTPProvider) Voices(ctx context.Context) ([]Voice, error) {
	u, err := url.JoinPath(p.baseURL, "/v1/voices")
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	p.setAuth(httpReq)

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voice catalog returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var catalog struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, fmt.Errorf("parse voice catalog: %w", err)
	}
	return catalog.Voices, nil
}

func (p *HTTPProvider) setAuth(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}
