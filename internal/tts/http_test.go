package tts

import (
	"context"
	"encoding/json/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narratorapp/narrator-server/internal/logger"
)

func TestHTTPProviderSynthesize(t *testing.T) {
	var got synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/synthesize", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.UnmarshalRead(r.Body, &got))
		w.Header().Set("X-Audio-Format", "mp3")
		w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "test-key", logger.NewNop().Logger)
	artifact, err := p.Synthesize(context.Background(), Request{
		VoiceID: "voice_rachel",
		Text:    "Hello there.",
		Prosody: Prosody{Style: "cheerful", StyleIntensity: 1.5, RatePercent: 10},
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("audio-bytes"), artifact.Audio)
	assert.Equal(t, "mp3", artifact.Format)
	assert.False(t, artifact.CreatedAt.IsZero())

	assert.Equal(t, "voice_rachel", got.VoiceID)
	assert.Equal(t, "Hello there.", got.Text)
	assert.Equal(t, "cheerful", got.Style)
	assert.Equal(t, 1.5, got.StyleIntensity)
	assert.Equal(t, 10, got.RatePercent)
}

func TestHTTPProviderSynthesizeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice not found", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "", logger.NewNop().Logger)
	_, err := p.Synthesize(context.Background(), Request{VoiceID: "voice_missing", Text: "Hi."})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestHTTPProviderVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/voices", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"voices":[{"id":"voice_rachel","name":"Rachel","language":"en"}]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "", logger.NewNop().Logger)
	voices, err := p.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "Rachel", voices[0].Name)
}

func TestHTTPProviderContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewHTTPProvider(srv.URL, "", logger.NewNop().Logger)
	_, err := p.Synthesize(ctx, Request{VoiceID: "voice_rachel", Text: "Hi."})
	assert.Error(t, err)
}
