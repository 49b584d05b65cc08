package api

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/narratorapp/narrator-server/internal/audiocache"
	"github.com/narratorapp/narrator-server/internal/logger"
	"github.com/narratorapp/narrator-server/internal/service"
	"github.com/narratorapp/narrator-server/internal/store"
	"github.com/narratorapp/narrator-server/internal/tts"
)

// testEnvelope mirrors the response envelope for decoding in tests.
type testEnvelope[T any] struct {
	V       int           `json:"v"`
	Success bool          `json:"success"`
	Data    T             `json:"data"`
	Error   *testAPIError `json:"error"`
	Message string        `json:"message"`
}

type testAPIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

// fakeProvider is a canned synthesis backend for handler tests.
type fakeProvider struct {
	calls atomic.Int32
	err   error
}

func (f *fakeProvider) Synthesize(_ context.Context, req tts.Request) (tts.Artifact, error) {
	f.calls.Add(1)
	if f.err != nil {
		return tts.Artifact{}, f.err
	}
	return tts.Artifact{
		Audio:     []byte("audio:" + req.VoiceID),
		Format:    "mp3",
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeProvider) Voices(_ context.Context) ([]tts.Voice, error) {
	return []tts.Voice{
		{ID: "voice-en-emma", Name: "Emma", Language: "en-GB"},
		{ID: "voice-en-jack", Name: "Jack", Language: "en-US"},
	}, nil
}

// setupTestServer builds a full server against a temp store and a fake
// synthesis provider. The small size ceiling keeps each test paragraph
// in its own segment.
func setupTestServer(t *testing.T) (humatest.TestAPI, *fakeProvider) {
	t.Helper()

	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	log := logger.NewNop().Logger
	saver := store.NewDebouncedSaver(st, 20*time.Millisecond, log)
	t.Cleanup(saver.Close)

	cache := audiocache.New(nil)

	planSvc := service.NewPlanService(st, saver, cache, log, 600)

	provider := &fakeProvider{}
	auditionSvc := service.NewAuditionService(cache, provider, time.Second, log)
	t.Cleanup(auditionSvc.Close)

	srv := NewServer(&Services{
		Plan:     planSvc,
		Audition: auditionSvc,
	}, log)
	t.Cleanup(srv.Close)

	return humatest.Wrap(t, srv.api), provider
}
