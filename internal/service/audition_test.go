package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narratorapp/narrator-server/internal/audiocache"
	"github.com/narratorapp/narrator-server/internal/errors"
	"github.com/narratorapp/narrator-server/internal/logger"
	"github.com/narratorapp/narrator-server/internal/tts"
)

// fakeProvider is a scriptable tts.Provider for tests.
type fakeProvider struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (f *fakeProvider) Synthesize(ctx context.Context, req tts.Request) (tts.Artifact, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return tts.Artifact{}, ctx.Err()
		}
	}
	if f.err != nil {
		return tts.Artifact{}, f.err
	}
	return tts.Artifact{
		Audio:     []byte("audio:" + req.VoiceID),
		Format:    "mp3",
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeProvider) Voices(ctx context.Context) ([]tts.Voice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []tts.Voice{{ID: "voice_rachel", Name: "Rachel"}}, nil
}

func newTestAuditionService(t *testing.T, provider tts.Provider, timeout time.Duration) *AuditionService {
	t.Helper()
	svc := NewAuditionService(audiocache.New(nil), provider, timeout, logger.NewNop().Logger)
	t.Cleanup(svc.Close)
	return svc
}

func TestAuditionServesFromCache(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestAuditionService(t, provider, 0)
	req := tts.Request{VoiceID: "voice_rachel", Text: "Hello there."}

	first, err := svc.Audition(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Audition(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(1), provider.calls.Load())
	assert.Equal(t, first.Audio, second.Audio)
}

func TestAuditionDistinctRequestsSynthesizeSeparately(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestAuditionService(t, provider, 0)

	_, err := svc.Audition(context.Background(), tts.Request{VoiceID: "voice_rachel", Text: "Hello."})
	require.NoError(t, err)
	_, err = svc.Audition(context.Background(), tts.Request{VoiceID: "voice_sarah", Text: "Hello."})
	require.NoError(t, err)

	assert.Equal(t, int32(2), provider.calls.Load())
}

func TestAuditionValidation(t *testing.T) {
	svc := newTestAuditionService(t, &fakeProvider{}, 0)

	_, err := svc.Audition(context.Background(), tts.Request{Text: "Hello."})
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = svc.Audition(context.Background(), tts.Request{VoiceID: "voice_rachel", Text: "  "})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestAuditionTimeout(t *testing.T) {
	provider := &fakeProvider{delay: time.Second}
	svc := newTestAuditionService(t, provider, 30*time.Millisecond)

	_, err := svc.Audition(context.Background(), tts.Request{VoiceID: "voice_rachel", Text: "Hello."})
	assert.ErrorIs(t, err, errors.ErrGenerationTimeout)
}

func TestAuditionProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: assert.AnError}
	svc := newTestAuditionService(t, provider, 0)
	req := tts.Request{VoiceID: "voice_rachel", Text: "Hello."}

	_, err := svc.Audition(context.Background(), req)
	require.ErrorIs(t, err, errors.ErrGenerationFailed)

	// Failures are not cached; the retry reaches the provider again.
	provider.err = nil
	_, err = svc.Audition(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.calls.Load())
}

func TestAuditionVoicesCatalog(t *testing.T) {
	svc := newTestAuditionService(t, &fakeProvider{}, 0)

	voices, err := svc.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "Rachel", voices[0].Name)
}
