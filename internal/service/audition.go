package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/narratorapp/narrator-server/internal/audiocache"
	"github.com/narratorapp/narrator-server/internal/errors"
	"github.com/narratorapp/narrator-server/internal/tts"
	"github.com/narratorapp/narrator-server/internal/validation"
)

// DefaultAuditionTimeout bounds one synthesis call.
const DefaultAuditionTimeout = 30 * time.Second

const sweepInterval = 5 * time.Minute

// AuditionService renders cached audio previews of segment text. The
// engine owns only the caching and timeout handling; synthesis itself
// is the provider's job.
type AuditionService struct {
	cache     *audiocache.Cache
	provider  tts.Provider
	timeout   time.Duration
	logger    *slog.Logger
	validator *validation.Validator

	stopSweep chan struct{}
}

// NewAuditionService creates an audition service and starts the
// periodic cache sweep. A non-positive timeout falls back to
// DefaultAuditionTimeout.
func NewAuditionService(cache *audiocache.Cache, provider tts.Provider, timeout time.Duration, logger *slog.Logger) *AuditionService {
	if timeout <= 0 {
		timeout = DefaultAuditionTimeout
	}
	s := &AuditionService{
		cache:     cache,
		provider:  provider,
		timeout:   timeout,
		logger:    logger,
		validator: validation.New(),
		stopSweep: make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Audition returns synthesized audio for the request, serving from the
// cache when the identical request was rendered recently.
func (s *AuditionService) Audition(ctx context.Context, req tts.Request) (tts.Artifact, error) {
	if err := s.validator.Validate(req); err != nil {
		return tts.Artifact{}, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return tts.Artifact{}, errors.Validation("audition text cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	artifact, err := s.cache.GetOrGenerate(ctx, req, func(ctx context.Context) (tts.Artifact, error) {
		return s.provider.Synthesize(ctx, req)
	})
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Warn("audition timed out",
				"voice_id", req.VoiceID,
				"text_bytes", len(req.Text),
				"timeout", s.timeout,
			)
			return tts.Artifact{}, errors.ErrGenerationTimeout.WithCause(err)
		}
		var domainErr *errors.Error
		if errors.As(err, &domainErr) {
			return tts.Artifact{}, err
		}
		return tts.Artifact{}, errors.ErrGenerationFailed.WithCause(err)
	}

	s.logger.Debug("audition served",
		"voice_id", req.VoiceID,
		"text_bytes", len(req.Text),
		"audio_bytes", len(artifact.Audio),
		"elapsed", time.Since(start),
	)
	return artifact, nil
}

// Voices returns the provider's voice catalog.
func (s *AuditionService) Voices(ctx context.Context) ([]tts.Voice, error) {
	voices, err := s.provider.Voices(ctx)
	if err != nil {
		return nil, errors.ErrGenerationFailed.WithCause(err)
	}
	return voices, nil
}

// Close stops the periodic cache sweep.
func (s *AuditionService) Close() {
	close(s.stopSweep)
}

func (s *AuditionService) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cache.Sweep()
		case <-s.stopSweep:
			return
		}
	}
}
