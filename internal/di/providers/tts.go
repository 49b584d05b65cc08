package providers

import (
	"github.com/samber/do/v2"

	"github.com/narratorapp/narrator-server/internal/audiocache"
	"github.com/narratorapp/narrator-server/internal/config"
	"github.com/narratorapp/narrator-server/internal/logger"
	"github.com/narratorapp/narrator-server/internal/tts"
)

// ProvideTTSProvider provides the HTTP synthesis backend.
func ProvideTTSProvider(i do.Injector) (tts.Provider, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	provider := tts.NewHTTPProvider(cfg.TTS.BaseURL, cfg.TTS.APIKey, log.Logger)

	log.Info("Synthesis provider configured", "base_url", cfg.TTS.BaseURL)

	return provider, nil
}

// ProvideAudioCache provides the in-memory audition cache.
func ProvideAudioCache(i do.Injector) (*audiocache.Cache, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	cache := audiocache.New(log,
		audiocache.WithMaxAge(cfg.TTS.CacheMaxAge),
		audiocache.WithMaxBytes(cfg.TTS.CacheMaxBytes),
	)
	return cache, nil
}
