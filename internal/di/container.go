// Package di provides dependency injection configuration for the Narrator server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/narratorapp/narrator-server/internal/audiocache"
	"github.com/narratorapp/narrator-server/internal/config"
	"github.com/narratorapp/narrator-server/internal/di/providers"
	"github.com/narratorapp/narrator-server/internal/logger"
	"github.com/narratorapp/narrator-server/internal/tts"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideDebouncedSaver)

	// Synthesis layer
	do.Provide(injector, providers.ProvideTTSProvider)
	do.Provide(injector, providers.ProvideAudioCache)

	// Business services
	do.Provide(injector, providers.ProvidePlanService)
	do.Provide(injector, providers.ProvideAuditionService)

	// Workers
	do.Provide(injector, providers.ProvideManuscriptWatcher)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns the container ready for
// lifecycle management. This triggers lazy initialization in dependency
// order.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SaverHandle](injector)
	_ = do.MustInvoke[tts.Provider](injector)
	_ = do.MustInvoke[*audiocache.Cache](injector)
	_ = do.MustInvoke[*providers.PlanServiceHandle](injector)
	_ = do.MustInvoke[*providers.AuditionServiceHandle](injector)
	_ = do.MustInvoke[*providers.ManuscriptWatcherHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
