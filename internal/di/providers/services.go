package providers

import (
	"github.com/samber/do/v2"

	"github.com/narratorapp/narrator-server/internal/audiocache"
	"github.com/narratorapp/narrator-server/internal/config"
	"github.com/narratorapp/narrator-server/internal/logger"
	"github.com/narratorapp/narrator-server/internal/service"
	"github.com/narratorapp/narrator-server/internal/tts"
)

// PlanServiceHandle wraps the plan service so in-memory state flushes on
// shutdown.
type PlanServiceHandle struct {
	*service.PlanService
}

// Shutdown implements do.Shutdownable.
func (h *PlanServiceHandle) Shutdown() error {
	h.Flush()
	return nil
}

// ProvidePlanService provides the plan engine service.
func ProvidePlanService(i do.Injector) (*PlanServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	saverHandle := do.MustInvoke[*SaverHandle](i)
	cache := do.MustInvoke[*audiocache.Cache](i)

	svc := service.NewPlanService(
		storeHandle.Store,
		saverHandle.DebouncedSaver,
		cache,
		log.Logger,
		cfg.Engine.MaxRequestBytes,
	)
	return &PlanServiceHandle{PlanService: svc}, nil
}

// AuditionServiceHandle wraps the audition service with shutdown capability.
type AuditionServiceHandle struct {
	*service.AuditionService
}

// Shutdown implements do.Shutdownable.
func (h *AuditionServiceHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideAuditionService provides the voice audition service.
func ProvideAuditionService(i do.Injector) (*AuditionServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cache := do.MustInvoke[*audiocache.Cache](i)
	provider := do.MustInvoke[tts.Provider](i)

	svc := service.NewAuditionService(cache, provider, cfg.TTS.AuditionTimeout, log.Logger)
	return &AuditionServiceHandle{AuditionService: svc}, nil
}
