package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/narratorapp/narrator-server/internal/config"
	"github.com/narratorapp/narrator-server/internal/logger"
	"github.com/narratorapp/narrator-server/internal/watcher"
)

// ManuscriptWatcherHandle wraps the manuscript watcher with shutdown
// capability. The inner watcher is nil when no manuscripts path is
// configured.
type ManuscriptWatcherHandle struct {
	*watcher.Manuscripts
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *ManuscriptWatcherHandle) Shutdown() error {
	if h.Manuscripts == nil {
		return nil
	}
	h.cancel()
	return h.Stop()
}

// ProvideManuscriptWatcher provides the chapter source watcher.
func ProvideManuscriptWatcher(i do.Injector) (*ManuscriptWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	planHandle := do.MustInvoke[*PlanServiceHandle](i)

	if cfg.Manuscripts.Path == "" {
		log.Info("No manuscripts path configured, watcher disabled")
		return &ManuscriptWatcherHandle{}, nil
	}

	m, err := watcher.NewManuscripts(cfg.Manuscripts.Path, planHandle.PlanService, log.Logger, watcher.Options{
		SettleDelay: cfg.Manuscripts.SettleDelay,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := m.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("Manuscript watcher stopped", "error", err)
		}
	}()

	log.Info("Watching manuscripts", "path", cfg.Manuscripts.Path)

	return &ManuscriptWatcherHandle{
		Manuscripts: m,
		cancel:      cancel,
	}, nil
}
