package providers

import (
	"github.com/samber/do/v2"

	"github.com/narratorapp/narrator-server/internal/config"
	"github.com/narratorapp/narrator-server/internal/logger"
	"github.com/narratorapp/narrator-server/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the plan database.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := cfg.DBPath()
	db, err := store.New(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Plan database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// SaverHandle wraps the debounced saver so pending plans flush on shutdown.
type SaverHandle struct {
	*store.DebouncedSaver
}

// Shutdown implements do.Shutdownable.
func (h *SaverHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideDebouncedSaver provides the debounced plan persister.
func ProvideDebouncedSaver(i do.Injector) (*SaverHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	saver := store.NewDebouncedSaver(storeHandle.Store, cfg.Engine.SaveDelay, log.Logger)
	return &SaverHandle{DebouncedSaver: saver}, nil
}
