// Package store persists chapter plans in a Badger database. Plans are
// never deleted when superseded; regeneration writes a new plan and the
// old one is kept, marked stale.
package store

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/narratorapp/narrator-server/internal/domain"
	apperrors "github.com/narratorapp/narrator-server/internal/errors"
)

// Sentinel errors returned by entity operations.
var (
	ErrNotFound      = apperrors.ErrNotFound
	ErrAlreadyExists = apperrors.ErrAlreadyExists
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// Plans holds every plan version, indexed by chapter ID. A chapter
	// accumulates versions over time; the newest non-stale one is
	// authoritative.
	Plans *Entity[domain.Plan]
}

// New opens (or creates) the database at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{
		db:     db,
		logger: logger,
	}

	store.Plans = NewEntity[domain.Plan](store, "plan:").
		WithIndex("chapter", func(p *domain.Plan) []string {
			return []string{p.ChapterID}
		})

	if logger != nil {
		logger.Info("plan database opened", "path", path)
	}

	return store, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("closing plan database")
	}
	return s.db.Close()
}
