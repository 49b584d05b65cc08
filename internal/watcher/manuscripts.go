package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/narratorapp/narrator-server/internal/util"
)

// manuscriptExtensions are the file types treated as chapter sources.
var manuscriptExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// PlanStaler marks plans for a chapter as superseded.
type PlanStaler interface {
	MarkStale(ctx context.Context, chapterID string) error
}

// Manuscripts watches a directory of chapter source files and marks the
// affected plans stale when a file changes. The normalized file name
// without its extension is the chapter ID.
type Manuscripts struct {
	watcher *Watcher
	staler  PlanStaler
	logger  *slog.Logger
	dir     string
}

// NewManuscripts creates a manuscript watcher over dir.
func NewManuscripts(dir string, staler PlanStaler, logger *slog.Logger, opts Options) (*Manuscripts, error) {
	w, err := New(logger, opts)
	if err != nil {
		return nil, err
	}
	if err := w.Watch(dir); err != nil {
		w.Stop()
		return nil, err
	}
	return &Manuscripts{
		watcher: w,
		staler:  staler,
		logger:  logger,
		dir:     dir,
	}, nil
}

// Run consumes watcher events until the context is cancelled.
func (m *Manuscripts) Run(ctx context.Context) error {
	go func() {
		_ = m.watcher.Start(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-m.watcher.Events():
			if !ok {
				return nil
			}
			m.handleEvent(ctx, event)
		case err, ok := <-m.watcher.Errors():
			if !ok {
				return nil
			}
			m.logger.Error("manuscript watch error", "error", err)
		}
	}
}

// Stop releases the underlying watcher.
func (m *Manuscripts) Stop() error {
	return m.watcher.Stop()
}

func (m *Manuscripts) handleEvent(ctx context.Context, event Event) {
	chapterID, ok := ChapterIDFromPath(event.Path)
	if !ok {
		return
	}

	switch event.Type {
	case EventAdded:
		// A brand new chapter has no plans to invalidate.
		m.logger.Info("manuscript detected", "chapter_id", chapterID, "path", event.Path)
	case EventModified, EventRemoved:
		m.logger.Info("manuscript changed, marking plans stale",
			"chapter_id", chapterID,
			"event", event.Type.String(),
		)
		if err := m.staler.MarkStale(ctx, chapterID); err != nil {
			m.logger.Error("failed to mark plans stale",
				"chapter_id", chapterID,
				"error", err,
			)
		}
	}
}

// ChapterIDFromPath derives a chapter ID from a manuscript file path.
// The file name without its extension is normalized with
// util.NormalizeChapterID so "Chapter 1.txt" and the API's "chapter-1"
// resolve to the same plans. Returns false for files that are not
// chapter sources.
func ChapterIDFromPath(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if !manuscriptExtensions[ext] {
		return "", false
	}
	base := filepath.Base(path)
	id := util.NormalizeChapterID(strings.TrimSuffix(base, filepath.Ext(base)))
	if id == "" {
		return "", false
	}
	return id, true
}
