package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/narratorapp/narrator-server/internal/domain"
)

// DefaultSaveDelay is the quiet period before a marked plan is persisted.
const DefaultSaveDelay = 2 * time.Second

// DebouncedSaver collapses bursts of plan mutations into a single write.
// Mark schedules a persist after the quiet period; each further Mark for
// the same plan resets the clock. Persistence is fire-and-forget from
// the caller's perspective: failures are logged, never returned.
type DebouncedSaver struct {
	store  *Store
	delay  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	timers  map[string]*time.Timer
	pending map[string]*domain.Plan
}

// NewDebouncedSaver creates a saver writing through the given store.
// A non-positive delay falls back to DefaultSaveDelay.
func NewDebouncedSaver(s *Store, delay time.Duration, logger *slog.Logger) *DebouncedSaver {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DebouncedSaver{
		store:   s,
		delay:   delay,
		logger:  logger,
		timers:  make(map[string]*time.Timer),
		pending: make(map[string]*domain.Plan),
	}
}

// Mark schedules the plan for persistence after the quiet period. The
// plan is snapshotted now, so later in-memory mutations do not leak into
// the scheduled write.
func (d *DebouncedSaver) Mark(plan *domain.Plan) {
	snapshot := plan.Clone()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		// Shutting down; persist immediately rather than drop the change.
		go d.persist(snapshot)
		return
	}

	d.pending[plan.ID] = snapshot
	if timer, ok := d.timers[plan.ID]; ok {
		timer.Reset(d.delay)
		return
	}
	d.timers[plan.ID] = time.AfterFunc(d.delay, func() {
		d.flushOne(plan.ID)
	})
}

// Flush persists every pending plan immediately.
func (d *DebouncedSaver) Flush() {
	d.mu.Lock()
	plans := make([]*domain.Plan, 0, len(d.pending))
	for id, plan := range d.pending {
		if timer, ok := d.timers[id]; ok {
			timer.Stop()
			delete(d.timers, id)
		}
		plans = append(plans, plan)
		delete(d.pending, id)
	}
	d.mu.Unlock()

	for _, plan := range plans {
		d.persist(plan)
	}
}

// Close flushes pending writes and stops the saver.
func (d *DebouncedSaver) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.Flush()
}

func (d *DebouncedSaver) flushOne(planID string) {
	d.mu.Lock()
	plan, ok := d.pending[planID]
	delete(d.pending, planID)
	delete(d.timers, planID)
	d.mu.Unlock()

	if ok {
		d.persist(plan)
	}
}

func (d *DebouncedSaver) persist(plan *domain.Plan) {
	if err := d.store.Plans.Put(context.Background(), plan.ID, plan); err != nil {
		d.logger.Error("debounced plan save failed",
			"plan_id", plan.ID,
			"chapter_id", plan.ChapterID,
			"error", err,
		)
		return
	}
	d.logger.Debug("plan persisted", "plan_id", plan.ID)
}
