// Package service provides the business logic layer for chapter plan
// management and audition synthesis.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/narratorapp/narrator-server/internal/audiocache"
	"github.com/narratorapp/narrator-server/internal/domain"
	"github.com/narratorapp/narrator-server/internal/errors"
	"github.com/narratorapp/narrator-server/internal/estimate"
	"github.com/narratorapp/narrator-server/internal/history"
	"github.com/narratorapp/narrator-server/internal/id"
	"github.com/narratorapp/narrator-server/internal/planops"
	"github.com/narratorapp/narrator-server/internal/segmenter"
	"github.com/narratorapp/narrator-server/internal/store"
	"github.com/narratorapp/narrator-server/internal/util"
)

// Operation names a segment mutation.
type Operation string

const (
	OpSplit    Operation = "split"
	OpMerge    Operation = "merge"
	OpDelete   Operation = "delete"
	OpEdit     Operation = "edit"
	OpRevision Operation = "revision"
)

// OperationRequest carries the parameters of one segment mutation.
type OperationRequest struct {
	Op        Operation
	SegmentID string

	// Offset is the split position, a byte offset into the segment text.
	Offset int
	// Direction selects the merge neighbor.
	Direction planops.Direction
	// Text is the replacement text for an edit.
	Text string
	// NeedsRevision is the new flag value for a revision toggle.
	NeedsRevision bool
}

// planSession holds the in-memory state of one plan under edit: the
// current (possibly not yet persisted) plan and its undo history. The
// session mutex serializes every mutation of the plan.
type planSession struct {
	mu      sync.Mutex
	current *domain.Plan
	history *history.Stack[*domain.Plan]
}

// PlanService orchestrates plan generation, segment operations, undo,
// and persistence.
type PlanService struct {
	store    *store.Store
	saver    *store.DebouncedSaver
	cache    *audiocache.Cache
	logger   *slog.Logger
	maxBytes int

	mu       sync.Mutex
	sessions map[string]*planSession
}

// NewPlanService creates a plan service. A non-positive maxBytes falls
// back to the default request ceiling.
func NewPlanService(s *store.Store, saver *store.DebouncedSaver, cache *audiocache.Cache, logger *slog.Logger, maxBytes int) *PlanService {
	if maxBytes <= 0 {
		maxBytes = estimate.DefaultMaxRequestBytes
	}
	return &PlanService{
		store:    s,
		saver:    saver,
		cache:    cache,
		logger:   logger,
		maxBytes: maxBytes,
		sessions: make(map[string]*planSession),
	}
}

// GeneratePlan segments chapter text into a fresh plan and persists it.
// The chapter ID is normalized before use so plans line up with manuscript
// file names. Any existing plans for the chapter are superseded: kept, but
// marked stale.
func (s *PlanService) GeneratePlan(ctx context.Context, chapterID, text string) (*domain.Plan, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.Validation("chapter text cannot be empty")
	}
	chapterID = util.NormalizeChapterID(chapterID)
	if chapterID == "" {
		return nil, errors.Validation("chapter ID is required")
	}

	segments := segmenter.Segment(text, s.maxBytes)
	if len(segments) == 0 {
		return nil, errors.Validation("chapter text produced no segments")
	}

	planID, err := id.Generate(id.PrefixPlan)
	if err != nil {
		return nil, fmt.Errorf("generate plan ID: %w", err)
	}

	now := time.Now().UTC()
	plan := &domain.Plan{
		ID:        planID,
		ChapterID: chapterID,
		Segments:  segments,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := plan.Validate(estimate.EstimateBytes, s.maxBytes); err != nil {
		return nil, fmt.Errorf("generated plan failed validation: %w", err)
	}

	// Supersede earlier versions.
	if err := s.MarkStale(ctx, chapterID); err != nil {
		return nil, err
	}

	if err := s.store.Plans.Create(ctx, planID, plan); err != nil {
		return nil, fmt.Errorf("persist plan: %w", err)
	}

	s.mu.Lock()
	s.sessions[planID] = &planSession{
		current: plan.Clone(),
		history: history.New[*domain.Plan](history.DefaultLimit),
	}
	s.mu.Unlock()

	s.logger.Info("plan generated",
		"plan_id", planID,
		"chapter_id", chapterID,
		"segments", len(segments),
		"oversized", len(plan.OversizedSegments()),
	)

	return plan, nil
}

// GetPlan returns the current state of a plan, preferring in-memory
// edits over the persisted copy.
func (s *PlanService) GetPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	session, err := s.session(ctx, planID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	return session.current.Clone(), nil
}

// ListPlans returns every stored plan.
func (s *PlanService) ListPlans(ctx context.Context) ([]*domain.Plan, error) {
	var plans []*domain.Plan
	for plan, err := range s.store.Plans.List(ctx) {
		if err != nil {
			return nil, err
		}
		plans = append(plans, s.currentOf(plan))
	}
	return plans, nil
}

// ListPlansByChapter returns every plan version of a chapter.
func (s *PlanService) ListPlansByChapter(ctx context.Context, chapterID string) ([]*domain.Plan, error) {
	plans, err := s.store.Plans.ListByIndex(ctx, "chapter", util.NormalizeChapterID(chapterID))
	if err != nil {
		return nil, err
	}
	for i, plan := range plans {
		plans[i] = s.currentOf(plan)
	}
	return plans, nil
}

// Apply executes one segment operation on a plan. On success the
// pre-image is pushed to the undo history, stale audition audio is
// invalidated, and a debounced persist is scheduled.
func (s *PlanService) Apply(ctx context.Context, planID string, req OperationRequest) (*domain.Plan, error) {
	session, err := s.session(ctx, planID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	pre := session.current
	next, err := s.applyOp(pre, req)
	if err != nil {
		s.logger.Debug("segment operation rejected",
			"plan_id", planID,
			"op", string(req.Op),
			"segment_id", req.SegmentID,
			"error", err,
		)
		return nil, err
	}

	s.invalidateChanged(pre, next)

	session.history.Push(pre)
	session.current = next
	s.saver.Mark(next)

	s.logger.Info("segment operation applied",
		"plan_id", planID,
		"op", string(req.Op),
		"segment_id", req.SegmentID,
		"segments", len(next.Segments),
	)

	return next.Clone(), nil
}

func (s *PlanService) applyOp(plan *domain.Plan, req OperationRequest) (*domain.Plan, error) {
	switch req.Op {
	case OpSplit:
		return planops.Split(plan, req.SegmentID, req.Offset, s.maxBytes)
	case OpMerge:
		return planops.Merge(plan, req.SegmentID, req.Direction, s.maxBytes)
	case OpDelete:
		return planops.Delete(plan, req.SegmentID)
	case OpEdit:
		return planops.EditText(plan, req.SegmentID, req.Text, s.maxBytes)
	case OpRevision:
		return planops.SetNeedsRevision(plan, req.SegmentID, req.NeedsRevision)
	default:
		return nil, errors.Validationf("unknown operation %q", req.Op)
	}
}

// Undo restores the previous plan state. Returns Conflict when the
// history is empty.
func (s *PlanService) Undo(ctx context.Context, planID string) (*domain.Plan, error) {
	session, err := s.session(ctx, planID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	previous, ok := session.history.Pop()
	if !ok {
		return nil, errors.Conflict("nothing to undo")
	}

	s.invalidateChanged(session.current, previous)

	previous.Touch()
	session.current = previous
	s.saver.Mark(previous)

	s.logger.Info("plan state restored",
		"plan_id", planID,
		"history_remaining", session.history.Len(),
	)

	return previous.Clone(), nil
}

// AssignVoices writes an externally computed segment-to-voice mapping
// onto the plan. Mappings for unknown segment IDs are skipped.
func (s *PlanService) AssignVoices(ctx context.Context, planID string, voices map[string]string) (*domain.Plan, error) {
	if len(voices) == 0 {
		return nil, errors.Validation("voice mapping cannot be empty")
	}

	session, err := s.session(ctx, planID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	pre := session.current
	next, applied := planops.AssignVoices(pre, voices)
	if len(applied) == 0 {
		return pre.Clone(), nil
	}

	// Auditions rendered with the previous voice are stale now.
	for _, segID := range applied {
		if old := pre.Segment(segID); old != nil && old.Voice != "" {
			s.cache.InvalidateVoiceText(old.Voice, old.Text)
		}
	}

	session.history.Push(pre)
	session.current = next
	s.saver.Mark(next)

	s.logger.Info("voices assigned",
		"plan_id", planID,
		"updated", len(applied),
	)

	return next.Clone(), nil
}

// MarkComplete flags the plan as done and persists immediately.
func (s *PlanService) MarkComplete(ctx context.Context, planID string) (*domain.Plan, error) {
	session, err := s.session(ctx, planID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	session.current.MarkComplete()
	if err := s.store.Plans.Put(ctx, planID, session.current); err != nil {
		return nil, fmt.Errorf("persist plan: %w", err)
	}

	s.logger.Info("plan marked complete", "plan_id", planID)
	return session.current.Clone(), nil
}

// MarkStale flags every plan of a chapter as superseded. Called when
// the chapter's source text changes; plans are kept, never deleted.
func (s *PlanService) MarkStale(ctx context.Context, chapterID string) error {
	chapterID = util.NormalizeChapterID(chapterID)
	plans, err := s.store.Plans.ListByIndex(ctx, "chapter", chapterID)
	if err != nil {
		return err
	}

	for _, plan := range plans {
		session, err := s.session(ctx, plan.ID)
		if err != nil {
			return err
		}
		session.mu.Lock()
		session.current.MarkStale()
		err = s.store.Plans.Put(ctx, plan.ID, session.current)
		session.mu.Unlock()
		if err != nil {
			return fmt.Errorf("persist stale plan %s: %w", plan.ID, err)
		}
	}

	if len(plans) > 0 {
		s.logger.Info("plans marked stale",
			"chapter_id", chapterID,
			"count", len(plans),
		)
	}
	return nil
}

// Flush persists all pending plan writes. Called on shutdown.
func (s *PlanService) Flush() {
	s.saver.Flush()
}

// session returns the edit session for a plan, loading the persisted
// plan on first access.
func (s *PlanService) session(ctx context.Context, planID string) (*planSession, error) {
	s.mu.Lock()
	session, ok := s.sessions[planID]
	if !ok {
		session = &planSession{
			history: history.New[*domain.Plan](history.DefaultLimit),
		}
		s.sessions[planID] = session
	}
	s.mu.Unlock()

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.current == nil {
		plan, err := s.store.Plans.Get(ctx, planID)
		if err != nil {
			s.mu.Lock()
			delete(s.sessions, planID)
			s.mu.Unlock()
			return nil, err
		}
		session.current = plan
	}
	return session, nil
}

// currentOf substitutes the in-memory state for a persisted plan when a
// session has unsaved edits.
func (s *PlanService) currentOf(persisted *domain.Plan) *domain.Plan {
	s.mu.Lock()
	session, ok := s.sessions[persisted.ID]
	s.mu.Unlock()
	if !ok {
		return persisted
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.current == nil {
		return persisted
	}
	return session.current.Clone()
}

// invalidateChanged drops cached auditions for segments whose text or
// presence changed between two plan states.
func (s *PlanService) invalidateChanged(pre, next *domain.Plan) {
	for i := range pre.Segments {
		old := &pre.Segments[i]
		if old.Voice == "" {
			continue
		}
		cur := next.Segment(old.ID)
		if cur == nil || cur.Text != old.Text || cur.Voice != old.Voice {
			s.cache.InvalidateVoiceText(old.Voice, old.Text)
		}
	}
}
