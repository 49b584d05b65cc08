package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narratorapp/narrator-server/internal/audiocache"
	"github.com/narratorapp/narrator-server/internal/errors"
	"github.com/narratorapp/narrator-server/internal/logger"
	"github.com/narratorapp/narrator-server/internal/planops"
	"github.com/narratorapp/narrator-server/internal/store"
	"github.com/narratorapp/narrator-server/internal/tts"
)

const chapterText = "The house stood at the end of the lane, silent as ever.\n\n" +
	"\"Nobody lives there,\" said Tom. \"Not since the fire.\"\n\n" +
	"She did not answer. The gate creaked under her hand."

func newTestPlanService(t *testing.T) (*PlanService, *store.Store, *audiocache.Cache) {
	t.Helper()

	s, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	log := logger.NewNop().Logger
	saver := store.NewDebouncedSaver(s, 20*time.Millisecond, log)
	t.Cleanup(saver.Close)

	cache := audiocache.New(nil)

	// A ceiling small enough that each test paragraph becomes its own
	// segment instead of packing into one.
	svc := NewPlanService(s, saver, cache, log, 600)
	return svc, s, cache
}

func TestGeneratePlan(t *testing.T) {
	svc, s, _ := newTestPlanService(t)
	ctx := context.Background()

	plan, err := svc.GeneratePlan(ctx, "chap-1", chapterText)
	require.NoError(t, err)
	require.Len(t, plan.Segments, 3)
	assert.False(t, plan.IsComplete)
	assert.False(t, plan.Stale)

	// Persisted immediately, not debounced.
	stored, err := s.Plans.Get(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.Segments, stored.Segments)
}

func TestGeneratePlanNormalizesChapterID(t *testing.T) {
	svc, _, _ := newTestPlanService(t)
	ctx := context.Background()

	plan, err := svc.GeneratePlan(ctx, "Chapter 1", chapterText)
	require.NoError(t, err)
	assert.Equal(t, "chapter-1", plan.ChapterID)

	// Any spelling of the chapter name resolves to the same plans.
	plans, err := svc.ListPlansByChapter(ctx, "chapter_1")
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}

func TestGeneratePlanRejectsEmptyText(t *testing.T) {
	svc, _, _ := newTestPlanService(t)

	_, err := svc.GeneratePlan(context.Background(), "chap-1", "   \n\n  ")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestRegenerationSupersedes(t *testing.T) {
	svc, _, _ := newTestPlanService(t)
	ctx := context.Background()

	first, err := svc.GeneratePlan(ctx, "chap-1", chapterText)
	require.NoError(t, err)

	second, err := svc.GeneratePlan(ctx, "chap-1", chapterText+"\n\nA new closing paragraph.")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// The old plan survives, marked stale.
	old, err := svc.GetPlan(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, old.Stale)

	fresh, err := svc.GetPlan(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, fresh.Stale)

	plans, err := svc.ListPlansByChapter(ctx, "chap-1")
	require.NoError(t, err)
	assert.Len(t, plans, 2)
}

func TestApplyEditAndUndo(t *testing.T) {
	svc, _, _ := newTestPlanService(t)
	ctx := context.Background()

	plan, err := svc.GeneratePlan(ctx, "chap-1", chapterText)
	require.NoError(t, err)
	segID := plan.Segments[0].ID
	originalText := plan.Segments[0].Text

	edited, err := svc.Apply(ctx, plan.ID, OperationRequest{
		Op:        OpEdit,
		SegmentID: segID,
		Text:      "The house stood at the end of the lane.",
	})
	require.NoError(t, err)
	assert.Equal(t, "The house stood at the end of the lane.", edited.Segments[0].Text)

	// GetPlan sees the in-memory edit even before the debounced persist.
	current, err := svc.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, edited.Segments[0].Text, current.Segments[0].Text)

	restored, err := svc.Undo(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, originalText, restored.Segments[0].Text)

	// History exhausted.
	_, err = svc.Undo(ctx, plan.ID)
	assert.ErrorIs(t, err, errors.ErrConflict)
}

func TestApplySplitMergeDelete(t *testing.T) {
	svc, _, _ := newTestPlanService(t)
	ctx := context.Background()

	plan, err := svc.GeneratePlan(ctx, "chap-1", chapterText)
	require.NoError(t, err)
	segID := plan.Segments[0].ID

	split, err := svc.Apply(ctx, plan.ID, OperationRequest{
		Op:        OpSplit,
		SegmentID: segID,
		Offset:    len("The house stood "),
	})
	require.NoError(t, err)
	require.Len(t, split.Segments, 4)

	merged, err := svc.Apply(ctx, plan.ID, OperationRequest{
		Op:        OpMerge,
		SegmentID: split.Segments[0].ID,
		Direction: planops.DirectionForward,
	})
	require.NoError(t, err)
	require.Len(t, merged.Segments, 3)

	deleted, err := svc.Apply(ctx, plan.ID, OperationRequest{
		Op:        OpDelete,
		SegmentID: merged.Segments[2].ID,
	})
	require.NoError(t, err)
	require.Len(t, deleted.Segments, 2)
}

func TestApplyRejectedOperationLeavesStateUntouched(t *testing.T) {
	svc, _, _ := newTestPlanService(t)
	ctx := context.Background()

	plan, err := svc.GeneratePlan(ctx, "chap-1", chapterText)
	require.NoError(t, err)

	_, err = svc.Apply(ctx, plan.ID, OperationRequest{
		Op:        OpSplit,
		SegmentID: plan.Segments[0].ID,
		Offset:    0,
	})
	require.ErrorIs(t, err, errors.ErrInvalidPosition)

	// Rejected operation: no history entry, so nothing to undo.
	_, err = svc.Undo(ctx, plan.ID)
	assert.ErrorIs(t, err, errors.ErrConflict)
}

func TestApplyUnknownPlan(t *testing.T) {
	svc, _, _ := newTestPlanService(t)

	_, err := svc.Apply(context.Background(), "plan_missing", OperationRequest{
		Op:        OpDelete,
		SegmentID: "seg_x",
	})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestApplyPersistsAfterQuietPeriod(t *testing.T) {
	svc, s, _ := newTestPlanService(t)
	ctx := context.Background()

	plan, err := svc.GeneratePlan(ctx, "chap-1", chapterText)
	require.NoError(t, err)

	_, err = svc.Apply(ctx, plan.ID, OperationRequest{
		Op:        OpEdit,
		SegmentID: plan.Segments[0].ID,
		Text:      "Edited text for persistence.",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, err := s.Plans.Get(ctx, plan.ID)
		return err == nil && stored.Segments[0].Text == "Edited text for persistence."
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAssignVoicesInvalidatesCache(t *testing.T) {
	svc, _, cache := newTestPlanService(t)
	ctx := context.Background()

	plan, err := svc.GeneratePlan(ctx, "chap-1", chapterText)
	require.NoError(t, err)
	segID := plan.Segments[1].ID

	assigned, err := svc.AssignVoices(ctx, plan.ID, map[string]string{segID: "voice_tom"})
	require.NoError(t, err)
	assert.Equal(t, "voice_tom", assigned.Segment(segID).Voice)

	// Prime an audition for the assigned voice.
	req := tts.Request{VoiceID: "voice_tom", Text: assigned.Segment(segID).Text}
	_, err = cache.GetOrGenerate(ctx, req, func(ctx context.Context) (tts.Artifact, error) {
		return tts.Artifact{Audio: []byte("audio"), Format: "mp3"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	// Reassigning drops the stale audition.
	_, err = svc.AssignVoices(ctx, plan.ID, map[string]string{segID: "voice_sarah"})
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestEditInvalidatesCachedAudition(t *testing.T) {
	svc, _, cache := newTestPlanService(t)
	ctx := context.Background()

	plan, err := svc.GeneratePlan(ctx, "chap-1", chapterText)
	require.NoError(t, err)
	segID := plan.Segments[0].ID

	_, err = svc.AssignVoices(ctx, plan.ID, map[string]string{segID: "voice_rachel"})
	require.NoError(t, err)

	req := tts.Request{VoiceID: "voice_rachel", Text: plan.Segments[0].Text}
	_, err = cache.GetOrGenerate(ctx, req, func(ctx context.Context) (tts.Artifact, error) {
		return tts.Artifact{Audio: []byte("audio"), Format: "mp3"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	_, err = svc.Apply(ctx, plan.ID, OperationRequest{
		Op:        OpEdit,
		SegmentID: segID,
		Text:      "Completely new text.",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestMarkComplete(t *testing.T) {
	svc, s, _ := newTestPlanService(t)
	ctx := context.Background()

	plan, err := svc.GeneratePlan(ctx, "chap-1", chapterText)
	require.NoError(t, err)

	completed, err := svc.MarkComplete(ctx, plan.ID)
	require.NoError(t, err)
	assert.True(t, completed.IsComplete)

	// Persisted immediately.
	stored, err := s.Plans.Get(ctx, plan.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsComplete)
}
