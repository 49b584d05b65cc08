package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/narratorapp/narrator-server/internal/store"
)

func TestDebouncedSaverCollapsesBursts(t *testing.T) {
	s := setupTestStore(t)
	saver := store.NewDebouncedSaver(s, 50*time.Millisecond, nil)
	defer saver.Close()

	plan := testPlan("plan_1", "chap_1")

	// A burst of edits within the quiet period produces one write with
	// the last state.
	for _, text := range []string{"edit one", "edit two", "edit three"} {
		plan.Segments[0].Text = text
		saver.Mark(plan)
	}

	_, err := s.Plans.Get(context.Background(), "plan_1")
	require.ErrorIs(t, err, store.ErrNotFound, "nothing persisted before the quiet period")

	require.Eventually(t, func() bool {
		got, err := s.Plans.Get(context.Background(), "plan_1")
		return err == nil && got.Segments[0].Text == "edit three"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDebouncedSaverSnapshotsAtMark(t *testing.T) {
	s := setupTestStore(t)
	saver := store.NewDebouncedSaver(s, 30*time.Millisecond, nil)
	defer saver.Close()

	plan := testPlan("plan_1", "chap_1")
	saver.Mark(plan)

	// Mutating the plan after Mark must not leak into the scheduled write.
	plan.Segments[0].Text = "mutated afterwards"

	require.Eventually(t, func() bool {
		got, err := s.Plans.Get(context.Background(), "plan_1")
		return err == nil && got.Segments[0].Text == "The first paragraph."
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDebouncedSaverCloseFlushes(t *testing.T) {
	s := setupTestStore(t)
	saver := store.NewDebouncedSaver(s, time.Hour, nil)

	plan := testPlan("plan_1", "chap_1")
	saver.Mark(plan)
	saver.Close()

	got, err := s.Plans.Get(context.Background(), "plan_1")
	require.NoError(t, err)
	require.Equal(t, "plan_1", got.ID)
}
